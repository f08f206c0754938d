package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/lathe/internal/app"
)

func (c *CLI) newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build [targets...]",
		Short: "Run the pipeline once, one task at a time",
		Long: "Run the build targets of the pipeline, or the given targets and their dependencies.\n" +
			"The first failing task stops the build.",
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.build(cmd, args)
		},
	}
}

func (c *CLI) build(cmd *cobra.Command, targets []string) error {
	return c.app.Build(cmd.Context(), targets, app.BuildOptions{
		NoCache:    c.viper.GetBool("no-cache"),
		OutputMode: c.viper.GetString("output"),
		ConfigPath: c.viper.GetString("config"),
	})
}

func (c *CLI) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Build, watch for changes and run the preview server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Serve(cmd.Context(), app.ServeOptions{
				NoCache:     c.viper.GetBool("no-cache"),
				OutputMode:  c.viper.GetString("output"),
				ConfigPath:  c.viper.GetString("config"),
				MetricsAddr: c.viper.GetString("metrics-addr"),
			})
		},
	}
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9090)")
	return cmd
}

func (c *CLI) newGraphCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph",
		Short: "Print the resolved task order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Graph(cmd.Context(), app.GraphOptions{
				ConfigPath: c.viper.GetString("config"),
			})
		},
	}
}

func (c *CLI) newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove the build cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.app.Clean(cmd.Context(), app.CleanOptions{
				ConfigPath: c.viper.GetString("config"),
			})
		},
	}
}
