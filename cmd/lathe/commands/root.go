// Package commands implements the CLI commands for the lathe asset pipeline.
package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.trai.ch/lathe/internal/adapters/detector" //nolint:depguard // output mode detection only
	"go.trai.ch/lathe/internal/app"
	"go.trai.ch/lathe/internal/build"
)

// EnvPrefix prefixes the environment variables that stand in for flags.
const EnvPrefix = "LATHE"

// CLI represents the command line interface for lathe.
type CLI struct {
	app       Application
	rootCmd   *cobra.Command
	viper     *viper.Viper
	logFormat LogFormatter
}

// Application represents the application logic interface.
type Application interface {
	Build(ctx context.Context, targets []string, opts app.BuildOptions) error
	Serve(ctx context.Context, opts app.ServeOptions) error
	Graph(ctx context.Context, opts app.GraphOptions) error
	Clean(ctx context.Context, opts app.CleanOptions) error
	Classify(w io.Writer, opts app.ClassifyOptions, samples []float64) error
}

// LogFormatter switches the log output between pretty text and JSON.
type LogFormatter interface {
	SetJSON(enable bool)
}

// Option configures a CLI.
type Option func(*CLI)

// WithLogFormatter lets --log-format reconfigure the logger.
func WithLogFormatter(f LogFormatter) Option {
	return func(c *CLI) {
		c.logFormat = f
	}
}

// New creates a new CLI instance with the given app.
func New(a Application, opts ...Option) *CLI {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	c := &CLI{
		app:   a,
		viper: v,
	}
	for _, opt := range opts {
		opt(c)
	}

	rootCmd := &cobra.Command{
		Use:   "lathe [flags]",
		Short: "Asset pipeline for static sites",
		Long: "lathe compiles styles, bundles scripts and optimizes images for a static site.\n" +
			"Without a subcommand it runs a one-shot build.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		Version:           build.Version,
		Args:              cobra.NoArgs,
		PersistentPreRunE: c.configure,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.build(cmd, nil)
		},
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"{{.Name}} version {{.Version}} (commit: %s, date: %s)\n",
		build.Commit,
		build.Date,
	))
	rootCmd.InitDefaultVersionFlag()
	rootCmd.Flags().Lookup("version").Usage = "Print the application version"

	rootCmd.InitDefaultHelpFlag()
	rootCmd.Flags().Lookup("help").Usage = "Show help for command"

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Pipeline file (default: lathe.yaml or lathe.hcl, searched upwards)")
	flags.StringP("output", "o", "auto", "Output mode: auto, color, plain, ci or tui")
	flags.String("log-format", "auto", "Log format: auto, pretty or json")
	flags.BoolP("no-cache", "n", false, "Bypass the build cache and force execution")

	c.rootCmd = rootCmd
	rootCmd.AddCommand(c.newBuildCmd())
	rootCmd.AddCommand(c.newServeCmd())
	rootCmd.AddCommand(c.newGraphCmd())
	rootCmd.AddCommand(c.newCleanCmd())
	rootCmd.AddCommand(c.newNavCmd())
	rootCmd.AddCommand(c.newVersionCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

// configure binds the flags of the executing command to viper, so LATHE_<FLAG>
// environment variables fill in flags that were not given, and applies the log format.
func (c *CLI) configure(cmd *cobra.Command, _ []string) error {
	if err := c.viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if c.logFormat != nil {
		c.logFormat.SetJSON(logJSON(c.viper.GetString("log-format")))
	}
	return nil
}

func logJSON(format string) bool {
	switch format {
	case "json":
		return true
	case "pretty", "text":
		return false
	default:
		return detector.DetectEnvironment() == detector.ModePlain
	}
}
