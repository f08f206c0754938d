package commands

import (
	"strconv"

	"github.com/spf13/cobra"
	"go.trai.ch/lathe/internal/app"
	"go.trai.ch/zerr"
)

func (c *CLI) newNavCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "nav",
		Short: "Navigation bar helpers",
	}
	cmd.AddCommand(c.newNavClassifyCmd())
	return cmd
}

func (c *CLI) newNavClassifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify samples...",
		Short: "Replay scroll positions through the navigation classifier",
		Example: "  lathe nav classify --viewport 800 --document 2000 100 98 1300 1250 20\n" +
			"  lathe nav classify --banner 300 --viewport 800 --document 3000 500 100",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			samples := make([]float64, 0, len(args))
			for _, arg := range args {
				v, err := strconv.ParseFloat(arg, 64)
				if err != nil {
					return zerr.With(zerr.Wrap(err, "invalid scroll position"), "sample", arg)
				}
				samples = append(samples, v)
			}

			return c.app.Classify(cmd.OutOrStdout(), app.ClassifyOptions{
				NavHeight:    c.viper.GetFloat64("nav-height"),
				BannerHeight: c.viper.GetFloat64("banner"),
				Delta:        c.viper.GetFloat64("delta"),
				Viewport:     c.viper.GetFloat64("viewport"),
				Document:     c.viper.GetFloat64("document"),
			}, samples)
		},
	}

	flags := cmd.Flags()
	flags.Float64("nav-height", 80, "Height of the navigation bar")
	flags.Float64("delta", 5, "Scroll distance ignored between samples")
	flags.Float64("viewport", 800, "Viewport height")
	flags.Float64("document", 3000, "Document height")
	flags.Float64("banner", 0, "Banner height; a positive value selects the banner layout")
	return cmd
}
