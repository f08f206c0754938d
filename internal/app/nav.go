package app

import (
	"fmt"
	"io"
	"strconv"

	"go.trai.ch/lathe/internal/navscroll"
)

// ClassifyOptions configuration for the Classify method.
type ClassifyOptions struct {
	NavHeight    float64
	BannerHeight float64
	Delta        float64
	Viewport     float64
	Document     float64
}

// Classify replays scroll samples through the navigation classifier and writes one
// line per sample: the position, the decision and the resulting class list.
// A positive banner height selects the banner layout.
func (a *App) Classify(w io.Writer, opts ClassifyOptions, samples []float64) error {
	state := navscroll.State{
		NavHeight:      opts.NavHeight,
		BannerHeight:   opts.BannerHeight,
		ThresholdDelta: opts.Delta,
	}
	if opts.BannerHeight > 0 {
		state.Mode = navscroll.ModeWithBanner
	}

	classes := navscroll.ClassSet{}
	for _, sample := range samples {
		var d navscroll.Decision
		state, d = navscroll.Classify(state, sample, opts.Viewport, opts.Document)
		d.Apply(classes)

		decision := d.Visibility.String()
		if d.Banner && d.Transparent {
			decision += "+transparent"
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\t[%s]\n",
			strconv.FormatFloat(sample, 'f', -1, 64), decision, classes); err != nil {
			return err
		}
	}
	return nil
}
