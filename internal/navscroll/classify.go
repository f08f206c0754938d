// Package navscroll decides the visibility of a fixed navigation bar from sampled scroll positions.
package navscroll

import "math"

// DefaultDelta is the scroll distance below which a sample is ignored.
const DefaultDelta = 5

// Mode selects the page layout the navigation bar sits on.
type Mode int

const (
	// ModeDefault is a page without a banner.
	ModeDefault Mode = iota
	// ModeWithBanner is a subpage whose header overlays a banner image.
	ModeWithBanner
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeWithBanner {
		return "banner"
	}
	return "default"
}

// Visibility is the show/hide outcome of one sample.
type Visibility int

const (
	// NoChange leaves the navigation bar as it is.
	NoChange Visibility = iota
	// Show reveals the navigation bar.
	Show
	// Hide slides the navigation bar out of view.
	Hide
)

// String returns the visibility name.
func (v Visibility) String() string {
	switch v {
	case Show:
		return "show"
	case Hide:
		return "hide"
	default:
		return "no-change"
	}
}

// State is the scroll state of one page session.
type State struct {
	LastScrollTop  float64
	NavHeight      float64
	BannerHeight   float64
	ThresholdDelta float64
	Mode           Mode
}

// Decision is the result of classifying one sample.
type Decision struct {
	Visibility Visibility
	// Transparent is meaningful only when Banner is set.
	Transparent bool
	Banner      bool
}

// Classify computes the decision for a new scroll position and returns the updated state.
// state is not modified; the caller keeps the returned value.
func Classify(state State, scrollTop, viewportHeight, documentHeight float64) (State, Decision) {
	if math.Abs(scrollTop-state.LastScrollTop) <= state.ThresholdDelta {
		return state, Decision{Visibility: NoChange}
	}

	var d Decision
	switch {
	case scrollTop > state.LastScrollTop && scrollTop > state.NavHeight:
		d.Visibility = Hide
	case scrollTop+viewportHeight >= documentHeight:
		// Bottom of the page: an upward wiggle must not re-show the bar.
		d.Visibility = Hide
	default:
		d.Visibility = Show
	}

	if state.Mode == ModeWithBanner {
		d.Banner = true
		d.Transparent = scrollTop < state.BannerHeight
	}

	state.LastScrollTop = scrollTop
	return state, d
}
