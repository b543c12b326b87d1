// Package popover places and manages the floating trip preview panel that
// is anchored to a calendar cell.
package popover

// DefaultPadding is the gap kept between the panel, its anchor and the
// viewport edges.
const DefaultPadding = 8.0

// Rect is an on-screen rectangle in viewport coordinates.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Right() float64  { return r.Left + r.Width }
func (r Rect) Bottom() float64 { return r.Top + r.Height }

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Placement string

const (
	PlacementBelow Placement = "below"
	PlacementAbove Placement = "above"
)

// Position is where the panel's top-left corner goes.
type Position struct {
	Top       float64   `json:"top"`
	Left      float64   `json:"left"`
	Placement Placement `json:"placement"`
}

// ComputePosition places a panel of the given size below the anchor,
// horizontally centred on it, then corrects for viewport collisions.
//
// Horizontal: a panel running past the right edge is shifted so its right
// edge sits padding inside the viewport; a panel that then starts left of
// padding is clamped to padding. Vertical: a panel running past the bottom
// edge is flipped above the anchor once, with no second check above.
//
// A negative padding selects DefaultPadding.
func ComputePosition(anchor Rect, panel Size, viewport Size, padding float64) Position {
	if padding < 0 {
		padding = DefaultPadding
	}

	pos := Position{
		Top:       anchor.Bottom() + padding,
		Left:      anchor.Left + anchor.Width/2 - panel.Width/2,
		Placement: PlacementBelow,
	}

	if pos.Left+panel.Width > viewport.Width {
		pos.Left = viewport.Width - panel.Width - padding
	}
	if pos.Left < padding {
		pos.Left = padding
	}

	if pos.Top+panel.Height > viewport.Height {
		pos.Top = anchor.Top - panel.Height - padding
		pos.Placement = PlacementAbove
	}

	return pos
}
