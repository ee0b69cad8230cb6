package domain

import "time"

// ActiveWindow is the interval in which a campaign may claim conversions.
type ActiveWindow struct {
	Start time.Time
	End   time.Time
}

func (w ActiveWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// ContainsWithGrace extends the window end to tolerate delayed
// conversion reporting.
func (w ActiveWindow) ContainsWithGrace(t time.Time, grace time.Duration) bool {
	return !t.Before(w.Start) && !t.After(w.End.Add(grace))
}

// UTMKey is the registered (source, medium, campaign) tuple.
type UTMKey struct {
	Source   string
	Medium   string
	Campaign string
}

// Campaign is a read-only copy of a campaign definition owned by the
// external campaign management system.
type Campaign struct {
	ID         string
	Name       string
	Window     ActiveWindow
	Cost       float64
	PromoCodes []string
	PixelIDs   []string
	UTMs       []UTMKey
}
