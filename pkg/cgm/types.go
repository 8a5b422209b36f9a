package cgm

import (
	"errors"
	"time"
)

// Trend denotes the directional indicator of recent glucose rate-of-change
type Trend int

const (

	// TrendNotComputable denotes an unknown / not computable trend
	TrendNotComputable Trend = iota

	// TrendSingleDown denotes a rapidly falling glucose level
	TrendSingleDown

	// TrendFortyFiveDown denotes a falling glucose level
	TrendFortyFiveDown

	// TrendFlat denotes a stable glucose level
	TrendFlat

	// TrendFortyFiveUp denotes a rising glucose level
	TrendFortyFiveUp

	// TrendSingleUp denotes a rapidly rising glucose level
	TrendSingleUp
)

var trendNames = [...]string{
	TrendNotComputable: "NotComputable",
	TrendSingleDown:    "SingleDown",
	TrendFortyFiveDown: "FortyFiveDown",
	TrendFlat:          "Flat",
	TrendFortyFiveUp:   "FortyFiveUp",
	TrendSingleUp:      "SingleUp",
}

var trendArrows = [...]string{
	TrendNotComputable: "?",
	TrendSingleDown:    "↓",
	TrendFortyFiveDown: "↘",
	TrendFlat:          "→",
	TrendFortyFiveUp:   "↗",
	TrendSingleUp:      "↑",
}

// String returns the canonical name of the trend
func (t Trend) String() string {
	if t < TrendNotComputable || t > TrendSingleUp {
		return trendNames[TrendNotComputable]
	}
	return trendNames[t]
}

// Arrow returns a single-character arrow representation of the trend
func (t Trend) Arrow() string {
	if t < TrendNotComputable || t > TrendSingleUp {
		return trendArrows[TrendNotComputable]
	}
	return trendArrows[t]
}

// MarshalText fulfills the encoding.TextMarshaler interface, emitting the trend name
func (t Trend) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText fulfills the encoding.TextUnmarshaler interface. Unknown names
// are mapped to TrendNotComputable (the trend is advisory, never an error)
func (t *Trend) UnmarshalText(data []byte) error {
	name := string(data)
	for i, n := range trendNames {
		if n == name {
			*t = Trend(i)
			return nil
		}
	}
	*t = TrendNotComputable
	return nil
}

// TrendFromArrow maps a numeric trend code as reported by the service onto a
// Trend. Codes 1-5 map one-to-one; everything else (including 0 and 6, which
// the service itself uses for "not computable") yields TrendNotComputable
func TrendFromArrow(code int) Trend {
	if code >= int(TrendSingleDown) && code <= int(TrendSingleUp) {
		return Trend(code)
	}
	return TrendNotComputable
}

// Reading denotes a single glucose measurement at a certain point in time
type Reading struct {
	Value float64   `json:"value"`
	High  bool      `json:"isHigh"`
	Low   bool      `json:"isLow"`
	Trend Trend     `json:"trend"`
	Time  time.Time `json:"date"`
}

// Snapshot denotes the result of a one-shot read: the current reading plus
// the historical readings in the order returned by the source (chronological
// by convention, never re-sorted)
type Snapshot struct {
	Current Reading   `json:"current"`
	History []Reading `json:"history"`
}

// Reader denotes any source of glucose snapshots (a remote service client,
// a synthetic generator, ...)
type Reader interface {

	// Read performs a one-shot combined fetch of current + historical readings
	Read() (Snapshot, error)
}

// TerminalError marks errors that cannot be recovered by retrying (invalid
// credentials, configuration problems). Sources wrap or implement it so the
// poller can tell fatal failures from transient ones
type TerminalError interface {
	error

	// Terminal reports whether retrying the failed operation is pointless
	Terminal() bool
}

// IsTerminal reports whether err (or any error it wraps) is marked terminal
func IsTerminal(err error) bool {
	var terminalErr TerminalError
	return errors.As(err, &terminalErr) && terminalErr.Terminal()
}
