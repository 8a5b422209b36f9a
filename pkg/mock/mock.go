package mock

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/cgmlink/librelinkup/pkg/cgm"
)

const (
	defaultBase       = 120.
	defaultAmplitude  = 45.
	defaultPeriod     = 48
	defaultStep       = 5 * time.Minute
	defaultTargetLow  = 70.
	defaultTargetHigh = 180.
	defaultHistoryLen = 12

	// Per-step deltas (mg/dL per reading) separating flat / moderate / rapid trends
	trendFlatDelta  = 1.
	trendRapidDelta = 10.
)

// Source denotes a synthetic CGM source producing a deterministic sine walk
// around a base value. It implements cgm.Reader and is safe for concurrent
// use; every Read() advances the walk by one step
type Source struct {
	base       float64
	amplitude  float64
	period     int
	step       time.Duration
	targetLow  float64
	targetHigh float64
	historyLen int
	start      time.Time

	mu   sync.Mutex
	tick int
}

// New instantiates a new Source, executing functional options, if any
func New(options ...func(*Source)) (*Source, error) {

	// Initialize a new instance of a synthetic source
	s := &Source{
		base:       defaultBase,
		amplitude:  defaultAmplitude,
		period:     defaultPeriod,
		step:       defaultStep,
		targetLow:  defaultTargetLow,
		targetHigh: defaultTargetHigh,
		historyLen: defaultHistoryLen,
		start:      time.Now().UTC(),
	}

	// Execute functional options (if any), see options.go for implementation
	for _, option := range options {
		option(s)
	}

	if s.amplitude < 0 {
		return nil, fmt.Errorf("invalid amplitude: %f", s.amplitude)
	}
	if s.period < 2 {
		return nil, fmt.Errorf("invalid period: %d steps", s.period)
	}
	if s.historyLen < 0 {
		return nil, fmt.Errorf("invalid history length: %d", s.historyLen)
	}
	if s.targetLow >= s.targetHigh {
		return nil, fmt.Errorf("invalid target range: %f - %f", s.targetLow, s.targetHigh)
	}

	return s, nil
}

// Read returns the next snapshot of the walk, fulfilling the cgm.Reader
// interface. History covers the readings leading up to (and including) the
// current one, spaced one step apart
func (s *Source) Read() (cgm.Snapshot, error) {

	s.mu.Lock()
	tick := s.tick
	s.tick++
	s.mu.Unlock()

	snapshot := cgm.Snapshot{
		Current: s.readingAt(tick),
		History: make([]cgm.Reading, 0, s.historyLen),
	}
	for i := tick - s.historyLen + 1; i <= tick; i++ {
		snapshot.History = append(snapshot.History, s.readingAt(i))
	}

	return snapshot, nil
}

////////////////////////////////////////////////////////////////////////////////

func (s *Source) valueAt(tick int) float64 {
	angle := 2 * math.Pi * float64(tick) / float64(s.period)
	return s.base + s.amplitude*math.Sin(angle)
}

func (s *Source) readingAt(tick int) cgm.Reading {

	value := s.valueAt(tick)
	delta := value - s.valueAt(tick-1)

	trend := cgm.TrendFlat
	switch {
	case delta >= trendRapidDelta:
		trend = cgm.TrendSingleUp
	case delta >= trendFlatDelta:
		trend = cgm.TrendFortyFiveUp
	case delta <= -trendRapidDelta:
		trend = cgm.TrendSingleDown
	case delta <= -trendFlatDelta:
		trend = cgm.TrendFortyFiveDown
	}

	return cgm.Reading{
		Value: value,
		High:  value > s.targetHigh,
		Low:   value < s.targetLow,
		Trend: trend,
		Time:  s.start.Add(time.Duration(tick) * s.step),
	}
}
