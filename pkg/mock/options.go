package mock

import "time"

// WithBase sets the base value (mg/dL) the walk oscillates around
func WithBase(base float64) func(*Source) {
	return func(s *Source) {
		s.base = base
	}
}

// WithAmplitude sets the amplitude (mg/dL) of the walk
func WithAmplitude(amplitude float64) func(*Source) {
	return func(s *Source) {
		s.amplitude = amplitude
	}
}

// WithPeriod sets the number of steps per full cycle
func WithPeriod(steps int) func(*Source) {
	return func(s *Source) {
		s.period = steps
	}
}

// WithStep sets the time spacing between consecutive readings
func WithStep(step time.Duration) func(*Source) {
	return func(s *Source) {
		if step > 0 {
			s.step = step
		}
	}
}

// WithTargetRange sets the target range used to derive high / low flags
func WithTargetRange(low, high float64) func(*Source) {
	return func(s *Source) {
		s.targetLow = low
		s.targetHigh = high
	}
}

// WithHistoryLength sets the number of readings returned as history
func WithHistoryLength(n int) func(*Source) {
	return func(s *Source) {
		s.historyLen = n
	}
}

// WithStartTime sets the timestamp of the first reading
func WithStartTime(start time.Time) func(*Source) {
	return func(s *Source) {
		s.start = start
	}
}
