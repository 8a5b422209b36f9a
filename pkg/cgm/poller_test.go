package cgm

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

const testTimeout = 5 * time.Second

// stubReader replays a per-call function, tracking the number of calls
type stubReader struct {
	mu    sync.Mutex
	calls int
	fn    func(call int) (Snapshot, error)
}

func (s *stubReader) Read() (Snapshot, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()

	return s.fn(call)
}

func (s *stubReader) numCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.calls
}

func snapshotWithValue(value float64, trend Trend) Snapshot {
	return Snapshot{
		Current: Reading{Value: value, Trend: trend, Time: time.Now()},
		History: []Reading{{Value: value, Trend: trend}},
	}
}

func TestNewPollerValidation(t *testing.T) {
	reader := &stubReader{fn: func(int) (Snapshot, error) {
		return Snapshot{}, nil
	}}

	if _, err := NewPoller(nil, 1, time.Second); err == nil {
		t.Fatalf("instantiation without reader was unexpectedly successful")
	}
	if _, err := NewPoller(reader, 0, time.Second); err == nil {
		t.Fatalf("instantiation with zero amount was unexpectedly successful")
	}
	if _, err := NewPoller(reader, 1, 0); err == nil {
		t.Fatalf("instantiation with zero interval was unexpectedly successful")
	}
	if _, err := NewPoller(reader, 3, time.Second); err != nil {
		t.Fatalf("failed to instantiate poller: %s", err)
	}
}

func TestPollerEmitsAverageAfterAmount(t *testing.T) {
	values := []float64{100, 110, 130}
	trends := []Trend{TrendFlat, TrendFortyFiveUp, TrendSingleUp}
	block := make(chan struct{})
	defer close(block)

	reader := &stubReader{fn: func(call int) (Snapshot, error) {
		if call > len(values) {
			<-block
			return Snapshot{}, errors.New("reader closed")
		}
		return snapshotWithValue(values[call-1], trends[call-1]), nil
	}}

	p, err := NewPoller(reader, len(values), time.Millisecond)
	if err != nil {
		t.Fatalf("failed to instantiate poller: %s", err)
	}

	avgChan := make(chan Average, 1)
	p.SetAverageChannel(avgChan)

	if err := p.Start(); err != nil {
		t.Fatalf("failed to start poller: %s", err)
	}
	defer p.Cancel()

	if err := p.Start(); err == nil {
		t.Fatalf("second start of running poller was unexpectedly successful")
	}

	var avg Average
	select {
	case avg = <-avgChan:
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for average emission")
	}

	if len(avg.Batch) != len(values) {
		t.Fatalf("unexpected batch size: got %d, want %d", len(avg.Batch), len(values))
	}
	wantAvg := (100. + 110. + 130.) / 3.
	if math.Abs(avg.Reading.Value-wantAvg) > 1e-9 {
		t.Fatalf("unexpected average value: got %f, want %f", avg.Reading.Value, wantAvg)
	}
	if avg.Reading.Trend != TrendSingleUp {
		t.Fatalf("average trend is not the trend of the most recent reading: got %v", avg.Reading.Trend)
	}
	if len(avg.History) == 0 {
		t.Fatalf("average emission did not carry the latest history")
	}
	if n := p.Collected(); n != 0 {
		t.Fatalf("accumulator not empty after emission: %d readings left", n)
	}
	if p.Elapsed() <= 0 {
		t.Fatalf("poller stopwatch did not advance")
	}
}

func TestPollerSkipsTransientFailures(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	reader := &stubReader{fn: func(call int) (Snapshot, error) {
		switch call {
		case 1:
			return snapshotWithValue(100, TrendFlat), nil
		case 2:
			return Snapshot{}, errors.New("connection reset")
		case 3:
			return snapshotWithValue(120, TrendFlat), nil
		default:
			<-block
			return Snapshot{}, errors.New("reader closed")
		}
	}}

	p, err := NewPoller(reader, 2, time.Millisecond)
	if err != nil {
		t.Fatalf("failed to instantiate poller: %s", err)
	}

	avgChan := make(chan Average, 1)
	errChan := make(chan error, 8)
	p.SetAverageChannel(avgChan)
	p.SetErrorHandler(func(err error) {
		errChan <- err
	})

	if err := p.Start(); err != nil {
		t.Fatalf("failed to start poller: %s", err)
	}
	defer p.Cancel()

	var avg Average
	select {
	case avg = <-avgChan:
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for average emission")
	}

	if len(avg.Batch) != 2 {
		t.Fatalf("unexpected batch size: got %d, want 2", len(avg.Batch))
	}
	if avg.Batch[0].Value != 100 || avg.Batch[1].Value != 120 {
		t.Fatalf("failed fetch corrupted the accumulator: %v", avg.Batch)
	}

	select {
	case err := <-errChan:
		if err == nil {
			t.Fatalf("error handler received nil error")
		}
	case <-time.After(testTimeout):
		t.Fatalf("transient failure was not reported via error handler")
	}

	if p.Status() != StateRunning {
		t.Fatalf("transient failure stopped the poller, state: %d", p.Status())
	}
}

func TestPollerStopsOnTerminalError(t *testing.T) {
	fatal := &testTerminalError{msg: "invalid credentials"}

	reader := &stubReader{fn: func(call int) (Snapshot, error) {
		return Snapshot{}, fatal
	}}

	p, err := NewPoller(reader, 2, time.Millisecond)
	if err != nil {
		t.Fatalf("failed to instantiate poller: %s", err)
	}

	errChan := make(chan error, 8)
	p.SetErrorHandler(func(err error) {
		errChan <- err
	})

	if err := p.Start(); err != nil {
		t.Fatalf("failed to start poller: %s", err)
	}

	select {
	case <-p.Done():
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for poller termination")
	}

	if p.Status() != StateCancelled {
		t.Fatalf("unexpected state after fatal error: %d", p.Status())
	}
	if !errors.Is(p.Err(), fatal) {
		t.Fatalf("unexpected retained error: %v", p.Err())
	}

	// The fatal error must surface exactly once
	select {
	case <-errChan:
	case <-time.After(testTimeout):
		t.Fatalf("fatal error was not reported via error handler")
	}
	select {
	case err := <-errChan:
		t.Fatalf("fatal error was reported more than once: %s", err)
	case <-time.After(50 * time.Millisecond):
	}

	if n := reader.numCalls(); n != 1 {
		t.Fatalf("poller kept fetching after fatal error: %d calls", n)
	}
}

func TestPollerCancelDiscardsInFlightFetch(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	reader := &stubReader{fn: func(call int) (Snapshot, error) {
		close(entered)
		<-release
		return snapshotWithValue(100, TrendFlat), nil
	}}

	p, err := NewPoller(reader, 1, time.Millisecond)
	if err != nil {
		t.Fatalf("failed to instantiate poller: %s", err)
	}

	avgChan := make(chan Average, 1)
	p.SetAverageChannel(avgChan)

	var readings int
	var readingsMu sync.Mutex
	p.SetReadingHandler(func(Snapshot) {
		readingsMu.Lock()
		readings++
		readingsMu.Unlock()
	})

	if err := p.Start(); err != nil {
		t.Fatalf("failed to start poller: %s", err)
	}

	select {
	case <-entered:
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for fetch to start")
	}

	// Cancel while the fetch is in flight, then let it complete
	p.Cancel()
	close(release)

	select {
	case <-p.Done():
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for poller termination")
	}

	select {
	case <-avgChan:
		t.Fatalf("average was emitted after cancellation")
	default:
	}

	readingsMu.Lock()
	defer readingsMu.Unlock()
	if readings != 0 {
		t.Fatalf("reading handler fired after cancellation")
	}
	if p.Status() != StateCancelled {
		t.Fatalf("unexpected state after cancellation: %d", p.Status())
	}

	// Repeated cancellation must be a no-op
	p.Cancel()
}

func TestPollerAverageHandlerSingleReading(t *testing.T) {
	block := make(chan struct{})
	defer close(block)

	reader := &stubReader{fn: func(call int) (Snapshot, error) {
		if call > 1 {
			<-block
			return Snapshot{}, errors.New("reader closed")
		}
		return snapshotWithValue(87, TrendFortyFiveDown), nil
	}}

	p, err := NewPoller(reader, 1, time.Millisecond)
	if err != nil {
		t.Fatalf("failed to instantiate poller: %s", err)
	}

	avgChan := make(chan Average, 1)
	p.SetAverageHandler(func(avg Reading, batch []Reading, history []Reading) {
		avgChan <- Average{Reading: avg, Batch: batch, History: history}
	})

	if err := p.Start(); err != nil {
		t.Fatalf("failed to start poller: %s", err)
	}
	defer p.Cancel()

	select {
	case avg := <-avgChan:
		if avg.Reading.Value != 87 {
			t.Fatalf("unexpected average of single reading: %f", avg.Reading.Value)
		}
		if avg.Reading.Trend != TrendFortyFiveDown {
			t.Fatalf("unexpected trend of single-reading average: %v", avg.Reading.Trend)
		}
		if len(avg.Batch) != 1 {
			t.Fatalf("unexpected batch size: %d", len(avg.Batch))
		}
	case <-time.After(testTimeout):
		t.Fatalf("timed out waiting for average emission")
	}
}
