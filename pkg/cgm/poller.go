package cgm

import (
	"fmt"
	"sync"
	"time"

	"github.com/fatih/stopwatch"
)

// State denotes the lifecycle state of a Poller
type State int

const (

	// StateIdle is active before the poller has been started
	StateIdle State = iota

	// StateRunning is active while the poller is scheduling fetches
	StateRunning

	// StateCancelled is active after cancellation or a fatal fetch error
	StateCancelled
)

// Average denotes an emitted averaging result: the averaged reading, the
// batch of readings it was computed from and the history of the latest fetch
type Average struct {
	Reading Reading
	Batch   []Reading
	History []Reading
}

// Poller drives a Reader on a repeating schedule, accumulating the current
// reading of every successful fetch. Once the configured amount of readings
// has been collected, the arithmetic mean is emitted and accumulation starts
// over. Only one fetch is ever in flight at a time
type Poller struct {
	reader   Reader
	amount   int
	interval time.Duration

	mu    sync.Mutex
	state State
	batch []Reading
	err   error

	timer *stopwatch.Stopwatch

	averageHandler func(avg Reading, batch []Reading, history []Reading)
	averageChan    chan Average
	readingHandler func(snapshot Snapshot)
	errorHandler   func(err error)

	cancelOnce sync.Once
	cancelChan chan struct{}
	doneChan   chan struct{}

	logger Logger
}

// NewPoller instantiates a new Poller for the given reader. It has to be
// started explicitly via Start()
func NewPoller(r Reader, amount int, interval time.Duration) (*Poller, error) {

	if r == nil {
		return nil, fmt.Errorf("no reader provided")
	}
	if amount < 1 {
		return nil, fmt.Errorf("invalid amount of readings to average: %d", amount)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("invalid polling interval: %v", interval)
	}

	return &Poller{
		reader:     r,
		amount:     amount,
		interval:   interval,
		cancelChan: make(chan struct{}),
		doneChan:   make(chan struct{}),
		logger:     &NullLogger{},
	}, nil
}

// SetAverageHandler defines a handler function that is called upon emission of an average
func (p *Poller) SetAverageHandler(fn func(avg Reading, batch []Reading, history []Reading)) {
	p.averageHandler = fn
}

// SetAverageChannel defines a channel that an emitted average is put on (non-blocking,
// the average is dropped if the channel is full)
func (p *Poller) SetAverageChannel(ch chan Average) {
	p.averageChan = ch
}

// SetReadingHandler defines a handler function that is called upon every successful fetch
func (p *Poller) SetReadingHandler(fn func(snapshot Snapshot)) {
	p.readingHandler = fn
}

// SetErrorHandler defines a handler function that is called for skipped
// transient fetch failures and for the fatal error that stops the poller
func (p *Poller) SetErrorHandler(fn func(err error)) {
	p.errorHandler = fn
}

// SetLogger defines a logger to be used for poller events
func (p *Poller) SetLogger(logger Logger) {
	if logger != nil {
		p.logger = logger
	}
}

// Start transitions the poller from idle to running and begins scheduling
// fetches in a background goroutine, the first one immediately
func (p *Poller) Start() error {

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateIdle {
		return fmt.Errorf("cannot start poller in state %d", p.state)
	}
	p.state = StateRunning
	p.timer = stopwatch.Start(0)

	go p.run()

	return nil
}

// Cancel requests cooperative cancellation: a fetch already in flight is
// allowed to complete but its result is discarded and no further fetches are
// scheduled. Cancel is idempotent and safe to call from any goroutine
func (p *Poller) Cancel() {
	p.cancelOnce.Do(func() {
		close(p.cancelChan)
	})

	p.mu.Lock()
	if p.state == StateRunning {
		p.state = StateCancelled
	}
	p.mu.Unlock()
}

// Done returns a channel that is closed once the poller has terminated
func (p *Poller) Done() <-chan struct{} {
	return p.doneChan
}

// Status returns the current lifecycle state of the poller
func (p *Poller) Status() State {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.state
}

// Err returns the fatal error that stopped the poller, if any
func (p *Poller) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.err
}

// Collected returns the number of readings currently accumulated towards the
// next average
func (p *Poller) Collected() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.batch)
}

// Elapsed returns the time elapsed since the poller was started
func (p *Poller) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.timer == nil {
		return 0
	}
	return p.timer.ElapsedTime()
}

////////////////////////////////////////////////////////////////////////////////

func (p *Poller) run() {
	defer close(p.doneChan)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if p.cancelled() {
			return
		}

		if err := p.poll(); err != nil {
			p.fail(err)
			return
		}

		select {
		case <-p.cancelChan:
			return
		case <-ticker.C:
		}
	}
}

// poll performs a single fetch. A non-nil return value denotes a fatal error
// that must stop the poller; transient failures are reported and swallowed
func (p *Poller) poll() error {

	snapshot, err := p.reader.Read()

	// A cancellation that arrived while the fetch was in flight wins: the
	// result is discarded and no handler is invoked
	if p.cancelled() {
		return nil
	}

	if err != nil {
		if IsTerminal(err) {
			return err
		}
		p.reportError(fmt.Errorf("skipping failed fetch: %w", err))
		return nil
	}

	if p.readingHandler != nil {
		p.readingHandler(snapshot)
	}

	p.mu.Lock()
	p.batch = append(p.batch, snapshot.Current)
	if len(p.batch) < p.amount {
		p.mu.Unlock()
		return nil
	}
	batch := p.batch
	p.batch = nil
	p.mu.Unlock()

	p.emit(averageOf(batch), batch, snapshot.History)

	return nil
}

func (p *Poller) emit(avg Reading, batch, history []Reading) {

	// Call handler function, if any
	if p.averageHandler != nil {
		p.averageHandler(avg, batch, history)
	}

	// Put average on channel, if any
	if p.averageChan != nil {
		select {
		case p.averageChan <- Average{Reading: avg, Batch: batch, History: history}:
		default:
		}
	}
}

func (p *Poller) fail(err error) {

	p.mu.Lock()
	p.state = StateCancelled
	p.err = err
	p.mu.Unlock()

	p.reportError(err)
}

func (p *Poller) reportError(err error) {
	if p.errorHandler != nil {
		p.errorHandler(err)
		return
	}

	p.logger.Errorf("poll failed: %s", err)
}

func (p *Poller) cancelled() bool {
	select {
	case <-p.cancelChan:
		return true
	default:
		return false
	}
}

// averageOf computes the arithmetic mean of the batch values. Trend, flags
// and timestamp are carried over from the most recent reading of the batch
// (recency reflects current direction better than a majority vote would)
func averageOf(batch []Reading) Reading {

	var sum float64
	for _, r := range batch {
		sum += r.Value
	}

	avg := batch[len(batch)-1]
	avg.Value = sum / float64(len(batch))

	return avg
}
