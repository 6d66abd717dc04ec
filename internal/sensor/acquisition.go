package sensor

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// LineSource is the raw-line feed from a serial device. A nil source means
// headless mode: acquisition goes straight to simulation.
type LineSource interface {
	Start()
	Stop()
	Lines() <-chan string
	Errors() <-chan error
}

// Acquirer composes the line source and parser behind a single read call:
// prefer the most recent hardware reading, wait a bounded time for the first
// one, and fall back to simulation. It never fails for I/O reasons.
type Acquirer struct {
	source    LineSource
	parser    *Parser
	simulator *Simulator
	timeout   time.Duration
	logger    *zap.Logger

	mu       sync.Mutex
	latest   *SensorData
	waiters  map[uint64]chan SensorData
	waiterID uint64

	done chan struct{}
	wg   sync.WaitGroup
}

// NewAcquirer starts consuming from source (if any) immediately.
func NewAcquirer(source LineSource, parser *Parser, simulator *Simulator, timeout time.Duration, logger *zap.Logger) *Acquirer {
	a := &Acquirer{
		source:    source,
		parser:    parser,
		simulator: simulator,
		timeout:   timeout,
		logger:    logger,
		waiters:   make(map[uint64]chan SensorData),
		done:      make(chan struct{}),
	}

	if source != nil {
		source.Start()
		a.wg.Add(1)
		go a.consume()
	}

	return a
}

// ReadSensorData returns the latest parsed hardware reading if one is
// cached, otherwise waits up to the configured timeout for the first reading
// to arrive, then falls back to a simulated reading. Headless mode skips the
// wait entirely.
func (a *Acquirer) ReadSensorData(ctx context.Context) SensorData {
	if a.source == nil {
		return a.simulator.Read()
	}

	if r := a.cachedReading(); r != nil {
		return *r
	}

	ch, cancel := a.subscribe()
	defer cancel()

	timer := time.NewTimer(a.timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r
	case <-timer.C:
	case <-ctx.Done():
	}

	return a.simulator.Read()
}

// Close stops the line source and waits for the consumer to drain.
func (a *Acquirer) Close() {
	if a.source == nil {
		return
	}
	a.source.Stop()
	close(a.done)
	a.wg.Wait()
}

func (a *Acquirer) consume() {
	defer a.wg.Done()

	for {
		select {
		case line, ok := <-a.source.Lines():
			if !ok {
				return
			}
			a.handleLine(line)
		case err := <-a.source.Errors():
			// Transport faults degrade to simulation; they never surface
			// into the read call path.
			a.logger.Warn("serial fault", zap.Error(err))
		case <-a.done:
			return
		}
	}
}

func (a *Acquirer) handleLine(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}

	outcome := a.parser.Parse(trimmed)
	switch outcome.Status {
	case StatusParsed:
		a.publish(outcome.Reading)
	case StatusNoise:
		// known-benign chatter
	case StatusUnrecognized:
		a.logger.Error("unable to parse sensor payload", zap.String("line", trimmed))
	}
}

// publish caches the reading and settles every registered waiter exactly
// once: the waiter is removed from the map before the buffered send, so a
// concurrent timeout path finds nothing left to deliver to.
func (a *Acquirer) publish(r SensorData) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.latest = &r
	for id, ch := range a.waiters {
		delete(a.waiters, id)
		ch <- r
	}
}

func (a *Acquirer) cachedReading() *SensorData {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.latest == nil {
		return nil
	}
	r := *a.latest
	return &r
}

// subscribe registers a one-shot waiter. The cancel func deregisters it so a
// timed-out wait does not leak a listener.
func (a *Acquirer) subscribe() (<-chan SensorData, func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.waiterID++
	id := a.waiterID
	ch := make(chan SensorData, 1)
	a.waiters[id] = ch

	cancel := func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		delete(a.waiters, id)
	}

	return ch, cancel
}
