// Package serial maintains a single open connection to a serial sensor
// device and delivers its output as a stream of newline-delimited raw lines.
package serial

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	goserial "go.bug.st/serial"
	"go.uber.org/zap"
)

// PortOpener opens the byte stream for a device path. Injectable so tests
// can feed an in-memory pipe instead of hardware.
type PortOpener func(path string, baudRate int) (io.ReadCloser, error)

// OpenPort opens a real serial port.
func OpenPort(path string, baudRate int) (io.ReadCloser, error) {
	port, err := goserial.Open(path, &goserial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, err
	}
	return port, nil
}

// LineReader owns one serial connection and exposes its line stream. Open
// failures and runtime I/O errors are reported on Errors(), never returned
// from Start(); the caller decides whether to retry opening. There is no
// automatic reconnect.
type LineReader struct {
	path   string
	baud   int
	open   PortOpener
	logger *zap.Logger

	lines chan string
	errs  chan error

	mu       sync.Mutex
	started  bool
	stopping bool
	port     io.ReadCloser
	wg       sync.WaitGroup
}

// NewLineReader creates a reader for the given device path using the real
// serial port opener.
func NewLineReader(path string, baudRate int, logger *zap.Logger) *LineReader {
	return NewLineReaderWithOpener(path, baudRate, OpenPort, logger)
}

// NewLineReaderWithOpener creates a reader with a custom port opener.
func NewLineReaderWithOpener(path string, baudRate int, opener PortOpener, logger *zap.Logger) *LineReader {
	return &LineReader{
		path:   path,
		baud:   baudRate,
		open:   opener,
		logger: logger,
		lines:  make(chan string, 16),
		errs:   make(chan error, 4),
	}
}

// Lines is the raw-line stream. Lines are delivered as read, one per
// newline-delimited chunk.
func (r *LineReader) Lines() <-chan string {
	return r.lines
}

// Errors reports connection-open failures and runtime I/O faults.
func (r *LineReader) Errors() <-chan error {
	return r.errs
}

// Start opens the connection and begins reading. It is a no-op when already
// started or when no device path is configured (headless mode).
func (r *LineReader) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started || r.path == "" {
		return
	}

	port, err := r.open(r.path, r.baud)
	if err != nil {
		r.reportError(fmt.Errorf("failed to open serial port %s: %w", r.path, err))
		return
	}

	r.port = port
	r.started = true
	r.stopping = false
	r.logger.Info("serial connection opened",
		zap.String("path", r.path),
		zap.Int("baudRate", r.baud))

	r.wg.Add(1)
	go r.readLines(port)
}

// Stop releases the connection on every exit path and is idempotent.
func (r *LineReader) Stop() {
	r.mu.Lock()
	if r.port == nil {
		r.mu.Unlock()
		return
	}
	r.stopping = true
	port := r.port
	r.port = nil
	r.mu.Unlock()

	if err := port.Close(); err != nil {
		r.logger.Error("error while closing serial connection", zap.Error(err))
	}
	r.wg.Wait()
}

func (r *LineReader) readLines(port io.ReadCloser) {
	defer r.wg.Done()

	scanner := bufio.NewScanner(port)
	for scanner.Scan() {
		r.lines <- scanner.Text()
	}

	// Scanner exit means EOF, a fault, or a deliberate Stop closing the port
	// under the read.
	if err := scanner.Err(); err != nil && !r.isStopping() {
		r.reportError(fmt.Errorf("serial read error: %w", err))
	}

	r.mu.Lock()
	r.started = false
	if r.port != nil {
		r.port.Close()
		r.port = nil
	}
	r.mu.Unlock()

	r.logger.Info("serial connection closed", zap.String("path", r.path))
}

func (r *LineReader) isStopping() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopping
}

// reportError never blocks; a full error channel drops the oldest report's
// successors rather than stalling the read loop.
func (r *LineReader) reportError(err error) {
	r.logger.Error("serial fault", zap.Error(err))
	select {
	case r.errs <- err:
	default:
	}
}
