package gps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/adrianmo/go-nmea"
	"github.com/tevino/abool/v2"
	"go.uber.org/ratelimit"
)

const (
	defaultBaudRate      = 9600 // Standard NMEA default
	defaultMaxReadErrors = 10
	readRetryPerSecond   = 5    // Pace retries after a failed read
	maxLineLength        = 1024 // NMEA caps sentences at 82 chars; leave room for proprietary ones
)

var errLineTooLong = errors.New("line exceeds maximum length")

// State is the lifecycle state of a Device.
type State int32

const (
	StateCreated State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Stats counts what the read loop has seen since the device was opened.
type Stats struct {
	Lines           uint64 // Non-blank lines read
	Sentences       uint64 // Lines decoded successfully
	DecodeFailures  uint64
	HandlerFailures uint64
	ReadErrors      uint64 // Non-fatal read errors
}

// Option customises a Device.
type Option func(*Device)

// WithOpener replaces the serial opener, e.g. with OpenDemo.
func WithOpener(open OpenFunc) Option {
	return func(d *Device) { d.open = open }
}

// WithDecoder replaces the go-nmea decoder.
func WithDecoder(dec Decoder) Option {
	return func(d *Device) { d.decoder = dec }
}

// WithLogger sends diagnostics to l instead of the standard logger.
func WithLogger(l *log.Logger) Option {
	return func(d *Device) { d.log = l }
}

// Device owns a GPS port, reads NMEA lines from it on a dedicated goroutine
// and delivers every decoded sentence to the subscribed handlers, in
// registration order. Malformed lines and failing handlers are logged and
// skipped; they never stop the stream.
type Device struct {
	ctx           context.Context
	portPath      string
	baudRate      int
	maxReadErrors int
	open          OpenFunc
	decoder       Decoder
	log           *log.Logger
	limiter       ratelimit.Limiter

	mu    sync.Mutex
	state State
	port  Port
	done  chan struct{}

	// closing is set before the port is closed so the read loop can tell a
	// requested shutdown from a failure without taking mu.
	closing *abool.AtomicBool
	// dispatching is set while the read loop is running handlers.
	dispatching *abool.AtomicBool

	handlersMu sync.RWMutex
	handlers   []Handler

	lines           atomic.Uint64
	sentences       atomic.Uint64
	decodeFailures  atomic.Uint64
	handlerFailures atomic.Uint64
	readErrors      atomic.Uint64
}

// NewDevice creates a GPS device in the created state. Cancelling ctx closes
// the device.
func NewDevice(ctx context.Context, cfg Config, opts ...Option) *Device {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = defaultBaudRate
	}
	if cfg.MaxReadErrors <= 0 {
		cfg.MaxReadErrors = defaultMaxReadErrors
	}
	d := &Device{
		ctx:           ctx,
		portPath:      cfg.PortPath,
		baudRate:      cfg.BaudRate,
		maxReadErrors: cfg.MaxReadErrors,
		open:          OpenSerial,
		decoder:       NMEADecoder{},
		log:           log.Default(),
		done:          make(chan struct{}),
		closing:       abool.New(),
		dispatching:   abool.New(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.limiter = ratelimit.New(readRetryPerSecond)
	return d
}

// Name identifies the device in logs.
func (d *Device) Name() string { return "NMEA GPS " + d.portPath }

// Subscribe registers h for every decoded sentence. Registrations are
// additive and may happen while the device is open.
func (d *Device) Subscribe(h Handler) {
	d.handlersMu.Lock()
	d.handlers = append(d.handlers, h)
	d.handlersMu.Unlock()
}

// Open opens the port and starts the read loop. On failure the device stays
// in the created state and Open may be retried.
func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state {
	case StateOpen:
		return ErrAlreadyOpen
	case StateClosed:
		return ErrClosed
	}
	if err := d.ctx.Err(); err != nil {
		return fmt.Errorf("gps: open %s: %w", d.portPath, err)
	}

	port, err := d.open(d.portPath, d.baudRate)
	if err != nil {
		return &ConnectionError{PortPath: d.portPath, BaudRate: d.baudRate, Err: err}
	}
	d.port = port
	d.state = StateOpen
	d.log.Printf("[gps] connected to %s at %d baud", d.portPath, d.baudRate)

	go d.readLoop(port)
	go d.watch()
	return nil
}

// Close stops the read loop and closes the port. It is idempotent. Once it
// returns no handler will be invoked again.
//
// Close normally waits for the read loop to stop. Called while handlers are
// running, e.g. from a Handler itself, it returns without waiting; Done
// reports when the loop has finished.
func (d *Device) Close() error {
	d.mu.Lock()
	switch d.state {
	case StateClosed:
		d.mu.Unlock()
		d.wait()
		return nil
	case StateCreated:
		d.state = StateClosed
		close(d.done)
		d.mu.Unlock()
		return nil
	}
	d.state = StateClosed
	d.closing.Set()
	err := d.port.Close()
	d.mu.Unlock()

	d.wait()
	if err != nil && !isPortGone(err) {
		return fmt.Errorf("gps: close %s: %w", d.portPath, err)
	}
	return nil
}

// wait blocks until the read loop has stopped, unless it is in the middle of
// dispatching and might be the caller.
func (d *Device) wait() {
	if d.dispatching.IsSet() {
		return
	}
	<-d.done
}

// Done is closed once the device has stopped reading, whether through Close,
// context cancellation or an unrecoverable read error.
func (d *Device) Done() <-chan struct{} { return d.done }

// State reports the current lifecycle state.
func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Stats returns a snapshot of the read loop counters.
func (d *Device) Stats() Stats {
	return Stats{
		Lines:           d.lines.Load(),
		Sentences:       d.sentences.Load(),
		DecodeFailures:  d.decodeFailures.Load(),
		HandlerFailures: d.handlerFailures.Load(),
		ReadErrors:      d.readErrors.Load(),
	}
}

// watch closes the device when its context is cancelled.
func (d *Device) watch() {
	select {
	case <-d.ctx.Done():
		d.Close()
	case <-d.done:
	}
}

// release closes the port when the loop stops on its own.
func (d *Device) release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateOpen {
		return
	}
	d.state = StateClosed
	d.closing.Set()
	if err := d.port.Close(); err != nil && !isPortGone(err) {
		d.log.Printf("[gps] close %s: %v", d.portPath, err)
	}
}

func (d *Device) readLoop(port Port) {
	defer close(d.done)
	defer d.release()

	r := bufio.NewReaderSize(port, maxLineLength)
	failures := 0
	for {
		raw, err := readLine(r)
		switch {
		case err == nil:
			failures = 0
		case errors.Is(err, errLineTooLong):
			failures = 0
			d.decodeFailures.Add(1)
			decodeFailures.Inc()
			d.log.Printf("[gps] %s: discarded line: %v", d.portPath, err)
			continue
		case d.closing.IsSet():
			return
		case isPortGone(err):
			d.log.Printf("[gps] %s: connection lost: %v", d.portPath, err)
			return
		default:
			failures++
			d.readErrors.Add(1)
			readErrors.Inc()
			if failures >= d.maxReadErrors {
				d.log.Printf("[gps] %s: giving up after %d consecutive read errors: %v", d.portPath, failures, err)
				return
			}
			d.log.Printf("[gps] %s: read error (%d/%d): %v", d.portPath, failures, d.maxReadErrors, err)
			d.limiter.Take()
			continue
		}

		if d.closing.IsSet() {
			return
		}
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		d.lines.Add(1)
		linesRead.Inc()
		d.dispatch(line)
	}
}

// readLine returns the next line including its terminator. A line that does
// not fit the reader's buffer is skipped up to the next newline and reported
// as errLineTooLong.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadSlice('\n')
	if err == nil {
		return string(line), nil
	}
	if err != bufio.ErrBufferFull {
		return "", err
	}
	for err == bufio.ErrBufferFull {
		_, err = r.ReadSlice('\n')
	}
	if err != nil {
		return "", err
	}
	return "", errLineTooLong
}

func (d *Device) dispatch(line string) {
	s, err := d.decode(line)
	if err != nil {
		d.decodeFailures.Add(1)
		decodeFailures.Inc()
		d.log.Printf("[gps] %v", err)
		return
	}
	d.sentences.Add(1)
	sentencesDecoded.WithLabelValues(s.DataType()).Inc()

	d.handlersMu.RLock()
	handlers := d.handlers
	d.handlersMu.RUnlock()

	d.dispatching.Set()
	defer d.dispatching.UnSet()
	for i, h := range handlers {
		if d.closing.IsSet() {
			return
		}
		if err := invoke(h, s); err != nil {
			d.handlerFailures.Add(1)
			handlerFailures.Inc()
			d.log.Printf("[gps] %v", &HandlerError{Index: i, DataType: s.DataType(), Err: err})
		}
	}
}

// decode runs the decoder, normalising every failure, including a panic or a
// nil sentence from a custom decoder, to a *DecodeError.
func (d *Device) decode(line string) (s nmea.Sentence, err error) {
	defer func() {
		if r := recover(); r != nil {
			s, err = nil, &DecodeError{Line: line, Err: fmt.Errorf("decoder panic: %v", r)}
		}
	}()
	s, err = d.decoder.Decode(line)
	if err != nil {
		var de *DecodeError
		if !errors.As(err, &de) {
			err = &DecodeError{Line: line, Err: err}
		}
		return nil, err
	}
	if s == nil {
		return nil, &DecodeError{Line: line, Err: errors.New("decoder returned no sentence")}
	}
	return s, nil
}

func invoke(h Handler, s nmea.Sentence) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h(s)
}
