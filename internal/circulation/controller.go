// Package circulation drives the scan, checkout, return and track workflow of a
// circulation desk.
//
// A Controller owns one scan session. Every change to it happens on the
// goroutine running Run, in response to a discrete event: a decoded code, an
// operator action, a request result or the reset timer. The capture device is
// held exactly while the session has no captured code.
package circulation

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lehigh-university-libraries/circdesk/internal/journal"
	"github.com/lehigh-university-libraries/circdesk/internal/models"
)

// DefaultResetDelay is how long a success banner stays up before scanning resumes
const DefaultResetDelay = 1500 * time.Millisecond

// API is the part of the circulation backend the desk needs
type API interface {
	Checkout(ctx context.Context, qrData string, memberID int64) (*models.Confirmation, error)
	Return(ctx context.Context, qrData string) (*models.Confirmation, error)
	Track(ctx context.Context, qrData string) (*models.TrackResult, error)
}

// Capturer is the scanning device lifecycle
type Capturer interface {
	Start(ctx context.Context, onDecoded func(code string)) error
	Stop()
	Active() bool
}

// Recorder receives an entry for every request outcome
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Option configures a Controller
type Option func(*Controller)

// WithResetDelay sets how long success feedback is shown before re-arming
func WithResetDelay(d time.Duration) Option {
	return func(c *Controller) { c.resetDelay = d }
}

// WithAutoDispatch sends checkout and return requests as soon as a code is captured
func WithAutoDispatch(auto bool) Option {
	return func(c *Controller) { c.autoDispatch = auto }
}

// WithRecorder journals every request outcome
func WithRecorder(r Recorder, station string) Option {
	return func(c *Controller) {
		c.recorder = r
		c.station = station
	}
}

// WithOnChange registers an observer called on the event loop after each change
func WithOnChange(fn func(Snapshot)) Option {
	return func(c *Controller) { c.onChange = fn }
}

// WithMode sets the initial mode
func WithMode(m Mode) Option {
	return func(c *Controller) { c.mode = m }
}

// WithMember sets the initially selected member
func WithMember(id int64) Option {
	return func(c *Controller) { c.memberID = id }
}

// Controller is the circulation workflow state machine
type Controller struct {
	api          API
	capture      Capturer
	recorder     Recorder
	station      string
	resetDelay   time.Duration
	autoDispatch bool
	onChange     func(Snapshot)

	events  chan func()
	inbox   *inbox
	done    chan struct{}
	running atomic.Bool

	published atomic.Pointer[Snapshot]

	// Owned by the Run goroutine.
	ctx      context.Context
	mode     Mode
	phase    Phase
	code     string
	memberID int64
	pending  bool
	feedback *Feedback
	lookup   *LookupView
	epoch    uint64
	timer    *time.Timer
	last     Snapshot
	wg       sync.WaitGroup
}

// NewController creates a controller in checkout mode with no member selected
func NewController(api API, capture Capturer, opts ...Option) *Controller {
	c := &Controller{
		api:        api,
		capture:    capture,
		resetDelay: DefaultResetDelay,
		mode:       ModeCheckout,
		events:     make(chan func(), 16),
		inbox:      newInbox(),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.published.Store(&Snapshot{Mode: c.mode, MemberID: c.memberID})
	return c
}

// Run arms the capture device and processes events until ctx is cancelled.
// The device is released before Run returns.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	c.ctx = ctx
	defer close(c.done)

	slog.Info("Circulation desk ready", "mode", c.mode, "member_id", c.memberID)
	c.rearm()
	c.publish()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		case fn := <-c.events:
			fn()
			c.publish()
		case <-c.inbox.ready:
			for _, fn := range c.inbox.take() {
				fn()
			}
			c.publish()
		}
	}
}

func (c *Controller) shutdown() {
	c.stopTimer()
	c.capture.Stop()
	c.epoch++
	// Results already queued are stale now; they are only journaled.
	for _, fn := range c.inbox.close() {
		fn()
	}
	slog.Info("Circulation desk stopped")
}

// Wait blocks until requests started by the controller have finished
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Snapshot returns the current scan session state
func (c *Controller) Snapshot() Snapshot {
	return *c.published.Load()
}

// Submit feeds a manually typed code into the same pipeline as a scan
func (c *Controller) Submit(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return ErrEmptyCode
	}
	return c.call(ctx, func() error {
		if c.code != "" {
			return ErrCapturePending
		}
		c.capture.Stop()
		c.captured(code, "manual")
		return nil
	})
}

// Dispatch sends the checkout or return request for the captured code
func (c *Controller) Dispatch(ctx context.Context) error {
	return c.call(ctx, c.dispatch)
}

// Cancel discards the captured code without contacting the server
func (c *Controller) Cancel(ctx context.Context) error {
	return c.call(ctx, func() error {
		if c.code == "" {
			return ErrNoCapture
		}
		if c.pending {
			slog.Info("Cancelled with a request in flight, its result will be discarded", "code", c.code, "mode", c.mode)
		}
		c.reset()
		return nil
	})
}

// Dismiss closes the lookup view, whatever state it is in, and resumes scanning
func (c *Controller) Dismiss(ctx context.Context) error {
	return c.call(ctx, func() error {
		if c.code == "" && c.lookup == nil {
			return ErrNoCapture
		}
		c.reset()
		return nil
	})
}

// SetMode switches mode, discarding any captured code and feedback
func (c *Controller) SetMode(ctx context.Context, m Mode) error {
	if _, err := ParseMode(string(m)); err != nil {
		return err
	}
	return c.call(ctx, func() error {
		if c.mode != m {
			slog.Info("Mode changed", "from", c.mode, "to", m)
		}
		c.mode = m
		c.reset()
		return nil
	})
}

// SelectMember chooses the borrower for checkouts
func (c *Controller) SelectMember(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalidMember
	}
	return c.call(ctx, func() error {
		c.memberID = id
		return nil
	})
}

// ClearMember removes the member selection
func (c *Controller) ClearMember(ctx context.Context) error {
	return c.call(ctx, func() error {
		c.memberID = 0
		return nil
	})
}

// send queues an operator call on the event loop; it reports false once the
// loop has exited
func (c *Controller) send(fn func()) bool {
	select {
	case c.events <- fn:
		return true
	case <-c.done:
		return false
	}
}

// call runs fn on the event loop and waits for its result
func (c *Controller) call(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	event := func() {
		err := fn()
		c.publish()
		reply <- err
	}
	if !c.send(event) {
		return ErrStopped
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrStopped
		}
	}
}

// reset clears the captured code and everything derived from it, then re-arms
func (c *Controller) reset() {
	c.code = ""
	c.feedback = nil
	c.lookup = nil
	c.rearm()
}

// rearm invalidates timers and outstanding results and restarts capture
func (c *Controller) rearm() {
	c.epoch++
	c.stopTimer()
	c.pending = false
	c.phase = PhaseScanning

	gen := c.epoch
	err := c.capture.Start(c.ctx, func(code string) {
		c.inbox.push(func() { c.decoded(gen, code) })
	})
	if err != nil {
		slog.Error("Unable to start capture device", "err", err)
		c.feedback = &Feedback{Kind: FeedbackError, Text: "Error: scanner unavailable: " + err.Error()}
	}
}

func (c *Controller) decoded(gen uint64, code string) {
	if gen != c.epoch || c.code != "" {
		slog.Debug("Dropping decode from a stale capture", "code", code)
		return
	}
	c.captured(code, "scan")
}

func (c *Controller) captured(code, source string) {
	c.code = code
	c.feedback = nil
	c.lookup = nil
	c.phase = PhaseCaptured
	slog.Info("Code captured", "code", code, "mode", c.mode, "source", source)

	switch {
	case c.mode == ModeTrack:
		c.startLookup()
	case c.autoDispatch:
		if err := c.dispatch(); err != nil {
			slog.Debug("Automatic dispatch not sent", "err", err)
		}
	}
}

func (c *Controller) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) publish() {
	var capturing bool
	if c.capture != nil {
		capturing = c.capture.Active()
	}
	s := Snapshot{
		Mode:      c.mode,
		Phase:     c.phase,
		Code:      c.code,
		MemberID:  c.memberID,
		Pending:   c.pending,
		Capturing: capturing,
		Lookup:    c.lookup,
	}
	if c.feedback != nil {
		fb := *c.feedback
		s.Feedback = &fb
	}
	c.published.Store(&s)

	if c.onChange != nil && !s.equal(c.last) {
		c.onChange(s)
	}
	c.last = s
}

func (c *Controller) record(e journal.Entry) {
	if c.recorder == nil {
		return
	}
	e.Station = c.station
	if err := c.recorder.Record(context.WithoutCancel(c.ctx), e); err != nil {
		slog.Error("Unable to journal request", "code", e.Code, "err", err)
	}
}
