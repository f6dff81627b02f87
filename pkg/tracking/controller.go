package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-movenet/internal/log"
	"github.com/teslashibe/go-movenet/pkg/camera"
	"github.com/teslashibe/go-movenet/pkg/debug"
	"github.com/teslashibe/go-movenet/pkg/estimator"
	"github.com/teslashibe/go-movenet/pkg/pose"
)

// State is the controller lifecycle state.
type State int32

const (
	Idle State = iota
	Starting
	Running
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	}
	return "unknown"
}

// session is one Start..Stop span. It exclusively owns its model and
// frame source.
type session struct {
	id        string
	variant   pose.Variant
	model     estimator.Model
	frames    camera.FrameSource
	startedAt time.Time

	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	done    chan struct{} // closed when the loop has exited
}

// Controller coordinates the camera, the model and the estimation loop.
// At most one session is active at a time.
type Controller struct {
	provider estimator.Provider
	source   camera.Source
	config   Config
	logger   *slog.Logger

	lifecycle sync.Mutex // Serializes Start and Stop

	mu          sync.Mutex // Protects session, startCancel and reporters
	session     *session
	startCancel context.CancelFunc
	reporters   []Reporter

	state     atomic.Int32
	threshold atomic.Uint64 // float64 bits
	latest    atomic.Pointer[pose.Pose]

	cycles           atomic.Uint64
	estimateFailures atomic.Uint64
	lastCycle        atomic.Int64 // nanoseconds
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithReporter adds a diagnostic reporter.
func WithReporter(r Reporter) Option {
	return func(c *Controller) { c.reporters = append(c.reporters, r) }
}

// New creates an idle controller. The provider and source are used for
// every session the controller runs.
func New(provider estimator.Provider, source camera.Source, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		provider: provider,
		source:   source,
		config:   cfg,
		logger:   log.L(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "tracking")
	c.reporters = append([]Reporter{LogReporter{Logger: c.logger}}, c.reporters...)
	c.SetConfidenceThreshold(cfg.MinScore)
	return c
}

// AddReporter registers another diagnostic reporter.
func (c *Controller) AddReporter(r Reporter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reporters = append(c.reporters, r)
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
}

// Start begins tracking with model variant v. A running session is fully
// stopped first. Start returns once the session is running, or after a
// failed start has rolled back to Idle.
func (c *Controller) Start(ctx context.Context, v pose.Variant) error {
	c.cancelStart()

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.stopLocked()
	return c.startLocked(ctx, v)
}

func (c *Controller) startLocked(ctx context.Context, v pose.Variant) error {
	startCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.startCancel = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.startCancel = nil
		c.mu.Unlock()
		cancel()
	}()

	id := uuid.NewString()
	c.setState(Starting)

	if !v.Valid() {
		return c.abort(id, v, KindInitialization, "resolve variant", fmt.Errorf("%w: %v", pose.ErrUnknownVariant, v))
	}

	model, err := c.provider.Initialize(startCtx, v)
	if err != nil {
		if startCtx.Err() != nil {
			return c.canceled(id, v, startCtx.Err())
		}
		return c.abort(id, v, KindInitialization, "initialize model", err)
	}
	if err := startCtx.Err(); err != nil {
		model.Dispose()
		return c.canceled(id, v, err)
	}

	frames, err := c.source.Open(startCtx)
	if err != nil {
		model.Dispose()
		if startCtx.Err() != nil {
			return c.canceled(id, v, startCtx.Err())
		}
		return c.abort(id, v, KindCapture, "open camera", err)
	}
	if err := startCtx.Err(); err != nil {
		frames.Close()
		model.Dispose()
		return c.canceled(id, v, err)
	}

	// The loop outlives the caller's context; only Stop ends it.
	sessCtx, sessCancel := context.WithCancel(context.Background())
	s := &session{
		id:        id,
		variant:   v,
		model:     model,
		frames:    frames,
		startedAt: time.Now(),
		ctx:       sessCtx,
		cancel:    sessCancel,
		done:      make(chan struct{}),
	}
	s.running.Store(true)

	c.latest.Store(nil)
	c.cycles.Store(0)
	c.estimateFailures.Store(0)
	c.lastCycle.Store(0)

	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
	c.setState(Running)

	c.report(Event{Kind: EventStarted, Session: id, Variant: v.String()})
	go c.run(s)
	return nil
}

// abort rolls a failed start back to Idle and reports it.
func (c *Controller) abort(id string, v pose.Variant, kind ErrorKind, op string, err error) error {
	c.latest.Store(nil)
	c.setState(Idle)

	terr := &Error{Kind: kind, Op: op, Session: id, Err: err}
	evt := EventInitializationFailed
	if kind == KindCapture {
		evt = EventCaptureFailed
	}
	c.report(Event{Kind: evt, Session: id, Variant: v.String(), Err: terr})
	return terr
}

func (c *Controller) canceled(id string, v pose.Variant, cause error) error {
	c.latest.Store(nil)
	c.setState(Idle)
	err := fmt.Errorf("%w: %v", ErrStartCanceled, cause)
	c.report(Event{Kind: EventStopped, Session: id, Variant: v.String(), Err: err})
	return err
}

// Stop ends the current session and releases its camera and model.
// It is a no-op when Idle and safe to call repeatedly.
func (c *Controller) Stop() {
	c.cancelStart()

	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	c.stopLocked()
}

func (c *Controller) cancelStart() {
	c.mu.Lock()
	cancel := c.startCancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// stopLocked tears down the active session. Caller holds c.lifecycle.
func (c *Controller) stopLocked() {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return
	}

	c.setState(Stopping)
	s.running.Store(false)
	s.cancel()
	<-s.done // the in-flight cycle finishes first

	var errs []error
	if err := s.model.Dispose(); err != nil {
		errs = append(errs, fmt.Errorf("dispose model: %w", err))
	}
	if err := s.frames.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close camera: %w", err))
	}

	c.latest.Store(nil)
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	c.setState(Idle)

	c.report(Event{Kind: EventStopped, Session: s.id, Variant: s.variant.String(), Err: errors.Join(errs...)})
}

// stopSession stops s if it is still the active session.
func (c *Controller) stopSession(s *session) {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	current := c.session
	c.mu.Unlock()
	if current == s {
		c.stopLocked()
	}
}

func (c *Controller) run(s *session) {
	err := c.loop(s)
	close(s.done)

	if err != nil {
		c.report(Event{
			Kind:    EventCaptureFailed,
			Session: s.id,
			Variant: s.variant.String(),
			Err:     &Error{Kind: KindCapture, Op: "next frame", Session: s.id, Err: err},
		})
		c.stopSession(s)
	}
}

// loop runs estimation cycles until the session stops. It returns a
// non-nil error only when the camera fails.
func (c *Controller) loop(s *session) error {
	var tick <-chan time.Time
	if c.config.FrameInterval > 0 {
		ticker := time.NewTicker(c.config.FrameInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for s.running.Load() {
		start := time.Now()

		frame, err := s.frames.NextFrame(s.ctx)
		if err != nil {
			if !s.running.Load() || s.ctx.Err() != nil {
				return nil
			}
			return err
		}

		p, err := s.model.Estimate(s.ctx, frame)
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			// Transient: keep the previous pose
			c.estimateFailures.Add(1)
			c.report(Event{
				Kind:    EventEstimationFailed,
				Session: s.id,
				Variant: s.variant.String(),
				Err:     &Error{Kind: KindEstimation, Op: "estimate", Session: s.id, Err: err},
			})
		} else {
			c.latest.Store(p)
		}

		elapsed := time.Since(start)
		c.cycles.Add(1)
		c.lastCycle.Store(int64(elapsed))
		debug.TrackLog("pose cycle", "session", s.id, "frame", frame.Seq, "detected", p != nil, "elapsed", elapsed)

		if tick == nil {
			runtime.Gosched()
			continue
		}
		select {
		case <-s.ctx.Done():
			return nil
		case <-tick:
		}
	}
	return nil
}

func (c *Controller) report(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	c.mu.Lock()
	reporters := make([]Reporter, len(c.reporters))
	copy(reporters, c.reporters)
	c.mu.Unlock()

	for _, r := range reporters {
		r.Report(e)
	}
}

// SetConfidenceThreshold sets the minimum keypoint score, clamped to
// [0,1]. NaN is treated as 0. Returns the stored value.
func (c *Controller) SetConfidenceThreshold(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	c.threshold.Store(math.Float64bits(v))
	return v
}

// ConfidenceThreshold returns the minimum keypoint score.
func (c *Controller) ConfidenceThreshold() float64 {
	return math.Float64frombits(c.threshold.Load())
}
