package extension

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/teslashibe/go-movenet/internal/log"
	"github.com/teslashibe/go-movenet/pkg/pose"
)

// Opcodes exposed to the host.
const (
	OpStart       = "start"
	OpStop        = "stop"
	OpSetMinScore = "setMinScore"
	OpGetX        = "getX"
	OpGetY        = "getY"
	OpGetScore    = "getScore"
	OpHasPose     = "hasPose"
)

// ErrUnknownOpcode is returned by Invoke for opcodes not in the descriptor.
var ErrUnknownOpcode = errors.New("extension: unknown opcode")

// DefaultStartTimeout bounds model loading plus camera warm-up.
const DefaultStartTimeout = 30 * time.Second

// Tracker is the tracking capability behind the blocks.
// *tracking.Controller satisfies it.
type Tracker interface {
	Start(ctx context.Context, v pose.Variant) error
	Stop()
	SetConfidenceThreshold(v float64) float64
	PartPosition(name string) (x, y int, ok bool)
	PartConfidence(name string) float64
	HasDetection() bool
}

// Extension maps host block calls onto a Tracker. Commands never fail
// from the host's point of view and reporters return 0/false when
// nothing is detected.
type Extension struct {
	tracker      Tracker
	logger       *slog.Logger
	startTimeout time.Duration
}

// Option configures an Extension.
type Option func(*Extension)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extension) { e.logger = l }
}

// WithStartTimeout bounds how long start may block.
func WithStartTimeout(d time.Duration) Option {
	return func(e *Extension) { e.startTimeout = d }
}

// New creates an extension over t.
func New(t Tracker, opts ...Option) *Extension {
	e := &Extension{
		tracker:      t,
		logger:       log.L(),
		startTimeout: DefaultStartTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Info returns the block descriptor.
func (e *Extension) Info() Info {
	return Describe()
}

// Start begins tracking with the named model. Unknown names select
// lightning. Failures are reported by the tracker, not returned.
func (e *Extension) Start(ctx context.Context, model any) {
	v := pose.ResolveVariant(toString(model))

	if e.startTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.startTimeout)
		defer cancel()
	}
	if err := e.tracker.Start(ctx, v); err != nil {
		e.logger.Debug("start block failed", "model", v, "error", err)
	}
}

// Stop ends tracking. Always succeeds.
func (e *Extension) Stop() {
	e.tracker.Stop()
}

// SetMinScore sets the confidence threshold, clamped to [0,1].
func (e *Extension) SetMinScore(score any) {
	e.tracker.SetConfidenceThreshold(toNumber(score))
}

// GetX returns the part's x pixel, or 0 if not detected.
func (e *Extension) GetX(part any) int {
	x, _, _ := e.tracker.PartPosition(toString(part))
	return x
}

// GetY returns the part's y pixel, or 0 if not detected.
func (e *Extension) GetY(part any) int {
	_, y, _ := e.tracker.PartPosition(toString(part))
	return y
}

// GetScore returns the part's score rounded to 3 decimals, or 0.
func (e *Extension) GetScore(part any) float64 {
	return e.tracker.PartConfidence(toString(part))
}

// HasPose reports whether anyone is detected.
func (e *Extension) HasPose() bool {
	return e.tracker.HasDetection()
}

// Invoke dispatches a block call by opcode. Commands return nil.
func (e *Extension) Invoke(ctx context.Context, opcode string, args map[string]any) (any, error) {
	switch opcode {
	case OpStart:
		e.Start(ctx, args["model"])
		return nil, nil
	case OpStop:
		e.Stop()
		return nil, nil
	case OpSetMinScore:
		e.SetMinScore(args["score"])
		return nil, nil
	case OpGetX:
		return e.GetX(args["part"]), nil
	case OpGetY:
		return e.GetY(args["part"]), nil
	case OpGetScore:
		return e.GetScore(args["part"]), nil
	case OpHasPose:
		return e.HasPose(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownOpcode, opcode)
}

// toNumber coerces a host argument to a number the way the host's Number()
// does. NaN and unparseable input become 0; out-of-range literals become
// ±Inf and are clamped by the caller.
func toNumber(v any) float64 {
	var f float64
	switch val := v.(type) {
	case nil:
		return 0
	case float64:
		f = val
	case float32:
		f = float64(val)
	case json.Number:
		f = parseNumber(val.String())
	case bool:
		if val {
			f = 1
		}
	case string:
		f = parseNumber(val)
	default:
		rv := reflect.ValueOf(v)
		switch {
		case rv.CanInt():
			f = float64(rv.Int())
		case rv.CanUint():
			f = float64(rv.Uint())
		case rv.CanFloat():
			f = rv.Float()
		}
	}
	if math.IsNaN(f) {
		return 0
	}
	return f
}

// parseNumber parses a numeric string. Overflow keeps the ±Inf that
// ParseFloat returns alongside ErrRange.
func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0
	}
	return f
}

// toString coerces a host argument to a string.
func toString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	}
	return fmt.Sprint(v)
}
