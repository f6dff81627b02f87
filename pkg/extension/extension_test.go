package extension

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/teslashibe/go-movenet/internal/log"
	"github.com/teslashibe/go-movenet/pkg/camera"
	"github.com/teslashibe/go-movenet/pkg/estimator"
	"github.com/teslashibe/go-movenet/pkg/pose"
	"github.com/teslashibe/go-movenet/pkg/tracking"
)

func TestDescribe(t *testing.T) {
	info := Describe()

	if info.ID != ID || info.Name != Name || info.Color1 != Color1 {
		t.Errorf("identity: %+v", info)
	}

	wantOps := []string{OpStart, OpStop, OpSetMinScore, OpGetX, OpGetY, OpGetScore, OpHasPose}
	if len(info.Blocks) != len(wantOps) {
		t.Fatalf("blocks: got %d, want %d", len(info.Blocks), len(wantOps))
	}
	for i, op := range wantOps {
		if info.Blocks[i].Opcode != op {
			t.Errorf("block %d: got %q, want %q", i, info.Blocks[i].Opcode, op)
		}
	}
	if info.Blocks[6].BlockType != BlockBoolean || info.Blocks[3].BlockType != BlockReporter {
		t.Error("reporter block types")
	}

	parts := info.Menus[PartMenu]
	if !parts.AcceptReporters || len(parts.Items) != pose.NumKeypoints || parts.Items[0] != "nose" {
		t.Errorf("part menu: %+v", parts)
	}
	models := info.Menus[ModelMenu]
	if len(models.Items) != 2 || models.Items[0] != "lightning" || models.Items[1] != "thunder" {
		t.Errorf("model menu: %+v", models)
	}

	// Mutating one copy must not leak into the next
	parts.Items[0] = "tail"
	if Describe().Menus[PartMenu].Items[0] != "nose" {
		t.Error("Describe should return a fresh copy")
	}
}

func TestDescribe_JSON(t *testing.T) {
	data, err := json.Marshal(Describe())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	blocks := raw["blocks"].([]any)
	first := blocks[0].(map[string]any)
	if first["blockType"] != "command" || first["opcode"] != "start" {
		t.Errorf("host field names: %v", first)
	}
	arg := first["arguments"].(map[string]any)["model"].(map[string]any)
	if arg["menu"] != ModelMenu || arg["defaultValue"] != "lightning" {
		t.Errorf("model argument: %v", arg)
	}
}

func TestToNumber(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{name: "float", in: 0.5, want: 0.5},
		{name: "int", in: 2, want: 2},
		{name: "string", in: "0.7", want: 0.7},
		{name: "padded string", in: " 1 ", want: 1},
		{name: "garbage", in: "abc", want: 0},
		{name: "empty", in: "", want: 0},
		{name: "nil", in: nil, want: 0},
		{name: "true", in: true, want: 1},
		{name: "nan", in: math.NaN(), want: 0},
		{name: "json number", in: json.Number("0.25"), want: 0.25},
		{name: "int32", in: int32(1), want: 1},
		{name: "uint8", in: uint8(3), want: 3},
		{name: "int64", in: int64(-2), want: -2},
		{name: "overflow", in: "1e400", want: math.Inf(1)},
		{name: "negative overflow", in: "-1e400", want: math.Inf(-1)},
		{name: "infinity", in: "Infinity", want: math.Inf(1)},
		{name: "underflow", in: "1e-400", want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := toNumber(tc.in); got != tc.want {
				t.Errorf("toNumber(%v): got %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestToString(t *testing.T) {
	if toString("nose") != "nose" || toString(nil) != "" || toString(3.0) != "3" || toString(true) != "true" {
		t.Error("toString coercions")
	}
}

// newExtension wires an Extension to a real controller over mocks.
func newExtension(t *testing.T, p *pose.Pose) (*Extension, *tracking.Controller, *estimator.Mock, *camera.Mock) {
	t.Helper()
	est := estimator.NewMock()
	est.EstimateFunc = estimator.StaticPose(p)
	src := camera.NewMock()
	ctrl := tracking.New(est, src, tracking.Config{FrameInterval: time.Millisecond, MinScore: 0.3},
		tracking.WithLogger(log.Discard()))
	t.Cleanup(ctrl.Stop)
	return New(ctrl, WithLogger(log.Discard())), ctrl, est, src
}

func nosePose() *pose.Pose {
	p := &pose.Pose{}
	for i := range p.Keypoints {
		p.Keypoints[i] = pose.Keypoint{Part: pose.Part(i), Score: 0.05}
	}
	p.Keypoints[pose.Nose] = pose.Keypoint{Part: pose.Nose, X: 100, Y: 50, Score: 0.8}
	return p
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out")
}

func TestExtension_IdleReporters(t *testing.T) {
	ext, _, _, _ := newExtension(t, nosePose())

	for _, name := range pose.Names {
		if ext.GetX(name) != 0 || ext.GetY(name) != 0 || ext.GetScore(name) != 0 {
			t.Errorf("%s should report 0 while idle", name)
		}
	}
	if ext.HasPose() {
		t.Error("HasPose should be false while idle")
	}
	ext.Stop() // no-op
}

func TestExtension_TrackingFlow(t *testing.T) {
	ext, ctrl, est, _ := newExtension(t, nosePose())
	ctx := context.Background()

	ext.Start(ctx, "thunder")
	if got := est.Models()[0].Variant; got != pose.Thunder {
		t.Errorf("variant: got %v, want thunder", got)
	}
	waitFor(t, ext.HasPose)

	if ext.GetX("nose") != 100 || ext.GetY("nose") != 50 || ext.GetScore("nose") != 0.8 {
		t.Errorf("nose: x=%d y=%d score=%v", ext.GetX("nose"), ext.GetY("nose"), ext.GetScore("nose"))
	}

	ext.SetMinScore(0.9)
	if ext.GetX("nose") != 0 || ext.HasPose() {
		t.Error("threshold 0.9 should hide the nose")
	}

	ext.SetMinScore(-5)
	if ctrl.ConfidenceThreshold() != 0 {
		t.Errorf("setMinScore(-5): got %v", ctrl.ConfidenceThreshold())
	}
	ext.SetMinScore(5)
	if ctrl.ConfidenceThreshold() != 1 {
		t.Errorf("setMinScore(5): got %v", ctrl.ConfidenceThreshold())
	}
	ext.SetMinScore(0.3)
	ext.SetMinScore(int32(1))
	if ctrl.ConfidenceThreshold() != 1 {
		t.Errorf("setMinScore(int32(1)): got %v", ctrl.ConfidenceThreshold())
	}
	ext.SetMinScore("1e400")
	if ctrl.ConfidenceThreshold() != 1 {
		t.Errorf("setMinScore(\"1e400\"): got %v", ctrl.ConfidenceThreshold())
	}
	ext.SetMinScore("0.3")

	ext.Stop()
	ext.Stop()
	if ext.GetX("nose") != 0 || ext.HasPose() {
		t.Error("queries after stop should behave like idle")
	}
}

func TestExtension_StartUnknownModel(t *testing.T) {
	ext, _, est, _ := newExtension(t, nosePose())

	ext.Start(context.Background(), "multipose")
	if got := est.Models()[0].Variant; got != pose.Lightning {
		t.Errorf("unknown model should fall back to lightning, got %v", got)
	}
}

func TestExtension_StartSwallowsErrors(t *testing.T) {
	ext, ctrl, _, src := newExtension(t, nosePose())
	src.OpenFunc = func(ctx context.Context) (camera.FrameSource, error) {
		return nil, camera.ErrNoDevice
	}

	ext.Start(context.Background(), "lightning") // must not panic or block
	if ctrl.State() != tracking.Idle {
		t.Errorf("State: got %v", ctrl.State())
	}
	if ext.HasPose() {
		t.Error("HasPose after failed start")
	}
}

func TestExtension_Invoke(t *testing.T) {
	ext, _, _, _ := newExtension(t, nosePose())
	ctx := context.Background()

	if res, err := ext.Invoke(ctx, OpStart, map[string]any{"model": "lightning"}); err != nil || res != nil {
		t.Fatalf("start: %v, %v", res, err)
	}
	waitFor(t, ext.HasPose)

	tests := []struct {
		opcode string
		args   map[string]any
		want   any
	}{
		{opcode: OpGetX, args: map[string]any{"part": "nose"}, want: 100},
		{opcode: OpGetY, args: map[string]any{"part": "nose"}, want: 50},
		{opcode: OpGetScore, args: map[string]any{"part": "nose"}, want: 0.8},
		{opcode: OpGetX, args: map[string]any{"part": "tail"}, want: 0},
		{opcode: OpGetX, args: nil, want: 0},
		{opcode: OpHasPose, args: nil, want: true},
	}
	for _, tc := range tests {
		got, err := ext.Invoke(ctx, tc.opcode, tc.args)
		if err != nil {
			t.Errorf("%s: %v", tc.opcode, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%s(%v): got %v, want %v", tc.opcode, tc.args, got, tc.want)
		}
	}

	if _, err := ext.Invoke(ctx, OpSetMinScore, map[string]any{"score": 0.95}); err != nil {
		t.Fatal(err)
	}
	if got, _ := ext.Invoke(ctx, OpHasPose, nil); got != false {
		t.Error("hasPose should be false at 0.95")
	}

	if _, err := ext.Invoke(ctx, "dance", nil); !errors.Is(err, ErrUnknownOpcode) {
		t.Errorf("unknown opcode: got %v", err)
	}
	if _, err := ext.Invoke(ctx, OpStop, nil); err != nil {
		t.Fatal(err)
	}
}

func TestExtension_StartTimeout(t *testing.T) {
	est := estimator.NewMock()
	est.InitializeFunc = func(ctx context.Context, v pose.Variant) (estimator.Model, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	ctrl := tracking.New(est, camera.NewMock(), tracking.DefaultConfig(), tracking.WithLogger(log.Discard()))
	ext := New(ctrl, WithLogger(log.Discard()), WithStartTimeout(20*time.Millisecond))

	done := make(chan struct{})
	go func() {
		ext.Start(context.Background(), "lightning")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start ignored its timeout")
	}
	if ctrl.State() != tracking.Idle {
		t.Errorf("State: got %v", ctrl.State())
	}
}
