package tracking

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/teslashibe/go-movenet/internal/log"
	"github.com/teslashibe/go-movenet/pkg/estimator"
	"github.com/teslashibe/go-movenet/pkg/pose"
)

func TestRoundHalfUp(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{in: 100, want: 100},
		{in: 100.5, want: 101},
		{in: 100.49, want: 100},
		{in: -2.5, want: -2},
		{in: -2.51, want: -3},
		{in: 0.4, want: 0},
	}
	for _, tc := range tests {
		if got := roundHalfUp(tc.in); got != tc.want {
			t.Errorf("roundHalfUp(%v): got %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestRound3(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{in: 0.8, want: 0.8},
		{in: 0.12345, want: 0.123},
		{in: 0.9996, want: 1},
		{in: 0.3337, want: 0.334},
	}
	for _, tc := range tests {
		if got := round3(tc.in); got != tc.want {
			t.Errorf("round3(%v): got %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestQueries_Rounding(t *testing.T) {
	f := newFixture(t)
	p := nosePose(0.12345, 100.5, 49.4)
	f.est.EstimateFunc = estimator.StaticPose(p)
	f.ctrl.SetConfidenceThreshold(0.1)

	if err := f.ctrl.Start(context.Background(), pose.Lightning); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "detection", f.ctrl.HasDetection)

	x, y, ok := f.ctrl.PartPosition("nose")
	if !ok || x != 101 || y != 49 {
		t.Errorf("PartPosition: got (%d, %d, %v), want (101, 49, true)", x, y, ok)
	}
	if got := f.ctrl.PartConfidence("nose"); got != 0.123 {
		t.Errorf("PartConfidence: got %v, want 0.123", got)
	}
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t)

	idle := f.ctrl.Snapshot()
	if idle.Running || idle.Detected || len(idle.Parts) != pose.NumKeypoints {
		t.Fatalf("idle snapshot: %+v", idle)
	}

	f.est.EstimateFunc = estimator.StaticPose(nosePose(0.8, 100, 50))
	if err := f.ctrl.Start(context.Background(), pose.Thunder); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "detection", f.ctrl.HasDetection)

	snap := f.ctrl.Snapshot()
	if !snap.Running || !snap.Detected || snap.MinScore != 0.3 {
		t.Errorf("snapshot header: %+v", snap)
	}
	for i, r := range snap.Parts {
		if r.Part != pose.Names[i] {
			t.Errorf("part %d: got %q, want %q", i, r.Part, pose.Names[i])
		}
		if i == int(pose.Nose) {
			if !r.Detected || r.X != 100 || r.Y != 50 || r.Score != 0.8 {
				t.Errorf("nose reading: %+v", r)
			}
			continue
		}
		if r.Detected || r.X != 0 || r.Score != 0 {
			t.Errorf("%s should read as not detected: %+v", r.Part, r)
		}
	}
}

func TestStatus_Running(t *testing.T) {
	f := newFixture(t)
	f.est.EstimateFunc = estimator.StaticPose(nosePose(0.8, 100, 50))

	if err := f.ctrl.Start(context.Background(), pose.Thunder); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, "cycles", func() bool { return f.ctrl.Status().Stats.Cycles > 2 })

	st := f.ctrl.Status()
	if st.State != "running" || st.Variant != "thunder" || st.Session == "" {
		t.Errorf("status: %+v", st)
	}
	if st.StartedAt == nil || time.Since(*st.StartedAt) > time.Minute {
		t.Errorf("StartedAt: %v", st.StartedAt)
	}
	if !st.HasPose {
		t.Error("HasPose should be true")
	}
}

func TestError_Unwrap(t *testing.T) {
	base := errors.New("boom")
	err := &Error{Kind: KindCapture, Op: "open camera", Err: base}

	if !errors.Is(err, base) {
		t.Error("errors.Is should see the wrapped error")
	}
	if !strings.Contains(err.Error(), "capture failure: open camera: boom") {
		t.Errorf("Error(): %q", err.Error())
	}
	if KindOf(errors.New("plain")) != 0 {
		t.Error("KindOf plain error should be 0")
	}
	if KindEstimation.String() != "estimation" || ErrorKind(0).String() != "unknown" {
		t.Error("ErrorKind strings")
	}
}

func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	r := LogReporter{Logger: log.New("info", &buf)}

	r.Report(Event{Kind: EventStarted, Session: "s1", Variant: "lightning"})
	r.Report(Event{Kind: EventCaptureFailed, Session: "s1", Err: errors.New("unplugged")})
	r.Report(Event{Kind: EventEstimationFailed, Session: "s1", Err: errors.New("quiet")})

	out := buf.String()
	if !strings.Contains(out, "pose tracking started") {
		t.Error("started event not logged")
	}
	if !strings.Contains(out, "unplugged") {
		t.Error("capture failure not logged")
	}
	if strings.Contains(out, "quiet") {
		t.Error("estimation failures should log at debug level only")
	}
}

func TestReporterFunc(t *testing.T) {
	var got Event
	ReporterFunc(func(e Event) { got = e }).Report(Event{Kind: EventStopped})
	if got.Kind != EventStopped {
		t.Error("ReporterFunc did not forward the event")
	}
	if (Event{}).Message() != "" || (Event{Err: errors.New("x")}).Message() != "x" {
		t.Error("Event.Message")
	}
}

func TestController_AddReporter(t *testing.T) {
	f := newFixture(t)
	late := &recorder{}
	f.ctrl.AddReporter(late)

	if err := f.ctrl.Start(context.Background(), pose.Lightning); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.ctrl.Stop()

	if late.count(EventStarted) != 1 || late.count(EventStopped) != 1 {
		t.Errorf("late reporter missed events: %d started, %d stopped", late.count(EventStarted), late.count(EventStopped))
	}
}
