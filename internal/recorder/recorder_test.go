package recorder

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/handrelay/internal/pose"
	"github.com/ayusman/handrelay/internal/session"
)

func makePose(n int, x float64) pose.Pose {
	p := make(pose.Pose, n)
	for i := range p {
		p[i] = pose.Landmark{X: x, Y: float64(i) / 100, Z: -0.01}
	}
	return p
}

func TestRecorder_StartAppendSave(t *testing.T) {
	r := New()
	r.Start("Wave", 10)

	if !r.Recording() {
		t.Fatal("expected recorder to be recording after Start")
	}

	r.Append(makePose(21, 0.1))
	r.Append(makePose(5, 0.2)) // accepted without validation
	r.Append(nil)
	r.Append(makePose(21, 0.3))

	if r.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", r.Len())
	}

	path := filepath.Join(t.TempDir(), "wave.json")
	if err := r.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if r.Recording() || r.Len() != 0 {
		t.Error("expected recorder to be idle and empty after a successful save")
	}

	s, err := session.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if s.ActionName != "Wave" || s.FPS != 10 {
		t.Errorf("metadata = (%q, %v), want (Wave, 10)", s.ActionName, s.FPS)
	}
	if s.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", s.Len())
	}

	// Insertion order is preserved
	if s.Frames[0].Pose[0].X != 0.1 || s.Frames[3].Pose[0].X != 0.3 {
		t.Error("frames were not saved in insertion order")
	}
	if s.Frames[1].Valid() || s.Frames[2].Valid() {
		t.Error("short frames should be rejected at load time")
	}
}

func TestRecorder_AppendCopiesPose(t *testing.T) {
	r := New()
	r.Start("copy", 30)

	p := makePose(21, 0.5)
	r.Append(p)
	p[0].X = 99

	if got := r.Session().Frames[0].Pose[0].X; got != 0.5 {
		t.Errorf("buffered pose changed with caller's slice: X = %v", got)
	}
}

func TestRecorder_AppendWhileIdle(t *testing.T) {
	r := New()
	r.Append(makePose(21, 0.1))

	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0 while idle", r.Len())
	}
}

func TestRecorder_StartTwiceDiscards(t *testing.T) {
	r := New()
	r.Start("first", 30)
	r.Append(makePose(21, 0.1))
	r.Append(makePose(21, 0.2))

	r.Start("second", 15)

	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after restart", r.Len())
	}
	status, info := r.Status()
	if status != StatusRecording {
		t.Errorf("status = %s, want %s", status, StatusRecording)
	}
	if info.ActionName != "second" || info.FPS != 15 {
		t.Errorf("info = %+v, want second @ 15", info)
	}
}

func TestRecorder_SaveFailureKeepsBuffer(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to create blocker: %v", err)
	}

	r := New()
	r.Start("retry", 30)
	r.Append(makePose(21, 0.1))

	err := r.Save(filepath.Join(blocker, "retry.json"))
	if err == nil {
		t.Fatal("expected save error")
	}
	if !errors.Is(err, session.ErrIO) {
		t.Errorf("expected session.ErrIO, got %v", err)
	}
	if !r.Recording() || r.Len() != 1 {
		t.Fatal("expected buffer to survive a failed save")
	}

	// Retry to a writable location succeeds
	if err := r.Save(filepath.Join(dir, "retry.json")); err != nil {
		t.Fatalf("retry Save() error = %v", err)
	}
}

func TestRecorder_SaveEmpty(t *testing.T) {
	r := New()
	r.Start("empty", 30)

	if err := r.Save(filepath.Join(t.TempDir(), "x.json")); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
}

func TestRecorder_SaveTo(t *testing.T) {
	r := New()
	r.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	r.Start("thumbs up", 30)
	r.Append(makePose(21, 0.1))

	dir := t.TempDir()
	path, err := r.SaveTo(dir)
	if err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}

	want := filepath.Join(dir, "thumbs_up_20260102_030405.json")
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("saved file missing: %v", err)
	}
}

func TestRecorder_SaveToKeepsEarlierRecording(t *testing.T) {
	r := New()
	r.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	dir := t.TempDir()

	var paths []string
	for _, frames := range []int{3, 1, 2} {
		r.Start("wave", 30)
		for i := 0; i < frames; i++ {
			r.Append(makePose(21, 0.1))
		}
		path, err := r.SaveTo(dir)
		if err != nil {
			t.Fatalf("SaveTo() error = %v", err)
		}
		paths = append(paths, path)
	}

	want := []string{
		filepath.Join(dir, "wave_20260102_030405.json"),
		filepath.Join(dir, "wave_20260102_030405_2.json"),
		filepath.Join(dir, "wave_20260102_030405_3.json"),
	}
	for i, wantFrames := range []int{3, 1, 2} {
		if paths[i] != want[i] {
			t.Errorf("save %d path = %q, want %q", i+1, paths[i], want[i])
		}
		s, err := session.LoadFile(paths[i])
		if err != nil {
			t.Fatalf("LoadFile(%q) error = %v", paths[i], err)
		}
		if s.Len() != wantFrames {
			t.Errorf("%s has %d frames, want %d", filepath.Base(paths[i]), s.Len(), wantFrames)
		}
	}
}

func TestNumberedName(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "wave_20260102_030405.json"},
		{2, "wave_20260102_030405_2.json"},
		{12, "wave_20260102_030405_12.json"},
	}
	for _, tt := range tests {
		if got := numberedName("wave_20260102_030405.json", tt.n); got != tt.want {
			t.Errorf("numberedName(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestRecorder_StopDiscards(t *testing.T) {
	r := New()
	r.Start("x", 30)
	r.Append(makePose(21, 0.1))
	r.Stop()

	if r.Recording() || r.Len() != 0 {
		t.Error("expected Stop to discard the buffer")
	}
	if status, info := r.Status(); status != StatusIdle || info != nil {
		t.Errorf("Status() = (%s, %v), want idle", status, info)
	}
}
