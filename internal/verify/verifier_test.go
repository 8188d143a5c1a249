package verify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashreel/hashreel-agent/internal/toolrun"
)

type fakeRunner struct {
	fn func(name string, args []string) (toolrun.Result, error)
}

func (f *fakeRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (toolrun.Result, error) {
	return f.fn(name, args)
}

func writeArtifact(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "7000000000000000001.mp4")
	if err := os.WriteFile(path, []byte("fake video bytes"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestVerify_Pass(t *testing.T) {
	path := writeArtifact(t)
	runner := &fakeRunner{fn: func(name string, args []string) (toolrun.Result, error) {
		return toolrun.Result{ExitCode: 0, Stdout: "h264\n"}, nil
	}}

	v := New(runner, "ffprobe", 30*time.Second, nil)
	if err := v.Verify(context.Background(), path, "7000000000000000001"); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("artifact removed on successful verification")
	}
}

func TestVerify_EmptyCodec_DeletesArtifact(t *testing.T) {
	path := writeArtifact(t)
	runner := &fakeRunner{fn: func(name string, args []string) (toolrun.Result, error) {
		return toolrun.Result{ExitCode: 0, Stdout: "  \n"}, nil
	}}

	v := New(runner, "ffprobe", 30*time.Second, nil)
	if err := v.Verify(context.Background(), path, "id"); err == nil {
		t.Fatal("Verify() = nil for empty codec output")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupt artifact not deleted")
	}
}

func TestVerify_NonzeroExit_DeletesArtifact(t *testing.T) {
	path := writeArtifact(t)
	runner := &fakeRunner{fn: func(name string, args []string) (toolrun.Result, error) {
		return toolrun.Result{ExitCode: 1, StderrTail: "moov atom not found"}, nil
	}}

	v := New(runner, "ffprobe", 30*time.Second, nil)
	if err := v.Verify(context.Background(), path, "id"); err == nil {
		t.Fatal("Verify() = nil for nonzero probe exit")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("corrupt artifact not deleted")
	}
}

func TestVerify_Timeout_DeletesArtifact(t *testing.T) {
	path := writeArtifact(t)
	runner := &fakeRunner{fn: func(name string, args []string) (toolrun.Result, error) {
		return toolrun.Result{ExitCode: -1, TimedOut: true}, nil
	}}

	v := New(runner, "ffprobe", 30*time.Second, nil)
	if err := v.Verify(context.Background(), path, "id"); err == nil {
		t.Fatal("Verify() = nil after probe timeout")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("artifact not deleted after timeout")
	}
}

func TestVerify_ProberMissing_DegradedPass(t *testing.T) {
	path := writeArtifact(t)
	runner := &fakeRunner{fn: func(name string, args []string) (toolrun.Result, error) {
		return toolrun.Result{ExitCode: -1}, fmt.Errorf("%w: ffprobe", toolrun.ErrToolMissing)
	}}

	v := New(runner, "ffprobe", 30*time.Second, nil)
	if err := v.Verify(context.Background(), path, "id"); err != nil {
		t.Fatalf("Verify() error = %v, want degraded pass when prober missing", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Error("unverified artifact was deleted in degraded mode")
	}
}

func TestVerify_ProbeArgs(t *testing.T) {
	path := writeArtifact(t)
	var gotName string
	var gotArgs []string
	runner := &fakeRunner{fn: func(name string, args []string) (toolrun.Result, error) {
		gotName = name
		gotArgs = args
		return toolrun.Result{ExitCode: 0, Stdout: "h264"}, nil
	}}

	v := New(runner, "ffprobe", 30*time.Second, nil)
	if err := v.Verify(context.Background(), path, "id"); err != nil {
		t.Fatal(err)
	}
	if gotName != "ffprobe" {
		t.Errorf("tool = %s, want ffprobe", gotName)
	}
	want := []string{"-v", "error", "-select_streams", "v:0", "-show_entries", "stream=codec_name", "-of", "default=noprint_wrappers=1:nokey=1", path}
	if len(gotArgs) != len(want) {
		t.Fatalf("args = %v, want %v", gotArgs, want)
	}
	for i := range want {
		if gotArgs[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, gotArgs[i], want[i])
		}
	}
}
