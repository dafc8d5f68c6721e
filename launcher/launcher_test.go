//go:build unix

package launcher

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

const testGrace = 200 * time.Millisecond

func newTestLauncher(services []Service, out io.Writer) *Launcher {
	return New(services, golog.NewLogger("test"),
		WithOutput(out),
		WithChildOutput(io.Discard, io.Discard),
	)
}

// pidService runs a long-lived shell that records its pid in dir/name.pid.
func pidService(dir, name string) Service {
	pidFile := filepath.Join(dir, name+".pid")
	return Service{
		Name:    name,
		Command: []string{"sh", "-c", "echo $$ > " + pidFile + "; exec sleep 30"},
		Grace:   testGrace,
	}
}

func readPid(t *testing.T, dir, name string) int {
	t.Helper()
	var pid int
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(filepath.Join(dir, name+".pid"))
		if err != nil {
			return false
		}
		pid, err = strconv.Atoi(strings.TrimSpace(string(data)))
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	return pid
}

func processGone(pid int) func() bool {
	return func() bool { return unix.Kill(pid, 0) == unix.ESRCH }
}

func TestStart_MissingArtifactSpawnsNothing(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "spawned")

	api := Service{
		Name:     "api",
		Command:  []string{"touch", marker},
		Requires: []string{filepath.Join(dir, "best.onnx")},
		Grace:    testGrace,
	}
	backend := Service{
		Name:    "backend",
		Prepare: []string{"touch", marker},
		Command: []string{"touch", marker},
		Grace:   testGrace,
	}

	var out bytes.Buffer
	l := newTestLauncher([]Service{api, backend}, &out)

	err := l.Start(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrMissingArtifact))
	require.Empty(t, l.Processes())
	require.NoFileExists(t, marker)
	require.Contains(t, out.String(), "file not found")
}

func TestStart_SecondServiceFailureStopsFirst(t *testing.T) {
	dir := t.TempDir()
	backend := Service{
		Name:    "backend",
		Command: []string{filepath.Join(dir, "no-such-binary")},
		Grace:   testGrace,
	}

	var out bytes.Buffer
	l := newTestLauncher([]Service{pidService(dir, "api"), backend}, &out)

	start := time.Now()
	err := l.Start(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNotStarted))
	require.Less(t, time.Since(start), 5*time.Second)

	pid := readPid(t, dir, "api")
	require.Eventually(t, processGone(pid), 5*time.Second, 20*time.Millisecond)
	require.Empty(t, l.Processes())
	require.Contains(t, out.String(), "Failed to start backend")
}

func TestStart_PrepareFailure(t *testing.T) {
	dir := t.TempDir()
	backend := Service{
		Name:    "backend",
		Prepare: []string{"false"},
		Command: []string{"sleep", "30"},
		Grace:   testGrace,
	}

	l := newTestLauncher([]Service{pidService(dir, "api"), backend}, io.Discard)

	err := l.Start(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNotStarted))

	pid := readPid(t, dir, "api")
	require.Eventually(t, processGone(pid), 5*time.Second, 20*time.Millisecond)
}

func TestStart_ExitDuringGraceIsNotStarted(t *testing.T) {
	l := newTestLauncher([]Service{{
		Name:    "short-lived",
		Command: []string{"true"},
		Grace:   time.Second,
	}}, io.Discard)

	err := l.Start(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrNotStarted))
	require.Empty(t, l.Processes())
}

func TestStart_CancelledDuringGrace(t *testing.T) {
	dir := t.TempDir()
	svc := pidService(dir, "api")
	svc.Grace = 10 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	l := newTestLauncher([]Service{svc}, io.Discard)

	errCh := make(chan error, 1)
	go func() { errCh <- l.Start(ctx) }()

	pid := readPid(t, dir, "api")
	cancel()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	require.Eventually(t, processGone(pid), 5*time.Second, 20*time.Millisecond)
}

func TestRun_StopsAllOnCancel(t *testing.T) {
	dir := t.TempDir()
	api := pidService(dir, "api")
	api.URL = "http://localhost:5001"
	backend := pidService(dir, "backend")

	var out bytes.Buffer
	l := New([]Service{api, backend}, golog.NewLogger("test"),
		WithOutput(&out),
		WithChildOutput(io.Discard, io.Discard),
		WithTitle("Test Services"),
		WithLinks(Link{Name: "Frontend", URL: "http://localhost:5173"}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	var procs []*Process
	require.Eventually(t, func() bool {
		procs = l.Processes()
		return len(procs) == 2
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	for _, p := range procs {
		select {
		case <-p.Done():
		case <-time.After(5 * time.Second):
			t.Fatalf("%s still running", p.Name)
		}
	}

	console := out.String()
	require.Contains(t, console, "Starting Test Services")
	require.Contains(t, console, "All services started successfully")
	require.Contains(t, console, "Frontend: http://localhost:5173")
	require.Contains(t, console, "api: http://localhost:5001")
	require.Contains(t, console, "Services stopped")
}

func TestTerminate_AfterExitIsNoop(t *testing.T) {
	p, err := startProcess(Service{Name: "true", Command: []string{"true"}}, io.Discard, io.Discard)
	require.NoError(t, err)

	<-p.Done()
	require.True(t, p.Exited())
	require.NoError(t, p.Terminate())
}

func TestStartProcess_EmptyCommand(t *testing.T) {
	_, err := startProcess(Service{Name: "empty"}, io.Discard, io.Discard)
	require.Error(t, err)
}
