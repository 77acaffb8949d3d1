package app

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/narrate/internal/ipc"
	"github.com/rbright/narrate/internal/transport"
)

func TestExecuteHelp(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--help"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "Usage:")
	require.Empty(t, stderr.String())
}

func TestExecuteVersion(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"version"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "narrate")
	require.Empty(t, stderr.String())
}

func TestExecuteUnknownCommand(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"definitely-not-a-command"}, &stdout, &stderr)
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown command")
	require.Contains(t, stderr.String(), "Usage:")
}

func TestRunnerRemoteCommandWithoutSession(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "no open narrate session")
	require.Empty(t, stdout.String())
}

func TestRunnerForwardsRequests(t *testing.T) {
	paths := setupRunnerEnv(t)
	requests := make(chan ipc.Request, 8)

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "narrate.sock"), func(_ context.Context, req ipc.Request) ipc.Response {
		requests <- req
		return ipc.Response{OK: true, State: "idle", Paragraph: 0, Count: 3}
	})
	defer shutdown()

	tests := []struct {
		args  []string
		check func(t *testing.T, req ipc.Request)
	}{
		{args: []string{"next"}, check: func(t *testing.T, req ipc.Request) { require.Equal(t, ipc.CommandNext, req.Command) }},
		{args: []string{"goto", "3"}, check: func(t *testing.T, req ipc.Request) {
			require.Equal(t, ipc.CommandGoTo, req.Command)
			require.NotNil(t, req.Index)
			require.Equal(t, 2, *req.Index)
		}},
		{args: []string{"play", "2.5"}, check: func(t *testing.T, req ipc.Request) {
			require.Equal(t, ipc.CommandPlay, req.Command)
			require.NotNil(t, req.OffsetMS)
			require.Equal(t, int64(2500), *req.OffsetMS)
		}},
		{args: []string{"set", "channels=2"}, check: func(t *testing.T, req ipc.Request) {
			require.Equal(t, ipc.CommandSet, req.Command)
			require.Equal(t, map[string]string{"channels": "2"}, req.Settings)
		}},
	}

	for _, tc := range tests {
		t.Run(tc.args[0], func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			runner := Runner{Stdout: &stdout, Stderr: &stderr}
			exitCode := runner.Execute(context.Background(), tc.args)
			require.Equal(t, 0, exitCode, stderr.String())
			require.Equal(t, "idle | paragraph 1/3 | not recorded\n", stdout.String())
			tc.check(t, <-requests)
		})
	}
}

func TestRunnerRemoteRejectionExitsNonZero(t *testing.T) {
	paths := setupRunnerEnv(t)

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "narrate.sock"), func(_ context.Context, req ipc.Request) ipc.Response {
		return ipc.Response{State: "recording", Paragraph: 1, Count: 3, Code: ipc.CodeTransportBusy, Error: "move cursor: transport busy", Warning: "session persistence failed"}
	})
	defer shutdown()

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}
	exitCode := runner.Execute(context.Background(), []string{"next"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stdout.String(), "recording | paragraph 2/3 | elapsed 00:00:00")
	require.Contains(t, stderr.String(), "error: move cursor: transport busy")
	require.Contains(t, stderr.String(), "warning: session persistence failed")
}

func TestFormatResponse(t *testing.T) {
	tests := []struct {
		resp ipc.Response
		want string
	}{
		{resp: ipc.Response{State: "idle", Count: 0, Paragraph: -1}, want: "idle | empty document"},
		{resp: ipc.Response{Count: 4, Paragraph: 3, HasReading: true, DurationMS: 61_000}, want: "idle | paragraph 4/4 | reading 00:01:01"},
		{resp: ipc.Response{State: "paused_playing", Count: 4, Paragraph: 0, PositionMS: 2_000, DurationMS: 5_000}, want: "paused_playing | paragraph 1/4 | 00:00:02 / 00:00:05"},
		{resp: ipc.Response{State: "recording", Count: 4, Paragraph: 1, ElapsedMS: 3_600_000}, want: "recording | paragraph 2/4 | elapsed 01:00:00"},
	}
	for _, tc := range tests {
		require.Equal(t, tc.want, FormatResponse(tc.resp))
	}
}

func TestRunnerSegmentCommand(t *testing.T) {
	paths := setupRunnerEnv(t)
	doc := filepath.Join(t.TempDir(), "story.txt")
	require.NoError(t, os.WriteFile(doc, []byte("One. Two. Three. Four. Five."), 0o600))

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}
	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "segment", doc})
	require.Equal(t, 0, exitCode, stderr.String())
	require.Contains(t, stdout.String(), "2 paragraphs")
	require.Contains(t, stdout.String(), "[1] (4 sentences)\nOne. Two. Three. Four.")
	require.Contains(t, stdout.String(), "[2] (1 sentences)\nFive.")
}

func TestRunnerSegmentRejectsMalformedText(t *testing.T) {
	paths := setupRunnerEnv(t)
	doc := filepath.Join(t.TempDir(), "binary.txt")
	require.NoError(t, os.WriteFile(doc, []byte{0xff, 0xfe, 'a'}, 0o600))

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}
	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "segment", doc})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "not valid UTF-8")
}

func TestRunnerDoctorCommandDispatchesAndPrintsReport(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "doctor"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stdout.String(), "config: loaded")
	require.Contains(t, stdout.String(), "[FAIL] audio.input")
	require.Contains(t, stdout.String(), "[OK] project_directory")
}

func TestRunnerDevicesCommandDispatches(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "devices"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error:")
}

func TestRunnerOpenHeadlessServesRemoteCommands(t *testing.T) {
	paths := setupRunnerEnv(t)
	doc := filepath.Join(t.TempDir(), "chapter.txt")
	require.NoError(t, os.WriteFile(doc, []byte("Alpha. Bravo. Charlie. Delta. Echo. Foxtrot. Golf. Hotel. India."), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan string, 1)
	var ownerOut, ownerErr bytes.Buffer
	owner := Runner{Stdout: &ownerOut, Stderr: &ownerErr, Backend: &fakeBackend{}, Ready: ready}
	done := make(chan int, 1)
	go func() {
		done <- owner.Execute(ctx, []string{"--config", paths.configPath, "open", doc, "--headless"})
	}()

	var socketPath string
	select {
	case socketPath = <-ready:
	case code := <-done:
		t.Fatalf("open exited early with %d: %s", code, ownerErr.String())
	case <-time.After(5 * time.Second):
		t.Fatal("session did not become ready")
	}
	require.Equal(t, filepath.Join(paths.runtimeDir, "narrate.sock"), socketPath)

	remote := func(args ...string) (int, string) {
		var stdout, stderr bytes.Buffer
		runner := Runner{Stdout: &stdout, Stderr: &stderr}
		code := runner.Execute(context.Background(), args)
		return code, stdout.String() + stderr.String()
	}

	code, out := remote("goto", "3")
	require.Equal(t, 0, code, out)
	require.Contains(t, out, "paragraph 3/3")

	code, out = remote("goto", "4")
	require.Equal(t, 1, code)
	require.Contains(t, out, "out of range")

	code, out = remote("prev")
	require.Equal(t, 0, code, out)
	require.Contains(t, out, "paragraph 2/3")

	code, out = remote("record")
	require.Equal(t, 0, code, out)
	require.Contains(t, out, "recording | paragraph 2/3")

	code, out = remote("next")
	require.Equal(t, 1, code)
	require.Contains(t, out, "transport busy")

	code, out = remote("stop")
	require.Equal(t, 0, code, out)
	require.Contains(t, out, "idle | paragraph 2/3 | reading")

	cancel()
	select {
	case code := <-done:
		require.Equal(t, 0, code, ownerErr.String())
	case <-time.After(5 * time.Second):
		t.Fatal("open did not exit after cancellation")
	}
	require.Contains(t, ownerOut.String(), "chapter: 3 paragraphs")

	_, err := os.Stat(socketPath)
	require.ErrorIs(t, err, os.ErrNotExist)

	sessions, err := filepath.Glob(filepath.Join(paths.dataDir, "projects", "chapter-*", "session.json"))
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	saved, err := os.ReadFile(sessions[0])
	require.NoError(t, err)
	require.Contains(t, string(saved), `"paragraph_index": 1`)

	require.FileExists(t, filepath.Join(paths.projectDir, "chapter", "part1.wav"))
}

func TestRunnerOpenMissingDocument(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout, stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr, Backend: &fakeBackend{}}
	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "open", filepath.Join(t.TempDir(), "missing.txt"), "--headless"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "read document")
}

type fakeBackend struct{}

func (fakeBackend) OpenCapture(_ context.Context, req transport.CaptureRequest) (transport.Capture, error) {
	return fakeCapture{path: req.Path}, nil
}

func (fakeBackend) OpenPlayback(context.Context, transport.PlaybackRequest) (transport.Playback, error) {
	return fakePlayback{}, nil
}

func (fakeBackend) Probe(string) (transport.Artifact, error) {
	return transport.Artifact{Duration: time.Second, SampleRate: 44100, Channels: 1}, nil
}

type fakeCapture struct{ path string }

func (fakeCapture) Pause() error  { return nil }
func (fakeCapture) Resume() error { return nil }
func (c fakeCapture) Abort() error {
	return os.Remove(c.path)
}
func (c fakeCapture) Finish() (transport.Artifact, error) {
	return transport.Artifact{Duration: time.Second, SampleRate: 44100, Channels: 1}, os.WriteFile(c.path, []byte("RIFF"), 0o600)
}

type fakePlayback struct{}

func (fakePlayback) Pause() error  { return nil }
func (fakePlayback) Resume() error { return nil }
func (fakePlayback) Stop() error   { return nil }

type runnerPaths struct {
	configPath string
	runtimeDir string
	dataDir    string
	projectDir string
}

func setupRunnerEnv(t *testing.T) runnerPaths {
	t.Helper()

	runtimeDir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)

	paths := runnerPaths{
		configPath: filepath.Join(t.TempDir(), "config.jsonc"),
		runtimeDir: runtimeDir,
		dataDir:    t.TempDir(),
		projectDir: t.TempDir(),
	}

	config := `{
  // test configuration
  "project_directory": "` + paths.projectDir + `",
  "session": { "backend": "json", "path": "` + paths.dataDir + `" },
}
`
	require.NoError(t, os.WriteFile(paths.configPath, []byte(config), 0o600))
	require.False(t, strings.Contains(paths.projectDir, `"`))
	return paths
}

func startIPCServerForRunnerTest(t *testing.T, socketPath string, handler func(context.Context, ipc.Request) ipc.Response) func() {
	t.Helper()

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ipc.Serve(ctx, listener, ipc.HandlerFunc(handler))
	}()

	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}
