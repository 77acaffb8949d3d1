// Package doctor runs readiness diagnostics for config, audio devices, the
// project directory, and the session store.
package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rbright/narrate/internal/audio"
	"github.com/rbright/narrate/internal/config"
	"github.com/rbright/narrate/internal/store"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", status, check.Name, check.Message)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// DeviceLister enumerates devices of one kind.
type DeviceLister func(context.Context) ([]audio.Device, error)

// Probes are the live lookups Run performs; tests replace them.
type Probes struct {
	Inputs  DeviceLister
	Outputs DeviceLister
}

// DefaultProbes query the PulseAudio server.
func DefaultProbes() Probes {
	return Probes{Inputs: audio.ListInputDevices, Outputs: audio.ListOutputDevices}
}

// Run executes every check for a loaded config.
func Run(ctx context.Context, cfg config.Loaded, probes Probes) Report {
	checks := []Check{configCheck(cfg)}

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "control socket directory is set", "XDG_RUNTIME_DIR is empty; control socket falls back to the temp dir"))

	checks = append(checks, checkDevice(ctx, "audio.input", cfg.Config.Audio.Input, probes.Inputs))
	checks = append(checks, checkDevice(ctx, "audio.output", cfg.Config.Audio.Output, probes.Outputs))
	checks = append(checks, checkProjectDirectory(cfg.Config.ProjectDirectory))
	checks = append(checks, checkSessionStore(cfg.Config.Session))

	return Report{Checks: checks}
}

func configCheck(cfg config.Loaded) Check {
	if !cfg.Exists {
		return Check{Name: "config", Pass: true, Message: fmt.Sprintf("%q not found; using defaults", cfg.Path)}
	}
	return Check{Name: "config", Pass: true, Message: fmt.Sprintf("loaded %q", cfg.Path)}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkDevice runs live device selection to surface selection/fallback issues.
func checkDevice(ctx context.Context, name string, preference string, list DeviceLister) Check {
	if list == nil {
		return Check{Name: name, Pass: false, Message: "no device lister configured"}
	}
	devices, err := list(ctx)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	selection, err := audio.SelectDevice(devices, preference)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message += " (" + selection.Warning + ")"
	}
	return Check{Name: name, Pass: true, Message: message}
}

// checkProjectDirectory verifies Readings can be written under dir.
func checkProjectDirectory(dir string) Check {
	const name = "project_directory"

	expanded, err := config.ExpandPath(dir)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	if err := os.MkdirAll(expanded, 0o755); err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("create %q: %v", expanded, err)}
	}

	probe, err := os.CreateTemp(expanded, ".narrate-doctor-*")
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%q is not writable: %v", expanded, err)}
	}
	probePath := probe.Name()
	_ = probe.Close()
	_ = os.Remove(probePath)

	return Check{Name: name, Pass: true, Message: fmt.Sprintf("%q is writable", filepath.Clean(expanded))}
}

func checkSessionStore(cfg config.SessionConfig) Check {
	name := "session." + cfg.Backend

	s, err := store.Open(cfg)
	if err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	defer s.Close()

	if _, _, err := s.Load(context.Background(), "narrate-doctor-probe"); err != nil {
		return Check{Name: name, Pass: false, Message: err.Error()}
	}
	dir, _ := config.ResolveDataDir(cfg)
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("store ready under %q", dir)}
}
