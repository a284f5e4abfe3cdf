package warden

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"judgecell.dev/warden/config"
	"judgecell.dev/warden/policy"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newWarden(t *testing.T, cfg config.Config) *Warden {
	t.Helper()
	w, err := New(cfg, prometheus.NewRegistry(), quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

// counterValue reads one labeled counter from a metrics vec.
func counterValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	c, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("get metric: %v", err)
	}
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

const testBundle = `
runtimes:
  - name: python3
    syscalls:
      - getpid
      - gettid
`

func writeBundle(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runtimes.yaml")
	if err := os.WriteFile(path, []byte(testBundle), 0o644); err != nil {
		t.Fatalf("write bundle: %v", err)
	}
	return path
}

func TestNew_DefaultConfig(t *testing.T) {
	t.Parallel()

	w := newWarden(t, config.Default())
	if w.bundle != nil {
		t.Error("expected no bundle with default config")
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Profiles["php"] = config.ProfileConfig{}
	if _, err := New(cfg, prometheus.NewRegistry(), quietLogger()); err == nil {
		t.Error("New accepted an invalid config")
	}
}

func TestNew_WithBundle(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Bundle.Path = writeBundle(t)
	cfg.Profiles["interpreted"] = config.ProfileConfig{Runtime: "python3"}

	w := newWarden(t, cfg)
	if w.bundle == nil {
		t.Fatal("bundle not loaded")
	}

	extra, err := w.extraAllow(policy.ProfileInterpreted)
	if err != nil {
		t.Fatalf("extraAllow: %v", err)
	}
	if len(extra) != 2 || extra[0] != "getpid" || extra[1] != "gettid" {
		t.Errorf("extraAllow = %v, want bundle runtime syscalls", extra)
	}
}

func TestNew_BundleMissing(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Bundle.Path = filepath.Join(t.TempDir(), "absent.yaml")
	if _, err := New(cfg, prometheus.NewRegistry(), quietLogger()); err == nil {
		t.Error("New succeeded with a missing bundle file")
	}
}

func TestExtraAllow_MergesConfigAndBundle(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Bundle.Path = writeBundle(t)
	cfg.Profiles["interpreted"] = config.ProfileConfig{
		Runtime:       "python3",
		ExtraSyscalls: []string{"ioctl"},
	}

	w := newWarden(t, cfg)
	extra, err := w.extraAllow(policy.ProfileInterpreted)
	if err != nil {
		t.Fatalf("extraAllow: %v", err)
	}
	// Config extras first, then the runtime set.
	want := []string{"ioctl", "getpid", "gettid"}
	if len(extra) != len(want) {
		t.Fatalf("extraAllow = %v, want %v", extra, want)
	}
	for i := range want {
		if extra[i] != want[i] {
			t.Errorf("extraAllow[%d] = %q, want %q", i, extra[i], want[i])
		}
	}
}

func TestConfine_InterpretedNoop(t *testing.T) {
	t.Parallel()

	// No runtime configured: the interpreted profile installs nothing, so
	// this is safe to run in-process and must report a noop success.
	w := newWarden(t, config.Default())
	err := w.Confine(policy.ProfileInterpreted, "/usr/bin/python3", policy.Toggles{})
	if err != nil {
		t.Fatalf("Confine: %v", err)
	}
	if got := counterValue(t, w.metrics.InstallsTotal, "interpreted", "noop"); got != 1 {
		t.Errorf("noop installs = %v, want 1", got)
	}
}

func TestConfine_RejectsRelativeTarget(t *testing.T) {
	t.Parallel()

	w := newWarden(t, config.Default())
	err := w.Confine(policy.ProfileNative, "a.out", policy.Toggles{})
	if err == nil {
		t.Fatal("Confine accepted a relative target path")
	}
	if got := counterValue(t, w.metrics.InstallsTotal, "native", "error"); got != 1 {
		t.Errorf("error installs = %v, want 1", got)
	}
}

func TestConfine_RuntimeNotInBundle(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Bundle.Path = writeBundle(t)
	cfg.Profiles["interpreted"] = config.ProfileConfig{Runtime: "ruby"}

	w := newWarden(t, cfg)
	err := w.Confine(policy.ProfileInterpreted, "/usr/bin/ruby", policy.Toggles{})
	if err == nil {
		t.Fatal("Confine succeeded with a runtime absent from the bundle")
	}
	if !strings.Contains(err.Error(), "not in bundle") {
		t.Errorf("error = %v, want runtime-not-in-bundle", err)
	}
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Bundle.Path = writeBundle(t)
	w := newWarden(t, cfg)

	hr := w.HealthCheck()
	if hr.Details["version"] == "" {
		t.Error("health details missing version")
	}
	if hr.Details["bundle_runtimes"] != "1" {
		t.Errorf("bundle_runtimes = %q, want 1", hr.Details["bundle_runtimes"])
	}
	// Healthy tracks kernel seccomp support; both outcomes are valid in CI.
	t.Logf("HealthCheck = %+v", hr)
}
