// Package warden is the supervisor-facing layer over the policy engine:
// it resolves per-profile rule additions from configuration and runtime
// bundles, installs the filter, and records metrics and structured logs
// for long-lived supervisors that build many sandboxes.
//
// The warden does not spawn processes, wire file descriptors, or apply
// resource limits; the supervisor owns the process lifecycle and calls
// Confine in the forked child immediately before exec.
package warden

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"judgecell.dev/warden/bundle"
	"judgecell.dev/warden/config"
	"judgecell.dev/warden/policy"
	"judgecell.dev/warden/version"
)

// HealthResult reports whether policies can be installed on this host.
type HealthResult struct {
	Healthy bool              `json:"healthy"`
	Details map[string]string `json:"details,omitempty"`
}

// Warden binds configuration and a runtime bundle to the policy engine.
// Safe for use from a single goroutine per construction call; the Warden
// itself holds no mutable state after New.
type Warden struct {
	cfg     config.Config
	bundle  *bundle.Bundle // nil when no bundle is configured
	metrics *Metrics
	log     *slog.Logger
}

// New validates the configuration, loads the runtime bundle if one is
// configured, and registers metrics on reg.
func New(cfg config.Config, reg prometheus.Registerer, logger *slog.Logger) (*Warden, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	w := &Warden{
		cfg:     cfg,
		metrics: NewMetrics(reg),
		log:     logger,
	}

	if cfg.Bundle.Path != "" {
		b, err := bundle.Load(cfg.Bundle.Path)
		if err != nil {
			return nil, fmt.Errorf("runtime bundle: %w", err)
		}
		w.bundle = b
		logger.Info("runtime bundle loaded",
			"path", cfg.Bundle.Path,
			"runtimes", len(b.Runtimes),
		)
	}

	available := policy.Available()
	if available {
		w.metrics.SeccompHealthy.Set(1)
	} else {
		w.metrics.SeccompHealthy.Set(0)
	}
	logger.Info("warden initialized",
		"version", version.Full(),
		"seccomp_available", available,
	)
	return w, nil
}

// Confine builds and installs the filter for one sandboxed run in the
// calling process. On success the filter is active and inherited across
// the upcoming exec; on any error no filter is in effect and the caller
// must not exec the untrusted program. Call on the final thread,
// immediately before exec.
//
// targetPath must be the final absolute path the process will exec into,
// already resolved by the caller.
func (w *Warden) Confine(profile policy.Profile, targetPath string, tg policy.Toggles) error {
	start := time.Now()

	target, err := policy.NewTarget(targetPath)
	if err != nil {
		w.metrics.InstallsTotal.WithLabelValues(string(profile), "error").Inc()
		return err
	}

	extra, err := w.extraAllow(profile)
	if err != nil {
		w.metrics.InstallsTotal.WithLabelValues(string(profile), "error").Inc()
		return err
	}

	req := policy.Request{
		Profile:    profile,
		Target:     target,
		Toggles:    tg,
		ExtraAllow: extra,
	}

	if profile == policy.ProfileGeneral && tg.AllowNetwork {
		// The general profile's rule surface is identical with or without
		// network permission. Surfaced on every install so the gap cannot
		// go unnoticed in production.
		w.log.Warn("network toggle has no effect on the general profile",
			"target", targetPath)
	}

	ruleCount, err := policy.RuleCount(req)
	if err != nil {
		w.metrics.InstallsTotal.WithLabelValues(string(profile), "error").Inc()
		return err
	}

	if err := policy.Install(req); err != nil {
		w.metrics.InstallsTotal.WithLabelValues(string(profile), "error").Inc()
		w.log.Error("policy install failed",
			"profile", profile,
			"target", targetPath,
			"error", err,
		)
		return err
	}

	result := "ok"
	if ruleCount == 0 {
		result = "noop"
	}
	w.metrics.InstallsTotal.WithLabelValues(string(profile), result).Inc()
	w.metrics.InstallDuration.WithLabelValues(string(profile)).Observe(time.Since(start).Seconds())
	w.metrics.FilterRules.WithLabelValues(string(profile)).Set(float64(ruleCount))
	w.log.Info("policy installed",
		"profile", profile,
		"target", targetPath,
		"rules", ruleCount,
		"allow_write", tg.AllowWriteFile,
		"allow_network", tg.AllowNetwork,
	)
	return nil
}

// extraAllow resolves the additional allowed syscalls for a profile:
// config extras, plus the configured bundle runtime for the interpreted
// profile.
func (w *Warden) extraAllow(profile policy.Profile) ([]string, error) {
	pc := w.cfg.Profiles[string(profile)]
	extra := append([]string(nil), pc.ExtraSyscalls...)

	if profile == policy.ProfileInterpreted && pc.Runtime != "" {
		if w.bundle == nil {
			return nil, fmt.Errorf("runtime %q configured but no bundle loaded", pc.Runtime)
		}
		rt, ok := w.bundle.Lookup(pc.Runtime)
		if !ok {
			return nil, fmt.Errorf("runtime %q not in bundle", pc.Runtime)
		}
		extra = append(extra, rt.Syscalls...)
	}
	return extra, nil
}

// HealthCheck verifies that the host can enforce policies. Called by
// supervisors before assigning work.
func (w *Warden) HealthCheck() HealthResult {
	available := policy.Available()
	details := map[string]string{
		"version": version.Full(),
	}
	if w.bundle != nil {
		details["bundle_runtimes"] = fmt.Sprintf("%d", len(w.bundle.Runtimes))
	}
	if !available {
		details["reason"] = "kernel lacks seccomp filter support"
	}
	return HealthResult{Healthy: available, Details: details}
}
