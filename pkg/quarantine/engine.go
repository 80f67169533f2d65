// Package quarantine implements the supply-chain quarantine policy:
// newly observed gem versions are withheld from index responses for a
// configurable delay, with support for per-gem overrides, permanent
// pins, and manual operator approve/block transitions.
package quarantine

import (
	"context"
	"fmt"
	"time"

	"github.com/cuemby/vein/pkg/assetindex"
	"github.com/cuemby/vein/pkg/config"
	"github.com/cuemby/vein/pkg/log"
	"github.com/cuemby/vein/pkg/metrics"
	"github.com/rs/zerolog"
)

// Engine decides the quarantine fate of observed gem versions and
// carries out operator-driven status transitions.
type Engine struct {
	index  assetindex.Index
	policy config.DelayPolicyConfig
	logger zerolog.Logger
}

// New builds an Engine over the given index and policy.
func New(index assetindex.Index, policy config.DelayPolicyConfig) *Engine {
	return &Engine{index: index, policy: policy, logger: log.WithComponent("quarantine")}
}

// RecordObservation registers a newly-seen gem version. If the policy
// is disabled or the version is pinned, it is recorded as immediately
// available. A version already on record is left untouched; a
// conflicting SHA-256 on the second observation is logged as a policy
// violation rather than silently overwritten.
func (e *Engine) RecordObservation(ctx context.Context, name, version, platform, sha256 string) error {
	existing, err := e.index.GetGemVersion(ctx, name, version, platform)
	if err != nil && err != assetindex.ErrNotFound {
		return fmt.Errorf("check existing gem version: %w", err)
	}
	if existing != nil {
		if existing.SHA256 != "" && sha256 != "" && existing.SHA256 != sha256 {
			e.logger.Warn().
				Str("gem", name).Str("version", version).
				Str("recorded_sha256", existing.SHA256).Str("observed_sha256", sha256).
				Msg("policy violation: sha256 mismatch on repeat observation, keeping original record")
		}
		return nil
	}

	now := time.Now().UTC()
	gv := &assetindex.GemVersion{
		Name: name, Version: version, Platform: platform, SHA256: sha256,
		ObservedAt: now, CreatedAt: now, UpdatedAt: now,
	}

	switch {
	case e.policy.IsPinned(name, version):
		gv.Status = assetindex.StatusPinned
		gv.StatusReason = e.policy.PinReason(name, version)
		gv.AvailableAfter = now
	case !e.policy.Enabled:
		gv.Status = assetindex.StatusAvailable
		gv.AvailableAfter = now
	default:
		gv.Status = assetindex.StatusQuarantine
		gv.AvailableAfter = e.availableAfter(name, now)
	}

	if err := e.index.RecordNewVersion(ctx, gv); err != nil {
		return fmt.Errorf("record gem version: %w", err)
	}
	e.logger.Info().
		Str("gem", name).Str("version", version).
		Str("status", string(gv.Status)).Time("available_after", gv.AvailableAfter).
		Msg("recorded gem version observation")
	return nil
}

// availableAfter computes the time a newly quarantined version becomes
// eligible for promotion, following the three-step calculation: delay
// days after observation, then past weekends when SkipWeekends is set,
// then shifted onto the configured release hour when BusinessHoursOnly
// is set.
func (e *Engine) availableAfter(name string, observedAt time.Time) time.Time {
	days := e.policy.DelayForGem(name)
	t := observedAt.AddDate(0, 0, days)

	if e.policy.SkipWeekends {
		switch t.Weekday() {
		case time.Saturday:
			t = t.AddDate(0, 0, 2)
		case time.Sunday:
			t = t.AddDate(0, 0, 1)
		}
	}

	if e.policy.BusinessHoursOnly {
		t = time.Date(t.Year(), t.Month(), t.Day(), e.policy.ReleaseHourUTC, 0, 0, 0, time.UTC)
		if t.Before(observedAt) {
			t = t.AddDate(0, 0, 1)
		}
	}

	return t
}

// Promote scans for quarantined versions whose delay has elapsed and
// marks them available. It returns the number promoted.
func (e *Engine) Promote(ctx context.Context) (int, error) {
	ready, err := e.index.ListQuarantined(ctx, assetindex.ReadyAsOf(time.Now().UTC().Unix()))
	if err != nil {
		return 0, fmt.Errorf("list ready-to-promote versions: %w", err)
	}
	promoted := 0
	for _, gv := range ready {
		if err := e.index.SetStatus(ctx, gv.Name, gv.Version, gv.Platform, assetindex.StatusAvailable, "promoted: delay elapsed"); err != nil {
			e.logger.Error().Err(err).Str("gem", gv.Name).Str("version", gv.Version).Msg("failed to promote version")
			continue
		}
		metrics.QuarantinePromotionsTotal.Inc()
		e.logger.Info().Str("gem", gv.Name).Str("version", gv.Version).Msg("promoted version out of quarantine")
		promoted++
	}
	return promoted, nil
}

// Approve immediately promotes a version, bypassing its remaining
// delay. Used by the operator-facing `vein quarantine approve` command.
// Yanked is terminal: an approve attempt against a yanked version is
// logged as a policy violation and otherwise ignored.
func (e *Engine) Approve(ctx context.Context, name, version, platform, reason string) error {
	err := e.index.SetStatus(ctx, name, version, platform, assetindex.StatusAvailable, reason)
	if err == assetindex.ErrTerminalState {
		e.logger.Warn().
			Str("gem", name).Str("version", version).
			Msg("policy violation: attempted approve of a yanked version, ignored")
		return nil
	}
	if err != nil {
		return fmt.Errorf("approve version: %w", err)
	}
	metrics.QuarantinePromotionsTotal.Inc()
	e.logger.Info().Str("gem", name).Str("version", version).Str("reason", reason).Msg("operator approved version")
	return nil
}

// Block marks a version yanked, withholding it from index responses
// regardless of its quarantine timer. A version already yanked is left
// untouched (yanked is terminal).
func (e *Engine) Block(ctx context.Context, name, version, platform, reason string) error {
	if gv, err := e.index.GetGemVersion(ctx, name, version, platform); err == nil && gv.Status == assetindex.StatusYanked {
		return nil
	}
	err := e.index.SetStatus(ctx, name, version, platform, assetindex.StatusYanked, reason)
	if err == assetindex.ErrTerminalState {
		return nil
	}
	if err != nil {
		return fmt.Errorf("block version: %w", err)
	}
	metrics.QuarantineBlocksTotal.Inc()
	e.logger.Info().Str("gem", name).Str("version", version).Str("reason", reason).Msg("operator blocked version")
	return nil
}

// Yank records an upstream-detected yank, distinct from an
// operator-driven Block: it sets UpstreamYanked on the record so
// get_latest_available_version-style lookups exclude it permanently.
func (e *Engine) Yank(ctx context.Context, name, version, platform, reason string) error {
	if err := e.index.MarkUpstreamYanked(ctx, name, version, platform, reason); err != nil {
		return fmt.Errorf("mark upstream yanked: %w", err)
	}
	metrics.QuarantineUpstreamYanksTotal.Inc()
	e.logger.Warn().Str("gem", name).Str("version", version).Str("reason", reason).Msg("upstream yank detected")
	return nil
}

// IsDownloadable reports whether a gem version may be served by direct
// artifact download (as opposed to appearing in the filtered index).
// Per the quarantine state machine, quarantine/available/pinned
// versions are always downloadable by explicit name/version reference;
// yanked is the one status that blocks direct download, unless the
// policy's AllowYankedDirectDownload override is set.
func (e *Engine) IsDownloadable(ctx context.Context, name, version, platform string) (bool, error) {
	gv, err := e.index.GetGemVersion(ctx, name, version, platform)
	if err == assetindex.ErrNotFound {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup gem version: %w", err)
	}
	if gv.Status != assetindex.StatusYanked {
		return true, nil
	}
	return e.policy.AllowYankedDirectDownload, nil
}

// IsVisible reports whether a gem version should appear in quarantine-
// filtered index responses (the compact index's /info/{gem} line set).
func (e *Engine) IsVisible(ctx context.Context, name, version, platform string) (bool, error) {
	gv, err := e.index.GetGemVersion(ctx, name, version, platform)
	if err == assetindex.ErrNotFound {
		// Never observed: policy has not had a chance to decide; treat
		// as visible so a cold cache doesn't block first-time access.
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup gem version: %w", err)
	}
	switch gv.Status {
	case assetindex.StatusAvailable, assetindex.StatusPinned:
		return true, nil
	case assetindex.StatusQuarantine:
		return !gv.AvailableAfter.After(time.Now().UTC()), nil
	default:
		return false, nil
	}
}
