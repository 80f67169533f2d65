package quarantine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/vein/pkg/assetindex"
	"github.com/cuemby/vein/pkg/assetindex/boltindex"
	"github.com/cuemby/vein/pkg/config"
)

func newTestEngine(t *testing.T, policy config.DelayPolicyConfig) (*Engine, assetindex.Index) {
	t.Helper()
	idx, err := boltindex.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return New(idx, policy), idx
}

func TestRecordObservation_PolicyDisabled(t *testing.T) {
	e, idx := newTestEngine(t, config.DelayPolicyConfig{Enabled: false})

	require.NoError(t, e.RecordObservation(context.Background(), "rails", "7.1.0", "ruby", "abc123"))

	gv, err := idx.GetGemVersion(context.Background(), "rails", "7.1.0", "ruby")
	require.NoError(t, err)
	assert.Equal(t, assetindex.StatusAvailable, gv.Status)
}

func TestRecordObservation_Quarantined(t *testing.T) {
	policy := config.DelayPolicyConfig{Enabled: true, DefaultDelayDays: 3}
	e, idx := newTestEngine(t, policy)

	require.NoError(t, e.RecordObservation(context.Background(), "rails", "7.1.0", "ruby", "abc123"))

	gv, err := idx.GetGemVersion(context.Background(), "rails", "7.1.0", "ruby")
	require.NoError(t, err)
	assert.Equal(t, assetindex.StatusQuarantine, gv.Status)
	assert.True(t, gv.AvailableAfter.After(gv.ObservedAt))
}

func TestRecordObservation_Idempotent(t *testing.T) {
	e, idx := newTestEngine(t, config.DelayPolicyConfig{Enabled: false})

	ctx := context.Background()
	require.NoError(t, e.RecordObservation(ctx, "rails", "7.1.0", "ruby", "abc123"))
	require.NoError(t, e.RecordObservation(ctx, "rails", "7.1.0", "ruby", "different-sha"))

	gv, err := idx.GetGemVersion(ctx, "rails", "7.1.0", "ruby")
	require.NoError(t, err)
	assert.Equal(t, "abc123", gv.SHA256, "second observation must not overwrite the recorded sha256")
}

func TestIsVisible_NeverObserved(t *testing.T) {
	e, _ := newTestEngine(t, config.DelayPolicyConfig{Enabled: true, DefaultDelayDays: 3})

	visible, err := e.IsVisible(context.Background(), "unknown-gem", "1.0.0", "ruby")
	require.NoError(t, err)
	assert.True(t, visible, "never-observed versions must not block a cold cache")
}

func TestIsVisible_Quarantined(t *testing.T) {
	policy := config.DelayPolicyConfig{Enabled: true, DefaultDelayDays: 30}
	e, _ := newTestEngine(t, policy)

	ctx := context.Background()
	require.NoError(t, e.RecordObservation(ctx, "rails", "7.1.0", "ruby", "abc123"))

	visible, err := e.IsVisible(ctx, "rails", "7.1.0", "ruby")
	require.NoError(t, err)
	assert.False(t, visible)
}

func TestApprove_MakesVisible(t *testing.T) {
	policy := config.DelayPolicyConfig{Enabled: true, DefaultDelayDays: 30}
	e, _ := newTestEngine(t, policy)

	ctx := context.Background()
	require.NoError(t, e.RecordObservation(ctx, "rails", "7.1.0", "ruby", "abc123"))
	require.NoError(t, e.Approve(ctx, "rails", "7.1.0", "ruby", "manual approval"))

	visible, err := e.IsVisible(ctx, "rails", "7.1.0", "ruby")
	require.NoError(t, err)
	assert.True(t, visible)
}

func TestBlock_HidesRegardlessOfStatus(t *testing.T) {
	e, _ := newTestEngine(t, config.DelayPolicyConfig{Enabled: false})

	ctx := context.Background()
	require.NoError(t, e.RecordObservation(ctx, "leftpad", "1.0.0", "", "abc123"))
	require.NoError(t, e.Block(ctx, "leftpad", "1.0.0", "", "malicious payload"))

	visible, err := e.IsVisible(ctx, "leftpad", "1.0.0", "")
	require.NoError(t, err)
	assert.False(t, visible)
}

func TestPromote_OnlyPastDelay(t *testing.T) {
	policy := config.DelayPolicyConfig{Enabled: true, DefaultDelayDays: 3}
	e, idx := newTestEngine(t, policy)

	ctx := context.Background()
	require.NoError(t, e.RecordObservation(ctx, "rails", "7.1.0", "ruby", "abc123"))

	n, err := e.Promote(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "delay has not elapsed yet")

	gv, err := idx.GetGemVersion(ctx, "rails", "7.1.0", "ruby")
	require.NoError(t, err)
	assert.Equal(t, assetindex.StatusQuarantine, gv.Status)

	past := time.Now().Add(-time.Hour).Unix()
	ready, err := idx.ListQuarantined(ctx, assetindex.ReadyAsOf(past))
	require.NoError(t, err)
	assert.Empty(t, ready)
}

func TestIsVisible_QuarantinedPastAvailableAfter(t *testing.T) {
	policy := config.DelayPolicyConfig{Enabled: true, DefaultDelayDays: 30}
	e, idx := newTestEngine(t, policy)

	ctx := context.Background()
	// Record the quarantined row directly with an AvailableAfter already
	// in the past; SetStatus cannot change AvailableAfter.
	require.NoError(t, idx.RecordNewVersion(ctx, &assetindex.GemVersion{
		Name: "rails", Version: "7.1.0", Platform: "ruby", SHA256: "abc123",
		Status: assetindex.StatusQuarantine, ObservedAt: time.Now().Add(-31 * 24 * time.Hour),
		AvailableAfter: time.Now().Add(-time.Minute),
	}))
	gv, err := idx.GetGemVersion(ctx, "rails", "7.1.0", "ruby")
	require.NoError(t, err)
	require.Equal(t, assetindex.StatusQuarantine, gv.Status)
	require.True(t, gv.AvailableAfter.Before(time.Now()))

	visible, err := e.IsVisible(ctx, "rails", "7.1.0", "ruby")
	require.NoError(t, err)
	assert.True(t, visible, "a quarantined version whose delay has elapsed is visible even before the hourly sweep promotes it")
}

func TestBlock_ThenApprove_YankedIsTerminal(t *testing.T) {
	e, idx := newTestEngine(t, config.DelayPolicyConfig{Enabled: false})

	ctx := context.Background()
	require.NoError(t, e.RecordObservation(ctx, "leftpad", "1.0.0", "", "abc123"))
	require.NoError(t, e.Block(ctx, "leftpad", "1.0.0", "", "malicious payload"))
	require.NoError(t, e.Approve(ctx, "leftpad", "1.0.0", "", "mistaken approval"))

	gv, err := idx.GetGemVersion(ctx, "leftpad", "1.0.0", "")
	require.NoError(t, err)
	assert.Equal(t, assetindex.StatusYanked, gv.Status, "yanked must not be reversible by a later approve")
}

func TestIsDownloadable(t *testing.T) {
	e, _ := newTestEngine(t, config.DelayPolicyConfig{Enabled: true, DefaultDelayDays: 30})

	ctx := context.Background()
	require.NoError(t, e.RecordObservation(ctx, "rails", "7.1.0", "ruby", "abc123"))

	downloadable, err := e.IsDownloadable(ctx, "rails", "7.1.0", "ruby")
	require.NoError(t, err)
	assert.True(t, downloadable, "quarantined versions are still downloadable by direct reference")

	require.NoError(t, e.Block(ctx, "rails", "7.1.0", "ruby", "compromised release"))
	downloadable, err = e.IsDownloadable(ctx, "rails", "7.1.0", "ruby")
	require.NoError(t, err)
	assert.False(t, downloadable, "yanked blocks direct download by default")
}

func TestIsDownloadable_AllowYankedOverride(t *testing.T) {
	e, _ := newTestEngine(t, config.DelayPolicyConfig{Enabled: false, AllowYankedDirectDownload: true})

	ctx := context.Background()
	require.NoError(t, e.RecordObservation(ctx, "rails", "7.1.0", "ruby", "abc123"))
	require.NoError(t, e.Block(ctx, "rails", "7.1.0", "ruby", "compromised release"))

	downloadable, err := e.IsDownloadable(ctx, "rails", "7.1.0", "ruby")
	require.NoError(t, err)
	assert.True(t, downloadable, "AllowYankedDirectDownload overrides the yanked download block")
}

func TestYank_SetsUpstreamYanked(t *testing.T) {
	e, idx := newTestEngine(t, config.DelayPolicyConfig{Enabled: false})

	ctx := context.Background()
	require.NoError(t, e.RecordObservation(ctx, "rails", "7.1.0", "ruby", "abc123"))
	require.NoError(t, e.Yank(ctx, "rails", "7.1.0", "ruby", "upstream pulled the release"))

	gv, err := idx.GetGemVersion(ctx, "rails", "7.1.0", "ruby")
	require.NoError(t, err)
	assert.Equal(t, assetindex.StatusYanked, gv.Status)
	assert.True(t, gv.UpstreamYanked)
}

func TestFilterInfoLines_NormalizesRubyPlatform(t *testing.T) {
	policy := config.DelayPolicyConfig{Enabled: true, DefaultDelayDays: 30}
	e, _ := newTestEngine(t, policy)

	ctx := context.Background()
	require.NoError(t, e.RecordObservation(ctx, "rails", "7.1.0", "", "abc123"))

	lines, err := e.FilterInfoLines(ctx, "rails", []string{"7.1.0-ruby |checksum:abc"})
	require.NoError(t, err)
	assert.Empty(t, lines, "ruby platform token must normalize to the absent-platform record, which is still quarantined")
}

func TestRecordObservation_Pinned(t *testing.T) {
	policy := config.DelayPolicyConfig{
		Enabled: true, DefaultDelayDays: 30,
		Pinned: []config.PinnedVersion{{Name: "rails", Version: "7.1.0", Reason: "security hotfix, skip quarantine"}},
	}
	e, idx := newTestEngine(t, policy)

	ctx := context.Background()
	require.NoError(t, e.RecordObservation(ctx, "rails", "7.1.0", "ruby", "abc123"))

	gv, err := idx.GetGemVersion(ctx, "rails", "7.1.0", "ruby")
	require.NoError(t, err)
	assert.Equal(t, assetindex.StatusPinned, gv.Status)
}
