package repository

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/megaeth-tools/vigil/internal/models"
	"github.com/megaeth-tools/vigil/pkg/logger"
)

func newTestStore(t *testing.T) models.Repository {
	t.Helper()

	log, err := logger.NewLogger(true)
	require.NoError(t, err)

	store, err := NewSQLiteDB(filepath.Join(t.TempDir(), "test.db"), log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func newTestPortal(t *testing.T, store models.Repository) *models.Portal {
	t.Helper()

	portal := &models.Portal{
		PortalID:            "abc12345",
		OwnerChatID:         100,
		PublicChannelID:     -1001,
		PrivateGroupID:      -1002,
		PrivateGroupTitle:   "Traders",
		WelcomeMessage:      "Verify to join",
		InviteExpiryMinutes: 5,
		MaxUses:             1,
		Status:              models.PortalActive,
		CreatedAt:           time.Now().Unix(),
	}
	require.NoError(t, store.CreatePortal(portal))
	return portal
}

func TestSubscriptionLifecycle(t *testing.T) {
	store := newTestStore(t)

	sub := &models.Subscription{
		ChatID:               42,
		MinVolumeUSD:         1000,
		MinLiquidityUSD:      500,
		PriceChangeThreshold: 10,
		Active:               true,
		CreatedAt:            time.Now().Unix(),
	}
	require.NoError(t, store.UpsertSubscription(sub))

	// Upsert on the same chat updates thresholds instead of duplicating.
	require.NoError(t, store.UpsertSubscription(&models.Subscription{
		ChatID:               42,
		MinVolumeUSD:         2500,
		MinLiquidityUSD:      500,
		PriceChangeThreshold: 10,
		Active:               true,
		CreatedAt:            time.Now().Unix(),
	}))

	subs, err := store.ListSubscriptions()
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, int64(42), subs[0].ChatID)
	assert.Equal(t, 2500.0, subs[0].MinVolumeUSD)

	require.NoError(t, store.DeleteSubscription(42))
	assert.ErrorIs(t, store.DeleteSubscription(42), models.ErrNotFound)
}

func TestSubscriptionActiveToggle(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.UpsertSubscription(&models.Subscription{
		ChatID:               42,
		MinVolumeUSD:         1000,
		MinLiquidityUSD:      500,
		PriceChangeThreshold: 10,
		Active:               true,
		CreatedAt:            time.Now().Unix(),
	}))

	// Pausing keeps the thresholds.
	require.NoError(t, store.SetSubscriptionActive(42, false))
	sub, err := store.GetSubscription(42)
	require.NoError(t, err)
	assert.False(t, sub.Active)
	assert.Equal(t, 1000.0, sub.MinVolumeUSD)

	require.NoError(t, store.SetSubscriptionActive(42, true))
	sub, err = store.GetSubscription(42)
	require.NoError(t, err)
	assert.True(t, sub.Active)

	assert.ErrorIs(t, store.SetSubscriptionActive(999, false), models.ErrNotFound)
	_, err = store.GetSubscription(999)
	assert.ErrorIs(t, err, models.ErrNotFound)

	// Re-subscribing a paused chat resumes delivery.
	require.NoError(t, store.SetSubscriptionActive(42, false))
	require.NoError(t, store.UpsertSubscription(&models.Subscription{
		ChatID:               42,
		MinVolumeUSD:         2000,
		MinLiquidityUSD:      500,
		PriceChangeThreshold: 10,
		Active:               true,
		CreatedAt:            time.Now().Unix(),
	}))
	sub, err = store.GetSubscription(42)
	require.NoError(t, err)
	assert.True(t, sub.Active)
}

func TestMarkAlertedIfDueCooldown(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cooldown := time.Hour

	fired, err := store.MarkAlertedIfDue("0xtoken", models.AlertPump, 1.15, now, cooldown)
	require.NoError(t, err)
	assert.True(t, fired, "first alert should fire")

	fired, err = store.MarkAlertedIfDue("0xtoken", models.AlertPump, 1.30, now.Add(30*time.Minute), cooldown)
	require.NoError(t, err)
	assert.False(t, fired, "alert within cooldown must be suppressed")

	fired, err = store.MarkAlertedIfDue("0xtoken", models.AlertPump, 1.30, now.Add(61*time.Minute), cooldown)
	require.NoError(t, err)
	assert.True(t, fired, "alert after cooldown should fire")

	// A different kind for the same token has its own cooldown slot.
	fired, err = store.MarkAlertedIfDue("0xtoken", models.AlertVolumeSpike, 5000, now.Add(30*time.Minute), cooldown)
	require.NoError(t, err)
	assert.True(t, fired)
}

func TestEnsureBaseline(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	require.NoError(t, store.EnsureBaseline("0xtoken", models.AlertPump, 1.00))

	records, err := store.AlertRecordsForToken("0xtoken")
	require.NoError(t, err)
	require.NotNil(t, records[models.AlertPump])
	assert.Equal(t, 1.00, records[models.AlertPump].LastValue)
	assert.Zero(t, records[models.AlertPump].LastAlertedAt, "baseline must not count as an alert")

	// Ensuring again leaves the stored value untouched.
	require.NoError(t, store.EnsureBaseline("0xtoken", models.AlertPump, 9.99))
	records, err = store.AlertRecordsForToken("0xtoken")
	require.NoError(t, err)
	assert.Equal(t, 1.00, records[models.AlertPump].LastValue)

	// A never-alerted baseline is immediately due.
	fired, err := store.MarkAlertedIfDue("0xtoken", models.AlertPump, 1.15, now, time.Hour)
	require.NoError(t, err)
	assert.True(t, fired)
}

func TestRefreshBaselineValue(t *testing.T) {
	store := newTestStore(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	fired, err := store.MarkAlertedIfDue("0xtoken", models.AlertDump, 0.80, now, time.Hour)
	require.NoError(t, err)
	require.True(t, fired)

	require.NoError(t, store.RefreshBaselineValue("0xtoken", models.AlertDump, 0.75))

	records, err := store.AlertRecordsForToken("0xtoken")
	require.NoError(t, err)
	assert.Equal(t, 0.75, records[models.AlertDump].LastValue)
	assert.Equal(t, now.Unix(), records[models.AlertDump].LastAlertedAt, "refresh must not touch the alert timestamp")
}

func TestPortalLookups(t *testing.T) {
	store := newTestStore(t)
	portal := newTestPortal(t, store)

	got, err := store.GetPortal(portal.PortalID)
	require.NoError(t, err)
	assert.Equal(t, portal.PrivateGroupID, got.PrivateGroupID)

	got, err = store.GetPortalByChannelPair(-1001, -1002)
	require.NoError(t, err)
	assert.Equal(t, portal.PortalID, got.PortalID)

	got, err = store.GetPortalByGroup(-1002)
	require.NoError(t, err)
	assert.Equal(t, portal.PortalID, got.PortalID)

	_, err = store.GetPortal("missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	owned, err := store.ListPortalsByOwner(100)
	require.NoError(t, err)
	assert.Len(t, owned, 1)

	// The same channel/group pair cannot back two portals.
	dup := *portal
	dup.ID = 0
	dup.PortalID = "other123"
	assert.Error(t, store.CreatePortal(&dup))
}

func TestFindOrCreatePendingInvite(t *testing.T) {
	store := newTestStore(t)
	portal := newTestPortal(t, store)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	invite, err := store.FindOrCreatePendingInvite(portal.PortalID, 7, now)
	require.NoError(t, err)
	assert.Equal(t, models.InvitePending, invite.State)
	assert.Equal(t, now.Add(5*time.Minute).Unix(), invite.ExpiresAt)
	assert.Equal(t, 1, invite.MaxUses)

	// Asking again returns the same pending invite.
	again, err := store.FindOrCreatePendingInvite(portal.PortalID, 7, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, invite.InviteID, again.InviteID)

	// A stale pending invite is refreshed in place, not duplicated.
	later := now.Add(10 * time.Minute)
	refreshed, err := store.FindOrCreatePendingInvite(portal.PortalID, 7, later)
	require.NoError(t, err)
	assert.Equal(t, invite.InviteID, refreshed.InviteID)
	assert.Equal(t, later.Add(5*time.Minute).Unix(), refreshed.ExpiresAt)

	_, err = store.FindOrCreatePendingInvite("missing", 7, now)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestVerifyInviteStateMachine(t *testing.T) {
	store := newTestStore(t)
	portal := newTestPortal(t, store)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	invite, err := store.FindOrCreatePendingInvite(portal.PortalID, 7, now)
	require.NoError(t, err)

	verified, err := store.VerifyInvite(invite.InviteID, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.InviteVerified, verified.State)
	assert.Equal(t, 1, verified.UsesCount)

	// Verified is terminal: a second click reports the invite as used up.
	_, err = store.VerifyInvite(invite.InviteID, now.Add(2*time.Minute))
	assert.ErrorIs(t, err, models.ErrExhausted)

	stats, err := store.PortalStats(portal.PortalID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Verified)

	ok, err := store.HasVerifiedInvite(portal.PortalID, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.HasVerifiedInvite(portal.PortalID, 8)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyInviteExpiry(t *testing.T) {
	store := newTestStore(t)
	portal := newTestPortal(t, store)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	invite, err := store.FindOrCreatePendingInvite(portal.PortalID, 7, now)
	require.NoError(t, err)

	// Verifying past the deadline reports expiry but leaves the record
	// pending; the sweep performs the state transition.
	_, err = store.VerifyInvite(invite.InviteID, now.Add(6*time.Minute))
	assert.ErrorIs(t, err, models.ErrExpired)

	_, err = store.VerifyInvite(invite.InviteID, now.Add(7*time.Minute))
	assert.ErrorIs(t, err, models.ErrExpired)

	stale, err := store.ListStalePendingInvites(now.Add(6 * time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1, "failed verify must not consume the pending record")

	done, err := store.ExpireInvite(invite.InviteID, now.Add(6*time.Minute))
	require.NoError(t, err)
	assert.True(t, done)

	_, err = store.VerifyInvite("no-such-invite", now)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestExpireInviteIdempotent(t *testing.T) {
	store := newTestStore(t)
	portal := newTestPortal(t, store)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first, err := store.FindOrCreatePendingInvite(portal.PortalID, 7, now)
	require.NoError(t, err)
	_, err = store.FindOrCreatePendingInvite(portal.PortalID, 8, now)
	require.NoError(t, err)

	stale, err := store.ListStalePendingInvites(now.Add(6 * time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 2)

	// Listing does not mutate: the invites stay pending until expired
	// one by one.
	for _, invite := range stale {
		done, err := store.ExpireInvite(invite.InviteID, now.Add(6*time.Minute))
		require.NoError(t, err)
		assert.True(t, done)
	}

	// The second sweep sees nothing pending, and re-expiring is a no-op.
	stale, err = store.ListStalePendingInvites(now.Add(7 * time.Minute))
	require.NoError(t, err)
	assert.Empty(t, stale)

	done, err := store.ExpireInvite(first.InviteID, now.Add(7*time.Minute))
	require.NoError(t, err)
	assert.False(t, done)

	stats, err := store.PortalStats(portal.PortalID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Expired)
	assert.Equal(t, int64(0), stats.Pending)
}

func TestPortalBanList(t *testing.T) {
	store := newTestStore(t)
	portal := newTestPortal(t, store)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.BanUser(&models.PortalBan{
		PortalID:  portal.PortalID,
		UserID:    7,
		Reason:    "spam",
		BannedBy:  100,
		CreatedAt: now.Unix(),
	}))

	banned, err := store.IsUserBanned(portal.PortalID, 7)
	require.NoError(t, err)
	assert.True(t, banned)

	// A banned user gets no invite.
	_, err = store.FindOrCreatePendingInvite(portal.PortalID, 7, now)
	assert.ErrorIs(t, err, models.ErrBanned)

	// A ban issued after the invite was handed out blocks the verify.
	invite, err := store.FindOrCreatePendingInvite(portal.PortalID, 8, now)
	require.NoError(t, err)
	require.NoError(t, store.BanUser(&models.PortalBan{
		PortalID: portal.PortalID, UserID: 8, BannedBy: 100, CreatedAt: now.Unix(),
	}))
	_, err = store.VerifyInvite(invite.InviteID, now.Add(time.Minute))
	assert.ErrorIs(t, err, models.ErrBanned)

	// Banning again overwrites instead of failing on the unique index.
	require.NoError(t, store.BanUser(&models.PortalBan{
		PortalID: portal.PortalID, UserID: 7, Reason: "still spam", BannedBy: 100, CreatedAt: now.Unix(),
	}))

	// Unbanning restores the normal flow.
	require.NoError(t, store.UnbanUser(portal.PortalID, 7))
	banned, err = store.IsUserBanned(portal.PortalID, 7)
	require.NoError(t, err)
	assert.False(t, banned)
	_, err = store.FindOrCreatePendingInvite(portal.PortalID, 7, now)
	require.NoError(t, err)

	assert.ErrorIs(t, store.UnbanUser(portal.PortalID, 7), models.ErrNotFound)
}

func TestUpdatePortalSettings(t *testing.T) {
	store := newTestStore(t)
	portal := newTestPortal(t, store)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	before, err := store.FindOrCreatePendingInvite(portal.PortalID, 7, now)
	require.NoError(t, err)

	require.NoError(t, store.UpdatePortalSettings(portal.PortalID, 30, 3, "New welcome"))

	got, err := store.GetPortal(portal.PortalID)
	require.NoError(t, err)
	assert.Equal(t, 30, got.InviteExpiryMinutes)
	assert.Equal(t, 3, got.MaxUses)
	assert.Equal(t, "New welcome", got.WelcomeMessage)

	// Invites issued before the change keep their deadline and use limit.
	same, err := store.FindOrCreatePendingInvite(portal.PortalID, 7, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, before.ExpiresAt, same.ExpiresAt)
	assert.Equal(t, before.MaxUses, same.MaxUses)

	// New invites pick up the new settings.
	fresh, err := store.FindOrCreatePendingInvite(portal.PortalID, 8, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(30*time.Minute).Unix(), fresh.ExpiresAt)
	assert.Equal(t, 3, fresh.MaxUses)

	assert.ErrorIs(t, store.UpdatePortalSettings("missing", 10, 1, "x"), models.ErrNotFound)
}

func TestDisablePortalCascade(t *testing.T) {
	store := newTestStore(t)
	portal := newTestPortal(t, store)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	invite, err := store.FindOrCreatePendingInvite(portal.PortalID, 7, now)
	require.NoError(t, err)

	require.NoError(t, store.DisablePortalCascade(portal.PortalID, now))

	// The revoked invite can never be verified.
	_, err = store.VerifyInvite(invite.InviteID, now.Add(time.Minute))
	assert.ErrorIs(t, err, models.ErrNotFound)

	// New invites for the disabled portal are refused.
	_, err = store.FindOrCreatePendingInvite(portal.PortalID, 9, now)
	assert.ErrorIs(t, err, models.ErrNotFound)

	stats, err := store.PortalStats(portal.PortalID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Revoked)
	assert.Equal(t, int64(0), stats.Pending)
}
