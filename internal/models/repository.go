package models

import "time"

// Repository is the persistent store for subscriptions, alert history and
// portal state. Implementations must make each check-then-write method a
// single atomic read-modify-write so concurrent command handling cannot
// double-alert or duplicate invites.
type Repository interface {
	Close() error

	// Subscriptions
	UpsertSubscription(sub *Subscription) error
	DeleteSubscription(chatID int64) error
	GetSubscription(chatID int64) (*Subscription, error)
	ListSubscriptions() ([]*Subscription, error)
	// SetSubscriptionActive pauses or resumes alert delivery for a chat
	// without touching its thresholds.
	SetSubscriptionActive(chatID int64, active bool) error

	// Alert records. MarkAlertedIfDue atomically claims an alert slot for
	// (token, kind): it reports false when a record exists whose
	// LastAlertedAt is within the cooldown, otherwise it upserts the
	// record with the new value and timestamp and reports true.
	AlertRecordsForToken(tokenAddress string) (map[AlertKind]*AlertRecord, error)
	MarkAlertedIfDue(tokenAddress string, kind AlertKind, value float64, now time.Time, cooldown time.Duration) (bool, error)
	// EnsureBaseline inserts a never-alerted record when none exists for
	// (token, kind); existing records are left untouched.
	EnsureBaseline(tokenAddress string, kind AlertKind, value float64) error
	// RefreshBaselineValue updates LastValue without touching
	// LastAlertedAt.
	RefreshBaselineValue(tokenAddress string, kind AlertKind, value float64) error

	// Portals
	CreatePortal(portal *Portal) error
	GetPortal(portalID string) (*Portal, error)
	GetPortalByChannelPair(publicChannelID, privateGroupID int64) (*Portal, error)
	GetPortalByGroup(privateGroupID int64) (*Portal, error)
	ListPortalsByOwner(ownerChatID int64) ([]*Portal, error)
	// UpdatePortalSettings changes the invite expiry, use limit and
	// welcome text of an existing portal. Invites already issued keep
	// their original deadline; only new invites pick up the change.
	UpdatePortalSettings(portalID string, expiryMinutes, maxUses int, welcomeMessage string) error
	// DisablePortalCascade flips the portal to disabled and revokes all of
	// its pending invites in one transaction. A verify racing the delete
	// must lose.
	DisablePortalCascade(portalID string, now time.Time) error

	// Ban list. Banned users cannot request or verify invites for the
	// portal. BanUser overwrites an existing ban for the same user.
	BanUser(ban *PortalBan) error
	UnbanUser(portalID string, userID int64) error
	IsUserBanned(portalID string, userID int64) (bool, error)

	// Invites. FindOrCreatePendingInvite reuses an unexpired pending
	// invite for (portal, user), refreshes a stale pending one, or creates
	// a new invite; it returns ErrNotFound for a disabled or missing
	// portal. VerifyInvite performs the pending -> verified transition and
	// returns ErrExpired/ErrExhausted/ErrNotFound per the state machine.
	FindOrCreatePendingInvite(portalID string, userID int64, now time.Time) (*Invite, error)
	VerifyInvite(inviteID string, now time.Time) (*Invite, error)
	// ListStalePendingInvites returns the pending invites past their
	// expiry, without mutating them. The sweep expires each one with
	// ExpireInvite only after the kick side effect is done, so an
	// interrupted sweep can resume enforcement on the next run.
	ListStalePendingInvites(now time.Time) ([]*Invite, error)
	// ExpireInvite transitions a single invite from pending to expired
	// and appends the audit event. It reports false without error when
	// the invite is no longer pending, making repeated sweeps idempotent.
	ExpireInvite(inviteID string, now time.Time) (bool, error)
	// HasVerifiedInvite reports whether the user holds a verified invite
	// for the portal, used to gate join request approval.
	HasVerifiedInvite(portalID string, userID int64) (bool, error)

	// Verification audit log
	AppendVerificationEvent(event *VerificationEvent) error
	PortalStats(portalID string) (*PortalStats, error)
}
