package models

// PortalStatus is the lifecycle state of a portal.
type PortalStatus string

const (
	PortalActive   PortalStatus = "active"
	PortalDisabled PortalStatus = "disabled"
)

// InviteState is the lifecycle state of an invite. Pending is the only
// non-terminal state.
type InviteState string

const (
	InvitePending  InviteState = "pending"
	InviteVerified InviteState = "verified"
	InviteExpired  InviteState = "expired"
	InviteRevoked  InviteState = "revoked"
)

// VerificationResult classifies an entry in the verification audit log.
type VerificationResult string

const (
	ResultSuccess VerificationResult = "success"
	ResultExpired VerificationResult = "expired"
	ResultRevoked VerificationResult = "revoked"
)

// Portal links a public channel to a private group and enforces a one-time
// verification step before group membership persists.
type Portal struct {
	// ID is the unique identifier for the portal.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// PortalID is the short public identifier used in commands and
	// callback payloads.
	PortalID string `json:"portal_id" gorm:"column:portal_id;unique;not null"`
	// OwnerChatID is the admin who ran the setup.
	OwnerChatID int64 `json:"owner_chat_id" gorm:"column:owner_chat_id;index;not null"`
	// PublicChannelID is the channel carrying the verification post.
	PublicChannelID int64 `json:"public_channel_id" gorm:"column:public_channel_id;uniqueIndex:idx_portal_pair;not null"`
	// PublicChannelUsername is the channel handle, without the @.
	PublicChannelUsername string `json:"public_channel_username" gorm:"column:public_channel_username"`
	// PrivateGroupID is the group the portal gates entry to.
	PrivateGroupID int64 `json:"private_group_id" gorm:"column:private_group_id;uniqueIndex:idx_portal_pair;not null"`
	// PrivateGroupTitle is the display title of the private group.
	PrivateGroupTitle string `json:"private_group_title" gorm:"column:private_group_title"`
	// WelcomeMessage is the text shown with the verification button.
	WelcomeMessage string `json:"welcome_message" gorm:"column:welcome_message"`
	// InviteExpiryMinutes is how long an issued invite stays usable.
	InviteExpiryMinutes int `json:"invite_expiry_minutes" gorm:"column:invite_expiry_minutes"`
	// MaxUses is the use limit for each issued invite.
	MaxUses int `json:"max_uses" gorm:"column:max_uses"`
	// Status is active or disabled. Disabling is a hard barrier: no
	// further invite transitions are processed for the portal.
	Status PortalStatus `json:"status" gorm:"column:status;index;default:active"`
	// CreatedAt is the Unix timestamp when the portal was created.
	CreatedAt int64 `json:"created_at" gorm:"column:created_at"`
}

// Invite is a time-limited, bounded-use verification ticket issued to one
// user for one portal. A user has at most one pending invite per portal;
// re-requesting refreshes the existing one.
type Invite struct {
	// InviteID is a UUID identifying the invite.
	InviteID string `json:"invite_id" gorm:"column:invite_id;primaryKey"`
	// PortalID references the owning portal.
	PortalID string `json:"portal_id" gorm:"column:portal_id;index;not null"`
	// UserID is the user the invite was issued to.
	UserID int64 `json:"user_id" gorm:"column:user_id;index;not null"`
	// CreatedAt is the Unix timestamp when the invite was issued.
	CreatedAt int64 `json:"created_at" gorm:"column:created_at"`
	// ExpiresAt is the Unix timestamp past which the invite is stale.
	ExpiresAt int64 `json:"expires_at" gorm:"column:expires_at;index"`
	// MaxUses bounds UsesCount.
	MaxUses int `json:"max_uses" gorm:"column:max_uses"`
	// UsesCount never exceeds MaxUses.
	UsesCount int `json:"uses_count" gorm:"column:uses_count"`
	// State is pending, verified, expired or revoked.
	State InviteState `json:"state" gorm:"column:state;index;default:pending"`
}

// VerificationEvent is one append-only audit entry for portal statistics.
type VerificationEvent struct {
	// ID is the unique identifier for the event.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// InviteID references the invite the event concerns.
	InviteID string `json:"invite_id" gorm:"column:invite_id;index"`
	// PortalID references the portal, for grouped statistics.
	PortalID string `json:"portal_id" gorm:"column:portal_id;index"`
	// UserID is the user the event concerns.
	UserID int64 `json:"user_id" gorm:"column:user_id"`
	// Result is success, expired or revoked.
	Result VerificationResult `json:"result" gorm:"column:result;index"`
	// CreatedAt is the Unix timestamp when the event was recorded.
	CreatedAt int64 `json:"created_at" gorm:"column:created_at"`
}

// PortalBan blocks one user from requesting or verifying invites for one
// portal. Banning again overwrites the reason.
type PortalBan struct {
	// ID is the unique identifier for the ban.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// PortalID references the portal the ban applies to.
	PortalID string `json:"portal_id" gorm:"column:portal_id;uniqueIndex:idx_ban_portal_user;not null"`
	// UserID is the banned user.
	UserID int64 `json:"user_id" gorm:"column:user_id;uniqueIndex:idx_ban_portal_user;not null"`
	// Reason is the free-form note shown in owner tooling.
	Reason string `json:"reason" gorm:"column:reason"`
	// BannedBy is the admin who issued the ban.
	BannedBy int64 `json:"banned_by" gorm:"column:banned_by"`
	// CreatedAt is the Unix timestamp when the ban was issued.
	CreatedAt int64 `json:"created_at" gorm:"column:created_at"`
}

// PortalStats is the read-only per-portal summary behind /portal stats.
type PortalStats struct {
	PortalID string `json:"portal_id"`
	Verified int64  `json:"verified"`
	Expired  int64  `json:"expired"`
	Revoked  int64  `json:"revoked"`
	Pending  int64  `json:"pending"`
}
