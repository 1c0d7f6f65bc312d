package models

import (
	"context"
	"time"
)

// ChatPlatform is the boundary to the chat service. The engines never call
// the platform API directly; they emit intents through this interface and
// treat execution failures as already-terminal (logged, not rolled back).
type ChatPlatform interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendMessageWithButton(ctx context.Context, chatID int64, text, buttonText, callbackData string) error

	// CreateInviteLink returns a bounded-use, expiring join link for the
	// group.
	CreateInviteLink(ctx context.Context, groupID int64, maxUses int, expiresAt time.Time) (string, error)
	// ApproveJoinRequest accepts a pending join request for the user.
	ApproveJoinRequest(ctx context.Context, groupID, userID int64) error
	// KickMember removes the user from the group without banning them, so
	// they can re-verify and try again.
	KickMember(ctx context.Context, groupID, userID int64) error

	IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error)
	// BotCanInvite reports whether the bot is a group admin with invite
	// rights.
	BotCanInvite(ctx context.Context, groupID int64) (bool, error)
	IsMember(ctx context.Context, groupID, userID int64) (bool, error)
}
