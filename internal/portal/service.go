// Package portal implements the verification portal state machine: portal
// setup, invite issuance, verification and the periodic enforcement sweep
// that expires stale invites and kicks unverified members.
package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/megaeth-tools/vigil/internal/config"
	"github.com/megaeth-tools/vigil/internal/models"
	"github.com/megaeth-tools/vigil/pkg/logger"
)

type Service struct {
	logger *logger.Logger
	config *config.Config

	repo     models.Repository
	platform models.ChatPlatform
}

// SetupInput carries the validated arguments of a portal setup request.
type SetupInput struct {
	OwnerChatID           int64
	PublicChannelID       int64
	PublicChannelUsername string
	PrivateGroupID        int64
	PrivateGroupTitle     string
	WelcomeMessage        string
}

func NewService(
	repo models.Repository,
	platform models.ChatPlatform,
	logger *logger.Logger,
	config *config.Config,
) *Service {
	return &Service{
		repo:     repo,
		platform: platform,
		logger:   logger,
		config:   config,
	}
}

// Start drives the enforcement sweep at the configured interval until the
// context is cancelled.
func (s *Service) Start(ctx context.Context) {
	ticker := time.NewTicker(s.config.PortalSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Portal sweep stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx, time.Now()); err != nil {
				s.logger.Error("Portal sweep failed ", "error ", err)
			}
		}
	}
}

// SetupPortal creates an active portal after checking that the caller
// administers both chats and the bot can issue invites for the group. No
// state is mutated when a check fails.
func (s *Service) SetupPortal(ctx context.Context, input *SetupInput) (*models.Portal, error) {
	if input.PublicChannelID == 0 || input.PrivateGroupID == 0 {
		return nil, &models.ConfigurationError{Reason: "both a public channel and a private group are required"}
	}
	if input.PublicChannelID == input.PrivateGroupID {
		return nil, &models.ConfigurationError{Reason: "channel and group must be different chats"}
	}

	for _, chatID := range []int64{input.PublicChannelID, input.PrivateGroupID} {
		isAdmin, err := s.platform.IsChatAdmin(ctx, chatID, input.OwnerChatID)
		if err != nil {
			return nil, &models.ConfigurationError{Reason: fmt.Sprintf("could not check admin rights on chat %d: %v", chatID, err)}
		}
		if !isAdmin {
			return nil, &models.ConfigurationError{Reason: fmt.Sprintf("you must be an admin of chat %d", chatID)}
		}
	}

	canInvite, err := s.platform.BotCanInvite(ctx, input.PrivateGroupID)
	if err != nil {
		return nil, &models.ConfigurationError{Reason: fmt.Sprintf("could not check bot permissions: %v", err)}
	}
	if !canInvite {
		return nil, &models.ConfigurationError{Reason: "the bot needs admin rights with invite permission in the private group"}
	}

	existing, err := s.repo.GetPortalByChannelPair(input.PublicChannelID, input.PrivateGroupID)
	if err == nil {
		return nil, &models.ConfigurationError{Reason: fmt.Sprintf("a portal already links these chats: %s", existing.PortalID)}
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	welcome := input.WelcomeMessage
	if welcome == "" {
		welcome = fmt.Sprintf("🔐 To join %s, verify yourself first. Tap the button below.", input.PrivateGroupTitle)
	}

	portal := &models.Portal{
		PortalID:              newPortalID(),
		OwnerChatID:           input.OwnerChatID,
		PublicChannelID:       input.PublicChannelID,
		PublicChannelUsername: input.PublicChannelUsername,
		PrivateGroupID:        input.PrivateGroupID,
		PrivateGroupTitle:     input.PrivateGroupTitle,
		WelcomeMessage:        welcome,
		InviteExpiryMinutes:   int(s.config.PortalInviteExpiry / time.Minute),
		MaxUses:               s.config.PortalMaxUses,
		Status:                models.PortalActive,
		CreatedAt:             time.Now().Unix(),
	}
	if err := s.repo.CreatePortal(portal); err != nil {
		return nil, err
	}

	s.logger.Info("Portal created ", "portal ", portal.PortalID, " owner ", input.OwnerChatID)
	return portal, nil
}

// RequestInvite issues (or re-issues) the pending invite for a user. The
// operation is idempotent: re-clicking the verify button returns the
// existing unexpired invite.
func (s *Service) RequestInvite(ctx context.Context, portalID string, userID int64, now time.Time) (*models.Invite, error) {
	return s.repo.FindOrCreatePendingInvite(portalID, userID, now)
}

// Verify transitions the invite to verified and returns the one-time join
// link. State errors (ErrExpired, ErrExhausted, ErrNotFound) come back to
// the caller; a failure to create the link is a dispatch failure and does
// not undo the transition, so the returned link may be empty.
func (s *Service) Verify(ctx context.Context, inviteID string, now time.Time) (*models.Invite, string, error) {
	invite, err := s.repo.VerifyInvite(inviteID, now)
	if err != nil {
		return nil, "", err
	}

	portal, err := s.repo.GetPortal(invite.PortalID)
	if err != nil {
		return nil, "", err
	}

	link, err := s.platform.CreateInviteLink(ctx, portal.PrivateGroupID, invite.MaxUses, time.Unix(invite.ExpiresAt, 0))
	if err != nil {
		s.logger.Error("Failed to create invite link ", "invite ", invite.InviteID, " error ", err)
		return invite, "", nil
	}

	s.logger.Info("User verified ", "portal ", invite.PortalID, " user ", invite.UserID)
	return invite, link, nil
}

// ApproveJoin handles a join request to a portal-guarded group: users who
// completed verification are approved, everyone else stays pending.
func (s *Service) ApproveJoin(ctx context.Context, groupID, userID int64) (bool, error) {
	portal, err := s.repo.GetPortalByGroup(groupID)
	if err != nil {
		return false, err
	}

	verified, err := s.repo.HasVerifiedInvite(portal.PortalID, userID)
	if err != nil {
		return false, err
	}
	if !verified {
		return false, nil
	}

	if err := s.platform.ApproveJoinRequest(ctx, groupID, userID); err != nil {
		s.logger.Error("Failed to approve join request ", "group ", groupID, " user ", userID, " error ", err)
		return false, nil
	}
	return true, nil
}

// Sweep expires pending invites past their deadline and kicks users who
// joined the group without completing verification. Each invite is expired
// only after its kick decision ran, so a sweep interrupted by shutdown or a
// transient platform error leaves the remaining invites pending for the
// next pass. Re-running the sweep over already-expired invites is a no-op.
// Returns the number of invites expired this pass.
func (s *Service) Sweep(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.repo.ListStalePendingInvites(now)
	if err != nil {
		return 0, err
	}

	expired := 0
	portals := make(map[string]*models.Portal)
	for _, invite := range stale {
		select {
		case <-ctx.Done():
			return expired, ctx.Err()
		default:
		}

		portal, ok := portals[invite.PortalID]
		if !ok {
			portal, err = s.repo.GetPortal(invite.PortalID)
			if err != nil {
				// Leave the invite pending; the next sweep retries.
				s.logger.Error("Failed to load portal for sweep ", "portal ", invite.PortalID, " error ", err)
				continue
			}
			portals[invite.PortalID] = portal
		}

		member, err := s.platform.IsMember(ctx, portal.PrivateGroupID, invite.UserID)
		if err != nil {
			s.logger.Error("Failed to check membership ", "group ", portal.PrivateGroupID, " user ", invite.UserID, " error ", err)
			continue
		}

		if member {
			// "Already kicked" or missing permissions are terminal for
			// this intent: log, expire and move on.
			if err := s.platform.KickMember(ctx, portal.PrivateGroupID, invite.UserID); err != nil {
				s.logger.Error("Failed to kick unverified user ", "group ", portal.PrivateGroupID, " user ", invite.UserID, " error ", err)
			} else {
				s.logger.Info("Kicked unverified user ", "group ", portal.PrivateGroupID, " user ", invite.UserID)
			}
		}

		done, err := s.repo.ExpireInvite(invite.InviteID, now)
		if err != nil {
			s.logger.Error("Failed to expire invite ", "invite ", invite.InviteID, " error ", err)
			continue
		}
		if done {
			expired++
		}
	}

	return expired, nil
}

// UpdateSettings adjusts an existing portal's invite expiry, use limit and
// welcome text. Owner only. Invites already issued keep their original
// deadline; only new invites pick up the change.
func (s *Service) UpdateSettings(ctx context.Context, portalID string, callerChatID int64, expiryMinutes, maxUses int, welcomeMessage string) (*models.Portal, error) {
	portal, err := s.ownedPortal(portalID, callerChatID)
	if err != nil {
		return nil, err
	}

	if expiryMinutes < 1 {
		return nil, &models.ConfigurationError{Reason: "invite expiry must be at least 1 minute"}
	}
	if maxUses < 1 {
		return nil, &models.ConfigurationError{Reason: "max uses must be at least 1"}
	}
	if welcomeMessage == "" {
		welcomeMessage = portal.WelcomeMessage
	}

	if err := s.repo.UpdatePortalSettings(portalID, expiryMinutes, maxUses, welcomeMessage); err != nil {
		return nil, err
	}

	portal.InviteExpiryMinutes = expiryMinutes
	portal.MaxUses = maxUses
	portal.WelcomeMessage = welcomeMessage
	s.logger.Info("Portal settings updated ", "portal ", portalID)
	return portal, nil
}

// BanUser puts a user on the portal's ban list. Owner only. A banned user
// can no longer request invites, and an invite already in flight fails at
// the verify step.
func (s *Service) BanUser(ctx context.Context, portalID string, callerChatID, userID int64, reason string) error {
	if _, err := s.ownedPortal(portalID, callerChatID); err != nil {
		return err
	}

	ban := &models.PortalBan{
		PortalID:  portalID,
		UserID:    userID,
		Reason:    reason,
		BannedBy:  callerChatID,
		CreatedAt: time.Now().Unix(),
	}
	if err := s.repo.BanUser(ban); err != nil {
		return err
	}

	s.logger.Info("User banned from portal ", "portal ", portalID, " user ", userID)
	return nil
}

// UnbanUser removes a user from the portal's ban list. Owner only.
func (s *Service) UnbanUser(ctx context.Context, portalID string, callerChatID, userID int64) error {
	if _, err := s.ownedPortal(portalID, callerChatID); err != nil {
		return err
	}

	if err := s.repo.UnbanUser(portalID, userID); err != nil {
		return err
	}

	s.logger.Info("User unbanned from portal ", "portal ", portalID, " user ", userID)
	return nil
}

// DeletePortal disables the portal and revokes its pending invites. Only
// the owner may delete a portal. Delete wins against an in-flight verify.
func (s *Service) DeletePortal(ctx context.Context, portalID string, callerChatID int64) error {
	if _, err := s.ownedPortal(portalID, callerChatID); err != nil {
		return err
	}

	if err := s.repo.DisablePortalCascade(portalID, time.Now()); err != nil {
		return err
	}

	s.logger.Info("Portal deleted ", "portal ", portalID)
	return nil
}

func (s *Service) ownedPortal(portalID string, callerChatID int64) (*models.Portal, error) {
	portal, err := s.repo.GetPortal(portalID)
	if err != nil {
		return nil, err
	}
	if portal.OwnerChatID != callerChatID {
		return nil, &models.ConfigurationError{Reason: "only the portal owner can do that"}
	}
	return portal, nil
}

// Stats is a pure read of the verification audit log.
func (s *Service) Stats(ctx context.Context, portalID string) (*models.PortalStats, error) {
	if _, err := s.repo.GetPortal(portalID); err != nil {
		return nil, err
	}
	return s.repo.PortalStats(portalID)
}

// ListPortals returns the caller's portals.
func (s *Service) ListPortals(ctx context.Context, ownerChatID int64) ([]*models.Portal, error) {
	return s.repo.ListPortalsByOwner(ownerChatID)
}

// PortalPost renders the verification message an owner posts into the
// public channel, together with the button payload.
func (s *Service) PortalPost(ctx context.Context, portalID string) (text, buttonText, callbackData string, err error) {
	portal, err := s.repo.GetPortal(portalID)
	if err != nil {
		return "", "", "", err
	}

	text = fmt.Sprintf("%s\n\n⏱️ Invite links expire in %d minutes and are single use.",
		portal.WelcomeMessage, portal.InviteExpiryMinutes)
	return text, "🔓 Verify & Join", "portal_verify:" + portal.PortalID, nil
}

// newPortalID derives a short command-friendly identifier.
func newPortalID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
