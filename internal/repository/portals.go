package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/megaeth-tools/vigil/internal/models"
)

func (db *Store) CreatePortal(portal *models.Portal) error {
	if err := db.Conn.Create(portal).Error; err != nil {
		return fmt.Errorf("failed to create portal: %s", err)
	}

	return nil
}

func (db *Store) GetPortal(portalID string) (*models.Portal, error) {
	var portal models.Portal
	if err := db.Conn.Where("portal_id = ?", portalID).First(&portal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get portal: %s", err)
	}

	return &portal, nil
}

func (db *Store) GetPortalByChannelPair(publicChannelID, privateGroupID int64) (*models.Portal, error) {
	var portal models.Portal
	err := db.Conn.Where("public_channel_id = ? AND private_group_id = ?", publicChannelID, privateGroupID).
		First(&portal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get portal by channel pair: %s", err)
	}

	return &portal, nil
}

func (db *Store) GetPortalByGroup(privateGroupID int64) (*models.Portal, error) {
	var portal models.Portal
	err := db.Conn.Where("private_group_id = ? AND status = ?", privateGroupID, models.PortalActive).
		First(&portal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get portal by group: %s", err)
	}

	return &portal, nil
}

func (db *Store) ListPortalsByOwner(ownerChatID int64) ([]*models.Portal, error) {
	var portals []*models.Portal
	if err := db.Conn.Where("owner_chat_id = ?", ownerChatID).Find(&portals).Error; err != nil {
		return nil, fmt.Errorf("failed to list portals: %s", err)
	}

	return portals, nil
}

// UpdatePortalSettings rewrites the adjustable portal fields. Invites
// already issued keep the deadline and use limit they were created with.
func (db *Store) UpdatePortalSettings(portalID string, expiryMinutes, maxUses int, welcomeMessage string) error {
	result := db.Conn.Model(&models.Portal{}).
		Where("portal_id = ?", portalID).
		Updates(map[string]interface{}{
			"invite_expiry_minutes": expiryMinutes,
			"max_uses":              maxUses,
			"welcome_message":       welcomeMessage,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update portal settings: %s", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}

	return nil
}

// BanUser adds a user to the portal's ban list. Banning an already banned
// user overwrites the reason and issuer.
func (db *Store) BanUser(ban *models.PortalBan) error {
	err := db.Conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "portal_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"reason", "banned_by", "created_at"}),
	}).Create(ban).Error
	if err != nil {
		return fmt.Errorf("failed to ban user: %s", err)
	}

	return nil
}

func (db *Store) UnbanUser(portalID string, userID int64) error {
	result := db.Conn.Where("portal_id = ? AND user_id = ?", portalID, userID).Delete(&models.PortalBan{})
	if result.Error != nil {
		return fmt.Errorf("failed to unban user: %s", result.Error)
	}
	if result.RowsAffected == 0 {
		return models.ErrNotFound
	}

	return nil
}

func (db *Store) IsUserBanned(portalID string, userID int64) (bool, error) {
	banned, err := userBanned(db.Conn, portalID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to check ban: %s", err)
	}

	return banned, nil
}

func userBanned(tx *gorm.DB, portalID string, userID int64) (bool, error) {
	var count int64
	err := tx.Model(&models.PortalBan{}).
		Where("portal_id = ? AND user_id = ?", portalID, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}

// DisablePortalCascade is the hard barrier of portal deletion: the portal
// flips to disabled and every pending invite is revoked inside one
// transaction, so a concurrently running verify observes the disabled
// portal and fails with ErrNotFound.
func (db *Store) DisablePortalCascade(portalID string, now time.Time) error {
	return db.Conn.Transaction(func(tx *gorm.DB) error {
		var portal models.Portal
		if err := tx.Where("portal_id = ?", portalID).First(&portal).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrNotFound
			}
			return fmt.Errorf("failed to get portal: %s", err)
		}

		if err := tx.Model(&portal).Update("status", models.PortalDisabled).Error; err != nil {
			return fmt.Errorf("failed to disable portal: %s", err)
		}

		var pending []*models.Invite
		err := tx.Where("portal_id = ? AND state = ?", portalID, models.InvitePending).Find(&pending).Error
		if err != nil {
			return fmt.Errorf("failed to load pending invites: %s", err)
		}

		for _, invite := range pending {
			if err := tx.Model(invite).Update("state", models.InviteRevoked).Error; err != nil {
				return fmt.Errorf("failed to revoke invite %s: %s", invite.InviteID, err)
			}
			event := &models.VerificationEvent{
				InviteID:  invite.InviteID,
				PortalID:  portalID,
				UserID:    invite.UserID,
				Result:    models.ResultRevoked,
				CreatedAt: now.Unix(),
			}
			if err := tx.Create(event).Error; err != nil {
				return fmt.Errorf("failed to append revoked event: %s", err)
			}
		}
		return nil
	})
}

// FindOrCreatePendingInvite is the atomic check-then-create for invites: an
// unexpired pending invite for (portal, user) is returned unchanged, a
// stale pending one is refreshed, and only when neither exists is a new
// invite created. The partial unique index backs this up against
// concurrent writers.
func (db *Store) FindOrCreatePendingInvite(portalID string, userID int64, now time.Time) (*models.Invite, error) {
	var invite *models.Invite
	err := db.Conn.Transaction(func(tx *gorm.DB) error {
		var portal models.Portal
		if err := tx.Where("portal_id = ?", portalID).First(&portal).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrNotFound
			}
			return fmt.Errorf("failed to get portal: %s", err)
		}
		if portal.Status != models.PortalActive {
			return models.ErrNotFound
		}

		banned, err := userBanned(tx, portalID, userID)
		if err != nil {
			return fmt.Errorf("failed to check ban: %s", err)
		}
		if banned {
			return models.ErrBanned
		}

		var existing models.Invite
		err = tx.Where("portal_id = ? AND user_id = ? AND state = ?", portalID, userID, models.InvitePending).
			First(&existing).Error
		switch {
		case err == nil:
			if existing.ExpiresAt > now.Unix() {
				invite = &existing
				return nil
			}
			// Stale but not yet swept: refresh instead of duplicating.
			existing.ExpiresAt = now.Add(time.Duration(portal.InviteExpiryMinutes) * time.Minute).Unix()
			existing.UsesCount = 0
			if err := tx.Save(&existing).Error; err != nil {
				return fmt.Errorf("failed to refresh pending invite: %s", err)
			}
			invite = &existing
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("failed to look up pending invite: %s", err)
		}

		created := &models.Invite{
			InviteID:  uuid.NewString(),
			PortalID:  portalID,
			UserID:    userID,
			CreatedAt: now.Unix(),
			ExpiresAt: now.Add(time.Duration(portal.InviteExpiryMinutes) * time.Minute).Unix(),
			MaxUses:   portal.MaxUses,
			State:     models.InvitePending,
		}
		if err := tx.Create(created).Error; err != nil {
			return fmt.Errorf("failed to create invite: %s", err)
		}
		invite = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	return invite, nil
}

// VerifyInvite performs the pending -> verified transition. The portal
// status is re-read inside the transaction so a racing delete wins.
func (db *Store) VerifyInvite(inviteID string, now time.Time) (*models.Invite, error) {
	var verified *models.Invite
	err := db.Conn.Transaction(func(tx *gorm.DB) error {
		var invite models.Invite
		if err := tx.Where("invite_id = ?", inviteID).First(&invite).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrNotFound
			}
			return fmt.Errorf("failed to get invite: %s", err)
		}

		var portal models.Portal
		if err := tx.Where("portal_id = ?", invite.PortalID).First(&portal).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrNotFound
			}
			return fmt.Errorf("failed to get portal: %s", err)
		}
		if portal.Status != models.PortalActive {
			return models.ErrNotFound
		}

		banned, err := userBanned(tx, invite.PortalID, invite.UserID)
		if err != nil {
			return fmt.Errorf("failed to check ban: %s", err)
		}
		if banned {
			// A ban issued after the invite was handed out still wins.
			return models.ErrBanned
		}

		switch invite.State {
		case models.InvitePending:
			// continue below
		case models.InviteVerified:
			return models.ErrExhausted
		case models.InviteExpired:
			return models.ErrExpired
		case models.InviteRevoked:
			return models.ErrNotFound
		}

		if now.Unix() > invite.ExpiresAt {
			// The record stays pending on purpose: the sweep expires it
			// after the kick side effect runs.
			return models.ErrExpired
		}

		if invite.UsesCount >= invite.MaxUses {
			return models.ErrExhausted
		}

		invite.UsesCount++
		invite.State = models.InviteVerified
		if err := tx.Save(&invite).Error; err != nil {
			return fmt.Errorf("failed to verify invite: %s", err)
		}

		event := &models.VerificationEvent{
			InviteID:  invite.InviteID,
			PortalID:  invite.PortalID,
			UserID:    invite.UserID,
			Result:    models.ResultSuccess,
			CreatedAt: now.Unix(),
		}
		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("failed to append success event: %s", err)
		}

		verified = &invite
		return nil
	})
	if err != nil {
		return nil, err
	}

	return verified, nil
}

func (db *Store) ListStalePendingInvites(now time.Time) ([]*models.Invite, error) {
	var stale []*models.Invite
	err := db.Conn.Where("state = ? AND expires_at < ?", models.InvitePending, now.Unix()).Find(&stale).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find stale invites: %s", err)
	}

	return stale, nil
}

// ExpireInvite transitions one invite from pending to expired. The sweep
// calls it per invite after the kick is done, so invites whose kick never
// ran stay pending and are picked up again by the next sweep.
func (db *Store) ExpireInvite(inviteID string, now time.Time) (bool, error) {
	expired := false
	err := db.Conn.Transaction(func(tx *gorm.DB) error {
		var invite models.Invite
		if err := tx.Where("invite_id = ?", inviteID).First(&invite).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.ErrNotFound
			}
			return fmt.Errorf("failed to get invite: %s", err)
		}
		if invite.State != models.InvitePending {
			return nil
		}

		if err := tx.Model(&invite).Update("state", models.InviteExpired).Error; err != nil {
			return fmt.Errorf("failed to expire invite: %s", err)
		}

		event := &models.VerificationEvent{
			InviteID:  invite.InviteID,
			PortalID:  invite.PortalID,
			UserID:    invite.UserID,
			Result:    models.ResultExpired,
			CreatedAt: now.Unix(),
		}
		if err := tx.Create(event).Error; err != nil {
			return fmt.Errorf("failed to append expired event: %s", err)
		}

		expired = true
		return nil
	})
	if err != nil {
		return false, err
	}

	return expired, nil
}

func (db *Store) HasVerifiedInvite(portalID string, userID int64) (bool, error) {
	var count int64
	err := db.Conn.Model(&models.Invite{}).
		Where("portal_id = ? AND user_id = ? AND state = ?", portalID, userID, models.InviteVerified).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check verified invite: %s", err)
	}

	return count > 0, nil
}

func (db *Store) AppendVerificationEvent(event *models.VerificationEvent) error {
	if err := db.Conn.Create(event).Error; err != nil {
		return fmt.Errorf("failed to append verification event: %s", err)
	}

	return nil
}

func (db *Store) PortalStats(portalID string) (*models.PortalStats, error) {
	stats := &models.PortalStats{PortalID: portalID}

	type countRow struct {
		Result models.VerificationResult
		Count  int64
	}
	var rows []countRow
	err := db.Conn.Model(&models.VerificationEvent{}).
		Select("result, count(*) as count").
		Where("portal_id = ?", portalID).
		Group("result").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count verification events: %s", err)
	}

	for _, row := range rows {
		switch row.Result {
		case models.ResultSuccess:
			stats.Verified = row.Count
		case models.ResultExpired:
			stats.Expired = row.Count
		case models.ResultRevoked:
			stats.Revoked = row.Count
		}
	}

	err = db.Conn.Model(&models.Invite{}).
		Where("portal_id = ? AND state = ?", portalID, models.InvitePending).
		Count(&stats.Pending).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count pending invites: %s", err)
	}

	return stats, nil
}
