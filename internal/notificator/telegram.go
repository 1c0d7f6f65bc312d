// Package notificator is the Telegram front of the service: it delivers
// alert messages, answers bot commands and callback buttons, and adapts the
// Telegram API behind the ChatPlatform interface the engines depend on.
package notificator

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	tgModels "github.com/go-telegram/bot/models"

	"github.com/megaeth-tools/vigil/internal/config"
	"github.com/megaeth-tools/vigil/internal/models"
	"github.com/megaeth-tools/vigil/internal/portal"
	"github.com/megaeth-tools/vigil/pkg/logger"
)

// PortalManager is the slice of the portal service the bot handlers drive.
type PortalManager interface {
	SetupPortal(ctx context.Context, input *portal.SetupInput) (*models.Portal, error)
	RequestInvite(ctx context.Context, portalID string, userID int64, now time.Time) (*models.Invite, error)
	Verify(ctx context.Context, inviteID string, now time.Time) (*models.Invite, string, error)
	ApproveJoin(ctx context.Context, groupID, userID int64) (bool, error)
	UpdateSettings(ctx context.Context, portalID string, callerChatID int64, expiryMinutes, maxUses int, welcomeMessage string) (*models.Portal, error)
	BanUser(ctx context.Context, portalID string, callerChatID, userID int64, reason string) error
	UnbanUser(ctx context.Context, portalID string, callerChatID, userID int64) error
	DeletePortal(ctx context.Context, portalID string, callerChatID int64) error
	Stats(ctx context.Context, portalID string) (*models.PortalStats, error)
	ListPortals(ctx context.Context, ownerChatID int64) ([]*models.Portal, error)
	PortalPost(ctx context.Context, portalID string) (text, buttonText, callbackData string, err error)
}

// MarketBrowser is the slice of the market gateway the browse commands use.
type MarketBrowser interface {
	Search(ctx context.Context, chainID, query string) ([]*models.TokenSnapshot, error)
	Trending(ctx context.Context, chainID string, limit int) ([]*models.TokenSnapshot, error)
	NewPairs(ctx context.Context, chainID string, maxAge time.Duration, limit int) ([]*models.TokenSnapshot, error)
	Movers(ctx context.Context, chainID string, rising bool, limit int) ([]*models.TokenSnapshot, error)
}

type TelegramNotificator struct {
	logger *logger.Logger
	config *config.Config
	bot    *bot.Bot
	botID  int64

	db     models.Repository
	market MarketBrowser
	portal PortalManager
}

func NewTelegramNotificator(
	logger *logger.Logger,
	config *config.Config,
	db models.Repository,
	market MarketBrowser,
) (*TelegramNotificator, error) {
	provider := &TelegramNotificator{
		logger: logger,
		config: config,
		db:     db,
		market: market,
	}
	opts := []bot.Option{
		bot.WithDefaultHandler(provider.handler),
	}

	b, err := bot.New(config.TelegramBotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %s", err)
	}
	provider.bot = b

	return provider, nil
}

// AttachPortalService wires the portal handlers in after construction. The
// portal service needs the notificator as its ChatPlatform, so the two are
// linked in two steps.
func (t *TelegramNotificator) AttachPortalService(pm PortalManager) {
	t.portal = pm
}

// Start resolves the bot identity and runs the long-poll loop until the
// context is cancelled.
func (t *TelegramNotificator) Start(ctx context.Context) error {
	me, err := t.bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("failed to get bot identity: %s", err)
	}
	t.botID = me.ID
	t.logger.Info("Telegram bot started ", "username ", me.Username)

	t.bot.Start(ctx)
	return nil
}

// SendMessage delivers a markdown message to the chat.
func (t *TelegramNotificator) SendMessage(ctx context.Context, chatID int64, text string) error {
	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: tgModels.ParseModeMarkdown,
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %s", err)
	}

	return nil
}

func (t *TelegramNotificator) SendMessageWithButton(ctx context.Context, chatID int64, text, buttonText, callbackData string) error {
	_, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: tgModels.ParseModeMarkdown,
		ReplyMarkup: &tgModels.InlineKeyboardMarkup{
			InlineKeyboard: [][]tgModels.InlineKeyboardButton{
				{{Text: buttonText, CallbackData: callbackData}},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send message with button: %s", err)
	}

	return nil
}

func (t *TelegramNotificator) CreateInviteLink(ctx context.Context, groupID int64, maxUses int, expiresAt time.Time) (string, error) {
	link, err := t.bot.CreateChatInviteLink(ctx, &bot.CreateChatInviteLinkParams{
		ChatID:      groupID,
		ExpireDate:  int(expiresAt.Unix()),
		MemberLimit: maxUses,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create invite link: %s", err)
	}

	return link.InviteLink, nil
}

func (t *TelegramNotificator) ApproveJoinRequest(ctx context.Context, groupID, userID int64) error {
	_, err := t.bot.ApproveChatJoinRequest(ctx, &bot.ApproveChatJoinRequestParams{
		ChatID: groupID,
		UserID: userID,
	})
	if err != nil {
		return fmt.Errorf("failed to approve join request: %s", err)
	}

	return nil
}

// KickMember removes the user without leaving them banned: ban then unban,
// so the user can verify again and rejoin.
func (t *TelegramNotificator) KickMember(ctx context.Context, groupID, userID int64) error {
	_, err := t.bot.BanChatMember(ctx, &bot.BanChatMemberParams{
		ChatID: groupID,
		UserID: userID,
	})
	if err != nil {
		return fmt.Errorf("failed to kick member: %s", err)
	}

	_, err = t.bot.UnbanChatMember(ctx, &bot.UnbanChatMemberParams{
		ChatID:       groupID,
		UserID:       userID,
		OnlyIfBanned: true,
	})
	if err != nil {
		return fmt.Errorf("failed to lift kick ban: %s", err)
	}

	return nil
}

func (t *TelegramNotificator) IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	member, err := t.bot.GetChatMember(ctx, &bot.GetChatMemberParams{
		ChatID: chatID,
		UserID: userID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to get chat member: %s", err)
	}

	return member.Type == tgModels.ChatMemberTypeOwner ||
		member.Type == tgModels.ChatMemberTypeAdministrator, nil
}

func (t *TelegramNotificator) BotCanInvite(ctx context.Context, groupID int64) (bool, error) {
	member, err := t.bot.GetChatMember(ctx, &bot.GetChatMemberParams{
		ChatID: groupID,
		UserID: t.botID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to get bot membership: %s", err)
	}

	if member.Type == tgModels.ChatMemberTypeOwner {
		return true, nil
	}
	if member.Type == tgModels.ChatMemberTypeAdministrator && member.Administrator != nil {
		return member.Administrator.CanInviteUsers, nil
	}
	return false, nil
}

func (t *TelegramNotificator) IsMember(ctx context.Context, groupID, userID int64) (bool, error) {
	member, err := t.bot.GetChatMember(ctx, &bot.GetChatMemberParams{
		ChatID: groupID,
		UserID: userID,
	})
	if err != nil {
		return false, fmt.Errorf("failed to get chat member: %s", err)
	}

	switch member.Type {
	case tgModels.ChatMemberTypeLeft, tgModels.ChatMemberTypeBanned:
		return false, nil
	}
	return true, nil
}

// chatTitle resolves a human label for a chat, falling back to the ID.
func (t *TelegramNotificator) chatTitle(ctx context.Context, chatID int64) (title, username string) {
	chat, err := t.bot.GetChat(ctx, &bot.GetChatParams{ChatID: chatID})
	if err != nil {
		t.logger.Debug("Failed to get chat info ", "chat ", chatID, " error ", err)
		return fmt.Sprint(chatID), ""
	}
	if chat.Title == "" {
		return fmt.Sprint(chatID), chat.Username
	}
	return chat.Title, chat.Username
}
