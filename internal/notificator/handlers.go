package notificator

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	tgModels "github.com/go-telegram/bot/models"

	"github.com/megaeth-tools/vigil/internal/models"
	"github.com/megaeth-tools/vigil/internal/portal"
	"github.com/megaeth-tools/vigil/pkg/validation"
)

const browseLimit = 10

// handler routes every incoming update: commands from messages, button
// presses from callback queries, and join requests to portal groups.
func (t *TelegramNotificator) handler(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
	switch {
	case update.CallbackQuery != nil:
		t.handleCallback(ctx, update.CallbackQuery)
	case update.ChatJoinRequest != nil:
		t.handleJoinRequest(ctx, update.ChatJoinRequest)
	case update.Message != nil && update.Message.From != nil:
		t.handleMessage(ctx, update.Message)
	}
}

func (t *TelegramNotificator) handleMessage(ctx context.Context, msg *tgModels.Message) {
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}
	t.logger.Debug("Telegram command ", "user ", msg.From.Username, " text ", text)

	args := strings.Fields(text)
	command := args[0]
	// Commands in groups arrive as /command@botname.
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}
	chatID := msg.Chat.ID

	switch command {
	case "/start", "/help":
		t.reply(ctx, chatID, helpText())
	case "/subscribe":
		t.handleSubscribe(ctx, chatID, args[1:])
	case "/unsubscribe":
		t.handleUnsubscribe(ctx, chatID)
	case "/alerts":
		t.handleAlerts(ctx, chatID, args[1:])
	case "/portal":
		t.handlePortal(ctx, msg, args[1:])
	case "/trending":
		t.handleTrending(ctx, chatID)
	case "/new":
		t.handleNewPairs(ctx, chatID)
	case "/gainers":
		t.handleMovers(ctx, chatID, true)
	case "/losers":
		t.handleMovers(ctx, chatID, false)
	case "/price":
		t.handlePrice(ctx, chatID, args[1:])
	default:
		t.reply(ctx, chatID, "Unknown command. Use /help to see what I can do.")
	}
}

func (t *TelegramNotificator) handleSubscribe(ctx context.Context, chatID int64, args []string) {
	sub := &models.Subscription{
		ChatID:               chatID,
		MinVolumeUSD:         t.config.MinVolumeUSD,
		MinLiquidityUSD:      t.config.MinLiquidityUSD,
		PriceChangeThreshold: t.config.PriceChangeThreshold,
		Active:               true,
		CreatedAt:            time.Now().Unix(),
	}

	// Optional overrides: /subscribe [min_volume] [min_liquidity] [price_%]
	fields := []*float64{&sub.MinVolumeUSD, &sub.MinLiquidityUSD, &sub.PriceChangeThreshold}
	for i, arg := range args {
		if i >= len(fields) {
			break
		}
		value, err := strconv.ParseFloat(arg, 64)
		if err != nil || value < 0 {
			t.reply(ctx, chatID, "Usage: /subscribe [min\\_volume\\_usd] [min\\_liquidity\\_usd] [price\\_change\\_%]")
			return
		}
		*fields[i] = value
	}

	if err := t.db.UpsertSubscription(sub); err != nil {
		t.logger.Error("Failed to upsert subscription ", "chat ", chatID, " error ", err)
		t.reply(ctx, chatID, "Something went wrong saving your subscription, please try again.")
		return
	}

	t.reply(ctx, chatID, formatSubscribed(sub))
}

func (t *TelegramNotificator) handleUnsubscribe(ctx context.Context, chatID int64) {
	err := t.db.DeleteSubscription(chatID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		t.reply(ctx, chatID, "This chat has no active subscription.")
	case err != nil:
		t.logger.Error("Failed to delete subscription ", "chat ", chatID, " error ", err)
		t.reply(ctx, chatID, "Something went wrong, please try again.")
	default:
		t.reply(ctx, chatID, "Unsubscribed. You will no longer receive alerts.")
	}
}

// handleAlerts shows the subscription status, or pauses and resumes
// delivery without touching the saved thresholds.
func (t *TelegramNotificator) handleAlerts(ctx context.Context, chatID int64, args []string) {
	if len(args) == 0 {
		sub, err := t.db.GetSubscription(chatID)
		if errors.Is(err, models.ErrNotFound) {
			t.reply(ctx, chatID, "This chat has no subscription. Use /subscribe to create one.")
			return
		}
		if err != nil {
			t.logger.Error("Failed to get subscription ", "chat ", chatID, " error ", err)
			t.reply(ctx, chatID, "Something went wrong, please try again.")
			return
		}
		t.reply(ctx, chatID, formatAlertsStatus(sub))
		return
	}

	var active bool
	switch args[0] {
	case "on":
		active = true
	case "off":
		active = false
	default:
		t.reply(ctx, chatID, "Usage: /alerts [on|off]")
		return
	}

	err := t.db.SetSubscriptionActive(chatID, active)
	switch {
	case errors.Is(err, models.ErrNotFound):
		t.reply(ctx, chatID, "This chat has no subscription. Use /subscribe to create one.")
	case err != nil:
		t.logger.Error("Failed to toggle alerts ", "chat ", chatID, " error ", err)
		t.reply(ctx, chatID, "Something went wrong, please try again.")
	case active:
		t.reply(ctx, chatID, "🔔 Alerts enabled.")
	default:
		t.reply(ctx, chatID, "🔕 Alerts paused. Your thresholds are kept; use /alerts on to resume.")
	}
}

func (t *TelegramNotificator) handlePortal(ctx context.Context, msg *tgModels.Message, args []string) {
	chatID := msg.Chat.ID
	if t.portal == nil {
		t.reply(ctx, chatID, "Portals are not available right now.")
		return
	}
	if len(args) == 0 {
		t.reply(ctx, chatID, portalUsage())
		return
	}

	switch args[0] {
	case "setup":
		t.handlePortalSetup(ctx, msg, args[1:])
	case "list":
		t.handlePortalList(ctx, chatID)
	case "post":
		t.handlePortalPost(ctx, chatID, args[1:])
	case "stats":
		t.handlePortalStats(ctx, chatID, args[1:])
	case "settings":
		t.handlePortalSettings(ctx, chatID, args[1:])
	case "ban":
		t.handlePortalBan(ctx, chatID, args[1:])
	case "unban":
		t.handlePortalUnban(ctx, chatID, args[1:])
	case "delete":
		t.handlePortalDelete(ctx, chatID, args[1:])
	default:
		t.reply(ctx, chatID, portalUsage())
	}
}

func (t *TelegramNotificator) handlePortalSetup(ctx context.Context, msg *tgModels.Message, args []string) {
	chatID := msg.Chat.ID
	if len(args) < 2 {
		t.reply(ctx, chatID, "Usage: /portal setup <channel\\_id> <group\\_id> [welcome message]")
		return
	}

	channelID, err1 := strconv.ParseInt(args[0], 10, 64)
	groupID, err2 := strconv.ParseInt(args[1], 10, 64)
	if err1 != nil || err2 != nil {
		t.reply(ctx, chatID, "Chat IDs must be numeric. Forward a message from the chat to @userinfobot to find its ID.")
		return
	}

	_, channelUsername := t.chatTitle(ctx, channelID)
	groupTitle, _ := t.chatTitle(ctx, groupID)

	input := &portal.SetupInput{
		OwnerChatID:           msg.From.ID,
		PublicChannelID:       channelID,
		PublicChannelUsername: channelUsername,
		PrivateGroupID:        groupID,
		PrivateGroupTitle:     groupTitle,
		WelcomeMessage:        strings.Join(args[2:], " "),
	}

	created, err := t.portal.SetupPortal(ctx, input)
	if err != nil {
		t.replyError(ctx, chatID, err)
		return
	}

	t.reply(ctx, chatID, formatPortalCreated(created))
}

func (t *TelegramNotificator) handlePortalList(ctx context.Context, chatID int64) {
	portals, err := t.portal.ListPortals(ctx, chatID)
	if err != nil {
		t.logger.Error("Failed to list portals ", "chat ", chatID, " error ", err)
		t.reply(ctx, chatID, "Something went wrong, please try again.")
		return
	}

	t.reply(ctx, chatID, formatPortalList(portals))
}

func (t *TelegramNotificator) handlePortalPost(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		t.reply(ctx, chatID, "Usage: /portal post <portal\\_id>")
		return
	}

	text, buttonText, callbackData, err := t.portal.PortalPost(ctx, args[0])
	if err != nil {
		t.replyError(ctx, chatID, err)
		return
	}

	// The verification post goes to the public channel, not the chat the
	// command came from.
	portals, err := t.portal.ListPortals(ctx, chatID)
	if err != nil {
		t.replyError(ctx, chatID, err)
		return
	}
	for _, p := range portals {
		if p.PortalID != args[0] {
			continue
		}
		if err := t.SendMessageWithButton(ctx, p.PublicChannelID, text, buttonText, callbackData); err != nil {
			t.logger.Error("Failed to post portal message ", "portal ", p.PortalID, " error ", err)
			t.reply(ctx, chatID, "Could not post to the channel. Is the bot an admin there?")
			return
		}
		t.reply(ctx, chatID, "Verification post published to the channel.")
		return
	}
	t.reply(ctx, chatID, "You do not own a portal with that ID.")
}

func (t *TelegramNotificator) handlePortalStats(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		t.reply(ctx, chatID, "Usage: /portal stats <portal\\_id>")
		return
	}

	stats, err := t.portal.Stats(ctx, args[0])
	if err != nil {
		t.replyError(ctx, chatID, err)
		return
	}

	t.reply(ctx, chatID, formatPortalStats(stats))
}

// handlePortalSettings shows or updates the adjustable portal fields. The
// bare form prints the current values; passing new ones rewrites them.
func (t *TelegramNotificator) handlePortalSettings(ctx context.Context, chatID int64, args []string) {
	usage := "Usage: /portal settings <portal\\_id> [expiry\\_minutes max\\_uses [welcome message]]"
	if len(args) < 1 {
		t.reply(ctx, chatID, usage)
		return
	}
	portalID := args[0]

	if len(args) == 1 {
		portals, err := t.portal.ListPortals(ctx, chatID)
		if err != nil {
			t.replyError(ctx, chatID, err)
			return
		}
		for _, p := range portals {
			if p.PortalID == portalID {
				t.reply(ctx, chatID, formatPortalSettings(p))
				return
			}
		}
		t.reply(ctx, chatID, "You do not own a portal with that ID.")
		return
	}

	if len(args) < 3 {
		t.reply(ctx, chatID, usage)
		return
	}
	expiry, err1 := strconv.Atoi(args[1])
	maxUses, err2 := strconv.Atoi(args[2])
	if err1 != nil || err2 != nil {
		t.reply(ctx, chatID, "Expiry and max uses must be numbers.")
		return
	}

	updated, err := t.portal.UpdateSettings(ctx, portalID, chatID, expiry, maxUses, strings.Join(args[3:], " "))
	if err != nil {
		t.replyError(ctx, chatID, err)
		return
	}

	t.reply(ctx, chatID, "Settings updated. New invites use them; already issued invites keep the old ones.\n\n"+formatPortalSettings(updated))
}

func (t *TelegramNotificator) handlePortalBan(ctx context.Context, chatID int64, args []string) {
	if len(args) < 2 {
		t.reply(ctx, chatID, "Usage: /portal ban <portal\\_id> <user\\_id> [reason]")
		return
	}
	userID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		t.reply(ctx, chatID, "User ID must be numeric.")
		return
	}

	if err := t.portal.BanUser(ctx, args[0], chatID, userID, strings.Join(args[2:], " ")); err != nil {
		t.replyError(ctx, chatID, err)
		return
	}

	t.reply(ctx, chatID, "🚫 User banned. They can no longer verify through this portal.")
}

func (t *TelegramNotificator) handlePortalUnban(ctx context.Context, chatID int64, args []string) {
	if len(args) < 2 {
		t.reply(ctx, chatID, "Usage: /portal unban <portal\\_id> <user\\_id>")
		return
	}
	userID, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		t.reply(ctx, chatID, "User ID must be numeric.")
		return
	}

	err = t.portal.UnbanUser(ctx, args[0], chatID, userID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		t.reply(ctx, chatID, "That user is not banned from this portal.")
	case err != nil:
		t.replyError(ctx, chatID, err)
	default:
		t.reply(ctx, chatID, "User unbanned. They can verify through this portal again.")
	}
}

func (t *TelegramNotificator) handlePortalDelete(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		t.reply(ctx, chatID, "Usage: /portal delete <portal\\_id>")
		return
	}

	if err := t.portal.DeletePortal(ctx, args[0], chatID); err != nil {
		t.replyError(ctx, chatID, err)
		return
	}

	t.reply(ctx, chatID, "Portal deleted. Pending verifications were revoked.")
}

func (t *TelegramNotificator) handleTrending(ctx context.Context, chatID int64) {
	pairs, err := t.market.Trending(ctx, t.config.ChainID, browseLimit)
	if err != nil {
		t.replyError(ctx, chatID, err)
		return
	}

	t.reply(ctx, chatID, formatTokenList("🔥 *Trending by 24h volume*", pairs))
}

func (t *TelegramNotificator) handleNewPairs(ctx context.Context, chatID int64) {
	pairs, err := t.market.NewPairs(ctx, t.config.ChainID, t.config.NewPairMaxAge, browseLimit)
	if err != nil {
		t.replyError(ctx, chatID, err)
		return
	}

	t.reply(ctx, chatID, formatTokenList("🆕 *Recently created pairs*", pairs))
}

func (t *TelegramNotificator) handleMovers(ctx context.Context, chatID int64, rising bool) {
	pairs, err := t.market.Movers(ctx, t.config.ChainID, rising, browseLimit)
	if err != nil {
		t.replyError(ctx, chatID, err)
		return
	}

	header := "📈 *Top gainers (24h)*"
	if !rising {
		header = "📉 *Top losers (24h)*"
	}
	t.reply(ctx, chatID, formatTokenList(header, pairs))
}

func (t *TelegramNotificator) handlePrice(ctx context.Context, chatID int64, args []string) {
	if len(args) < 1 {
		t.reply(ctx, chatID, "Usage: /price <symbol or address>")
		return
	}

	query := strings.Join(args, " ")
	// Addresses get normalized so lookups are case-insensitive; anything
	// else is treated as a symbol search.
	if normalized, err := validation.ValidateAndNormalizeTokenAddress(query); err == nil {
		query = normalized
	}

	pairs, err := t.market.Search(ctx, t.config.ChainID, query)
	if err != nil {
		t.replyError(ctx, chatID, err)
		return
	}
	if len(pairs) == 0 {
		t.reply(ctx, chatID, "No matching pair found.")
		return
	}

	t.reply(ctx, chatID, formatTokenDetail(pairs[0]))
}

// handleCallback answers the two portal buttons: "portal_verify:<portal_id>"
// on the channel post requests an invite and DMs the confirmation button;
// "verify:<invite_id>" in the DM completes verification.
func (t *TelegramNotificator) handleCallback(ctx context.Context, cq *tgModels.CallbackQuery) {
	if t.portal == nil {
		t.answerCallback(ctx, cq.ID, "Portals are not available right now.")
		return
	}

	data := cq.Data
	userID := cq.From.ID

	switch {
	case strings.HasPrefix(data, "portal_verify:"):
		t.handleVerifyRequest(ctx, cq, strings.TrimPrefix(data, "portal_verify:"), userID)
	case strings.HasPrefix(data, "verify:"):
		t.handleVerifyConfirm(ctx, cq, strings.TrimPrefix(data, "verify:"), userID)
	default:
		t.answerCallback(ctx, cq.ID, "")
	}
}

func (t *TelegramNotificator) handleVerifyRequest(ctx context.Context, cq *tgModels.CallbackQuery, portalID string, userID int64) {
	invite, err := t.portal.RequestInvite(ctx, portalID, userID, time.Now())
	if err != nil {
		t.logger.Error("Failed to request invite ", "portal ", portalID, " user ", userID, " error ", err)
		t.answerCallback(ctx, cq.ID, humanError(err))
		return
	}

	expiresIn := time.Until(time.Unix(invite.ExpiresAt, 0)).Round(time.Minute)
	text := "Tap the button below to confirm you are human.\n\nThis check expires in " + expiresIn.String() + "."
	if err := t.SendMessageWithButton(ctx, userID, text, "✅ I'm human", "verify:"+invite.InviteID); err != nil {
		// The user has likely never started a private chat with the bot.
		t.answerCallback(ctx, cq.ID, "I couldn't message you. Open a chat with me, press Start, then tap the button again.")
		return
	}

	t.answerCallback(ctx, cq.ID, "Check your private messages to finish verification.")
}

func (t *TelegramNotificator) handleVerifyConfirm(ctx context.Context, cq *tgModels.CallbackQuery, inviteID string, userID int64) {
	invite, link, err := t.portal.Verify(ctx, inviteID, time.Now())
	if err != nil {
		t.answerCallback(ctx, cq.ID, humanError(err))
		return
	}

	t.answerCallback(ctx, cq.ID, "Verified!")
	if link == "" {
		t.reply(ctx, userID, "You are verified, but I couldn't create the join link. Tap the verify button in the channel to try again.")
		return
	}
	t.reply(ctx, userID, "✅ You're verified! Join here (link expires "+time.Unix(invite.ExpiresAt, 0).UTC().Format("15:04 MST")+"):\n"+link)
}

func (t *TelegramNotificator) handleJoinRequest(ctx context.Context, req *tgModels.ChatJoinRequest) {
	approved, err := t.portal.ApproveJoin(ctx, req.Chat.ID, req.From.ID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		t.logger.Error("Failed to handle join request ", "group ", req.Chat.ID, " user ", req.From.ID, " error ", err)
		return
	}
	if approved {
		t.logger.Info("Approved join request ", "group ", req.Chat.ID, " user ", req.From.ID)
	}
}

func (t *TelegramNotificator) reply(ctx context.Context, chatID int64, text string) {
	if err := t.SendMessage(ctx, chatID, text); err != nil {
		t.logger.Error("Failed to send reply ", "chat ", chatID, " error ", err)
	}
}

// replyError maps internal errors to a short human message; unexpected
// errors are logged and masked.
func (t *TelegramNotificator) replyError(ctx context.Context, chatID int64, err error) {
	msg := humanError(err)
	if msg == "" {
		t.logger.Error("Command failed ", "chat ", chatID, " error ", err)
		msg = "Something went wrong, please try again."
	}
	t.reply(ctx, chatID, msg)
}

func (t *TelegramNotificator) answerCallback(ctx context.Context, callbackID, text string) {
	_, err := t.bot.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       text != "",
	})
	if err != nil {
		t.logger.Error("Failed to answer callback ", "error ", err)
	}
}

// humanError returns a user-facing message for known errors, "" otherwise.
func humanError(err error) string {
	var cfgErr *models.ConfigurationError
	var gwErr *models.GatewayError
	switch {
	case errors.Is(err, models.ErrNotFound):
		return "That verification is no longer available."
	case errors.Is(err, models.ErrExpired):
		return "This verification expired. Tap the verify button in the channel to start over."
	case errors.Is(err, models.ErrExhausted):
		return "This verification was already used."
	case errors.Is(err, models.ErrBanned):
		return "You are banned from this portal."
	case errors.As(err, &cfgErr):
		return cfgErr.Reason
	case errors.As(err, &gwErr):
		if gwErr.Timeout {
			return "Market data is slow to respond right now, try again in a moment."
		}
		return "Market data is unavailable right now, try again later."
	}
	return ""
}
