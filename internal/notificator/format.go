package notificator

import (
	"fmt"
	"strings"

	"github.com/megaeth-tools/vigil/internal/models"
)

func helpText() string {
	return strings.Join([]string{
		"👋 *I watch MegaETH token pairs and guard group access.*",
		"",
		"*Alerts*",
		"/subscribe [min\\_volume] [min\\_liquidity] [price\\_%] - receive token alerts in this chat",
		"/unsubscribe - stop receiving alerts",
		"/alerts [on|off] - show status, or pause and resume without losing thresholds",
		"",
		"*Market*",
		"/trending - top pairs by 24h volume",
		"/new - recently created pairs",
		"/gainers - biggest 24h gainers",
		"/losers - biggest 24h losers",
		"/price <symbol or address> - look up a pair",
		"",
		"*Portals* (channel owners)",
		"/portal setup <channel\\_id> <group\\_id> [welcome] - link a channel to a private group",
		"/portal post <portal\\_id> - publish the verification button",
		"/portal list - your portals",
		"/portal stats <portal\\_id> - verification counters",
		"/portal settings <portal\\_id> [expiry max\\_uses [welcome]] - show or change settings",
		"/portal ban <portal\\_id> <user\\_id> [reason] - block a user from verifying",
		"/portal unban <portal\\_id> <user\\_id> - lift a ban",
		"/portal delete <portal\\_id> - disable a portal",
	}, "\n")
}

func portalUsage() string {
	return "Usage: /portal setup|list|post|stats|settings|ban|unban|delete"
}

func formatSubscribed(sub *models.Subscription) string {
	return fmt.Sprintf(
		"🔔 *Subscribed.*\n\nMin 24h volume: $%.0f\nMin liquidity: $%.0f\nPrice change threshold: %.1f%%",
		sub.MinVolumeUSD, sub.MinLiquidityUSD, sub.PriceChangeThreshold)
}

func formatAlertsStatus(sub *models.Subscription) string {
	status := "✅ Enabled"
	if !sub.Active {
		status = "🔕 Paused"
	}
	return fmt.Sprintf(
		"*Alerts:* %s\n\nMin 24h volume: $%.0f\nMin liquidity: $%.0f\nPrice change threshold: %.1f%%",
		status, sub.MinVolumeUSD, sub.MinLiquidityUSD, sub.PriceChangeThreshold)
}

func formatPortalSettings(p *models.Portal) string {
	return fmt.Sprintf(
		"⚙️ *Portal `%s`*\n\nInvite expiry: %d min\nMax uses: %d\nWelcome: %s",
		p.PortalID, p.InviteExpiryMinutes, p.MaxUses, p.WelcomeMessage)
}

func formatPortalCreated(p *models.Portal) string {
	return fmt.Sprintf(
		"🔐 *Portal created:* `%s`\n\nGroup: %s\nInvite expiry: %d min, max uses: %d\n\nRun /portal post %s to publish the verification button in the channel.",
		p.PortalID, p.PrivateGroupTitle, p.InviteExpiryMinutes, p.MaxUses, p.PortalID)
}

func formatPortalList(portals []*models.Portal) string {
	if len(portals) == 0 {
		return "You have no portals. Create one with /portal setup."
	}

	var sb strings.Builder
	sb.WriteString("*Your portals*\n")
	for _, p := range portals {
		status := "✅"
		if p.Status != models.PortalActive {
			status = "🚫"
		}
		fmt.Fprintf(&sb, "\n%s `%s` → %s", status, p.PortalID, p.PrivateGroupTitle)
	}
	return sb.String()
}

func formatPortalStats(stats *models.PortalStats) string {
	return fmt.Sprintf(
		"📈 *Portal `%s`*\n\nVerified: %d\nPending: %d\nExpired: %d\nRevoked: %d",
		stats.PortalID, stats.Verified, stats.Pending, stats.Expired, stats.Revoked)
}

func formatTokenList(header string, pairs []*models.TokenSnapshot) string {
	if len(pairs) == 0 {
		return "No pairs found right now."
	}

	var sb strings.Builder
	sb.WriteString(header)
	sb.WriteString("\n")
	for i, p := range pairs {
		fmt.Fprintf(&sb, "\n%d. *%s* $%s (%+.1f%%) vol $%.0f",
			i+1, p.Symbol, models.FormatPrice(p.PriceUSD), p.PriceChange24, p.Volume24hUSD)
	}
	return sb.String()
}

func formatTokenDetail(p *models.TokenSnapshot) string {
	return fmt.Sprintf(
		"*%s* (%s)\n\n💵 Price: $%s\n📈 24h change: %+.1f%%\n📊 24h volume: $%.0f\n💧 Liquidity: $%.0f\n\n%s",
		p.Symbol, p.Name, models.FormatPrice(p.PriceUSD), p.PriceChange24, p.Volume24hUSD, p.LiquidityUSD, p.URL)
}
