package models

import (
	"fmt"
	"time"
)

// AlertKind classifies a market alert.
type AlertKind string

const (
	AlertNewPair     AlertKind = "new_pair"
	AlertPump        AlertKind = "pump"
	AlertDump        AlertKind = "dump"
	AlertVolumeSpike AlertKind = "volume_spike"
)

// AlertRecord is the dedup/cooldown marker for one (token, kind) pair. At
// most one record exists per pair; it doubles as the baseline value the
// next cycle compares against. A zero LastAlertedAt means the record was
// seeded as a baseline and has never produced an alert.
type AlertRecord struct {
	// ID is the unique identifier for the record.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// TokenAddress is the base token address the record tracks.
	TokenAddress string `json:"token_address" gorm:"column:token_address;uniqueIndex:idx_alert_token_kind;not null"`
	// Kind is the alert kind the record deduplicates.
	Kind AlertKind `json:"kind" gorm:"column:kind;uniqueIndex:idx_alert_token_kind;not null"`
	// LastValue is the price (pump/dump/new_pair) or 24h volume
	// (volume_spike) observed when the record was last written.
	LastValue float64 `json:"last_value" gorm:"column:last_value"`
	// LastAlertedAt is the Unix timestamp of the last emitted alert,
	// zero if the record is only a baseline.
	LastAlertedAt int64 `json:"last_alerted_at" gorm:"column:last_alerted_at;index"`
}

// TokenSnapshot is the transient view of one token pair fetched from the
// market data gateway during a poll cycle. It is compared against stored
// AlertRecords and never persisted itself.
type TokenSnapshot struct {
	PairAddress   string
	TokenAddress  string
	Symbol        string
	Name          string
	PriceUSD      float64
	Volume24hUSD  float64
	LiquidityUSD  float64
	PriceChange24 float64
	PairCreatedAt time.Time
	URL           string
	ObservedAt    time.Time
}

// AgeAt returns how old the pair is at the given instant. Zero PairCreatedAt
// means the gateway did not report a creation time.
func (t *TokenSnapshot) AgeAt(now time.Time) time.Duration {
	if t.PairCreatedAt.IsZero() {
		return 0
	}
	return now.Sub(t.PairCreatedAt)
}

// Alert is the outbound alert intent produced by the monitoring engine for
// the notification dispatcher to fan out.
type Alert struct {
	Kind  AlertKind
	Token *TokenSnapshot
	// Change is the computed price change percent for pump/dump alerts.
	Change float64
	// PreviousVolume is the baseline 24h volume for volume_spike alerts.
	PreviousVolume float64
}

// Message renders the alert as a Telegram message.
func (a *Alert) Message() string {
	t := a.Token
	switch a.Kind {
	case AlertNewPair:
		return fmt.Sprintf("🆕 *New Pair: %s*\n\n💵 Price: $%s\n📊 24h Volume: $%.0f\n💧 Liquidity: $%.0f\n\n%s",
			t.Symbol, FormatPrice(t.PriceUSD), t.Volume24hUSD, t.LiquidityUSD, t.URL)
	case AlertPump:
		return fmt.Sprintf("🚀 *Pump: %s* +%.1f%%\n\n💵 Price: $%s\n📊 24h Volume: $%.0f\n💧 Liquidity: $%.0f\n\n%s",
			t.Symbol, a.Change, FormatPrice(t.PriceUSD), t.Volume24hUSD, t.LiquidityUSD, t.URL)
	case AlertDump:
		return fmt.Sprintf("📉 *Dump: %s* %.1f%%\n\n💵 Price: $%s\n📊 24h Volume: $%.0f\n💧 Liquidity: $%.0f\n\n%s",
			t.Symbol, a.Change, FormatPrice(t.PriceUSD), t.Volume24hUSD, t.LiquidityUSD, t.URL)
	case AlertVolumeSpike:
		return fmt.Sprintf("📊 *Volume Spike: %s*\n\n24h Volume: $%.0f (was $%.0f)\n💵 Price: $%s\n💧 Liquidity: $%.0f\n\n%s",
			t.Symbol, t.Volume24hUSD, a.PreviousVolume, FormatPrice(t.PriceUSD), t.LiquidityUSD, t.URL)
	}
	return fmt.Sprintf("*%s*: %s", a.Kind, t.Symbol)
}

// FormatPrice keeps enough precision for sub-cent token prices.
func FormatPrice(price float64) string {
	switch {
	case price >= 1:
		return fmt.Sprintf("%.4f", price)
	case price >= 0.0001:
		return fmt.Sprintf("%.6f", price)
	default:
		return fmt.Sprintf("%.10f", price)
	}
}
