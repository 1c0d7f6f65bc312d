package models

// Subscription represents a chat subscribed to token alerts, together with
// the filter thresholds a snapshot has to satisfy before an alert is
// delivered to that chat.
type Subscription struct {
	// ID is the unique identifier for the subscription.
	ID int64 `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	// ChatID is the chat that receives the alerts. One subscription per chat.
	ChatID int64 `json:"chat_id" gorm:"column:chat_id;unique;not null"`
	// MinVolumeUSD is the minimum 24h volume a token must have.
	MinVolumeUSD float64 `json:"min_volume_usd" gorm:"column:min_volume_usd"`
	// MinLiquidityUSD is the minimum pooled liquidity a token must have.
	MinLiquidityUSD float64 `json:"min_liquidity_usd" gorm:"column:min_liquidity_usd"`
	// PriceChangeThreshold is the minimum absolute price change percent
	// for pump/dump alerts.
	PriceChangeThreshold float64 `json:"price_change_threshold" gorm:"column:price_change_threshold"`
	// Active pauses delivery when false without losing the thresholds.
	// Toggled by /alerts; re-subscribing re-enables.
	Active bool `json:"active" gorm:"column:active;default:true"`
	// CreatedAt is the Unix timestamp when the subscription was created.
	CreatedAt int64 `json:"created_at" gorm:"column:created_at;index"`
}

// Matches reports whether the snapshot passes this subscription's filters.
// For pump/dump alerts the absolute price change must also reach the
// subscriber's threshold.
func (s *Subscription) Matches(a *Alert) bool {
	if a.Token.Volume24hUSD < s.MinVolumeUSD {
		return false
	}
	if a.Token.LiquidityUSD < s.MinLiquidityUSD {
		return false
	}
	if a.Kind == AlertPump || a.Kind == AlertDump {
		change := a.Change
		if change < 0 {
			change = -change
		}
		if change < s.PriceChangeThreshold {
			return false
		}
	}
	return true
}
