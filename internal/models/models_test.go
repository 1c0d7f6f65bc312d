package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSubscriptionMatches(t *testing.T) {
	sub := &Subscription{
		MinVolumeUSD:         1000,
		MinLiquidityUSD:      500,
		PriceChangeThreshold: 10,
	}

	token := &TokenSnapshot{Volume24hUSD: 2000, LiquidityUSD: 800}

	assert.True(t, sub.Matches(&Alert{Kind: AlertPump, Token: token, Change: 15}))
	assert.True(t, sub.Matches(&Alert{Kind: AlertDump, Token: token, Change: -15}))
	assert.True(t, sub.Matches(&Alert{Kind: AlertNewPair, Token: token}))
	assert.True(t, sub.Matches(&Alert{Kind: AlertVolumeSpike, Token: token}))

	// Below the subscriber's change threshold.
	assert.False(t, sub.Matches(&Alert{Kind: AlertPump, Token: token, Change: 5}))
	assert.False(t, sub.Matches(&Alert{Kind: AlertDump, Token: token, Change: -5}))

	// Volume and liquidity floors apply to every kind.
	thin := &TokenSnapshot{Volume24hUSD: 100, LiquidityUSD: 800}
	assert.False(t, sub.Matches(&Alert{Kind: AlertNewPair, Token: thin}))

	illiquid := &TokenSnapshot{Volume24hUSD: 2000, LiquidityUSD: 100}
	assert.False(t, sub.Matches(&Alert{Kind: AlertVolumeSpike, Token: illiquid}))
}

func TestAlertMessage(t *testing.T) {
	token := &TokenSnapshot{
		Symbol:       "MEGA",
		PriceUSD:     0.052341,
		Volume24hUSD: 25000,
		LiquidityUSD: 9000,
		URL:          "https://dexscreener.com/megaeth/0xpair",
	}

	msg := (&Alert{Kind: AlertPump, Token: token, Change: 15.2}).Message()
	assert.Contains(t, msg, "Pump: MEGA")
	assert.Contains(t, msg, "+15.2%")
	assert.Contains(t, msg, "$0.052341")
	assert.Contains(t, msg, token.URL)

	msg = (&Alert{Kind: AlertDump, Token: token, Change: -12.0}).Message()
	assert.Contains(t, msg, "Dump: MEGA")
	assert.Contains(t, msg, "-12.0%")

	msg = (&Alert{Kind: AlertNewPair, Token: token}).Message()
	assert.Contains(t, msg, "New Pair: MEGA")

	msg = (&Alert{Kind: AlertVolumeSpike, Token: token, PreviousVolume: 10000}).Message()
	assert.Contains(t, msg, "Volume Spike: MEGA")
	assert.Contains(t, msg, "was $10000")
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "12.3400", FormatPrice(12.34))
	assert.Equal(t, "0.052341", FormatPrice(0.052341))
	assert.Equal(t, "0.0000000420", FormatPrice(0.000000042))
}

func TestTokenSnapshotAgeAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	fresh := &TokenSnapshot{PairCreatedAt: now.Add(-30 * time.Minute)}
	assert.Equal(t, 30*time.Minute, fresh.AgeAt(now))

	unknown := &TokenSnapshot{}
	assert.Zero(t, unknown.AgeAt(now))
}

func TestGatewayErrorMessages(t *testing.T) {
	timeout := &GatewayError{Timeout: true, Err: errors.New("deadline")}
	assert.Contains(t, timeout.Error(), "timeout")

	malformed := &GatewayError{Err: errors.New("bad json")}
	assert.Contains(t, malformed.Error(), "malformed")
	assert.EqualError(t, errors.Unwrap(malformed), "bad json")
}
