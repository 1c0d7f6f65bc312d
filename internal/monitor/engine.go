// Package monitor implements the alert monitoring engine: the periodic
// poll cycle that diffs market snapshots against stored alert history and
// fans matching alerts out to subscribed chats.
package monitor

import (
	"context"
	"time"

	"github.com/megaeth-tools/vigil/internal/config"
	"github.com/megaeth-tools/vigil/internal/models"
	"github.com/megaeth-tools/vigil/pkg/logger"
)

type Engine struct {
	logger *logger.Logger
	config *config.Config

	repo     models.Repository
	market   models.MarketService
	platform models.ChatPlatform
}

func NewEngine(
	repo models.Repository,
	market models.MarketService,
	platform models.ChatPlatform,
	logger *logger.Logger,
	config *config.Config,
) *Engine {
	return &Engine{
		repo:     repo,
		market:   market,
		platform: platform,
		logger:   logger,
		config:   config,
	}
}

// Start drives RunCycle at the configured poll interval until the context
// is cancelled. A failed cycle waits for the next tick, never retries
// immediately.
func (e *Engine) Start(ctx context.Context) {
	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Alert engine stopped")
			return
		case <-ticker.C:
			if err := e.RunCycle(ctx, time.Now()); err != nil {
				e.logger.Error("Poll cycle failed ", "error ", err)
			}
		}
	}
}

// RunCycle fetches one round of snapshots and evaluates every token. A
// gateway failure abandons the whole cycle; a per-token failure skips just
// that token. Cancellation is honored between tokens so an in-flight item
// finishes before the engine stops.
func (e *Engine) RunCycle(ctx context.Context, now time.Time) error {
	snapshots, err := e.market.TokenPairs(ctx, e.config.ChainID)
	if err != nil {
		return err
	}

	subs, err := e.repo.ListSubscriptions()
	if err != nil {
		return err
	}

	e.logger.Debug("Poll cycle ", "tokens ", len(snapshots), " subscribers ", len(subs))

	for _, snapshot := range snapshots {
		select {
		case <-ctx.Done():
			e.logger.Info("Poll cycle interrupted by shutdown")
			return ctx.Err()
		default:
		}

		if err := e.evaluateToken(ctx, snapshot, subs, now); err != nil {
			e.logger.Error("Failed to evaluate token ", "token ", snapshot.TokenAddress, " error ", err)
			continue
		}
	}

	return nil
}

// evaluateToken checks one snapshot against the stored alert records.
// new_pair is checked before the price and volume conditions so a
// brand-new pair never fires a change alert against a missing baseline.
func (e *Engine) evaluateToken(ctx context.Context, snapshot *models.TokenSnapshot, subs []*models.Subscription, now time.Time) error {
	records, err := e.repo.AlertRecordsForToken(snapshot.TokenAddress)
	if err != nil {
		return err
	}

	fired := 0

	if e.isNewPair(snapshot, records, now) {
		due, err := e.repo.MarkAlertedIfDue(snapshot.TokenAddress, models.AlertNewPair, snapshot.PriceUSD, now, e.config.AlertCooldown)
		if err != nil {
			return err
		}
		if due {
			e.fanOut(ctx, &models.Alert{Kind: models.AlertNewPair, Token: snapshot}, subs)
			fired++
		}
	}

	if err := e.evaluatePriceChange(ctx, snapshot, records, subs, now, &fired); err != nil {
		return err
	}

	if err := e.evaluateVolumeSpike(ctx, snapshot, records, subs, now, &fired); err != nil {
		return err
	}

	return nil
}

func (e *Engine) isNewPair(snapshot *models.TokenSnapshot, records map[models.AlertKind]*models.AlertRecord, now time.Time) bool {
	if records[models.AlertNewPair] != nil {
		return false
	}
	if snapshot.PairCreatedAt.IsZero() {
		return false
	}
	return snapshot.AgeAt(now) < e.config.NewPairMaxAge
}

func (e *Engine) evaluatePriceChange(ctx context.Context, snapshot *models.TokenSnapshot, records map[models.AlertKind]*models.AlertRecord, subs []*models.Subscription, now time.Time, fired *int) error {
	baseline := records[models.AlertPump]
	if baseline == nil {
		baseline = records[models.AlertDump]
	}

	if baseline == nil {
		// First observation: seed both price kinds, never alert.
		if err := e.repo.EnsureBaseline(snapshot.TokenAddress, models.AlertPump, snapshot.PriceUSD); err != nil {
			return err
		}
		return e.repo.EnsureBaseline(snapshot.TokenAddress, models.AlertDump, snapshot.PriceUSD)
	}

	if baseline.LastValue == 0 {
		// Percent change is not computable against zero; adopt the
		// current price as the new baseline and skip this cycle.
		if snapshot.PriceUSD > 0 {
			if err := e.repo.RefreshBaselineValue(snapshot.TokenAddress, models.AlertPump, snapshot.PriceUSD); err != nil {
				return err
			}
			return e.repo.RefreshBaselineValue(snapshot.TokenAddress, models.AlertDump, snapshot.PriceUSD)
		}
		return nil
	}

	change := (snapshot.PriceUSD - baseline.LastValue) / baseline.LastValue * 100
	absChange := change
	kind := models.AlertPump
	other := models.AlertDump
	if change < 0 {
		absChange = -change
		kind = models.AlertDump
		other = models.AlertPump
	}

	if absChange < e.config.PriceChangeThreshold || *fired >= e.config.MaxAlertsPerToken {
		return nil
	}

	due, err := e.repo.MarkAlertedIfDue(snapshot.TokenAddress, kind, snapshot.PriceUSD, now, e.config.AlertCooldown)
	if err != nil {
		return err
	}
	if !due {
		return nil
	}

	// Keep the sibling price record in sync so the next cycle compares
	// against the alerted price regardless of direction.
	if err := e.repo.RefreshBaselineValue(snapshot.TokenAddress, other, snapshot.PriceUSD); err != nil {
		return err
	}

	e.fanOut(ctx, &models.Alert{Kind: kind, Token: snapshot, Change: change}, subs)
	*fired++
	return nil
}

func (e *Engine) evaluateVolumeSpike(ctx context.Context, snapshot *models.TokenSnapshot, records map[models.AlertKind]*models.AlertRecord, subs []*models.Subscription, now time.Time, fired *int) error {
	baseline := records[models.AlertVolumeSpike]
	if baseline == nil {
		return e.repo.EnsureBaseline(snapshot.TokenAddress, models.AlertVolumeSpike, snapshot.Volume24hUSD)
	}

	if *fired >= e.config.MaxAlertsPerToken {
		return nil
	}
	if snapshot.Volume24hUSD < e.config.MinVolumeUSD || snapshot.LiquidityUSD < e.config.MinLiquidityUSD {
		return nil
	}
	if baseline.LastValue <= 0 || snapshot.Volume24hUSD < baseline.LastValue*e.config.VolumeSpikeRatio {
		return nil
	}

	due, err := e.repo.MarkAlertedIfDue(snapshot.TokenAddress, models.AlertVolumeSpike, snapshot.Volume24hUSD, now, e.config.AlertCooldown)
	if err != nil {
		return err
	}
	if due {
		e.fanOut(ctx, &models.Alert{Kind: models.AlertVolumeSpike, Token: snapshot, PreviousVolume: baseline.LastValue}, subs)
		*fired++
	}
	return nil
}

// fanOut delivers the alert to every active subscription whose filters the
// snapshot satisfies. Dispatch failures are logged and never undo the
// alert record: the decision to alert is independent of delivery.
func (e *Engine) fanOut(ctx context.Context, alert *models.Alert, subs []*models.Subscription) {
	message := alert.Message()
	for _, sub := range subs {
		if !sub.Active || !sub.Matches(alert) {
			continue
		}
		if err := e.platform.SendMessage(ctx, sub.ChatID, message); err != nil {
			e.logger.Error("Failed to deliver alert ", "chat ", sub.ChatID, " kind ", alert.Kind, " error ", err)
		}
	}
}
