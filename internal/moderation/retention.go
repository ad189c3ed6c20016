package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"tradepost/pkg/config"
	"tradepost/pkg/logger"
	"tradepost/pkg/models"
	"tradepost/pkg/store"
)

// Start launches the moderation purge scheduler when enabled. The job
// removes items that have sat rejected, and reports that have sat closed,
// for longer than the configured retention period. Returns a cancel func
// that stops the scheduler.
func Start(ctx context.Context, mc config.ModerationConfig) (context.CancelFunc, error) {
	if !mc.Enabled {
		logger.Info("moderation_purge_disabled")
		return func() {}, nil
	}

	cronExpr := mc.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("moderation_invalid_cron", "cron", mc.Cron)
		return nil, fmt.Errorf("invalid moderation cron expression: %s", mc.Cron)
	}

	period := mc.Period.Std()
	if period <= 0 {
		period = 30 * 24 * time.Hour
	}

	logger.Info("moderation_purge_enabled", "cron", cronExpr, "period", period.String(), "dry_run", mc.DryRun)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, mc, cronExpr, period)
	return cancel, nil
}

// runScheduler computes the next cron tick with gronx and sleeps until it,
// triggering a purge run per tick.
func runScheduler(ctx context.Context, mc config.ModerationConfig, cronExpr string, period time.Duration) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("moderation_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("moderation_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if err := RunOnce(mc, period); err != nil {
				logger.Error("moderation_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("moderation_scheduler_stopping")
			return
		}
	}
}

// RunOnce performs a single purge pass. Exported so admin tooling and tests
// can trigger a run without waiting on the schedule.
func RunOnce(mc config.ModerationConfig, period time.Duration) error {
	cutoff := time.Now().UTC().Add(-period).UnixNano()
	batch := mc.BatchSize
	if batch <= 0 {
		batch = 500
	}

	itemsPurged, err := purgeRejectedItems(cutoff, batch, mc.DryRun)
	if err != nil {
		return fmt.Errorf("purge rejected items: %w", err)
	}
	reportsPurged, err := purgeClosedReports(cutoff, batch, mc.DryRun)
	if err != nil {
		return fmt.Errorf("purge closed reports: %w", err)
	}
	logger.Info("moderation_run_complete", "items_purged", itemsPurged, "reports_purged", reportsPurged, "dry_run", mc.DryRun)
	return nil
}

func purgeRejectedItems(cutoff int64, batch int, dryRun bool) (int, error) {
	items, err := store.ListItems(models.ItemRejected)
	if err != nil {
		return 0, err
	}
	purged := 0
	for _, it := range items {
		if purged >= batch {
			break
		}
		ts := it.RejectedTS
		if ts == 0 {
			ts = it.UpdatedTS
		}
		if ts == 0 || ts > cutoff {
			continue
		}
		if dryRun {
			logger.Info("moderation_would_purge_item", "item", it.ID)
		} else if err := store.DeleteItem(it.ID); err != nil {
			logger.Error("moderation_purge_item_failed", "item", it.ID, "error", err)
			continue
		}
		purged++
	}
	return purged, nil
}

func purgeClosedReports(cutoff int64, batch int, dryRun bool) (int, error) {
	reports, err := store.ListReports("")
	if err != nil {
		return 0, err
	}
	purged := 0
	for _, rep := range reports {
		if purged >= batch {
			break
		}
		if !models.ReportClosed(rep.Status) {
			continue
		}
		if rep.UpdatedTS == 0 || rep.UpdatedTS > cutoff {
			continue
		}
		if dryRun {
			logger.Info("moderation_would_purge_report", "report", rep.ID)
		} else if err := store.DeleteReport(rep.ID); err != nil {
			logger.Error("moderation_purge_report_failed", "report", rep.ID, "error", err)
			continue
		}
		purged++
	}
	return purged, nil
}
