package api

import (
	"errors"
	"log/slog"

	"github.com/robfig/cron/v3"
	"github.com/use-agent/gamedeck/api/handler"
	"github.com/use-agent/gamedeck/config"
)

// StartSchedule starts runs over views on the cron spec. A tick that finds
// a run in progress is skipped. The caller stops the returned scheduler.
func StartSchedule(spec string, store *handler.RunStore, views []config.View) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		id, err := store.Start(views)
		switch {
		case errors.Is(err, handler.ErrRunInProgress):
			slog.Warn("scheduled run skipped, previous run still active", "active", store.Active())
		case err != nil:
			slog.Error("scheduled run failed to start", "error", err)
		default:
			slog.Info("scheduled run started", "run_id", id)
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	slog.Info("run schedule active", "spec", spec)
	return c, nil
}
