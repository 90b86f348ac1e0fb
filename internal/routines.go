package internal

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gdbrns/go-whatsapp-session-manager/pkg/log"
)

const throttleIdle = 10 * time.Minute

func addJob(c *cron.Cron, spec string, name string, job func()) {
	if _, err := c.AddFunc(spec, job); err != nil {
		log.Print(nil).WithField("spec", spec).WithError(err).Error("Failed to add " + name + " cron job")
		return
	}
	log.Print(nil).WithField("spec", spec).Debug(name + " cron job scheduled")
}

// Routines schedules the periodic maintenance tasks and starts the cron.
func Routines(c *cron.Cron, svc *Services) {
	log.Print(nil).Info("Running Routine Tasks")
	cfg := svc.Config

	if cfg.IdleTimeout > 0 && cfg.IdleCheckInterval > 0 {
		addJob(c, "@every "+cfg.IdleCheckInterval.String(), "idle sweep", func() {
			if swept := svc.Controller.SweepIdle(context.Background(), time.Now()); swept > 0 {
				log.Print(nil).WithField("swept", swept).Info("Idle sessions released")
			}
		})
	} else {
		log.Print(nil).Info("Idle sweep disabled")
	}

	addJob(c, "@every 1m", "housekeeping", func() {
		jobs := svc.Jobs.Prune()
		tracked := svc.Limiter.Sweep()
		callers := svc.Throttle.Prune(throttleIdle)
		log.Print(nil).
			WithField("jobs_pruned", jobs).
			WithField("rate_limited_sessions", tracked).
			WithField("throttled_callers", callers).
			Trace("Housekeeping done")
	})

	if cfg.Cron.HealthCheck {
		addJob(c, cfg.Cron.HealthCheckSpec, "health check", func() {
			if svc.Registry.Len() == 0 {
				return
			}
			entry := log.Print(nil)
			for status, count := range svc.Registry.CountByStatus() {
				entry = entry.WithField(string(status), count)
			}
			entry.Info("Session health")
		})
	}

	if cfg.Cron.VersionRefresh {
		force := cfg.Cron.VersionRefreshForce
		addJob(c, cfg.Cron.VersionRefreshSpec, "WA Web version refresh", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			status, refreshed, err := svc.Versions.Refresh(ctx, force)
			entry := log.Print(nil).WithField("version", status.CurrentVersion).WithField("force", force)
			if err != nil {
				entry.Error("WA Web version refresh failed: " + err.Error())
				return
			}
			entry.WithField("refreshed", refreshed).Info("WA Web version refresh completed")
		})
	}

	c.Start()
}
