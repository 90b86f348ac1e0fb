package internal

import (
	"context"
	"errors"

	"github.com/gdbrns/go-whatsapp-session-manager/internal/webhook"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/dispatch"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/log"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/ratelimit"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/router"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/session"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-session-manager/pkg/whatsapp"
)

// Services holds the long lived components shared by routes, routines and
// startup tasks.
type Services struct {
	Config     Config
	Registry   *session.Registry
	Store      *session.Store
	Limiter    *ratelimit.Limiter
	Cleaner    *session.Cleaner
	Controller *session.Controller
	Dispatcher *dispatch.Dispatcher
	Jobs       *dispatch.Tracker
	Webhooks   *webhook.Engine
	Versions   *pkgWhatsApp.VersionRefresher
	Throttle   *router.Throttle
}

// NewServices wires the components. A nil factory selects the whatsmeow client.
func NewServices(cfg Config, factory session.Factory) (*Services, error) {
	store, err := session.NewStore(cfg.SessionPath)
	if err != nil {
		return nil, err
	}

	webhooks, err := webhook.NewEngine(cfg.Webhook)
	if err != nil {
		return nil, err
	}

	if factory == nil {
		factory = pkgWhatsApp.NewFactory(cfg.Client)
	}

	registry := session.NewRegistry()
	limiter := ratelimit.New(cfg.RateLimit)
	cleaner := session.NewCleaner(registry, store, session.CleanerConfig{
		Timeout:  cfg.CleanupTimeout,
		Limiter:  limiter,
		Notifier: webhooks,
	})
	controller := session.NewController(registry, store, factory, cleaner, webhooks, session.ControllerConfig{
		IdleTimeout:      cfg.IdleTimeout,
		MaxAutoReconnect: cfg.MaxAutoReconnect,
		ReconnectTimeout: cfg.Client.AuthTimeout * 3,
	})

	validator := dispatch.NewValidator(pkgWhatsApp.RecipientSuffix, cfg.ValidatorConcurrency)
	dispatcher := dispatch.NewDispatcher(registry, limiter, validator, dispatch.SleepPacer{}, cfg.Bulk)
	jobs := dispatch.NewTracker(dispatcher, cfg.BulkJobTTL, func(state dispatch.JobState) {
		data := map[string]interface{}{
			"job_id": state.ID,
			"total":  state.Total,
		}
		if state.Result != nil {
			data["success"] = len(state.Result.Success)
			data["failed"] = len(state.Result.Failed)
			data["invalid"] = len(state.Result.Invalid)
		}
		webhooks.Notify(state.SessionID, string(webhook.EventBulkCompleted), data)
	})

	return &Services{
		Config:     cfg,
		Registry:   registry,
		Store:      store,
		Limiter:    limiter,
		Cleaner:    cleaner,
		Controller: controller,
		Dispatcher: dispatcher,
		Jobs:       jobs,
		Webhooks:   webhooks,
		Versions:   pkgWhatsApp.NewVersionRefresher(cfg.Cron.VersionRefreshInterval),
		Throttle:   router.NewThrottle(router.RateLimitRPS, router.RateLimitBurst),
	}, nil
}

// Shutdown releases every session without deleting its data, then waits for
// bulk jobs and webhook deliveries within ctx.
func (s *Services) Shutdown(ctx context.Context) error {
	var errs []error

	if err := s.Controller.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.Jobs.Wait(ctx); err != nil {
		log.Print(nil).WithError(err).Warn("Bulk jobs still running at shutdown")
		errs = append(errs, err)
	}
	if err := s.Webhooks.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
