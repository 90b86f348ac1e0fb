package whatsapp

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"golang.org/x/sync/singleflight"
)

var ErrWAVersionOutdatedForQR = errors.New("whatsapp client version is outdated for QR pairing")

const defaultVersionRefreshInterval = 10 * time.Minute

type WAVersionRefreshStatus struct {
	CurrentVersion string     `json:"current_version"`
	LastRefreshed  *time.Time `json:"last_refreshed,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
}

// VersionRefresher keeps the advertised WhatsApp Web version current for every
// client created afterwards.
type VersionRefresher struct {
	group       singleflight.Group
	minInterval time.Duration

	fetch func(ctx context.Context) (*store.WAVersionContainer, error)
	apply func(store.WAVersionContainer)

	mu            sync.RWMutex
	lastRefreshed *time.Time
	lastError     string
}

func NewVersionRefresher(minInterval time.Duration) *VersionRefresher {
	if minInterval < 0 {
		minInterval = defaultVersionRefreshInterval
	}

	httpClient := &http.Client{Timeout: 15 * time.Second}
	return &VersionRefresher{
		minInterval: minInterval,
		fetch: func(ctx context.Context) (*store.WAVersionContainer, error) {
			return whatsmeow.GetLatestVersion(ctx, httpClient)
		},
		apply: store.SetWAVersion,
	}
}

func (v *VersionRefresher) Status() WAVersionRefreshStatus {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var last *time.Time
	if v.lastRefreshed != nil {
		t := *v.lastRefreshed
		last = &t
	}

	return WAVersionRefreshStatus{
		CurrentVersion: store.GetWAVersion().String(),
		LastRefreshed:  last,
		LastError:      v.lastError,
	}
}

// Refresh fetches the latest version and applies it. Without force it is a
// no-op while the previous attempt is younger than the minimum interval. The
// boolean reports whether a fetch was attempted.
func (v *VersionRefresher) Refresh(ctx context.Context, force bool) (WAVersionRefreshStatus, bool, error) {
	if !force && v.minInterval > 0 {
		v.mu.RLock()
		last := v.lastRefreshed
		v.mu.RUnlock()
		if last != nil && time.Since(*last) < v.minInterval {
			return v.Status(), false, nil
		}
	}

	_, err, _ := v.group.Do("refresh", func() (interface{}, error) {
		latest, err := v.fetch(ctx)
		if err == nil && latest == nil {
			err = errors.New("latest WhatsApp Web version is nil")
		}
		if err == nil {
			v.apply(*latest)
		}

		v.mu.Lock()
		defer v.mu.Unlock()

		now := time.Now()
		v.lastRefreshed = &now
		v.lastError = ""
		if err != nil {
			v.lastError = err.Error()
		}
		return nil, err
	})
	return v.Status(), true, err
}
