package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gdbrns/go-whatsapp-session-manager/pkg/log"
)

var ErrDisabled = errors.New("webhook url not configured")

// Engine posts lifecycle notifications to one endpoint through a worker pool.
type Engine struct {
	cfg        WebhookConfig
	httpClient *http.Client
	queue      chan WebhookEvent
	now        func() time.Time

	mu     sync.RWMutex
	closed bool

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

func NewEngine(cfg WebhookConfig) (*Engine, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 2 * time.Second
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	if cfg.URL != "" {
		if err := validateURL(cfg.URL, cfg.AllowInsecure); err != nil {
			return nil, fmt.Errorf("webhook url: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	engine := &Engine{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		queue:      make(chan WebhookEvent, cfg.QueueSize),
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}

	if engine.Enabled() {
		for i := 0; i < cfg.Workers; i++ {
			engine.wg.Add(1)
			go engine.worker()
		}
	}
	return engine, nil
}

func (e *Engine) Enabled() bool {
	return e.cfg.URL != ""
}

// Notify queues an event without blocking; it is dropped when the queue is full.
func (e *Engine) Notify(sessionID string, event string, data map[string]interface{}) {
	if !e.Enabled() {
		return
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}

	evt := WebhookEvent{
		EventType: EventType(event),
		SessionID: sessionID,
		Timestamp: e.now().UTC(),
		Data:      data,
	}
	select {
	case e.queue <- evt:
	default:
		log.Session(sessionID, "webhook").WithField("event", event).Warn("Webhook queue full, dropping event")
	}
}

// Shutdown stops intake and waits for queued deliveries. Pending retries are
// abandoned once ctx is done.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.cancel()
		return nil
	case <-ctx.Done():
		e.cancel()
		<-done
		return ctx.Err()
	}
}

func (e *Engine) worker() {
	defer e.wg.Done()
	for evt := range e.queue {
		e.deliver(evt)
	}
}

func (e *Engine) deliver(evt WebhookEvent) DeliveryStatus {
	entry := log.Session(evt.SessionID, "webhook").WithField("event", evt.EventType)

	payload, err := json.Marshal(evt)
	if err != nil {
		entry.WithError(err).Error("Failed to encode webhook event")
		return DeliveryFailed
	}
	signature := generateSignature(payload, e.cfg.Secret)

	var lastErr error
	for attempt := 1; attempt <= e.cfg.RetryLimit; attempt++ {
		lastErr = e.post(evt, payload, signature)
		if lastErr == nil {
			entry.WithField("attempt", attempt).Debug("Webhook delivered")
			return DeliverySuccess
		}
		if attempt == e.cfg.RetryLimit {
			break
		}

		select {
		case <-time.After(time.Duration(attempt) * e.cfg.RetryBackoff):
		case <-e.ctx.Done():
			entry.WithError(lastErr).Warn("Webhook delivery abandoned on shutdown")
			return DeliveryFailed
		}
	}

	entry.WithFields(logrus.Fields{"attempts": e.cfg.RetryLimit}).WithError(lastErr).Error("Webhook delivery failed")
	return DeliveryFailed
}

func (e *Engine) post(evt WebhookEvent, payload []byte, signature string) error {
	req, err := http.NewRequestWithContext(e.ctx, http.MethodPost, e.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", signature)
	req.Header.Set("X-Hub-Signature-256", signature)
	req.Header.Set("X-Webhook-Event", string(evt.EventType))
	req.Header.Set("User-Agent", "WhatsApp-Session-Manager/1.0")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func generateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func validateURL(rawURL string, allowInsecure bool) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if u.Host == "" {
		return errors.New("url must be absolute")
	}
	if allowInsecure {
		return nil
	}

	if u.Scheme != "https" {
		return errors.New("only HTTPS URLs are allowed")
	}

	host := strings.ToLower(u.Hostname())
	if host == "localhost" {
		return errors.New("private/local network URLs are not allowed")
	}
	if ip := net.ParseIP(host); ip != nil && (ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsLinkLocalUnicast()) {
		return errors.New("private/local network URLs are not allowed")
	}
	return nil
}
