package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/protobuf/proto"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waCompanionReg"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	_ "modernc.org/sqlite"

	"github.com/gdbrns/go-whatsapp-session-manager/pkg/log"
	"github.com/gdbrns/go-whatsapp-session-manager/pkg/session"
)

var (
	ErrAuthTimeout    = errors.New("whatsapp client did not authenticate in time")
	ErrQRTimeout      = errors.New("whatsapp qr channel timed out")
	ErrClientOutdated = errors.New("whatsapp client version is outdated")
)

// Disconnect reasons reported besides the revoking ones of the session package.
const (
	ReasonConflict       = "CONFLICT"
	ReasonConnectionLost = "CONNECTION_LOST"
	ReasonConnectFailure = "CONNECT_FAILURE"
)

const (
	storeFileName      = "store.db"
	eventBufferSize    = 64
	mediaCacheTTL      = 10 * time.Minute
	defaultAuthTimeout = 20 * time.Second
	defaultMediaLimit  = 16 << 20

	// lifecycleEmitTimeout bounds how long a status event waits for room in a
	// full buffer.
	lifecycleEmitTimeout = 30 * time.Second
)

type Config struct {
	// AuthTimeout bounds the wait for the first QR code or for a resumed
	// session to connect.
	AuthTimeout  time.Duration
	ProxyURL     string
	QRTerminal   bool
	MediaTimeout time.Duration
	MaxMediaSize int64
}

// Factory opens one sqlite backed whatsmeow device per session directory.
type Factory struct {
	cfg  Config
	http *http.Client
}

func NewFactory(cfg Config) *Factory {
	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = defaultAuthTimeout
	}
	if cfg.MediaTimeout <= 0 {
		cfg.MediaTimeout = 30 * time.Second
	}
	if cfg.MaxMediaSize <= 0 {
		cfg.MaxMediaSize = defaultMediaLimit
	}

	store.DeviceProps.Os = proto.String(runtime.GOOS)
	store.DeviceProps.PlatformType = waCompanionReg.DeviceProps_CHROME.Enum()
	store.DeviceProps.RequireFullSync = proto.Bool(false)

	return &Factory{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.MediaTimeout},
	}
}

func storeDSN(dir string) string {
	return "file:" + filepath.Join(dir, storeFileName) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (f *Factory) NewClient(id string, dir string, resume bool) (session.Client, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}

	ctx := context.Background()
	container, err := sqlstore.New(ctx, "sqlite", storeDSN(dir), newWALogger(id, "store"))
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("load device: %w", err)
	}
	if resume && device.ID == nil {
		_ = container.Close()
		return nil, session.ErrPairingRequired
	}

	wa := whatsmeow.NewClient(device, newWALogger(id, "client"))
	wa.EnableAutoReconnect = false
	wa.AutoTrustIdentity = true

	if len(f.cfg.ProxyURL) > 0 {
		if err := wa.SetProxyAddress(f.cfg.ProxyURL); err != nil {
			_ = container.Close()
			return nil, fmt.Errorf("set proxy: %w", err)
		}
	}

	return &Client{
		id:        id,
		cfg:       f.cfg,
		http:      f.http,
		container: container,
		wa:        wa,
		events:    make(chan session.Event, eventBufferSize),
		done:      make(chan struct{}),
	}, nil
}

type uploadedImage struct {
	url      string
	mimeType string
	thumb    []byte
	image    whatsmeow.UploadResponse
	preview  whatsmeow.UploadResponse
	at       time.Time
}

// Client binds one whatsmeow connection to the session.Client capability.
type Client struct {
	id        string
	cfg       Config
	http      *http.Client
	container *sqlstore.Container
	wa        *whatsmeow.Client

	mu        sync.Mutex
	events    chan session.Event
	done      chan struct{}
	sending   sync.WaitGroup
	closed    bool
	authTimer *time.Timer
	stopQR    context.CancelFunc
	ready     atomic.Bool

	destroyOnce sync.Once
	destroyErr  error

	mediaMu sync.Mutex
	cached  *uploadedImage
}

func (c *Client) Events() <-chan session.Event {
	return c.events
}

func (c *Client) Initialize(ctx context.Context) error {
	c.wa.AddEventHandler(c.handleEvent)

	if c.wa.Store.ID == nil {
		qrCtx, cancel := context.WithCancel(context.Background())
		c.mu.Lock()
		c.stopQR = cancel
		c.mu.Unlock()

		qrChan, err := c.wa.GetQRChannel(qrCtx)
		if err != nil {
			cancel()
			return fmt.Errorf("open qr channel: %w", err)
		}
		go c.watchQR(qrChan)
	}

	c.armAuthTimer()
	if err := c.wa.Connect(); err != nil {
		c.disarmAuthTimer()
		return err
	}
	return nil
}

func (c *Client) watchQR(qrChan <-chan whatsmeow.QRChannelItem) {
	entry := log.Session(c.id, "qr")
	for item := range qrChan {
		switch item.Event {
		case whatsmeow.QRChannelEventCode:
			c.disarmAuthTimer()
			if c.cfg.QRTerminal {
				PrintQR(os.Stdout, item.Code)
			}
			c.emit(session.Event{Type: session.EventQR, QR: item.Code})
		case whatsmeow.QRChannelSuccess.Event:
			entry.Info("QR code scanned, device paired")
		case whatsmeow.QRChannelScannedWithoutMultidevice.Event:
			entry.Warn("QR code scanned without multi-device enabled")
		case whatsmeow.QRChannelTimeout.Event:
			c.emit(session.Event{Type: session.EventAuthFailure, Err: ErrQRTimeout})
		case whatsmeow.QRChannelClientOutdated.Event:
			c.emit(session.Event{Type: session.EventAuthFailure, Err: ErrWAVersionOutdatedForQR})
		case whatsmeow.QRChannelErrUnexpectedEvent.Event:
			c.emit(session.Event{Type: session.EventAuthFailure, Err: errors.New("whatsapp qr channel entered an unexpected state")})
		case whatsmeow.QRChannelEventError:
			err := item.Error
			if err == nil {
				err = errors.New("whatsapp qr channel reported an unspecified error")
			}
			c.emit(session.Event{Type: session.EventAuthFailure, Err: err})
		}
	}
}

func (c *Client) handleEvent(evt interface{}) {
	entry := log.Session(c.id, "event")

	switch e := evt.(type) {
	case *events.Connected:
		c.ready.Store(true)
		c.disarmAuthTimer()
		c.emit(session.Event{Type: session.EventReady})
	case *events.PairSuccess:
		entry.WithField("jid", MaskJID(e.ID.User)).Info("Device paired")
	case *events.LoggedOut:
		c.ready.Store(false)
		c.emit(session.Event{
			Type:   session.EventDisconnected,
			Reason: session.ReasonUnpaired,
			Err:    fmt.Errorf("logged out: %s", e.Reason),
		})
	case *events.StreamReplaced:
		c.ready.Store(false)
		c.emit(session.Event{Type: session.EventDisconnected, Reason: ReasonConflict})
	case *events.Disconnected:
		c.ready.Store(false)
		c.emit(session.Event{Type: session.EventDisconnected, Reason: ReasonConnectionLost})
	case *events.ConnectFailure:
		if e.Reason.IsLoggedOut() {
			c.ready.Store(false)
			c.emit(session.Event{
				Type:   session.EventDisconnected,
				Reason: session.ReasonUnpaired,
				Err:    fmt.Errorf("connect failure: %s", e.Reason),
			})
			return
		}
		c.connectFailed(fmt.Errorf("connect failure: %s %s", e.Reason, e.Message))
	case *events.TemporaryBan:
		entry.Error("Client temporarily banned: " + e.String())
		c.connectFailed(fmt.Errorf("temporary ban: %s", e.String()))
	case *events.ClientOutdated:
		c.emit(session.Event{Type: session.EventFatal, Err: ErrClientOutdated})
	case *events.Message:
		if !e.Info.IsFromMe {
			c.emit(session.Event{Type: session.EventMessage})
		}
	case *events.KeepAliveTimeout:
		entry.WithField("errors", e.ErrorCount).
			WithField("last_success", e.LastSuccess.Format(time.RFC3339)).
			Warn("Client keepalive timeout")
	case *events.KeepAliveRestored:
		entry.Info("Client keepalive restored")
	}
}

// connectFailed fails a pairing attempt, or reports a lost connection once
// the session had been usable.
func (c *Client) connectFailed(err error) {
	if c.ready.Swap(false) {
		c.emit(session.Event{Type: session.EventDisconnected, Reason: ReasonConnectFailure, Err: err})
		return
	}
	c.emit(session.Event{Type: session.EventAuthFailure, Err: err})
}

// emit queues evt for the controller. Inbound message events are dropped
// when the buffer is full; status events wait for room until the client is
// destroyed or lifecycleEmitTimeout passes.
func (c *Client) emit(evt session.Event) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	select {
	case c.events <- evt:
		c.mu.Unlock()
		return
	default:
	}

	entry := log.Session(c.id, "event").WithField("event", evt.Type)
	if evt.Type == session.EventMessage {
		c.mu.Unlock()
		entry.Debug("Event buffer full, dropping message event")
		return
	}
	c.sending.Add(1)
	c.mu.Unlock()
	defer c.sending.Done()

	entry.Warn("Event buffer full, waiting to deliver status event")
	timer := time.NewTimer(lifecycleEmitTimeout)
	defer timer.Stop()

	select {
	case c.events <- evt:
	case <-c.done:
	case <-timer.C:
		entry.Error("Event buffer still full, status event dropped")
	}
}

// closeEvents stops further emits and closes the event stream once pending
// senders have given up. It returns the QR watcher's cancel func.
func (c *Client) closeEvents() context.CancelFunc {
	c.mu.Lock()
	c.closed = true
	close(c.done)
	if c.authTimer != nil {
		c.authTimer.Stop()
		c.authTimer = nil
	}
	stopQR := c.stopQR
	c.mu.Unlock()

	c.sending.Wait()
	close(c.events)
	return stopQR
}

func (c *Client) armAuthTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.authTimer = time.AfterFunc(c.cfg.AuthTimeout, func() {
		if !c.ready.Load() {
			c.emit(session.Event{Type: session.EventAuthFailure, Err: ErrAuthTimeout})
		}
	})
}

func (c *Client) disarmAuthTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.authTimer != nil {
		c.authTimer.Stop()
		c.authTimer = nil
	}
}

func (c *Client) usable() error {
	if !c.wa.IsConnected() {
		return fmt.Errorf("%w: whatsapp client is not connected", session.ErrNotReady)
	}
	if !c.wa.IsLoggedIn() {
		return fmt.Errorf("%w: whatsapp client is not logged in", session.ErrNotReady)
	}
	return nil
}

func (c *Client) SendMessage(ctx context.Context, recipient string, content session.Content) error {
	if err := c.usable(); err != nil {
		return err
	}

	remoteJID, err := ComposeJID(recipient)
	if err != nil {
		return err
	}

	var msgContent *waE2E.Message
	if content.IsMedia() {
		msgContent, err = c.imageMessage(ctx, content)
		if err != nil {
			return err
		}
	} else {
		msgContent = &waE2E.Message{Conversation: proto.String(content.Text)}
	}

	msgExtra := whatsmeow.SendRequestExtra{ID: c.wa.GenerateMessageID()}
	_, err = c.wa.SendMessage(ctx, remoteJID, msgContent, msgExtra)
	return err
}

func (c *Client) imageMessage(ctx context.Context, content session.Content) (*waE2E.Message, error) {
	up, err := c.uploadImage(ctx, content.MediaURL)
	if err != nil {
		return nil, err
	}

	caption := content.Caption
	if caption == "" {
		caption = content.Text
	}

	return &waE2E.Message{
		ImageMessage: &waE2E.ImageMessage{
			URL:                 proto.String(up.image.URL),
			DirectPath:          proto.String(up.image.DirectPath),
			Mimetype:            proto.String(up.mimeType),
			Caption:             proto.String(caption),
			FileLength:          proto.Uint64(up.image.FileLength),
			FileSHA256:          up.image.FileSHA256,
			FileEncSHA256:       up.image.FileEncSHA256,
			MediaKey:            up.image.MediaKey,
			JPEGThumbnail:       up.thumb,
			ThumbnailDirectPath: proto.String(up.preview.DirectPath),
			ThumbnailSHA256:     up.preview.FileSHA256,
			ThumbnailEncSHA256:  up.preview.FileEncSHA256,
		},
	}, nil
}

// uploadImage fetches and uploads url, reusing the last upload for the same
// url so a bulk job transfers its image once.
func (c *Client) uploadImage(ctx context.Context, url string) (*uploadedImage, error) {
	c.mediaMu.Lock()
	defer c.mediaMu.Unlock()

	if c.cached != nil && c.cached.url == url && time.Since(c.cached.at) < mediaCacheTTL {
		return c.cached, nil
	}

	m, err := fetchMedia(ctx, c.http, url, c.cfg.MaxMediaSize)
	if err != nil {
		return nil, err
	}
	thumb, err := thumbnail(m.data)
	if err != nil {
		return nil, err
	}

	image, err := c.wa.Upload(ctx, m.data, whatsmeow.MediaImage)
	if err != nil {
		return nil, fmt.Errorf("error while uploading media to whatsapp server: %w", err)
	}
	preview, err := c.wa.Upload(ctx, thumb, whatsmeow.MediaLinkThumbnail)
	if err != nil {
		return nil, fmt.Errorf("error while uploading image thumbnail to whatsapp server: %w", err)
	}

	c.cached = &uploadedImage{
		url:      url,
		mimeType: m.mimeType,
		thumb:    thumb,
		image:    image,
		preview:  preview,
		at:       time.Now(),
	}
	return c.cached, nil
}

func (c *Client) IsRegisteredUser(ctx context.Context, recipient string) (bool, error) {
	if err := c.usable(); err != nil {
		return false, err
	}

	remoteJID, err := ComposeJID(recipient)
	if err != nil {
		return false, err
	}
	if remoteJID.Server != types.DefaultUserServer {
		return false, nil
	}

	infos, err := c.wa.IsOnWhatsApp(ctx, []string{"+" + remoteJID.User})
	if err != nil {
		return false, err
	}
	return len(infos) > 0 && infos[0].IsIn, nil
}

// FindGroupID looks up a joined group by its exact name.
func (c *Client) FindGroupID(ctx context.Context, name string) (string, error) {
	if err := c.usable(); err != nil {
		return "", err
	}

	groups, err := c.wa.GetJoinedGroups(ctx)
	if err != nil {
		return "", err
	}
	for _, group := range groups {
		if group.Name == name {
			return group.JID.String(), nil
		}
	}
	return "", session.ErrGroupNotFound
}

// Logout unlinks the device. When the server call fails the local device is
// deleted anyway so the credentials cannot be resumed.
func (c *Client) Logout(ctx context.Context) error {
	if c.wa.Store.ID == nil {
		return nil
	}

	err := c.wa.Logout(ctx)
	if err == nil {
		return nil
	}

	c.wa.Disconnect()
	if derr := c.wa.Store.Delete(ctx); derr != nil {
		return fmt.Errorf("logout: %v: delete device: %w", err, derr)
	}
	return nil
}

// Destroy closes the event stream, disconnects and releases the store. It is
// safe to call more than once.
func (c *Client) Destroy(ctx context.Context) error {
	c.destroyOnce.Do(func() {
		if stopQR := c.closeEvents(); stopQR != nil {
			stopQR()
		}
		c.wa.RemoveEventHandlers()

		done := make(chan error, 1)
		go func() {
			c.wa.Disconnect()
			done <- c.container.Close()
		}()

		select {
		case c.destroyErr = <-done:
		case <-ctx.Done():
			c.destroyErr = ctx.Err()
		}
	})
	return c.destroyErr
}
