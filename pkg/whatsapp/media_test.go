package whatsapp

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	qrCode "github.com/skip2/go-qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdbrns/go-whatsapp-session-manager/pkg/session"
)

func servePNG(t *testing.T) (*httptest.Server, []byte) {
	t.Helper()

	png, err := qrCode.Encode("media", qrCode.Medium, 128)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/image.png":
			_, _ = w.Write(png)
		case "/text":
			_, _ = w.Write([]byte("plain text body"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, png
}

func TestFetchMedia(t *testing.T) {
	srv, png := servePNG(t)

	m, err := fetchMedia(context.Background(), srv.Client(), srv.URL+"/image.png", 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "image/png", m.mimeType)
	assert.Equal(t, png, m.data)
}

func TestFetchMediaErrors(t *testing.T) {
	srv, png := servePNG(t)
	ctx := context.Background()

	_, err := fetchMedia(ctx, srv.Client(), srv.URL+"/missing", 1<<20)
	assert.ErrorIs(t, err, session.ErrMediaFetch)

	_, err = fetchMedia(ctx, srv.Client(), srv.URL+"/text", 1<<20)
	assert.ErrorIs(t, err, session.ErrMediaType)

	_, err = fetchMedia(ctx, srv.Client(), srv.URL+"/image.png", int64(len(png)-1))
	assert.ErrorIs(t, err, session.ErrMediaTooLarge)

	_, err = fetchMedia(ctx, srv.Client(), "://bad", 1<<20)
	assert.ErrorIs(t, err, session.ErrMediaFetch)
}

func TestThumbnail(t *testing.T) {
	png, err := qrCode.Encode("thumb", qrCode.Medium, 256)
	require.NoError(t, err)

	thumb, err := thumbnail(png)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(thumb, []byte{0xFF, 0xD8}))

	_, err = thumbnail([]byte("not an image"))
	assert.Error(t, err)
}
