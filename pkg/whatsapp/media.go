package whatsapp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sunshineplan/imgconv"

	"github.com/gdbrns/go-whatsapp-session-manager/pkg/session"
)

const thumbnailWidth = 72

type media struct {
	data     []byte
	mimeType string
}

func fetchMedia(ctx context.Context, client *http.Client, url string, maxSize int64) (media, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return media{}, fmt.Errorf("%w: %v", session.ErrMediaFetch, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return media{}, fmt.Errorf("%w: %v", session.ErrMediaFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return media{}, fmt.Errorf("%w: status %d", session.ErrMediaFetch, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSize+1))
	if err != nil {
		return media{}, fmt.Errorf("%w: %v", session.ErrMediaFetch, err)
	}
	if int64(len(data)) > maxSize {
		return media{}, session.ErrMediaTooLarge
	}

	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return media{}, fmt.Errorf("%w: %s", session.ErrMediaType, mimeType)
	}
	return media{data: data, mimeType: mimeType}, nil
}

// thumbnail renders the small JPEG preview embedded in image messages.
func thumbnail(data []byte) ([]byte, error) {
	img, err := imgconv.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.New("error while decoding thumbnail image stream")
	}

	buf := new(bytes.Buffer)
	err = imgconv.Write(buf,
		imgconv.Resize(img, &imgconv.ResizeOption{Width: thumbnailWidth}),
		&imgconv.FormatOption{Format: imgconv.JPEG})
	if err != nil {
		return nil, errors.New("error while encoding thumbnail image stream")
	}
	return buf.Bytes(), nil
}
