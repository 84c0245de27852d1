package blockblob

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/oshokin/intuneforge/internal/logger"
	"github.com/oshokin/intuneforge/internal/remote"
	"github.com/oshokin/intuneforge/internal/version"
)

// DefaultBlockSize is the size of every block but the last.
const DefaultBlockSize = 4 << 20

// ErrEmptyPayload is returned when there is nothing to upload.
var ErrEmptyPayload = errors.New("empty payload")

// Uploader performs block uploads. The storage URI carries its own
// authorization, so the HTTP client must not add credentials.
type Uploader struct {
	httpClient *http.Client
	blockSize  int
	proxyURL   string
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithBlockSize overrides DefaultBlockSize. Non-positive values are ignored.
func WithBlockSize(size int) Option {
	return func(u *Uploader) {
		if size > 0 {
			u.blockSize = size
		}
	}
}

// WithProxy routes every request through proxyURL, passing the real target
// in the url query parameter.
func WithProxy(proxyURL string) Option {
	return func(u *Uploader) {
		u.proxyURL = proxyURL
	}
}

// New returns an Uploader using httpClient.
func New(httpClient *http.Client, opts ...Option) *Uploader {
	u := &Uploader{
		httpClient: httpClient,
		blockSize:  DefaultBlockSize,
	}

	for _, opt := range opts {
		opt(u)
	}

	return u
}

// BlockID returns the identifier of the block at index: the base64 of the
// index zero-padded to six digits. All identifiers have the same length.
func BlockID(index int) string {
	return base64.StdEncoding.EncodeToString(fmt.Appendf(nil, "%06d", index))
}

type blockList struct {
	XMLName xml.Name `xml:"BlockList"`
	Latest  []string `xml:"Latest"`
}

// Upload sends payload to storageURI in order and commits the block list.
// progress, if not nil, receives the completed percentage after every block.
func (u *Uploader) Upload(ctx context.Context, storageURI string, payload []byte, progress func(int)) ([]string, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	total := (len(payload) + u.blockSize - 1) / u.blockSize
	ids := make([]string, 0, total)

	ctx = logger.WithKV(logger.WithName(ctx, "blockblob"), "blocks", total)

	for i := range total {
		start := i * u.blockSize
		end := min(start+u.blockSize, len(payload))

		id := BlockID(i)

		target := withQuery(storageURI, "comp=block&blockid="+url.QueryEscape(id))
		op := fmt.Sprintf("upload block %d/%d", i+1, total)

		if err := u.put(ctx, op, target, "", payload[start:end]); err != nil {
			return nil, err
		}

		ids = append(ids, id)

		logger.DebugKV(ctx, "block uploaded", "index", i, "bytes", end-start)

		if progress != nil {
			progress((i + 1) * 100 / total)
		}
	}

	body, err := xml.MarshalIndent(blockList{Latest: ids}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode block list: %w", err)
	}

	body = append([]byte(`<?xml version="1.0" encoding="utf-8"?>`+"\n"), body...)

	if err = u.put(ctx, "commit block list", withQuery(storageURI, "comp=blocklist"), "application/xml", body); err != nil {
		return nil, err
	}

	return ids, nil
}

func (u *Uploader) put(ctx context.Context, op, target, contentType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u.route(target), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	req.Header.Set("x-ms-blob-type", "BlockBlob")

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	version.SetUserAgent(req)

	res, err := u.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	defer remote.Drain(res)

	return remote.CheckResponse(op, res)
}

// route applies the optional proxy rewrite.
func (u *Uploader) route(target string) string {
	if u.proxyURL == "" {
		return target
	}

	return withQuery(u.proxyURL, "url="+url.QueryEscape(target))
}

// withQuery appends an already encoded query fragment to rawURL.
func withQuery(rawURL, query string) string {
	if strings.Contains(rawURL, "?") {
		return rawURL + "&" + query
	}

	return rawURL + "?" + query
}
