// Package images fetches and decodes remote product photos, turning a
// RawImageRef into a fully-hashed ImageCandidate ready for the dedup and
// quality stages.
package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/soledexapp/soledex-server/internal/dedup"
	"github.com/soledexapp/soledex-server/internal/domain"
	apperrors "github.com/soledexapp/soledex-server/internal/errors"
	"github.com/soledexapp/soledex-server/internal/source"
)

const (
	// maxImageSize limits download size to prevent memory exhaustion.
	maxImageSize = 20 * 1024 * 1024 // 20MB

	// downloadTimeout is the maximum time for one image download.
	downloadTimeout = 30 * time.Second
)

// Downloader fetches image candidates. Safe for concurrent use.
type Downloader struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// NewDownloader creates a new image downloader.
func NewDownloader(logger *slog.Logger) *Downloader {
	return &Downloader{
		httpClient: &http.Client{
			Timeout: downloadTimeout,
		},
		logger: logger,
	}
}

// Fetch downloads one image and builds a candidate with decoded dimensions
// and the full hash set. Failures carry the pipeline taxonomy: network and
// 5xx problems are transient, 4xx is fatal for this URL, undecodable bytes
// are malformed.
func (d *Downloader) Fetch(ctx context.Context, ref source.RawImageRef, itemID string) (*domain.ImageCandidate, error) {
	if ref.URL == "" {
		return nil, apperrors.SourceFatal("empty image URL")
	}

	downloadCtx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(downloadCtx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return nil, apperrors.ErrSourceFatal.WithCause(err)
	}
	req.Header.Set("User-Agent", "Soledex/1.0")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.ErrSourceTransient.WithCause(fmt.Errorf("download: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, apperrors.SourceTransient(fmt.Sprintf("download failed: status %d", resp.StatusCode))
	default:
		return nil, apperrors.SourceFatal(fmt.Sprintf("download failed: status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, apperrors.ErrSourceTransient.WithCause(fmt.Errorf("read data: %w", err))
	}

	img, width, height, err := Decode(data)
	if err != nil {
		return nil, apperrors.ErrMalformedPayload.WithCause(err)
	}

	cand := &domain.ImageCandidate{
		SourceURL:   ref.URL,
		OwnerItemID: itemID,
		Bytes:       data,
		Hashes:      dedup.Fingerprint(img, data),
		Width:       width,
		Height:      height,
		ByteSize:    int64(len(data)),
	}

	if d.logger != nil {
		d.logger.Debug("image fetched",
			"url", ref.URL,
			"item_id", itemID,
			"bytes", cand.ByteSize,
			"dimensions", fmt.Sprintf("%dx%d", width, height),
		)
	}
	return cand, nil
}
