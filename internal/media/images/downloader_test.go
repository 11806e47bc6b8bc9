package images

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/soledexapp/soledex-server/internal/errors"
	"github.com/soledexapp/soledex-server/internal/source"
)

// encodePNG renders a small gradient and returns the encoded bytes.
func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFetch(t *testing.T) {
	data := encodePNG(t, 120, 80)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(data)
	}))
	t.Cleanup(srv.Close)

	d := NewDownloader(nil)
	cand, err := d.Fetch(context.Background(), source.RawImageRef{URL: srv.URL + "/shoe.png"}, "item-1")
	require.NoError(t, err)

	assert.Equal(t, "item-1", cand.OwnerItemID)
	assert.Equal(t, srv.URL+"/shoe.png", cand.SourceURL)
	assert.Equal(t, 120, cand.Width)
	assert.Equal(t, 80, cand.Height)
	assert.Equal(t, int64(len(data)), cand.ByteSize)
	assert.Equal(t, data, cand.Bytes)

	// The full hash set is computed up front.
	assert.Len(t, cand.Hashes.ByteHash, 64)
	assert.NotZero(t, cand.Hashes.AHash|cand.Hashes.DHash)
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    []byte
		wantErr error
	}{
		{"gone", http.StatusNotFound, nil, apperrors.ErrSourceFatal},
		{"flaky cdn", http.StatusBadGateway, nil, apperrors.ErrSourceTransient},
		{"throttled", http.StatusTooManyRequests, nil, apperrors.ErrSourceTransient},
		{"not an image", http.StatusOK, []byte("<html>nope</html>"), apperrors.ErrMalformedPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write(tt.body)
			}))
			t.Cleanup(srv.Close)

			d := NewDownloader(nil)
			_, err := d.Fetch(context.Background(), source.RawImageRef{URL: srv.URL}, "item-1")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFetchEmptyURL(t *testing.T) {
	d := NewDownloader(nil)
	_, err := d.Fetch(context.Background(), source.RawImageRef{}, "item-1")
	assert.ErrorIs(t, err, apperrors.ErrSourceFatal)
}

func TestDecode(t *testing.T) {
	img, w, h, err := Decode(encodePNG(t, 60, 40))
	require.NoError(t, err)
	assert.NotNil(t, img)
	assert.Equal(t, 60, w)
	assert.Equal(t, 40, h)

	_, _, _, err = Decode([]byte("garbage"))
	assert.Error(t, err)
}

func TestComputeBlurHash(t *testing.T) {
	img, _, _, err := Decode(encodePNG(t, 300, 200))
	require.NoError(t, err)

	hash, err := ComputeBlurHash(img)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	// Deterministic for identical input.
	again, err := ComputeBlurHash(img)
	require.NoError(t, err)
	assert.Equal(t, hash, again)
}
