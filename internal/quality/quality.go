// Package quality screens image candidates before they enter the catalog.
// Checks run cheapest-first: byte size, pixel dimensions, sharpness, URL
// keywords, aspect ratio. The first failing check rejects with a stable
// reason string that feeds the run report.
package quality

import (
	"fmt"
	"image"
	"strings"

	"github.com/soledexapp/soledex-server/internal/domain"
)

// Rejection reasons. Stable strings, keyed into run stats.
const (
	ReasonTooSmall       = "too_small"
	ReasonTooLarge       = "too_large"
	ReasonLowResolution  = "low_resolution"
	ReasonBlurry         = "blurry"
	ReasonEdgeNoise      = "edge_noise"
	ReasonDeniedKeyword  = "denied_keyword"
	ReasonMissingKeyword = "missing_keyword"
	ReasonBadAspectRatio = "bad_aspect_ratio"
)

// Config tunes the gate. A zero value disables the corresponding check,
// so tests and callers can enable checks selectively.
type Config struct {
	// MinBytes and MaxBytes bound the encoded size, both inclusive.
	MinBytes int
	MaxBytes int
	// MinPixels is the minimum width*height.
	MinPixels int
	// MinSharpness is the floor on Laplacian variance. Below it the
	// image is considered too blurry to be a usable product photo.
	MinSharpness float64
	// MaxEdgeRatio caps the fraction of strong-edge pixels. Collages,
	// charts and text-heavy graphics land above it.
	MaxEdgeRatio float64
	// AllowKeywords, when non-empty, requires at least one to appear in
	// the source URL. DenyKeywords rejects on any hit and wins over the
	// allow list.
	AllowKeywords []string
	DenyKeywords  []string
	// MinAspect and MaxAspect bound width/height.
	MinAspect float64
	MaxAspect float64
}

// DefaultConfig returns the production gate settings, tuned for sneaker
// product photography.
func DefaultConfig() Config {
	return Config{
		MinBytes:     5_000,
		MaxBytes:     15 << 20,
		MinPixels:    50_000,
		MinSharpness: 100,
		MaxEdgeRatio: 0.30,
		AllowKeywords: []string{
			"shoe", "sneaker", "footwear", "trainer", "jordan", "dunk",
			"yeezy", "boost", "air-max", "airmax", "nmd", "samba",
		},
		DenyKeywords: []string{
			"logo", "icon", "banner", "thumb", "avatar", "chart",
			"sock", "shirt", "hoodie", "cap", "insole", "lace",
		},
		MinAspect: 0.5,
		MaxAspect: 3.0,
	}
}

// Verdict is the gate's decision for one candidate.
type Verdict struct {
	Reason   string
	Accepted bool
}

func accept() Verdict              { return Verdict{Accepted: true} }
func reject(reason string) Verdict { return Verdict{Reason: reason} }

// Gate applies the configured checks to image candidates. Stateless and
// safe for concurrent use.
type Gate struct {
	cfg Config
}

// NewGate builds a gate from cfg.
func NewGate(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// Inspect screens one decoded candidate. img must be the decoded form of
// cand.Bytes; the caller owns decoding so a malformed payload is reported
// upstream rather than here.
func (g *Gate) Inspect(cand *domain.ImageCandidate, img image.Image) Verdict {
	if g.cfg.MinBytes > 0 && cand.ByteSize < int64(g.cfg.MinBytes) {
		return reject(ReasonTooSmall)
	}
	if g.cfg.MaxBytes > 0 && cand.ByteSize > int64(g.cfg.MaxBytes) {
		return reject(ReasonTooLarge)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if g.cfg.MinPixels > 0 && w*h < g.cfg.MinPixels {
		return reject(ReasonLowResolution)
	}

	if g.cfg.MinSharpness > 0 || g.cfg.MaxEdgeRatio > 0 {
		sharpness, edgeRatio := analyze(img)
		if g.cfg.MinSharpness > 0 && sharpness < g.cfg.MinSharpness {
			return reject(ReasonBlurry)
		}
		if g.cfg.MaxEdgeRatio > 0 && edgeRatio > g.cfg.MaxEdgeRatio {
			return reject(ReasonEdgeNoise)
		}
	}

	if v := g.checkURL(cand.SourceURL); !v.Accepted {
		return v
	}

	if h > 0 && (g.cfg.MinAspect > 0 || g.cfg.MaxAspect > 0) {
		aspect := float64(w) / float64(h)
		if g.cfg.MinAspect > 0 && aspect < g.cfg.MinAspect {
			return reject(ReasonBadAspectRatio)
		}
		if g.cfg.MaxAspect > 0 && aspect > g.cfg.MaxAspect {
			return reject(ReasonBadAspectRatio)
		}
	}

	return accept()
}

// checkURL applies the keyword lists to a lowercased source URL.
func (g *Gate) checkURL(rawURL string) Verdict {
	if rawURL == "" || (len(g.cfg.DenyKeywords) == 0 && len(g.cfg.AllowKeywords) == 0) {
		return accept()
	}
	url := strings.ToLower(rawURL)

	for _, kw := range g.cfg.DenyKeywords {
		if strings.Contains(url, kw) {
			return reject(ReasonDeniedKeyword)
		}
	}

	if len(g.cfg.AllowKeywords) > 0 {
		for _, kw := range g.cfg.AllowKeywords {
			if strings.Contains(url, kw) {
				return accept()
			}
		}
		return reject(ReasonMissingKeyword)
	}
	return accept()
}

// String implements fmt.Stringer for log lines.
func (v Verdict) String() string {
	if v.Accepted {
		return "accepted"
	}
	return fmt.Sprintf("rejected(%s)", v.Reason)
}
