// Package dedup implements content-level duplicate detection for catalog
// images. Exact duplicates are caught by a SHA-256 digest of the raw bytes;
// near-duplicates by 64-bit perceptual hashes (average and difference hash
// over an 8x8 downsample) compared with Hamming distance.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"math/bits"

	"golang.org/x/image/draw"

	"github.com/soledexapp/soledex-server/internal/domain"
)

// hashSide is the downsample edge used for perceptual hashing. 8x8 gives a
// 64-bit fingerprint, which is sufficient fidelity for catalog photos.
const hashSide = 8

// grayscale downsamples an image to w x h gray pixels.
// CatmullRom is slower than nearest-neighbor but stabilizes the hash
// against resize artifacts in the source images.
func grayscale(img image.Image, w, h int) *image.Gray {
	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// AverageHash computes the 64-bit average hash: each bit is set when the
// corresponding downsampled pixel is brighter than the mean.
func AverageHash(img image.Image) uint64 {
	g := grayscale(img, hashSide, hashSide)

	var sum uint64
	for _, p := range g.Pix {
		sum += uint64(p)
	}
	mean := uint8(sum / uint64(len(g.Pix)))

	var hash uint64
	for i, p := range g.Pix {
		if p > mean {
			hash |= 1 << uint(i)
		}
	}
	return hash
}

// DifferenceHash computes the 64-bit difference hash: the image is scaled
// to 9x8 and each bit records whether a pixel is brighter than its right
// neighbor. More robust than the average hash against global brightness
// shifts.
func DifferenceHash(img image.Image) uint64 {
	g := grayscale(img, hashSide+1, hashSide)

	var hash uint64
	i := 0
	for y := 0; y < hashSide; y++ {
		row := y * (hashSide + 1)
		for x := 0; x < hashSide; x++ {
			if g.Pix[row+x] > g.Pix[row+x+1] {
				hash |= 1 << uint(i)
			}
			i++
		}
	}
	return hash
}

// Distance returns the Hamming distance between two 64-bit hashes.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// ByteHash returns the hex SHA-256 digest of raw image bytes.
func ByteHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FormatHash renders a perceptual hash as a fixed-width hex string.
func FormatHash(h uint64) string {
	return fmt.Sprintf("%016x", h)
}

// Fingerprint computes the full hash set for one image: exact byte digest
// plus both perceptual variants.
func Fingerprint(img image.Image, data []byte) domain.ImageHashes {
	return domain.ImageHashes{
		ByteHash: ByteHash(data),
		AHash:    AverageHash(img),
		DHash:    DifferenceHash(img),
	}
}
