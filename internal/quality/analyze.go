package quality

import (
	"image"

	"golang.org/x/image/draw"
)

// analyzeSide bounds the working size for focus analysis. Anything larger
// is downsampled first; sharpness metrics are scale-relative, not
// absolute, so this keeps the gate O(1) per image.
const analyzeSide = 256

// edgeThreshold is the gradient magnitude above which a pixel counts as a
// strong edge for the edge-ratio metric.
const edgeThreshold = 30

// analyze computes the two focus metrics in one pass over a grayscale
// downsample: the variance of the 4-neighbour Laplacian (sharpness) and
// the fraction of strong-edge pixels (edge ratio).
func analyze(img image.Image) (sharpness, edgeRatio float64) {
	g := workingGray(img)
	w := g.Bounds().Dx()
	h := g.Bounds().Dy()
	if w < 3 || h < 3 {
		return 0, 0
	}

	var (
		sum, sumSq float64
		edges      int
		count      int
	)
	for y := 1; y < h-1; y++ {
		row := y * g.Stride
		for x := 1; x < w-1; x++ {
			c := int(g.Pix[row+x])
			up := int(g.Pix[row-g.Stride+x])
			down := int(g.Pix[row+g.Stride+x])
			left := int(g.Pix[row+x-1])
			right := int(g.Pix[row+x+1])

			lap := float64(4*c - up - down - left - right)
			sum += lap
			sumSq += lap * lap

			// Adjacent differences, not central: a central gradient is
			// blind to period-2 alternation, the exact pattern the edge
			// cap is meant to catch.
			gx := c - right
			gy := c - down
			if gx < 0 {
				gx = -gx
			}
			if gy < 0 {
				gy = -gy
			}
			if gx+gy > edgeThreshold {
				edges++
			}
			count++
		}
	}

	mean := sum / float64(count)
	sharpness = sumSq/float64(count) - mean*mean
	edgeRatio = float64(edges) / float64(count)
	return sharpness, edgeRatio
}

// workingGray converts to grayscale, downsampling when the image exceeds
// the working size.
func workingGray(img image.Image) *image.Gray {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	if w > analyzeSide || h > analyzeSide {
		scale := float64(analyzeSide) / float64(max(w, h))
		w = max(1, int(float64(w)*scale))
		h = max(1, int(float64(h)*scale))
		dst := image.NewGray(image.Rect(0, 0, w, h))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
		return dst
	}

	dst := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
