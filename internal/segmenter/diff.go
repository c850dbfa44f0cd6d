package segmenter

import "image"

const histBins = 16

// histogram builds a per-channel color histogram normalized by pixel count.
func histogram(img image.Image) [3 * histBins]float64 {
	var hist [3 * histBins]float64
	bounds := img.Bounds()
	total := float64(bounds.Dx() * bounds.Dy())
	if total == 0 {
		return hist
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			hist[(r>>8)*histBins/256]++
			hist[histBins+(g>>8)*histBins/256]++
			hist[2*histBins+(b>>8)*histBins/256]++
		}
	}
	for i := range hist {
		hist[i] /= total
	}
	return hist
}

// diffScore is the normalized L1 distance between the color histograms of
// two frames: 0 for identical frames, approaching 1 for a full content
// change. It is deterministic for identical input, which segmentation
// relies on.
func diffScore(a, b image.Image) float64 {
	ha, hb := histogram(a), histogram(b)
	var d float64
	for i := range ha {
		if ha[i] > hb[i] {
			d += ha[i] - hb[i]
		} else {
			d += hb[i] - ha[i]
		}
	}
	// Each channel histogram sums to 1, so the raw L1 distance is in [0, 6].
	return d / 6
}
