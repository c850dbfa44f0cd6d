package segmenter

import "math"

// runningStats tracks mean and standard deviation of the difference scores
// seen so far, over a trailing window. Updates are one score at a time and
// never look ahead, so segmentation stays causal and streaming-capable.
type runningStats struct {
	window int
	ring   []float64
	next   int
	count  int
	sum    float64
	sumSq  float64
}

func newRunningStats(window int) *runningStats {
	return &runningStats{
		window: window,
		ring:   make([]float64, window),
	}
}

func (r *runningStats) add(score float64) {
	if r.count == r.window {
		old := r.ring[r.next]
		r.sum -= old
		r.sumSq -= old * old
	} else {
		r.count++
	}
	r.ring[r.next] = score
	r.next = (r.next + 1) % r.window
	r.sum += score
	r.sumSq += score * score
}

func (r *runningStats) mean() float64 {
	if r.count == 0 {
		return 0
	}
	return r.sum / float64(r.count)
}

func (r *runningStats) stddev() float64 {
	if r.count == 0 {
		return 0
	}
	m := r.mean()
	variance := r.sumSq/float64(r.count) - m*m
	if variance < 0 {
		// Guard against tiny negative values from float rounding.
		variance = 0
	}
	return math.Sqrt(variance)
}
