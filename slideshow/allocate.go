// Package slideshow turns a subtitle timeline into the frame plan an
// encoder consumes: per-image display durations and the concat list
// that sequences them.
package slideshow

import (
	"errors"
	"math"

	"slideshow-renderer/subtitle"
)

// ErrNoImages reports an allocation request without any images to show.
var ErrNoImages = errors.New("slideshow: no images to allocate durations for")

// Allocate splits a timeline's cue durations across imageCount images and
// returns the per-image durations plus the target duration of the finished
// video (last cue end plus the trailing buffer).
//
// Cues are grouped into fixed-width blocks of size max(1, N/imageCount);
// image i displays for the summed duration of block i. The trailing buffer
// is added once, to the last image, so the final frame outlives the last
// cue instead of cutting on it.
//
// TODO: when N is not a multiple of imageCount the trailing N mod imageCount
// cues are summed into no block, so the slideshow runs short of the audio by
// that many seconds and the last frame holds longer. Folding the remainder
// into the final block would fix it but changes the pacing of every
// published video, so it needs a deliberate call.
func Allocate(tl subtitle.Timeline, imageCount int, buffer float64) ([]float64, float64, error) {
	if imageCount <= 0 {
		return nil, 0, ErrNoImages
	}
	cueDurations := tl.Durations()
	n := len(cueDurations)
	if n == 0 {
		return nil, 0, subtitle.ErrEmptyTimeline
	}

	blockSize := n / imageCount
	if blockSize < 1 {
		blockSize = 1
	}

	durations := make([]float64, imageCount)
	for i := range durations {
		lo := i * blockSize
		hi := lo + blockSize
		if lo > n {
			lo = n
		}
		if hi > n {
			hi = n
		}
		var sum float64
		for _, d := range cueDurations[lo:hi] {
			sum += d
		}
		durations[i] = round2(sum)
	}
	durations[imageCount-1] = round2(durations[imageCount-1] + buffer)

	return durations, tl.LastEnd + buffer, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
