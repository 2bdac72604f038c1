package subtitle

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrEmptyTimeline is returned when a track contains no cue boundary lines.
	ErrEmptyTimeline = errors.New("subtitle track contains no cues")

	// ErrMalformedTrack is returned when a track cannot be decoded as text.
	ErrMalformedTrack = errors.New("subtitle track is not decodable text")
)

// cuePattern matches the start of an SRT cue boundary line. Only the line
// prefix is anchored: positioning hints after the end timestamp are tolerated.
var cuePattern = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2}),(\d{3}) --> (\d{2}):(\d{2}):(\d{2}),(\d{3})`)

// Cue is one subtitle entry. Start and End are seconds from track origin;
// Duration is End-Start rounded to two decimal places.
type Cue struct {
	Start    float64
	End      float64
	Duration float64
}

// Timeline is the ordered cue sequence of one track plus the end timestamp
// of its final cue. It is built once per track and never mutated.
type Timeline struct {
	Cues    []Cue
	LastEnd float64
}

// Durations returns the per-cue durations in track order.
func (t Timeline) Durations() []float64 {
	out := make([]float64, len(t.Cues))
	for i, c := range t.Cues {
		out[i] = c.Duration
	}
	return out
}

// ParseTimeline scans subtitle text for cue boundary lines of the form
// "HH:MM:SS,mmm --> HH:MM:SS,mmm" and returns the resulting Timeline. All
// other lines (cue indices, cue text, blanks) are expected noise and are
// skipped. Cues appear in file order; ordering is not verified, so tracks
// with out-of-order or overlapping cues produce undefined pacing.
func ParseTimeline(text string) (Timeline, error) {
	var tl Timeline
	for _, line := range strings.Split(text, "\n") {
		m := cuePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		start := toSeconds(m[1], m[2], m[3], m[4])
		end := toSeconds(m[5], m[6], m[7], m[8])
		tl.Cues = append(tl.Cues, Cue{
			Start:    start,
			End:      end,
			Duration: round2(end - start),
		})
		tl.LastEnd = end
	}
	if len(tl.Cues) == 0 {
		return Timeline{}, ErrEmptyTimeline
	}
	return tl, nil
}

func toSeconds(h, m, s, ms string) float64 {
	// The pattern guarantees digits, so conversion cannot fail.
	return float64(atoi(h))*3600 + float64(atoi(m))*60 + float64(atoi(s)) + float64(atoi(ms))/1000
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
