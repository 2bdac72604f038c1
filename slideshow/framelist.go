package slideshow

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ImageSlot is one entry of the slideshow: an image locator and how long
// the encoder should hold it on screen.
type ImageSlot struct {
	Index    int
	Locator  string
	Duration float64
}

// BuildSlots pairs image locators with allocated durations, preserving the
// caller's order. Both slices come from the same image count, so a length
// mismatch means a caller bug rather than bad input.
func BuildSlots(locators []string, durations []float64) ([]ImageSlot, error) {
	if len(locators) != len(durations) {
		return nil, fmt.Errorf("slideshow: %d locators for %d durations", len(locators), len(durations))
	}
	slots := make([]ImageSlot, len(locators))
	for i, loc := range locators {
		slots[i] = ImageSlot{Index: i, Locator: loc, Duration: durations[i]}
	}
	return slots, nil
}

// ConcatList renders slots in the text protocol of ffmpeg's concat demuxer:
// a file line followed by a duration line per slot. Locators are wrapped in
// single quotes and nothing more; locators containing a single quote are not
// supported.
func ConcatList(slots []ImageSlot) string {
	var b strings.Builder
	for _, slot := range slots {
		b.WriteString("file '")
		b.WriteString(slot.Locator)
		b.WriteString("'\nduration ")
		b.WriteString(strconv.FormatFloat(slot.Duration, 'f', -1, 64))
		b.WriteString("\n")
	}
	return b.String()
}

// SortedImages lists the image files of a directory in lexicographic order.
// Only .jpg, .jpeg and .png entries count; the extension check ignores case.
func SortedImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("slideshow: reading image dir: %w", err)
	}
	var images []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".jpg", ".jpeg", ".png":
			images = append(images, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(images)
	return images, nil
}
