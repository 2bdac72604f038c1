package staging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// CleanStale removes working areas under root whose directories have not
// been touched for maxAge. Live requests keep writing into their areas, so
// only directories orphaned by a crash or kill get old enough to match.
// Returns how many areas were removed.
func CleanStale(root string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		maxAge = time.Hour
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return 0, fmt.Errorf("ensuring staging root: %w", err)
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, fmt.Errorf("reading staging root: %w", err)
	}

	now := time.Now()
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			log.Printf("Skipping %s: %v", entry.Name(), err)
			continue
		}
		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		path := filepath.Join(root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			log.Printf("Error removing stale area %s: %v", path, err)
			continue
		}
		log.Printf("Removed stale working area %s", entry.Name())
		removed++
	}
	return removed, nil
}
