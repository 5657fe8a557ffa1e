package encoder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var ErrNothingToArchive = errors.New("no samples to archive")

// Archive saves sessions as timestamped FLAC files under Dir.
type Archive struct {
	Dir string
	now func() time.Time
}

func NewArchive(dir string) *Archive {
	return &Archive{Dir: dir, now: time.Now}
}

// Save encodes 16 kHz mono samples and returns the written path. The file
// appears under its final name only once complete.
func (a *Archive) Save(samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", ErrNothingToArchive
	}
	if err := os.MkdirAll(a.Dir, 0755); err != nil {
		return "", fmt.Errorf("creating archive dir: %w", err)
	}

	tmp, err := os.CreateTemp(a.Dir, ".archive-*.part")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w, err := NewWriter(tmp)
	if err != nil {
		tmp.Close()
		return "", err
	}
	if err := w.Write(PCM16(samples)); err != nil {
		w.Close()
		return "", err
	}
	// closes tmp
	if err := w.Close(); err != nil {
		return "", err
	}

	path := filepath.Join(a.Dir, "murmur-"+a.now().Format("20060102-150405.000")+".flac")
	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("installing archive: %w", err)
	}
	return path, nil
}
