package media

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var (
	// ErrSourceMissing is returned when a source key resolves to no file.
	ErrSourceMissing = errors.New("media source missing")

	// ErrOutsideRoot is returned for keys that would resolve outside the
	// assets directory.
	ErrOutsideRoot = errors.New("media source outside assets root")
)

// Assets derives source keys for exercise media and resolves them to files.
// Keys are slash-separated and relative to Root.
type Assets struct {
	Root string
}

// VideoKey returns the reference video key for an exercise.
func (a Assets) VideoKey(exerciseID string) string {
	return fmt.Sprintf("exercises/%s/reference.mp4", exerciseID)
}

// AudioKey returns the key of a voice cue relative to an exercise.
func (a Assets) AudioKey(exerciseID, relPath string) string {
	return fmt.Sprintf("exercises/%s/audio/%s", exerciseID, relPath)
}

// Path resolves key under Root. Keys that clean to something outside Root
// are rejected.
func (a Assets) Path(key string) (string, error) {
	clean := path.Clean(key)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") || path.IsAbs(clean) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, key)
	}
	return filepath.Join(a.Root, filepath.FromSlash(clean)), nil
}

// Stat resolves key and checks that it names a regular file.
func (a Assets) Stat(key string) (string, error) {
	p, err := a.Path(key)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrSourceMissing, key)
		}
		return "", fmt.Errorf("stat %s: %w", key, err)
	}
	if fi.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrSourceMissing, key)
	}
	return p, nil
}
