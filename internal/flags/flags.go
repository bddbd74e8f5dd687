package flags

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Flag names a zero-length marker file that survives a reset.
type Flag string

const (
	FirstSleep Flag = "firstsleep.flag"
	DeepSleep  Flag = "deepsleep.flag"
	Ftp        Flag = "ftp.flag"
)

// All lists every flag the device knows about.
var All = []Flag{FirstSleep, DeepSleep, Ftp}

func (f Flag) String() string {
	switch f {
	case FirstSleep:
		return "first-sleep"
	case DeepSleep:
		return "deep-sleep"
	case Ftp:
		return "ftp"
	default:
		return string(f)
	}
}

// Store keeps flags as files in a single directory.
//
// The store does not enforce that only one flag is set; callers switching
// between phases must clear the previous flag themselves.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("flags: dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("flags: create dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(f Flag) string {
	return filepath.Join(s.dir, string(f))
}

// Set creates the marker if it does not exist yet.
func (s *Store) Set(f Flag) error {
	file, err := os.OpenFile(s.path(f), os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("flags: set %s: %w", f, err)
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("flags: sync %s: %w", f, err)
	}
	return file.Close()
}

// Clear removes the marker. A missing marker is not an error.
func (s *Store) Clear(f Flag) error {
	err := os.Remove(s.path(f))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("flags: clear %s: %w", f, err)
	}
	return nil
}

func (s *Store) IsSet(f Flag) bool {
	_, err := os.Stat(s.path(f))
	return err == nil
}

// Active returns every flag currently present, in All order.
func (s *Store) Active() []Flag {
	var out []Flag
	for _, f := range All {
		if s.IsSet(f) {
			out = append(out, f)
		}
	}
	return out
}
