// File: internal/infra/store/json_state_repo.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"coursesync/internal/domain/model"
	"coursesync/internal/domain/ports/repository"
	"coursesync/internal/infra/logging"
)

const (
	dataFile     = "data.json"
	settingsFile = "settings.json"
)

// Compile-time check
var _ repository.StateRepository = (*JSONStateRepo)(nil)

// JSONStateRepo persists the tracker state as two JSON documents in a data
// directory. Writes go to a temp file in the same directory and are renamed
// into place.
type JSONStateRepo struct {
	dir      string
	defaults model.Settings
	now      func() time.Time
	log      *zerolog.Logger

	mu sync.Mutex
	// xxhash of the bytes last written per file; lets Watch skip our own writes
	written map[string]uint64
}

func NewJSONStateRepo(dir string, defaults model.Settings, logger *zerolog.Logger) *JSONStateRepo {
	if logger == nil {
		logger = logging.Nop()
	}
	return &JSONStateRepo{dir: dir, defaults: defaults, now: time.Now, log: logger, written: map[string]uint64{}}
}

// Dir returns the data directory.
func (r *JSONStateRepo) Dir() string { return r.dir }

// Load returns the stored state. A missing or unreadable data file yields an
// empty state; settings.json, when present, overrides the settings embedded
// in data.json.
func (r *JSONStateRepo) Load(ctx context.Context) (*model.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	st := model.NewState(r.defaults)
	if err := r.readJSON(dataFile, st); err != nil {
		st = model.NewState(r.defaults)
	}
	if st.Courses == nil {
		st.Courses = []model.Course{}
	}
	if st.Assignments == nil {
		st.Assignments = []model.Assignment{}
	}
	if st.SentNotifications == nil {
		st.SentNotifications = []string{}
	}

	var settings model.Settings
	if err := r.readJSON(settingsFile, &settings); err == nil {
		st.Settings = settings
	}
	st.Settings.FillDefaults(r.defaults)
	return st, nil
}

func (r *JSONStateRepo) readJSON(name string, v any) error {
	path := filepath.Join(r.dir, name)
	b, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.log.Warn().Err(err).Str("path", path).Msg("state file unreadable")
		}
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		r.log.Warn().Err(err).Str("path", path).Msg("state file corrupt; starting empty")
		return err
	}
	return nil
}

// Save writes data.json and settings.json. s.Timestamp is refreshed.
func (r *JSONStateRepo) Save(ctx context.Context, s *model.State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	s.Timestamp = r.now()
	if err := r.writeJSON(dataFile, s); err != nil {
		return err
	}
	return r.writeJSON(settingsFile, s.Settings)
}

func (r *JSONStateRepo) writeJSON(name string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(r.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpPath, filepath.Join(r.dir, name)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", name, err)
	}
	r.written[name] = xxhash.Sum64(b)
	return nil
}
