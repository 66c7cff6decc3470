package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/coachpo/simbroker/errs"
	"github.com/coachpo/simbroker/internal/observability"
)

// latestName is the alias file overwritten on every save.
const latestName = "latest.json"

// timestampLayout is fixed-width so lexicographic and chronological
// ordering of checkpoint filenames agree.
const timestampLayout = "20060102T150405.000000000"

// Entry describes one stored checkpoint file.
type Entry struct {
	Path      string
	CreatedAt time.Time
}

// Store writes checkpoint records under <dir>/<simID>/ as timestamped
// JSON files, maintaining a latest.json alias per simulator.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir. The directory is created
// lazily on the first save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save persists the record as <dir>/<simID>/<timestamp>.json and
// refreshes latest.json. It returns the timestamped path.
func (s *Store) Save(rec *Record) (string, error) {
	simDir := filepath.Join(s.dir, rec.SimID)
	if err := os.MkdirAll(simDir, 0o755); err != nil {
		return "", errs.New("checkpoint/store", errs.CodeStorage,
			errs.WithMessage("create checkpoint directory"), errs.WithCause(err))
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", errs.New("checkpoint/store", errs.CodeStorage,
			errs.WithMessage("encode checkpoint"), errs.WithCause(err))
	}

	path := filepath.Join(simDir, rec.CreatedAt.UTC().Format(timestampLayout)+".json")
	if err := writeAtomic(path, data); err != nil {
		return "", err
	}
	if err := writeAtomic(filepath.Join(simDir, latestName), data); err != nil {
		return "", err
	}

	observability.Log().Info("checkpoint saved",
		observability.F("sim_id", rec.SimID),
		observability.F("path", path))
	return path, nil
}

// Load reads and decodes a checkpoint file. Decode failures surface as
// corruption, not storage errors.
func (s *Store) Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.New("checkpoint/store", errs.CodeNotFound,
				errs.WithMessage("checkpoint "+path+" not found"), errs.WithCause(err))
		}
		return nil, errs.New("checkpoint/store", errs.CodeStorage,
			errs.WithMessage("read checkpoint"), errs.WithCause(err))
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errs.New("checkpoint/store", errs.CodeCorrupt,
			errs.WithMessage("decode checkpoint "+path), errs.WithCause(err))
	}
	return &rec, nil
}

// LoadLatest reads the latest.json alias for a simulator.
func (s *Store) LoadLatest(simID string) (*Record, error) {
	return s.Load(filepath.Join(s.dir, simID, latestName))
}

// List returns the stored checkpoints for a simulator, newest first.
// Files whose names do not parse as checkpoint timestamps are skipped.
func (s *Store) List(simID string) ([]Entry, error) {
	simDir := filepath.Join(s.dir, simID)
	dirEntries, err := os.ReadDir(simDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.New("checkpoint/store", errs.CodeStorage,
			errs.WithMessage("list checkpoints"), errs.WithCause(err))
	}

	var entries []Entry
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || name == latestName || !strings.HasSuffix(name, ".json") {
			continue
		}
		ts, err := time.Parse(timestampLayout, strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Path:      filepath.Join(simDir, name),
			CreatedAt: ts,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

// writeAtomic writes via a temp file and rename so readers never see a
// torn checkpoint.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".checkpoint-*")
	if err != nil {
		return errs.New("checkpoint/store", errs.CodeStorage,
			errs.WithMessage("create temp file"), errs.WithCause(err))
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errs.New("checkpoint/store", errs.CodeStorage,
			errs.WithMessage("write checkpoint"), errs.WithCause(err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errs.New("checkpoint/store", errs.CodeStorage,
			errs.WithMessage("close checkpoint"), errs.WithCause(err))
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errs.New("checkpoint/store", errs.CodeStorage,
			errs.WithMessage(fmt.Sprintf("rename checkpoint to %s", path)), errs.WithCause(err))
	}
	return nil
}
