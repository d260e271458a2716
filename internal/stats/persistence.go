package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// statsVersion is bumped when the schema changes.
	statsVersion = 1

	statsFileName = "stats.json"
	appDirName    = "longpoll"
)

// Stats is the aggregate activity of a registry. It is saved to
// ~/.local/state/longpoll/stats.json (respecting XDG_STATE_HOME).
type Stats struct {
	Version int `json:"version"`

	SessionsCreated int `json:"sessionsCreated"`
	Polls           int `json:"polls"`
	Updates         int `json:"updates"`
	Expired         int `json:"expired"`
	Destroyed       int `json:"destroyed"`

	// ByStatus counts finished polls per status message.
	ByStatus map[string]int `json:"byStatus"`

	MaxLive int `json:"maxLive"`

	LastUpdated time.Time `json:"lastUpdated"`
}

func newStats() *Stats {
	return &Stats{
		Version:  statsVersion,
		ByStatus: make(map[string]int),
	}
}

func (st *Stats) clone() *Stats {
	cp := *st
	cp.ByStatus = make(map[string]int, len(st.ByStatus))
	for k, v := range st.ByStatus {
		cp.ByStatus[k] = v
	}
	return &cp
}

// Store loads and saves Stats in one directory.
type Store struct {
	dir string
}

// NewStore returns a Store for dir. An empty dir means the default XDG
// state path. The directory is created on the first Save.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = defaultStatsDir()
	}
	return &Store{dir: dir}
}

func (s *Store) Path() string {
	return filepath.Join(s.dir, statsFileName)
}

// Load reads stats from disk. A missing file yields empty stats.
func (s *Store) Load() (*Stats, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return newStats(), nil
		}
		return nil, fmt.Errorf("reading stats: %w", err)
	}

	var st Stats
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parsing stats: %w", err)
	}
	if st.ByStatus == nil {
		st.ByStatus = make(map[string]int)
	}
	return &st, nil
}

// Save writes stats with a temp-file-then-rename so readers never see a
// partial file.
func (s *Store) Save(st *Stats) error {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("creating stats dir: %w", err)
	}

	st.Version = statsVersion
	st.LastUpdated = time.Now().UTC()

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(s.dir, ".stats-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path()); err != nil {
		return fmt.Errorf("renaming stats file: %w", err)
	}
	committed = true
	return nil
}

func defaultStatsDir() string {
	if base := os.Getenv("XDG_STATE_HOME"); base != "" {
		return filepath.Join(base, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".local", "state", appDirName)
}
