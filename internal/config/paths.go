package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Paths is the single source of truth for every filesystem location the
// application uses:
//
//	<data>/
//	  db.sqlite3
//	  downloads/YYYY/MM/   raw fetched archives, re-parseable offline
//	  exports/             CSV / Excel exports
//	  logs/                diagnostic output
type Paths struct {
	DataDir      string
	DBFile       string
	DownloadsDir string
	ExportsDir   string
	LogsDir      string
}

// NewPaths resolves the path layout from configuration. An empty
// DataDir defaults to an "Indistocks" directory under the user config
// dir, matching where desktop collaborators expect the store.
func NewPaths(cfg PathsConfig) (*Paths, error) {
	dataDir := cfg.DataDir
	if dataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to determine config directory: %w", err)
		}
		dataDir = filepath.Join(base, "Indistocks")
	}

	dbFile := cfg.DBFile
	if dbFile == "" {
		dbFile = filepath.Join(dataDir, "db.sqlite3")
	}

	return &Paths{
		DataDir:      dataDir,
		DBFile:       dbFile,
		DownloadsDir: filepath.Join(dataDir, "downloads"),
		ExportsDir:   filepath.Join(dataDir, "exports"),
		LogsDir:      filepath.Join(dataDir, "logs"),
	}, nil
}

// EnsureDirectories creates the directory tree if missing.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.DownloadsDir, p.ExportsDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ArchivePath returns the cache location for one date's raw archive,
// organized by year/month.
func (p *Paths) ArchivePath(date time.Time) string {
	return filepath.Join(
		p.DownloadsDir,
		fmt.Sprintf("%04d", date.Year()),
		fmt.Sprintf("%02d", int(date.Month())),
		fmt.Sprintf("bhav_%s.zip", date.Format("2006-01-02")),
	)
}

// ExportPath returns the destination for an exported history file.
func (p *Paths) ExportPath(name string) string {
	return filepath.Join(p.ExportsDir, name)
}

// LogPath returns the full path for a log file name.
func (p *Paths) LogPath(name string) string {
	return filepath.Join(p.LogsDir, name)
}
