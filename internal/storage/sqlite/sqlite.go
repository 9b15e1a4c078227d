// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend; the only SQLite-specific concerns are creating
// the in-memory DB and the periodic and final disk dumps.
package sqlitestorage

import (
	"fmt"
	"sync"
	"time"

	"github.com/qppath/qppath/internal/config"
	"github.com/qppath/qppath/internal/database"
	gormstorage "github.com/qppath/qppath/internal/storage/gorm"
	"github.com/rs/zerolog"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *database.Manager
	cfg      config.SQLiteConfig
	log      zerolog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a new SQLite storage backend.
func New(cfg config.SQLiteConfig, log zerolog.Logger) (*Backend, error) {
	db := database.NewManager(log)
	if err := db.ConnectSqlite("", cfg.Path); err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	return &Backend{
		Backend:  gormstorage.New(db),
		db:       db,
		cfg:      cfg,
		log:      log,
		stopChan: make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.Path != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}
	return nil
}

// Close stops the dump goroutine, writes a final dump and closes the database.
func (b *Backend) Close() error {
	var err error
	b.stopOnce.Do(func() {
		close(b.stopChan)
		b.wg.Wait()
		if b.cfg.Path != "" {
			if dumpErr := b.db.DumpMemoryToDisk(); dumpErr != nil {
				err = fmt.Errorf("final dump failed: %w", dumpErr)
			}
		}
		if closeErr := b.Backend.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	})
	return err
}

// ExportedFilePath returns the dump target.
func (b *Backend) ExportedFilePath() string {
	return b.cfg.Path
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.db.DumpMemoryToDisk(); err != nil {
				b.log.Error().Err(err).Msg("Error dumping to disk")
			} else {
				b.log.Debug().Dur("duration", time.Since(start)).Msg("Dumped to disk")
			}
		}
	}
}
