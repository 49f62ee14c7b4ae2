package server

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/guiyumin/mediadrop/internal/core/config"
	"github.com/guiyumin/mediadrop/internal/core/extractor"
	"github.com/guiyumin/mediadrop/internal/core/logger"
	"github.com/guiyumin/mediadrop/internal/core/registry"
	"github.com/guiyumin/mediadrop/internal/core/wire"
)

// Build assembles the registry, its journal, the reaper and the download
// service for cfg. Entries journaled by a previous run are restored.
func Build(cfg *config.Config) (Deps, error) {
	root := cfg.Storage.Root
	if err := os.MkdirAll(root, 0755); err != nil {
		return Deps{}, fmt.Errorf("failed to create storage root: %w", err)
	}

	var opts []registry.Option
	if cfg.Storage.Journal {
		j, err := registry.OpenJournal(filepath.Join(root, registry.JournalFile))
		if err != nil {
			return Deps{}, err
		}
		opts = append(opts, registry.WithJournal(j))
	}
	reg := registry.New(root, opts...)

	if cfg.Storage.Journal {
		n, err := reg.Restore()
		if err != nil {
			log.Emit(logger.WARNING, "Journal restore failed: %v", err)
		} else if n > 0 {
			log.Emit(logger.INFO, "Restored %d file(s) from the journal", n)
		}
	}

	return Deps{
		Service:  extractor.NewService(reg.Root(), reg, wire.Strategies(cfg)),
		Registry: reg,
		Reaper:   registry.NewReaper(reg, cfg.Storage.TTL, cfg.Storage.SweepInterval),
	}, nil
}
