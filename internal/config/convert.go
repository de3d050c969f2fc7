package config

import (
	"github.com/danmuck/paramctl/internal/syncer"
)

// Location is the plugin selection handed to the backend registry.
func (c Config) Location() syncer.Location {
	names := make([]string, len(c.Plugins.Names))
	copy(names, c.Plugins.Names)
	return syncer.Location{Folder: c.Plugins.Folder, Plugins: names}
}

func (c Config) BadgerStore() syncer.BadgerConfig {
	return syncer.BadgerConfig{
		Path:       c.Badger.Path,
		InMemory:   c.Badger.InMemory,
		SyncWrites: c.Badger.SyncWrites,
	}
}
