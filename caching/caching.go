package caching

import (
	"path/filepath"
	"sync"
)

type Manager struct {
	cacheDir string

	locationCache      *_LocationCache
	locationCacheMutex sync.Mutex
}

func NewManager(cacheDir string) *Manager {
	return &Manager{
		cacheDir: cacheDir,
	}
}

func (m *Manager) Close() error {
	m.locationCacheMutex.Lock()
	defer m.locationCacheMutex.Unlock()

	// closing is best effort, a cache is never authoritative
	if m.locationCache != nil {
		m.locationCache.Close()
		m.locationCache = nil
	}
	return nil
}

func (m *Manager) Locations() (*_LocationCache, error) {
	m.locationCacheMutex.Lock()
	defer m.locationCacheMutex.Unlock()

	if m.locationCache != nil {
		return m.locationCache, nil
	}

	if cache, err := newLocationCache(m, filepath.Join(m.cacheDir, "locations")); err != nil {
		return nil, err
	} else {
		m.locationCache = cache
		return cache, nil
	}
}
