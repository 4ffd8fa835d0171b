package data

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ducminhle1904/bufferzone-backtest/pkg/logger"
	"github.com/ducminhle1904/bufferzone-backtest/pkg/types"
)

// SourceStamp identifies one version of a bar table on disk
type SourceStamp struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// StampSource stats source. A source that cannot be stat'ed gets a path-only stamp,
// leaving the error to the provider that reads it.
func StampSource(source string) SourceStamp {
	path := source
	if abs, err := filepath.Abs(source); err == nil {
		path = abs
	}
	st, err := os.Stat(path)
	if err != nil {
		return SourceStamp{Path: path}
	}
	return SourceStamp{Path: path, Size: st.Size(), ModTime: st.ModTime()}
}

type cacheEntry struct {
	stamp SourceStamp
	bars  []types.OHLCV
}

// FileCache is an in-memory BarCache; bars go in and come out as copies
// so callers can never modify a cached table.
type FileCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewFileCache creates an empty cache
func NewFileCache() *FileCache {
	return &FileCache{entries: make(map[string]cacheEntry)}
}

func (c *FileCache) Get(stamp SourceStamp) ([]types.OHLCV, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[stamp.Path]
	if !ok || e.stamp != stamp {
		return nil, false
	}
	return append([]types.OHLCV(nil), e.bars...), true
}

func (c *FileCache) Put(stamp SourceStamp, bars []types.OHLCV) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[stamp.Path] = cacheEntry{stamp: stamp, bars: append([]types.OHLCV(nil), bars...)}
}

// Invalidate drops the table cached for path
func (c *FileCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, StampSource(path).Path)
}

func (c *FileCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// CachingProvider serves repeated loads of an unchanged file from memory
type CachingProvider struct {
	provider BarProvider
	cache    BarCache
	log      *logger.Logger
}

// NewCachingProvider wraps provider with a fresh FileCache
func NewCachingProvider(provider BarProvider, log *logger.Logger) *CachingProvider {
	return NewCachingProviderWithCache(provider, NewFileCache(), log)
}

func NewCachingProviderWithCache(provider BarProvider, cache BarCache, log *logger.Logger) *CachingProvider {
	return &CachingProvider{
		provider: provider,
		cache:    cache,
		log:      logger.OrNop(log).With(logger.String("component", "data")),
	}
}

func (p *CachingProvider) Name() string {
	return "cached " + p.provider.Name()
}

// LoadData returns the cached table while the file's size and modification time are unchanged
func (p *CachingProvider) LoadData(source string) ([]types.OHLCV, error) {
	stamp := StampSource(source)
	file := logger.String("file", filepath.Base(source))
	if bars, ok := p.cache.Get(stamp); ok {
		p.log.Debug("bar cache hit", file)
		return bars, nil
	}

	bars, err := p.provider.LoadData(source)
	if err != nil {
		p.cache.Invalidate(source)
		return nil, err
	}
	p.cache.Put(stamp, bars)
	if len(bars) > 0 {
		p.log.Info("bars loaded", file, logger.Int("rows", len(bars)),
			logger.Date("first", bars[0].Timestamp), logger.Date("last", bars[len(bars)-1].Timestamp))
	}
	return bars, nil
}

func (p *CachingProvider) ValidateData(bars []types.OHLCV) error {
	return p.provider.ValidateData(bars)
}
