package context

import (
	"github.com/PlakarLabs/tilediff/events"
	"github.com/PlakarLabs/tilediff/logging"
	"github.com/gobwas/glob"
)

// Context carries the per-invocation settings and services shared by
// every engine: logger, event bus and tuning knobs.
type Context struct {
	events *events.Receiver
	Logger *logging.Logger

	numCPU         int
	maxConcurrency int
	commandLine    string
	cacheDir       string

	fingerprint    string
	chunkExtension string
	tileSize       int
	disableCache   bool
	excludes       []glob.Glob
}

func NewContext() *Context {
	return &Context{
		events:         events.New(),
		Logger:         logging.Discard(),
		numCPU:         1,
		maxConcurrency: 1,
		fingerprint:    "blake3",
		chunkExtension: "png",
		tileSize:       1000,
	}
}

func (c *Context) Close() {
	c.events.Close()
}

func (c *Context) Events() *events.Receiver {
	return c.events
}

func (c *Context) SetNumCPU(numCPU int) {
	c.numCPU = numCPU
}

func (c *Context) GetNumCPU() int {
	return c.numCPU
}

func (c *Context) SetMaxConcurrency(maxConcurrency int) {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	c.maxConcurrency = maxConcurrency
}

func (c *Context) GetMaxConcurrency() int {
	return c.maxConcurrency
}

func (c *Context) SetCommandLine(commandLine string) {
	c.commandLine = commandLine
}

func (c *Context) GetCommandLine() string {
	return c.commandLine
}

func (c *Context) SetCacheDir(cacheDir string) {
	c.cacheDir = cacheDir
}

func (c *Context) GetCacheDir() string {
	return c.cacheDir
}

func (c *Context) SetDisableCache(disableCache bool) {
	c.disableCache = disableCache
}

// CacheEnabled reports whether a persistent cache may be used.
func (c *Context) CacheEnabled() bool {
	return !c.disableCache && c.cacheDir != ""
}

func (c *Context) SetFingerprint(algorithm string) {
	c.fingerprint = algorithm
}

func (c *Context) GetFingerprint() string {
	return c.fingerprint
}

func (c *Context) SetChunkExtension(ext string) {
	c.chunkExtension = ext
}

func (c *Context) GetChunkExtension() string {
	return c.chunkExtension
}

func (c *Context) SetTileSize(tileSize int) {
	c.tileSize = tileSize
}

func (c *Context) GetTileSize() int {
	return c.tileSize
}

// SetExcludes sets the chunk paths every opened source skips.
func (c *Context) SetExcludes(excludes []glob.Glob) {
	c.excludes = excludes
}

func (c *Context) GetExcludes() []glob.Glob {
	return c.excludes
}
