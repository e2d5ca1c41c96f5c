package dfr

import (
	"log/slog"
	"os"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

// EngineConfig configures a Facade. All fields are optional; NewFacade
// applies defaults for zero values.
type EngineConfig struct {
	// Allocator defaults to memory.DefaultAllocator. No engine component
	// reads it: Arrow memory is always allocated from memory.DefaultAllocator.
	Allocator memory.Allocator

	// Logger defaults to a text logger on stderr at LogLevel. No engine
	// component logs through it.
	Logger *slog.Logger

	// LogLevel sets the logging level when Logger is nil. Defaults to Info.
	LogLevel *slog.Level

	// PreviewRowLimit bounds how many rows a preview materializes.
	// Defaults to 1000.
	PreviewRowLimit int

	// CacheEntries bounds the preview LRU's entry count. Defaults to 16.
	CacheEntries int

	// CacheRowFootprint bounds the preview LRU's total cached row count
	// across all entries. Defaults to 10 * PreviewRowLimit * CacheEntries.
	CacheRowFootprint int64

	// ProbeTimeout bounds how long source probing may take before failing
	// with KindTimeout. Defaults to 5s.
	ProbeTimeout time.Duration

	// ExecutorParallelism bounds the number of preview and export jobs
	// that run concurrently on the executor pool. Defaults to 4.
	ExecutorParallelism int

	// GetPreviewWaitTimeout bounds how long GetPreview blocks before
	// returning a "still computing" marker. Defaults to 200ms.
	GetPreviewWaitTimeout time.Duration
}

func (c EngineConfig) normalize() EngineConfig {
	if c.Allocator == nil {
		c.Allocator = memory.DefaultAllocator
	}
	if c.Logger == nil {
		level := slog.LevelInfo
		if c.LogLevel != nil {
			level = *c.LogLevel
		}
		c.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	if c.PreviewRowLimit <= 0 {
		c.PreviewRowLimit = 1000
	}
	if c.CacheEntries <= 0 {
		c.CacheEntries = 16
	}
	if c.CacheRowFootprint <= 0 {
		c.CacheRowFootprint = int64(10 * c.PreviewRowLimit * c.CacheEntries)
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = 5 * time.Second
	}
	if c.ExecutorParallelism <= 0 {
		c.ExecutorParallelism = 4
	}
	if c.GetPreviewWaitTimeout <= 0 {
		c.GetPreviewWaitTimeout = 200 * time.Millisecond
	}
	return c
}
