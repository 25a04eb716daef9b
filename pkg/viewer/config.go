// Package viewer is the document viewing engine. It detects whether a
// buffer is a PDF or an EPUB, opens it behind one Handle interface and
// drives navigation and rendering sessions against host-owned targets:
// rasterized pages drawn on a Canvas for PDF, reflowed and themed pages
// shown in a Container for EPUB.
package viewer

import (
	"log/slog"

	"github.com/novvoo/go-docview/internal/cache"
	"github.com/novvoo/go-docview/internal/logging"
)

// Config configures a Manager
type Config struct {
	// Scale is the PDF rasterization scale; 1 means one pixel per point.
	Scale float64

	// DefaultTheme is applied to an EPUB rendition at first display when no
	// other theme was selected.
	DefaultTheme string

	// PageCacheSize bounds the rasterized pages kept per PDF session.
	PageCacheSize int

	// PageCacheBytes bounds the pixel memory of those pages.
	PageCacheBytes int64

	// Opener opens sources. Nil uses a DocumentOpener with the page cache
	// settings above.
	Opener Opener

	// Logger receives session and render events. Nil uses the package logger.
	Logger *slog.Logger
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() Config {
	pages := cache.DefaultConfig()
	return Config{
		Scale:          1.5,
		DefaultTheme:   ThemeLight,
		PageCacheSize:  pages.MaxSize,
		PageCacheBytes: pages.MaxBytes,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Scale <= 0 {
		c.Scale = def.Scale
	}
	if c.DefaultTheme == "" {
		c.DefaultTheme = def.DefaultTheme
	}
	if c.PageCacheSize <= 0 {
		c.PageCacheSize = def.PageCacheSize
	}
	if c.PageCacheBytes <= 0 {
		c.PageCacheBytes = def.PageCacheBytes
	}
	if c.Opener == nil {
		c.Opener = DocumentOpener{PageCache: cache.Config{
			MaxSize:  c.PageCacheSize,
			MaxBytes: c.PageCacheBytes,
		}}
	}
	if c.Logger == nil {
		c.Logger = logging.GetLogger()
	}
	return c
}
