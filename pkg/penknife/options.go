package penknife

import (
	"io/fs"
	"log/slog"
)

// Option configures an Engine.
type Option func(*Engine) error

// WithCompress trims whitespace from literal text between commands.
func WithCompress(compress bool) Option {
	return func(e *Engine) error {
		e.compress = compress
		return nil
	}
}

// WithIncludeRoot sets the directory include paths are joined to.
func WithIncludeRoot(dir string) Option {
	return func(e *Engine) error {
		e.includeRoot = dir
		return nil
	}
}

// WithIncludeFS reads included files from fsys instead of the OS filesystem.
func WithIncludeFS(fsys fs.FS) Option {
	return func(e *Engine) error {
		e.includeFS = fsys
		return nil
	}
}

// WithMarkers overrides markers by name.
func WithMarkers(markers map[string]string) Option {
	return func(e *Engine) error {
		return e.markers.Apply(markers)
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger != nil {
			e.logger = logger
		}
		return nil
	}
}
