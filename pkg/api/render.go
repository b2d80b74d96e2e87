package api

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/lemonberrylabs/penknife/pkg/penknife"
	"github.com/lemonberrylabs/penknife/pkg/resolver"
	"github.com/lemonberrylabs/penknife/pkg/store"
	"github.com/lemonberrylabs/penknife/pkg/types"
)

// ValidTemplateID matches the IDs templates may be stored under.
var ValidTemplateID = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// templateExts are the file extensions LoadDir deploys.
var templateExts = map[string]bool{
	".html": true, ".htm": true, ".txt": true, ".tmpl": true, ".pk": true,
}

// Settings adjust a single ad-hoc render.
type Settings struct {
	Compress bool
	Markers  map[string]string
}

// Renderer formats ad-hoc and stored templates and records stored renders.
// It is shared by the REST, gRPC and web front ends.
type Renderer struct {
	store    store.Store
	engine   *penknife.Engine
	includes fs.FS
	logger   *slog.Logger
}

// NewRenderer creates a renderer over s. Includes are read from the
// includes filesystem; a nil filesystem disables them.
func NewRenderer(s store.Store, includes fs.FS, logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if includes == nil {
		includes = noIncludes{}
	}
	r := &Renderer{store: s, includes: includes, logger: logger}
	engine, err := r.newEngine(Settings{})
	if err != nil {
		return nil, err
	}
	r.engine = engine
	return r, nil
}

// Store returns the underlying template store.
func (r *Renderer) Store() store.Store {
	return r.store
}

func (r *Renderer) newEngine(settings Settings) (*penknife.Engine, error) {
	return penknife.New(
		penknife.WithIncludeFS(r.includes),
		penknife.WithLogger(r.logger),
		penknife.WithCompress(settings.Compress),
		penknife.WithMarkers(settings.Markers),
	)
}

// Format renders source against data. Marker names in settings that are not
// valid give a *types.SetupError.
func (r *Renderer) Format(source string, data types.Value, settings Settings) (string, error) {
	engine := r.engine
	if settings.Compress || len(settings.Markers) > 0 {
		var err error
		if engine, err = r.newEngine(settings); err != nil {
			return "", err
		}
	}
	return engine.Format(source, resolver.New(data, resolver.WithMarkers(engine.Markers())))
}

// Check validates source.
func (r *Renderer) Check(source string) error {
	return r.engine.Check(source)
}

// RenderTemplate renders a stored template and records the outcome. A
// template error is recorded in the returned render as FAILED; the error
// result is reserved for store failures such as an unknown template.
func (r *Renderer) RenderTemplate(id string, data types.Value) (*store.Render, error) {
	tpl, err := r.store.GetTemplate(id)
	if err != nil {
		return nil, err
	}
	rec, err := r.store.CreateRender(id, data)
	if err != nil {
		return nil, err
	}

	output, renderErr := r.engine.Format(tpl.Source, resolver.New(data, resolver.WithMarkers(r.engine.Markers())))
	if renderErr != nil {
		r.logger.Info("render failed", "template", id, "render", rec.ID, "error", renderErr)
		err = r.store.FailRender(id, rec.ID, renderErr)
	} else {
		r.logger.Debug("render succeeded", "template", id, "render", rec.ID, "bytes", len(output))
		err = r.store.CompleteRender(id, rec.ID, output)
	}
	if err != nil {
		return nil, err
	}
	return r.store.GetRender(id, rec.ID)
}

// LoadDir deploys every template file in dir. The lower-cased file name
// without extension becomes the template ID. Files that cannot be read,
// parsed or stored are logged and skipped.
func (r *Renderer) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading templates directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if !templateExts[strings.ToLower(ext)] {
			continue
		}

		base := strings.TrimSuffix(name, ext)
		id := strings.ToLower(base)
		if id != base {
			r.logger.Warn("lowercased template ID", "id", id, "file", name)
		}
		if !ValidTemplateID.MatchString(id) || len(id) > 128 {
			r.logger.Warn("skipping file with invalid template ID", "file", name, "id", id)
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			r.logger.Warn("could not read template", "file", name, "error", err)
			continue
		}
		if err := r.Check(string(data)); err != nil {
			r.logger.Warn("could not parse template", "file", name, "error", err)
			continue
		}
		if _, err := r.store.CreateTemplate(id, string(data), ""); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				_, err = r.store.UpdateTemplate(id, string(data), "")
			}
			if err != nil {
				r.logger.Warn("could not deploy template", "file", name, "error", err)
				continue
			}
		}
		loaded++
		r.logger.Info("loaded template", "id", id, "file", name)
	}

	r.logger.Info("loaded templates", "count", loaded, "dir", dir)
	return loaded, nil
}

// noIncludes is a filesystem with no files.
type noIncludes struct{}

func (noIncludes) Open(name string) (fs.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}
