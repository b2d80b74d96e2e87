// Package web provides the embedded web UI. Its pages are Penknife templates
// that share a layout through include directives.
package web

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/microcosm-cc/bluemonday"

	"github.com/lemonberrylabs/penknife/pkg/api"
	"github.com/lemonberrylabs/penknife/pkg/penknife"
	"github.com/lemonberrylabs/penknife/pkg/resolver"
	"github.com/lemonberrylabs/penknife/pkg/store"
	"github.com/lemonberrylabs/penknife/pkg/types"
)

//go:embed templates/*.html
var templateFS embed.FS

// recentRenders is how many renders the dashboard lists.
const recentRenders = 10

// Handler serves the web UI pages.
type Handler struct {
	renderer *api.Renderer
	pages    fs.FS
	engine   *penknife.Engine
	policy   *bluemonday.Policy
	version  string
	logger   *slog.Logger
}

// New creates a new web UI handler.
func New(r *api.Renderer, version string, logger *slog.Logger) (*Handler, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pages, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, err
	}
	engine, err := penknife.New(penknife.WithIncludeFS(pages), penknife.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return &Handler{
		renderer: r,
		pages:    pages,
		engine:   engine,
		policy:   bluemonday.UGCPolicy(),
		version:  version,
		logger:   logger,
	}, nil
}

// Register adds web UI routes to the Fiber app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/ui", h.dashboard)
	app.Get("/ui/templates/:id", h.templateDetail)
	app.Get("/ui/playground", h.playground)
	app.Post("/ui/playground", h.playground)

	// Redirect root to UI
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/ui")
	})
}

// render formats a page. Page values are HTML-escaped; values in raw are
// inserted as they are and must already be safe.
func (h *Handler) render(c *fiber.Ctx, page, navActive string, data map[string]interface{}, raw map[string]interface{}) error {
	src, err := fs.ReadFile(h.pages, page)
	if err != nil {
		return c.Status(500).SendString(fmt.Sprintf("template error: %v", err))
	}

	data["version"] = h.version
	data["nav"] = map[string]interface{}{navActive: true}

	r := resolver.HTMLEscape(resolver.FromMap(data))
	if raw != nil {
		r = resolver.Chain(resolver.FromMap(raw), r)
	}
	out, err := h.engine.Format(string(src), r)
	if err != nil {
		h.logger.Error("page render failed", "page", page, "error", err)
		return c.Status(500).SendString(fmt.Sprintf("template error: %v", err))
	}

	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.SendString(out)
}

// --- Page Data Types ---

type templateView struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	RevisionID  string `json:"revisionId"`
	Updated     string `json:"updated"`
	Lines       int    `json:"lines"`
}

type renderView struct {
	ID         string `json:"id"`
	Template   string `json:"template"`
	State      string `json:"state"`
	StateClass string `json:"stateClass"`
	StateIcon  string `json:"stateIcon"`
	Started    string `json:"started"`
	Duration   string `json:"duration"`
	Output     string `json:"output"`
	Error      string `json:"error"`
	Revision   string `json:"revision"`
}

func newTemplateView(tpl *store.Template) templateView {
	return templateView{
		ID:          tpl.Name,
		Description: tpl.Description,
		RevisionID:  tpl.RevisionID,
		Updated:     timeAgo(tpl.UpdateTime),
		Lines:       countLines(tpl.Source),
	}
}

func newRenderView(rec *store.Render) renderView {
	v := renderView{
		ID:         rec.ID,
		Template:   rec.Template,
		State:      string(rec.State),
		StateClass: stateClass(rec.State),
		StateIcon:  stateIcon(rec.State),
		Started:    formatTime(rec.StartTime),
		Duration:   duration(rec.StartTime, rec.EndTime),
		Output:     truncate(rec.Output, 200),
		Revision:   rec.TemplateRevisionID,
	}
	if rec.Error != nil {
		v.Error = rec.Error.Message
	}
	return v
}

// --- Page Handlers ---

func (h *Handler) dashboard(c *fiber.Ctx) error {
	st := h.renderer.Store()
	templates, err := st.ListTemplates()
	if err != nil {
		return h.storeFailure(c, err)
	}
	recent, err := st.RecentRenders(recentRenders)
	if err != nil {
		return h.storeFailure(c, err)
	}

	tplViews := make([]templateView, len(templates))
	for i, tpl := range templates {
		tplViews[i] = newTemplateView(tpl)
	}

	var succeeded, failed int
	renderViews := make([]renderView, len(recent))
	for i, rec := range recent {
		renderViews[i] = newRenderView(rec)
		switch rec.State {
		case store.RenderSucceeded:
			succeeded++
		case store.RenderFailed:
			failed++
		}
	}

	return h.render(c, "dashboard.html", "dashboard", map[string]interface{}{
		"pageTitle": "Dashboard",
		"templates": tplViews,
		"renders":   renderViews,
		"stats": map[string]interface{}{
			"templates": len(templates),
			"succeeded": succeeded,
			"failed":    failed,
		},
	}, nil)
}

func (h *Handler) templateDetail(c *fiber.Ctx) error {
	id := c.Params("id")
	st := h.renderer.Store()

	tpl, err := st.GetTemplate(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return h.notFound(c, fmt.Sprintf("Template '%s' not found", id))
		}
		return h.storeFailure(c, err)
	}
	renders, err := st.ListRenders(id)
	if err != nil {
		return h.storeFailure(c, err)
	}

	views := make([]renderView, len(renders))
	for i, rec := range renders {
		// newest first
		views[len(renders)-1-i] = newRenderView(rec)
	}

	return h.render(c, "template.html", "dashboard", map[string]interface{}{
		"pageTitle": tpl.Name,
		"template":  newTemplateView(tpl),
		"source":    tpl.Source,
		"renders":   views,
	}, nil)
}

func (h *Handler) playground(c *fiber.Ctx) error {
	source := c.FormValue("template", "<h1>Hello {{name, world}}</h1>\n{{@items}}<p>{{loop.#.1}}. {{loop}}</p>{{/@items}}")
	dataText := c.FormValue("data", `{"name": "Penknife", "items": ["segment", "parse", "execute"]}`)

	page := map[string]interface{}{
		"pageTitle": "Playground",
		"source":    source,
		"dataText":  dataText,
	}
	var raw map[string]interface{}

	if c.Method() == fiber.MethodPost {
		output, err := h.playgroundRender(source, dataText)
		if err != nil {
			page["error"] = err.Error()
		} else {
			page["output"] = output
			page["rendered"] = true
			raw = map[string]interface{}{"preview": h.policy.Sanitize(output)}
		}
	}

	return h.render(c, "playground.html", "playground", page, raw)
}

func (h *Handler) playgroundRender(source, dataText string) (string, error) {
	data := types.Null
	if strings.TrimSpace(dataText) != "" {
		v, err := types.ParseJSON([]byte(dataText))
		if err != nil {
			return "", fmt.Errorf("invalid data JSON: %w", err)
		}
		data = v
	}
	return h.renderer.Format(source, data, api.Settings{})
}

func (h *Handler) notFound(c *fiber.Ctx, message string) error {
	c.Status(fiber.StatusNotFound)
	return h.render(c, "not_found.html", "", map[string]interface{}{
		"pageTitle": "Not Found",
		"message":   message,
	}, nil)
}

func (h *Handler) storeFailure(c *fiber.Ctx, err error) error {
	h.logger.Error("store failure", "path", c.Path(), "error", err)
	return c.Status(500).SendString(fmt.Sprintf("store error: %v", err))
}

// --- Template Helpers ---

func timeAgo(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		m := int(d.Minutes())
		if m == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", m)
	case d < 24*time.Hour:
		h := int(d.Hours())
		if h == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", h)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func duration(start, end time.Time) string {
	if end.IsZero() {
		return "running"
	}
	return formatDuration(end.Sub(start))
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func stateClass(state store.RenderState) string {
	switch state {
	case store.RenderActive:
		return "state-active"
	case store.RenderSucceeded:
		return "state-succeeded"
	case store.RenderFailed:
		return "state-failed"
	default:
		return ""
	}
}

// stateIcon returns a plain-text symbol; page values are escaped.
func stateIcon(state store.RenderState) string {
	switch state {
	case store.RenderActive:
		return "▶"
	case store.RenderSucceeded:
		return "✓"
	case store.RenderFailed:
		return "✗"
	default:
		return "•"
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}
