// Package api implements the REST API for rendering and storing Penknife
// templates.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lemonberrylabs/penknife/pkg/store"
	"github.com/lemonberrylabs/penknife/pkg/types"
)

// Server is the REST API server.
type Server struct {
	app      *fiber.App
	renderer *Renderer
	logger   *slog.Logger
}

// New creates a new API server.
func New(r *Renderer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	srv := &Server{renderer: r, logger: logger}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	// Ad-hoc rendering
	app.Post("/v1/render", srv.render)

	// Templates API
	app.Post("/v1/templates", srv.createTemplate)
	app.Get("/v1/templates", srv.listTemplates)
	app.Get("/v1/templates/:template", srv.getTemplate)
	app.Patch("/v1/templates/:template", srv.updateTemplate)
	app.Delete("/v1/templates/:template", srv.deleteTemplate)

	// Renders API
	app.Post("/v1/templates/:template/renders", srv.createRender)
	app.Get("/v1/templates/:template/renders", srv.listRenders)
	app.Get("/v1/templates/:template/renders/:render", srv.getRender)

	srv.app = app
	return srv
}

// Listen starts the HTTP server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

// Renderer returns the renderer behind the API.
func (s *Server) Renderer() *Renderer {
	return s.renderer
}

// LoadDir deploys the template files in dir. See Renderer.LoadDir.
func (s *Server) LoadDir(dir string) error {
	_, err := s.renderer.LoadDir(dir)
	return err
}

// --- Render Handlers ---

type renderRequest struct {
	Template string            `json:"template"`
	Data     types.Value       `json:"data"`
	Compress bool              `json:"compress"`
	Markers  map[string]string `json:"markers"`
}

func (s *Server) render(c *fiber.Ctx) error {
	var req renderRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}

	output, err := s.renderer.Format(req.Template, req.Data, Settings{
		Compress: req.Compress,
		Markers:  req.Markers,
	})
	if err != nil {
		return templateError(c, err)
	}
	return c.JSON(fiber.Map{"output": output})
}

// --- Template Handlers ---

type templateRequest struct {
	Source      string `json:"source"`
	Description string `json:"description"`
}

func (s *Server) createTemplate(c *fiber.Ctx) error {
	id := c.Query("templateId")
	if id == "" {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", "templateId query parameter is required")
	}
	if !ValidTemplateID.MatchString(id) || len(id) > 128 {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid templateId %q", id))
	}

	var req templateRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}
	if req.Source == "" {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", "source is required")
	}
	if err := s.renderer.Check(req.Source); err != nil {
		return templateError(c, err)
	}

	tpl, err := s.renderer.Store().CreateTemplate(id, req.Source, req.Description)
	if err != nil {
		return storeError(c, err)
	}
	s.logger.Info("created template", "id", id, "revision", tpl.RevisionID)
	return c.JSON(templateToJSON(tpl))
}

func (s *Server) getTemplate(c *fiber.Ctx) error {
	tpl, err := s.renderer.Store().GetTemplate(c.Params("template"))
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(templateToJSON(tpl))
}

func (s *Server) listTemplates(c *fiber.Ctx) error {
	templates, err := s.renderer.Store().ListTemplates()
	if err != nil {
		return storeError(c, err)
	}

	items := make([]fiber.Map, len(templates))
	for i, tpl := range templates {
		items[i] = templateToJSON(tpl)
	}
	return c.JSON(fiber.Map{"templates": items})
}

func (s *Server) updateTemplate(c *fiber.Ctx) error {
	id := c.Params("template")

	var req templateRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}

	st := s.renderer.Store()
	source := req.Source
	if source == "" {
		current, err := st.GetTemplate(id)
		if err != nil {
			return storeError(c, err)
		}
		source = current.Source
	} else if err := s.renderer.Check(source); err != nil {
		return templateError(c, err)
	}

	tpl, err := st.UpdateTemplate(id, source, req.Description)
	if err != nil {
		return storeError(c, err)
	}
	s.logger.Info("updated template", "id", id, "revision", tpl.RevisionID)
	return c.JSON(templateToJSON(tpl))
}

func (s *Server) deleteTemplate(c *fiber.Ctx) error {
	id := c.Params("template")
	if err := s.renderer.Store().DeleteTemplate(id); err != nil {
		return storeError(c, err)
	}
	s.logger.Info("deleted template", "id", id)
	return c.JSON(fiber.Map{"name": id, "deleted": true})
}

// --- Render Record Handlers ---

type createRenderRequest struct {
	Data types.Value `json:"data"`
}

func (s *Server) createRender(c *fiber.Ctx) error {
	var req createRenderRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}

	rec, err := s.renderer.RenderTemplate(c.Params("template"), req.Data)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(renderToJSON(rec))
}

func (s *Server) getRender(c *fiber.Ctx) error {
	rec, err := s.renderer.Store().GetRender(c.Params("template"), c.Params("render"))
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(renderToJSON(rec))
}

func (s *Server) listRenders(c *fiber.Ctx) error {
	renders, err := s.renderer.Store().ListRenders(c.Params("template"))
	if err != nil {
		return storeError(c, err)
	}

	items := make([]fiber.Map, len(renders))
	for i, rec := range renders {
		items[i] = renderToJSON(rec)
	}
	return c.JSON(fiber.Map{"renders": items})
}

// --- Helpers ---

func apiError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    status,
			"message": message,
			"status":  code,
		},
	})
}

// templateError reports a template or marker problem as INVALID_ARGUMENT.
func templateError(c *fiber.Ctx, err error) error {
	var pe *types.ParseError
	if errors.As(err, &pe) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    fiber.StatusBadRequest,
				"message": pe.Message,
				"status":  "INVALID_ARGUMENT",
				"line":    pe.Line,
			},
		})
	}
	var se *types.SetupError
	if errors.As(err, &se) {
		return apiError(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", se.Error())
	}
	return apiError(c, fiber.StatusInternalServerError, "INTERNAL", err.Error())
}

func storeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apiError(c, fiber.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, store.ErrAlreadyExists):
		return apiError(c, fiber.StatusConflict, "ALREADY_EXISTS", err.Error())
	default:
		return apiError(c, fiber.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

func templateToJSON(tpl *store.Template) fiber.Map {
	return fiber.Map{
		"name":        tpl.Name,
		"description": tpl.Description,
		"state":       tpl.State,
		"revisionId":  tpl.RevisionID,
		"createTime":  tpl.CreateTime.Format(time.RFC3339),
		"updateTime":  tpl.UpdateTime.Format(time.RFC3339),
		"source":      tpl.Source,
	}
}

func renderToJSON(rec *store.Render) fiber.Map {
	result := fiber.Map{
		"name":               rec.Name,
		"id":                 rec.ID,
		"template":           rec.Template,
		"state":              rec.State,
		"startTime":          rec.StartTime.Format(time.RFC3339),
		"templateRevisionId": rec.TemplateRevisionID,
	}

	if rec.Data != "" {
		result["data"] = rec.Data
	}
	if rec.State == store.RenderSucceeded {
		result["output"] = rec.Output
	}
	if rec.Error != nil {
		result["error"] = fiber.Map{
			"message": rec.Error.Message,
			"line":    rec.Error.Line,
		}
	}
	if !rec.EndTime.IsZero() {
		result["endTime"] = rec.EndTime.Format(time.RFC3339)
	}

	return result
}
