// Package store provides storage for templates and their render history.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/lemonberrylabs/penknife/pkg/types"
)

// Sentinel errors, wrapped with the offending name.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// TemplateState represents the state of a stored template.
type TemplateState string

const (
	TemplateActive TemplateState = "ACTIVE"
)

// RenderState represents the outcome of a render.
type RenderState string

const (
	RenderActive    RenderState = "ACTIVE"
	RenderSucceeded RenderState = "SUCCEEDED"
	RenderFailed    RenderState = "FAILED"
)

// Template is a named template source.
type Template struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	State       TemplateState `json:"state"`
	Revision    int           `json:"-"`
	RevisionID  string        `json:"revisionId"`
	CreateTime  time.Time     `json:"createTime"`
	UpdateTime  time.Time     `json:"updateTime"`
	Source      string        `json:"source"`
}

// Render records one rendering of a stored template.
type Render struct {
	Name               string       `json:"name"`
	ID                 string       `json:"id"`
	Template           string       `json:"template"`
	State              RenderState  `json:"state"`
	Data               string       `json:"data,omitempty"`
	Output             string       `json:"output,omitempty"`
	Error              *RenderError `json:"error,omitempty"`
	StartTime          time.Time    `json:"startTime"`
	EndTime            time.Time    `json:"endTime,omitempty"`
	TemplateRevisionID string       `json:"templateRevisionId"`
}

// RenderError describes why a render failed.
type RenderError struct {
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// Store keeps templates and renders. Implementations are safe for concurrent
// use. Lists of templates are ordered by name, lists of renders by start time.
type Store interface {
	CreateTemplate(id, source, description string) (*Template, error)
	GetTemplate(id string) (*Template, error)
	ListTemplates() ([]*Template, error)
	UpdateTemplate(id, source, description string) (*Template, error)
	DeleteTemplate(id string) error

	CreateRender(templateID string, data types.Value) (*Render, error)
	GetRender(templateID, renderID string) (*Render, error)
	ListRenders(templateID string) ([]*Render, error)
	RecentRenders(limit int) ([]*Render, error)
	CompleteRender(templateID, renderID, output string) error
	FailRender(templateID, renderID string, err error) error

	Close() error
}

func revisionID(rev int) string {
	return fmt.Sprintf("%06d-000", rev)
}

func renderName(templateID, renderID string) string {
	return fmt.Sprintf("%s/renders/%s", templateID, renderID)
}

func templateNotFound(id string) error {
	return fmt.Errorf("template '%s' %w", id, ErrNotFound)
}

func renderNotFound(templateID, renderID string) error {
	return fmt.Errorf("render '%s' %w", renderName(templateID, renderID), ErrNotFound)
}

// encodeData stores render input as JSON. Null input is stored as "".
func encodeData(data types.Value) string {
	if data.IsNull() {
		return ""
	}
	b, _ := data.MarshalJSON()
	return string(b)
}

// renderError converts a failure into its stored form, keeping the line of
// template parse errors.
func renderError(err error) *RenderError {
	re := &RenderError{Message: err.Error()}
	var pe *types.ParseError
	if errors.As(err, &pe) {
		re.Line = pe.Line
	}
	return re
}
