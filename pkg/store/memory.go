package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lemonberrylabs/penknife/pkg/types"
)

// Memory is a thread-safe in-memory Store.
type Memory struct {
	mu        sync.RWMutex
	templates map[string]*Template
	renders   map[string][]*Render // by template, in creation order
}

// NewMemory creates a new empty store.
func NewMemory() *Memory {
	return &Memory{
		templates: make(map[string]*Template),
		renders:   make(map[string][]*Render),
	}
}

// CreateTemplate stores a new template.
func (s *Memory) CreateTemplate(id, source, description string) (*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.templates[id]; exists {
		return nil, fmt.Errorf("template '%s' %w", id, ErrAlreadyExists)
	}

	now := time.Now()
	tpl := &Template{
		Name:        id,
		Description: description,
		State:       TemplateActive,
		Revision:    1,
		RevisionID:  revisionID(1),
		CreateTime:  now,
		UpdateTime:  now,
		Source:      source,
	}
	s.templates[id] = tpl
	return copyTemplate(tpl), nil
}

// GetTemplate retrieves a template by name.
func (s *Memory) GetTemplate(id string) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tpl, ok := s.templates[id]
	if !ok {
		return nil, templateNotFound(id)
	}
	return copyTemplate(tpl), nil
}

// ListTemplates returns all templates ordered by name.
func (s *Memory) ListTemplates() ([]*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Template, 0, len(s.templates))
	for _, tpl := range s.templates {
		result = append(result, copyTemplate(tpl))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// UpdateTemplate replaces a template's source and starts a new revision. An
// empty description keeps the old one.
func (s *Memory) UpdateTemplate(id, source, description string) (*Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tpl, ok := s.templates[id]
	if !ok {
		return nil, templateNotFound(id)
	}

	tpl.Source = source
	if description != "" {
		tpl.Description = description
	}
	tpl.Revision++
	tpl.RevisionID = revisionID(tpl.Revision)
	tpl.UpdateTime = time.Now()

	return copyTemplate(tpl), nil
}

// DeleteTemplate removes a template and its renders.
func (s *Memory) DeleteTemplate(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[id]; !ok {
		return templateNotFound(id)
	}
	delete(s.templates, id)
	delete(s.renders, id)
	return nil
}

// CreateRender starts a render record against the template's current revision.
func (s *Memory) CreateRender(templateID string, data types.Value) (*Render, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tpl, ok := s.templates[templateID]
	if !ok {
		return nil, templateNotFound(templateID)
	}

	id := uuid.NewString()
	r := &Render{
		Name:               renderName(templateID, id),
		ID:                 id,
		Template:           templateID,
		State:              RenderActive,
		Data:               encodeData(data),
		StartTime:          time.Now(),
		TemplateRevisionID: tpl.RevisionID,
	}
	s.renders[templateID] = append(s.renders[templateID], r)
	return copyRender(r), nil
}

func (s *Memory) findRender(templateID, renderID string) (*Render, error) {
	for _, r := range s.renders[templateID] {
		if r.ID == renderID {
			return r, nil
		}
	}
	return nil, renderNotFound(templateID, renderID)
}

// GetRender retrieves a render of a template.
func (s *Memory) GetRender(templateID, renderID string) (*Render, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, err := s.findRender(templateID, renderID)
	if err != nil {
		return nil, err
	}
	return copyRender(r), nil
}

// ListRenders returns the renders of a template, oldest first.
func (s *Memory) ListRenders(templateID string) ([]*Render, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.templates[templateID]; !ok {
		return nil, templateNotFound(templateID)
	}
	result := make([]*Render, 0, len(s.renders[templateID]))
	for _, r := range s.renders[templateID] {
		result = append(result, copyRender(r))
	}
	return result, nil
}

// RecentRenders returns up to limit renders across all templates, newest first.
func (s *Memory) RecentRenders(limit int) ([]*Render, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*Render
	for _, list := range s.renders {
		for _, r := range list {
			all = append(all, copyRender(r))
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].StartTime.After(all[j].StartTime) })
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// CompleteRender marks a render as succeeded with its output.
func (s *Memory) CompleteRender(templateID, renderID, output string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.findRender(templateID, renderID)
	if err != nil {
		return err
	}
	r.State = RenderSucceeded
	r.Output = output
	r.EndTime = time.Now()
	return nil
}

// FailRender marks a render as failed.
func (s *Memory) FailRender(templateID, renderID string, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := s.findRender(templateID, renderID)
	if err != nil {
		return err
	}
	r.State = RenderFailed
	r.Error = renderError(cause)
	r.EndTime = time.Now()
	return nil
}

// Close is a no-op.
func (s *Memory) Close() error {
	return nil
}

func copyTemplate(t *Template) *Template {
	c := *t
	return &c
}

func copyRender(r *Render) *Render {
	c := *r
	if r.Error != nil {
		e := *r.Error
		c.Error = &e
	}
	return &c
}
