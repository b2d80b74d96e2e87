package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lemonberrylabs/penknife/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS templates (
    name TEXT PRIMARY KEY,
    description TEXT NOT NULL DEFAULT '',
    state TEXT NOT NULL,
    revision INTEGER NOT NULL,
    create_time INTEGER NOT NULL,
    update_time INTEGER NOT NULL,
    source TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS renders (
    id TEXT PRIMARY KEY,
    template TEXT NOT NULL,
    state TEXT NOT NULL,
    data TEXT NOT NULL DEFAULT '',
    output TEXT NOT NULL DEFAULT '',
    error_message TEXT,
    error_line INTEGER NOT NULL DEFAULT 0,
    start_time INTEGER NOT NULL,
    end_time INTEGER NOT NULL DEFAULT 0,
    template_revision TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS renders_by_template ON renders (template, start_time);
`

const renderColumns = `id, template, state, data, output, error_message, error_line, start_time, end_time, template_revision`

// SQLite is a Store backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at dataSource.
func OpenSQLite(dataSource string) (*SQLite, error) {
	db, err := openDB(dataSource)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	// One connection serializes writers and keeps ":memory:" databases whole.
	db.SetMaxOpenConns(1)
	s, err := NewSQLite(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLite wraps an open database and creates the schema. It is safe to call
// on an already-initialized database.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			return nil, fmt.Errorf("could not create schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("could not commit transaction: %w", err)
	}
	return &SQLite{db: db}, nil
}

// CreateTemplate stores a new template.
func (s *SQLite) CreateTemplate(id, source, description string) (*Template, error) {
	now := time.Now()
	res, err := s.db.Exec(`INSERT OR IGNORE INTO templates
		(name, description, state, revision, create_time, update_time, source)
		VALUES (?, ?, ?, 1, ?, ?, ?)`,
		id, description, string(TemplateActive), now.UnixNano(), now.UnixNano(), source)
	if err != nil {
		return nil, fmt.Errorf("could not insert template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("template '%s' %w", id, ErrAlreadyExists)
	}
	return s.GetTemplate(id)
}

// GetTemplate retrieves a template by name.
func (s *SQLite) GetTemplate(id string) (*Template, error) {
	row := s.db.QueryRow(`SELECT name, description, state, revision, create_time, update_time, source
		FROM templates WHERE name = ?`, id)
	tpl, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, templateNotFound(id)
	}
	return tpl, err
}

// ListTemplates returns all templates ordered by name.
func (s *SQLite) ListTemplates() ([]*Template, error) {
	rows, err := s.db.Query(`SELECT name, description, state, revision, create_time, update_time, source
		FROM templates ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("could not list templates: %w", err)
	}
	defer rows.Close()

	result := []*Template{}
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tpl)
	}
	return result, rows.Err()
}

// UpdateTemplate replaces a template's source and starts a new revision. An
// empty description keeps the old one.
func (s *SQLite) UpdateTemplate(id, source, description string) (*Template, error) {
	res, err := s.db.Exec(`UPDATE templates SET
		source = ?,
		description = CASE WHEN ? = '' THEN description ELSE ? END,
		revision = revision + 1,
		update_time = ?
		WHERE name = ?`,
		source, description, description, time.Now().UnixNano(), id)
	if err != nil {
		return nil, fmt.Errorf("could not update template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, templateNotFound(id)
	}
	return s.GetTemplate(id)
}

// DeleteTemplate removes a template and its renders.
func (s *SQLite) DeleteTemplate(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	res, err := tx.Exec(`DELETE FROM templates WHERE name = ?`, id)
	if err != nil {
		return fmt.Errorf("could not delete template: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return templateNotFound(id)
	}
	if _, err := tx.Exec(`DELETE FROM renders WHERE template = ?`, id); err != nil {
		return fmt.Errorf("could not delete renders: %w", err)
	}
	return tx.Commit()
}

// CreateRender starts a render record against the template's current revision.
func (s *SQLite) CreateRender(templateID string, data types.Value) (*Render, error) {
	tpl, err := s.GetTemplate(templateID)
	if err != nil {
		return nil, err
	}
	r := &Render{
		ID:                 uuid.NewString(),
		Template:           templateID,
		State:              RenderActive,
		Data:               encodeData(data),
		StartTime:          time.Now(),
		TemplateRevisionID: tpl.RevisionID,
	}
	r.Name = renderName(templateID, r.ID)

	_, err = s.db.Exec(`INSERT INTO renders (id, template, state, data, start_time, template_revision)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Template, string(r.State), r.Data, r.StartTime.UnixNano(), r.TemplateRevisionID)
	if err != nil {
		return nil, fmt.Errorf("could not insert render: %w", err)
	}
	return r, nil
}

// GetRender retrieves a render of a template.
func (s *SQLite) GetRender(templateID, renderID string) (*Render, error) {
	row := s.db.QueryRow(`SELECT `+renderColumns+` FROM renders WHERE template = ? AND id = ?`,
		templateID, renderID)
	r, err := scanRender(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, renderNotFound(templateID, renderID)
	}
	return r, err
}

// ListRenders returns the renders of a template, oldest first.
func (s *SQLite) ListRenders(templateID string) ([]*Render, error) {
	if _, err := s.GetTemplate(templateID); err != nil {
		return nil, err
	}
	return s.queryRenders(`SELECT `+renderColumns+` FROM renders WHERE template = ?
		ORDER BY start_time, rowid`, templateID)
}

// RecentRenders returns up to limit renders across all templates, newest first.
func (s *SQLite) RecentRenders(limit int) ([]*Render, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryRenders(`SELECT `+renderColumns+` FROM renders
		ORDER BY start_time DESC, rowid DESC LIMIT ?`, limit)
}

func (s *SQLite) queryRenders(query string, args ...interface{}) ([]*Render, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not list renders: %w", err)
	}
	defer rows.Close()

	result := []*Render{}
	for rows.Next() {
		r, err := scanRender(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// CompleteRender marks a render as succeeded with its output.
func (s *SQLite) CompleteRender(templateID, renderID, output string) error {
	res, err := s.db.Exec(`UPDATE renders SET state = ?, output = ?, end_time = ?
		WHERE template = ? AND id = ?`,
		string(RenderSucceeded), output, time.Now().UnixNano(), templateID, renderID)
	if err != nil {
		return fmt.Errorf("could not update render: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return renderNotFound(templateID, renderID)
	}
	return nil
}

// FailRender marks a render as failed.
func (s *SQLite) FailRender(templateID, renderID string, cause error) error {
	re := renderError(cause)
	res, err := s.db.Exec(`UPDATE renders SET state = ?, error_message = ?, error_line = ?, end_time = ?
		WHERE template = ? AND id = ?`,
		string(RenderFailed), re.Message, re.Line, time.Now().UnixNano(), templateID, renderID)
	if err != nil {
		return fmt.Errorf("could not update render: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return renderNotFound(templateID, renderID)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row scanner) (*Template, error) {
	var (
		tpl                    Template
		state                  string
		createTime, updateTime int64
	)
	if err := row.Scan(&tpl.Name, &tpl.Description, &state, &tpl.Revision,
		&createTime, &updateTime, &tpl.Source); err != nil {
		return nil, err
	}
	tpl.State = TemplateState(state)
	tpl.RevisionID = revisionID(tpl.Revision)
	tpl.CreateTime = time.Unix(0, createTime)
	tpl.UpdateTime = time.Unix(0, updateTime)
	return &tpl, nil
}

func scanRender(row scanner) (*Render, error) {
	var (
		r                  Render
		state              string
		errMessage         sql.NullString
		errLine            int
		startTime, endTime int64
	)
	if err := row.Scan(&r.ID, &r.Template, &state, &r.Data, &r.Output, &errMessage, &errLine,
		&startTime, &endTime, &r.TemplateRevisionID); err != nil {
		return nil, err
	}
	r.Name = renderName(r.Template, r.ID)
	r.State = RenderState(state)
	if errMessage.Valid {
		r.Error = &RenderError{Message: errMessage.String, Line: errLine}
	}
	r.StartTime = time.Unix(0, startTime)
	if endTime != 0 {
		r.EndTime = time.Unix(0, endTime)
	}
	return &r, nil
}
