package api

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/lemonberrylabs/penknife/pkg/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	includes := fstest.MapFS{
		"header.html": {Data: []byte("<h1>{{title}}</h1>")},
	}
	r, err := NewRenderer(store.NewMemory(), includes, nil)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	return New(r, nil)
}

// do sends a request and decodes the JSON response.
func do(t *testing.T, srv *Server, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("%s %s: invalid JSON %q: %v", method, path, raw, err)
	}
	return resp.StatusCode, out
}

func errorStatus(t *testing.T, body map[string]interface{}) string {
	t.Helper()
	e, ok := body["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error body, got %v", body)
	}
	return e["status"].(string)
}

func TestRenderEndpoint(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "simple",
			body: `{"template": "Hello {{name}}!", "data": {"name": "bob"}}`,
			want: "Hello bob!",
		},
		{
			name: "loop keeps data order",
			body: `{"template": "{{@links}}{{loop.#}}={{loop}};{{/@links}}", "data": {"links": {"z": "1", "a": "2"}}}`,
			want: "z=1;a=2;",
		},
		{
			name: "include",
			body: `{"template": "{{:include header.html}}", "data": {"title": "Stats"}}`,
			want: "<h1>Stats</h1>",
		},
		{
			name: "compress",
			body: `{"template": "  <p>\n {{x}} \n</p>  ", "data": {"x": "y"}, "compress": true}`,
			want: "<p>y</p>",
		},
		{
			name: "markers",
			body: `{"template": "<%name%>", "data": {"name": "bob"}, "markers": {"open": "<%", "close": "%>"}}`,
			want: "bob",
		},
		{
			name: "no data",
			body: `{"template": "[{{name, anon}}]"}`,
			want: "[anon]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, srv, "POST", "/v1/render", tt.body)
			if status != 200 {
				t.Fatalf("status %d: %v", status, body)
			}
			if body["output"] != tt.want {
				t.Errorf("output = %q, want %q", body["output"], tt.want)
			}
		})
	}
}

func TestRenderEndpointErrors(t *testing.T) {
	srv := newTestServer(t)

	status, body := do(t, srv, "POST", "/v1/render", `{"template": "a\n{{?x}}"}`)
	if status != 400 || errorStatus(t, body) != "INVALID_ARGUMENT" {
		t.Fatalf("got %d %v", status, body)
	}
	if line := body["error"].(map[string]interface{})["line"]; line != float64(2) {
		t.Errorf("line = %v, want 2", line)
	}

	status, body = do(t, srv, "POST", "/v1/render", `{"template": "x", "markers": {"bogus": "x"}}`)
	if status != 400 || !strings.Contains(body["error"].(map[string]interface{})["message"].(string), "not a valid token name") {
		t.Errorf("got %d %v", status, body)
	}

	status, body = do(t, srv, "POST", "/v1/render", `{"template": "{{:include ../secret}}"}`)
	if status != 400 {
		t.Errorf("escaping include: got %d %v", status, body)
	}

	status, _ = do(t, srv, "POST", "/v1/render", `{not json`)
	if status != 400 {
		t.Errorf("bad body: got %d", status)
	}
}

func TestTemplateCRUD(t *testing.T) {
	srv := newTestServer(t)

	status, body := do(t, srv, "POST", "/v1/templates?templateId=page", `{"source": "<p>{{title}}</p>", "description": "a page"}`)
	if status != 200 {
		t.Fatalf("create: %d %v", status, body)
	}
	if body["name"] != "page" || body["revisionId"] != "000001-000" || body["state"] != "ACTIVE" {
		t.Errorf("unexpected template %v", body)
	}

	status, body = do(t, srv, "POST", "/v1/templates?templateId=page", `{"source": "x"}`)
	if status != 409 || errorStatus(t, body) != "ALREADY_EXISTS" {
		t.Errorf("duplicate: %d %v", status, body)
	}

	status, body = do(t, srv, "GET", "/v1/templates/page", "")
	if status != 200 || body["source"] != "<p>{{title}}</p>" {
		t.Errorf("get: %d %v", status, body)
	}

	status, body = do(t, srv, "PATCH", "/v1/templates/page", `{"description": "renamed"}`)
	if status != 200 || body["revisionId"] != "000002-000" || body["source"] != "<p>{{title}}</p>" || body["description"] != "renamed" {
		t.Errorf("patch: %d %v", status, body)
	}

	status, body = do(t, srv, "PATCH", "/v1/templates/page", `{"source": "{{@x}}"}`)
	if status != 400 {
		t.Errorf("patch invalid source: %d %v", status, body)
	}

	status, body = do(t, srv, "GET", "/v1/templates", "")
	if status != 200 || len(body["templates"].([]interface{})) != 1 {
		t.Errorf("list: %d %v", status, body)
	}

	status, _ = do(t, srv, "DELETE", "/v1/templates/page", "")
	if status != 200 {
		t.Errorf("delete: %d", status)
	}
	status, body = do(t, srv, "GET", "/v1/templates/page", "")
	if status != 404 || errorStatus(t, body) != "NOT_FOUND" {
		t.Errorf("get after delete: %d %v", status, body)
	}
}

func TestCreateTemplateValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"missing id", "/v1/templates", `{"source": "x"}`},
		{"invalid id", "/v1/templates?templateId=Bad!", `{"source": "x"}`},
		{"missing source", "/v1/templates?templateId=page", `{}`},
		{"parse error", "/v1/templates?templateId=page", `{"source": "{{?x}}"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := do(t, srv, "POST", tt.path, tt.body)
			if status != 400 || errorStatus(t, body) != "INVALID_ARGUMENT" {
				t.Errorf("got %d %v", status, body)
			}
		})
	}
}

func TestStoredRenders(t *testing.T) {
	srv := newTestServer(t)
	if status, body := do(t, srv, "POST", "/v1/templates?templateId=page", `{"source": "{{:include header.html}}{{?n}}n={{n}}{{/?n}}"}`); status != 200 {
		t.Fatalf("create: %d %v", status, body)
	}

	status, body := do(t, srv, "POST", "/v1/templates/page/renders", `{"data": {"title": "T", "n": 3}}`)
	if status != 200 {
		t.Fatalf("render: %d %v", status, body)
	}
	if body["state"] != "SUCCEEDED" || body["output"] != "<h1>T</h1>n=3" {
		t.Errorf("unexpected render %v", body)
	}
	id := body["id"].(string)

	status, body = do(t, srv, "GET", "/v1/templates/page/renders/"+id, "")
	if status != 200 || body["output"] != "<h1>T</h1>n=3" || body["data"] != `{"title":"T","n":"3"}` {
		t.Errorf("get render: %d %v", status, body)
	}

	status, body = do(t, srv, "POST", "/v1/templates/page/renders", "")
	if status != 200 || body["output"] != "<h1></h1>" {
		t.Errorf("render without body: %d %v", status, body)
	}

	status, body = do(t, srv, "GET", "/v1/templates/page/renders", "")
	if status != 200 || len(body["renders"].([]interface{})) != 2 {
		t.Errorf("list renders: %d %v", status, body)
	}

	status, body = do(t, srv, "POST", "/v1/templates/nope/renders", `{}`)
	if status != 404 || errorStatus(t, body) != "NOT_FOUND" {
		t.Errorf("unknown template: %d %v", status, body)
	}
	status, _ = do(t, srv, "GET", "/v1/templates/page/renders/nope", "")
	if status != 404 {
		t.Errorf("unknown render: %d", status)
	}
}

func TestFailedRenderIsRecorded(t *testing.T) {
	srv := newTestServer(t)
	// Stored directly: the API would reject it on write.
	if _, err := srv.Renderer().Store().CreateTemplate("broken", "{{:include missing.html}}", ""); err != nil {
		t.Fatal(err)
	}

	status, body := do(t, srv, "POST", "/v1/templates/broken/renders", `{}`)
	if status != 200 {
		t.Fatalf("render: %d %v", status, body)
	}
	if body["state"] != "FAILED" {
		t.Fatalf("state = %v", body["state"])
	}
	msg := body["error"].(map[string]interface{})["message"].(string)
	if !strings.Contains(msg, "Can't open missing.html for inclusion.") {
		t.Errorf("error message %q", msg)
	}
	if _, ok := body["output"]; ok {
		t.Error("failed render should have no output")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"Page.html":   "<p>{{title}}</p>",
		"plain.txt":   "hello",
		"broken.tmpl": "{{oops",
		"data.json":   "{}",
		"9bad.html":   "x",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	srv := newTestServer(t)
	if err := srv.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}

	list, err := srv.Renderer().Store().ListTemplates()
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, tpl := range list {
		names = append(names, tpl.Name)
	}
	if strings.Join(names, ",") != "page,plain" {
		t.Errorf("loaded %v, want [page plain]", names)
	}

	// Loading again updates instead of failing.
	n, err := srv.Renderer().LoadDir(dir)
	if err != nil || n != 2 {
		t.Errorf("reload: %d, %v", n, err)
	}
	tpl, _ := srv.Renderer().Store().GetTemplate("page")
	if tpl.RevisionID != "000002-000" {
		t.Errorf("revision after reload = %s", tpl.RevisionID)
	}

	if err := srv.LoadDir(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}
