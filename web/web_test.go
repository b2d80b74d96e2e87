package web

import (
	"io"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/lemonberrylabs/penknife/pkg/api"
	"github.com/lemonberrylabs/penknife/pkg/store"
	"github.com/lemonberrylabs/penknife/pkg/types"
)

func setupTestApp(t *testing.T) (*fiber.App, *api.Renderer) {
	t.Helper()
	r, err := api.NewRenderer(store.NewMemory(), nil, nil)
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	h, err := New(r, "test", nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	app := fiber.New()
	h.Register(app)
	return app, r
}

func get(t *testing.T, app *fiber.App, path string) (int, string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", path, nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func postForm(t *testing.T, app *fiber.App, path string, form url.Values) (int, string) {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestDashboardEmpty(t *testing.T) {
	app, _ := setupTestApp(t)

	status, html := get(t, app, "/ui")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, html)
	}
	for _, want := range []string{
		"<h1>Dashboard</h1>",
		"<title>Dashboard - Penknife</title>",
		`<a href="/ui" class="active">Dashboard</a>`,
		"No templates stored.",
		"No renders yet.",
		"0 templates",
		"penknife test",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("expected %q in response", want)
		}
	}
	if strings.Contains(html, `<a href="/ui/playground" class="active">`) {
		t.Error("playground link should not be active")
	}
}

func TestDashboardWithData(t *testing.T) {
	app, r := setupTestApp(t)

	if _, err := r.Store().CreateTemplate("hello-world", "Hello {{name}}", "A <b>test</b> template"); err != nil {
		t.Fatalf("failed to create template: %v", err)
	}
	rec, err := r.RenderTemplate("hello-world", types.FromGo(map[string]interface{}{"name": "<i>bob</i>"}))
	if err != nil {
		t.Fatalf("RenderTemplate: %v", err)
	}

	status, html := get(t, app, "/ui")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	for _, want := range []string{
		`<a href="/ui/templates/hello-world">hello-world</a>`,
		"A &lt;b&gt;test&lt;/b&gt; template",
		"1 templates",
		"1 succeeded",
		rec.ID,
		"<code>Hello &lt;i&gt;bob&lt;/i&gt;</code>",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("expected %q in response", want)
		}
	}
	if strings.Contains(html, "No templates stored.") {
		t.Error("unexpected empty state")
	}
}

func TestTemplateDetail(t *testing.T) {
	app, r := setupTestApp(t)

	source := "{{?title}}<h1>{{title}}</h1>{{/?title}}\n{{broken"
	if _, err := r.Store().CreateTemplate("my-page", source, "Test desc"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.RenderTemplate("my-page", types.Null); err != nil {
		t.Fatal(err)
	}

	status, html := get(t, app, "/ui/templates/my-page")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, html)
	}
	for _, want := range []string{
		"<h1>my-page</h1>",
		"Test desc",
		"Revision 000001-000, 2 lines",
		"<pre>{{?title}}&lt;h1&gt;{{title}}&lt;/h1&gt;{{/?title}}\n{{broken</pre>",
		"Unterminated command on or after line 2",
		"state-failed",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("expected %q in response", want)
		}
	}
}

func TestTemplateNotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	status, html := get(t, app, "/ui/templates/nonexistent")
	if status != 404 {
		t.Fatalf("expected 404, got %d", status)
	}
	if !strings.Contains(html, "Not Found") || !strings.Contains(html, "Template &#39;nonexistent&#39; not found") {
		t.Errorf("expected not found message, got %s", html)
	}
}

func TestPlaygroundGet(t *testing.T) {
	app, _ := setupTestApp(t)

	status, html := get(t, app, "/ui/playground")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(html, "&lt;h1&gt;Hello {{name, world}}&lt;/h1&gt;") {
		t.Error("expected the sample template in the editor")
	}
	if !strings.Contains(html, `<a href="/ui/playground" class="active">Playground</a>`) {
		t.Error("expected the playground link to be active")
	}
	if strings.Contains(html, "<h2>Output</h2>") {
		t.Error("GET should not render output")
	}
}

func TestPlaygroundPost(t *testing.T) {
	app, _ := setupTestApp(t)

	status, html := postForm(t, app, "/ui/playground", url.Values{
		"template": {`<p>{{@items}}{{loop}} {{/@items}}</p><script>alert("x")</script>`},
		"data":     {`{"items": ["a", "b"]}`},
	})
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(html, "<pre>&lt;p&gt;a b &lt;/p&gt;&lt;script&gt;") {
		t.Error("expected escaped output")
	}
	if !strings.Contains(html, `<div class="preview"><p>a b </p></div>`) {
		t.Errorf("expected sanitized preview, got %s", html)
	}
	if strings.Contains(html, `<script>alert`) {
		t.Error("preview must not contain the script")
	}
}

func TestPlaygroundErrors(t *testing.T) {
	app, _ := setupTestApp(t)

	tests := []struct {
		name string
		form url.Values
		want string
	}{
		{"parse error", url.Values{"template": {"{{@items}}"}, "data": {"{}"}}, "Unterminated loop: @items starting on or after line 1"},
		{"bad json", url.Values{"template": {"x"}, "data": {"{nope"}}, "invalid data JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, html := postForm(t, app, "/ui/playground", tt.form)
			if status != 200 {
				t.Fatalf("expected 200, got %d", status)
			}
			if !strings.Contains(html, `<div class="error">`) || !strings.Contains(html, tt.want) {
				t.Errorf("expected error %q in response", tt.want)
			}
			if strings.Contains(html, "<h2>Output</h2>") {
				t.Error("no output expected on error")
			}
		})
	}
}

func TestRootRedirect(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 302 {
		t.Fatalf("expected 302 redirect, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/ui" {
		t.Fatalf("expected redirect to /ui, got %s", loc)
	}
}

func TestHelpers(t *testing.T) {
	if got := truncate("abcdef", 3); got != "abc..." {
		t.Errorf("truncate = %q", got)
	}
	if got := countLines("a\nb\nc"); got != 3 {
		t.Errorf("countLines = %d", got)
	}
	if got := countLines(""); got != 0 {
		t.Errorf("countLines empty = %d", got)
	}
	if got := stateClass(store.RenderFailed); got != "state-failed" {
		t.Errorf("stateClass = %q", got)
	}
}
