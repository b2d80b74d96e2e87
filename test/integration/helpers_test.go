package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// These tests run against a live penknife server:
//
//	penknife serve --templates-dir=./templates
//	PENKNIFE_URL=http://localhost:8787 go test ./test/integration/...
//
// The whole package is skipped when no server answers.

// testServer holds the base URL of a running penknife instance for tests.
var testServer string

func init() {
	testServer = os.Getenv("PENKNIFE_URL")
	if testServer == "" {
		testServer = "http://localhost:8787"
	}
	// Ensure the URL has a scheme.
	if !strings.HasPrefix(testServer, "http://") && !strings.HasPrefix(testServer, "https://") {
		testServer = "http://" + testServer
	}
}

func TestMain(m *testing.M) {
	client := http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(apiURL("templates"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "integration: no penknife server at %s, skipping: %v\n", testServer, err)
		os.Exit(0)
	}
	resp.Body.Close()
	os.Exit(m.Run())
}

// apiURL builds a full URL for the given API path.
func apiURL(path string) string {
	return strings.TrimRight(testServer, "/") + "/v1/" + path
}

// doJSON sends a request with an optional JSON body and decodes the JSON
// response into a map.
func doJSON(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, apiURL(path), reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s HTTP error: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var result map[string]interface{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			t.Fatalf("%s %s: decode error: %v (body %s)", method, path, err, raw)
		}
	}
	return resp.StatusCode, result
}

// createTemplate stores a template and removes it when the test ends.
func createTemplate(t *testing.T, id, source string) map[string]interface{} {
	t.Helper()
	status, result := doJSON(t, http.MethodPost, "templates?templateId="+id, map[string]interface{}{
		"source":      source,
		"description": "integration test",
	})
	if status != http.StatusOK {
		t.Fatalf("createTemplate failed with status %d: %v", status, result)
	}
	t.Cleanup(func() { deleteTemplate(t, id) })
	return result
}

// deleteTemplate removes a template, ignoring "not found".
func deleteTemplate(t *testing.T, id string) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodDelete, apiURL("templates/"+id), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Logf("deleteTemplate %s: %v", id, err)
		return
	}
	resp.Body.Close()
}

// renderAdHoc formats a template without storing it.
func renderAdHoc(t *testing.T, source string, data interface{}) (int, map[string]interface{}) {
	t.Helper()
	return doJSON(t, http.MethodPost, "render", map[string]interface{}{
		"template": source,
		"data":     data,
	})
}

// errorMessage extracts error.message from an API error response.
func errorMessage(result map[string]interface{}) string {
	e, _ := result["error"].(map[string]interface{})
	msg, _ := e["message"].(string)
	return msg
}

var idCounter atomic.Int64

// uniqueID returns a template ID that does not collide across tests or runs.
func uniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d-%d", prefix, time.Now().UnixNano()%1_000_000, idCounter.Add(1))
}
