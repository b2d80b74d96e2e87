package penknife

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/lemonberrylabs/penknife/pkg/types"
)

// MaxIncludes is the maximum number of include directives expanded in a single
// call. It stops include cycles.
const MaxIncludes = 256

// LookupKind tells a Resolver why it is being called.
type LookupKind int

const (
	ExpressionLookup LookupKind = iota + 1 // an expression outside loop scope
	DirectiveLookup                        // a system directive the engine does not handle
)

// String returns a debug-friendly name of the kind.
func (k LookupKind) String() string {
	switch k {
	case ExpressionLookup:
		return "expression"
	case DirectiveLookup:
		return "directive"
	default:
		return "unknown"
	}
}

// Resolver supplies values for expressions the engine cannot resolve itself.
// expr is the full command text, including any default. Returning types.Null
// makes the engine use the expression's default. Errors abort the Format call
// and are returned to its caller as is.
type Resolver interface {
	Resolve(expr string, kind LookupKind) (types.Value, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(expr string, kind LookupKind) (types.Value, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(expr string, kind LookupKind) (types.Value, error) {
	return f(expr, kind)
}

// nopResolver resolves nothing.
var nopResolver = ResolverFunc(func(string, LookupKind) (types.Value, error) {
	return types.Null, nil
})

// Engine formats templates. Its configuration may be changed between calls;
// each Format call works on a snapshot taken when it starts, so an Engine can
// be shared by concurrent callers.
type Engine struct {
	mu          sync.RWMutex
	markers     Markers
	compress    bool
	includeRoot string
	includeFS   fs.FS
	logger      *slog.Logger
}

// New creates an engine with the default markers.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		markers: DefaultMarkers(),
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// SetMarker replaces a single marker.
func (e *Engine) SetMarker(name, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.markers.Set(name, value)
}

// SetMarkers replaces several markers. Nothing changes if any name is invalid.
func (e *Engine) SetMarkers(markers map[string]string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.markers.Apply(markers)
}

// Markers returns a copy of the current markers.
func (e *Engine) Markers() Markers {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.markers
}

// SetCompress turns whitespace trimming of literal text on or off.
func (e *Engine) SetCompress(compress bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compress = compress
}

// SetIncludeRoot sets the directory include paths are joined to.
func (e *Engine) SetIncludeRoot(dir string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.includeRoot = dir
}

// Format renders template, asking r for every value outside loop scope.
// A nil r resolves nothing.
func (e *Engine) Format(template string, r Resolver) (string, error) {
	rn := e.newRun(r)
	tree, err := rn.compile(template)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	if err := rn.execute(tree, &out); err != nil {
		return "", err
	}
	return out.String(), nil
}

// FormatFile reads a template from path and formats it.
func (e *Engine) FormatFile(path string, r Resolver) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading template: %w", err)
	}
	return e.Format(string(data), r)
}

// Check parses template without executing it. Includes are loaded; other
// directives are ignored.
func (e *Engine) Check(template string) error {
	_, err := e.Tree(template)
	return err
}

// Tree returns the parsed form of template.
func (e *Engine) Tree(template string) ([]*Token, error) {
	return e.newRun(nil).compile(template)
}

// run holds the state of a single Format call.
type run struct {
	markers     Markers
	compress    bool
	includeRoot string
	includeFS   fs.FS
	logger      *slog.Logger
	resolver    Resolver
	loops       []*loopFrame
	includes    int
}

func (e *Engine) newRun(r Resolver) *run {
	if r == nil {
		r = nopResolver
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return &run{
		markers:     e.markers,
		compress:    e.compress,
		includeRoot: e.includeRoot,
		includeFS:   e.includeFS,
		logger:      e.logger,
		resolver:    r,
	}
}

// compile segments template, expands directives and builds the tree.
func (r *run) compile(template string) ([]*Token, error) {
	tokens, err := r.segment(template)
	if err != nil {
		return nil, err
	}
	tokens, err = r.expand(tokens)
	if err != nil {
		return nil, err
	}
	return r.parse(tokens)
}
