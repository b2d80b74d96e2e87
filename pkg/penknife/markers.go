package penknife

import (
	"github.com/lemonberrylabs/penknife/pkg/types"
)

// Marker names accepted by SetMarker, SetMarkers and WithMarkers.
const (
	MarkerArgs   = "args"
	MarkerClose  = "close"
	MarkerElse   = "else"
	MarkerEnd    = "end"
	MarkerIf     = "if"
	MarkerIndex  = "index"
	MarkerLoop   = "loop"
	MarkerOpen   = "open"
	MarkerScope  = "scope"
	MarkerSystem = "system"
)

// markerNames is the canonical order used in error messages.
var markerNames = []string{
	MarkerArgs, MarkerClose, MarkerElse, MarkerEnd, MarkerIf,
	MarkerIndex, MarkerLoop, MarkerOpen, MarkerScope, MarkerSystem,
}

// Markers holds the strings that delimit and classify commands. Each must be
// non-empty and distinguishable from the others where they are used; the
// engine does not check this.
type Markers struct {
	Open   string // starts a command
	Close  string // ends a command
	If     string // prefixes a conditional
	Else   string // prefixes an else branch, followed by the opener text
	End    string // prefixes a block end, followed by the opener text
	Loop   string // prefixes a loop
	Index  string // loop member naming the current key
	Scope  string // separates path segments
	Args   string // separates an expression from its default or a loop from its name
	System string // prefixes a parse-time directive
}

// DefaultMarkers returns the standard marker set.
func DefaultMarkers() Markers {
	return Markers{
		Open:   "{{",
		Close:  "}}",
		If:     "?",
		Else:   "!",
		End:    "/",
		Loop:   "@",
		Index:  "#",
		Scope:  ".",
		Args:   ",",
		System: ":",
	}
}

// MarkerNames returns the valid marker names.
func MarkerNames() []string {
	names := make([]string, len(markerNames))
	copy(names, markerNames)
	return names
}

func (m *Markers) field(name string) *string {
	switch name {
	case MarkerArgs:
		return &m.Args
	case MarkerClose:
		return &m.Close
	case MarkerElse:
		return &m.Else
	case MarkerEnd:
		return &m.End
	case MarkerIf:
		return &m.If
	case MarkerIndex:
		return &m.Index
	case MarkerLoop:
		return &m.Loop
	case MarkerOpen:
		return &m.Open
	case MarkerScope:
		return &m.Scope
	case MarkerSystem:
		return &m.System
	}
	return nil
}

// Get returns the marker called name.
func (m Markers) Get(name string) (string, error) {
	f := m.field(name)
	if f == nil {
		return "", &types.SetupError{Name: name, Valid: MarkerNames()}
	}
	return *f, nil
}

// Set replaces the marker called name.
func (m *Markers) Set(name, value string) error {
	f := m.field(name)
	if f == nil {
		return &types.SetupError{Name: name, Valid: MarkerNames()}
	}
	*f = value
	return nil
}

// Apply sets several markers. All names are checked before any is changed.
func (m *Markers) Apply(values map[string]string) error {
	for name := range values {
		if m.field(name) == nil {
			return &types.SetupError{Name: name, Valid: MarkerNames()}
		}
	}
	for name, value := range values {
		*m.field(name) = value
	}
	return nil
}
