package penknife

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/lemonberrylabs/penknife/pkg/types"
)

// expand runs the system directives in tokens. An include is replaced by the
// tokens of the included file, which are scanned in turn, so included text
// takes part in block matching like the rest of the template. Any other
// directive is passed to the resolver and dropped.
func (r *run) expand(tokens []*Token) ([]*Token, error) {
	for i := 0; i < len(tokens); {
		tok := tokens[i]
		if tok.Kind != CommandToken || !strings.HasPrefix(tok.Text, r.markers.System) {
			i++
			continue
		}

		body := tok.Text[len(r.markers.System):]
		op, arg, hasArg := strings.Cut(body, " ")
		switch strings.ToLower(op) {
		case "include":
			arg = strings.TrimSpace(arg)
			if !hasArg || arg == "" {
				return nil, types.NewParseError(tok.Line, "The include directive requires a file path.")
			}
			inject, err := r.include(arg, tok.Line)
			if err != nil {
				return nil, err
			}
			spliced := make([]*Token, 0, len(tokens)-1+len(inject))
			spliced = append(spliced, tokens[:i]...)
			spliced = append(spliced, inject...)
			tokens = append(spliced, tokens[i+1:]...)
		default:
			// Unknown directives go to the resolver for compatibility.
			r.logger.Debug("forwarding directive to resolver", "directive", tok.Text, "line", tok.Line)
			if _, err := r.resolver.Resolve(tok.Text, DirectiveLookup); err != nil {
				return nil, err
			}
			tokens = append(tokens[:i:i], tokens[i+1:]...)
		}
	}
	return tokens, nil
}

// include loads and segments the file named by an include directive.
func (r *run) include(name string, line int) ([]*Token, error) {
	r.includes++
	if r.includes > MaxIncludes {
		return nil, types.NewParseError(line,
			"More than %d includes expanding %s on or after line %d; check for an include cycle.",
			MaxIncludes, name, line)
	}

	data, where, err := r.readInclude(name)
	if err != nil {
		return nil, types.NewParseError(line, "Can't open %s for inclusion.", where)
	}
	r.logger.Debug("included template", "path", where, "line", line)

	tokens, err := r.segment(string(data))
	if err != nil {
		var pe *types.ParseError
		if errors.As(err, &pe) {
			pe.Message += " in " + where
		}
		return nil, err
	}
	return tokens, nil
}

func (r *run) readInclude(name string) ([]byte, string, error) {
	if r.includeFS != nil {
		p := path.Clean(strings.TrimPrefix(filepath.ToSlash(name), "/"))
		data, err := fs.ReadFile(r.includeFS, p)
		return data, p, err
	}
	p := name
	if r.includeRoot != "" {
		p = filepath.Join(r.includeRoot, name)
	}
	data, err := os.ReadFile(p)
	return data, p, err
}
