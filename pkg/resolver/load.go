package resolver

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/lemonberrylabs/penknife/pkg/types"
)

// Format names a data file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatForPath picks a format from a file extension.
func FormatForPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported data file %q: expected .json, .yaml or .yml", path)
	}
}

// Load decodes a data document, keeping the order of mapping keys.
func Load(r io.Reader, format Format) (types.Value, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return types.Null, fmt.Errorf("reading data: %w", err)
	}
	switch format {
	case FormatJSON:
		return types.ParseJSON(data)
	case FormatYAML:
		return types.ParseYAML(data)
	default:
		return types.Null, fmt.Errorf("unsupported data format %q", format)
	}
}

// LoadFile reads a .json, .yaml or .yml data file.
func LoadFile(path string) (types.Value, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return types.Null, err
	}
	f, err := os.Open(path)
	if err != nil {
		return types.Null, fmt.Errorf("opening data file: %w", err)
	}
	defer f.Close()

	v, err := Load(f, format)
	if err != nil {
		return types.Null, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}
