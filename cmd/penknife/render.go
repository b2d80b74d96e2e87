package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/penknife/pkg/penknife"
	"github.com/lemonberrylabs/penknife/pkg/resolver"
	"github.com/lemonberrylabs/penknife/pkg/types"
)

func newRenderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <template>",
		Short: "Render a template file",
		Long: "Render a template file against a JSON or YAML data file. Includes are read\n" +
			"relative to the template's directory unless --include-root is given.",
		Args: cobra.ExactArgs(1),
		RunE: runRender,
	}
	cmd.Flags().StringP("data", "d", "", "Data file (.json, .yaml or .yml)")
	cmd.Flags().String("include-root", "", "Directory include paths are relative to (default: the template's directory)")
	cmd.Flags().Bool("compress", false, "Trim whitespace around literal text")
	cmd.Flags().StringArray("marker", nil, "Override a marker, as name=value (repeatable)")
	cmd.Flags().StringP("output", "o", "", "Write the result to this file instead of stdout")
	cmd.Flags().Bool("strict", false, "Fail on expressions with no value and no default")
	cmd.Flags().Bool("escape-html", false, "HTML-escape every value")
	return cmd
}

func runRender(cmd *cobra.Command, args []string) error {
	logger := newLogger(cmd, cmd.ErrOrStderr())
	path := args[0]

	markers, err := parseMarkers(cmd)
	if err != nil {
		return err
	}
	includeRoot, _ := cmd.Flags().GetString("include-root")
	if includeRoot == "" {
		includeRoot = filepath.Dir(path)
	}
	compress, _ := cmd.Flags().GetBool("compress")

	engine, err := penknife.New(
		penknife.WithIncludeRoot(includeRoot),
		penknife.WithCompress(compress),
		penknife.WithMarkers(markers),
		penknife.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	data := types.Null
	if dataPath, _ := cmd.Flags().GetString("data"); dataPath != "" {
		if data, err = resolver.LoadFile(dataPath); err != nil {
			return err
		}
	}
	strict, _ := cmd.Flags().GetBool("strict")
	var r penknife.Resolver = resolver.New(data,
		resolver.WithMarkers(engine.Markers()),
		resolver.WithStrict(strict))
	if escape, _ := cmd.Flags().GetBool("escape-html"); escape {
		r = resolver.HTMLEscape(r)
	}

	out, err := engine.FormatFile(path, r)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	outPath, _ := cmd.Flags().GetString("output")
	if outPath == "" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), out)
		return err
	}
	if err := atomic.WriteFile(outPath, strings.NewReader(out)); err != nil {
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	logger.Info("rendered template", "template", path, "output", outPath, "bytes", len(out))
	return nil
}

func parseMarkers(cmd *cobra.Command) (map[string]string, error) {
	pairs, _ := cmd.Flags().GetStringArray("marker")
	if len(pairs) == 0 {
		return nil, nil
	}
	markers := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || value == "" {
			return nil, fmt.Errorf("invalid --marker %q: expected name=value", pair)
		}
		markers[strings.TrimSpace(name)] = value
	}
	return markers, nil
}
