package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/penknife/pkg/penknife"
)

func newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <template>...",
		Short: "Parse templates without rendering them",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runCheck,
	}
	cmd.Flags().Bool("tree", false, "Print the parsed token tree")
	cmd.Flags().StringArray("marker", nil, "Override a marker, as name=value (repeatable)")
	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	markers, err := parseMarkers(cmd)
	if err != nil {
		return err
	}
	showTree, _ := cmd.Flags().GetBool("tree")
	out := cmd.OutOrStdout()

	failed := 0
	for _, path := range args {
		engine, err := penknife.New(
			penknife.WithIncludeRoot(filepath.Dir(path)),
			penknife.WithMarkers(markers),
		)
		if err != nil {
			return err
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading template: %w", err)
		}
		tree, err := engine.Tree(string(src))
		if err != nil {
			fmt.Fprintf(out, "%s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Fprintf(out, "%s: ok\n", path)
		if showTree {
			printTree(out, tree, 1)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d templates failed", failed, len(args))
	}
	return nil
}

func printTree(w io.Writer, tree []*penknife.Token, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, tok := range tree {
		fmt.Fprintf(w, "%s%s %d %q\n", indent, tok.Kind, tok.Line, tok.Text)
		if tok.TruePart != nil {
			printTree(w, tok.TruePart, depth+1)
		}
		if tok.FalsePart != nil {
			fmt.Fprintf(w, "%selse\n", indent)
			printTree(w, tok.FalsePart, depth+1)
		}
	}
}
