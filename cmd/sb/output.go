package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

var (
	okColor   = color.New(color.FgGreen)
	failColor = color.New(color.FgRed)
	headColor = color.New(color.Bold)
)

// printReport writes a rendered report, coloring ✓ and ✗ lines.
func printReport(w io.Writer, text string) {
	for i, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, "✓"):
			okColor.Fprintln(w, line)
		case strings.HasPrefix(line, "✗"):
			failColor.Fprintln(w, line)
		case i == 0:
			headColor.Fprintln(w, line)
		default:
			fmt.Fprintln(w, line)
		}
	}
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
