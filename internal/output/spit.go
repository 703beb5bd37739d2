// Copyright (c) 2026 harina-30.
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/apex/log"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/lipgloss/v2/table"
	"github.com/tidwall/gjson"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
	yamlv2 "gopkg.in/yaml.v2"

	"github.com/harina-30/ecrctl/internal/config"
)

// Spit renders v to w in the format selected by --output. The text format
// flattens the marshaled document into key/value rows; json and yaml emit
// the whole document; raw dumps the compact JSON untouched.
func Spit(v any, cmd *cli.Command, w io.Writer) error {
	if w == nil {
		w = os.Stdout
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	switch cmd.String("output") {
	case "raw":
		_, _ = w.Write(raw)
	case "json":
		pretty, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		fmt.Fprintln(w, string(pretty))
	case "yaml":
		// Round-trip through a generic map so yaml.v2 uses the json key names.
		var doc map[string]interface{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return fmt.Errorf("failed to unmarshal result: %w", err)
		}
		yamlOutput, err := yamlv2.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		_, _ = w.Write(yamlOutput)
	default:
		TableWriter(KeyValues(raw), cmd, w)
	}

	return nil
}

// KeyValues flattens the top level of a marshaled document into ordered
// key/value rows. Nested objects and arrays are skipped; callers render
// those separately.
func KeyValues(raw []byte) [][2]string {
	var rows [][2]string
	gjson.ParseBytes(raw).ForEach(func(key, value gjson.Result) bool {
		switch value.Type {
		case gjson.JSON:
			return true
		default:
			if value.String() == "" {
				return true
			}
			rows = append(rows, [2]string{key.String(), value.String()})
		}
		return true
	})
	return rows
}

// TableWriter renders two-column rows honoring color, titles and padding
// options. Falls back to plain key/value lines when stdout is not a TTY.
func TableWriter(rows [][2]string, cmd *cli.Command, w io.Writer) {
	if len(rows) == 0 {
		return
	}

	if !IsTTY() {
		for _, row := range rows {
			fmt.Fprintf(w, "%s\t%s\n", row[0], row[1])
		}
		return
	}

	var (
		headerStyle  = lipgloss.NewStyle().Align(lipgloss.Left)
		cellStyle    = lipgloss.NewStyle().Padding(0, 0).Align(lipgloss.Left)
		evenRowStyle = cellStyle
		oddRowStyle  = cellStyle
	)

	if cmd.Bool("color") {
		headerColor, evenColor, oddColor := getColors("colors")

		headerStyle = headerStyle.Foreground(lipgloss.Color(headerColor))
		evenRowStyle = evenRowStyle.Foreground(lipgloss.Color(evenColor))
		oddRowStyle = oddRowStyle.Foreground(lipgloss.Color(oddColor))
	}

	tableRows := make([][]string, 0, len(rows))
	for _, row := range rows {
		tableRows = append(tableRows, []string{row[0], row[1]})
	}

	t := table.New().
		BorderBottom(false).
		BorderTop(false).
		BorderLeft(false).
		BorderRight(false).
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {

			pad, _ := config.GetInt("padding", 0)
			log.Debugf("padding: %v", pad)

			var style lipgloss.Style
			switch {
			case row == table.HeaderRow:
				style = headerStyle
			case row%2 == 0:
				style = evenRowStyle
			default:
				style = oddRowStyle
			}

			if col > 0 {
				style = style.PaddingLeft(pad)
			}

			return style
		}).
		Headers().
		Rows(tableRows...)

	if cmd.Bool("titles") {
		// https://github.com/charmbracelet/lipgloss/issues/261
		t = t.Headers("key", "value").BorderHeader(false)
	}
	fmt.Fprintln(w, t)
}

// IsTTY reports whether stdout is attached to a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// getColors returns configured color values for table rendering.
func getColors(key string) (header string, even string, odd string) {
	header, _ = config.GetString(fmt.Sprintf("%s.title", key), "#f6be00")
	even, _ = config.GetString(fmt.Sprintf("%s.even", key), "#ffffff")
	odd, _ = config.GetString(fmt.Sprintf("%s.odd", key), "#00c8f0")
	return
}
