package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/goccy/go-yaml"

	"github.com/haivivi/scullring/pkg/history"
	"github.com/haivivi/scullring/pkg/scull"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	// FormatYAML outputs as YAML
	FormatYAML OutputFormat = "yaml"
	// FormatJSON outputs as JSON
	FormatJSON OutputFormat = "json"
	// FormatTable outputs as an aligned table (default for terminal)
	FormatTable OutputFormat = "table"
)

// ParseFormat parses a --format flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(s)); f {
	case FormatYAML, FormatJSON, FormatTable:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", s)
	}
}

// OutputOptions configures output behavior
type OutputOptions struct {
	// Format is the output format (yaml, json, table)
	Format OutputFormat

	// File is the output file path (empty for stdout)
	File string

	// Writer is an optional custom writer (overrides File)
	Writer io.Writer
}

// Output writes result to the configured destination. The table format
// understands channel snapshots and history records; other values fall
// back to YAML.
func Output(result any, opts OutputOptions) error {
	var w io.Writer = os.Stdout

	if opts.Writer != nil {
		w = opts.Writer
	} else if opts.File != "" {
		f, err := os.Create(opts.File)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch opts.Format {
	case FormatJSON:
		return outputJSON(w, result)
	case FormatYAML:
		return outputYAML(w, result)
	case FormatTable, "":
		return outputTable(w, result)
	default:
		return fmt.Errorf("unsupported output format: %s", opts.Format)
	}
}

func outputJSON(w io.Writer, result any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func outputYAML(w io.Writer, result any) error {
	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = w.Write(data)
	return err
}

func outputTable(w io.Writer, result any) error {
	switch v := result.(type) {
	case []scull.ChannelStatus:
		return channelTable(w, v)
	case []history.Record:
		return recordTable(w, v)
	default:
		return outputYAML(w, result)
	}
}

func channelTable(w io.Writer, rows []scull.ChannelStatus) error {
	t := newTable("CHANNEL", "USED", "FREE", "CAPACITY", "READ", "WRITE", "IN", "OUT")
	for _, r := range rows {
		s := r.Status
		t.Row(r.Name, strconv.Itoa(s.Occupancy), strconv.Itoa(s.Free()), strconv.Itoa(s.Capacity),
			strconv.Itoa(s.ReadCursor), strconv.Itoa(s.WriteCursor),
			FormatCount(s.Written), FormatCount(s.Read))
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func recordTable(w io.Writer, rows []history.Record) error {
	t := newTable("TIME", "CHANNEL", "USED", "CAPACITY", "READ", "WRITE")
	for _, r := range rows {
		s := r.Status
		t.Row(r.Time.Format("2006-01-02T15:04:05.000Z07:00"), r.Channel,
			strconv.Itoa(s.Occupancy), strconv.Itoa(s.Capacity),
			strconv.Itoa(s.ReadCursor), strconv.Itoa(s.WriteCursor))
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func newTable(headers ...string) *table.Table {
	header := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
}

// StatusLine renders one channel as a single human readable line.
func StatusLine(cs scull.ChannelStatus) string {
	s := cs.Status
	return cs.Name + " " + Bar(s.Occupancy, s.Capacity, 20) + " " +
		strconv.Itoa(s.Occupancy) + "/" + FormatBytes(s.Capacity) +
		" (" + Percent(s.Occupancy, s.Capacity) + ")" +
		" r=" + strconv.Itoa(s.ReadCursor) + " w=" + strconv.Itoa(s.WriteCursor)
}

// Print helpers for terminal output

// PrintSuccess prints a success message with checkmark
func PrintSuccess(format string, args ...any) {
	fmt.Printf("✓ "+format+"\n", args...)
}

// PrintError prints an error message to stderr
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
