// Package cli provides output formatting and terminal rendering for the
// scullring command line tools.
//
// Output writes any value as YAML, JSON or a table. Board renders channel
// status snapshots inside a lipgloss Frame for periodic redraw.
package cli
