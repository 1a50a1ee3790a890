// Package ui styles CLI output with lipgloss.
//
// A [Palette] holds the named styles (title, ok, err, warn, help). [Palette.Progress] colors the
// progress updates streamed by a run according to the result they carry, and [Palette.Headline]
// renders the final outcome. [Plain] returns a palette that leaves text untouched, used when
// output is not a terminal and in tests.
package ui
