// Package tui renders codepage results for a terminal.
// Simple, streaming output: one line per result, no full-screen UI.
package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
)

// Colors (Swiss minimal)
var (
	accent  = lipgloss.Color("#FF0000")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	warning = lipgloss.Color("#FFAA00")
	white   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(warning)
)

// Line is one resolved location as shown on the console.
type Line struct {
	Location string
	Encoding string
	Stream   string // optional stream-path answer
	Detector string
	Fallback bool
	Error    string
}

// RenderLine formats a result as "location  ENCODING  (detector)".
func RenderLine(l Line) string {
	var sb strings.Builder
	sb.WriteString(l.Location)
	sb.WriteString("  ")

	switch {
	case l.Error != "":
		sb.WriteString(accentStyle.Render(l.Encoding))
	case l.Fallback:
		sb.WriteString(warningStyle.Render(l.Encoding))
	default:
		sb.WriteString(successStyle.Render(l.Encoding))
	}

	if l.Stream != "" && l.Stream != l.Encoding {
		sb.WriteString(mutedStyle.Render(" stream="))
		sb.WriteString(titleStyle.Render(l.Stream))
	}

	switch {
	case l.Detector != "":
		sb.WriteString(mutedStyle.Render(" (" + l.Detector + ")"))
	case l.Fallback:
		sb.WriteString(mutedStyle.Render(" (default)"))
	}

	if l.Error != "" {
		sb.WriteString(" ")
		sb.WriteString(mutedStyle.Render(l.Error))
	}
	return sb.String()
}

// PrintLine writes a rendered line to w.
func PrintLine(w io.Writer, l Line) {
	fmt.Fprintln(w, RenderLine(l))
}

// Summary for printing scan totals.
type Summary struct {
	Files     int64
	Fallbacks int64
	Errors    int64
	Bytes     int64
	Duration  time.Duration
}

// PrintSummary prints scan totals.
func PrintSummary(w io.Writer, s Summary) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, successStyle.Render("  ✓ SCAN COMPLETE"))
	fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Files:"), titleStyle.Render(FormatNumber(s.Files)))
	if s.Bytes > 0 {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Size:"), titleStyle.Render(FormatBytes(s.Bytes)))
	}
	if s.Fallbacks > 0 {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Defaulted:"), warningStyle.Render(FormatNumber(s.Fallbacks)))
	}
	if s.Errors > 0 {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Errors:"), accentStyle.Render(FormatNumber(s.Errors)))
	}
	if s.Duration > 0 {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("Time:"), titleStyle.Render(FormatDuration(s.Duration)))
	}
	fmt.Fprintln(w)
}

// PrintList prints a numbered list under a heading, e.g. the detector order.
func PrintList(w io.Writer, heading string, items []string) {
	fmt.Fprintln(w, accentStyle.Render("▸ "+strings.ToUpper(heading)))
	for i, item := range items {
		fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render(fmt.Sprintf("%d.", i+1)), titleStyle.Render(item))
	}
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

// FormatDuration renders d with a unit suited to its size.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
}

// FormatNumber renders n with thousands separators.
func FormatNumber(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

// ShowProgress returns a progress bar writing to w.
func ShowProgress(w io.Writer, total int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(false),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "",
			BarEnd:        "",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}
