// Package fancy provides pretty printing utilities and styling for CLI output
package fancy

import (
	"github.com/charmbracelet/lipgloss"
)

// 256-color palette, one color per kind of manifest element
const (
	colorRoot     = lipgloss.Color("39")
	colorHeader   = lipgloss.Color("15")
	colorInfo     = lipgloss.Color("250")
	colorBranch   = lipgloss.Color("240")
	colorClass    = lipgloss.Color("82")
	colorResource = lipgloss.Color("208")
	colorNode     = lipgloss.Color("201")
	colorVariable = lipgloss.Color("228")
	colorFile     = lipgloss.Color("45")
	colorError    = lipgloss.Color("196")
)

var (
	RootStyle     = lipgloss.NewStyle().Foreground(colorRoot).Bold(true)
	HeaderStyle   = lipgloss.NewStyle().Foreground(colorHeader).Bold(true)
	InfoStyle     = lipgloss.NewStyle().Foreground(colorInfo).Italic(true)
	BranchStyle   = lipgloss.NewStyle().Foreground(colorBranch)
	ClassStyle    = lipgloss.NewStyle().Foreground(colorClass)
	ResourceStyle = lipgloss.NewStyle().Foreground(colorResource)
	NodeStyle     = lipgloss.NewStyle().Foreground(colorNode)
	VariableStyle = lipgloss.NewStyle().Foreground(colorVariable)
	FileStyle     = lipgloss.NewStyle().Foreground(colorFile)
	ErrorStyle    = lipgloss.NewStyle().Foreground(colorError)
)

// RootText styles a root title
func RootText(text string) string {
	return RootStyle.Render(text)
}

// InfoText styles descriptive information
func InfoText(text string) string {
	return InfoStyle.Render(text)
}

// ClassText styles a class name
func ClassText(text string) string {
	return ClassStyle.Render(text)
}

// ResourceText styles a resource reference
func ResourceText(text string) string {
	return ResourceStyle.Render(text)
}

// NodeText styles a node name
func NodeText(text string) string {
	return NodeStyle.Render(text)
}

// FileText styles a file path
func FileText(text string) string {
	return FileStyle.Render(text)
}

// ErrorText styles an error message
func ErrorText(text string) string {
	return ErrorStyle.Render(text)
}

// TruncateString truncates a string if it exceeds maxLength
func TruncateString(s string, maxLength int) string {
	if len(s) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return s[:maxLength]
	}
	return s[:maxLength-3] + "..."
}
