package terminal

import "github.com/charmbracelet/lipgloss"

var (
	// okStyle ANSI 2 (Green) for successful command output
	okStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	// errStyle ANSI 1 (Red) for command failures
	errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))

	// bannerStyle ANSI 6 (Cyan) for the startup banner
	bannerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
)
