package ui

import "github.com/charmbracelet/lipgloss"

// Plain ANSI colors only: the agent runs in whatever terminal the operator
// has, including dumb ones over ssh.
var (
	// TitleStyle ANSI 6 (Cyan) for headings, readable on light and dark
	TitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true).MarginBottom(1)

	// UsageStyle ANSI 2 (Green) for arguments and usage lines
	UsageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	// DescStyle ANSI 8 (Bright Black / Gray) for descriptions
	DescStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	// FlagStyle ANSI 3 (Yellow) for flags
	FlagStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// Chat surface styles.
var (
	// ReasoningStyle dims the model's thought chain so it reads as aside
	ReasoningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)

	// ToolCallStyle marks tool-call progress lines
	ToolCallStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	// ErrorStyle ANSI 1 (Red) for failures surfaced to the operator
	ErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)

	// PromptStyle for the input marker
	PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
)
