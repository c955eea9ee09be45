package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	colorGreen = lipgloss.Color("35")
	colorRed   = lipgloss.Color("167")
	colorGray  = lipgloss.Color("245")
	colorDim   = lipgloss.Color("240")
)

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleStep        = lipgloss.NewStyle().Foreground(colorGray).Width(20)
	styleField       = lipgloss.NewStyle().Foreground(colorDim).Width(16)
)

const (
	iconSuccess = "✓"
	iconError   = "✗"
)

func printSuccess(format string, args ...any) {
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	fmt.Println(styleIconError.Render(iconError) + " " + fmt.Sprintf(format, args...))
}

// printValidationErrors prints one line per diagnostic.
func printValidationErrors(errs []stepError) {
	for _, e := range errs {
		step := e.Step
		if step == "" {
			step = "(pipeline)"
		}
		fmt.Println(styleIconError.Render(iconError) + " " +
			styleStep.Render(step) + styleField.Render(e.Field) + e.Message)
	}
}
