// Package ui provides colored terminal output for the CLI.
package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

const headerWidth = 60

var (
	headerColor  = color.New(color.FgCyan, color.Bold)
	successColor = color.New(color.FgGreen)
	infoColor    = color.New(color.FgWhite)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
	stepColor    = color.New(color.FgBlue)
)

// Header prints a banner with the given title
func Header(title string) {
	line := strings.Repeat("=", headerWidth)
	headerColor.Println(line)
	headerColor.Println(center(title, headerWidth))
	headerColor.Println(line)
}

// Step prints a numbered progress line
func Step(n, total int, text string) {
	stepColor.Printf("[%d/%d] %s\n", n, total, text)
}

// Success prints a green confirmation line
func Success(format string, args ...any) {
	successColor.Printf("✓ "+format+"\n", args...)
}

// Info prints a plain informational line
func Info(format string, args ...any) {
	infoColor.Printf(format+"\n", args...)
}

// Warning prints a yellow warning line
func Warning(format string, args ...any) {
	warningColor.Printf("! "+format+"\n", args...)
}

// Error prints a red error line
func Error(format string, args ...any) {
	errorColor.Printf("✗ "+format+"\n", args...)
}

// BlueText returns text wrapped in blue
func BlueText(text string) string {
	return color.BlueString(text)
}

// YellowText returns text wrapped in yellow
func YellowText(text string) string {
	return color.YellowString(text)
}

// center left-pads text so it sits in the middle of width. Text longer than
// width is returned unchanged.
func center(text string, width int) string {
	if len(text) >= width {
		return text
	}
	padding := (width - len(text)) / 2
	return fmt.Sprintf("%s%s", strings.Repeat(" ", padding), text)
}
