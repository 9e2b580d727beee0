// Package output renders archival previews for the terminal.
package output

import (
	"github.com/fatih/color"
)

// Status symbols using Unicode characters for visual clarity.
const (
	SymbolPending  = "●" // Filled circle for items the next run submits
	SymbolArchived = "✓" // Check mark for items already covered by the watermark
)

// ItemStatus is the archival state of a timeline item.
type ItemStatus int

const (
	StatusArchived ItemStatus = iota
	StatusPending
)

// StatusSymbol returns the Unicode symbol for an item status.
func StatusSymbol(status ItemStatus) string {
	if status == StatusPending {
		return SymbolPending
	}
	return SymbolArchived
}

// StatusText returns human-readable text for an item status.
func StatusText(status ItemStatus) string {
	if status == StatusPending {
		return "Pending"
	}
	return "Archived"
}

// StatusColorize applies color formatting to a string based on item status.
func StatusColorize(s string, status ItemStatus) string {
	var c *color.Color
	switch status {
	case StatusPending:
		c = color.New(color.FgYellow)
	default:
		c = color.New(color.FgGreen)
	}
	c.EnableColor()
	return c.Sprint(s)
}
