// Package ui holds the shared look of the terminal views.
package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Theme holds color constants for the TUI.
type Theme struct {
	BgColor       tcell.Color
	FgColor       tcell.Color
	DimColor      tcell.Color
	BorderColor   tcell.Color
	TableHeaderFg tcell.Color
	TableHeaderBg tcell.Color
	TableCursorFg tcell.Color
	TableCursorBg tcell.Color
	MenuKeyColor  tcell.Color
	TitleColor    tcell.Color
	PendingColor  tcell.Color
	UploadedColor tcell.Color
	FlashInfo     string
	FlashWarn     string
	FlashErr      string
}

// DefaultTheme returns a k9s-inspired dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:       tcell.ColorBlack,
		FgColor:       tcell.ColorCadetBlue,
		DimColor:      tcell.ColorGray,
		BorderColor:   tcell.ColorDodgerBlue,
		TableHeaderFg: tcell.ColorWhite,
		TableHeaderBg: tcell.ColorBlack,
		TableCursorFg: tcell.ColorBlack,
		TableCursorBg: tcell.ColorAqua,
		MenuKeyColor:  tcell.ColorDodgerBlue,
		TitleColor:    tcell.ColorFuchsia,
		PendingColor:  tcell.ColorOrange,
		UploadedColor: tcell.ColorGreen,
		FlashInfo:     "navajowhite",
		FlashWarn:     "orange",
		FlashErr:      "orangered",
	}
}

// Header builds a bold, non-selectable table header cell.
func (t *Theme) Header(text string) *tview.TableCell {
	return tview.NewTableCell(" " + text).
		SetSelectable(false).
		SetTextColor(t.TableHeaderFg).
		SetBackgroundColor(t.TableHeaderBg).
		SetAttributes(tcell.AttrBold)
}

// Table applies the theme to a bordered, row-selectable table.
func (t *Theme) Table(title string) *tview.Table {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(t.BorderColor)
	table.SetBackgroundColor(t.BgColor)
	table.SetTitle(" " + title + " ")
	table.SetTitleColor(t.TitleColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(t.TableCursorFg).
		Background(t.TableCursorBg))
	return table
}
