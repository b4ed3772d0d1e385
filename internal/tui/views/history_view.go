package views

import (
	"github.com/rivo/tview"

	"github.com/matheus3301/camlog/internal/tui/model"
	"github.com/matheus3301/camlog/internal/tui/ui"
)

// HistoryView lists recently uploaded photo rows.
type HistoryView struct {
	*tview.Table
	theme *ui.Theme
}

// NewHistoryView creates the history page.
func NewHistoryView(theme *ui.Theme) *HistoryView {
	return &HistoryView{Table: theme.Table("History"), theme: theme}
}

// Update redraws the rows.
func (hv *HistoryView) Update(rows []model.Row) {
	hv.Clear()
	fillRows(hv.Table, hv.theme, rows)
	hv.ScrollToBeginning()
}

func fillRows(t *tview.Table, theme *ui.Theme, rows []model.Row) {
	for col, h := range []string{"TIME", "CATEGORY", "PO", "GIT", "PIC", "PHOTO"} {
		t.SetCell(0, col, theme.Header(h))
	}
	for i, r := range rows {
		row := i + 1
		t.SetCell(row, 0, cell(r.Time).SetTextColor(theme.DimColor))
		t.SetCell(row, 1, cell(r.Category).SetTextColor(theme.FgColor))
		t.SetCell(row, 2, cell(r.PO).SetTextColor(theme.FgColor))
		t.SetCell(row, 3, cell(r.GIT).SetTextColor(theme.FgColor))
		t.SetCell(row, 4, cell(r.PIC).SetTextColor(theme.FgColor))
		t.SetCell(row, 5, cell(r.PhotoID).SetExpansion(1).SetTextColor(theme.DimColor))
	}
}
