package views

import (
	"fmt"

	"github.com/rivo/tview"

	"github.com/matheus3301/camlog/internal/tui/model"
	"github.com/matheus3301/camlog/internal/tui/ui"
)

// QueueView shows the draft above the committed queue.
type QueueView struct {
	*tview.Flex
	theme *ui.Theme
	draft *tview.TextView
	table *tview.Table
	items []model.Item
}

// NewQueueView creates the queue page.
func NewQueueView(theme *ui.Theme) *QueueView {
	draft := tview.NewTextView().SetDynamicColors(true)
	draft.SetBorder(true)
	draft.SetBorderColor(theme.BorderColor)
	draft.SetBackgroundColor(theme.BgColor)
	draft.SetTitle(" Draft ")
	draft.SetTitleColor(theme.TitleColor)

	table := theme.Table("Queue")

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(draft, 5, 0, false).
		AddItem(table, 0, 1, true)

	return &QueueView{Flex: flex, theme: theme, draft: draft, table: table}
}

// Table returns the focusable queue table.
func (qv *QueueView) Table() *tview.Table {
	return qv.table
}

// Update redraws the draft panel and the queue table.
func (qv *QueueView) Update(d model.Draft, items []model.Item) {
	qv.draft.Clear()
	_, _ = fmt.Fprintf(qv.draft, " [::b]%s[-:-:-] (%s)  PO [white]%s[-]  PIC [white]%s[-]\n",
		clean(d.ModeLabel), clean(d.Mode), orDash(d.PO), orDash(d.PIC))
	if d.GIT != "" || d.Note != "" {
		_, _ = fmt.Fprintf(qv.draft, " GIT %s  Note %s\n", orDash(d.GIT), orDash(d.Note))
	}
	_, _ = fmt.Fprintf(qv.draft, " %d photo(s), %d KB, %d slot(s) free", d.Photos, d.TotalKB, d.FreeSlots)

	row, _ := qv.table.GetSelection()
	qv.items = items
	qv.table.Clear()
	for col, h := range []string{"#", "ITEM", "PIC", "PHOTOS", "KB", "STATE", "UPLOAD ID"} {
		qv.table.SetCell(0, col, qv.theme.Header(h))
	}
	for i, it := range items {
		r := i + 1
		state, color := "pending", qv.theme.PendingColor
		if it.Uploaded {
			state, color = "uploaded", qv.theme.UploadedColor
		}
		qv.table.SetCell(r, 0, tview.NewTableCell(fmt.Sprintf(" %d", i+1)).SetTextColor(qv.theme.DimColor))
		qv.table.SetCell(r, 1, cell(it.Label).SetExpansion(1).SetTextColor(qv.theme.FgColor))
		qv.table.SetCell(r, 2, cell(it.PIC).SetTextColor(qv.theme.FgColor))
		qv.table.SetCell(r, 3, tview.NewTableCell(fmt.Sprintf(" %d", it.Photos)).SetAlign(tview.AlignRight))
		qv.table.SetCell(r, 4, tview.NewTableCell(fmt.Sprintf(" %d", it.TotalKB)).SetAlign(tview.AlignRight))
		qv.table.SetCell(r, 5, tview.NewTableCell(" "+state).SetTextColor(color))
		qv.table.SetCell(r, 6, cell(it.UploadID).SetTextColor(qv.theme.DimColor))
	}
	if row > len(items) {
		row = len(items)
	}
	if row < 1 {
		row = 1
	}
	qv.table.Select(row, 0)
}

// Selected returns the queue index under the cursor, or -1.
func (qv *QueueView) Selected() int {
	row, _ := qv.table.GetSelection()
	idx := row - 1
	if idx >= 0 && idx < len(qv.items) {
		return qv.items[idx].Index
	}
	return -1
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return clean(s)
}
