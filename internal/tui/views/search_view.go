package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/camlog/internal/tui/model"
	"github.com/matheus3301/camlog/internal/tui/ui"
)

// SearchView looks up a PO number on the endpoint.
type SearchView struct {
	*tview.Flex
	theme   *ui.Theme
	input   *tview.InputField
	git     *tview.TextView
	results *tview.Table
	onQuery func(query string)
}

// NewSearchView creates a new search view.
func NewSearchView(theme *ui.Theme) *SearchView {
	input := tview.NewInputField().
		SetLabel(" PO: ").
		SetFieldWidth(0)
	input.SetBorderColor(theme.BorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	git := tview.NewTextView().SetDynamicColors(true)
	git.SetBorder(true)
	git.SetBorderColor(theme.BorderColor)
	git.SetBackgroundColor(theme.BgColor)
	git.SetTitle(" Goods in transit ")
	git.SetTitleColor(theme.TitleColor)

	results := theme.Table("Photos")

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(input, 1, 0, true).
		AddItem(git, 0, 1, false).
		AddItem(results, 0, 2, false)

	sv := &SearchView{
		Flex:    flex,
		theme:   theme,
		input:   input,
		git:     git,
		results: results,
	}
	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && sv.onQuery != nil {
			if q := strings.TrimSpace(input.GetText()); q != "" {
				sv.onQuery(q)
			}
		}
	})
	return sv
}

// SetOnQuery sets the callback when a search query is submitted.
func (sv *SearchView) SetOnQuery(fn func(query string)) {
	sv.onQuery = fn
}

// Update renders a search reply.
func (sv *SearchView) Update(res model.SearchResult) {
	sv.git.Clear()
	if len(res.Git) == 0 && len(res.Photos) == 0 {
		_, _ = fmt.Fprintf(sv.git, " nothing found for %s", clean(res.Query))
	}
	for _, g := range res.Git {
		_, _ = fmt.Fprintf(sv.git, " [::b]GIT %s[-:-:-]  PO %s  %s  [gray]%s[-]\n",
			clean(g.GIT), clean(g.PO), clean(g.Vendor), clean(g.Timestamp))
		for _, m := range g.Materials {
			_, _ = fmt.Fprintf(sv.git, "   - %s\n", clean(m))
		}
		if len(g.PhotoIDs) > 0 {
			_, _ = fmt.Fprintf(sv.git, "   photos: %s\n", clean(strings.Join(g.PhotoIDs, ", ")))
		}
	}
	sv.git.ScrollToBeginning()

	sv.results.Clear()
	fillRows(sv.results, sv.theme, res.Photos)
}

// Input returns the search input field.
func (sv *SearchView) Input() *tview.InputField {
	return sv.input
}

// Results returns the results table.
func (sv *SearchView) Results() *tview.Table {
	return sv.results
}
