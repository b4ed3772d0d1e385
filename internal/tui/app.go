// Package tui is a terminal monitor for the capture queue of a running
// daemon.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"google.golang.org/grpc/status"

	"github.com/matheus3301/camlog/internal/tui/keys"
	"github.com/matheus3301/camlog/internal/tui/model"
	"github.com/matheus3301/camlog/internal/tui/ui"
	"github.com/matheus3301/camlog/internal/tui/views"
)

const (
	pageQueue   = "queue"
	pageHistory = "history"
	pageSearch  = "search"

	refreshInterval = 5 * time.Second
	flashTTL        = 5 * time.Second
	uploadTimeout   = 10 * time.Minute
)

// App is the main TUI application shell.
type App struct {
	app       *tview.Application
	pages     *tview.Pages
	vm        *model.ViewModel
	registry  *keys.Registry
	theme     *ui.Theme
	statusBar *views.StatusBar
	queueV    *views.QueueView
	historyV  *views.HistoryView
	searchV   *views.SearchView
	cmdInput  *tview.InputField
	root      *tview.Flex
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(c model.Caller) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:       tview.NewApplication(),
		pages:     tview.NewPages(),
		vm:        model.NewViewModel(c),
		registry:  keys.NewRegistry(),
		theme:     theme,
		statusBar: views.NewStatusBar(theme),
		queueV:    views.NewQueueView(theme),
		historyV:  views.NewHistoryView(theme),
		searchV:   views.NewSearchView(theme),
		cmdInput:  tview.NewInputField().SetLabel(":"),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddView(pageQueue, &keys.Action{
		Key: tcell.KeyRune, Rune: 'u', Description: "upload",
		Handler: a.upload,
	})
	a.registry.AddView(pageQueue, &keys.Action{
		Key: tcell.KeyRune, Rune: 'd', Description: "delete",
		Handler: func() { a.deleteItem(a.queueV.Selected()) },
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'r', Description: "refresh",
		Handler: func() { go a.refresh() },
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'h', Description: "history",
		Handler: a.showHistory,
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 's', Description: "search",
		Handler: a.showSearch,
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: ':', Description: "command",
		Handler: a.showCommand,
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyRune, Rune: 'q', Description: "quit",
		Handler: a.Stop,
	})
	a.registry.AddGlobal(&keys.Action{
		Key: tcell.KeyEscape, Label: "esc", Description: "back",
		Handler: a.showQueue,
	})
}

func (a *App) setupCallbacks() {
	a.searchV.SetOnQuery(func(query string) {
		go func() {
			res, err := a.vm.Search(a.ctx, query)
			if err != nil {
				a.fail("search", err)
				return
			}
			a.app.QueueUpdateDraw(func() {
				a.searchV.Update(res)
				a.app.SetFocus(a.searchV.Results())
			})
		}()
	})

	a.cmdInput.SetDoneFunc(func(key tcell.Key) {
		text := a.cmdInput.GetText()
		a.hideCommand()
		if key == tcell.KeyEnter {
			a.run(ParseCommand(text))
		}
	})
}

func (a *App) setupLayout() {
	a.pages.AddPage(pageQueue, a.queueV, true, true)
	a.pages.AddPage(pageHistory, a.historyV, true, false)
	a.pages.AddPage(pageSearch, a.searchV, true, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 2, 0, false)

	a.app.SetRoot(a.root, true)
	a.app.SetFocus(a.queueV.Table())
	a.statusBar.SetHints(a.registry.Hints(pageQueue))

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		// Text inputs own every key except Escape.
		if _, ok := a.app.GetFocus().(*tview.InputField); ok && event.Key() != tcell.KeyEscape {
			return event
		}
		if event.Key() == tcell.KeyEscape && a.app.GetFocus() == a.cmdInput {
			return event
		}

		if a.registry.HandleEvent(currentPage, event) {
			return nil
		}
		return event
	})
}

func (a *App) switchTo(page string, focus tview.Primitive) {
	a.pages.SwitchToPage(page)
	a.app.SetFocus(focus)
	a.statusBar.SetHints(a.registry.Hints(page))
}

func (a *App) showQueue() {
	a.switchTo(pageQueue, a.queueV.Table())
}

func (a *App) showSearch() {
	a.switchTo(pageSearch, a.searchV.Input())
}

func (a *App) showHistory() {
	a.switchTo(pageHistory, a.historyV)
	go func() {
		rows, err := a.vm.History(a.ctx)
		if err != nil {
			a.fail("history", err)
			return
		}
		a.app.QueueUpdateDraw(func() { a.historyV.Update(rows) })
	}()
}

func (a *App) showCommand() {
	a.cmdInput.SetText("")
	a.root.AddItem(a.cmdInput, 1, 0, true)
	a.app.SetFocus(a.cmdInput)
}

func (a *App) hideCommand() {
	a.root.RemoveItem(a.cmdInput)
	currentPage, _ := a.pages.GetFrontPage()
	switch currentPage {
	case pageSearch:
		a.app.SetFocus(a.searchV.Input())
	case pageHistory:
		a.app.SetFocus(a.historyV)
	default:
		a.app.SetFocus(a.queueV.Table())
	}
}

func (a *App) run(cmd Command) {
	switch cmd.Name {
	case "":
	case "upload":
		a.upload()
	case "delete":
		idx, err := cmd.Position()
		if err != nil {
			a.flash(model.Warn, err.Error())
			return
		}
		a.deleteItem(idx)
	case "search":
		a.showSearch()
		if cmd.Args != "" {
			a.searchV.Input().SetText(cmd.Args)
			go func() {
				res, err := a.vm.Search(a.ctx, cmd.Args)
				if err != nil {
					a.fail("search", err)
					return
				}
				a.app.QueueUpdateDraw(func() { a.searchV.Update(res) })
			}()
		}
	case "history":
		a.showHistory()
	case "refresh":
		go a.refresh()
	case "quit":
		a.Stop()
	default:
		a.flash(model.Warn, fmt.Sprintf("unknown command %q", cmd.Name))
	}
}

func (a *App) upload() {
	go func() {
		a.flash(model.Info, "uploading...")
		ctx, cancel := context.WithTimeout(a.ctx, uploadTimeout)
		defer cancel()
		delivered, cleared, err := a.vm.Upload(ctx)
		switch {
		case err != nil:
			a.fail("upload", err)
		case cleared:
			a.flash(model.Info, "everything already uploaded, queue cleared")
		default:
			a.flash(model.Info, fmt.Sprintf("uploaded %d item(s)", delivered))
		}
		a.refresh()
	}()
}

func (a *App) deleteItem(idx int) {
	if idx < 0 {
		return
	}
	go func() {
		it, err := a.vm.Delete(a.ctx, idx)
		if err != nil {
			a.fail("delete", err)
			return
		}
		a.flash(model.Info, "deleted "+it.Label)
		a.refresh()
	}()
}

// refresh reloads daemon state and redraws. Safe to call off the UI goroutine.
func (a *App) refresh() {
	if err := a.vm.Refresh(a.ctx); err != nil {
		a.fail("refresh", err)
		return
	}
	a.app.QueueUpdateDraw(func() {
		a.queueV.Update(a.vm.Draft(), a.vm.Items())
		a.statusBar.SetStatus(a.vm.Status())
		a.statusBar.SetFlash(a.vm.Flash.Get())
	})
}

// flash shows msg in the status bar. QueueUpdateDraw waits for the event
// loop, so the redraw is queued from its own goroutine to keep key
// handlers from deadlocking.
func (a *App) flash(level model.Level, msg string) {
	a.vm.Flash.Set(level, msg, flashTTL)
	go a.app.QueueUpdateDraw(func() {
		a.statusBar.SetFlash(a.vm.Flash.Get())
	})
}

func (a *App) fail(op string, err error) {
	if a.ctx.Err() != nil {
		return
	}
	msg := err.Error()
	if s, ok := status.FromError(err); ok {
		msg = s.Message()
	}
	a.flash(model.Err, op+" failed: "+msg)
}

// Run starts the TUI application.
func (a *App) Run() error {
	go func() {
		a.refresh()
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.refresh()
			case <-a.ctx.Done():
				return
			}
		}
	}()

	return a.app.Run()
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
