package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"

	"github.com/matheus3301/camlog/internal/tui/keys"
	"github.com/matheus3301/camlog/internal/tui/model"
	"github.com/matheus3301/camlog/internal/tui/ui"
)

// StatusBar displays daemon state, key hints and the flash message.
type StatusBar struct {
	*tview.TextView
	theme  *ui.Theme
	status *model.Status
	hints  []keys.Hint
	flash  string
	level  model.Level
}

// NewStatusBar creates a new status bar.
func NewStatusBar(theme *ui.Theme) *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv, theme: theme}
}

// SetStatus updates the daemon summary.
func (sb *StatusBar) SetStatus(s *model.Status) {
	sb.status = s
	sb.render()
}

// SetHints replaces the key hints of the active page.
func (sb *StatusBar) SetHints(h []keys.Hint) {
	sb.hints = h
	sb.render()
}

// SetFlash sets a temporary message.
func (sb *StatusBar) SetFlash(msg string, level model.Level) {
	sb.flash = msg
	sb.level = level
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()
	_, _ = fmt.Fprint(sb, summary(sb.status))

	if sb.flash != "" {
		color := sb.theme.FlashInfo
		switch sb.level {
		case model.Warn:
			color = sb.theme.FlashWarn
		case model.Err:
			color = sb.theme.FlashErr
		}
		_, _ = fmt.Fprintf(sb, " | [%s]%s[-]", color, tview.Escape(sb.flash))
	}

	if len(sb.hints) > 0 {
		parts := make([]string, len(sb.hints))
		for i, h := range sb.hints {
			parts[i] = fmt.Sprintf("[::b]<%s>[-:-:-] %s", h.Key, h.Description)
		}
		_, _ = fmt.Fprintf(sb, "\n %s", strings.Join(parts, "  "))
	}
}

func summary(s *model.Status) string {
	if s == nil {
		return " connecting..."
	}
	net := "[green]online[-]"
	if !s.Online {
		net = "[red]offline[-]"
	}
	state := s.State
	if s.Locked {
		state = "[yellow]uploading[-]"
	}
	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s | %s | queue %d (%d pending, %d KB) | draft %d",
		tview.Escape(s.Profile), state, net, s.Items, s.Pending, s.TotalKB, s.DraftPhotos)
	if !s.Configured {
		line += " | [orange]local only[-]"
	}
	if s.RetryPending {
		line += " | retry scheduled"
	}
	if !s.LastSuccess.IsZero() {
		line += " | synced " + s.LastSuccess.Format("15:04")
	}
	line += " | " + time.Now().Format("15:04")
	return line
}
