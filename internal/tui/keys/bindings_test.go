package keys

import (
	"reflect"
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestRegistryDispatchAndHints(t *testing.T) {
	var fired []string
	r := NewRegistry()
	r.AddGlobal(&Action{Key: tcell.KeyRune, Rune: 'q', Description: "quit", Handler: func() { fired = append(fired, "quit") }})
	r.AddGlobal(&Action{Key: tcell.KeyEscape, Label: "esc", Description: "back", Handler: func() { fired = append(fired, "back") }})
	r.AddGlobal(&Action{Key: tcell.KeyRune, Rune: 'x', Hidden: true, Handler: func() { fired = append(fired, "hidden") }})
	r.AddView("queue", &Action{Key: tcell.KeyRune, Rune: 'u', Description: "upload", Handler: func() { fired = append(fired, "upload") }})
	r.AddView("queue", &Action{Key: tcell.KeyRune, Rune: 'q', Description: "queue-q", Handler: func() { fired = append(fired, "queue-q") }})

	want := []Hint{{"u", "upload"}, {"q", "queue-q"}, {"q", "quit"}, {"esc", "back"}}
	if got := r.Hints("queue"); !reflect.DeepEqual(got, want) {
		t.Errorf("Hints(queue) = %v, want %v", got, want)
	}
	if got := r.Hints("history"); len(got) != 2 {
		t.Errorf("Hints(history) = %v", got)
	}

	ev := func(k tcell.Key, ch rune) *tcell.EventKey { return tcell.NewEventKey(k, ch, tcell.ModNone) }
	r.HandleEvent("queue", ev(tcell.KeyRune, 'q'))
	r.HandleEvent("history", ev(tcell.KeyRune, 'q'))
	r.HandleEvent("history", ev(tcell.KeyRune, 'u'))
	r.HandleEvent("history", ev(tcell.KeyEscape, 0))
	r.HandleEvent("history", ev(tcell.KeyRune, 'x'))

	if want := []string{"queue-q", "quit", "back", "hidden"}; !reflect.DeepEqual(fired, want) {
		t.Errorf("fired = %v, want %v", fired, want)
	}
}
