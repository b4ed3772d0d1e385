package tui

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{in: "upload", want: Command{Name: "upload"}},
		{in: "  U  ", want: Command{Name: "upload"}},
		{in: "search 25-1234", want: Command{Name: "search", Args: "25-1234"}},
		{in: "s   251234 ", want: Command{Name: "search", Args: "251234"}},
		{in: "d 3", want: Command{Name: "delete", Args: "3"}},
		{in: "frobnicate now", want: Command{Name: "frobnicate", Args: "now"}},
		{in: "", want: Command{}},
	}
	for _, tt := range tests {
		if got := ParseCommand(tt.in); got != tt.want {
			t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestCommandPosition(t *testing.T) {
	idx, err := ParseCommand("delete 3").Position()
	if err != nil || idx != 2 {
		t.Fatalf("Position = %d, %v; want 2, nil", idx, err)
	}
	for _, in := range []string{"delete", "delete 0", "delete x"} {
		if _, err := ParseCommand(in).Position(); err == nil {
			t.Errorf("Position(%q) should fail", in)
		}
	}
}
