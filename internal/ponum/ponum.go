// Package ponum normalizes purchase-order numbers typed by operators into the
// canonical business key the remote endpoint expects.
package ponum

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects how a raw PO number is canonicalized.
type Mode string

const (
	Std Mode = "std"
	SL3 Mode = "SL3"
	SRG Mode = "SRG"
	PML Mode = "PML"
	BYS Mode = "BYS"
)

// Modes lists every mode in display order.
var Modes = []Mode{Std, SL3, SRG, PML, BYS}

// location prefixes, checked in this order when stripping.
var prefixes = []struct {
	mode   Mode
	digits string
}{
	{SL3, "188704"},
	{SRG, "324700"},
	{PML, "323700"},
	{BYS, "302700"},
}

const stdHead = "2030"

// ParseMode returns the Mode named by s. The empty string is Std.
func ParseMode(s string) (Mode, error) {
	if s == "" {
		return Std, nil
	}
	for _, m := range Modes {
		if strings.EqualFold(string(m), s) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown po mode %q", s)
}

// OrStd returns m, or Std when m is empty or unknown.
func (m Mode) OrStd() Mode {
	if p, err := ParseMode(string(m)); err == nil {
		return p
	}
	return Std
}

// Prefix returns the location prefix of m, or "" for Std.
func (m Mode) Prefix() string {
	for _, p := range prefixes {
		if p.mode == m {
			return p.digits
		}
	}
	return ""
}

// Label is the operator-facing name of m.
func (m Mode) Label() string {
	switch m.OrStd() {
	case Std:
		return "CPJF"
	case BYS:
		return "BYS/KBM"
	default:
		return string(m)
	}
}

// Normalize canonicalizes raw under mode using now for the year window.
//
// Non-digits are dropped and a known location prefix is stripped. In Std mode
// a 6-digit number whose first two digits are the current year or one of the
// two previous years becomes "2030"+yy+"00"+rest, a 4-digit number becomes
// "2030"+current yy+"00"+digits, and anything else is kept as is. Prefixed
// modes keep the last four digits, zero-padded, behind the mode prefix.
// Normalize is idempotent for a fixed mode and year.
func Normalize(mode Mode, raw string, now time.Time) string {
	digits := digitsOnly(raw)
	if digits == "" {
		return ""
	}
	digits = stripPrefix(digits)
	if digits == "" {
		return ""
	}

	mode = mode.OrStd()
	if mode == Std {
		return normalizeStd(digits, now.Year()%100)
	}
	return mode.Prefix() + last4(digits)
}

func normalizeStd(digits string, yy int) string {
	switch len(digits) {
	case 6:
		head := digits[:2]
		for back := 0; back <= 2; back++ {
			if head == pad2(yy-back) {
				return stdHead + head + "00" + digits[2:]
			}
		}
		return digits
	case 4:
		return stdHead + pad2(yy) + "00" + digits
	default:
		return digits
	}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func stripPrefix(digits string) string {
	for _, p := range prefixes {
		if strings.HasPrefix(digits, p.digits) {
			return digits[len(p.digits):]
		}
	}
	return digits
}

func last4(d string) string {
	if len(d) > 4 {
		d = d[len(d)-4:]
	}
	return strings.Repeat("0", 4-len(d)) + d
}

func pad2(n int) string {
	n = (n%100 + 100) % 100
	return fmt.Sprintf("%02d", n)
}
