package rules

import (
	"fmt"
	"strings"
	"time"
)

// PGNHeader carries the tag pairs written above the move text.
type PGNHeader struct {
	Event       string
	Site        string
	Date        time.Time
	White       string
	Black       string
	Termination string
}

// ResultToken maps a verdict to the PGN result token.
func ResultToken(v Verdict) string {
	switch v.Result {
	case Draw:
		return "1/2-1/2"
	case Decisive:
		if v.Winner == White {
			return "1-0"
		}
		return "0-1"
	default:
		return "*"
	}
}

// FormatPGN renders headers and numbered SAN move text.
func FormatPGN(h PGNHeader, sans []string, result string) string {
	if strings.TrimSpace(result) == "" {
		result = "*"
	}
	date := h.Date
	if date.IsZero() {
		date = time.Now()
	}
	event := h.Event
	if strings.TrimSpace(event) == "" {
		event = "ChessClouds"
	}
	site := h.Site
	if strings.TrimSpace(site) == "" {
		site = "?"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[Event \"%s\"]\n", sanitizePGN(event))
	fmt.Fprintf(&b, "[Site \"%s\"]\n", sanitizePGN(site))
	fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	fmt.Fprintf(&b, "[White \"%s\"]\n", orUnknown(h.White))
	fmt.Fprintf(&b, "[Black \"%s\"]\n", orUnknown(h.Black))
	if t := strings.TrimSpace(h.Termination); t != "" {
		fmt.Fprintf(&b, "[Termination \"%s\"]\n", sanitizePGN(strings.ToLower(t)))
	}
	fmt.Fprintf(&b, "[Result \"%s\"]\n\n", result)

	for i := 0; i < len(sans); i += 2 {
		fmt.Fprintf(&b, "%d. %s ", i/2+1, strings.TrimSpace(sans[i]))
		if i+1 < len(sans) {
			b.WriteString(strings.TrimSpace(sans[i+1]))
			b.WriteString(" ")
		}
	}
	b.WriteString(result)
	return b.String()
}

func orUnknown(s string) string {
	s = sanitizePGN(s)
	if s == "" {
		return "?"
	}
	return s
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}
