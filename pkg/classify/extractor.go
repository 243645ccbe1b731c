package classify

import (
	"regexp"
	"strings"
	"unicode"
)

// qualifiers are words the pattern can capture that are never a reference
// ("Transaction ID" with nothing after it, "transaction ref: ...").
var qualifiers = map[string]bool{
	"txn": true, "transaction": true, "ref": true, "reference": true,
	"receipt": true, "id": true, "no": true, "number": true,
}

// Extract applies the default transaction pattern to text.
func Extract(text string) (string, bool) {
	return extract(defaultTxn, text)
}

var defaultTxn = regexp.MustCompile("(?i)" + DefaultTransactionPattern)

// extract scans every match of re, resuming one byte after each match start so
// a keyword swallowed as the previous candidate ("transaction ref") still gets
// its own chance. The first candidate containing a digit wins; otherwise the
// first all-uppercase candidate is returned, so ordinary words ("declined")
// are never reported as references.
func extract(re *regexp.Regexp, text string) (string, bool) {
	var fallback string
	for offset := 0; offset < len(text); {
		loc := re.FindStringSubmatchIndex(text[offset:])
		if loc == nil {
			break
		}
		last := len(loc)/2 - 1
		start, end := loc[2*last], loc[2*last+1]
		if start >= 0 {
			candidate := text[offset+start : offset+end]
			if !qualifiers[strings.ToLower(candidate)] {
				if hasDigit(candidate) {
					return candidate, true
				}
				if fallback == "" && candidate == strings.ToUpper(candidate) {
					fallback = candidate
				}
			}
		}
		offset += loc[0] + 1
	}
	return fallback, fallback != ""
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
