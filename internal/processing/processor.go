package processing

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// priceToken matches one currency amount: a symbol followed by digits with an
// optional decimal part. Thousands separators are stripped before matching, so
// the pattern never has to deal with them.
var priceToken = regexp.MustCompile(`[$€£]\s?(\d+(?:\.\d+)?)`)

// ParsePrice extracts the authoritative numeric value from a price-bearing
// string. Scraped price cells often contain several amounts glued together
// (e.g. "$242$242$281$281" when a price changed mid-scrape); the last match is
// the most current one and wins. Returns (0, false) when the string carries no
// price token at all; absence is a normal outcome, not an error.
func ParsePrice(raw string) (float64, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return 0, false
	}

	matches := priceToken.FindAllStringSubmatch(cleaned, -1)
	if len(matches) == 0 {
		return 0, false
	}

	last := matches[len(matches)-1][1]
	value, err := strconv.ParseFloat(last, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// NormalizeFeatures cleans a scraped amenity list: trims each entry, drops
// non-strings, empties, and punctuation-only artifacts such as a lone "-"
// separator, preserving source order. Idempotent.
func NormalizeFeatures(raw []any) []string {
	if len(raw) == 0 {
		return nil
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" || punctuationOnly(s) {
			continue
		}
		out = append(out, s)
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func punctuationOnly(s string) bool {
	for _, r := range s {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			return false
		}
	}
	return true
}

// Fingerprint hashes a payload together with its stay key to form a
// deterministic identifier for redelivery detection.
func Fingerprint(stayKey, payload string) string {
	s := sha1.Sum([]byte(stayKey + "|" + payload))
	return hex.EncodeToString(s[:])
}
