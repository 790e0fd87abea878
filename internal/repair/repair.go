package repair

import (
	"encoding/json"
	"errors"
	"strings"
)

// Batch-level failure modes of a repair attempt. Record-level damage is
// absorbed here by dropping the record; only these two abort a run.
var (
	// ErrEmptyResult marks the collaborator's explicit "nothing found" answer,
	// the literal empty array. A legitimate outcome, not a failure.
	ErrEmptyResult = errors.New("scrape returned explicit empty result")

	// ErrMalformedPayload means no bracket-delimited structure was found at all.
	ErrMalformedPayload = errors.New("no record array found in payload")

	// ErrNoValidCandidates means structure was found but every fragment lacked
	// a required field.
	ErrNoValidCandidates = errors.New("no complete records found in payload")
)

// requiredKeys are the fields every candidate record must carry. A fragment
// missing one was cut off before its record completed and is dropped.
var requiredKeys = []string{
	"provider",
	"roomType",
	"features",
	"basePrice",
	"totalPrice",
	"bookingUrl",
}

// Repair recovers the maximal well-formed prefix of an offer-record array from
// a raw scraped blob. The blob travels through a subprocess pipe that can close
// mid-write, so the tail record is routinely truncated; observed truncation
// always falls after the bookingUrl field, which makes appending the missing
// closing brace safe. Returns a well-formed JSON array ready for decoding.
//
// Tolerance for damaged machine output is concentrated here; everything
// downstream assumes valid JSON.
func Repair(raw string) ([]byte, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "[]" {
		return nil, ErrEmptyResult
	}

	open := strings.Index(trimmed, "[")
	if open < 0 {
		return nil, ErrMalformedPayload
	}

	// The array close is "}]" when the blob arrived whole. A lone "]" cannot
	// be trusted as the boundary: truncated tails still contain "]" inside
	// their feature arrays.
	interior := trimmed[open+1:]
	if end := strings.LastIndex(interior, "}]"); end >= 0 {
		interior = interior[:end]
	}

	fragments := strings.Split(interior, "},")
	kept := make([]string, 0, len(fragments))
	for _, fragment := range fragments {
		fragment = strings.TrimSpace(fragment)
		if fragment == "" {
			continue
		}
		if !strings.HasSuffix(fragment, "}") {
			fragment += "}"
		}
		if !complete(fragment) {
			continue
		}
		kept = append(kept, fragment)
	}

	if len(kept) == 0 {
		return nil, ErrNoValidCandidates
	}

	return []byte("[" + strings.Join(kept, ",") + "]"), nil
}

// complete reports whether a brace-repaired fragment parses as a JSON object
// carrying every required field. Decoding to a key map makes the missing-field
// check explicit instead of grepping for key substrings.
func complete(fragment string) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(fragment), &fields); err != nil {
		return false
	}
	for _, key := range requiredKeys {
		if _, ok := fields[key]; !ok {
			return false
		}
	}
	return true
}
