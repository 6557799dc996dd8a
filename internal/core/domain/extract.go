package domain

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ExtractionStatus classifies the outcome of extracting a payload
// from a result envelope.
type ExtractionStatus int

const (
	// ExtractSuccess means usable text was recovered.
	ExtractSuccess ExtractionStatus = iota

	// ExtractEmpty means the envelope matched a known shape but the
	// payload trimmed to nothing. Stored as "" like a success; the
	// distinction only matters for diagnostics.
	ExtractEmpty

	// ExtractMalformedJSON means the payload looked like JSON but did
	// not parse; the raw text is kept and remains usable downstream.
	ExtractMalformedJSON

	// ExtractAbsent means none of the known envelope shapes matched.
	ExtractAbsent
)

// String returns the status name used in reports.
func (s ExtractionStatus) String() string {
	switch s {
	case ExtractSuccess:
		return "success"
	case ExtractEmpty:
		return "empty"
	case ExtractMalformedJSON:
		return "malformed_json"
	case ExtractAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// Usable reports whether the extraction produced text that belongs in
// a field stream. MalformedJSON degrades to its raw text rather than
// an error, so it is usable; only shape mismatches are not.
func (s ExtractionStatus) Usable() bool {
	return s != ExtractAbsent
}

// Extraction is the result of pulling the payload out of one envelope.
type Extraction struct {
	Status ExtractionStatus
	Text   string
}

// fencedBlock matches a code fence with an optional json language tag.
var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)\\n```")

// Extract pulls the textual payload out of an envelope. It is a pure
// function and never fails: structural or parse irregularities degrade
// to a weaker status, not an error.
//
// The payload is often a JSON object {"text": "..."} wrapped in a code
// fence, sometimes bare JSON with or without a stray leading "json"
// line, and sometimes plain text. All three are handled, in that order.
func Extract(env *ResultEnvelope) Extraction {
	raw, ok := env.payloadText()
	if !ok {
		return Extraction{Status: ExtractAbsent}
	}
	return extractFromText(raw)
}

func extractFromText(raw string) Extraction {
	trimmed := strings.TrimSpace(raw)

	if m := fencedBlock.FindStringSubmatch(raw); m != nil {
		text, found, err := textField(strings.TrimSpace(m[1]))
		switch {
		case found:
			return classify(text, ExtractSuccess)
		case err != nil:
			return classify(trimmed, ExtractMalformedJSON)
		}
		// Valid JSON without a "text" key: fall back to the raw payload.
		return classify(trimmed, ExtractSuccess)
	}

	// Some responses prefix the object with a bare "json" line even
	// without fences.
	candidate := strings.TrimPrefix(trimmed, "json\n")

	text, found, err := textField(candidate)
	switch {
	case found:
		return classify(text, ExtractSuccess)
	case err != nil && strings.HasPrefix(candidate, "{"):
		return classify(trimmed, ExtractMalformedJSON)
	}
	return classify(trimmed, ExtractSuccess)
}

// textField parses s as a JSON object and returns its "text" value.
func textField(s string) (text string, found bool, err error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return "", false, err
	}
	if v, ok := obj["text"].(string); ok {
		return strings.TrimSpace(v), true, nil
	}
	return "", false, nil
}

// classify tags the resolved text, downgrading to Empty when it trims
// to nothing so callers can count empties separately.
func classify(text string, status ExtractionStatus) Extraction {
	text = strings.TrimSpace(text)
	if text == "" {
		return Extraction{Status: ExtractEmpty}
	}
	return Extraction{Status: status, Text: text}
}
