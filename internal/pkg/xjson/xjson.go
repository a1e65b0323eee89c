// Package xjson holds JSON helpers for handling untrusted model output.
package xjson

import (
	"encoding/json"

	"github.com/kaptinlin/jsonrepair"
)

var (
	emptyRawMessage = json.RawMessage("{}")
	nullRawMessage  = json.RawMessage("null")
)

// SafeJSONRawMessage coerces arbitrary model output into valid JSON.
// Valid input passes through byte-identical; broken JSON goes through a
// repair pass; anything unrecoverable is wrapped as a JSON string literal.
func SafeJSONRawMessage(s string) json.RawMessage {
	if s == "" {
		return emptyRawMessage
	}

	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}

	if repaired, err := jsonrepair.JSONRepair(s); err == nil && json.Valid([]byte(repaired)) {
		return json.RawMessage(repaired)
	}

	b, err := json.Marshal(s)
	if err != nil {
		return nullRawMessage
	}

	return json.RawMessage(b)
}
