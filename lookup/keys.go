package lookup

import (
	"encoding/json"

	"github.com/placesgw/places-gateway/places"
)

// CacheKey derives the cache key for an operation against a subject with a field list.
// The subject is normalized and the fields sorted first, so "places/ChIJabc" with
// [b,a] and "ChIJabc" with [a,b] land on the same entry. Two requests that would
// produce the same upstream call always produce the same key.
func CacheKey(op places.Operation, subject string, fields []string) string {
	return string(op) + "|" + places.NormalizePlaceID(subject) + "|" + places.SortedFieldString(fields)
}

// rawOrString embeds an upstream body into a JSON envelope: verbatim when it is
// already valid JSON, JSON-quoted otherwise. Provider error bodies are usually JSON,
// but intermediaries can hand back HTML or plain text.
func rawOrString(body []byte) json.RawMessage {
	if len(body) == 0 {
		return json.RawMessage(`""`)
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	quoted, err := json.Marshal(string(body))
	if err != nil {
		return json.RawMessage(`""`)
	}
	return quoted
}
