// Package favorites maintains the per-user set of favorite recipe ids,
// synchronized with the active identity and a key-value persistence layer.
package favorites

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// ID is a canonical recipe identifier. Provider ids are numeric, but ids
// arriving from persisted data or URL paths may be strings; canonicalizing
// in one place keeps "5" and 5 from becoming distinct set members.
type ID string

// CanonicalID normalizes a raw identifier: numeric strings collapse to
// their plain decimal form, anything else is kept verbatim after trimming.
func CanonicalID(raw string) ID {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return ID(strconv.FormatInt(n, 10))
	}
	return ID(raw)
}

// NumericID builds an ID from a provider-supplied numeric id
func NumericID(n int64) ID {
	return ID(strconv.FormatInt(n, 10))
}

// Int64 returns the numeric value of the id and whether it has one
func (id ID) Int64() (int64, bool) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// DecodeIDs parses a persisted favorites array. Legacy payloads mix JSON
// numbers and strings, so every element is canonicalized on the way in;
// elements of any other type are dropped.
func DecodeIDs(data []byte) ([]ID, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	ids := make([]ID, 0, len(raw))
	for _, v := range raw {
		switch t := v.(type) {
		case string:
			ids = append(ids, CanonicalID(t))
		case json.Number:
			ids = append(ids, CanonicalID(t.String()))
		}
	}
	return ids, nil
}

// encodeIDs marshals ids as a sorted JSON string array
func encodeIDs(ids []ID) ([]byte, error) {
	sortIDs(ids)
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return json.Marshal(out)
}

// sortIDs orders numerically where possible, lexicographically otherwise
func sortIDs(ids []ID) {
	sort.Slice(ids, func(i, j int) bool {
		a, aok := ids[i].Int64()
		b, bok := ids[j].Int64()
		if aok && bok {
			return a < b
		}
		if aok != bok {
			return aok // numeric ids first
		}
		return ids[i] < ids[j]
	})
}
