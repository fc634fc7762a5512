package openreview

import "encoding/json"

// APIVersion selects one of the two OpenReview API generations.
type APIVersion int

const (
	// APIv1 serves older venues; note content fields are plain values.
	APIv1 APIVersion = 1

	// APIv2 serves recent venues; note content fields are {"value": ...} objects.
	APIv2 APIVersion = 2
)

// String returns "v1" or "v2".
func (v APIVersion) String() string {
	if v == APIv2 {
		return "v2"
	}
	return "v1"
}

// notesPage is one page of the /notes endpoint.
type notesPage struct {
	Notes []rawNote `json:"notes"`
	Count int       `json:"count"`
}

// rawNote keeps content undecoded because its shape depends on the API version.
type rawNote struct {
	ID      string                     `json:"id"`
	Content map[string]json.RawMessage `json:"content"`
}

// note is a decoded submission with absent fields left empty.
type note struct {
	ID       string
	Title    string
	Abstract string
	Authors  []string
	Keywords []string
	PDF      string
}

func decodeNote(rn rawNote, version APIVersion) note {
	field := func(name string) json.RawMessage {
		raw, ok := rn.Content[name]
		if !ok {
			return nil
		}
		if version == APIv2 {
			var wrapped struct {
				Value json.RawMessage `json:"value"`
			}
			if err := json.Unmarshal(raw, &wrapped); err != nil {
				return nil
			}
			return wrapped.Value
		}
		return raw
	}

	return note{
		ID:       rn.ID,
		Title:    asString(field("title")),
		Abstract: asString(field("abstract")),
		Authors:  asStrings(field("authors")),
		Keywords: asStrings(field("keywords")),
		PDF:      asString(field("pdf")),
	}
}

func asString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// asStrings accepts a list of strings or a single string.
func asStrings(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		if list == nil {
			return []string{}
		}
		return list
	}
	if s := asString(raw); s != "" {
		return []string{s}
	}
	return []string{}
}
