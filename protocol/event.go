package protocol

import (
	"encoding/json"
	"fmt"
)

// Event is the immutable content-addressed record every relay speaks. Field
// order and naming follow the wire object; once constructed an Event is never
// mutated, replaceable kinds are superseded by a whole new Event instead.
type Event struct {
	ID        string `json:"id"`
	PubKey    string `json:"pubkey"`
	CreatedAt int64  `json:"created_at"`
	Kind      int    `json:"kind"`
	Tags      Tags   `json:"tags"`
	Content   string `json:"content"`
	Sig       string `json:"sig"`
}

// Tag is an ordered list of strings; the first element is the type marker.
type Tag []string

type Tags []Tag

func (e Event) String() string {
	return fmt.Sprintf("event %s kind %d by %s", e.ID, e.Kind, e.PubKey)
}

func (e Event) ToJSON() string {
	b, err := json.Marshal(e)
	if err != nil {
		return ""
	}
	return string(b)
}

// EventFromJSON parses a wire event object. It does not validate the ID or
// signature, CheckSignature does that.
func EventFromJSON(raw string) (Event, error) {
	var e Event
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Event{}, err
	}
	if e.Tags == nil {
		e.Tags = Tags{}
	}
	return e, nil
}

// Value returns the payload of the tag (the second element), or "" when the
// tag is malformed. Tags come from untrusted input, missing elements degrade
// to absent rather than failing.
func (t Tag) Value() string {
	if len(t) < 2 {
		return ""
	}
	return t[1]
}

// Key returns the tag's type marker, or "" for an empty tag.
func (t Tag) Key() string {
	if len(t) < 1 {
		return ""
	}
	return t[0]
}

// StartsWith reports whether the tag begins with the given prefix elements.
func (t Tag) StartsWith(prefix []string) bool {
	if len(prefix) > len(t) {
		return false
	}
	for i, s := range prefix {
		if t[i] != s {
			return false
		}
	}
	return true
}

// GetFirst returns the first tag whose type marker matches key.
func (ts Tags) GetFirst(key string) (Tag, bool) {
	for _, tag := range ts {
		if tag.Key() == key {
			return tag, true
		}
	}
	return nil, false
}

// Values returns the payloads of every well formed tag with the given key.
func (ts Tags) Values(key string) (vals []string) {
	for _, tag := range ts {
		if tag.Key() == key && len(tag) > 1 {
			vals = append(vals, tag[1])
		}
	}
	return
}
