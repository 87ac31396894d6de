package protocol

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Coordinate identifies a parameterized replaceable logical entity across
// many physical events: only the newest event per coordinate is retained.
type Coordinate struct {
	Kind   int
	PubKey string
	DTag   string
}

// ParseCoordinate parses the "kind:pubkey:dtag" form carried by "a" tags.
// The dtag may itself contain colons, so only the first two separators split.
func ParseCoordinate(s string) (Coordinate, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 {
		return Coordinate{}, fmt.Errorf("%s is not a kind:pubkey:dtag coordinate", s)
	}
	kind, err := strconv.Atoi(parts[0])
	if err != nil {
		return Coordinate{}, fmt.Errorf("coordinate kind is not a number: %w", err)
	}
	if len(parts[1]) != 64 {
		return Coordinate{}, fmt.Errorf("coordinate pubkey must be 32 bytes of hex")
	}
	if _, err := hex.DecodeString(parts[1]); err != nil {
		return Coordinate{}, fmt.Errorf("coordinate pubkey is not hex: %w", err)
	}
	return Coordinate{Kind: kind, PubKey: parts[1], DTag: parts[2]}, nil
}

// IsCoordinate reports whether s parses as an addressable coordinate.
func IsCoordinate(s string) bool {
	_, err := ParseCoordinate(s)
	return err == nil
}

// Tag returns the canonical string form used as the registry key. Relay hints
// never participate in the key.
func (c Coordinate) Tag() string {
	return fmt.Sprintf("%d:%s:%s", c.Kind, c.PubKey, c.DTag)
}

// DTag returns the event's parameterized-replaceable discriminator, or ""
// when absent (absent and empty are the same coordinate).
func (e Event) DTag() string {
	if tag, ok := e.Tags.GetFirst("d"); ok {
		return tag.Value()
	}
	return ""
}

// Address returns the coordinate this event occupies. Only meaningful for
// parameterized replaceable kinds.
func (e Event) Address() Coordinate {
	return Coordinate{Kind: e.Kind, PubKey: e.PubKey, DTag: e.DTag()}
}

// TaggedAddresses returns every well formed coordinate referenced by "a"
// tags. Malformed references are dropped.
func (e Event) TaggedAddresses() (addrs []Coordinate) {
	for _, tag := range e.Tags {
		if tag.Key() != "a" {
			continue
		}
		addr, err := ParseCoordinate(tag.Value())
		if err != nil {
			continue
		}
		addrs = append(addrs, addr)
	}
	return
}
