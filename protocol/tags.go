package protocol

import (
	"regexp"
	"strconv"
)

// Accessors over the tag list. All of them are pure functions over untrusted
// input: malformed tags degrade to absent, never to a failure.

var citationPattern = regexp.MustCompile(`#\[([0-9]+)\]`)

// ReplyTos returns the IDs of every event referenced with an "e" tag.
func (e Event) ReplyTos() []string {
	return e.Tags.Values("e")
}

// TaggedUsers returns the pubkeys of every user referenced with a "p" tag.
func (e Event) TaggedUsers() []string {
	return e.Tags.Values("p")
}

// FindCitations returns the "e"/"a" references that appear inline in the
// content as #[n] markers. Citations are mentions, not replies.
func (e Event) FindCitations() map[string]struct{} {
	citations := make(map[string]struct{})
	for _, match := range citationPattern.FindAllStringSubmatch(e.Content, -1) {
		i, err := strconv.Atoi(match[1])
		if err != nil || i < 0 || i >= len(e.Tags) {
			continue
		}
		tag := e.Tags[i]
		if (tag.Key() == "e" || tag.Key() == "a") && len(tag) > 1 {
			citations[tag[1]] = struct{}{}
		}
	}
	return citations
}

// TagsWithoutCitations returns the reply targets of a text note: every "e"
// reference plus every "a" coordinate, minus anything only cited inline.
func (e Event) TagsWithoutCitations() []string {
	repliesTo := e.ReplyTos()
	var tagAddresses []string
	for _, addr := range e.TaggedAddresses() {
		tagAddresses = append(tagAddresses, addr.Tag())
	}
	if len(repliesTo) == 0 && len(tagAddresses) == 0 {
		return nil
	}

	citations := e.FindCitations()
	if len(citations) == 0 {
		return append(repliesTo, tagAddresses...)
	}

	var out []string
	for _, id := range repliesTo {
		if _, cited := citations[id]; !cited {
			out = append(out, id)
		}
	}
	return out
}

// ChannelID resolves the channel a kind 42/43/44 event belongs to: the "e"
// tag marked "root", falling back to the first "e" tag for old clients.
func (e Event) ChannelID() string {
	for _, tag := range e.Tags {
		if tag.Key() == "e" && len(tag) > 3 && tag[3] == "root" {
			return tag.Value()
		}
	}
	if tag, ok := e.Tags.GetFirst("e"); ok {
		return tag.Value()
	}
	return ""
}

// ChannelReplyTos returns the in-channel reply targets: every "e" reference
// except the channel itself.
func (e Event) ChannelReplyTos() (out []string) {
	channel := e.ChannelID()
	for _, id := range e.ReplyTos() {
		if id != channel {
			out = append(out, id)
		}
	}
	return
}

// DeletedEvents returns the event IDs a kind 5 asks to remove.
func (e Event) DeletedEvents() []string {
	return e.Tags.Values("e")
}

// FollowKeys returns the unverified follow set of a contact list.
func (e Event) FollowKeys() []string {
	return e.Tags.Values("p")
}

// Awardees returns the pubkeys a badge award is granted to.
func (e Event) Awardees() []string {
	return e.Tags.Values("p")
}

// BadgeAwardEvents returns the award event IDs accepted by a badge profile.
func (e Event) BadgeAwardEvents() []string {
	return e.Tags.Values("e")
}

// RecipientPubKey returns the counterparty of a private message, or "".
func (e Event) RecipientPubKey() string {
	if tag, ok := e.Tags.GetFirst("p"); ok {
		return tag.Value()
	}
	return ""
}

// Report types are free text on the wire; unknown values map to ReportSpam.
const (
	ReportExplicit      = "explicit"
	ReportIllegal       = "illegal"
	ReportSpam          = "spam"
	ReportImpersonation = "impersonation"
	ReportNudity        = "nudity"
	ReportProfanity     = "profanity"
)

var knownReportTypes = map[string]struct{}{
	ReportExplicit:      {},
	ReportIllegal:       {},
	ReportSpam:          {},
	ReportImpersonation: {},
	ReportNudity:        {},
	ReportProfanity:     {},
}

// ReportedKey is one target of a report event together with the reason.
type ReportedKey struct {
	Key  string
	Type string
}

func (e Event) defaultReportType() string {
	// Works with old and new structures for report events.
	for _, v := range e.Tags.Values("report") {
		if _, known := knownReportTypes[v]; known {
			return v
		}
	}
	for _, tag := range e.Tags {
		if len(tag) > 2 {
			if _, known := knownReportTypes[tag[2]]; known {
				return tag[2]
			}
		}
	}
	return ReportSpam
}

func (e Event) reportedKeys(marker string) (out []ReportedKey) {
	def := e.defaultReportType()
	for _, tag := range e.Tags {
		if tag.Key() != marker || len(tag) < 2 {
			continue
		}
		t := def
		if len(tag) > 2 {
			if _, known := knownReportTypes[tag[2]]; known {
				t = tag[2]
			}
		}
		out = append(out, ReportedKey{Key: tag[1], Type: t})
	}
	return
}

// ReportedPosts returns the events a kind 1984 flags.
func (e Event) ReportedPosts() []ReportedKey {
	return e.reportedKeys("e")
}

// ReportedAuthors returns the users a kind 1984 flags.
func (e Event) ReportedAuthors() []ReportedKey {
	return e.reportedKeys("p")
}

// Title, Image, Summary, Topics and PublishedAt expose the long-form
// article headers.
func (e Event) Title() string {
	if tag, ok := e.Tags.GetFirst("title"); ok {
		return tag.Value()
	}
	return ""
}

func (e Event) Image() string {
	if tag, ok := e.Tags.GetFirst("image"); ok {
		return tag.Value()
	}
	return ""
}

func (e Event) Summary() string {
	if tag, ok := e.Tags.GetFirst("summary"); ok {
		return tag.Value()
	}
	return ""
}

func (e Event) Topics() []string {
	return e.Tags.Values("t")
}

func (e Event) PublishedAt() (int64, bool) {
	tag, ok := e.Tags.GetFirst("published_at")
	if !ok {
		return 0, false
	}
	ts, err := strconv.ParseInt(tag.Value(), 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

// BadgeName and BadgeThumb expose badge definition headers.
func (e Event) BadgeName() string {
	if tag, ok := e.Tags.GetFirst("name"); ok {
		return tag.Value()
	}
	return ""
}

func (e Event) BadgeThumb() string {
	if tag, ok := e.Tags.GetFirst("thumb"); ok {
		return tag.Value()
	}
	return ""
}

// IdentityClaim is an external identity attestation from a metadata event's
// "i" tags, e.g. "github:somebody" with a proof reference.
type IdentityClaim struct {
	Platform string
	Identity string
	Proof    string
}

func (e Event) IdentityClaims() (claims []IdentityClaim) {
	for _, tag := range e.Tags {
		if tag.Key() != "i" || len(tag) < 3 {
			continue
		}
		parts := splitPlatformIdentity(tag[1])
		if parts == nil {
			continue
		}
		claims = append(claims, IdentityClaim{Platform: parts[0], Identity: parts[1], Proof: tag[2]})
	}
	return
}

func splitPlatformIdentity(s string) []string {
	for i, c := range s {
		if c == ':' {
			if i == 0 || i == len(s)-1 {
				return nil
			}
			return []string{s[:i], s[i+1:]}
		}
	}
	return nil
}
