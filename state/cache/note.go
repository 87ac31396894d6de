package cache

import (
	"github.com/sasha-s/go-deadlock"
	"lodestone/engine/library"
	"lodestone/protocol"
)

// Note wraps at most one accepted event and carries the reversible
// back-reference indices other notes contribute to it. Notes are shared:
// many back-references point at the same instance and its identity must
// survive for as long as it is registered.
//
// An addressable note is the same type keyed by a coordinate instead of an
// event ID: its stored event is overwritten in place when a newer one
// arrives for the coordinate, preserving the pointer everyone else holds.
type Note struct {
	idHex library.Sha256

	mu        deadlock.Mutex
	event     *protocol.Event
	author    *User
	address   *protocol.Coordinate
	replyTo   []*Note
	channel   *Channel
	replies   map[*Note]struct{}
	boosts    map[*Note]struct{}
	reactions map[*Note]struct{}
	reports   map[*Note]struct{}
	zaps      map[*Note]*Note
	relays    map[library.RelayURL]struct{}
}

type AddressableNote = Note

func newNote(idHex library.Sha256) *Note {
	return &Note{
		idHex:     idHex,
		replies:   make(map[*Note]struct{}),
		boosts:    make(map[*Note]struct{}),
		reactions: make(map[*Note]struct{}),
		reports:   make(map[*Note]struct{}),
		zaps:      make(map[*Note]*Note),
		relays:    make(map[library.RelayURL]struct{}),
	}
}

func newAddressableNote(address protocol.Coordinate) *AddressableNote {
	n := newNote(address.Tag())
	n.address = &address
	return n
}

func (n *Note) IDHex() library.Sha256 { return n.idHex }

// Event returns the accepted event, or nil while the note is only known
// through references from other notes.
func (n *Note) Event() *protocol.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.event
}

func (n *Note) Author() *User {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.author
}

// Address returns the coordinate for an addressable note and ok == false for
// a regular one.
func (n *Note) Address() (protocol.Coordinate, bool) {
	if n.address == nil {
		return protocol.Coordinate{}, false
	}
	return *n.address, true
}

// CreatedAt returns the accepted event's timestamp, or ok == false before
// any event was accepted.
func (n *Note) CreatedAt() (int64, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.event == nil {
		return 0, false
	}
	return n.event.CreatedAt, true
}

// LoadEvent accepts an event into the note and establishes its reply set.
// The caller handles idempotence and replaceable gating first.
func (n *Note) LoadEvent(event *protocol.Event, author *User, replyTo []*Note) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.event = event
	n.author = author
	n.replyTo = replyTo
}

// ReplyTo returns the notes this note replies to or cites as targets.
func (n *Note) ReplyTo() []*Note {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Note, len(n.replyTo))
	copy(out, n.replyTo)
	return out
}

func (n *Note) AddRelay(relay library.RelayURL) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.relays[relay] = struct{}{}
}

func (n *Note) Relays() []library.RelayURL {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]library.RelayURL, 0, len(n.relays))
	for r := range n.relays {
		out = append(out, r)
	}
	return out
}

func (n *Note) AddReply(reply *Note) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.replies[reply] = struct{}{}
}

func (n *Note) RemoveReply(reply *Note) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.replies, reply)
}

func (n *Note) AddBoost(boost *Note) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.boosts[boost] = struct{}{}
}

func (n *Note) RemoveBoost(boost *Note) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.boosts, boost)
}

func (n *Note) AddReaction(reaction *Note) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reactions[reaction] = struct{}{}
}

func (n *Note) RemoveReaction(reaction *Note) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.reactions, reaction)
}

func (n *Note) AddReport(report *Note) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports[report] = struct{}{}
}

func (n *Note) RemoveReport(report *Note) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.reports, report)
}

// AddZap records a zap keyed by its request note so that duplicate receipts
// for one request never double count. A receipt fills the slot its request
// opened; a second receipt for the same request is dropped.
func (n *Note) AddZap(zapRequest, zapReceipt *Note) {
	n.mu.Lock()
	defer n.mu.Unlock()
	existing, seen := n.zaps[zapRequest]
	if !seen {
		n.zaps[zapRequest] = zapReceipt
		return
	}
	if existing == nil && zapReceipt != nil {
		n.zaps[zapRequest] = zapReceipt
	}
}

// RemoveZap reverts a zap contribution whether the removed note was the
// request or the receipt.
func (n *Note) RemoveZap(note *Note) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.zaps[note]; ok {
		delete(n.zaps, note)
		return
	}
	for req, receipt := range n.zaps {
		if receipt == note {
			delete(n.zaps, req)
		}
	}
}

func (n *Note) ReplyCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.replies)
}

func (n *Note) BoostCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.boosts)
}

func (n *Note) ReactionCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.reactions)
}

func (n *Note) ReportCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.reports)
}

func (n *Note) ZapCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.zaps)
}

// Reactions returns the reacting notes.
func (n *Note) Reactions() []*Note {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*Note, 0, len(n.reactions))
	for r := range n.reactions {
		out = append(out, r)
	}
	return out
}

// Zaps returns the request to receipt mapping; the receipt is nil while only
// the request has been seen.
func (n *Note) Zaps() map[*Note]*Note {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[*Note]*Note, len(n.zaps))
	for req, receipt := range n.zaps {
		out[req] = receipt
	}
	return out
}

func (n *Note) setChannel(ch *Channel) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.channel = ch
}

// Channel returns the channel a chat message belongs to, nil for everything
// else.
func (n *Note) Channel() *Channel {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.channel
}
