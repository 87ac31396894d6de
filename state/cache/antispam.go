package cache

import (
	"time"

	"github.com/sasha-s/go-deadlock"
	"lodestone/engine/library"
	"lodestone/protocol"
)

// AntiSpamFilter flags events that repeat the same content under different
// IDs inside a time window. It is a heuristic gate, not protocol: a flagged
// event never creates a note, it only bumps the source's spam counter.
type AntiSpamFilter struct {
	mu     deadlock.Mutex
	window time.Duration
	now    func() int64

	// content hash -> id and wall time of the first sighting
	recentMessages map[library.Sha256]contentSighting
	flaggedIDs     map[library.Sha256]struct{}
}

type contentSighting struct {
	eventID library.Sha256
	seenAt  int64
}

// Contents shorter than this are everyday chatter ("gm") that collides
// constantly without being spam.
const minSpamCheckLength = 50

func newAntiSpamFilter(window time.Duration) *AntiSpamFilter {
	return &AntiSpamFilter{
		window:         window,
		now:            func() int64 { return time.Now().Unix() },
		recentMessages: make(map[library.Sha256]contentSighting),
		flaggedIDs:     make(map[library.Sha256]struct{}),
	}
}

// isSpam reports whether the event repeats recently seen content under a new
// ID. Re-delivery of an already flagged event stays flagged; re-delivery of
// the event that owns the content is never flagged.
func (f *AntiSpamFilter) isSpam(event *protocol.Event) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, flagged := f.flaggedIDs[event.ID]; flagged {
		return true
	}
	if len(event.Content) < minSpamCheckLength {
		return false
	}

	now := f.now()
	hash := library.Sha256Sum(event.Content)
	sighting, seen := f.recentMessages[hash]
	if seen && now-sighting.seenAt > int64(f.window/time.Second) {
		seen = false
	}
	if seen && sighting.eventID != event.ID {
		f.flaggedIDs[event.ID] = struct{}{}
		return true
	}
	f.recentMessages[hash] = contentSighting{eventID: event.ID, seenAt: now}
	return false
}
