package cache

import (
	"sort"
	"strings"

	"github.com/sasha-s/go-deadlock"
	"lodestone/engine/library"
	"lodestone/protocol"
)

// Channel is a public chat room keyed by its creation event ID. Metadata is
// attributed to the creator; only the creator, or nobody-yet, may change it.
type Channel struct {
	idHex library.Sha256

	mu                deadlock.Mutex
	creator           *User
	info              protocol.ChannelData
	updatedMetadataAt int64
	notes             map[*Note]struct{}
	hiddenMessages    map[library.Sha256]struct{}
	mutedUsers        map[library.Account]struct{}
}

func newChannel(idHex library.Sha256) *Channel {
	return &Channel{
		idHex:          idHex,
		notes:          make(map[*Note]struct{}),
		hiddenMessages: make(map[library.Sha256]struct{}),
		mutedUsers:     make(map[library.Account]struct{}),
	}
}

func (c *Channel) IDHex() library.Sha256 { return c.idHex }

func (c *Channel) Creator() *User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.creator
}

func (c *Channel) Info() (protocol.ChannelData, int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info, c.updatedMetadataAt
}

// updateChannelInfo replaces the metadata. The caller enforces both the
// strictly-newer gate and the creator authority rule.
func (c *Channel) updateChannelInfo(creator *User, info protocol.ChannelData, updatedAt int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creator = creator
	c.info = info
	c.updatedMetadataAt = updatedAt
}

func (c *Channel) AddNote(note *Note) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes[note] = struct{}{}
	note.setChannel(c)
}

func (c *Channel) RemoveNote(note *Note) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.notes, note)
}

func (c *Channel) Notes() []*Note {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Note, 0, len(c.notes))
	for n := range c.notes {
		out = append(out, n)
	}
	return out
}

func (c *Channel) HideMessage(id library.Sha256) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hiddenMessages[id] = struct{}{}
}

func (c *Channel) IsMessageHidden(id library.Sha256) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, hidden := c.hiddenMessages[id]
	return hidden
}

func (c *Channel) MuteUser(pubkey library.Account) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mutedUsers[pubkey] = struct{}{}
}

func (c *Channel) IsUserMuted(pubkey library.Account) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, muted := c.mutedUsers[pubkey]
	return muted
}

func (c *Channel) anyNameStartsWith(prefix string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	lower := strings.ToLower(prefix)
	return len(c.info.Name) > 0 && strings.Contains(strings.ToLower(c.info.Name), lower)
}

// pruneOldAndHiddenMessages returns the chat messages to evict: everything
// hidden or authored by a muted user, plus anything beyond the newest
// maxMessages visible ones. Channel create/metadata notes are never evicted.
func (c *Channel) pruneOldAndHiddenMessages(maxMessages int) []*Note {
	c.mu.Lock()
	defer c.mu.Unlock()

	var messages []*Note
	var toRemove []*Note
	for n := range c.notes {
		event := n.Event()
		if event == nil || event.Kind != protocol.KindChannelMessage {
			continue
		}
		if _, hidden := c.hiddenMessages[n.IDHex()]; hidden {
			toRemove = append(toRemove, n)
			continue
		}
		if _, muted := c.mutedUsers[event.PubKey]; muted {
			toRemove = append(toRemove, n)
			continue
		}
		messages = append(messages, n)
	}

	sort.Slice(messages, func(i, j int) bool {
		a, _ := messages[i].CreatedAt()
		b, _ := messages[j].CreatedAt()
		return a > b
	})
	if len(messages) > maxMessages {
		toRemove = append(toRemove, messages[maxMessages:]...)
	}
	return toRemove
}
