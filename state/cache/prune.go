package cache

import (
	"fmt"

	"lodestone/engine/library"
)

// PruneOldAndHiddenMessages bounds per-channel memory: each channel keeps
// only its newest visible messages; hidden messages and messages from muted
// users go regardless of age. Eviction reverts back-references through the
// same path as deletion.
func (c *Cache) PruneOldAndHiddenMessages() {
	c.channelsMu.Lock()
	channels := make([]*Channel, 0, len(c.channels))
	for _, ch := range c.channels {
		channels = append(channels, ch)
	}
	c.channelsMu.Unlock()

	var removed int
	for _, ch := range channels {
		toRemove := ch.pruneOldAndHiddenMessages(c.policy.maxMessagesPerChannel)
		for _, n := range toRemove {
			c.removeNote(n)
		}
		removed += len(toRemove)
	}
	if removed > 0 {
		library.LogCLI(fmt.Sprintf("prune: %d channel messages removed", removed), 3)
		c.invalidate()
	}
}

// PruneHiddenUsers drops every note authored by a user in the hidden set,
// reverting all of their contributions.
func (c *Cache) PruneHiddenUsers() {
	var toRemove []*Note
	for _, pk := range c.HiddenUsers() {
		u := c.ResolveUser(pk)
		if u == nil {
			continue
		}
		toRemove = append(toRemove, u.clearNotes()...)
	}

	for _, n := range toRemove {
		c.removeNote(n)
	}
	if len(toRemove) > 0 {
		library.LogCLI(fmt.Sprintf("prune: %d notes removed because their authors are hidden", len(toRemove)), 3)
		c.invalidate()
	}
}
