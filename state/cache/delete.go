package cache

// removeNote reverts every index contribution the note made and drops it
// from the registry. Deletion and both prune passes share this path so the
// cascade logic exists exactly once; nothing may free an entity while a
// back-reference still points at it, which is why the reverts run first.
func (c *Cache) removeNote(n *Note) {
	if author := n.Author(); author != nil {
		author.RemoveNote(n)
	}

	// reverts the contributions made to mentioned users
	if event := n.Event(); event != nil {
		for _, pk := range event.TaggedUsers() {
			if u := c.ResolveUser(pk); u != nil {
				u.RemoveReport(n)
				u.RemoveZap(n)
			}
		}
	}

	// reverts the contributions made to every reply target
	for _, masterNote := range n.ReplyTo() {
		masterNote.RemoveReply(n)
		masterNote.RemoveBoost(n)
		masterNote.RemoveReaction(n)
		masterNote.RemoveZap(n)
		masterNote.RemoveReport(n)
	}

	if ch := n.Channel(); ch != nil {
		ch.RemoveNote(n)
	}

	if _, addressable := n.Address(); addressable {
		c.addressablesMu.Lock()
		delete(c.addressables, n.IDHex())
		c.addressablesMu.Unlock()
		return
	}
	c.notesMu.Lock()
	delete(c.notes, n.IDHex())
	c.notesMu.Unlock()
}
