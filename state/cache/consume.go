package cache

import (
	"fmt"

	"golang.org/x/exp/slices"
	"lodestone/engine/library"
	"lodestone/protocol"
)

// Consume is the sole ingestion entry point. The transport guarantees the
// event already passed ID and signature validation; everything after this
// line treats the content as honest-shaped but semantically adversarial.
// relay carries the source identity and is "" for events replayed from local
// storage, which skips provenance bookkeeping.
func (c *Cache) Consume(event *protocol.Event, relay library.RelayURL) {
	if event == nil {
		return
	}
	if len(relay) > 0 {
		c.countRelayEvent(relay, event.CreatedAt)
	}
	switch event.Kind {
	case protocol.KindMetadata:
		c.consumeMetadata(event)
	case protocol.KindTextNote:
		c.consumeTextNote(event, relay)
	case protocol.KindRecommendRelay:
		c.consumeRecommendRelay(event)
	case protocol.KindContactList:
		c.consumeContactList(event)
	case protocol.KindPrivateDM:
		c.consumePrivateDM(event, relay)
	case protocol.KindDeletion:
		c.consumeDeletion(event)
	case protocol.KindRepost:
		c.consumeRepost(event)
	case protocol.KindReaction:
		c.consumeReaction(event)
	case protocol.KindBadgeAward:
		c.consumeBadgeAward(event)
	case protocol.KindChannelCreate:
		c.consumeChannelCreate(event)
	case protocol.KindChannelMetadata:
		c.consumeChannelMetadata(event)
	case protocol.KindChannelMessage:
		c.consumeChannelMessage(event, relay)
	case protocol.KindChannelHideMessage:
		c.consumeChannelHideMessage(event)
	case protocol.KindChannelMuteUser:
		c.consumeChannelMuteUser(event)
	case protocol.KindReport:
		c.consumeReport(event, relay)
	case protocol.KindZapRequest:
		c.consumeZapRequest(event)
	case protocol.KindZap:
		c.consumeZap(event)
	case protocol.KindBadgeProfiles:
		c.consumeBadgeProfiles(event)
	case protocol.KindBadgeDefinition:
		c.consumeBadgeDefinition(event)
	case protocol.KindLongTextNote:
		c.consumeLongTextNote(event, relay)
	default:
		library.LogCLI(fmt.Sprintf("no handler for kind %d, event %s ignored", event.Kind, event.ID), 3)
	}
}

func (c *Cache) countRelayEvent(relay library.RelayURL, eventTime int64) {
	c.relaysMu.Lock()
	defer c.relaysMu.Unlock()
	status, ok := c.relays[relay]
	if !ok {
		status = &RelayStatus{}
		c.relays[relay] = status
	}
	status.EventCounter++
	if eventTime > status.LastSeen {
		status.LastSeen = eventTime
	}
}

func (c *Cache) countRelaySpam(relay library.RelayURL) {
	if len(relay) == 0 {
		return
	}
	c.relaysMu.Lock()
	defer c.relaysMu.Unlock()
	status, ok := c.relays[relay]
	if !ok {
		status = &RelayStatus{}
		c.relays[relay] = status
	}
	status.SpamCounter++
}

func (c *Cache) recordProvenance(event *protocol.Event, relay library.RelayURL, author *User, note *Note) {
	if len(relay) == 0 {
		return
	}
	author.AddRelayBeingUsed(relay, event.CreatedAt)
	note.AddRelay(relay)
}

// resolveReferences turns a list of untrusted id/coordinate strings into
// notes, silently dropping whatever does not parse.
func (c *Cache) resolveReferences(refs []string) (out []*Note) {
	for _, ref := range refs {
		if n := c.CheckGetOrCreateNote(ref); n != nil {
			out = append(out, n)
		}
	}
	return
}

func (c *Cache) consumeMetadata(event *protocol.Event) {
	user := c.GetOrCreateUser(event.PubKey)
	info, updatedAt := user.Profile()
	if info != nil && event.CreatedAt <= updatedAt {
		return // older data, does nothing
	}
	meta, err := protocol.ParseProfileMetadata(event.Content)
	if err != nil {
		library.LogCLI(fmt.Sprintf("metadata event %s: %s", event.ID, err.Error()), 2)
		return
	}
	user.UpdateUserInfo(meta, event)
	c.invalidate()
}

func (c *Cache) consumeTextNote(event *protocol.Event, relay library.RelayURL) {
	note := c.GetOrCreateNote(event.ID)
	author := c.GetOrCreateUser(event.PubKey)
	c.recordProvenance(event, relay, author, note)

	// Already processed this event.
	if note.Event() != nil {
		return
	}

	if c.antiSpam.isSpam(event) {
		c.countRelaySpam(relay)
		return
	}

	replyTo := c.resolveReferences(event.TagsWithoutCitations())
	note.LoadEvent(event, author, replyTo)

	author.AddNote(note)
	for _, masterNote := range replyTo {
		masterNote.AddReply(note)
	}
	c.invalidate()
}

func (c *Cache) consumeLongTextNote(event *protocol.Event, relay library.RelayURL) {
	note := c.GetOrCreateAddressableNote(event.Address())
	author := c.GetOrCreateUser(event.PubKey)
	c.recordProvenance(event, relay, author, note)

	// Already processed this exact event.
	if existing := note.Event(); existing != nil && existing.ID == event.ID {
		return
	}

	if c.antiSpam.isSpam(event) {
		c.countRelaySpam(relay)
		return
	}

	// Only the newest event owns the coordinate. Equal timestamps keep the
	// first arrival.
	if current, ok := note.CreatedAt(); ok && event.CreatedAt <= current {
		return
	}

	replyTo := c.resolveReferences(event.TagsWithoutCitations())
	note.LoadEvent(event, author, replyTo)
	author.AddNote(note)
	c.invalidate()
}

func (c *Cache) consumeRecommendRelay(event *protocol.Event) {
	if len(event.Content) == 0 {
		return
	}
	author := c.GetOrCreateUser(event.PubKey)
	author.AddRecommendedRelay(event.Content)
}

func (c *Cache) consumeContactList(event *protocol.Event) {
	user := c.GetOrCreateUser(event.PubKey)
	follows := event.FollowKeys()

	// A relay replaying a stale or empty list must not clobber a richer
	// local one.
	current := user.LatestContactList()
	if current != nil && event.CreatedAt <= current.CreatedAt {
		return
	}
	if len(follows) == 0 {
		return
	}
	user.UpdateContactList(event)
	c.invalidate()
}

func (c *Cache) consumePrivateDM(event *protocol.Event, relay library.RelayURL) {
	note := c.GetOrCreateNote(event.ID)
	author := c.GetOrCreateUser(event.PubKey)
	c.recordProvenance(event, relay, author, note)

	// Already processed this event.
	if note.Event() != nil {
		return
	}

	recipient := c.CheckGetOrCreateUser(event.RecipientPubKey())
	repliesTo := c.resolveReferences(event.ReplyTos())
	note.LoadEvent(event, author, repliesTo)

	if recipient != nil {
		author.AddMessage(recipient, note)
		recipient.AddMessage(author, note)
	}
	c.invalidate()
}

func (c *Cache) consumeDeletion(event *protocol.Event) {
	var deletedAtLeastOne bool
	for _, id := range event.DeletedEvents() {
		c.notesMu.Lock()
		deleteNote := c.notes[id]
		c.notesMu.Unlock()
		if deleteNote == nil {
			continue
		}
		// must be the same author
		author := deleteNote.Author()
		if author == nil || author.PubkeyHex() != event.PubKey {
			continue
		}
		c.removeNote(deleteNote)
		deletedAtLeastOne = true
	}
	if deletedAtLeastOne {
		c.invalidate()
	}
}

func (c *Cache) consumeRepost(event *protocol.Event) {
	note := c.GetOrCreateNote(event.ID)

	// Already processed this event.
	if note.Event() != nil {
		return
	}

	author := c.GetOrCreateUser(event.PubKey)
	repliesTo := c.resolveReferences(event.ReplyTos())
	for _, addr := range event.TaggedAddresses() {
		repliesTo = append(repliesTo, c.GetOrCreateAddressableNote(addr))
	}

	note.LoadEvent(event, author, repliesTo)
	author.AddNote(note)
	for _, boosted := range repliesTo {
		boosted.AddBoost(note)
	}
	c.invalidate()
}

func (c *Cache) consumeReaction(event *protocol.Event) {
	note := c.GetOrCreateNote(event.ID)

	// Already processed this event.
	if note.Event() != nil {
		return
	}

	author := c.GetOrCreateUser(event.PubKey)
	for _, pk := range event.TaggedUsers() {
		c.CheckGetOrCreateUser(pk)
	}
	repliesTo := c.resolveReferences(event.ReplyTos())
	for _, addr := range event.TaggedAddresses() {
		repliesTo = append(repliesTo, c.GetOrCreateAddressableNote(addr))
	}

	note.LoadEvent(event, author, repliesTo)

	if slices.Contains(c.policy.positiveReactions, event.Content) {
		for _, target := range repliesTo {
			target.AddReaction(note)
		}
		c.invalidate()
		return
	}
	if slices.Contains(c.policy.flagReactions, event.Content) {
		for _, target := range repliesTo {
			target.AddReport(note)
		}
		c.invalidate()
	}
}

func (c *Cache) consumeReport(event *protocol.Event, relay library.RelayURL) {
	note := c.GetOrCreateNote(event.ID)
	author := c.GetOrCreateUser(event.PubKey)
	c.recordProvenance(event, relay, author, note)

	// Already processed this event.
	if note.Event() != nil {
		return
	}

	var mentions []*User
	for _, reported := range event.ReportedAuthors() {
		if u := c.CheckGetOrCreateUser(reported.Key); u != nil {
			mentions = append(mentions, u)
		}
	}
	var repliesTo []*Note
	for _, reported := range event.ReportedPosts() {
		if n := c.CheckGetOrCreateNote(reported.Key); n != nil {
			repliesTo = append(repliesTo, n)
		}
	}
	for _, addr := range event.TaggedAddresses() {
		repliesTo = append(repliesTo, c.GetOrCreateAddressableNote(addr))
	}

	note.LoadEvent(event, author, repliesTo)

	// A report with no post target lands on the mentioned users instead.
	if len(repliesTo) == 0 {
		for _, u := range mentions {
			u.AddReport(note)
		}
	}
	for _, target := range repliesTo {
		target.AddReport(note)
	}
	c.invalidate()
}

func (c *Cache) consumeChannelCreate(event *protocol.Event) {
	channel := c.GetOrCreateChannel(event.ID)
	author := c.GetOrCreateUser(event.PubKey)
	if _, updatedAt := channel.Info(); event.CreatedAt <= updatedAt {
		return // older data, does nothing
	}
	if creator := channel.Creator(); creator != nil && creator != author {
		return
	}
	channel.updateChannelInfo(author, event.ChannelInfo(), event.CreatedAt)

	note := c.GetOrCreateNote(event.ID)
	channel.AddNote(note)
	note.LoadEvent(event, author, nil)
	c.invalidate()
}

func (c *Cache) consumeChannelMetadata(event *protocol.Event) {
	channelID := event.ChannelID()
	if len(channelID) == 0 {
		return
	}
	channel := c.CheckGetOrCreateChannel(channelID)
	if channel == nil {
		return
	}
	author := c.GetOrCreateUser(event.PubKey)
	if _, updatedAt := channel.Info(); event.CreatedAt <= updatedAt {
		return
	}
	// Only the creator, or an as-yet-unset creator, may alter channel
	// identity.
	creator := channel.Creator()
	if creator == nil {
		creator = author
	} else if creator != author {
		return
	}
	channel.updateChannelInfo(creator, event.ChannelInfo(), event.CreatedAt)

	note := c.GetOrCreateNote(event.ID)
	channel.AddNote(note)
	note.LoadEvent(event, author, nil)
	c.invalidate()
}

func (c *Cache) consumeChannelMessage(event *protocol.Event, relay library.RelayURL) {
	channelID := event.ChannelID()
	if len(channelID) == 0 {
		return // no resolvable parent channel, dropped
	}
	channel := c.CheckGetOrCreateChannel(channelID)
	if channel == nil {
		return
	}

	note := c.GetOrCreateNote(event.ID)
	channel.AddNote(note)

	author := c.GetOrCreateUser(event.PubKey)
	c.recordProvenance(event, relay, author, note)

	// Already processed this event.
	if note.Event() != nil {
		return
	}

	if c.antiSpam.isSpam(event) {
		c.countRelaySpam(relay)
		return
	}

	for _, pk := range event.TaggedUsers() {
		c.CheckGetOrCreateUser(pk)
	}
	var replyTo []*Note
	for _, n := range c.resolveReferences(event.ChannelReplyTos()) {
		// Replying "to" the channel create event means replying to the room,
		// not to a message.
		if e := n.Event(); e != nil && e.Kind == protocol.KindChannelCreate {
			continue
		}
		replyTo = append(replyTo, n)
	}

	note.LoadEvent(event, author, replyTo)
	author.AddNote(note)
	for _, masterNote := range replyTo {
		masterNote.AddReply(note)
	}
	c.invalidate()
}

func (c *Cache) consumeChannelHideMessage(event *protocol.Event) {
	for _, id := range event.ReplyTos() {
		note := c.Resolve(id)
		if note == nil {
			continue
		}
		channel := note.Channel()
		if channel == nil {
			continue
		}
		// Moderation is the creator's call; anything else is ignored.
		creator := channel.Creator()
		if creator == nil || creator.PubkeyHex() != event.PubKey {
			continue
		}
		channel.HideMessage(id)
	}
}

func (c *Cache) consumeChannelMuteUser(event *protocol.Event) {
	channelID := event.ChannelID()
	if len(channelID) == 0 {
		return
	}
	channel := c.ResolveChannel(channelID)
	if channel == nil {
		return
	}
	creator := channel.Creator()
	if creator == nil || creator.PubkeyHex() != event.PubKey {
		return
	}
	for _, pk := range event.TaggedUsers() {
		if library.ValidHexKey(pk) {
			channel.MuteUser(pk)
		}
	}
}

func (c *Cache) consumeBadgeAward(event *protocol.Event) {
	note := c.GetOrCreateNote(event.ID)

	// Already processed this event.
	if note.Event() != nil {
		return
	}

	author := c.GetOrCreateUser(event.PubKey)
	for _, pk := range event.Awardees() {
		c.CheckGetOrCreateUser(pk)
	}
	var awardDefinitions []*Note
	for _, addr := range event.TaggedAddresses() {
		awardDefinitions = append(awardDefinitions, c.GetOrCreateAddressableNote(addr))
	}

	note.LoadEvent(event, author, awardDefinitions)

	// Replies of a badge definition are its award events.
	for _, definition := range awardDefinitions {
		definition.AddReply(note)
	}
	c.invalidate()
}

func (c *Cache) consumeBadgeDefinition(event *protocol.Event) {
	note := c.GetOrCreateAddressableNote(event.Address())
	author := c.GetOrCreateUser(event.PubKey)

	if existing := note.Event(); existing != nil && existing.ID == event.ID {
		return
	}
	if current, ok := note.CreatedAt(); ok && event.CreatedAt <= current {
		return
	}
	note.LoadEvent(event, author, nil)
	c.invalidate()
}

func (c *Cache) consumeBadgeProfiles(event *protocol.Event) {
	note := c.GetOrCreateAddressableNote(event.Address())
	author := c.GetOrCreateUser(event.PubKey)

	if existing := note.Event(); existing != nil && existing.ID == event.ID {
		return
	}
	if current, ok := note.CreatedAt(); ok && event.CreatedAt <= current {
		return
	}

	replyTo := c.resolveReferences(event.BadgeAwardEvents())
	for _, addr := range event.TaggedAddresses() {
		replyTo = append(replyTo, c.GetOrCreateAddressableNote(addr))
	}

	note.LoadEvent(event, author, replyTo)
	author.UpdateAcceptedBadges(note)
	c.invalidate()
}

func (c *Cache) consumeZapRequest(event *protocol.Event) {
	note := c.GetOrCreateNote(event.ID)

	// Already processed this event.
	if note.Event() != nil {
		return
	}

	author := c.GetOrCreateUser(event.PubKey)
	var mentions []*User
	for _, pk := range event.TaggedUsers() {
		if u := c.CheckGetOrCreateUser(pk); u != nil {
			mentions = append(mentions, u)
		}
	}
	repliesTo := c.resolveReferences(event.ReplyTos())
	for _, addr := range event.TaggedAddresses() {
		repliesTo = append(repliesTo, c.GetOrCreateAddressableNote(addr))
	}

	note.LoadEvent(event, author, repliesTo)

	for _, target := range repliesTo {
		target.AddZap(note, nil)
	}
	for _, u := range mentions {
		u.AddZap(note, nil)
	}
	c.invalidate()
}

func (c *Cache) consumeZap(event *protocol.Event) {
	note := c.GetOrCreateNote(event.ID)

	// Already processed this event.
	if note.Event() != nil {
		return
	}

	request, requestErr := event.ContainedPost()

	author := c.GetOrCreateUser(event.PubKey)
	var mentions []*User
	for _, pk := range event.TaggedUsers() {
		if u := c.CheckGetOrCreateUser(pk); u != nil {
			mentions = append(mentions, u)
		}
	}
	repliesTo := c.resolveReferences(event.ReplyTos())
	for _, addr := range event.TaggedAddresses() {
		repliesTo = append(repliesTo, c.GetOrCreateAddressableNote(addr))
	}
	if requestErr == nil {
		for _, addr := range request.TaggedAddresses() {
			repliesTo = append(repliesTo, c.GetOrCreateAddressableNote(addr))
		}
	}

	note.LoadEvent(event, author, repliesTo)

	// A receipt without its request cannot be attributed or deduplicated.
	if requestErr != nil {
		library.LogCLI(fmt.Sprintf("zap receipt %s has no usable zap request: %s", event.ID, requestErr.Error()), 1)
		return
	}
	if !library.ValidHexKey(request.ID) {
		library.LogCLI(fmt.Sprintf("zap receipt %s embeds a request with a malformed ID", event.ID), 1)
		return
	}
	zapRequest := c.GetOrCreateNote(request.ID)

	for _, target := range repliesTo {
		target.AddZap(zapRequest, note)
	}
	for _, u := range mentions {
		u.AddZap(zapRequest, note)
	}
	c.invalidate()
}
