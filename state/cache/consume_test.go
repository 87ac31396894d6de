package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lodestone/protocol"
)

var (
	alice = strings.Repeat("aa", 32)
	bob   = strings.Repeat("bb", 32)
	carol = strings.Repeat("cc", 32)
)

const testRelay = "wss://relay.example.com"

func makeEvent(kind int, pubkey string, createdAt int64, tags protocol.Tags, content string) *protocol.Event {
	e := &protocol.Event{
		PubKey:    pubkey,
		CreatedAt: createdAt,
		Kind:      kind,
		Tags:      tags,
		Content:   content,
	}
	e.ID = e.GetID()
	return e
}

func TestTextNoteIngestion(t *testing.T) {
	c := NewCache()
	ev := makeEvent(protocol.KindTextNote, alice, 100, protocol.Tags{}, "hello world")
	c.Consume(ev, testRelay)

	note := c.Resolve(ev.ID)
	require.NotNil(t, note)
	assert.Equal(t, ev, note.Event())
	require.NotNil(t, note.Author())
	assert.Equal(t, alice, note.Author().PubkeyHex())
	assert.Contains(t, note.Author().Notes(), note)

	// provenance
	assert.Contains(t, note.Relays(), testRelay)
	used := note.Author().RelaysBeingUsed()
	assert.Equal(t, int64(1), used[testRelay].Counter)
	statuses := c.RelayStatuses()
	assert.Equal(t, int64(1), statuses[testRelay].EventCounter)
	assert.Equal(t, int64(100), statuses[testRelay].LastSeen)
}

func TestIngestionIsIdempotent(t *testing.T) {
	c := NewCache()
	parent := makeEvent(protocol.KindTextNote, alice, 100, protocol.Tags{}, "parent")
	reply := makeEvent(protocol.KindTextNote, bob, 101, protocol.Tags{{"e", parent.ID}}, "reply")

	c.Consume(parent, testRelay)
	c.Consume(reply, testRelay)
	c.Consume(reply, testRelay)
	c.Consume(reply, "")

	parentNote := c.Resolve(parent.ID)
	require.NotNil(t, parentNote)
	assert.Equal(t, 1, parentNote.ReplyCount())

	_, notes, _, _ := c.Counts()
	assert.Equal(t, 2, notes)
}

func TestReplyBeforeParentArrives(t *testing.T) {
	c := NewCache()
	parent := makeEvent(protocol.KindTextNote, alice, 100, protocol.Tags{}, "parent")
	reply := makeEvent(protocol.KindTextNote, bob, 101, protocol.Tags{{"e", parent.ID}}, "reply")

	// Out of order: the reply creates a placeholder for the parent.
	c.Consume(reply, testRelay)
	placeholder := c.Resolve(parent.ID)
	require.NotNil(t, placeholder)
	assert.Nil(t, placeholder.Event())
	assert.Equal(t, 1, placeholder.ReplyCount())

	// The parent fills the same instance in, references intact.
	c.Consume(parent, testRelay)
	assert.Same(t, placeholder, c.Resolve(parent.ID))
	assert.Equal(t, parent, placeholder.Event())
	assert.Equal(t, 1, placeholder.ReplyCount())
}

func TestMalformedReferencesNeverCreateEntities(t *testing.T) {
	c := NewCache()
	ev := makeEvent(protocol.KindTextNote, alice, 100, protocol.Tags{
		{"e", "tooshort"},
		{"e", strings.Repeat("zz", 32)},
		{"p", "nothexatall"},
	}, "note with junk references")
	c.Consume(ev, testRelay)

	users, notes, _, _ := c.Counts()
	assert.Equal(t, 1, users) // just alice
	assert.Equal(t, 1, notes) // just the note itself
}

func TestReactions(t *testing.T) {
	c := NewCache()
	post := makeEvent(protocol.KindTextNote, alice, 100, protocol.Tags{}, "something insightful")
	c.Consume(post, testRelay)
	note := c.Resolve(post.ID)

	like := makeEvent(protocol.KindReaction, bob, 101, protocol.Tags{{"e", post.ID}, {"p", alice}}, "+")
	c.Consume(like, testRelay)
	c.Consume(like, testRelay) // duplicate delivery
	assert.Equal(t, 1, note.ReactionCount())
	assert.Equal(t, 0, note.ReportCount())

	flag := makeEvent(protocol.KindReaction, carol, 102, protocol.Tags{{"e", post.ID}}, "!")
	c.Consume(flag, testRelay)
	assert.Equal(t, 1, note.ReactionCount())
	assert.Equal(t, 1, note.ReportCount())

	shrug := makeEvent(protocol.KindReaction, carol, 103, protocol.Tags{{"e", post.ID}}, "~")
	c.Consume(shrug, testRelay)
	assert.Equal(t, 1, note.ReactionCount())
	assert.Equal(t, 1, note.ReportCount())
}

func TestDeletionRequiresSameAuthor(t *testing.T) {
	c := NewCache()
	post := makeEvent(protocol.KindTextNote, alice, 100, protocol.Tags{}, "delete me later")
	c.Consume(post, testRelay)

	// Bob cannot delete Alice's note.
	forged := makeEvent(protocol.KindDeletion, bob, 101, protocol.Tags{{"e", post.ID}}, "")
	c.Consume(forged, testRelay)
	require.NotNil(t, c.Resolve(post.ID))
	assert.NotNil(t, c.Resolve(post.ID).Event())

	// Alice can.
	deletion := makeEvent(protocol.KindDeletion, alice, 102, protocol.Tags{{"e", post.ID}}, "")
	c.Consume(deletion, testRelay)
	assert.Nil(t, c.Resolve(post.ID))
	assert.Empty(t, c.ResolveUser(alice).Notes())
}

func TestDeletionRevertsBackReferences(t *testing.T) {
	c := NewCache()
	post := makeEvent(protocol.KindTextNote, alice, 100, protocol.Tags{}, "popular post")
	reply := makeEvent(protocol.KindTextNote, bob, 101, protocol.Tags{{"e", post.ID}}, "a reply")
	like := makeEvent(protocol.KindReaction, carol, 102, protocol.Tags{{"e", post.ID}}, "+")
	c.Consume(post, testRelay)
	c.Consume(reply, testRelay)
	c.Consume(like, testRelay)

	note := c.Resolve(post.ID)
	assert.Equal(t, 1, note.ReplyCount())
	assert.Equal(t, 1, note.ReactionCount())

	// Bob deletes his reply, Carol deletes her like: the post's indices
	// shrink back.
	c.Consume(makeEvent(protocol.KindDeletion, bob, 103, protocol.Tags{{"e", reply.ID}}, ""), testRelay)
	c.Consume(makeEvent(protocol.KindDeletion, carol, 104, protocol.Tags{{"e", like.ID}}, ""), testRelay)
	assert.Equal(t, 0, note.ReplyCount())
	assert.Equal(t, 0, note.ReactionCount())
	assert.NotNil(t, note.Event())
}

func TestDeletionOfUnknownEventDoesNothing(t *testing.T) {
	c := NewCache()
	ghost := makeEvent(protocol.KindTextNote, alice, 99, protocol.Tags{}, "never ingested")
	c.Consume(makeEvent(protocol.KindDeletion, alice, 100, protocol.Tags{{"e", ghost.ID}}, ""), testRelay)
	_, notes, _, _ := c.Counts()
	assert.Equal(t, 0, notes)
}

func TestContactListGate(t *testing.T) {
	c := NewCache()
	first := makeEvent(protocol.KindContactList, alice, 100, protocol.Tags{{"p", bob}, {"p", carol}}, "")
	c.Consume(first, testRelay)
	user := c.ResolveUser(alice)
	require.NotNil(t, user)
	assert.Equal(t, []string{bob, carol}, user.Follows())

	// An older list does not clobber.
	older := makeEvent(protocol.KindContactList, alice, 50, protocol.Tags{{"p", bob}}, "")
	c.Consume(older, testRelay)
	assert.Len(t, user.Follows(), 2)

	// A newer but empty list does not clobber either.
	empty := makeEvent(protocol.KindContactList, alice, 200, protocol.Tags{}, "")
	c.Consume(empty, testRelay)
	assert.Len(t, user.Follows(), 2)

	// A newer non-empty list does.
	newer := makeEvent(protocol.KindContactList, alice, 300, protocol.Tags{{"p", bob}}, "")
	c.Consume(newer, testRelay)
	assert.Equal(t, []string{bob}, user.Follows())
}

func TestMetadataGate(t *testing.T) {
	c := NewCache()
	c.Consume(makeEvent(protocol.KindMetadata, alice, 100, protocol.Tags{}, `{"name":"alice"}`), testRelay)
	user := c.ResolveUser(alice)
	require.NotNil(t, user)
	assert.Equal(t, "alice", user.BestDisplayName())

	// Strictly newer: an equal timestamp does not replace.
	c.Consume(makeEvent(protocol.KindMetadata, alice, 100, protocol.Tags{}, `{"name":"equal"}`), testRelay)
	assert.Equal(t, "alice", user.BestDisplayName())

	// Older does not replace.
	c.Consume(makeEvent(protocol.KindMetadata, alice, 50, protocol.Tags{}, `{"name":"old"}`), testRelay)
	assert.Equal(t, "alice", user.BestDisplayName())

	// Newer but undecodable aborts and keeps the old profile.
	c.Consume(makeEvent(protocol.KindMetadata, alice, 200, protocol.Tags{}, "not json"), testRelay)
	assert.Equal(t, "alice", user.BestDisplayName())

	// Newer and valid replaces.
	c.Consume(makeEvent(protocol.KindMetadata, alice, 300, protocol.Tags{}, `{"name":"alice v2"}`), testRelay)
	assert.Equal(t, "alice v2", user.BestDisplayName())
}

func TestAddressableNotePreservesIdentity(t *testing.T) {
	c := NewCache()
	v1 := makeEvent(protocol.KindLongTextNote, alice, 100, protocol.Tags{{"d", "my-article"}, {"title", "v1"}}, "first draft")
	c.Consume(v1, testRelay)

	note := c.Resolve(v1.Address().Tag())
	require.NotNil(t, note)
	assert.Equal(t, v1, note.Event())

	// A newer event for the same coordinate replaces the payload in place.
	v2 := makeEvent(protocol.KindLongTextNote, alice, 200, protocol.Tags{{"d", "my-article"}, {"title", "v2"}}, "second draft")
	c.Consume(v2, testRelay)
	assert.Same(t, note, c.Resolve(v1.Address().Tag()))
	assert.Equal(t, v2, note.Event())

	// An older one is ignored.
	v0 := makeEvent(protocol.KindLongTextNote, alice, 50, protocol.Tags{{"d", "my-article"}, {"title", "v0"}}, "stale")
	c.Consume(v0, testRelay)
	assert.Equal(t, v2, note.Event())

	// An equal timestamp keeps what arrived first.
	tie := makeEvent(protocol.KindLongTextNote, alice, 200, protocol.Tags{{"d", "my-article"}, {"title", "tie"}}, "tie breaker")
	c.Consume(tie, testRelay)
	assert.Equal(t, v2, note.Event())

	_, _, _, addressables := c.Counts()
	assert.Equal(t, 1, addressables)
}

func TestChannelLifecycle(t *testing.T) {
	c := NewCache()
	create := makeEvent(protocol.KindChannelCreate, alice, 100, protocol.Tags{}, `{"name":"general","about":"anything goes"}`)
	c.Consume(create, testRelay)

	channel := c.ResolveChannel(create.ID)
	require.NotNil(t, channel)
	require.NotNil(t, channel.Creator())
	assert.Equal(t, alice, channel.Creator().PubkeyHex())
	info, _ := channel.Info()
	assert.Equal(t, "general", info.Name)

	// Only the creator may update metadata.
	hijack := makeEvent(protocol.KindChannelMetadata, bob, 200, protocol.Tags{{"e", create.ID, "", "root"}}, `{"name":"hijacked"}`)
	c.Consume(hijack, testRelay)
	info, _ = channel.Info()
	assert.Equal(t, "general", info.Name)

	update := makeEvent(protocol.KindChannelMetadata, alice, 300, protocol.Tags{{"e", create.ID, "", "root"}}, `{"name":"general v2"}`)
	c.Consume(update, testRelay)
	info, _ = channel.Info()
	assert.Equal(t, "general v2", info.Name)

	// An older metadata event does not roll the info back.
	stale := makeEvent(protocol.KindChannelMetadata, alice, 150, protocol.Tags{{"e", create.ID, "", "root"}}, `{"name":"stale"}`)
	c.Consume(stale, testRelay)
	info, _ = channel.Info()
	assert.Equal(t, "general v2", info.Name)
}

func TestChannelMessages(t *testing.T) {
	c := NewCache()
	create := makeEvent(protocol.KindChannelCreate, alice, 100, protocol.Tags{}, `{"name":"general"}`)
	c.Consume(create, testRelay)

	msg := makeEvent(protocol.KindChannelMessage, bob, 101, protocol.Tags{{"e", create.ID, "", "root"}}, "hi all")
	c.Consume(msg, testRelay)

	channel := c.ResolveChannel(create.ID)
	msgNote := c.Resolve(msg.ID)
	require.NotNil(t, msgNote)
	assert.Same(t, channel, msgNote.Channel())
	assert.Contains(t, channel.Notes(), msgNote)

	// A reply within the channel: the root reference is the channel, the
	// other e tag is the message replied to.
	reply := makeEvent(protocol.KindChannelMessage, carol, 102, protocol.Tags{
		{"e", create.ID, "", "root"},
		{"e", msg.ID, "", "reply"},
	}, "hi bob")
	c.Consume(reply, testRelay)
	assert.Equal(t, 1, msgNote.ReplyCount())

	// A message with no channel reference is dropped.
	orphan := makeEvent(protocol.KindChannelMessage, carol, 103, protocol.Tags{}, "into the void")
	c.Consume(orphan, testRelay)
	assert.Nil(t, c.Resolve(orphan.ID))
}

func TestChannelModeration(t *testing.T) {
	c := NewCache()
	create := makeEvent(protocol.KindChannelCreate, alice, 100, protocol.Tags{}, `{"name":"general"}`)
	msg := makeEvent(protocol.KindChannelMessage, bob, 101, protocol.Tags{{"e", create.ID, "", "root"}}, "rude message")
	c.Consume(create, testRelay)
	c.Consume(msg, testRelay)
	channel := c.ResolveChannel(create.ID)

	// Hide by someone other than the creator is ignored.
	c.Consume(makeEvent(protocol.KindChannelHideMessage, carol, 102, protocol.Tags{{"e", msg.ID}}, ""), testRelay)
	assert.False(t, channel.IsMessageHidden(msg.ID))

	c.Consume(makeEvent(protocol.KindChannelHideMessage, alice, 103, protocol.Tags{{"e", msg.ID}}, ""), testRelay)
	assert.True(t, channel.IsMessageHidden(msg.ID))

	// Mute follows the same authority rule.
	c.Consume(makeEvent(protocol.KindChannelMuteUser, carol, 104, protocol.Tags{{"e", create.ID, "", "root"}, {"p", bob}}, ""), testRelay)
	assert.False(t, channel.IsUserMuted(bob))

	c.Consume(makeEvent(protocol.KindChannelMuteUser, alice, 105, protocol.Tags{{"e", create.ID, "", "root"}, {"p", bob}}, ""), testRelay)
	assert.True(t, channel.IsUserMuted(bob))
}

func TestRepost(t *testing.T) {
	c := NewCache()
	post := makeEvent(protocol.KindTextNote, alice, 100, protocol.Tags{}, "boost me")
	c.Consume(post, testRelay)

	boost := makeEvent(protocol.KindRepost, bob, 101, protocol.Tags{{"e", post.ID}, {"p", alice}}, "")
	c.Consume(boost, testRelay)
	assert.Equal(t, 1, c.Resolve(post.ID).BoostCount())
}

func TestReports(t *testing.T) {
	c := NewCache()
	post := makeEvent(protocol.KindTextNote, alice, 100, protocol.Tags{}, "contested post")
	c.Consume(post, testRelay)

	postReport := makeEvent(protocol.KindReport, bob, 101, protocol.Tags{{"e", post.ID, "illegal"}, {"p", alice}}, "")
	c.Consume(postReport, testRelay)
	assert.Equal(t, 1, c.Resolve(post.ID).ReportCount())
	// With a post target the author is not separately reported.
	assert.Equal(t, 0, c.ResolveUser(alice).ReportCount())

	profileReport := makeEvent(protocol.KindReport, carol, 102, protocol.Tags{{"p", alice, "impersonation"}}, "")
	c.Consume(profileReport, testRelay)
	assert.Equal(t, 1, c.ResolveUser(alice).ReportCount())
}

func TestPrivateMessages(t *testing.T) {
	c := NewCache()
	dm := makeEvent(protocol.KindPrivateDM, alice, 100, protocol.Tags{{"p", bob}}, "encrypted payload")
	c.Consume(dm, testRelay)

	note := c.Resolve(dm.ID)
	require.NotNil(t, note)
	assert.Contains(t, c.ResolveUser(alice).MessagesWith(bob), note)
	assert.Contains(t, c.ResolveUser(bob).MessagesWith(alice), note)
}

func TestRecommendRelay(t *testing.T) {
	c := NewCache()
	c.Consume(makeEvent(protocol.KindRecommendRelay, alice, 100, protocol.Tags{}, "wss://better.relay.example.com"), testRelay)
	assert.Contains(t, c.ResolveUser(alice).RecommendedRelays(), "wss://better.relay.example.com")
}

func TestBadgeFlow(t *testing.T) {
	c := NewCache()
	definition := makeEvent(protocol.KindBadgeDefinition, alice, 100, protocol.Tags{{"d", "bravery"}, {"name", "Medal of Bravery"}}, "")
	c.Consume(definition, testRelay)

	award := makeEvent(protocol.KindBadgeAward, alice, 101, protocol.Tags{
		{"a", definition.Address().Tag()},
		{"p", bob},
	}, "")
	c.Consume(award, testRelay)

	defNote := c.Resolve(definition.Address().Tag())
	require.NotNil(t, defNote)
	assert.Equal(t, 1, defNote.ReplyCount())

	profile := makeEvent(protocol.KindBadgeProfiles, bob, 102, protocol.Tags{
		{"d", "profile_badges"},
		{"e", award.ID},
		{"a", definition.Address().Tag()},
	}, "")
	c.Consume(profile, testRelay)

	badges := c.ResolveUser(bob).AcceptedBadges()
	require.NotEmpty(t, badges)
	awardNote := c.Resolve(award.ID)
	assert.Contains(t, badges, awardNote)
}

func TestZapRequestThenReceipt(t *testing.T) {
	c := NewCache()
	post := makeEvent(protocol.KindTextNote, alice, 100, protocol.Tags{}, "zap me")
	c.Consume(post, testRelay)
	note := c.Resolve(post.ID)

	request := makeEvent(protocol.KindZapRequest, bob, 101, protocol.Tags{{"e", post.ID}, {"p", alice}}, "")
	c.Consume(request, testRelay)
	assert.Equal(t, 1, note.ZapCount())
	requestNote := c.Resolve(request.ID)
	assert.Nil(t, note.Zaps()[requestNote])

	receipt := makeEvent(protocol.KindZap, carol, 102, protocol.Tags{
		{"e", post.ID},
		{"p", alice},
		{"description", request.ToJSON()},
	}, "")
	c.Consume(receipt, testRelay)
	assert.Equal(t, 1, note.ZapCount())
	assert.Same(t, c.Resolve(receipt.ID), note.Zaps()[requestNote])
}

func TestDuplicateZapReceiptsDoNotDoubleCount(t *testing.T) {
	c := NewCache()
	post := makeEvent(protocol.KindTextNote, alice, 100, protocol.Tags{}, "zap me")
	c.Consume(post, testRelay)
	note := c.Resolve(post.ID)

	request := makeEvent(protocol.KindZapRequest, bob, 101, protocol.Tags{{"e", post.ID}, {"p", alice}}, "")

	first := makeEvent(protocol.KindZap, carol, 102, protocol.Tags{
		{"e", post.ID}, {"p", alice}, {"description", request.ToJSON()},
	}, "")
	second := makeEvent(protocol.KindZap, carol, 103, protocol.Tags{
		{"e", post.ID}, {"p", alice}, {"description", request.ToJSON()},
	}, "")
	c.Consume(first, testRelay)
	c.Consume(second, testRelay)

	assert.Equal(t, 1, note.ZapCount())
	requestNote := c.Resolve(request.ID)
	assert.Same(t, c.Resolve(first.ID), note.Zaps()[requestNote])

	// Zaps aimed at the user dedupe the same way.
	assert.Equal(t, 1, c.ResolveUser(alice).ZapCount())
}

func TestZapReceiptWithoutRequestIsNotCounted(t *testing.T) {
	c := NewCache()
	post := makeEvent(protocol.KindTextNote, alice, 100, protocol.Tags{}, "zap me")
	c.Consume(post, testRelay)

	bare := makeEvent(protocol.KindZap, carol, 101, protocol.Tags{{"e", post.ID}, {"p", alice}}, "")
	c.Consume(bare, testRelay)
	assert.Equal(t, 0, c.Resolve(post.ID).ZapCount())
}

func TestSpamGate(t *testing.T) {
	c := NewCache()
	content := strings.Repeat("buy my token now ", 5) // comfortably past the length floor
	first := makeEvent(protocol.KindTextNote, alice, 100, protocol.Tags{}, content)
	second := makeEvent(protocol.KindTextNote, bob, 101, protocol.Tags{}, content)

	c.Consume(first, testRelay)
	c.Consume(second, testRelay)

	require.NotNil(t, c.Resolve(first.ID).Event())
	// The duplicate content under a new ID never becomes a loaded note.
	assert.Nil(t, c.Resolve(second.ID).Event())
	assert.Empty(t, c.ResolveUser(bob).Notes())
	assert.Equal(t, int64(1), c.RelayStatuses()[testRelay].SpamCounter)

	// Re-delivery of the original is still fine.
	c.Consume(first, testRelay)
	assert.NotNil(t, c.Resolve(first.ID).Event())
}

func TestUnknownKindIsIgnored(t *testing.T) {
	c := NewCache()
	c.Consume(makeEvent(20001, alice, 100, protocol.Tags{}, "ephemeral"), testRelay)
	users, notes, channels, addressables := c.Counts()
	assert.Equal(t, 0, users+notes+channels+addressables)
}

func TestReset(t *testing.T) {
	c := NewCache()
	c.Consume(makeEvent(protocol.KindTextNote, alice, 100, protocol.Tags{}, "hello"), testRelay)
	c.Reset()
	users, notes, channels, addressables := c.Counts()
	assert.Equal(t, 0, users+notes+channels+addressables)
	assert.Empty(t, c.RelayStatuses())
}

func TestFindStartingWith(t *testing.T) {
	c := NewCache()
	c.Consume(makeEvent(protocol.KindMetadata, alice, 100, protocol.Tags{}, `{"name":"alice in chains"}`), testRelay)
	c.Consume(makeEvent(protocol.KindTextNote, bob, 101, protocol.Tags{}, "gm to the searchable world"), testRelay)
	c.Consume(makeEvent(protocol.KindChannelCreate, carol, 102, protocol.Tags{}, `{"name":"search party"}`), testRelay)

	assert.Len(t, c.FindUsersStartingWith("alice"), 1)
	assert.Len(t, c.FindUsersStartingWith("chains"), 1, "profile names match on substring")
	assert.Len(t, c.FindUsersStartingWith(alice[:8]), 1, "pubkeys match on prefix")
	assert.Empty(t, c.FindUsersStartingWith("bb"+alice[:8]), "pubkeys do not match mid string")
	assert.Len(t, c.FindNotesStartingWith("searchable"), 1)
	assert.Len(t, c.FindChannelsStartingWith("search party"), 1)
	assert.Len(t, c.FindChannelsStartingWith("party"), 1, "channel names match on substring")
	assert.Empty(t, c.FindUsersStartingWith("nobody by this name"))
}

func TestConcurrentGetOrCreate(t *testing.T) {
	c := NewCache()
	results := make(chan *User, 32)
	for i := 0; i < 32; i++ {
		go func() {
			results <- c.GetOrCreateUser(alice)
		}()
	}
	first := <-results
	for i := 1; i < 32; i++ {
		assert.Same(t, first, <-results)
	}
	users, _, _, _ := c.Counts()
	assert.Equal(t, 1, users)
}
