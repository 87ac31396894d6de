package cache

import (
	"fmt"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lodestone/protocol"
)

func TestPruneOldChannelMessages(t *testing.T) {
	conf := viper.New()
	conf.SetDefault("maxMessagesPerChannel", 2)
	c := NewCacheWithConfig(conf)

	create := makeEvent(protocol.KindChannelCreate, alice, 10, protocol.Tags{}, `{"name":"busy"}`)
	c.Consume(create, testRelay)
	var messages []*protocol.Event
	for n := 0; n < 5; n++ {
		msg := makeEvent(protocol.KindChannelMessage, bob, int64(100+n), protocol.Tags{{"e", create.ID, "", "root"}}, fmt.Sprintf("message %d", n))
		c.Consume(msg, testRelay)
		messages = append(messages, msg)
	}

	c.PruneOldAndHiddenMessages()

	// Only the two newest survive; the channel create note is untouched.
	for n := 0; n < 3; n++ {
		assert.Nil(t, c.Resolve(messages[n].ID), "message %d should be pruned", n)
	}
	assert.NotNil(t, c.Resolve(messages[3].ID))
	assert.NotNil(t, c.Resolve(messages[4].ID))
	assert.NotNil(t, c.Resolve(create.ID))
}

func TestPruneHiddenChannelMessages(t *testing.T) {
	conf := viper.New()
	conf.SetDefault("maxMessagesPerChannel", 100)
	c := NewCacheWithConfig(conf)

	create := makeEvent(protocol.KindChannelCreate, alice, 10, protocol.Tags{}, `{"name":"moderated"}`)
	rude := makeEvent(protocol.KindChannelMessage, bob, 100, protocol.Tags{{"e", create.ID, "", "root"}}, "rude")
	fine := makeEvent(protocol.KindChannelMessage, carol, 101, protocol.Tags{{"e", create.ID, "", "root"}}, "fine")
	c.Consume(create, testRelay)
	c.Consume(rude, testRelay)
	c.Consume(fine, testRelay)
	c.Consume(makeEvent(protocol.KindChannelHideMessage, alice, 102, protocol.Tags{{"e", rude.ID}}, ""), testRelay)

	c.PruneOldAndHiddenMessages()

	assert.Nil(t, c.Resolve(rude.ID))
	assert.NotNil(t, c.Resolve(fine.ID))
}

func TestPruneMutedAuthorsMessages(t *testing.T) {
	c := NewCache()
	create := makeEvent(protocol.KindChannelCreate, alice, 10, protocol.Tags{}, `{"name":"moderated"}`)
	troll := makeEvent(protocol.KindChannelMessage, bob, 100, protocol.Tags{{"e", create.ID, "", "root"}}, "bait")
	c.Consume(create, testRelay)
	c.Consume(troll, testRelay)
	c.Consume(makeEvent(protocol.KindChannelMuteUser, alice, 101, protocol.Tags{{"e", create.ID, "", "root"}, {"p", bob}}, ""), testRelay)

	c.PruneOldAndHiddenMessages()
	assert.Nil(t, c.Resolve(troll.ID))
}

func TestPruneHiddenUsers(t *testing.T) {
	c := NewCache()
	post := makeEvent(protocol.KindTextNote, alice, 100, protocol.Tags{}, "target post")
	reply := makeEvent(protocol.KindTextNote, bob, 101, protocol.Tags{{"e", post.ID}}, "unwanted reply")
	c.Consume(post, testRelay)
	c.Consume(reply, testRelay)

	note := c.Resolve(post.ID)
	require.Equal(t, 1, note.ReplyCount())

	c.HideUser(bob)
	c.PruneHiddenUsers()

	// Bob's reply is gone and its contribution reverted; Alice's note
	// survives.
	assert.Nil(t, c.Resolve(reply.ID))
	assert.Equal(t, 0, note.ReplyCount())
	assert.NotNil(t, c.Resolve(post.ID))
	assert.Contains(t, c.HiddenUsers(), bob)
}
