package cache

import (
	"strings"
	"time"

	"github.com/sasha-s/go-deadlock"
	"github.com/spf13/viper"
	"lodestone/engine/library"
	"lodestone/protocol"
)

// Cache is the in-memory social graph: every entity the client knows about,
// rebuilt from a replay of ingested events. It is explicitly constructed so
// a session starts with a fresh one and logout throws it away; nothing in
// here touches the network or the disk.
type Cache struct {
	usersMu deadlock.Mutex
	users   map[library.Account]*User

	notesMu deadlock.Mutex
	notes   map[library.Sha256]*Note

	channelsMu deadlock.Mutex
	channels   map[library.Sha256]*Channel

	addressablesMu deadlock.Mutex
	addressables   map[string]*AddressableNote

	relaysMu deadlock.Mutex
	relays   map[library.RelayURL]*RelayStatus

	hiddenMu    deadlock.Mutex
	hiddenUsers map[library.Account]struct{}

	antiSpam *AntiSpamFilter
	live     *invalidator
	policy   policy
}

// RelayStatus is the per-source bookkeeping for one relay URL.
type RelayStatus struct {
	EventCounter int64
	SpamCounter  int64
	LastSeen     int64
}

// policy holds the behavior knobs that are convention rather than protocol.
type policy struct {
	positiveReactions     []string
	flagReactions         []string
	maxMessagesPerChannel int
	invalidationDelay     time.Duration
	antispamWindow        time.Duration
}

func defaultPolicy() policy {
	return policy{
		positiveReactions:     []string{"", "+", "❤️", "\U0001F919", "\U0001F44D"},
		flagReactions:         []string{"!", "⚠️"},
		maxMessagesPerChannel: 1000,
		invalidationDelay:     50 * time.Millisecond,
		antispamWindow:        5 * time.Minute,
	}
}

func policyFromConfig(conf *viper.Viper) policy {
	p := defaultPolicy()
	if conf == nil {
		return p
	}
	if v := conf.GetStringSlice("positiveReactions"); len(v) > 0 {
		p.positiveReactions = v
	}
	if v := conf.GetStringSlice("flagReactions"); len(v) > 0 {
		p.flagReactions = v
	}
	if v := conf.GetInt("maxMessagesPerChannel"); v > 0 {
		p.maxMessagesPerChannel = v
	}
	if v := conf.GetInt64("invalidationDelayMs"); v > 0 {
		p.invalidationDelay = time.Duration(v) * time.Millisecond
	}
	if v := conf.GetInt64("antispamWindowSeconds"); v > 0 {
		p.antispamWindow = time.Duration(v) * time.Second
	}
	return p
}

// NewCache returns an empty cache with default policies.
func NewCache() *Cache {
	return NewCacheWithConfig(nil)
}

// NewCacheWithConfig reads the policy tables from a viper config; nil means
// defaults. The config is read once, the cache never keeps it.
func NewCacheWithConfig(conf *viper.Viper) *Cache {
	p := policyFromConfig(conf)
	c := &Cache{
		users:        make(map[library.Account]*User),
		notes:        make(map[library.Sha256]*Note),
		channels:     make(map[library.Sha256]*Channel),
		addressables: make(map[string]*AddressableNote),
		relays:       make(map[library.RelayURL]*RelayStatus),
		hiddenUsers:  make(map[library.Account]struct{}),
		policy:       p,
	}
	c.antiSpam = newAntiSpamFilter(p.antispamWindow)
	c.live = newInvalidator(p.invalidationDelay)
	return c
}

// Reset empties every registry. Used on logout.
func (c *Cache) Reset() {
	c.usersMu.Lock()
	c.users = make(map[library.Account]*User)
	c.usersMu.Unlock()
	c.notesMu.Lock()
	c.notes = make(map[library.Sha256]*Note)
	c.notesMu.Unlock()
	c.channelsMu.Lock()
	c.channels = make(map[library.Sha256]*Channel)
	c.channelsMu.Unlock()
	c.addressablesMu.Lock()
	c.addressables = make(map[string]*AddressableNote)
	c.addressablesMu.Unlock()
	c.relaysMu.Lock()
	c.relays = make(map[library.RelayURL]*RelayStatus)
	c.relaysMu.Unlock()
	c.invalidate()
}

// GetOrCreateUser returns the single User instance for a pubkey, creating it
// exactly once even under concurrent callers.
func (c *Cache) GetOrCreateUser(key library.Account) *User {
	c.usersMu.Lock()
	defer c.usersMu.Unlock()
	if u, ok := c.users[key]; ok {
		return u
	}
	u := newUser(key)
	c.users[key] = u
	return u
}

// CheckGetOrCreateUser validates the key shape first: a malformed reference
// out of an attacker-controlled tag must not fabricate a registry entry.
func (c *Cache) CheckGetOrCreateUser(key string) *User {
	if !library.ValidHexKey(key) {
		return nil
	}
	return c.GetOrCreateUser(key)
}

func (c *Cache) GetOrCreateNote(idHex library.Sha256) *Note {
	c.notesMu.Lock()
	defer c.notesMu.Unlock()
	if n, ok := c.notes[idHex]; ok {
		return n
	}
	n := newNote(idHex)
	c.notes[idHex] = n
	return n
}

// CheckGetOrCreateNote resolves a tag reference that may be either an event
// ID or an addressable coordinate, or garbage.
func (c *Cache) CheckGetOrCreateNote(key string) *Note {
	if protocol.IsCoordinate(key) {
		return c.CheckGetOrCreateAddressableNote(key)
	}
	if !library.ValidHexKey(key) {
		return nil
	}
	return c.GetOrCreateNote(key)
}

func (c *Cache) GetOrCreateAddressableNote(address protocol.Coordinate) *AddressableNote {
	c.addressablesMu.Lock()
	defer c.addressablesMu.Unlock()
	key := address.Tag()
	if n, ok := c.addressables[key]; ok {
		return n
	}
	n := newAddressableNote(address)
	c.addressables[key] = n
	return n
}

func (c *Cache) CheckGetOrCreateAddressableNote(key string) *AddressableNote {
	address, err := protocol.ParseCoordinate(key)
	if err != nil {
		return nil
	}
	n := c.GetOrCreateAddressableNote(address)
	if n.Author() == nil {
		if author := c.CheckGetOrCreateUser(address.PubKey); author != nil {
			n.mu.Lock()
			n.author = author
			n.mu.Unlock()
		}
	}
	return n
}

func (c *Cache) GetOrCreateChannel(key library.Sha256) *Channel {
	c.channelsMu.Lock()
	defer c.channelsMu.Unlock()
	if ch, ok := c.channels[key]; ok {
		return ch
	}
	ch := newChannel(key)
	c.channels[key] = ch
	return ch
}

func (c *Cache) CheckGetOrCreateChannel(key string) *Channel {
	if !library.ValidHexKey(key) {
		return nil
	}
	return c.GetOrCreateChannel(key)
}

// Resolve returns the note for an event ID or coordinate string, nil when
// unknown. Lookup only, never creates.
func (c *Cache) Resolve(key string) *Note {
	if protocol.IsCoordinate(key) {
		c.addressablesMu.Lock()
		defer c.addressablesMu.Unlock()
		return c.addressables[key]
	}
	c.notesMu.Lock()
	defer c.notesMu.Unlock()
	return c.notes[key]
}

func (c *Cache) ResolveUser(pubkeyHex library.Account) *User {
	c.usersMu.Lock()
	defer c.usersMu.Unlock()
	return c.users[pubkeyHex]
}

func (c *Cache) ResolveChannel(idHex library.Sha256) *Channel {
	c.channelsMu.Lock()
	defer c.channelsMu.Unlock()
	return c.channels[idHex]
}

// Counts for status displays.
func (c *Cache) Counts() (users, notes, channels, addressables int) {
	c.usersMu.Lock()
	users = len(c.users)
	c.usersMu.Unlock()
	c.notesMu.Lock()
	notes = len(c.notes)
	c.notesMu.Unlock()
	c.channelsMu.Lock()
	channels = len(c.channels)
	c.channelsMu.Unlock()
	c.addressablesMu.Lock()
	addressables = len(c.addressables)
	c.addressablesMu.Unlock()
	return
}

// FindUsersStartingWith is a linear scan for UI search: profile names match
// on any case insensitive substring, pubkeys on prefix only. Not performance
// critical.
func (c *Cache) FindUsersStartingWith(text string) (out []*User) {
	c.usersMu.Lock()
	defer c.usersMu.Unlock()
	lower := strings.ToLower(text)
	for _, u := range c.users {
		if u.anyNameStartsWith(text) || strings.HasPrefix(strings.ToLower(u.pubkeyHex), lower) {
			out = append(out, u)
		}
	}
	return
}

// FindNotesStartingWith matches note IDs on prefix and the content of text
// notes, channel messages and long form articles on substring.
func (c *Cache) FindNotesStartingWith(text string) (out []*Note) {
	lower := strings.ToLower(text)

	c.notesMu.Lock()
	for _, n := range c.notes {
		if noteMatchesText(n, lower) {
			out = append(out, n)
		}
	}
	c.notesMu.Unlock()

	c.addressablesMu.Lock()
	for _, n := range c.addressables {
		if addressableMatchesText(n, lower) {
			out = append(out, n)
		}
	}
	c.addressablesMu.Unlock()
	return
}

func noteMatchesText(n *Note, lower string) bool {
	if strings.HasPrefix(strings.ToLower(n.IDHex()), lower) {
		return true
	}
	event := n.Event()
	if event == nil {
		return false
	}
	if event.Kind != protocol.KindTextNote && event.Kind != protocol.KindChannelMessage {
		return false
	}
	return strings.Contains(strings.ToLower(event.Content), lower)
}

func addressableMatchesText(n *AddressableNote, lower string) bool {
	if strings.HasPrefix(strings.ToLower(n.IDHex()), lower) {
		return true
	}
	event := n.Event()
	if event == nil || event.Kind != protocol.KindLongTextNote {
		return false
	}
	return strings.Contains(strings.ToLower(event.Content), lower) ||
		strings.Contains(strings.ToLower(event.Title()), lower) ||
		strings.Contains(strings.ToLower(event.Summary()), lower)
}

// FindChannelsStartingWith matches channel names on substring and channel IDs
// on prefix, like FindUsersStartingWith.
func (c *Cache) FindChannelsStartingWith(text string) (out []*Channel) {
	c.channelsMu.Lock()
	defer c.channelsMu.Unlock()
	lower := strings.ToLower(text)
	for _, ch := range c.channels {
		if ch.anyNameStartsWith(text) || strings.HasPrefix(strings.ToLower(ch.idHex), lower) {
			out = append(out, ch)
		}
	}
	return
}

// RelayStatuses returns a copy of the per-relay counters.
func (c *Cache) RelayStatuses() map[library.RelayURL]RelayStatus {
	c.relaysMu.Lock()
	defer c.relaysMu.Unlock()
	out := make(map[library.RelayURL]RelayStatus, len(c.relays))
	for url, status := range c.relays {
		out[url] = *status
	}
	return out
}

// HideUser adds a pubkey to the account-level hidden set consumed by
// PruneHiddenUsers.
func (c *Cache) HideUser(pubkey library.Account) {
	c.hiddenMu.Lock()
	defer c.hiddenMu.Unlock()
	c.hiddenUsers[pubkey] = struct{}{}
}

func (c *Cache) HiddenUsers() []library.Account {
	c.hiddenMu.Lock()
	defer c.hiddenMu.Unlock()
	out := make([]library.Account, 0, len(c.hiddenUsers))
	for pk := range c.hiddenUsers {
		out = append(out, pk)
	}
	return out
}
