package cache

import (
	"net/mail"
	"strings"

	"github.com/fiatjaf/go-lnurl"
	"github.com/sasha-s/go-deadlock"
	"lodestone/engine/library"
	"lodestone/protocol"
)

// User is an identity keyed by pubkey hex. Users are created on first
// reference, as author or as any tag target, and only removed by an explicit
// prune or a full cache reset.
type User struct {
	pubkeyHex library.Account

	mu                deadlock.Mutex
	info              *protocol.ProfileMetadata
	infoUpdatedAt     int64
	infoEvent         *protocol.Event
	notes             map[*Note]struct{}
	latestContactList *protocol.Event
	relaysBeingUsed   map[library.RelayURL]*RelayInfo
	reports           map[*Note]struct{}
	zaps              map[*Note]*Note
	acceptedBadges    *Note
	messages          map[library.Account]map[*Note]struct{}
	recommendedRelays map[library.RelayURL]struct{}
}

// RelayInfo tracks how often a relay delivered events for this user.
type RelayInfo struct {
	Counter   int64
	LastEvent int64
}

func newUser(pubkeyHex library.Account) *User {
	return &User{
		pubkeyHex:         pubkeyHex,
		notes:             make(map[*Note]struct{}),
		relaysBeingUsed:   make(map[library.RelayURL]*RelayInfo),
		reports:           make(map[*Note]struct{}),
		zaps:              make(map[*Note]*Note),
		messages:          make(map[library.Account]map[*Note]struct{}),
		recommendedRelays: make(map[library.RelayURL]struct{}),
	}
}

func (u *User) PubkeyHex() library.Account { return u.pubkeyHex }

// Profile returns the decoded metadata and the timestamp of the event it
// came from. The pointer is nil until a kind 0 has been accepted.
func (u *User) Profile() (*protocol.ProfileMetadata, int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.info, u.infoUpdatedAt
}

// UpdateUserInfo replaces the profile. The caller enforces the
// strictly-newer gate.
func (u *User) UpdateUserInfo(info *protocol.ProfileMetadata, event *protocol.Event) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.info = info
	u.infoUpdatedAt = event.CreatedAt
	u.infoEvent = event
}

// BestDisplayName falls back to the pubkey when no profile is known.
func (u *User) BestDisplayName() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.info != nil {
		if name := u.info.BestName(); len(name) > 0 {
			return name
		}
	}
	return u.pubkeyHex
}

// anyNameStartsWith matches on substring, not just prefix, so searching for a
// surname still finds the profile.
func (u *User) anyNameStartsWith(prefix string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.info == nil {
		return false
	}
	lower := strings.ToLower(prefix)
	for _, name := range []string{u.info.Name, u.info.Username, u.info.DisplayName, u.info.DisplayName1, u.info.Nip05} {
		if len(name) > 0 && strings.Contains(strings.ToLower(name), lower) {
			return true
		}
	}
	return false
}

// LightningAddress resolves the user's payment target: lud16 address when it
// parses as one, otherwise the decoded lud06 LNURL pay endpoint.
func (u *User) LightningAddress() (string, bool) {
	u.mu.Lock()
	info := u.info
	u.mu.Unlock()
	if info == nil {
		return "", false
	}
	if len(info.Lud16) > 0 {
		if addr, err := mail.ParseAddress(info.Lud16); err == nil {
			return strings.Trim(addr.String(), "<>"), true
		}
	}
	if len(info.Lud06) > 0 {
		if url, err := lnurl.LNURLDecode(info.Lud06); err == nil {
			return url, true
		}
	}
	return "", false
}

func (u *User) AddNote(note *Note) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.notes[note] = struct{}{}
}

func (u *User) RemoveNote(note *Note) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.notes, note)
}

// Notes returns the user's authored notes.
func (u *User) Notes() []*Note {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]*Note, 0, len(u.notes))
	for n := range u.notes {
		out = append(out, n)
	}
	return out
}

func (u *User) clearNotes() []*Note {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]*Note, 0, len(u.notes))
	for n := range u.notes {
		out = append(out, n)
	}
	u.notes = make(map[*Note]struct{})
	return out
}

// LatestContactList returns the newest accepted kind 3 event.
func (u *User) LatestContactList() *protocol.Event {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.latestContactList
}

// UpdateContactList replaces the contact list. The caller enforces the
// newer-and-non-empty gate.
func (u *User) UpdateContactList(event *protocol.Event) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.latestContactList = event
}

// Follows returns the pubkeys of the current follow set.
func (u *User) Follows() []library.Account {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.latestContactList == nil {
		return nil
	}
	return u.latestContactList.FollowKeys()
}

// AddRelayBeingUsed records the relay as a source of this user's events.
func (u *User) AddRelayBeingUsed(relay library.RelayURL, eventTime int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	info, ok := u.relaysBeingUsed[relay]
	if !ok {
		info = &RelayInfo{}
		u.relaysBeingUsed[relay] = info
	}
	info.Counter++
	if eventTime > info.LastEvent {
		info.LastEvent = eventTime
	}
}

// RelaysBeingUsed returns a copy of the per-relay usage stats.
func (u *User) RelaysBeingUsed() map[library.RelayURL]RelayInfo {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make(map[library.RelayURL]RelayInfo, len(u.relaysBeingUsed))
	for relay, info := range u.relaysBeingUsed {
		out[relay] = *info
	}
	return out
}

func (u *User) AddRecommendedRelay(relay library.RelayURL) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.recommendedRelays[relay] = struct{}{}
}

func (u *User) RecommendedRelays() []library.RelayURL {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]library.RelayURL, 0, len(u.recommendedRelays))
	for r := range u.recommendedRelays {
		out = append(out, r)
	}
	return out
}

func (u *User) AddReport(report *Note) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.reports[report] = struct{}{}
}

func (u *User) RemoveReport(report *Note) {
	u.mu.Lock()
	defer u.mu.Unlock()
	delete(u.reports, report)
}

func (u *User) ReportCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.reports)
}

// AddZap mirrors Note.AddZap for zaps aimed at the user directly.
func (u *User) AddZap(zapRequest, zapReceipt *Note) {
	u.mu.Lock()
	defer u.mu.Unlock()
	existing, seen := u.zaps[zapRequest]
	if !seen {
		u.zaps[zapRequest] = zapReceipt
		return
	}
	if existing == nil && zapReceipt != nil {
		u.zaps[zapRequest] = zapReceipt
	}
}

func (u *User) RemoveZap(note *Note) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if _, ok := u.zaps[note]; ok {
		delete(u.zaps, note)
		return
	}
	for req, receipt := range u.zaps {
		if receipt == note {
			delete(u.zaps, req)
		}
	}
}

func (u *User) ZapCount() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.zaps)
}

// UpdateAcceptedBadges stores the badge-profiles note whose reply set is the
// user's accepted badge list.
func (u *User) UpdateAcceptedBadges(note *Note) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.acceptedBadges = note
}

// AcceptedBadges returns the award and definition notes of the latest badge
// profile collection.
func (u *User) AcceptedBadges() []*Note {
	u.mu.Lock()
	badges := u.acceptedBadges
	u.mu.Unlock()
	if badges == nil {
		return nil
	}
	return badges.ReplyTo()
}

// AddMessage appends a private message note to the thread with peer.
func (u *User) AddMessage(peer *User, note *Note) {
	u.mu.Lock()
	defer u.mu.Unlock()
	thread, ok := u.messages[peer.pubkeyHex]
	if !ok {
		thread = make(map[*Note]struct{})
		u.messages[peer.pubkeyHex] = thread
	}
	thread[note] = struct{}{}
}

// MessagesWith returns the private message thread with the given peer.
func (u *User) MessagesWith(peer library.Account) []*Note {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]*Note, 0, len(u.messages[peer]))
	for n := range u.messages[peer] {
		out = append(out, n)
	}
	return out
}
