package protocol

// Event kinds understood by the cache. Anything else is carried verbatim and
// ignored by ingestion.
const (
	KindMetadata           = 0
	KindTextNote           = 1
	KindRecommendRelay     = 2
	KindContactList        = 3
	KindPrivateDM          = 4
	KindDeletion           = 5
	KindRepost             = 6
	KindReaction           = 7
	KindBadgeAward         = 8
	KindChannelCreate      = 40
	KindChannelMetadata    = 41
	KindChannelMessage     = 42
	KindChannelHideMessage = 43
	KindChannelMuteUser    = 44
	KindReport             = 1984
	KindZapRequest         = 9734
	KindZap                = 9735
	KindBadgeProfiles      = 30008
	KindBadgeDefinition    = 30009
	KindLongTextNote       = 30023
)

// IsReplaceable reports whether only the newest event of this kind per pubkey
// is authoritative.
func IsReplaceable(kind int) bool {
	return kind == KindMetadata || kind == KindContactList || (kind >= 10000 && kind < 20000)
}

// IsParameterizedReplaceable reports whether events of this kind are keyed by
// a (kind, pubkey, d-tag) coordinate instead of their event ID.
func IsParameterizedReplaceable(kind int) bool {
	return kind >= 30000 && kind < 40000
}

// IsEphemeral reports whether relays are expected to drop events of this kind
// instead of storing them.
func IsEphemeral(kind int) bool {
	return kind >= 20000 && kind < 30000
}
