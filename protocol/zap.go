package protocol

import (
	"fmt"

	decodepay "github.com/nbd-wtf/ln-decodepay"
)

// Bolt11 returns the invoice a zap receipt was paid against, or "".
func (e Event) Bolt11() string {
	if tag, ok := e.Tags.GetFirst("bolt11"); ok {
		return tag.Value()
	}
	return ""
}

// Description returns the zap receipt's description tag, which NIP-57
// requires to carry the serialized zap request event.
func (e Event) Description() string {
	if tag, ok := e.Tags.GetFirst("description"); ok {
		return tag.Value()
	}
	return ""
}

// ContainedPost parses the event embedded in the description tag. A receipt
// without a parseable request cannot be attributed and is an error.
func (e Event) ContainedPost() (Event, error) {
	desc := e.Description()
	if len(desc) == 0 {
		return Event{}, fmt.Errorf("event %s has no description tag", e.ID)
	}
	return EventFromJSON(desc)
}

// AmountMillisats decodes the bolt11 invoice and returns the zapped amount.
// Zero-amount invoices and undecodable ones report ok == false.
func (e Event) AmountMillisats() (int64, bool) {
	invoice := e.Bolt11()
	if len(invoice) == 0 {
		return 0, false
	}
	bolt11, err := decodepay.Decodepay(invoice)
	if err != nil {
		return 0, false
	}
	if bolt11.MSatoshi <= 0 {
		return 0, false
	}
	return bolt11.MSatoshi, true
}
