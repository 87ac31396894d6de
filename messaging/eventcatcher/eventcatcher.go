package eventcatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sasha-s/go-deadlock"
	"lodestone/engine/actors"
	"lodestone/engine/library"
	"lodestone/protocol"
)

// consumedKinds is everything the state layer has a handler for. Asking the
// relay to filter keeps junk kinds off the wire entirely.
var consumedKinds = []int{
	protocol.KindMetadata,
	protocol.KindTextNote,
	protocol.KindRecommendRelay,
	protocol.KindContactList,
	protocol.KindPrivateDM,
	protocol.KindDeletion,
	protocol.KindRepost,
	protocol.KindReaction,
	protocol.KindBadgeAward,
	protocol.KindChannelCreate,
	protocol.KindChannelMetadata,
	protocol.KindChannelMessage,
	protocol.KindChannelHideMessage,
	protocol.KindChannelMuteUser,
	protocol.KindReport,
	protocol.KindZapRequest,
	protocol.KindZap,
	protocol.KindBadgeProfiles,
	protocol.KindBadgeDefinition,
	protocol.KindLongTextNote,
}

// SubscribeToRelays opens one long-lived subscription per configured relay
// and forwards every event that passes signature validation on eChan, tagged
// with the relay it came from. Events pushed into sendChan are published to
// every relay. eose fires once, after each relay has either delivered its
// stored events or failed to connect.
func SubscribeToRelays(eChan chan library.WireEvent, sendChan chan nostr.Event, eose chan bool) {
	var sleepChan = make(chan bool)
	sleeper(sleepChan)
	go func() {
		<-sleepChan
		library.LogCLI("system sleep detected, terminating application", 2)
		actors.Shutdown()
	}()

	urls := actors.MakeOrGetConfig().GetStringSlice("relaysMust")
	if len(urls) == 0 {
		library.LogCLI("no relays configured, nothing to subscribe to", 1)
		go func() { eose <- true }()
		return
	}

	wait := &deadlock.WaitGroup{}
	var publishChans []chan nostr.Event
	for _, url := range urls {
		wait.Add(1)
		var once deadlock.Once
		storedEventsDone := func() {
			once.Do(wait.Done)
		}
		relayPublish := make(chan nostr.Event)
		publishChans = append(publishChans, relayPublish)
		go subscribeToRelay(url, eChan, relayPublish, storedEventsDone)
	}
	go func() {
		wait.Wait()
		eose <- true
	}()
	go fanOutPublishes(sendChan, publishChans)
}

func fanOutPublishes(sendChan chan nostr.Event, publishChans []chan nostr.Event) {
	for {
		select {
		case e := <-sendChan:
			for _, relayPublish := range publishChans {
				go func(relayPublish chan nostr.Event) {
					relayPublish <- e
				}(relayPublish)
			}
		case <-actors.GetTerminateChan():
			return
		}
	}
}

// subscribeToRelay owns the connection to a single relay and respawns itself
// whenever that connection goes bad. storedEventsDone is safe to call more
// than once.
func subscribeToRelay(url library.RelayURL, eChan chan library.WireEvent, relayPublish chan nostr.Event, storedEventsDone func()) {
	relay, err := nostr.RelayConnect(context.Background(), url)
	if err != nil {
		library.LogCLI(fmt.Sprintf("could not connect to relay %s: %s", url, err), 2)
		storedEventsDone()
		retryLater(url, eChan, relayPublish, storedEventsDone)
		return
	}
	library.LogCLI("Connected to "+relay.URL, 4)

	ctx, cancel := context.WithCancel(context.Background())
	filters := nostr.Filters{{Kinds: consumedKinds}}
	sub, err := relay.Subscribe(ctx, filters)
	if err != nil {
		library.LogCLI(fmt.Sprintf("could not subscribe to relay %s: %s", url, err), 2)
		cancel()
		relay.Close()
		storedEventsDone()
		retryLater(url, eChan, relayPublish, storedEventsDone)
		return
	}

	go func() {
		<-sub.EndOfStoredEvents
		library.LogCLI("End of stored events from "+url, 4)
		storedEventsDone()
	}()

	go func() {
		for {
			select {
			case e := <-relayPublish:
				go func() {
					sane := library.ValidateSaneExecutionTime()
					_, err := relay.Publish(context.Background(), e)
					if err != nil {
						library.LogCLI(fmt.Sprintf("could not publish to relay %s: %s", url, err), 2)
					}
					sane()
				}()
			case <-ctx.Done():
				return
			}
		}
	}()

	lastEventTime := time.Now()
L:
	for {
		select {
		case ev := <-sub.Events:
			if ev == nil {
				library.LogCLI("Terminating connection to relay "+url, 3)
				cancel()
				library.LogCLI("Restarting subscription to "+url, 4)
				go subscribeToRelay(url, eChan, relayPublish, storedEventsDone)
				break L
			}
			lastEventTime = time.Now()
			event := toEngineEvent(ev)
			if ok, _ := event.CheckSignature(); !ok {
				library.LogCLI(fmt.Sprintf("event %s from %s failed validation", ev.ID, url), 3)
				continue
			}
			eChan <- library.WireEvent{Event: event, Relay: url}
		case <-time.After(time.Minute):
			if time.Since(lastEventTime) > time.Minute*10 {
				library.LogCLI("Terminating stale connection to relay "+url, 3)
				cancel()
				library.LogCLI("Restarting subscription to "+url, 4)
				go subscribeToRelay(url, eChan, relayPublish, storedEventsDone)
				break L
			}
		case <-actors.GetTerminateChan():
			break L
		}
	}
	cancel()
}

func retryLater(url library.RelayURL, eChan chan library.WireEvent, relayPublish chan nostr.Event, storedEventsDone func()) {
	select {
	case <-time.After(time.Second * 30):
		go subscribeToRelay(url, eChan, relayPublish, storedEventsDone)
	case <-actors.GetTerminateChan():
	}
}

// toEngineEvent rebuilds the wire event with our own types. Validation always
// recomputes the ID, so a relay lying about any field gets caught by the
// signature gate.
func toEngineEvent(ev *nostr.Event) *protocol.Event {
	tags := make(protocol.Tags, 0, len(ev.Tags))
	for _, t := range ev.Tags {
		tags = append(tags, protocol.Tag(t))
	}
	return &protocol.Event{
		ID:        ev.ID,
		PubKey:    ev.PubKey,
		CreatedAt: int64(ev.CreatedAt),
		Kind:      ev.Kind,
		Tags:      tags,
		Content:   ev.Content,
		Sig:       ev.Sig,
	}
}

// ToWireEvent is the inverse, used on the publish path.
func ToWireEvent(event *protocol.Event) nostr.Event {
	tags := make(nostr.Tags, 0, len(event.Tags))
	for _, t := range event.Tags {
		tags = append(tags, nostr.Tag(t))
	}
	return nostr.Event{
		ID:        event.ID,
		PubKey:    event.PubKey,
		CreatedAt: nostr.Timestamp(event.CreatedAt),
		Kind:      event.Kind,
		Tags:      tags,
		Content:   event.Content,
		Sig:       event.Sig,
	}
}
