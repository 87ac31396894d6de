package eventconductor

import (
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/sasha-s/go-deadlock"
	"lodestone/engine/actors"
	"lodestone/engine/library"
	"lodestone/messaging/eventcatcher"
	"lodestone/protocol"
	"lodestone/state/cache"
)

var started = make(map[string]bool)
var startedMu = &deadlock.Mutex{}

var publishChan = make(chan nostr.Event)

// Publish signs nothing and validates nothing; callers hand over a complete
// event and it goes out to every connected relay.
func Publish(event *protocol.Event) {
	go func() {
		publishChan <- eventcatcher.ToWireEvent(event)
	}()
}

// Start connects the transport to the state layer and blocks until shutdown.
// Stored events are buffered and drained in arrival order once every relay
// reports the end of its stored stream, so a burst of history never
// interleaves with live events mid-drain.
func Start(c *cache.Cache) {
	startedMu.Lock()
	if started["handleEvents"] {
		startedMu.Unlock()
		return
	}
	started["handleEvents"] = true
	startedMu.Unlock()

	actors.GetWaitGroup().Add(1)
	var eoseChan = make(chan bool)
	var eventChan = make(chan library.WireEvent)
	stack := library.NewEventStack(1)
	var eose bool
	go eventcatcher.SubscribeToRelays(eventChan, publishChan, eoseChan)

	pruneTicker := time.NewTicker(time.Minute * 10)
	defer pruneTicker.Stop()
L:
	for {
		select {
		case <-eoseChan:
			eose = true
			for {
				buffered, ok := stack.Pop()
				if !ok {
					break
				}
				c.Consume(buffered.Event, buffered.Relay)
			}
		case we := <-eventChan:
			if !eose {
				stack.Push(&we)
				continue
			}
			c.Consume(we.Event, we.Relay)
		case <-pruneTicker.C:
			c.PruneOldAndHiddenMessages()
			c.PruneHiddenUsers()
		case <-actors.GetTerminateChan():
			actors.GetWaitGroup().Done()
			break L
		}
	}
}
