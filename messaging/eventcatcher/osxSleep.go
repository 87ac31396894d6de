//go:build darwin

package eventcatcher

import (
	"github.com/prashantgupta24/mac-sleep-notifier/notifier"
)

// sleeper fires once on listen when macOS suspends. Relay subscriptions do
// not survive a laptop sleep cleanly, so the caller treats the signal as a
// shutdown request.
func sleeper(listen chan bool) {
	events := notifier.GetInstance().Start()
	go func() {
		<-events
		listen <- true
	}()
}
