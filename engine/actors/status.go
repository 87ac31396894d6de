package actors

import (
	"github.com/sasha-s/go-deadlock"
)

var terminateChan = make(chan struct{})
var terminateOnce = &deadlock.Once{}

var wg = &deadlock.WaitGroup{}

func GetTerminateChan() chan struct{} {
	return terminateChan
}

func GetWaitGroup() *deadlock.WaitGroup {
	return wg
}

// Shutdown closes the terminate channel exactly once; every long running
// goroutine selects on it.
func Shutdown() {
	terminateOnce.Do(func() {
		close(terminateChan)
	})
}
