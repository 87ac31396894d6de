package library

import (
	"github.com/sasha-s/go-deadlock"
)

// ValidateSaneExecutionTime leans on go-deadlock's lock watchdog: if the
// returned func is not called within the deadlock detection window, the
// blocked goroutine gets reported like any other stuck lock.
func ValidateSaneExecutionTime() func() {
	mu := deadlock.Mutex{}
	mu.Lock()
	go func() {
		mu.Lock()
		mu.Unlock()
	}()
	return func() {
		mu.Unlock()
	}
}
