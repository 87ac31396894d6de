//go:build !darwin

package eventcatcher

// Sleep detection is only wired up on darwin. Everywhere else the channel
// simply never fires.
func sleeper(listen chan bool) {}
