package main

import (
	"fmt"
	"time"

	"github.com/eiannone/keyboard"
	"lodestone/engine/actors"
	"lodestone/state/cache"
)

// cliListener is a cheap and nasty way to speed up development cycles. It
// listens for keypresses and executes commands.
func cliListener(c *cache.Cache) {
	fmt.Println("VIEW CURRENT STATE:\nn: entity counts\nr: relay statuses\nh: hidden users\nc: engine config\np: prune channels and hidden users\nq: to quit\nSee cliListener.go for more")
	for {
		r, k, err := keyboard.GetSingleKey()
		if err != nil {
			panic(err)
		}
		str := string(r)
		switch str {
		default:
			if k == 13 {
				fmt.Println("\n-----------------------------------")
				break
			}
			if r == 0 {
				break
			}
			fmt.Println("Key " + str + " is not bound to any test procedures. See main.cliListener for more details.")
		case "n":
			users, notes, channels, addressables := c.Counts()
			fmt.Printf("\nUsers: %d\nNotes: %d\nChannels: %d\nAddressable Notes: %d\n", users, notes, channels, addressables)
		case "r":
			for url, status := range c.RelayStatuses() {
				fmt.Printf("\nRelay: %s\nEvents: %d\nSpam: %d\nLast Seen: %s\n", url, status.EventCounter, status.SpamCounter, time.Unix(status.LastSeen, 0).String())
			}
		case "h":
			for _, pubkey := range c.HiddenUsers() {
				fmt.Printf("\nHidden: %s\n", pubkey)
			}
		case "p":
			c.PruneOldAndHiddenMessages()
			c.PruneHiddenUsers()
			fmt.Println("pruned")
		case "q":
			actors.Shutdown()
			return
		case "c":
			fmt.Println("CURRENT CONFIG")
			for key, v := range actors.MakeOrGetConfig().AllSettings() {
				fmt.Printf("\nKey: %s; Value: %v\n", key, v)
			}
		}
	}
}
