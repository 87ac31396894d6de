package main

import (
	"fmt"

	"github.com/spf13/viper"
	"lodestone/engine/actors"
	"lodestone/engine/library"
	"lodestone/messaging/eventconductor"
	"lodestone/state/cache"
)

func main() {
	// Various aspects of this application require global and local settings.
	// To keep things clean and tidy we put these settings in a Viper
	// configuration.
	conf := viper.New()

	// Now we initialise this configuration with basic settings that are
	// required on startup.
	actors.InitConfig(conf)
	// make the config accessible globally
	actors.SetConfig(conf)
	fmt.Println("CURRENT CONFIG")
	for k, v := range actors.MakeOrGetConfig().AllSettings() {
		fmt.Printf("\nKey: %s; Value: %v\n", k, v)
	}

	c := cache.NewCacheWithConfig(actors.MakeOrGetConfig())
	go eventconductor.Start(c)
	go logStateUpdates(c)
	go cliListener(c)

	<-actors.GetTerminateChan()
	actors.GetWaitGroup().Wait()
	library.LogCLI("shutdown complete", 4)
}

// logStateUpdates watches the coalesced invalidation signal so a quiet debug
// log line confirms the cache is actually moving.
func logStateUpdates(c *cache.Cache) {
	updates := c.Subscribe()
	defer c.Unsubscribe(updates)
	for {
		select {
		case <-updates:
			users, notes, channels, addressables := c.Counts()
			library.LogCLI(fmt.Sprintf("state updated: %d users, %d notes, %d channels, %d addressable notes", users, notes, channels, addressables), 5)
		case <-actors.GetTerminateChan():
			return
		}
	}
}
