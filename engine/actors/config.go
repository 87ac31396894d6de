package actors

import (
	"os"

	"github.com/spf13/viper"
	"lodestone/engine/library"
)

// InitConfig sets up our Viper config object
func InitConfig(config *viper.Viper) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		library.LogCLI(err.Error(), 0)
	}
	config.SetDefault("rootDir", homeDir+"/lodestone/")
	config.SetConfigType("yaml")
	config.SetConfigFile(config.GetString("rootDir") + "config.yaml")
	err = config.ReadInConfig()
	if err != nil {
		library.LogCLI(err.Error(), 4)
	}
	config.SetDefault("firstRun", true)
	config.SetDefault("logLevel", 4)
	config.SetDefault("relaysMust", []string{"wss://relay.damus.io"})

	// The glyph tables are protocol convention rather than structure, so they
	// stay in config where a deployment can widen them.
	config.SetDefault("positiveReactions", []string{"", "+", "❤️", "\U0001F919", "\U0001F44D"})
	config.SetDefault("flagReactions", []string{"!", "⚠️"})

	config.SetDefault("maxMessagesPerChannel", 1000)
	config.SetDefault("invalidationDelayMs", int64(50))
	config.SetDefault("antispamWindowSeconds", int64(300))

	// Create our working directory and config file if not exist
	initRootDir(config)
	touch(config.GetString("rootDir") + "config.yaml")
	err = config.WriteConfig()
	if err != nil {
		library.LogCLI(err.Error(), 0)
	}
}

func initRootDir(conf *viper.Viper) {
	_, err := os.Stat(conf.GetString("rootDir"))
	if os.IsNotExist(err) {
		err = os.Mkdir(conf.GetString("rootDir"), 0755)
		if err != nil {
			library.LogCLI(err, 0)
		}
	}
}

func touch(path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.Create(path)
		if err != nil {
			library.LogCLI(err.Error(), 0)
			return
		}
		f.Close()
	}
}

var conf *viper.Viper

func MakeOrGetConfig() *viper.Viper {
	return conf
}

func SetConfig(config *viper.Viper) {
	conf = config
}
