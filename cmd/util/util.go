package util

import (
	"strings"
	"time"

	"github.com/Kaychang/ignitecache/lib/cache"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/joho/godotenv"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		// Add the word
		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupCacheFlags adds the flags that configure an in-process lib/cache.Cache
// to cmd. It replaces the old SetupRPCClientFlags now that there is no RPC
// endpoint to dial — every flag here feeds cache.Options instead.
func SetupCacheFlags(cmd *cobra.Command) {
	key := "num-shards"
	cmd.PersistentFlags().Int(key, 16, WrapString("Number of row store shards backing the cache"))

	key = "gc-interval"
	cmd.PersistentFlags().Int(key, 1, WrapString("Background expired-entry sweep interval, in seconds"))

	key = "deferred-delete"
	cmd.PersistentFlags().Bool(key, false, WrapString("Keep removed entries as tombstones instead of evicting them immediately"))

	key = "node-order"
	cmd.PersistentFlags().Int(key, 1, WrapString("Local node order used to mint entry versions"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("ignitecache")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetCacheOptions reads cache.Options from viper, populated by the flags
// SetupCacheFlags registers.
func GetCacheOptions() *cache.Options {
	return &cache.Options{
		NumShards:             viper.GetInt("num-shards"),
		GCInterval:            time.Duration(viper.GetInt("gc-interval")) * time.Second,
		DeferredDeleteEnabled: viper.GetBool("deferred-delete"),
		LocalNodeOrder:        uint32(viper.GetInt("node-order")),
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
