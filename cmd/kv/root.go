package kv

import (
	"github.com/Kaychang/ignitecache/cmd/util"
	"github.com/Kaychang/ignitecache/lib/cache"
	"github.com/spf13/cobra"
)

var (
	theCache *cache.Cache

	// KeyValueCommands represents the KV command group. Unlike the old
	// RPC-backed kv command, every subcommand here drives an in-process
	// cache.Cache directly - there is no server to dial.
	KeyValueCommands = &cobra.Command{
		Use:               "kv",
		Short:             "Perform key-value cache operations against an in-process cache",
		PersistentPreRunE: setupCache,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitClientConfig)

	// Add cache-configuration flags to the KV command
	util.SetupCacheFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(invokeCmd)
	KeyValueCommands.AddCommand(replCmd)
	KeyValueCommands.AddCommand(benchCmd)
}

// setupCache builds the shared cache.Cache every subcommand operates on.
func setupCache(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	theCache = cache.New(util.GetCacheOptions())
	return nil
}
