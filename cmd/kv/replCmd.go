package kv

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Kaychang/ignitecache/lib/cacheentry"
	"github.com/spf13/cobra"
)

// replCmd keeps a single cache.Cache alive for the whole session, unlike
// set/get/del which each start and close a fresh cache. It is the only CLI
// surface where a get actually sees an earlier set.
var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive session against one long-lived in-process cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		defer theCache.Close()
		ctx := context.Background()
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Println("ignitecache repl - commands: set <k> <v> | get <k> | del <k> | invoke <k> upper|lower | quit")
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				return nil
			}
			fields := strings.Fields(scanner.Text())
			if len(fields) == 0 {
				continue
			}
			if err := runReplCommand(ctx, fields); err != nil {
				fmt.Println("error:", err)
			}
		}
	},
}

func runReplCommand(ctx context.Context, fields []string) error {
	switch fields[0] {
	case "quit", "exit":
		os.Exit(0)
	case "set":
		if len(fields) != 3 {
			return fmt.Errorf("usage: set <key> <value>")
		}
		res, err := theCache.Put(ctx, fields[1], []byte(fields[2]), cacheentry.SetOptions{})
		if err != nil {
			return err
		}
		fmt.Printf("ok outcome=%v ver=%+v\n", res.Outcome, res.Ver)
	case "get":
		if len(fields) != 2 {
			return fmt.Errorf("usage: get <key>")
		}
		res, err := theCache.Get(ctx, fields[1], cacheentry.GetOptions{})
		if err != nil {
			return err
		}
		if !res.Found {
			fmt.Println("not found")
			return nil
		}
		fmt.Printf("value=%s ver=%+v\n", res.Value, res.Ver)
	case "del":
		if len(fields) != 2 {
			return fmt.Errorf("usage: del <key>")
		}
		res, err := theCache.Remove(ctx, fields[1], cacheentry.RemoveOptions{})
		if err != nil {
			return err
		}
		fmt.Printf("outcome=%v\n", res.Outcome)
	case "invoke":
		if len(fields) != 3 {
			return fmt.Errorf("usage: invoke <key> upper|lower")
		}
		proc, err := entryProcessorByName(fields[2])
		if err != nil {
			return err
		}
		res, err := theCache.Invoke(ctx, fields[1], cacheentry.UpdateRequest{Processor: proc})
		if err != nil {
			return err
		}
		fmt.Printf("outcome=%v newval=%s\n", res.Outcome, res.NewVal)
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
	return nil
}
