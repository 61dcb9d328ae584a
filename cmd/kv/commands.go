package kv

import (
	"context"
	"fmt"

	"github.com/Kaychang/ignitecache/lib/cacheentry"
	"github.com/spf13/cobra"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Puts a value into the cache",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer theCache.Close()
			res, err := theCache.Put(context.Background(), args[0], []byte(args[1]), cacheentry.SetOptions{})
			if err != nil {
				return err
			}
			fmt.Printf("set ok, outcome=%v ver=%+v\n", res.Outcome, res.Ver)
			return nil
		},
	}

	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer theCache.Close()
			res, err := theCache.Get(context.Background(), args[0], cacheentry.GetOptions{})
			if err != nil {
				return err
			}
			if !res.Found {
				fmt.Printf("key=%s not found\n", args[0])
				return nil
			}
			fmt.Printf("key=%s value=%s ver=%+v\n", args[0], res.Value, res.Ver)
			return nil
		},
	}

	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Removes a key from the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer theCache.Close()
			res, err := theCache.Remove(context.Background(), args[0], cacheentry.RemoveOptions{})
			if err != nil {
				return err
			}
			fmt.Printf("del outcome=%v\n", res.Outcome)
			return nil
		},
	}

	invokeCmd = &cobra.Command{
		Use:   "invoke [key] [upper|lower]",
		Short: "Atomically transforms the value stored at key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			defer theCache.Close()
			proc, err := entryProcessorByName(args[1])
			if err != nil {
				return err
			}
			res, err := theCache.Invoke(context.Background(), args[0], cacheentry.UpdateRequest{Processor: proc})
			if err != nil {
				return err
			}
			fmt.Printf("invoke outcome=%v newval=%s\n", res.Outcome, res.NewVal)
			return nil
		},
	}
)
