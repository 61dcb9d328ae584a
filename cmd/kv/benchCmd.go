package kv

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Kaychang/ignitecache/cmd/util"
	"github.com/Kaychang/ignitecache/lib/cacheentry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// benchCmd is the adapted successor of the old RPC perf command: instead of
// driving an RPC-backed store from many client connections, it drives the
// same in-process cache.Cache from many goroutines to measure the
// cacheentry state machine's own throughput.
var (
	benchCmd = &cobra.Command{
		Use:     "bench",
		Short:   "Benchmark put/get/invoke throughput against the in-process cache",
		RunE:    runBench,
		PreRunE: processBenchConfig,
	}

	benchThreads        = 10
	benchKeySpread      = 1000
	benchLargeValueSize = 100
	benchSkip           = make([]string, 0)
)

func init() {
	key := "threads"
	benchCmd.Flags().Int(key, benchThreads, util.WrapString("Number of goroutines to run concurrently"))
	key = "keys"
	benchCmd.Flags().Int(key, benchKeySpread, util.WrapString("How many distinct keys to spread operations across"))
	key = "large-value-size"
	benchCmd.Flags().Int(key, benchLargeValueSize, util.WrapString("Size in KB of the value used by the set-large benchmark"))
	key = "skip"
	benchCmd.Flags().String(key, "", util.WrapString("Comma-separated benchmarks to skip (set,get,invoke,set-large)"))
	key = "csv"
	benchCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processBenchConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	benchThreads = viper.GetInt("threads")
	benchKeySpread = viper.GetInt("keys")
	benchLargeValueSize = viper.GetInt("large-value-size")
	if skip := viper.GetString("skip"); skip != "" {
		benchSkip = strings.Split(skip, ",")
	}
	return nil
}

type benchResult struct {
	name    string
	ops     int
	elapsed time.Duration
}

func (r benchResult) opsPerSec() float64 {
	if r.elapsed <= 0 {
		return 0
	}
	return float64(r.ops) / r.elapsed.Seconds()
}

func runBench(cmd *cobra.Command, args []string) error {
	defer theCache.Close()
	ctx := context.Background()

	var results []benchResult
	if !skips("set") {
		results = append(results, runConcurrent("set", func(i int) error {
			_, err := theCache.Put(ctx, benchKey(i), []byte(fmt.Sprintf("v%d", i)), cacheentry.SetOptions{})
			return err
		}))
	}
	if !skips("get") {
		results = append(results, runConcurrent("get", func(i int) error {
			_, err := theCache.Get(ctx, benchKey(i), cacheentry.GetOptions{})
			return err
		}))
	}
	if !skips("invoke") {
		upper, _ := entryProcessorByName("upper")
		results = append(results, runConcurrent("invoke", func(i int) error {
			_, err := theCache.Invoke(ctx, benchKey(i), cacheentry.UpdateRequest{Processor: upper})
			return err
		}))
	}
	if !skips("set-large") {
		large := strings.Repeat("x", benchLargeValueSize*1024)
		results = append(results, runConcurrent("set-large", func(i int) error {
			_, err := theCache.Put(ctx, benchKey(i), []byte(large), cacheentry.SetOptions{})
			return err
		}))
	}

	for _, r := range results {
		fmt.Printf("%-10s ops=%-8d elapsed=%-12s ops/s=%.2f\n", r.name, r.ops, r.elapsed, r.opsPerSec())
	}

	if path := viper.GetString("csv"); path != "" {
		return writeBenchCSV(path, results)
	}
	return nil
}

func skips(name string) bool {
	for _, s := range benchSkip {
		if s == name {
			return true
		}
	}
	return false
}

func benchKey(i int) string {
	return "bench-" + strconv.Itoa(i%benchKeySpread)
}

func runConcurrent(name string, op func(i int) error) benchResult {
	opsPerThread := benchKeySpread / benchThreads
	if opsPerThread == 0 {
		opsPerThread = 1
	}

	var wg sync.WaitGroup
	start := time.Now()
	for t := 0; t < benchThreads; t++ {
		wg.Add(1)
		go func(t int) {
			defer wg.Done()
			for i := 0; i < opsPerThread; i++ {
				_ = op(t*opsPerThread + i)
			}
		}(t)
	}
	wg.Wait()

	return benchResult{name: name, ops: opsPerThread * benchThreads, elapsed: time.Since(start)}
}

func writeBenchCSV(path string, results []benchResult) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"benchmark", "ops", "elapsed_ms", "ops_per_sec"}); err != nil {
		return err
	}
	for _, r := range results {
		row := []string{
			r.name,
			strconv.Itoa(r.ops),
			strconv.FormatInt(r.elapsed.Milliseconds(), 10),
			strconv.FormatFloat(r.opsPerSec(), 'f', 2, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
