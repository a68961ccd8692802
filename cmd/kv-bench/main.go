package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/dd0wney/cluso-kv/pkg/kvstore"
)

func main() {
	count := flag.Int("n", 100000, "Number of pairs to write")
	reads := flag.Int("reads", 10000, "Number of random reads")
	scans := flag.Int("scans", 100, "Number of 1k-wide scans")
	dataDir := flag.String("data", "./data/benchmark", "Store directory")
	memtable := flag.Int("memtable", 4096, "Memtable capacity in entries")
	eviction := flag.String("eviction", "lru", "Buffer pool eviction policy (lru|clock)")
	flag.Parse()

	fmt.Printf("🔥 Cluso KV Benchmark\n")
	fmt.Printf("=====================\n\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Pairs: %d\n", *count)
	fmt.Printf("  Reads: %d\n", *reads)
	fmt.Printf("  Memtable: %d entries\n", *memtable)
	fmt.Printf("  Eviction: %s\n\n", *eviction)

	opts := kvstore.DefaultOptions()
	opts.MemtableMaxEntries = *memtable
	opts.BufferPool.Eviction = *eviction

	store, err := kvstore.Open(*dataDir, opts)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	fmt.Printf("📝 Benchmark 1: Sequential Puts\n")
	start := time.Now()
	for i := 0; i < *count; i++ {
		if err := store.Put(uint64(i), uint64(i)*10); err != nil {
			log.Fatalf("Put failed: %v", err)
		}
	}
	elapsed := time.Since(start)
	fmt.Printf("   %d puts in %v (%.0f ops/s)\n\n", *count, elapsed,
		float64(*count)/elapsed.Seconds())

	fmt.Printf("🔎 Benchmark 2: Random Gets\n")
	start = time.Now()
	hits := 0
	for i := 0; i < *reads; i++ {
		key := uint64(rand.Intn(*count))
		_, found, err := store.Get(key)
		if err != nil {
			log.Fatalf("Get failed: %v", err)
		}
		if found {
			hits++
		}
	}
	elapsed = time.Since(start)
	fmt.Printf("   %d gets in %v (%.0f ops/s, %d hits)\n\n", *reads, elapsed,
		float64(*reads)/elapsed.Seconds(), hits)

	fmt.Printf("📖 Benchmark 3: Range Scans\n")
	start = time.Now()
	total := 0
	for i := 0; i < *scans; i++ {
		from := uint64(rand.Intn(*count))
		pairs, err := store.Scan(from, from+999)
		if err != nil {
			log.Fatalf("Scan failed: %v", err)
		}
		total += len(pairs)
	}
	elapsed = time.Since(start)
	fmt.Printf("   %d scans in %v (%d pairs)\n\n", *scans, elapsed, total)

	fmt.Printf("📊 Final shape: %+v\n", store.StatsSnapshot())
}
