package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dd0wney/cluso-kv/pkg/kvstore"
)

type CLI struct {
	store   *kvstore.Store
	scanner *bufio.Scanner
}

func main() {
	dataDir := flag.String("data", "./data/cli", "Store directory")
	configPath := flag.String("config", "", "Optional YAML options file")
	flag.Parse()

	opts := kvstore.DefaultOptions()
	if *configPath != "" {
		var err error
		opts, err = kvstore.LoadOptions(*configPath)
		if err != nil {
			fmt.Printf("❌ Failed to load options: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("📂 Opening store at %s...\n", *dataDir)
	store, err := kvstore.Open(*dataDir, opts)
	if err != nil {
		fmt.Printf("❌ Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	stats := store.StatsSnapshot()
	fmt.Printf("✅ Store loaded\n")
	fmt.Printf("   Memtable entries: %d\n", stats.MemtableEntries)
	if len(stats.SSTablesByLevel) > 0 {
		fmt.Printf("   Levels: %v\n", stats.SSTablesByLevel)
	}
	fmt.Println()
	fmt.Println("Commands: put <k> <v> | get <k> | scan <k1> <k2> | update <k> <v> | delete <k> | stats | exit")
	fmt.Println()

	cli := &CLI{store: store, scanner: bufio.NewScanner(os.Stdin)}
	cli.run()
}

func (c *CLI) run() {
	for {
		fmt.Print("cluso-kv> ")
		if !c.scanner.Scan() {
			return
		}
		fields := strings.Fields(c.scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "exit", "quit":
			return
		case "put":
			c.put(fields[1:])
		case "get":
			c.get(fields[1:])
		case "scan":
			c.scan(fields[1:])
		case "update":
			c.update(fields[1:])
		case "delete":
			c.delete(fields[1:])
		case "stats":
			fmt.Printf("%+v\n", c.store.StatsSnapshot())
		default:
			fmt.Printf("unknown command %q\n", fields[0])
		}
	}
}

func parseU64(args []string, n int) ([]uint64, bool) {
	if len(args) != n {
		fmt.Printf("expected %d argument(s)\n", n)
		return nil, false
	}
	out := make([]uint64, n)
	for i, a := range args {
		v, err := strconv.ParseUint(a, 10, 64)
		if err != nil {
			fmt.Printf("bad number %q\n", a)
			return nil, false
		}
		out[i] = v
	}
	return out, true
}

func (c *CLI) put(args []string) {
	kvArgs, ok := parseU64(args, 2)
	if !ok {
		return
	}
	if err := c.store.Put(kvArgs[0], kvArgs[1]); err != nil {
		fmt.Printf("❌ %v\n", err)
		return
	}
	fmt.Println("ok")
}

func (c *CLI) get(args []string) {
	kvArgs, ok := parseU64(args, 1)
	if !ok {
		return
	}
	value, found, err := c.store.Get(kvArgs[0])
	switch {
	case err != nil:
		fmt.Printf("❌ %v\n", err)
	case !found:
		fmt.Println("(absent)")
	default:
		fmt.Println(value)
	}
}

func (c *CLI) scan(args []string) {
	kvArgs, ok := parseU64(args, 2)
	if !ok {
		return
	}
	pairs, err := c.store.Scan(kvArgs[0], kvArgs[1])
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		return
	}
	for _, e := range pairs {
		fmt.Printf("%d -> %d\n", e.Key, e.Value)
	}
	fmt.Printf("(%d pairs)\n", len(pairs))
}

func (c *CLI) update(args []string) {
	kvArgs, ok := parseU64(args, 2)
	if !ok {
		return
	}
	if err := c.store.Update(kvArgs[0], kvArgs[1]); err != nil {
		fmt.Printf("❌ %v\n", err)
		return
	}
	fmt.Println("ok")
}

func (c *CLI) delete(args []string) {
	kvArgs, ok := parseU64(args, 1)
	if !ok {
		return
	}
	if err := c.store.Delete(kvArgs[0]); err != nil {
		fmt.Printf("❌ %v\n", err)
		return
	}
	fmt.Println("ok")
}
