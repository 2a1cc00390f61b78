package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/walletscope/txscore/internal/addr"
	cfgpkg "github.com/walletscope/txscore/internal/config"
	"github.com/walletscope/txscore/internal/enrich"
	"github.com/walletscope/txscore/internal/explorer"
	"github.com/walletscope/txscore/internal/logging"
	"github.com/walletscope/txscore/internal/score"
)

var (
	// version is set via -ldflags "-X main.version=..."
	version = "dev"
	// exit is aliased to os.Exit to allow overriding in tests.
	exit = os.Exit
	// function variables allow tests to inject stubs
	newSource func(base string, rate, retries int, backoff, timeout time.Duration) (explorer.DataSource, error)
)

func defaultNewSource(base string, rate, retries int, backoff, timeout time.Duration) (explorer.DataSource, error) {
	return explorer.NewDataSource(base, rate, retries, backoff, timeout)
}

func wireDefaults() {
	newSource = defaultNewSource
}

func init() { wireDefaults() }

// printUsage prints a detailed CLI help with env mappings and examples.
func printUsage() {
	fmt.Fprintf(flag.CommandLine.Output(), "\nUsage:\n  %s --address 0x... [--network mainnet|sepolia] [flags]\n\n", os.Args[0])
	fmt.Fprintln(flag.CommandLine.Output(), "Flags:")
	flag.PrintDefaults()
	fmt.Fprintln(flag.CommandLine.Output(), "\nEnvironment variables (defaults):")
	fmt.Fprintln(flag.CommandLine.Output(), "  BLOCKSCOUT_MAINNET_URL Explorer base URL for mainnet")
	fmt.Fprintln(flag.CommandLine.Output(), "  BLOCKSCOUT_SEPOLIA_URL Explorer base URL for sepolia")
	fmt.Fprintln(flag.CommandLine.Output(), "  TX_LIMIT               Transactions scored per wallet (default 3)")
	fmt.Fprintln(flag.CommandLine.Output(), "  COHORT_BLOCKS          Recent blocks sampled for the cohort (default 12)")
	fmt.Fprintln(flag.CommandLine.Output(), "  COHORT_TX_CAP          Cohort sample cap across blocks (default 600)")
	fmt.Fprintln(flag.CommandLine.Output(), "  RATE_LIMIT             Explorer rate limit (req/s, default 0 = unlimited)")
	fmt.Fprintln(flag.CommandLine.Output(), "  HTTP_RETRIES           HTTP retries on 5xx/429/network (default 2)")
	fmt.Fprintln(flag.CommandLine.Output(), "  HTTP_BACKOFF_BASE      Backoff base for retries (default 100ms)")
	fmt.Fprintln(flag.CommandLine.Output(), "  HTTP_TIMEOUT           Request timeout (default 30s)")
	fmt.Fprintln(flag.CommandLine.Output(), "  LOG_LEVEL              debug | info | warn | error (default info)")
	fmt.Fprintln(flag.CommandLine.Output(), "\nExamples:")
	fmt.Fprintln(flag.CommandLine.Output(), "  Score the three most recent mainnet transactions of a wallet:")
	fmt.Fprintln(flag.CommandLine.Output(), "    scorer --address 0xabc... --network mainnet")
	fmt.Fprintln(flag.CommandLine.Output(), "  Wider cohort on sepolia:")
	fmt.Fprintln(flag.CommandLine.Output(), "    scorer --address 0xabc... --network sepolia --blocks 24 --tx-cap 1200")
}

// One-shot scoring entrypoint: fetch, sample, enrich, score, print JSON.
func main() {
	_ = godotenv.Load()
	defaults := cfgpkg.Load()
	var (
		address     string
		network     string
		limit       int
		blocks      int
		txCap       int
		timeout     time.Duration
		dryRun      bool
		showVersion bool
	)

	flag.Usage = printUsage
	flag.StringVar(&address, "address", "", "Wallet address to score (0x...) [required]")
	flag.StringVar(&network, "network", "mainnet", "Network: mainnet | sepolia")
	flag.IntVar(&limit, "limit", defaults.TxLimit, "Recent transactions to score")
	flag.IntVar(&blocks, "blocks", defaults.CohortBlocks, "Recent blocks sampled for the cohort")
	flag.IntVar(&txCap, "tx-cap", defaults.CohortTxCap, "Cohort sample cap across blocks")
	flag.DurationVar(&timeout, "timeout", defaults.HTTPTimeout, "Overall run timeout")
	flag.BoolVar(&dryRun, "dry-run", false, "Print plan and exit")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	if address == "" {
		fmt.Fprintln(os.Stderr, "missing --address (0x...); see --help")
		exit(2)
	}
	if !addr.IsValid(address) {
		fmt.Fprintln(os.Stderr, "invalid --address; expected 0x-prefixed 40 hex chars (EIP-55 when mixed case)")
		exit(2)
	}
	network = strings.ToLower(network)
	base := defaults.ExplorerURL(network)
	if base == "" {
		fmt.Fprintf(os.Stderr, "unknown --network %q (use mainnet|sepolia)\n", network)
		exit(2)
	}
	if limit <= 0 {
		fmt.Fprintln(os.Stderr, "--limit must be > 0")
		exit(2)
	}
	if blocks <= 0 || txCap <= 0 {
		fmt.Fprintln(os.Stderr, "--blocks and --tx-cap must be > 0")
		exit(2)
	}

	if dryRun {
		plan := map[string]any{
			"address":  address,
			"network":  network,
			"explorer": cfgpkg.Redact(base),
			"limit":    limit,
			"blocks":   blocks,
			"tx_cap":   txCap,
			"timeout":  timeout.String(),
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(plan)
		return
	}

	// Results go to stdout; keep logs on stderr. Re-read the level since .env
	// is only loaded after the logger's init.
	logging.SetLogger(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logging.LevelFromEnv()})))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ds, err := newSource(base, defaults.RateLimit, defaults.HTTPRetries, defaults.HTTPBackoffBase, defaults.HTTPTimeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "explorer error: %v\n", err)
		exit(1)
	}

	txs, err := ds.AddressTransactions(ctx, address, limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "transaction fetch error: %v\n", err)
		exit(1)
	}

	builder, err := score.NewCohortBuilder(ds, blocks, txCap)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cohort error: %v\n", err)
		exit(1)
	}
	cohort := builder.Build(ctx)
	bundles := enrich.New(ds, defaults.HTTPTimeout).FetchBatch(ctx, txs)
	scored := score.NewEngine().ScoreBatch(ctx, txs, bundles, cohort)

	out := map[string]any{
		"address":       address,
		"network":       network,
		"cohort_blocks": cohort.SampleBlocks,
		"cohort_txs":    cohort.SampleTxs,
		"transactions":  scored,
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "encode error: %v\n", err)
		exit(1)
	}
}
