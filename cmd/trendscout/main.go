package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"TrendScout/internal/app"
	"TrendScout/internal/config"
	"TrendScout/internal/logger"
	"TrendScout/internal/scheduler"
)

const usage = `Usage: trendscout [-config path] <command>

Commands:
  fetch     download history for master-list symbols missing from the bar store
  scan      evaluate the bar store and write the signal and uptrend tables
  run       fetch, then scan
  schedule  run the daily job on the configured cron schedule
  inspect   report bar-store size and date coverage
`

var errUsage = errors.New("usage")

func main() {
	err := run(os.Args[1:], os.Stdout)
	if errors.Is(err, errUsage) {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "trendscout:", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("trendscout", flag.ContinueOnError)
	fs.Usage = func() {}
	cfgPath := config.DefaultPath
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	fs.StringVar(&cfgPath, "config", cfgPath, "path to config.yaml")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	cmd := fs.Arg(0)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}
	log, err := logger.New(&cfg.Log)
	if err != nil {
		return err
	}

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("close", logger.Error(err))
		}
	}()
	log.Info("TrendScout starting", logger.String("command", cmd), logger.String("source", a.Source.Name()))

	switch cmd {
	case "fetch":
		rep, err := a.Fetch(ctx)
		fmt.Fprintf(stdout, "requested %d, already stored %d, fetched %d, empty %d, failed %d, rows appended %d\n",
			rep.Requested, rep.Skipped, rep.Fetched, rep.Empty, rep.Failed, rep.RowsAppended)
		return err
	case "scan":
		sum, err := a.Scan(ctx)
		if err != nil {
			return err
		}
		printScan(stdout, sum)
		return nil
	case "run":
		sum, err := a.Run(ctx)
		if err != nil {
			return err
		}
		printScan(stdout, sum)
		return nil
	case "inspect":
		rep, err := a.Inspect(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "rows %d, valid bars %d, symbols %d, dates %s .. %s\n",
			rep.Rows, rep.ValidBars, rep.UniqueSymbols,
			rep.FirstDate.Format("2006-01-02"), rep.LastDate.Format("2006-01-02"))
		if rep.TooManySymbols {
			fmt.Fprintf(stdout, "warning: more than %d symbols, the store may hold stale data\n", cfg.Inspect.MaxSymbols)
		}
		return nil
	case "schedule":
		return schedule(ctx, a, cfg, log)
	default:
		return errUsage
	}
}

func schedule(ctx context.Context, a *app.App, cfg *config.Config, log *logger.Logger) error {
	sched, err := scheduler.New(ctx, cfg.Schedule.Timezone, log)
	if err != nil {
		return err
	}
	if err := sched.Register(cfg.Schedule.DailyCron, "daily", a.Daily); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()
	for _, next := range sched.Next() {
		log.Info("next daily run", logger.String("at", next.Format(time.RFC3339)))
	}

	if cfg.Schedule.RunOnStart {
		log.Info("run_on_start enabled, executing daily task now")
		go func() { _ = sched.RunNow("daily", a.Daily) }()
	}

	log.Info("TrendScout is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	log.Info("shutdown signal received, stopping...")
	return nil
}

func printScan(w io.Writer, sum app.ScanSummary) {
	c := sum.Counts
	fmt.Fprintf(w, "rows %d (dropped %d), symbols %d: ok %d, skipped %d, failed %d\n",
		sum.Rows.Rows, sum.Rows.Dropped(), c.Symbols, c.Success, c.Skipped, c.Failed)
	fmt.Fprintf(w, "buy signals %d, uptrend members %d\n", c.Signals, c.TrendMembers)
	if len(sum.Signals) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tCLOSE\tDATE\tRSI")
	for _, s := range sum.Signals {
		fmt.Fprintf(tw, "%s\t%.2f\t%s\t%.2f\n", s.Symbol, s.Close, s.Date.Format("2006-01-02"), s.RSI)
	}
	tw.Flush()
}
