// ingest is the one-shot CLI: it pulls a date range through the full
// download, parse, validate and store pipeline without starting the
// daemon, printing one line per date.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"indistocks/internal/app"
	"indistocks/pkg/contracts/domain"
)

func main() {
	var (
		configFile = flag.String("config", "", "path to YAML config file (optional)")
		fromRaw    = flag.String("from", "", "start date YYYY-MM-DD (required)")
		toRaw      = flag.String("to", "", "end date YYYY-MM-DD (defaults to from)")
		refresh    = flag.Bool("refresh-symbols", false, "refresh the symbol directory before ingesting")
	)
	flag.Parse()

	if *fromRaw == "" {
		fmt.Fprintln(os.Stderr, "usage: ingest -from YYYY-MM-DD [-to YYYY-MM-DD] [-refresh-symbols] [-config FILE]")
		os.Exit(2)
	}
	from, err := time.Parse("2006-01-02", *fromRaw)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -from date %q\n", *fromRaw)
		os.Exit(2)
	}
	to := from
	if *toRaw != "" {
		if to, err = time.Parse("2006-01-02", *toRaw); err != nil {
			fmt.Fprintf(os.Stderr, "invalid -to date %q\n", *toRaw)
			os.Exit(2)
		}
	}

	application, err := app.New(*configFile)
	if err != nil {
		slog.Error("failed to initialize", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *refresh {
		summary, err := application.Directory.Refresh(ctx)
		if err != nil {
			application.Logger.Error("symbol refresh failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		fmt.Printf("symbols: %d total (%d added, %d updated, %d deactivated)\n",
			summary.Total, summary.Added, summary.Updated, summary.Deactivated)
	}

	results, err := application.Coordinator.Run(ctx, from, to)
	for _, r := range results {
		printDay(r)
	}
	if err != nil {
		application.Logger.Error("ingestion failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var failed int
	for _, r := range results {
		if r.Status == domain.DayFailed {
			failed++
		}
	}
	if failed > 0 {
		fmt.Printf("%d of %d days failed\n", failed, len(results))
		os.Exit(1)
	}
}

func printDay(r domain.DayResult) {
	line := fmt.Sprintf("%s  %-8s", r.Date.Format("2006-01-02"), r.Status)
	switch r.Status {
	case domain.DayStored:
		line += fmt.Sprintf("  %d rows", r.RowsStored)
		if r.RowsRejected > 0 {
			line += fmt.Sprintf(" (%d rejected)", r.RowsRejected)
		}
	case domain.DayFailed, domain.DaySkipped:
		if r.Reason != "" {
			line += "  " + r.Reason
		}
	}
	fmt.Println(line)
}
