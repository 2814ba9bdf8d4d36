// Command statcrawler runs one ingestion of NBA per-game player statistics:
// fetch the season page politely, parse and enrich it, persist the dataset,
// and announce the run downstream.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hoopsight/statcrawler/internal/app"
	"github.com/hoopsight/statcrawler/internal/ingest"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", "", "path to config file (optional; env and defaults apply)")
		season     = flag.String("season", strconv.Itoa(currentSeason()), "season end year, e.g. 2025")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, *configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "statcrawler: %v\n", err)
		return 1
	}
	defer a.Close()

	runRecord, err := a.Run(ctx, *season)
	if err != nil {
		fmt.Fprintf(os.Stderr, "statcrawler: %v\n", err)
		return 1
	}
	if runRecord.Status == ingest.RunPartialFailure {
		return 2
	}
	return 0
}

// currentSeason maps today's date to the NBA season end year: from October
// onward the season in progress ends next calendar year.
func currentSeason() int {
	now := time.Now()
	if now.Month() >= time.October {
		return now.Year() + 1
	}
	return now.Year()
}
