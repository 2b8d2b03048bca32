// cmd/insightwatch tails insights published to Redis by insightd: it prints
// the newest stream entries, then follows the per-symbol pub/sub channels.
//
// Usage:
//
//	go run ./cmd/insightwatch -redis=localhost:6379 -symbols=AAPL,MSFT -min-impact=High
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"trading-insights/internal/logger"
	"trading-insights/internal/model"
	redisstore "trading-insights/internal/store/redis"
)

func main() {
	addr := flag.String("redis", "localhost:6379", "Redis address")
	password := flag.String("password", "", "Redis password")
	db := flag.Int("db", 0, "Redis database")
	symbols := flag.String("symbols", "", "Comma-separated symbols to follow (empty = all)")
	recent := flag.Int64("recent", 20, "Print this many stream entries before following (0 = none)")
	minImpact := flag.String("min-impact", string(model.ImpactLow), "Hide insights below this impact")
	flag.Parse()

	// Logs go to stderr so stdout carries only insights.
	log := logger.New(os.Stderr, "insightwatch", slog.LevelInfo)
	slog.SetDefault(log)

	floor, ok := model.ParseImpact(*minImpact)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown impact %q\n", *minImpact)
		os.Exit(2)
	}

	reader, err := redisstore.NewReader(redisstore.ReaderConfig{Addr: *addr, Password: *password, DB: *db})
	if err != nil {
		log.Error("redis connect failed", "addr", *addr, "err", err)
		os.Exit(1)
	}
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var follow []string
	for _, s := range strings.Split(*symbols, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			follow = append(follow, s)
		}
	}
	wanted := make(map[string]bool, len(follow))
	for _, s := range follow {
		wanted[s] = true
	}
	show := func(in model.Insight) {
		if in.Impact.Rank() < floor.Rank() || (len(wanted) > 0 && !wanted[in.Symbol]) {
			return
		}
		fmt.Println(format(in))
	}

	if *recent > 0 {
		backlog, err := reader.ReadRecent(ctx, *recent)
		if err != nil {
			log.Warn("stream read failed", "err", err)
		}
		for _, in := range backlog {
			show(in)
		}
		fmt.Println(strings.Repeat("─", 72))
	}

	live := make(chan model.Insight, 64)
	errCh := make(chan error, 1)
	go func() { errCh <- reader.Subscribe(ctx, follow, live) }()

	for {
		select {
		case in := <-live:
			show(in)
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error("subscription ended", "err", err)
				os.Exit(1)
			}
			return
		}
	}
}

func format(in model.Insight) string {
	ts := time.UnixMilli(in.Timestamp).UTC().Format("2006-01-02 15:04:05")
	return fmt.Sprintf("%s  %-6s %-22s %-8s %3.0f%%  %-18s %s",
		ts, in.Symbol, in.Pattern, in.Impact, in.Confidence*100, in.SuggestedAction, in.Reason)
}
