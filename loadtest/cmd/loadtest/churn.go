package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/duetchat/duet/loadtest/client"
	"github.com/duetchat/duet/loadtest/stats"
)

// runChurn implements the churn test. A fixed number of worker goroutines
// each cycle through the short-lived client lifecycle the server sees from
// impatient users: connect, find_partner, skip through a few partners, then
// drop the connection without a goodbye. The abrupt close exercises the
// disconnect cleanup path under sustained load; the skips exercise pair
// teardown and immediate re-matching.
func runChurn(args []string) {
	fs := flag.NewFlagSet("churn", flag.ExitOnError)
	url := fs.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	workers := fs.Int("workers", 100, "Number of concurrent churning clients")
	duration := fs.Duration("duration", 60*time.Second, "How long to keep churning")
	skips := fs.Int("skips", 3, "Number of skips per connection before dropping it")
	matchTimeout := fs.Duration("match-timeout", 10*time.Second, "Timeout waiting for partner_found")
	metricsURL := fs.String("metrics-url", "http://localhost:8080/metrics", "Prometheus metrics endpoint URL")
	scrapeInterval := fs.Duration("scrape-interval", 2*time.Second, "Interval between metrics scrapes")
	fs.Parse(args)

	fmt.Printf("Churn test: %d workers to %s (duration=%s, skips=%d, match-timeout=%s)\n",
		*workers, *url, *duration, *skips, *matchTimeout)

	// Set up signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runCtx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	collector := stats.NewCollector()

	// Set up metrics scraper.
	scraper := stats.NewScraper(*metricsURL, *scrapeInterval)
	collector.SetScraper(scraper)
	scraper.Start(ctx)

	var cycles atomic.Int64       // completed connect->skip->drop cycles
	var matches atomic.Int64      // partner_found events observed
	var disconnects atomic.Int64  // partner_disconnected events observed
	var matchTimeouts atomic.Int64

	// Progress reporting every 2 seconds.
	progressStop := make(chan struct{})
	var progressWg sync.WaitGroup
	progressWg.Add(1)
	go func() {
		defer progressWg.Done()
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		lastCycles := int64(0)
		lastTime := time.Now()
		for {
			select {
			case <-ticker.C:
				now := time.Now()
				currentCycles := cycles.Load()
				dt := now.Sub(lastTime).Seconds()
				rate := float64(currentCycles-lastCycles) / dt
				fmt.Printf("  [churn] cycles: %d  matches: %d  partner_disconnected: %d  timeouts: %d  errors: %d  rate: %.1f cycle/s\n",
					currentCycles, matches.Load(), disconnects.Load(),
					matchTimeouts.Load(), collector.ErrorCount(), rate)
				lastCycles = currentCycles
				lastTime = now
			case <-progressStop:
				return
			}
		}
	}()

	start := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for runCtx.Err() == nil {
				churnCycle(runCtx, *url, *skips, *matchTimeout, collector,
					&cycles, &matches, &disconnects, &matchTimeouts)
			}
		}()
	}

	wg.Wait()
	close(progressStop)
	progressWg.Wait()

	elapsed := time.Since(start)

	// -----------------------------------------------------------------------
	// Final report
	// -----------------------------------------------------------------------
	fmt.Printf("\n--- Churn Results ---\n")
	fmt.Printf("Cycles completed:      %d\n", cycles.Load())
	fmt.Printf("Matches observed:      %d\n", matches.Load())
	fmt.Printf("Partner disconnects:   %d\n", disconnects.Load())
	fmt.Printf("Match timeouts:        %d\n", matchTimeouts.Load())
	fmt.Printf("Duration:              %s\n", elapsed.Round(time.Millisecond))
	if elapsed.Seconds() > 0 {
		fmt.Printf("Cycle throughput:      %.1f cycle/s\n", float64(cycles.Load())/elapsed.Seconds())
	}

	scraper.Stop()
	collector.Report()
}

// churnCycle runs one connect -> find_partner -> skip* -> drop cycle. Every
// client declares random matching so any two concurrent churners can pair.
func churnCycle(
	ctx context.Context,
	url string,
	skips int,
	matchTimeout time.Duration,
	collector *stats.Collector,
	cycles, matches, disconnects, matchTimeouts *atomic.Int64,
) {
	connCtx, connCancel := context.WithTimeout(ctx, 10*time.Second)
	defer connCancel()

	c, err := client.New(connCtx, url)
	if err != nil {
		if ctx.Err() == nil {
			collector.AddError()
		}
		return
	}
	// Abrupt close: no leaveChat, the server only learns from the transport.
	defer c.Close()

	if err := c.WaitForID(connCtx); err != nil {
		if ctx.Err() == nil {
			collector.AddError()
		}
		return
	}
	collector.AddConnect(c.GetMetrics().ConnectLatency)

	// Buffered so the read loop never blocks when we are mid-skip.
	found := make(chan struct{}, 16)
	c.OnPartnerFound(func(partnerID string) {
		matches.Add(1)
		select {
		case found <- struct{}{}:
		default:
		}
	})
	c.OnPartnerDisconnected(func() {
		disconnects.Add(1)
	})

	sentAt := time.Now()
	if err := c.FindPartner(""); err != nil {
		collector.AddError()
		return
	}

	// skip is only valid while paired, so each skip waits for its own
	// partner_found first. A timeout while unpaired just ends the cycle —
	// the pool may simply be empty of other churners right now.
	for i := 0; i <= skips; i++ {
		select {
		case <-found:
			collector.AddMatchLatency(time.Since(sentAt))
		case <-time.After(matchTimeout):
			matchTimeouts.Add(1)
			return
		case <-ctx.Done():
			return
		}

		if i == skips {
			break
		}
		sentAt = time.Now()
		if err := c.Skip(); err != nil {
			collector.AddError()
			return
		}
	}

	cycles.Add(1)
}
