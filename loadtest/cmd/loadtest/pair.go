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

// runPairTest implements the pairing flow load test. It connects a large
// number of simulated users who all declare the same interests, sends
// find_partner from each, and measures the time until partner_found arrives.
// Since every client shares the declared interests, the server should pair
// them all off (one client is left waiting when the count is odd).
func runPairTest(args []string) {
	fs := flag.NewFlagSet("pair", flag.ExitOnError)
	url := fs.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	pairs := fs.Int("pairs", 500, "Number of client pairs to match")
	rampUp := fs.Duration("ramp", 10*time.Second, "Ramp-up duration for connection creation")
	matchTimeout := fs.Duration("match-timeout", 30*time.Second, "Timeout waiting for partner_found")
	interests := fs.String("interests", "", "Comma-separated interest tags (empty = random matching)")
	concurrency := fs.Int("concurrency", 50, "Maximum simultaneous connection attempts during ramp-up")
	metricsURL := fs.String("metrics-url", "http://localhost:8080/metrics", "Prometheus metrics endpoint URL")
	scrapeInterval := fs.Duration("scrape-interval", 2*time.Second, "Interval between metrics scrapes")
	fs.Parse(args)

	totalClients := *pairs * 2

	fmt.Printf("Pair test: %d pairs (%d clients) to %s (ramp=%s, match-timeout=%s, interests=%q, concurrency=%d)\n",
		*pairs, totalClients, *url, *rampUp, *matchTimeout, *interests, *concurrency)

	// Set up signal handling for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	collector := stats.NewCollector()

	// Set up metrics scraper.
	scraper := stats.NewScraper(*metricsURL, *scrapeInterval)
	collector.SetScraper(scraper)
	scraper.Start(ctx)

	// Slice to track all open connections for cleanup.
	var mu sync.Mutex
	clients := make([]*client.Client, 0, totalClients)

	// Track whether ramp-up was interrupted so we can skip the match phase.
	interrupted := false

	// -----------------------------------------------------------------------
	// Phase 1 — Connect all users
	// -----------------------------------------------------------------------
	fmt.Println("\n--- Phase 1: Connect all users ---")

	interval := *rampUp / time.Duration(totalClients)
	if interval <= 0 {
		interval = time.Millisecond
	}

	// Semaphore to bound concurrent connection attempts.
	sem := make(chan struct{}, *concurrency)
	var wg sync.WaitGroup

	// Progress reporting: every 2 seconds during ramp-up.
	progressStop := make(chan struct{})
	var progressWg sync.WaitGroup
	progressWg.Add(1)
	go func() {
		defer progressWg.Done()
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		lastCount := 0
		lastTime := time.Now()
		for {
			select {
			case <-ticker.C:
				now := time.Now()
				currentConns := collector.ConnectionCount()
				currentErrs := collector.ErrorCount()
				dt := now.Sub(lastTime).Seconds()
				rate := float64(currentConns-lastCount) / dt
				fmt.Printf("  [connect] connections: %d/%d  errors: %d  rate: %.1f conn/s\n",
					currentConns, totalClients, currentErrs, rate)
				lastCount = currentConns
				lastTime = now
			case <-progressStop:
				return
			}
		}
	}()

	rampStart := time.Now()
	rampTicker := time.NewTicker(interval)

	launched := 0
	for launched < totalClients {
		select {
		case <-ctx.Done():
			fmt.Println("\nInterrupted during connection phase.")
			interrupted = true
			launched = totalClients // Break the loop.
		case <-rampTicker.C:
			launched++
			wg.Add(1)
			sem <- struct{}{} // Acquire semaphore slot.

			go func() {
				defer wg.Done()
				defer func() { <-sem }() // Release semaphore slot.

				connCtx, connCancel := context.WithTimeout(ctx, 10*time.Second)
				defer connCancel()

				c, err := client.New(connCtx, *url)
				if err != nil {
					collector.AddError()
					return
				}

				if err := c.WaitForID(connCtx); err != nil {
					collector.AddError()
					c.Close()
					return
				}

				m := c.GetMetrics()
				collector.AddConnect(m.ConnectLatency)

				mu.Lock()
				clients = append(clients, c)
				mu.Unlock()
			}()
		}
	}

	rampTicker.Stop()
	wg.Wait()
	close(progressStop)
	progressWg.Wait()

	rampElapsed := time.Since(rampStart)
	mu.Lock()
	connectedCount := len(clients)
	mu.Unlock()
	fmt.Printf("\nPhase 1 complete: %d/%d connections in %s (%d errors)\n",
		connectedCount, totalClients,
		rampElapsed.Round(time.Millisecond), collector.ErrorCount())

	if interrupted {
		fmt.Println("Interrupted — skipping match phase.")
		cleanup(clients, &mu)
		scraper.Stop()
		collector.Report()
		return
	}

	// -----------------------------------------------------------------------
	// Phase 2 — Send find_partner from all clients
	// -----------------------------------------------------------------------
	fmt.Println("\n--- Phase 2: Start matching ---")

	var pairedCount atomic.Int64 // clients that received partner_found
	var matchWg sync.WaitGroup

	mu.Lock()
	activeClients := make([]*client.Client, len(clients))
	copy(activeClients, clients)
	mu.Unlock()

	fmt.Printf("Sending find_partner from %d clients (interests=%q)...\n", len(activeClients), *interests)

	matchStart := time.Now()

	for _, c := range activeClients {
		c := c // capture loop variable
		matchWg.Add(1)

		// Per-client channel to signal when partner_found is received.
		found := make(chan struct{})

		c.OnPartnerFound(func(partnerID string) {
			collector.AddMatchLatency(time.Since(matchStart))
			pairedCount.Add(1)
			close(found)
		})

		// Per-client goroutine to enforce the match timeout.
		go func() {
			defer matchWg.Done()

			timeoutTimer := time.NewTimer(*matchTimeout)
			defer timeoutTimer.Stop()

			select {
			case <-found:
			case <-timeoutTimer.C:
				collector.AddError()
			case <-ctx.Done():
			}
		}()

		if err := c.FindPartner(*interests); err != nil {
			collector.AddError()
		}
	}

	// -----------------------------------------------------------------------
	// Phase 3 — Wait for matches with progress reporting
	// -----------------------------------------------------------------------
	fmt.Println("\n--- Phase 3: Waiting for matches ---")

	matchProgressStop := make(chan struct{})
	var matchProgressWg sync.WaitGroup
	matchProgressWg.Add(1)
	go func() {
		defer matchProgressWg.Done()
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		lastPaired := int64(0)
		lastTime := time.Now()
		for {
			select {
			case <-ticker.C:
				now := time.Now()
				currentPaired := pairedCount.Load()
				currentErrors := collector.ErrorCount()
				dt := now.Sub(lastTime).Seconds()
				pairRate := float64(currentPaired-lastPaired) / dt
				// Each pair = 2 clients with partner_found.
				fmt.Printf("  [match] pairs: %d/%d  paired clients: %d  errors: %d  rate: %.1f client/s\n",
					currentPaired/2, *pairs, currentPaired, currentErrors, pairRate)
				lastPaired = currentPaired
				lastTime = now
			case <-matchProgressStop:
				return
			}
		}
	}()

	// Wait for all client goroutines to complete (match or timeout).
	allDone := make(chan struct{})
	go func() {
		matchWg.Wait()
		close(allDone)
	}()

	select {
	case <-allDone:
		// All clients finished.
	case <-ctx.Done():
		fmt.Println("\nInterrupted during matching phase.")
	}

	close(matchProgressStop)
	matchProgressWg.Wait()

	matchElapsed := time.Since(matchStart)

	// -----------------------------------------------------------------------
	// Final report
	// -----------------------------------------------------------------------
	finalPaired := pairedCount.Load()
	successfulPairs := finalPaired / 2

	fmt.Printf("\n--- Pair Results ---\n")
	fmt.Printf("Successful pairs:  %d / %d\n", successfulPairs, *pairs)
	fmt.Printf("Clients paired:    %d / %d\n", finalPaired, len(activeClients))
	fmt.Printf("Match duration:    %s\n", matchElapsed.Round(time.Millisecond))
	if matchElapsed.Seconds() > 0 {
		fmt.Printf("Match throughput:  %.1f pairs/s\n", float64(successfulPairs)/matchElapsed.Seconds())
	}

	// -----------------------------------------------------------------------
	// Cleanup
	// -----------------------------------------------------------------------
	cleanup(clients, &mu)
	scraper.Stop()
	collector.Report()
}

// cleanup closes all client connections.
func cleanup(clients []*client.Client, mu *sync.Mutex) {
	fmt.Println("\n--- Cleanup ---")
	mu.Lock()
	total := len(clients)
	fmt.Printf("Closing %d connections...\n", total)
	for _, c := range clients {
		c.Close()
	}
	mu.Unlock()
	fmt.Println("All connections closed.")
}
