package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/duetchat/duet/loadtest/client"
	"github.com/duetchat/duet/loadtest/stats"
)

// chatResult tracks the outcome of a single pair's chat lifecycle.
type chatResult struct {
	paired       bool
	msgSent      int64
	echoRecv     int64 // receive_message with sender "me"
	relayRecv    int64 // receive_message with sender "partner"
	endedCleanly bool
	matchLatency time.Duration
}

// runChat implements the full chat lifecycle load test. Each simulated pair
// declares a pair-unique interest tag so the server matches exactly them,
// then goes through the complete flow: find_partner -> partner_found ->
// exchange messages (verifying both the echo and the relayed copy arrive) ->
// leaveChat -> partner_disconnected.
func runChat(args []string) {
	fs := flag.NewFlagSet("chat", flag.ExitOnError)
	url := fs.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	pairs := fs.Int("pairs", 100, "Number of client pairs for full chat lifecycle")
	rampUp := fs.Duration("ramp", 10*time.Second, "Ramp-up duration for connection creation")
	chatDuration := fs.Duration("chat-duration", 30*time.Second, "How long each pair chats")
	msgInterval := fs.Duration("msg-interval", 2*time.Second, "Interval between messages per client")
	msgSize := fs.Int("msg-size", 128, "Size of each message payload in bytes")
	concurrency := fs.Int("concurrency", 50, "Maximum simultaneous connection attempts during ramp-up")
	matchTimeout := fs.Duration("match-timeout", 30*time.Second, "Timeout waiting for partner_found")
	metricsURL := fs.String("metrics-url", "http://localhost:8080/metrics", "Prometheus metrics endpoint URL")
	scrapeInterval := fs.Duration("scrape-interval", 2*time.Second, "Interval between metrics scrapes")
	fs.Parse(args)

	totalClients := *pairs * 2

	fmt.Printf("Chat test: %d pairs (%d clients) to %s (ramp=%s, chat=%s, interval=%s, msg-size=%d, concurrency=%d)\n",
		*pairs, totalClients, *url, *rampUp, *chatDuration, *msgInterval, *msgSize, *concurrency)

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

	// Track whether ramp-up was interrupted so we can skip later phases.
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
		fmt.Println("Interrupted — skipping chat phases.")
		cleanup(clients, &mu)
		scraper.Stop()
		collector.Report()
		return
	}

	// We need an even number of clients to form pairs. Drop any extra.
	mu.Lock()
	if len(clients)%2 != 0 {
		extra := clients[len(clients)-1]
		clients = clients[:len(clients)-1]
		extra.Close()
	}
	actualPairs := len(clients) / 2
	mu.Unlock()

	if actualPairs == 0 {
		fmt.Println("No pairs could be formed — not enough connections.")
		cleanup(clients, &mu)
		scraper.Stop()
		collector.Report()
		return
	}

	// -----------------------------------------------------------------------
	// Phase 2 + 3 + 4 — Match, Chat, Leave (per pair)
	// -----------------------------------------------------------------------
	fmt.Printf("\n--- Phase 2-4: Running %d chat pairs ---\n", actualPairs)

	// Global atomic counters for progress reporting.
	var totalMsgSent atomic.Int64
	var totalRelayRecv atomic.Int64
	var activePairCount atomic.Int64
	var completedPairs atomic.Int64
	var errorCount atomic.Int64

	// Collect results from each pair.
	results := make([]chatResult, actualPairs)

	// WaitGroup for all pair goroutines.
	var pairWg sync.WaitGroup

	// Generate message payload once (reused by all pairs).
	msgPayload := strings.Repeat("abcdefgh", (*msgSize/8)+1)
	msgPayload = msgPayload[:*msgSize]

	// Progress reporting every 5 seconds.
	chatProgressStop := make(chan struct{})
	var chatProgressWg sync.WaitGroup
	chatProgressWg.Add(1)
	go func() {
		defer chatProgressWg.Done()
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				active := activePairCount.Load()
				completed := completedPairs.Load()
				sent := totalMsgSent.Load()
				recv := totalRelayRecv.Load()
				errs := errorCount.Load()
				fmt.Printf("  [chat] active: %d  completed: %d/%d  sent: %d  relayed: %d  errors: %d\n",
					active, completed, actualPairs, sent, recv, errs)
			case <-chatProgressStop:
				return
			}
		}
	}()

	chatStart := time.Now()

	mu.Lock()
	pairedClients := make([]*client.Client, len(clients))
	copy(pairedClients, clients)
	mu.Unlock()

	for i := 0; i < actualPairs; i++ {
		i := i // capture loop variable
		c1 := pairedClients[i*2]
		c2 := pairedClients[i*2+1]

		pairWg.Add(1)
		go func() {
			defer pairWg.Done()

			// Stagger find_partner sends by 100ms between pairs to avoid
			// overwhelming the matcher.
			stagger := time.Duration(i) * 100 * time.Millisecond
			select {
			case <-time.After(stagger):
			case <-ctx.Done():
				return
			}

			runChatPair(ctx, c1, c2, i, *chatDuration, *msgInterval, *matchTimeout,
				msgPayload, collector, &results[i],
				&totalMsgSent, &totalRelayRecv, &activePairCount, &completedPairs, &errorCount)
		}()
	}

	// Wait for all pairs to complete.
	allDone := make(chan struct{})
	go func() {
		pairWg.Wait()
		close(allDone)
	}()

	select {
	case <-allDone:
		// All pairs finished.
	case <-ctx.Done():
		fmt.Println("\nInterrupted — waiting for pairs to wind down...")
		<-allDone
	}

	close(chatProgressStop)
	chatProgressWg.Wait()

	chatElapsed := time.Since(chatStart)

	// -----------------------------------------------------------------------
	// Final report
	// -----------------------------------------------------------------------
	var successfulChats int
	var totalSent, totalEcho, totalRelay int64
	var totalMatchLatency time.Duration
	pairedCount := 0

	for _, r := range results {
		if r.endedCleanly {
			successfulChats++
		}
		totalSent += r.msgSent
		totalEcho += r.echoRecv
		totalRelay += r.relayRecv
		if r.paired {
			pairedCount++
			totalMatchLatency += r.matchLatency
		}
	}

	fmt.Printf("\n--- Chat Results ---\n")
	fmt.Printf("Successful chats:  %d / %d\n", successfulChats, actualPairs)
	fmt.Printf("Pairs matched:     %d / %d\n", pairedCount, actualPairs)
	fmt.Printf("Total msg sent:    %d\n", totalSent)
	fmt.Printf("Echo copies recv:  %d\n", totalEcho)
	fmt.Printf("Relay copies recv: %d\n", totalRelay)
	fmt.Printf("Chat duration:     %s\n", chatElapsed.Round(time.Millisecond))
	if pairedCount > 0 {
		avgMatch := totalMatchLatency / time.Duration(pairedCount)
		fmt.Printf("Avg match latency: %s\n", avgMatch.Round(time.Millisecond))
	}
	if chatElapsed.Seconds() > 0 && totalSent > 0 {
		fmt.Printf("Msg throughput:    %.1f msg/s\n", float64(totalSent)/chatElapsed.Seconds())
	}

	// -----------------------------------------------------------------------
	// Cleanup
	// -----------------------------------------------------------------------
	cleanup(clients, &mu)
	scraper.Stop()
	collector.Report()
}

// runChatPair executes the full chat lifecycle for a pair of clients:
// find_partner -> partner_found -> exchange messages -> leaveChat.
// The pair declares an interest tag unique to its index so the server matches
// exactly these two clients with each other.
func runChatPair(
	ctx context.Context,
	c1, c2 *client.Client,
	pairIdx int,
	chatDuration, msgInterval, matchTimeout time.Duration,
	msgPayload string,
	collector *stats.Collector,
	result *chatResult,
	totalMsgSent, totalRelayRecv, activePairCount, completedPairs, errorCount *atomic.Int64,
) {
	defer completedPairs.Add(1)

	// --- Phase 2: Matching ---

	c1Found := make(chan struct{}, 1)
	c2Found := make(chan struct{}, 1)

	// Relay receptions during the chat phase (sender == "partner").
	c1Relay := make(chan struct{}, 100)
	c2Relay := make(chan struct{}, 100)

	// partner_disconnected notifications for the leave phase.
	c1PartnerGone := make(chan struct{}, 1)
	c2PartnerGone := make(chan struct{}, 1)

	c1.OnPartnerFound(func(partnerID string) {
		select {
		case c1Found <- struct{}{}:
		default:
		}
	})
	c2.OnPartnerFound(func(partnerID string) {
		select {
		case c2Found <- struct{}{}:
		default:
		}
	})

	c1.OnReceiveMessage(func(sender, text string) {
		if sender == client.SenderMe {
			result.echoRecv++
			return
		}
		totalRelayRecv.Add(1)
		select {
		case c1Relay <- struct{}{}:
		default:
		}
	})
	c2.OnReceiveMessage(func(sender, text string) {
		if sender == client.SenderMe {
			result.echoRecv++
			return
		}
		totalRelayRecv.Add(1)
		select {
		case c2Relay <- struct{}{}:
		default:
		}
	})

	c1.OnPartnerDisconnected(func() {
		select {
		case c1PartnerGone <- struct{}{}:
		default:
		}
	})
	c2.OnPartnerDisconnected(func() {
		select {
		case c2PartnerGone <- struct{}{}:
		default:
		}
	})

	// Both declare the pair-unique tag. No other client shares it, so the
	// matcher can only pair them with each other.
	tag := fmt.Sprintf("duet-pair-%d", pairIdx)
	matchStart := time.Now()

	if err := c1.FindPartner(tag); err != nil {
		errorCount.Add(1)
		collector.AddError()
		return
	}
	if err := c2.FindPartner(tag); err != nil {
		errorCount.Add(1)
		collector.AddError()
		return
	}

	// Wait for partner_found on both clients.
	matchCtx, matchCancel := context.WithTimeout(ctx, matchTimeout)
	defer matchCancel()

	select {
	case <-c1Found:
	case <-matchCtx.Done():
		errorCount.Add(1)
		collector.AddError()
		return
	}

	select {
	case <-c2Found:
	case <-matchCtx.Done():
		errorCount.Add(1)
		collector.AddError()
		return
	}

	matchLatency := time.Since(matchStart)
	result.paired = true
	result.matchLatency = matchLatency
	collector.AddMatchLatency(matchLatency)

	// --- Phase 3: Chat ---

	activePairCount.Add(1)
	defer activePairCount.Add(-1)

	chatCtx, chatCancel := context.WithTimeout(ctx, chatDuration)
	defer chatCancel()

	// Each client sends messages on its own ticker. Relay latency is
	// approximated as the time since the counterpart's last send.
	var c1LastSend atomic.Int64 // unix nanoseconds of c1's last send
	var c2LastSend atomic.Int64 // unix nanoseconds of c2's last send

	var chatWg sync.WaitGroup
	chatWg.Add(2)

	go func() {
		defer chatWg.Done()
		ticker := time.NewTicker(msgInterval)
		defer ticker.Stop()

		for {
			select {
			case <-chatCtx.Done():
				return
			case <-ticker.C:
				c1LastSend.Store(time.Now().UnixNano())
				if err := c1.SendChat(msgPayload); err != nil {
					errorCount.Add(1)
					collector.AddError()
					return
				}
				totalMsgSent.Add(1)
				result.msgSent++
			}
		}
	}()

	go func() {
		defer chatWg.Done()
		ticker := time.NewTicker(msgInterval)
		defer ticker.Stop()

		for {
			select {
			case <-chatCtx.Done():
				return
			case <-ticker.C:
				c2LastSend.Store(time.Now().UnixNano())
				if err := c2.SendChat(msgPayload); err != nil {
					errorCount.Add(1)
					collector.AddError()
					return
				}
				totalMsgSent.Add(1)
				result.msgSent++
			}
		}
	}()

	// Receivers: a relayed copy arriving at c1 came from c2, and vice versa.
	chatWg.Add(2)
	go func() {
		defer chatWg.Done()
		for {
			select {
			case <-chatCtx.Done():
				return
			case <-c1Relay:
				result.relayRecv++
				if ts := c2LastSend.Load(); ts > 0 {
					collector.AddRelayLatency(time.Since(time.Unix(0, ts)))
				}
			}
		}
	}()

	go func() {
		defer chatWg.Done()
		for {
			select {
			case <-chatCtx.Done():
				return
			case <-c2Relay:
				result.relayRecv++
				if ts := c1LastSend.Load(); ts > 0 {
					collector.AddRelayLatency(time.Since(time.Unix(0, ts)))
				}
			}
		}
	}()

	// Wait for the chat duration to expire.
	chatWg.Wait()

	// --- Phase 4: Leave ---

	if err := c1.LeaveChat(); err != nil {
		errorCount.Add(1)
		collector.AddError()
		return
	}

	// Wait for c2 to receive partner_disconnected (with a short timeout).
	endCtx, endCancel := context.WithTimeout(ctx, 5*time.Second)
	defer endCancel()

	select {
	case <-c2PartnerGone:
		result.endedCleanly = true
	case <-c1PartnerGone:
		// c1 got partner_disconnected instead — still counts as ended.
		result.endedCleanly = true
	case <-endCtx.Done():
		errorCount.Add(1)
		collector.AddError()
	}
}
