// Package main implements a standalone end-to-end integration test for the
// Duet pairing server. It validates the full user journey against a running
// server: health checks, WebSocket handshake, interest matching, message
// relay with echo, opaque signaling relay, skip, and disconnect handling.
//
// Usage:
//
//	go run ./cmd/e2etest/ [-url ws://localhost:8080/ws] [-api http://localhost:8080] [-timeout 60s]
//
// Exit code 0 if all required scenarios pass, 1 if any fail.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/duetchat/duet/loadtest/client"
)

// ---------------------------------------------------------------------------
// Result tracking
// ---------------------------------------------------------------------------

// resultKind categorises a scenario outcome.
type resultKind int

const (
	resultPass resultKind = iota
	resultFail
	resultInfo // optional / non-fatal
)

// scenarioResult holds the outcome of a single test scenario.
type scenarioResult struct {
	name   string
	kind   resultKind
	detail string
}

func (r scenarioResult) tag() string {
	switch r.kind {
	case resultPass:
		return "PASS"
	case resultFail:
		return "FAIL"
	default:
		return "INFO"
	}
}

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	wsURL := flag.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	apiBase := flag.String("api", "http://localhost:8080", "HTTP API base URL")
	timeout := flag.Duration("timeout", 60*time.Second, "Global test timeout")
	flag.Parse()

	fmt.Println("=== Duet E2E Integration Test ===")
	fmt.Printf("Server: %s\n\n", *wsURL)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var results []scenarioResult

	// Run scenarios sequentially.
	results = append(results, scenario1HealthCheck(ctx, *apiBase))
	results = append(results, scenario2ConnectGreeting(ctx, *wsURL))

	// Scenarios 3-5 share a paired couple; run them as a group.
	s3, s4, s5 := scenario345MatchChatSignal(ctx, *wsURL)
	results = append(results, s3, s4, s5)

	results = append(results, scenario6Skip(ctx, *wsURL))
	results = append(results, scenario7Disconnect(ctx, *wsURL))

	// Optional scenario (non-fatal): exercises random-tag semantics, which
	// another live client on a shared server could perturb.
	results = append(results, scenario8RandomMatching(ctx, *wsURL))

	// ---------------------------------------------------------------------------
	// Summary
	// ---------------------------------------------------------------------------
	fmt.Println()
	passed := 0
	failed := 0
	info := 0
	for _, r := range results {
		fmt.Printf("[%s] %s", r.tag(), r.name)
		if r.detail != "" {
			fmt.Printf(" (%s)", r.detail)
		}
		fmt.Println()

		switch r.kind {
		case resultPass:
			passed++
		case resultFail:
			failed++
		case resultInfo:
			info++
		}
	}

	requiredTotal := passed + failed
	fmt.Printf("\n=== Results: %d/%d passed", passed, requiredTotal)
	if info > 0 {
		fmt.Printf(", %d info", info)
	}
	fmt.Println(" ===")

	if failed > 0 {
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// Scenario 1: Health Check
// ---------------------------------------------------------------------------

func scenario1HealthCheck(ctx context.Context, apiBase string) scenarioResult {
	name := "Scenario 1: Health Check"

	// 1a. /health — expect JSON with connection and pairing counts.
	body, err := httpGetBody(ctx, apiBase+"/health")
	if err != nil {
		return scenarioResult{name, resultFail, fmt.Sprintf("/health: %v", err)}
	}
	var healthResp struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
		Waiting     int    `json:"waiting"`
		Pairs       int    `json:"pairs"`
	}
	if err := json.Unmarshal(body, &healthResp); err != nil {
		return scenarioResult{name, resultFail, fmt.Sprintf("/health JSON parse: %v", err)}
	}
	if healthResp.Status != "ok" {
		return scenarioResult{name, resultFail, fmt.Sprintf("/health status: %q", healthResp.Status)}
	}

	// 1b. /metrics — expect Prometheus text with duet_connections_active.
	metricsBody, err := httpGetBody(ctx, apiBase+"/metrics")
	if err != nil {
		return scenarioResult{name, resultFail, fmt.Sprintf("/metrics: %v", err)}
	}
	if !strings.Contains(string(metricsBody), "duet_connections_active") {
		return scenarioResult{name, resultFail, "/metrics: missing duet_connections_active"}
	}

	return scenarioResult{name, resultPass,
		fmt.Sprintf("connections=%d, waiting=%d, pairs=%d", healthResp.Connections, healthResp.Waiting, healthResp.Pairs)}
}

// ---------------------------------------------------------------------------
// Scenario 2: Connect and Greeting
// ---------------------------------------------------------------------------

func scenario2ConnectGreeting(ctx context.Context, wsURL string) scenarioResult {
	name := "Scenario 2: Connect and Greeting"

	connCtx, connCancel := context.WithTimeout(ctx, 10*time.Second)
	defer connCancel()

	clientA, err := client.New(connCtx, wsURL)
	if err != nil {
		return scenarioResult{name, resultFail, fmt.Sprintf("client A connect: %v", err)}
	}
	defer clientA.Close()

	clientB, err := client.New(connCtx, wsURL)
	if err != nil {
		return scenarioResult{name, resultFail, fmt.Sprintf("client B connect: %v", err)}
	}
	defer clientB.Close()

	if err := clientA.WaitForID(connCtx); err != nil {
		return scenarioResult{name, resultFail, fmt.Sprintf("client A greeting: %v", err)}
	}
	if err := clientB.WaitForID(connCtx); err != nil {
		return scenarioResult{name, resultFail, fmt.Sprintf("client B greeting: %v", err)}
	}

	idA := clientA.ClientID()
	idB := clientB.ClientID()
	if idA == "" || idB == "" {
		return scenarioResult{name, resultFail, "empty client ID"}
	}
	if idA == idB {
		return scenarioResult{name, resultFail, "duplicate client IDs"}
	}

	return scenarioResult{name, resultPass, fmt.Sprintf("id_a=%s, id_b=%s", truncateID(idA), truncateID(idB))}
}

// ---------------------------------------------------------------------------
// Scenarios 3, 4, 5: Interest Matching, Message Relay, Signaling Relay
// ---------------------------------------------------------------------------

func scenario345MatchChatSignal(ctx context.Context, wsURL string) (scenarioResult, scenarioResult, scenarioResult) {
	s3Name := "Scenario 3: Interest Matching"
	s4Name := "Scenario 4: Message Relay with Echo"
	s5Name := "Scenario 5: Signaling Relay"

	failAll := func(reason string) (scenarioResult, scenarioResult, scenarioResult) {
		return scenarioResult{s3Name, resultFail, reason},
			scenarioResult{s4Name, resultFail, "skipped: matching failed"},
			scenarioResult{s5Name, resultFail, "skipped: matching failed"}
	}

	// --- Scenario 3: Matching ---
	// A declares lowercase, B mixed case: the server normalizes both, so
	// they share the tag and must pair. The tag is test-unique so nobody
	// else on the server can steal the match.
	tag := fmt.Sprintf("duet-e2e-%d", time.Now().UnixNano())
	matchStart := time.Now()

	clientA, clientB, err := connectAndPair(ctx, wsURL, tag, strings.ToUpper(tag))
	if err != nil {
		return failAll(err.Error())
	}
	defer clientA.Close()
	defer clientB.Close()

	// partner_found must carry the counterpart's ID on each side.
	if clientA.PartnerID() != clientB.ClientID() {
		return failAll(fmt.Sprintf("client A partner_id=%s, want %s",
			truncateID(clientA.PartnerID()), truncateID(clientB.ClientID())))
	}
	if clientB.PartnerID() != clientA.ClientID() {
		return failAll(fmt.Sprintf("client B partner_id=%s, want %s",
			truncateID(clientB.PartnerID()), truncateID(clientA.ClientID())))
	}

	matchDuration := time.Since(matchStart)
	s3Result := scenarioResult{s3Name, resultPass,
		fmt.Sprintf("tag=%s, match_time=%s", tag, matchDuration.Round(time.Millisecond))}

	// --- Scenario 4: Message Relay with Echo ---
	type received struct {
		sender string
		text   string
	}
	recvA := make(chan received, 4)
	recvB := make(chan received, 4)

	clientA.OnReceiveMessage(func(sender, text string) {
		select {
		case recvA <- received{sender, text}:
		default:
		}
	})
	clientB.OnReceiveMessage(func(sender, text string) {
		select {
		case recvB <- received{sender, text}:
		default:
		}
	})

	chatCtx, chatCancel := context.WithTimeout(ctx, 10*time.Second)
	defer chatCancel()

	failChat := func(reason string) (scenarioResult, scenarioResult, scenarioResult) {
		return s3Result,
			scenarioResult{s4Name, resultFail, reason},
			scenarioResult{s5Name, resultFail, "skipped: chat failed"}
	}

	textA := "Hello from A"
	if err := clientA.SendChat(textA); err != nil {
		return failChat(fmt.Sprintf("client A send_message: %v", err))
	}

	// A gets the echo tagged "me"; B gets the relay tagged "partner".
	select {
	case got := <-recvA:
		if got.sender != client.SenderMe || got.text != textA {
			return failChat(fmt.Sprintf("echo mismatch: sender=%q text=%q", got.sender, got.text))
		}
	case <-chatCtx.Done():
		return failChat("timeout: client A did not receive its echo")
	}

	select {
	case got := <-recvB:
		if got.sender != client.SenderPartner || got.text != textA {
			return failChat(fmt.Sprintf("relay mismatch: sender=%q text=%q", got.sender, got.text))
		}
	case <-chatCtx.Done():
		return failChat("timeout: client B did not receive message from A")
	}

	// Reply the other way.
	textB := "Hello from B"
	if err := clientB.SendChat(textB); err != nil {
		return failChat(fmt.Sprintf("client B send_message: %v", err))
	}

	select {
	case got := <-recvA:
		if got.sender != client.SenderPartner || got.text != textB {
			return failChat(fmt.Sprintf("reply mismatch: sender=%q text=%q", got.sender, got.text))
		}
	case <-chatCtx.Done():
		return failChat("timeout: client A did not receive reply from B")
	}

	s4Result := scenarioResult{s4Name, resultPass, "2 messages relayed, echo verified"}

	// --- Scenario 5: Signaling Relay ---
	s5Result := runSignalingScenario(ctx, s5Name, clientA, clientB)
	return s3Result, s4Result, s5Result
}

// runSignalingScenario drives a full offer/answer/ice-candidate/stop_video
// exchange over an established pair and checks the opaque payloads come back
// byte-meaning-equal with the correct from tags.
func runSignalingScenario(ctx context.Context, name string, clientA, clientB *client.Client) scenarioResult {
	sigCtx, sigCancel := context.WithTimeout(ctx, 10*time.Second)
	defer sigCancel()

	type signal struct {
		From    string          `json:"from"`
		Payload json.RawMessage `json:"-"`
	}
	offerAtB := make(chan signal, 1)
	answerAtA := make(chan signal, 1)
	candidateAtB := make(chan signal, 1)
	stopAtB := make(chan struct{}, 1)

	clientB.On(client.TypeOffer, func(raw json.RawMessage) {
		var msg struct {
			From  string          `json:"from"`
			Offer json.RawMessage `json:"offer"`
		}
		if err := json.Unmarshal(raw, &msg); err == nil {
			select {
			case offerAtB <- signal{From: msg.From, Payload: msg.Offer}:
			default:
			}
		}
	})
	clientA.On(client.TypeAnswer, func(raw json.RawMessage) {
		var msg struct {
			From   string          `json:"from"`
			Answer json.RawMessage `json:"answer"`
		}
		if err := json.Unmarshal(raw, &msg); err == nil {
			select {
			case answerAtA <- signal{From: msg.From, Payload: msg.Answer}:
			default:
			}
		}
	})
	clientB.On(client.TypeICECandidate, func(raw json.RawMessage) {
		var msg struct {
			From      string          `json:"from"`
			Candidate json.RawMessage `json:"candidate"`
		}
		if err := json.Unmarshal(raw, &msg); err == nil {
			select {
			case candidateAtB <- signal{From: msg.From, Payload: msg.Candidate}:
			default:
			}
		}
	})
	clientB.On(client.TypeStopVideo, func(json.RawMessage) {
		select {
		case stopAtB <- struct{}{}:
		default:
		}
	})

	// A sends an offer; the payload is opaque to the server.
	offerPayload := map[string]interface{}{"type": "offer", "sdp": "v=0 mock-sdp-from-a"}
	if err := clientA.Send(map[string]interface{}{
		"type":  client.TypeOffer,
		"offer": offerPayload,
	}); err != nil {
		return scenarioResult{name, resultFail, fmt.Sprintf("client A offer: %v", err)}
	}

	var gotOffer signal
	select {
	case gotOffer = <-offerAtB:
	case <-sigCtx.Done():
		return scenarioResult{name, resultFail, "timeout: client B did not receive offer"}
	}
	if gotOffer.From != clientA.ClientID() {
		return scenarioResult{name, resultFail, fmt.Sprintf("offer from=%s, want %s",
			truncateID(gotOffer.From), truncateID(clientA.ClientID()))}
	}
	var sdp struct {
		SDP string `json:"sdp"`
	}
	if err := json.Unmarshal(gotOffer.Payload, &sdp); err != nil || sdp.SDP != "v=0 mock-sdp-from-a" {
		return scenarioResult{name, resultFail, "offer payload not passed through intact"}
	}

	// B answers, addressing the caller via the offer's from field — the
	// handshake the real web client performs.
	if err := clientB.Send(map[string]interface{}{
		"type":   client.TypeAnswer,
		"to":     gotOffer.From,
		"answer": map[string]string{"type": "answer", "sdp": "v=0 mock-sdp-from-b"},
	}); err != nil {
		return scenarioResult{name, resultFail, fmt.Sprintf("client B answer: %v", err)}
	}

	select {
	case gotAnswer := <-answerAtA:
		if gotAnswer.From != clientB.ClientID() {
			return scenarioResult{name, resultFail, fmt.Sprintf("answer from=%s, want %s",
				truncateID(gotAnswer.From), truncateID(clientB.ClientID()))}
		}
	case <-sigCtx.Done():
		return scenarioResult{name, resultFail, "timeout: client A did not receive answer"}
	}

	// A trickles a candidate.
	if err := clientA.Send(map[string]interface{}{
		"type":      client.TypeICECandidate,
		"candidate": map[string]interface{}{"candidate": "candidate:0 1 UDP 2122252543 192.0.2.1 54321 typ host"},
	}); err != nil {
		return scenarioResult{name, resultFail, fmt.Sprintf("client A ice-candidate: %v", err)}
	}

	select {
	case got := <-candidateAtB:
		if got.From != clientA.ClientID() {
			return scenarioResult{name, resultFail, "ice-candidate carries wrong from"}
		}
	case <-sigCtx.Done():
		return scenarioResult{name, resultFail, "timeout: client B did not receive ice-candidate"}
	}

	// A stops video.
	if err := clientA.Send(map[string]string{"type": client.TypeStopVideo}); err != nil {
		return scenarioResult{name, resultFail, fmt.Sprintf("client A stop_video: %v", err)}
	}

	select {
	case <-stopAtB:
	case <-sigCtx.Done():
		return scenarioResult{name, resultFail, "timeout: client B did not receive stop_video"}
	}

	return scenarioResult{name, resultPass, "offer/answer/candidate/stop relayed"}
}

// ---------------------------------------------------------------------------
// Scenario 6: Skip
// ---------------------------------------------------------------------------

func scenario6Skip(ctx context.Context, wsURL string) scenarioResult {
	name := "Scenario 6: Skip"

	scenarioCtx, scenarioCancel := context.WithTimeout(ctx, 30*time.Second)
	defer scenarioCancel()

	tag := fmt.Sprintf("duet-e2e-skip-%d", time.Now().UnixNano())
	clientA, clientB, err := connectAndPair(scenarioCtx, wsURL, tag, tag)
	if err != nil {
		return scenarioResult{name, resultFail, fmt.Sprintf("setup failed: %v", err)}
	}
	defer clientA.Close()
	defer clientB.Close()

	partnerGoneB := make(chan struct{}, 1)
	clientB.OnPartnerDisconnected(func() {
		select {
		case partnerGoneB <- struct{}{}:
		default:
		}
	})
	rematchedA := make(chan string, 1)
	clientA.OnPartnerFound(func(partnerID string) {
		select {
		case rematchedA <- partnerID:
		default:
		}
	})

	// A skips without a payload: the server must reuse the remembered tag.
	if err := clientA.Skip(); err != nil {
		return scenarioResult{name, resultFail, fmt.Sprintf("client A skip: %v", err)}
	}

	// B learns the pairing ended; only A goes back into matchmaking.
	select {
	case <-partnerGoneB:
	case <-scenarioCtx.Done():
		return scenarioResult{name, resultFail, "timeout: client B did not receive partner_disconnected"}
	}

	// A third client with the same tag must now pair with A, proving A was
	// requeued with the remembered interests while B was not.
	connCtx, connCancel := context.WithTimeout(scenarioCtx, 10*time.Second)
	defer connCancel()

	clientC, err := client.New(connCtx, wsURL)
	if err != nil {
		return scenarioResult{name, resultFail, fmt.Sprintf("client C connect: %v", err)}
	}
	defer clientC.Close()
	if err := clientC.WaitForID(connCtx); err != nil {
		return scenarioResult{name, resultFail, fmt.Sprintf("client C greeting: %v", err)}
	}
	if err := clientC.FindPartner(tag); err != nil {
		return scenarioResult{name, resultFail, fmt.Sprintf("client C find_partner: %v", err)}
	}

	select {
	case partnerID := <-rematchedA:
		if partnerID != clientC.ClientID() {
			return scenarioResult{name, resultFail, fmt.Sprintf("client A re-paired with %s, want %s",
				truncateID(partnerID), truncateID(clientC.ClientID()))}
		}
	case <-scenarioCtx.Done():
		return scenarioResult{name, resultFail, "timeout: client A was not re-matched after skip"}
	}

	return scenarioResult{name, resultPass, "skip re-matched initiator only"}
}

// ---------------------------------------------------------------------------
// Scenario 7: Disconnect
// ---------------------------------------------------------------------------

func scenario7Disconnect(ctx context.Context, wsURL string) scenarioResult {
	name := "Scenario 7: Disconnect Mid-Pair"

	scenarioCtx, scenarioCancel := context.WithTimeout(ctx, 30*time.Second)
	defer scenarioCancel()

	tag := fmt.Sprintf("duet-e2e-drop-%d", time.Now().UnixNano())
	clientA, clientB, err := connectAndPair(scenarioCtx, wsURL, tag, tag)
	if err != nil {
		return scenarioResult{name, resultFail, fmt.Sprintf("setup failed: %v", err)}
	}
	defer clientB.Close()

	partnerGoneB := make(chan struct{}, 1)
	clientB.OnPartnerDisconnected(func() {
		select {
		case partnerGoneB <- struct{}{}:
		default:
		}
	})

	// A drops the transport without any goodbye event.
	clientA.Close()

	select {
	case <-partnerGoneB:
	case <-scenarioCtx.Done():
		return scenarioResult{name, resultFail, "timeout: client B did not receive partner_disconnected"}
	}

	return scenarioResult{name, resultPass, "transport drop notified partner"}
}

// ---------------------------------------------------------------------------
// Scenario 8: Random Matching (optional, non-fatal)
// ---------------------------------------------------------------------------

func scenario8RandomMatching(ctx context.Context, wsURL string) scenarioResult {
	name := "Scenario 8: Random Matching"

	scenarioCtx, scenarioCancel := context.WithTimeout(ctx, 30*time.Second)
	defer scenarioCancel()

	connCtx, connCancel := context.WithTimeout(scenarioCtx, 10*time.Second)
	defer connCancel()

	// A waits with a topical tag; a random-declaring client must NOT match
	// it. Two random-declaring clients must match each other.
	clientA, err := client.New(connCtx, wsURL)
	if err != nil {
		return scenarioResult{name, resultInfo, fmt.Sprintf("client A connect: %v", err)}
	}
	defer clientA.Close()
	if err := clientA.WaitForID(connCtx); err != nil {
		return scenarioResult{name, resultInfo, fmt.Sprintf("client A greeting: %v", err)}
	}

	foundA := make(chan string, 1)
	clientA.OnPartnerFound(func(partnerID string) {
		select {
		case foundA <- partnerID:
		default:
		}
	})
	tag := fmt.Sprintf("duet-e2e-rand-%d", time.Now().UnixNano())
	if err := clientA.FindPartner(tag); err != nil {
		return scenarioResult{name, resultInfo, fmt.Sprintf("client A find_partner: %v", err)}
	}

	clientB, err := client.New(connCtx, wsURL)
	if err != nil {
		return scenarioResult{name, resultInfo, fmt.Sprintf("client B connect: %v", err)}
	}
	defer clientB.Close()
	if err := clientB.WaitForID(connCtx); err != nil {
		return scenarioResult{name, resultInfo, fmt.Sprintf("client B greeting: %v", err)}
	}

	foundB := make(chan string, 1)
	clientB.OnPartnerFound(func(partnerID string) {
		select {
		case foundB <- partnerID:
		default:
		}
	})
	// Empty interests normalize to random.
	if err := clientB.FindPartner(""); err != nil {
		return scenarioResult{name, resultInfo, fmt.Sprintf("client B find_partner: %v", err)}
	}

	// B must not pair with the topical waiter.
	select {
	case partnerID := <-foundB:
		if partnerID == clientA.ClientID() {
			return scenarioResult{name, resultFail, "random client paired with topical waiter"}
		}
		// Another live random client beat us to it; inconclusive.
		return scenarioResult{name, resultInfo, "random client paired with an outside client"}
	case <-time.After(3 * time.Second):
	}

	// A second random client should pair with B.
	clientC, err := client.New(connCtx, wsURL)
	if err != nil {
		return scenarioResult{name, resultInfo, fmt.Sprintf("client C connect: %v", err)}
	}
	defer clientC.Close()
	if err := clientC.WaitForID(connCtx); err != nil {
		return scenarioResult{name, resultInfo, fmt.Sprintf("client C greeting: %v", err)}
	}
	if err := clientC.FindPartner("random"); err != nil {
		return scenarioResult{name, resultInfo, fmt.Sprintf("client C find_partner: %v", err)}
	}

	select {
	case partnerID := <-foundB:
		if partnerID == clientC.ClientID() {
			return scenarioResult{name, resultPass, "random matched random, not topical"}
		}
		return scenarioResult{name, resultInfo, "random client paired with an outside client"}
	case <-scenarioCtx.Done():
		return scenarioResult{name, resultInfo, "timeout: random clients did not pair (busy server?)"}
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// connectAndPair creates two clients, connects them, has them declare the
// given interest strings, and waits until both report partner_found. Caller
// is responsible for closing the clients.
func connectAndPair(ctx context.Context, wsURL, interestsA, interestsB string) (*client.Client, *client.Client, error) {
	connCtx, connCancel := context.WithTimeout(ctx, 10*time.Second)
	defer connCancel()

	clientA, err := client.New(connCtx, wsURL)
	if err != nil {
		return nil, nil, fmt.Errorf("client A connect: %w", err)
	}

	clientB, err := client.New(connCtx, wsURL)
	if err != nil {
		clientA.Close()
		return nil, nil, fmt.Errorf("client B connect: %w", err)
	}

	cleanup := func() {
		clientA.Close()
		clientB.Close()
	}

	if err := clientA.WaitForID(connCtx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("client A greeting: %w", err)
	}
	if err := clientB.WaitForID(connCtx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("client B greeting: %w", err)
	}

	foundA := make(chan struct{}, 1)
	foundB := make(chan struct{}, 1)
	clientA.OnPartnerFound(func(string) {
		select {
		case foundA <- struct{}{}:
		default:
		}
	})
	clientB.OnPartnerFound(func(string) {
		select {
		case foundB <- struct{}{}:
		default:
		}
	})

	if err := clientA.FindPartner(interestsA); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("client A find_partner: %w", err)
	}
	if err := clientB.FindPartner(interestsB); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("client B find_partner: %w", err)
	}

	matchCtx, matchCancel := context.WithTimeout(ctx, 30*time.Second)
	defer matchCancel()

	select {
	case <-foundA:
	case <-matchCtx.Done():
		cleanup()
		return nil, nil, fmt.Errorf("timeout waiting for partner_found on client A")
	}
	select {
	case <-foundB:
	case <-matchCtx.Done():
		cleanup()
		return nil, nil, fmt.Errorf("timeout waiting for partner_found on client B")
	}

	return clientA, clientB, nil
}

// httpGetBody performs an HTTP GET and returns the response body.
func httpGetBody(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// truncateID returns the first 8 characters of an ID for display purposes.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
