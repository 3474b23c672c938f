// Package pairing is the single in-process authority over matchmaking: the
// waiting pool, the pair registry, every client's lifecycle state, and the
// interests remembered for each client. One mutex guards all four, so no two
// events ever observe an inconsistent view of the pool, and no event is
// processed for a client after its disconnect began. Handlers hold the lock
// only for map work and egress enqueues; socket I/O happens elsewhere.
package pairing

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/duetchat/duet/internal/interest"
	"github.com/duetchat/duet/internal/metrics"
	"github.com/duetchat/duet/internal/protocol"
)

// Outbox delivers encoded server events to connected clients. Send must not
// block: the transport enqueues onto a per-connection egress buffer and
// handles a dead or saturated connection through its own disconnect path.
type Outbox interface {
	Send(clientID string, data []byte)
}

// Core owns the matchmaking state and implements every client-visible
// operation as a read-decide-mutate-emit cycle under one lock.
type Core struct {
	mu        sync.Mutex
	states    map[string]State
	interests map[string][]string
	pool      *Pool
	pairs     *Registry
	outbox    Outbox
}

// NewCore creates a Core that emits events through the given outbox.
func NewCore(outbox Outbox) *Core {
	return &Core{
		states:    make(map[string]State),
		interests: make(map[string][]string),
		pool:      NewPool(),
		pairs:     NewRegistry(),
		outbox:    outbox,
	}
}

// ---------------------------------------------------------------------------
// Connection lifecycle
// ---------------------------------------------------------------------------

// Connect registers a freshly connected client in the Unregistered state and
// tells it the id it was assigned.
func (c *Core) Connect(clientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.states[clientID] = StateUnregistered
	c.emit(clientID, protocol.TypeConnected, protocol.ConnectedMsg{ClientID: clientID})
}

// Disconnect removes every reference to the client in one critical section:
// a paired partner is notified and unbound, any pool entry is removed, and
// the remembered interests are forgotten. Idempotent; the transport may
// report the same connection dead more than once.
func (c *Core) Disconnect(clientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.states[clientID]; !ok {
		return
	}
	c.dissolveLocked(clientID)
	c.pool.Remove(clientID)
	delete(c.interests, clientID)
	delete(c.states, clientID)
	c.syncGaugesLocked()
	log.Printf("[pairing] client %s closed", clientID)
}

// ---------------------------------------------------------------------------
// Matchmaking
// ---------------------------------------------------------------------------

// FindPartner enters matchmaking with the given interests. Valid from any
// live state: a paired client is first torn down (its partner is notified
// and left Unregistered), a waiting client's stale pool entry is replaced.
func (c *Core) FindPartner(clientID string, in interest.Input) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, ok := c.states[clientID]
	if !ok {
		c.dropLocked(clientID, protocol.TypeFindPartner, "unknown_client")
		return
	}
	if state == StatePaired {
		c.dissolveLocked(clientID)
	}
	c.pool.Remove(clientID)
	c.enterMatchmakingLocked(clientID, interest.Normalize(in))
}

// Skip tears down the current pairing and immediately re-enters matchmaking
// for the initiator only. The skipped partner lands in Unregistered and must
// act on its own. Absent interests reuse the ones remembered from the
// initiator's previous search.
func (c *Core) Skip(clientID string, in interest.Input) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.states[clientID] != StatePaired {
		c.dropLocked(clientID, protocol.TypeSkip, "invalid_state")
		return
	}
	c.dissolveLocked(clientID)

	var tags []string
	if in.Present() {
		tags = interest.Normalize(in)
	} else {
		tags = c.interests[clientID]
		if len(tags) == 0 {
			tags = []string{interest.Random}
		}
	}
	c.enterMatchmakingLocked(clientID, tags)
}

// LeaveChat leaves the current chat or the waiting pool and forgets the
// client's remembered interests. Unlike Skip it starts no new search.
func (c *Core) LeaveChat(clientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.states[clientID] {
	case StatePaired:
		c.dissolveLocked(clientID)
	case StateWaiting:
		c.pool.Remove(clientID)
	default:
		c.dropLocked(clientID, protocol.TypeLeaveChat, "invalid_state")
		return
	}
	c.states[clientID] = StateUnregistered
	delete(c.interests, clientID)
	c.syncGaugesLocked()
	log.Printf("[pairing] client %s left", clientID)
}

// enterMatchmakingLocked stores tags as clientID's remembered interests and
// either pairs it with the best waiting candidate or enqueues it. Caller
// holds c.mu and guarantees clientID is neither paired nor pooled.
func (c *Core) enterMatchmakingLocked(clientID string, tags []string) {
	c.interests[clientID] = tags

	match := c.pool.FindBestMatch(tags, clientID)
	if match == nil {
		c.pool.Insert(&WaitEntry{ClientID: clientID, Interests: tags, JoinedAt: time.Now()})
		c.states[clientID] = StateWaiting
		c.emit(clientID, protocol.TypeWaiting, protocol.WaitingMsg{Message: waitingText(tags)})
		c.syncGaugesLocked()
		log.Printf("[pairing] client %s waiting with interests %v (pool size: %d)",
			clientID, tags, c.pool.Len())
		return
	}

	c.pool.Remove(match.ClientID)
	if err := c.pairs.Bind(clientID, match.ClientID); err != nil {
		// Both sides were just verified unbound; reaching here is a bug.
		log.Printf("[pairing] bind %s/%s: %v", clientID, match.ClientID, err)
		return
	}
	c.states[clientID] = StatePaired
	c.states[match.ClientID] = StatePaired

	// partner_found reaches both sides before any pair traffic: emissions
	// are ordered by this critical section.
	c.emit(clientID, protocol.TypePartnerFound, protocol.PartnerFoundMsg{PartnerID: match.ClientID})
	c.emit(match.ClientID, protocol.TypePartnerFound, protocol.PartnerFoundMsg{PartnerID: clientID})

	waited := time.Since(match.JoinedAt)
	metrics.MatchesTotal.Inc()
	metrics.MatchWaitSeconds.Observe(waited.Seconds())
	c.syncGaugesLocked()
	log.Printf("[pairing] paired %s with %s (shared: %v, partner waited %s)",
		clientID, match.ClientID, SharedTags(tags, match.Interests), waited.Round(time.Millisecond))
}

// dissolveLocked dissolves clientID's pairing, if any. The former partner is
// notified with partner_disconnected — the last event it receives about this
// binding — and returns to Unregistered; it is never auto-requeued. Caller
// holds c.mu.
func (c *Core) dissolveLocked(clientID string) {
	partner, ok := c.pairs.Unbind(clientID)
	if !ok {
		return
	}
	c.states[partner] = StateUnregistered
	c.emit(partner, protocol.TypePartnerDisconnected, protocol.PartnerDisconnectedMsg{})
	log.Printf("[pairing] pair %s/%s dissolved", clientID, partner)
}

// ---------------------------------------------------------------------------
// Pair relay
// ---------------------------------------------------------------------------

// SendMessage relays a chat line to the partner and echoes it back to the
// author. The partner's copy is emitted first.
func (c *Core) SendMessage(clientID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if text == "" {
		c.dropLocked(clientID, protocol.TypeSendMessage, "malformed")
		return
	}
	partner, ok := c.pairedPartnerLocked(clientID, protocol.TypeSendMessage)
	if !ok {
		return
	}
	c.emit(partner, protocol.TypeReceiveMessage, protocol.ReceiveMessageMsg{Sender: protocol.SenderPartner, Text: text})
	c.emit(clientID, protocol.TypeReceiveMessage, protocol.ReceiveMessageMsg{Sender: protocol.SenderMe, Text: text})
	metrics.RelayedTotal.WithLabelValues(protocol.TypeSendMessage).Inc()
}

// Offer forwards an opaque media-session offer to the partner, tagged with
// the sender's id so the receiver can address its answer.
func (c *Core) Offer(clientID string, payload json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(payload) == 0 {
		c.dropLocked(clientID, protocol.TypeOffer, "malformed")
		return
	}
	partner, ok := c.pairedPartnerLocked(clientID, protocol.TypeOffer)
	if !ok {
		return
	}
	c.emit(partner, protocol.TypeOffer, protocol.ServerOfferMsg{From: clientID, Offer: payload})
	metrics.RelayedTotal.WithLabelValues(protocol.TypeOffer).Inc()
}

// Answer forwards an opaque media-session answer. The explicit to field must
// name the sender's current partner; an answer addressed to anyone else is
// dropped.
func (c *Core) Answer(clientID, to string, payload json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if to == "" || len(payload) == 0 {
		c.dropLocked(clientID, protocol.TypeAnswer, "malformed")
		return
	}
	partner, ok := c.pairedPartnerLocked(clientID, protocol.TypeAnswer)
	if !ok {
		return
	}
	if to != partner {
		c.dropLocked(clientID, protocol.TypeAnswer, "wrong_target")
		return
	}
	c.emit(partner, protocol.TypeAnswer, protocol.ServerAnswerMsg{From: clientID, Answer: payload})
	metrics.RelayedTotal.WithLabelValues(protocol.TypeAnswer).Inc()
}

// IceCandidate forwards an opaque connectivity candidate to the partner.
func (c *Core) IceCandidate(clientID string, payload json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(payload) == 0 {
		c.dropLocked(clientID, protocol.TypeICECandidate, "malformed")
		return
	}
	partner, ok := c.pairedPartnerLocked(clientID, protocol.TypeICECandidate)
	if !ok {
		return
	}
	c.emit(partner, protocol.TypeICECandidate, protocol.ServerICECandidateMsg{From: clientID, Candidate: payload})
	metrics.RelayedTotal.WithLabelValues(protocol.TypeICECandidate).Inc()
}

// StopVideo tells the partner the sender turned its video off. No state
// changes.
func (c *Core) StopVideo(clientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	partner, ok := c.pairedPartnerLocked(clientID, protocol.TypeStopVideo)
	if !ok {
		return
	}
	c.emit(partner, protocol.TypeStopVideo, protocol.ServerStopVideoMsg{})
	metrics.RelayedTotal.WithLabelValues(protocol.TypeStopVideo).Inc()
}

// ---------------------------------------------------------------------------
// Introspection
// ---------------------------------------------------------------------------

// Counts reports the current waiting-pool size and active pair count.
func (c *Core) Counts() (waiting, pairs int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pool.Len(), c.pairs.Pairs()
}

// StateOf returns the lifecycle state of a client. Clients the core no
// longer references report StateClosed.
func (c *Core) StateOf(clientID string) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	state, ok := c.states[clientID]
	if !ok {
		return StateClosed
	}
	return state
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

// pairedPartnerLocked returns clientID's partner when clientID is Paired.
// Any other state silently drops the event. Caller holds c.mu.
func (c *Core) pairedPartnerLocked(clientID, event string) (string, bool) {
	if c.states[clientID] != StatePaired {
		c.dropLocked(clientID, event, "invalid_state")
		return "", false
	}
	partner, ok := c.pairs.PartnerOf(clientID)
	if !ok {
		// The states map and the registry disagree; that is a bug.
		log.Printf("[pairing] client %s marked paired but has no registry entry", clientID)
		return "", false
	}
	return partner, true
}

// dropLocked records a silently dropped event. The client is never told;
// invalid traffic simply makes no progress. Caller holds c.mu.
func (c *Core) dropLocked(clientID, event, reason string) {
	metrics.DroppedTotal.WithLabelValues(reason).Inc()
	log.Printf("[pairing] dropped %s from %s: %s", event, clientID, reason)
}

// emit encodes one event and hands it to the outbox. Encoding failures are
// logged and the event is lost; transport-level delivery failures surface
// later as a disconnect of the target.
func (c *Core) emit(clientID, msgType string, payload interface{}) {
	data, err := protocol.NewServerMessage(msgType, payload)
	if err != nil {
		log.Printf("[pairing] encode %s for %s: %v", msgType, clientID, err)
		return
	}
	c.outbox.Send(clientID, data)
}

// syncGaugesLocked refreshes the pool and pair gauges. Caller holds c.mu.
func (c *Core) syncGaugesLocked() {
	metrics.WaitingClients.Set(float64(c.pool.Len()))
	metrics.ActivePairs.Set(float64(c.pairs.Pairs()))
}

// waitingText builds the human-readable waiting notice.
func waitingText(tags []string) string {
	if len(tags) == 1 && tags[0] == interest.Random {
		return "Waiting for a partner..."
	}
	return fmt.Sprintf("Waiting for a partner interested in %s...", strings.Join(tags, ", "))
}
