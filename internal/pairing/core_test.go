package pairing

import (
	"bytes"
	"encoding/json"
	"reflect"
	"testing"

	"github.com/duetchat/duet/internal/interest"
	"github.com/duetchat/duet/internal/protocol"
)

// recordingOutbox captures every emission in order so tests can assert on
// per-client streams and on global emission order.
type recordingOutbox struct {
	events []sentEvent
}

type sentEvent struct {
	clientID string
	msgType  string
	data     []byte
}

func (o *recordingOutbox) Send(clientID string, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	json.Unmarshal(data, &env)
	o.events = append(o.events, sentEvent{clientID: clientID, msgType: env.Type, data: data})
}

func (o *recordingOutbox) reset() {
	o.events = nil
}

// typesFor returns the event types delivered to clientID, in order.
func (o *recordingOutbox) typesFor(clientID string) []string {
	var types []string
	for _, e := range o.events {
		if e.clientID == clientID {
			types = append(types, e.msgType)
		}
	}
	return types
}

// last returns the most recent event delivered to clientID.
func (o *recordingOutbox) last(t *testing.T, clientID string) sentEvent {
	t.Helper()
	for i := len(o.events) - 1; i >= 0; i-- {
		if o.events[i].clientID == clientID {
			return o.events[i]
		}
	}
	t.Fatalf("no events delivered to %s", clientID)
	return sentEvent{}
}

// decode unmarshals an event's bytes into dst.
func decode(t *testing.T, e sentEvent, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(e.data, dst); err != nil {
		t.Fatalf("failed to decode %s event for %s: %v", e.msgType, e.clientID, err)
	}
}

func newTestCore(t *testing.T) (*Core, *recordingOutbox) {
	t.Helper()
	out := &recordingOutbox{}
	return NewCore(out), out
}

// connectClients registers each id with the core.
func connectClients(t *testing.T, c *Core, ids ...string) {
	t.Helper()
	for _, id := range ids {
		c.Connect(id)
	}
}

// pairUp connects two clients, pairs them on a shared tag, and clears the
// outbox so the test can assert on subsequent traffic only.
func pairUp(t *testing.T, c *Core, out *recordingOutbox, a, b, tag string) {
	t.Helper()
	connectClients(t, c, a, b)
	c.FindPartner(a, interest.FromString(tag))
	c.FindPartner(b, interest.FromString(tag))
	if c.StateOf(a) != StatePaired || c.StateOf(b) != StatePaired {
		t.Fatalf("setup: expected %s and %s paired, got %v and %v", a, b, c.StateOf(a), c.StateOf(b))
	}
	out.reset()
}

// assertInvariants checks the structural invariants that must hold in every
// reachable state: registry symmetry, pool/registry disjointness, no
// duplicate pool entries, and non-decreasing pool join times.
func assertInvariants(t *testing.T, c *Core) {
	t.Helper()

	for id, partner := range c.pairs.partner {
		if back, ok := c.pairs.partner[partner]; !ok || back != id {
			t.Errorf("registry asymmetric: %s -> %s but %s -> %q", id, partner, partner, back)
		}
	}

	seen := make(map[string]bool)
	var prev *WaitEntry
	for _, e := range c.pool.Entries() {
		if seen[e.ClientID] {
			t.Errorf("duplicate pool entry for %s", e.ClientID)
		}
		seen[e.ClientID] = true
		if _, ok := c.pairs.PartnerOf(e.ClientID); ok {
			t.Errorf("%s is both waiting and paired", e.ClientID)
		}
		if prev != nil && e.JoinedAt.Before(prev.JoinedAt) {
			t.Errorf("pool join times decrease at %s", e.ClientID)
		}
		prev = e
	}
}

// assertNoTrace checks that no core structure references clientID.
func assertNoTrace(t *testing.T, c *Core, clientID string) {
	t.Helper()
	if _, ok := c.states[clientID]; ok {
		t.Errorf("states still references %s", clientID)
	}
	if _, ok := c.interests[clientID]; ok {
		t.Errorf("interests still references %s", clientID)
	}
	if c.pool.Contains(clientID) {
		t.Errorf("pool still references %s", clientID)
	}
	if _, ok := c.pairs.PartnerOf(clientID); ok {
		t.Errorf("registry still references %s", clientID)
	}
}

// ---------- connection lifecycle ----------

func TestConnect_AnnouncesAssignedID(t *testing.T) {
	c, out := newTestCore(t)
	c.Connect("alice")

	if c.StateOf("alice") != StateUnregistered {
		t.Errorf("expected Unregistered, got %v", c.StateOf("alice"))
	}

	e := out.last(t, "alice")
	if e.msgType != protocol.TypeConnected {
		t.Fatalf("expected connected event, got %s", e.msgType)
	}
	var msg protocol.ConnectedMsg
	decode(t, e, &msg)
	if msg.ClientID != "alice" {
		t.Errorf("expected client_id alice, got %q", msg.ClientID)
	}
}

func TestStateOf_UnknownClientIsClosed(t *testing.T) {
	c, _ := newTestCore(t)
	if c.StateOf("ghost") != StateClosed {
		t.Errorf("expected Closed for unknown client, got %v", c.StateOf("ghost"))
	}
}

// ---------- matchmaking ----------

func TestFindPartner_FirstClientWaits(t *testing.T) {
	c, out := newTestCore(t)
	connectClients(t, c, "alice")

	c.FindPartner("alice", interest.FromString("music"))

	if c.StateOf("alice") != StateWaiting {
		t.Errorf("expected Waiting, got %v", c.StateOf("alice"))
	}
	if !c.pool.Contains("alice") {
		t.Error("expected alice in the waiting pool")
	}

	e := out.last(t, "alice")
	if e.msgType != protocol.TypeWaiting {
		t.Fatalf("expected waiting event, got %s", e.msgType)
	}
	var msg protocol.WaitingMsg
	decode(t, e, &msg)
	if msg.Message == "" {
		t.Error("expected a human-readable waiting message")
	}
	assertInvariants(t, c)
}

func TestFindPartner_ExactInterestPair(t *testing.T) {
	c, out := newTestCore(t)
	connectClients(t, c, "alice", "bob")

	c.FindPartner("alice", interest.FromString("music"))
	// Case-insensitive on the string path: "Music" normalizes to "music".
	c.FindPartner("bob", interest.FromString("Music"))

	if c.StateOf("alice") != StatePaired || c.StateOf("bob") != StatePaired {
		t.Fatalf("expected both paired, got %v and %v", c.StateOf("alice"), c.StateOf("bob"))
	}
	if c.pool.Len() != 0 {
		t.Errorf("expected empty pool, got %d entries", c.pool.Len())
	}

	var toAlice protocol.PartnerFoundMsg
	decode(t, out.last(t, "alice"), &toAlice)
	if toAlice.PartnerID != "bob" {
		t.Errorf("expected alice's partner bob, got %q", toAlice.PartnerID)
	}
	var toBob protocol.PartnerFoundMsg
	decode(t, out.last(t, "bob"), &toBob)
	if toBob.PartnerID != "alice" {
		t.Errorf("expected bob's partner alice, got %q", toBob.PartnerID)
	}
	assertInvariants(t, c)
}

func TestFindPartner_BestMatchWins(t *testing.T) {
	c, out := newTestCore(t)
	connectClients(t, c, "xavier", "yara", "carol")

	// xavier and yara have disjoint interests, so both sit in the pool.
	c.FindPartner("xavier", interest.FromString("music"))
	c.FindPartner("yara", interest.FromString("movies,dance"))

	// carol shares one tag with xavier but two with yara.
	c.FindPartner("carol", interest.FromString("music,movies,dance"))

	var msg protocol.PartnerFoundMsg
	decode(t, out.last(t, "carol"), &msg)
	if msg.PartnerID != "yara" {
		t.Errorf("expected carol paired with yara (2 shared beats 1), got %q", msg.PartnerID)
	}
	if c.StateOf("xavier") != StateWaiting {
		t.Errorf("expected xavier still waiting, got %v", c.StateOf("xavier"))
	}
	assertInvariants(t, c)
}

func TestFindPartner_FIFOTieBreak(t *testing.T) {
	c, out := newTestCore(t)
	connectClients(t, c, "xavier", "yara", "carol")

	c.FindPartner("xavier", interest.FromString("music"))
	c.FindPartner("yara", interest.FromString("movies"))

	// carol shares exactly one tag with each; the earlier joiner wins.
	c.FindPartner("carol", interest.FromString("music,movies"))

	var msg protocol.PartnerFoundMsg
	decode(t, out.last(t, "carol"), &msg)
	if msg.PartnerID != "xavier" {
		t.Errorf("expected carol paired with earliest joiner xavier, got %q", msg.PartnerID)
	}
	assertInvariants(t, c)
}

func TestFindPartner_StrictRandomSemantics(t *testing.T) {
	c, out := newTestCore(t)
	connectClients(t, c, "xavier", "carol", "dana")

	c.FindPartner("xavier", interest.FromString("music"))

	// Empty input normalizes to [random], which must not match [music].
	c.FindPartner("carol", interest.FromString(""))
	if c.StateOf("carol") != StateWaiting {
		t.Fatalf("expected carol waiting, got %v", c.StateOf("carol"))
	}

	// A second random declaration pairs with carol, not with xavier.
	c.FindPartner("dana", interest.FromString("random"))

	var msg protocol.PartnerFoundMsg
	decode(t, out.last(t, "dana"), &msg)
	if msg.PartnerID != "carol" {
		t.Errorf("expected dana paired with carol, got %q", msg.PartnerID)
	}
	if c.StateOf("xavier") != StateWaiting {
		t.Errorf("expected xavier still waiting, got %v", c.StateOf("xavier"))
	}
	assertInvariants(t, c)
}

func TestFindPartner_WhilePairedDissolvesFirst(t *testing.T) {
	c, out := newTestCore(t)
	pairUp(t, c, out, "alice", "bob", "music")

	c.FindPartner("alice", interest.FromString("books"))

	// bob is notified and left Unregistered, never auto-requeued.
	if got := out.last(t, "bob").msgType; got != protocol.TypePartnerDisconnected {
		t.Errorf("expected partner_disconnected to bob, got %s", got)
	}
	if c.StateOf("bob") != StateUnregistered {
		t.Errorf("expected bob Unregistered, got %v", c.StateOf("bob"))
	}
	if c.pool.Contains("bob") {
		t.Error("bob must not be auto-requeued")
	}

	if c.StateOf("alice") != StateWaiting {
		t.Errorf("expected alice waiting on her new search, got %v", c.StateOf("alice"))
	}
	assertInvariants(t, c)
}

func TestFindPartner_WhileWaitingReplacesEntry(t *testing.T) {
	c, _ := newTestCore(t)
	connectClients(t, c, "alice")

	c.FindPartner("alice", interest.FromString("music"))
	c.FindPartner("alice", interest.FromString("movies"))

	if c.pool.Len() != 1 {
		t.Fatalf("expected a single pool entry, got %d", c.pool.Len())
	}
	entry := c.pool.Entries()[0]
	if !reflect.DeepEqual(entry.Interests, []string{"movies"}) {
		t.Errorf("expected replaced interests [movies], got %v", entry.Interests)
	}
	assertInvariants(t, c)
}

func TestFindPartner_UnknownClientIsDropped(t *testing.T) {
	c, out := newTestCore(t)

	c.FindPartner("ghost", interest.FromString("music"))

	if len(out.events) != 0 {
		t.Errorf("expected no emissions, got %d", len(out.events))
	}
	if c.pool.Len() != 0 {
		t.Errorf("expected empty pool, got %d entries", c.pool.Len())
	}
}

// ---------- message relay ----------

func TestSendMessage_EchoLaw(t *testing.T) {
	c, out := newTestCore(t)
	pairUp(t, c, out, "alice", "bob", "music")

	c.SendMessage("alice", "hello there")

	if len(out.events) != 2 {
		t.Fatalf("expected exactly 2 emissions, got %d", len(out.events))
	}

	// Partner's copy first, tagged "partner".
	if out.events[0].clientID != "bob" {
		t.Errorf("expected first emission to bob, got %s", out.events[0].clientID)
	}
	var toBob protocol.ReceiveMessageMsg
	decode(t, out.events[0], &toBob)
	if toBob.Sender != protocol.SenderPartner || toBob.Text != "hello there" {
		t.Errorf("unexpected partner copy: %+v", toBob)
	}

	// Author's echo second, tagged "me".
	if out.events[1].clientID != "alice" {
		t.Errorf("expected second emission to alice, got %s", out.events[1].clientID)
	}
	var toAlice protocol.ReceiveMessageMsg
	decode(t, out.events[1], &toAlice)
	if toAlice.Sender != protocol.SenderMe || toAlice.Text != "hello there" {
		t.Errorf("unexpected echo copy: %+v", toAlice)
	}
}

func TestSendMessage_WhileUnpairedIsDropped(t *testing.T) {
	c, out := newTestCore(t)
	connectClients(t, c, "alice")
	c.FindPartner("alice", interest.FromString("music"))
	out.reset()

	c.SendMessage("alice", "anyone there?")

	if len(out.events) != 0 {
		t.Errorf("expected no emissions for unpaired sender, got %d", len(out.events))
	}
}

func TestSendMessage_EmptyTextIsDropped(t *testing.T) {
	c, out := newTestCore(t)
	pairUp(t, c, out, "alice", "bob", "music")

	c.SendMessage("alice", "")

	if len(out.events) != 0 {
		t.Errorf("expected no emissions for empty text, got %d", len(out.events))
	}
}

// ---------- signaling relay ----------

func TestOffer_ForwardedWithSenderTag(t *testing.T) {
	c, out := newTestCore(t)
	pairUp(t, c, out, "alice", "bob", "music")

	payload := json.RawMessage(`{"sdp":"v=0...","seq":9007199254740993}`)
	c.Offer("alice", payload)

	e := out.last(t, "bob")
	if e.msgType != protocol.TypeOffer {
		t.Fatalf("expected offer event, got %s", e.msgType)
	}
	var msg protocol.ServerOfferMsg
	decode(t, e, &msg)
	if msg.From != "alice" {
		t.Errorf("expected from alice, got %q", msg.From)
	}
	if !bytes.Equal(msg.Offer, payload) {
		t.Errorf("opaque offer altered: expected %s, got %s", payload, msg.Offer)
	}
}

func TestOffer_MissingPayloadIsDropped(t *testing.T) {
	c, out := newTestCore(t)
	pairUp(t, c, out, "alice", "bob", "music")

	c.Offer("alice", nil)

	if len(out.events) != 0 {
		t.Errorf("expected no emissions for missing payload, got %d", len(out.events))
	}
}

func TestAnswer_ForwardedToPartner(t *testing.T) {
	c, out := newTestCore(t)
	pairUp(t, c, out, "alice", "bob", "music")

	c.Answer("bob", "alice", json.RawMessage(`{"sdp":"answer"}`))

	e := out.last(t, "alice")
	if e.msgType != protocol.TypeAnswer {
		t.Fatalf("expected answer event, got %s", e.msgType)
	}
	var msg protocol.ServerAnswerMsg
	decode(t, e, &msg)
	if msg.From != "bob" {
		t.Errorf("expected from bob, got %q", msg.From)
	}
}

func TestAnswer_WrongTargetIsDropped(t *testing.T) {
	c, out := newTestCore(t)
	pairUp(t, c, out, "alice", "bob", "music")

	c.Answer("bob", "mallory", json.RawMessage(`{"sdp":"answer"}`))

	if len(out.events) != 0 {
		t.Errorf("expected no emissions for mis-addressed answer, got %d", len(out.events))
	}
}

func TestIceCandidate_Forwarded(t *testing.T) {
	c, out := newTestCore(t)
	pairUp(t, c, out, "alice", "bob", "music")

	payload := json.RawMessage(`{"candidate":"host 10.0.0.1"}`)
	c.IceCandidate("alice", payload)

	e := out.last(t, "bob")
	if e.msgType != protocol.TypeICECandidate {
		t.Fatalf("expected ice-candidate event, got %s", e.msgType)
	}
	var msg protocol.ServerICECandidateMsg
	decode(t, e, &msg)
	if msg.From != "alice" {
		t.Errorf("expected from alice, got %q", msg.From)
	}
	if !bytes.Equal(msg.Candidate, payload) {
		t.Errorf("opaque candidate altered: got %s", msg.Candidate)
	}
}

func TestStopVideo_ForwardedWithoutStateChange(t *testing.T) {
	c, out := newTestCore(t)
	pairUp(t, c, out, "alice", "bob", "music")

	c.StopVideo("alice")

	if got := out.last(t, "bob").msgType; got != protocol.TypeStopVideo {
		t.Errorf("expected stop_video to bob, got %s", got)
	}
	if c.StateOf("alice") != StatePaired || c.StateOf("bob") != StatePaired {
		t.Error("stop_video must not change pairing state")
	}
}

func TestSignaling_WhileUnpairedIsDropped(t *testing.T) {
	c, out := newTestCore(t)
	connectClients(t, c, "alice")
	out.reset()

	c.Offer("alice", json.RawMessage(`{"sdp":"x"}`))
	c.Answer("alice", "bob", json.RawMessage(`{"sdp":"x"}`))
	c.IceCandidate("alice", json.RawMessage(`{"c":"x"}`))
	c.StopVideo("alice")

	if len(out.events) != 0 {
		t.Errorf("expected all signaling dropped while unpaired, got %d emissions", len(out.events))
	}
}

// ---------- skip ----------

func TestSkip_ReMatchesInitiatorOnly(t *testing.T) {
	c, out := newTestCore(t)
	pairUp(t, c, out, "alice", "bob", "music")

	connectClients(t, c, "carol")
	c.FindPartner("carol", interest.FromString("games"))
	out.reset()

	c.Skip("alice", interest.FromString("games"))

	// The skipped partner is told once and left Unregistered.
	bobTypes := out.typesFor("bob")
	if !reflect.DeepEqual(bobTypes, []string{protocol.TypePartnerDisconnected}) {
		t.Errorf("expected bob to receive only partner_disconnected, got %v", bobTypes)
	}
	if c.StateOf("bob") != StateUnregistered {
		t.Errorf("expected bob Unregistered, got %v", c.StateOf("bob"))
	}
	if c.pool.Contains("bob") {
		t.Error("bob must not be auto-requeued")
	}

	// The initiator is re-matched immediately.
	var msg protocol.PartnerFoundMsg
	decode(t, out.last(t, "alice"), &msg)
	if msg.PartnerID != "carol" {
		t.Errorf("expected alice re-paired with carol, got %q", msg.PartnerID)
	}
	assertInvariants(t, c)
}

func TestSkip_WithoutPayloadReusesRememberedInterests(t *testing.T) {
	c, out := newTestCore(t)
	pairUp(t, c, out, "alice", "bob", "music")

	c.Skip("alice", interest.Input{})

	if c.StateOf("alice") != StateWaiting {
		t.Fatalf("expected alice waiting, got %v", c.StateOf("alice"))
	}
	entry := c.pool.Entries()[0]
	if !reflect.DeepEqual(entry.Interests, []string{"music"}) {
		t.Errorf("expected remembered interests [music], got %v", entry.Interests)
	}
}

func TestSkip_SkippedPartnerKeepsRememberedInterests(t *testing.T) {
	c, out := newTestCore(t)
	pairUp(t, c, out, "alice", "bob", "music")

	c.Skip("alice", interest.FromString("games"))

	if got := c.interests["bob"]; !reflect.DeepEqual(got, []string{"music"}) {
		t.Errorf("expected bob's interests kept as [music], got %v", got)
	}
}

func TestSkip_WhileNotPairedIsDropped(t *testing.T) {
	c, out := newTestCore(t)
	connectClients(t, c, "alice")
	c.FindPartner("alice", interest.FromString("music"))
	out.reset()

	c.Skip("alice", interest.Input{})

	if len(out.events) != 0 {
		t.Errorf("expected no emissions, got %d", len(out.events))
	}
	if c.StateOf("alice") != StateWaiting {
		t.Errorf("expected alice still waiting, got %v", c.StateOf("alice"))
	}
}

// ---------- leaveChat ----------

func TestLeaveChat_FromPairedForgetsInterests(t *testing.T) {
	c, out := newTestCore(t)
	pairUp(t, c, out, "alice", "bob", "music")

	c.LeaveChat("alice")

	if got := out.last(t, "bob").msgType; got != protocol.TypePartnerDisconnected {
		t.Errorf("expected partner_disconnected to bob, got %s", got)
	}
	if c.StateOf("alice") != StateUnregistered || c.StateOf("bob") != StateUnregistered {
		t.Errorf("expected both Unregistered, got %v and %v", c.StateOf("alice"), c.StateOf("bob"))
	}

	// leaveChat is a clean reset for the leaver; the partner's memory stays.
	if _, ok := c.interests["alice"]; ok {
		t.Error("expected alice's interests forgotten")
	}
	if got := c.interests["bob"]; !reflect.DeepEqual(got, []string{"music"}) {
		t.Errorf("expected bob's interests kept, got %v", got)
	}
	assertInvariants(t, c)
}

func TestLeaveChat_FromWaitingLeavesPool(t *testing.T) {
	c, out := newTestCore(t)
	connectClients(t, c, "alice")
	c.FindPartner("alice", interest.FromString("music"))
	out.reset()

	c.LeaveChat("alice")

	if c.pool.Len() != 0 {
		t.Errorf("expected empty pool, got %d entries", c.pool.Len())
	}
	if c.StateOf("alice") != StateUnregistered {
		t.Errorf("expected Unregistered, got %v", c.StateOf("alice"))
	}
	if _, ok := c.interests["alice"]; ok {
		t.Error("expected interests forgotten")
	}
	if len(out.events) != 0 {
		t.Errorf("expected no emissions, got %d", len(out.events))
	}
}

func TestLeaveChat_WhileUnregisteredIsDropped(t *testing.T) {
	c, out := newTestCore(t)
	connectClients(t, c, "alice")
	out.reset()

	c.LeaveChat("alice")

	if len(out.events) != 0 {
		t.Errorf("expected no emissions, got %d", len(out.events))
	}
	if c.StateOf("alice") != StateUnregistered {
		t.Errorf("expected alice untouched, got %v", c.StateOf("alice"))
	}
}

// ---------- disconnect ----------

func TestDisconnect_MidPair(t *testing.T) {
	c, out := newTestCore(t)
	pairUp(t, c, out, "alice", "bob", "music")

	c.Disconnect("alice")

	if got := out.last(t, "bob").msgType; got != protocol.TypePartnerDisconnected {
		t.Errorf("expected partner_disconnected to bob, got %s", got)
	}
	if c.pairs.Pairs() != 0 {
		t.Errorf("expected empty registry, got %d pairs", c.pairs.Pairs())
	}
	if c.pool.Len() != 0 {
		t.Errorf("expected empty pool, got %d entries", c.pool.Len())
	}
	assertNoTrace(t, c, "alice")
	assertInvariants(t, c)
}

func TestDisconnect_WhileWaiting(t *testing.T) {
	c, out := newTestCore(t)
	connectClients(t, c, "alice")
	c.FindPartner("alice", interest.FromString("music"))
	out.reset()

	c.Disconnect("alice")

	assertNoTrace(t, c, "alice")
	if len(out.events) != 0 {
		t.Errorf("expected no emissions when a waiting client drops, got %d", len(out.events))
	}
}

func TestDisconnect_IsIdempotent(t *testing.T) {
	c, out := newTestCore(t)
	pairUp(t, c, out, "alice", "bob", "music")

	c.Disconnect("alice")
	out.reset()
	c.Disconnect("alice")

	if len(out.events) != 0 {
		t.Errorf("expected no emissions on repeat disconnect, got %d", len(out.events))
	}
	assertNoTrace(t, c, "alice")
}

func TestDisconnect_UnknownClientIsNoop(t *testing.T) {
	c, out := newTestCore(t)
	c.Disconnect("ghost")
	if len(out.events) != 0 {
		t.Errorf("expected no emissions, got %d", len(out.events))
	}
}

// ---------- ordering laws ----------

func TestPartnerFound_PrecedesPairTraffic(t *testing.T) {
	c, out := newTestCore(t)
	connectClients(t, c, "alice", "bob")

	c.FindPartner("alice", interest.FromString("music"))
	c.FindPartner("bob", interest.FromString("music"))
	c.SendMessage("bob", "hi")

	want := []string{
		protocol.TypeConnected,
		protocol.TypeWaiting,
		protocol.TypePartnerFound,
		protocol.TypeReceiveMessage,
	}
	if got := out.typesFor("alice"); !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected event order for alice:\n  want %v\n  got  %v", want, got)
	}
}

func TestPartnerDisconnected_IsLastEventAboutPartner(t *testing.T) {
	c, out := newTestCore(t)
	pairUp(t, c, out, "alice", "bob", "music")

	c.Skip("alice", interest.Input{})

	// Anything bob sends afterwards is dropped, so his stream stays ended
	// with partner_disconnected.
	c.SendMessage("bob", "wait, come back")
	c.StopVideo("bob")

	types := out.typesFor("bob")
	if len(types) == 0 || types[len(types)-1] != protocol.TypePartnerDisconnected {
		t.Errorf("expected bob's stream to end with partner_disconnected, got %v", types)
	}
}

// ---------- introspection ----------

func TestCounts(t *testing.T) {
	c, _ := newTestCore(t)
	connectClients(t, c, "alice", "bob", "carol")

	c.FindPartner("alice", interest.FromString("music"))
	c.FindPartner("bob", interest.FromString("music"))
	c.FindPartner("carol", interest.FromString("books"))

	waiting, pairs := c.Counts()
	if waiting != 1 {
		t.Errorf("expected 1 waiting, got %d", waiting)
	}
	if pairs != 1 {
		t.Errorf("expected 1 pair, got %d", pairs)
	}
}
