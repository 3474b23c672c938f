package pairing

import "github.com/duetchat/duet/internal/interest"

// FindBestMatch scans the pool for the best partner for a client declaring
// the given interests, excluding the client itself. Two clients are
// compatible when they share at least one tag, or when both declared the
// random sentinel; random never matches a purely topical entry. Among
// compatible entries the largest overlap wins. Ties go to the earliest
// joiner, which the strictly-greater comparison over insertion order already
// yields. Returns nil when nothing in the pool is compatible.
func (p *Pool) FindBestMatch(interests []string, excludeID string) *WaitEntry {
	wantsRandom := interest.HasRandom(interests)

	var (
		best      *WaitEntry
		bestScore int
	)
	for _, w := range p.entries {
		if w.ClientID == excludeID {
			continue
		}
		common := SharedTags(interests, w.Interests)
		bothRandom := wantsRandom && interest.HasRandom(w.Interests)
		if len(common) == 0 && !bothRandom {
			continue
		}
		if best == nil || len(common) > bestScore {
			best = w
			bestScore = len(common)
		}
	}
	return best
}

// SharedTags returns the tags present in both lists, in the order they
// appear in the first. Inputs are normalized interest lists, so neither
// side carries duplicates.
func SharedTags(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	inB := make(map[string]bool, len(b))
	for _, tag := range b {
		inB[tag] = true
	}
	var shared []string
	for _, tag := range a {
		if inB[tag] {
			shared = append(shared, tag)
		}
	}
	return shared
}
