package pairing

import (
	"reflect"
	"testing"
)

func poolWith(t *testing.T, entries ...*WaitEntry) *Pool {
	t.Helper()
	p := NewPool()
	for _, e := range entries {
		if !p.Insert(e) {
			t.Fatalf("failed to insert %s into test pool", e.ClientID)
		}
	}
	return p
}

// ---------- FindBestMatch tests ----------

func TestFindBestMatch_LargestOverlapBeatsFIFO(t *testing.T) {
	p := poolWith(t,
		poolEntry("xavier", 1, "music"),
		poolEntry("yara", 2, "music", "movies"),
	)

	match := p.FindBestMatch([]string{"music", "movies"}, "carol")
	if match == nil {
		t.Fatal("expected a match, got nil")
	}
	if match.ClientID != "yara" {
		t.Errorf("expected yara (2 shared beats 1), got %s", match.ClientID)
	}
}

func TestFindBestMatch_FIFOTieBreak(t *testing.T) {
	p := poolWith(t,
		poolEntry("xavier", 1, "music"),
		poolEntry("yara", 2, "music"),
	)

	match := p.FindBestMatch([]string{"music"}, "carol")
	if match == nil {
		t.Fatal("expected a match, got nil")
	}
	if match.ClientID != "xavier" {
		t.Errorf("expected earliest joiner xavier on a tie, got %s", match.ClientID)
	}
}

func TestFindBestMatch_RandomOnlyMatchesRandom(t *testing.T) {
	p := poolWith(t, poolEntry("xavier", 1, "music"))

	// A random seeker must not be handed a topical entry.
	if match := p.FindBestMatch([]string{"random"}, "carol"); match != nil {
		t.Fatalf("expected no match for random against [music], got %s", match.ClientID)
	}

	// But two random declarations pair up.
	p.Insert(poolEntry("dana", 2, "random"))
	match := p.FindBestMatch([]string{"random"}, "carol")
	if match == nil {
		t.Fatal("expected both-random match, got nil")
	}
	if match.ClientID != "dana" {
		t.Errorf("expected dana, got %s", match.ClientID)
	}
}

func TestFindBestMatch_TopicalNeverMatchesRandom(t *testing.T) {
	p := poolWith(t, poolEntry("dana", 1, "random"))

	if match := p.FindBestMatch([]string{"music"}, "carol"); match != nil {
		t.Errorf("expected no match for [music] against [random], got %s", match.ClientID)
	}
}

func TestFindBestMatch_ExcludesSelf(t *testing.T) {
	p := poolWith(t, poolEntry("carol", 1, "music"))

	if match := p.FindBestMatch([]string{"music"}, "carol"); match != nil {
		t.Errorf("expected no self-match, got %s", match.ClientID)
	}
}

func TestFindBestMatch_NoOverlap(t *testing.T) {
	p := poolWith(t,
		poolEntry("xavier", 1, "sports"),
		poolEntry("yara", 2, "cooking"),
	)

	if match := p.FindBestMatch([]string{"music"}, "carol"); match != nil {
		t.Errorf("expected no match without overlap, got %s", match.ClientID)
	}
}

func TestFindBestMatch_EmptyPool(t *testing.T) {
	p := NewPool()
	if match := p.FindBestMatch([]string{"music"}, "carol"); match != nil {
		t.Errorf("expected no match from empty pool, got %s", match.ClientID)
	}
}

func TestFindBestMatch_MixedRandomAndTagsSharesRandom(t *testing.T) {
	// "random" alongside topical tags is still an ordinary shared tag.
	p := poolWith(t, poolEntry("xavier", 1, "random", "music"))

	match := p.FindBestMatch([]string{"random"}, "carol")
	if match == nil {
		t.Fatal("expected match via shared random tag, got nil")
	}
	if match.ClientID != "xavier" {
		t.Errorf("expected xavier, got %s", match.ClientID)
	}
}

// ---------- SharedTags tests ----------

func TestSharedTags_OrderFollowsFirstList(t *testing.T) {
	got := SharedTags([]string{"movies", "music", "books"}, []string{"books", "music"})
	want := []string{"music", "books"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSharedTags_Disjoint(t *testing.T) {
	if got := SharedTags([]string{"a"}, []string{"b"}); got != nil {
		t.Errorf("expected nil for disjoint lists, got %v", got)
	}
}

func TestSharedTags_EmptyInput(t *testing.T) {
	if got := SharedTags(nil, []string{"a"}); got != nil {
		t.Errorf("expected nil for empty first list, got %v", got)
	}
	if got := SharedTags([]string{"a"}, nil); got != nil {
		t.Errorf("expected nil for empty second list, got %v", got)
	}
}
