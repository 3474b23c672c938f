package interest

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestNormalize_EmptyStringBecomesRandom(t *testing.T) {
	got := Normalize(FromString(""))
	want := []string{Random}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestNormalize_WhitespaceStringBecomesRandom(t *testing.T) {
	got := Normalize(FromString("   \t "))
	want := []string{Random}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestNormalize_RandomStringIsCaseInsensitive(t *testing.T) {
	for _, s := range []string{"random", "RANDOM", "RaNdOm", "  Random  "} {
		got := Normalize(FromString(s))
		if !reflect.DeepEqual(got, []string{Random}) {
			t.Errorf("Normalize(%q): expected [random], got %v", s, got)
		}
	}
}

func TestNormalize_SplitsTrimsAndLowercases(t *testing.T) {
	got := Normalize(FromString(" Music , MOVIES ,, gaming "))
	want := []string{"music", "movies", "gaming"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestNormalize_SingleTagString(t *testing.T) {
	got := Normalize(FromString("Music"))
	want := []string{"music"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestNormalize_DeduplicatesPreservingFirstOccurrence(t *testing.T) {
	got := Normalize(FromString("music,movies,music,gaming,movies"))
	want := []string{"music", "movies", "gaming"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestNormalize_ListKeepsTrimmedEntriesInOrder(t *testing.T) {
	got := Normalize(FromList([]string{" music", "", "movies ", "  "}))
	want := []string{"music", "movies"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestNormalize_ListDeduplicates(t *testing.T) {
	got := Normalize(FromList([]string{"music", "movies", "music"}))
	want := []string{"music", "movies"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestNormalize_EmptyListBecomesRandom(t *testing.T) {
	for _, in := range [][]string{nil, {}, {"", "  "}} {
		got := Normalize(FromList(in))
		if !reflect.DeepEqual(got, []string{Random}) {
			t.Errorf("Normalize(%v): expected [random], got %v", in, got)
		}
	}
}

func TestNormalize_CommaOnlyStringBecomesRandom(t *testing.T) {
	got := Normalize(FromString(" , ,, "))
	want := []string{Random}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []Input{
		FromString("Music, Movies,music"),
		FromString(""),
		FromString("random"),
		FromList([]string{" a", "b ", "a"}),
		FromList(nil),
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(FromList(once))
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("not idempotent: first %v, second %v", once, twice)
		}
	}
}

func TestHasRandom(t *testing.T) {
	if !HasRandom([]string{"music", Random}) {
		t.Error("expected HasRandom to find the sentinel")
	}
	if HasRandom([]string{"music", "movies"}) {
		t.Error("expected HasRandom to be false without the sentinel")
	}
	if HasRandom(nil) {
		t.Error("expected HasRandom(nil) to be false")
	}
}

func TestInput_UnmarshalJSON_String(t *testing.T) {
	var in Input
	if err := json.Unmarshal([]byte(`"music,movies"`), &in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !in.Present() {
		t.Fatal("expected input to be present")
	}
	got := Normalize(in)
	want := []string{"music", "movies"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestInput_UnmarshalJSON_List(t *testing.T) {
	var in Input
	if err := json.Unmarshal([]byte(`["music"," movies "]`), &in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !in.Present() {
		t.Fatal("expected input to be present")
	}
	got := Normalize(in)
	want := []string{"music", "movies"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestInput_UnmarshalJSON_NullIsAbsent(t *testing.T) {
	var in Input
	if err := json.Unmarshal([]byte(`null`), &in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if in.Present() {
		t.Error("expected null input to be absent")
	}
}

func TestInput_UnmarshalJSON_RejectsOtherTypes(t *testing.T) {
	for _, data := range []string{`42`, `true`, `{"a":1}`} {
		var in Input
		if err := json.Unmarshal([]byte(data), &in); err == nil {
			t.Errorf("expected error for %s, got none", data)
		}
	}
}

func TestInput_ZeroValueIsAbsent(t *testing.T) {
	var in Input
	if in.Present() {
		t.Error("zero-value Input should report absent")
	}
}
