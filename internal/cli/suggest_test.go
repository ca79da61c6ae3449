package cli

import "testing"

func TestSuggestOrdersByDistance(t *testing.T) {
	got := Suggest("gcc", []string{"g++", "gcc-11", "clang", "cc"}, 4)
	if len(got) == 0 || got[0] != "gcc-11" {
		t.Fatalf("got %v", got)
	}
}

func TestPrettyPrintSuggestionEmpty(t *testing.T) {
	if msg := PrettyPrintSuggestion("xyz", []string{"gcc", "clang"}, 1); msg != "" {
		t.Errorf("expected no suggestion, got %q", msg)
	}
}

func TestPrettyPrintSuggestionSingle(t *testing.T) {
	msg := PrettyPrintSuggestion("gc", []string{"gcc"}, 2)
	if msg == "" {
		t.Fatal("expected a suggestion")
	}
}
