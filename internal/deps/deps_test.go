package deps

import (
	"reflect"
	"sort"
	"testing"
)

func sorted(s []string) []string {
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}

func TestParseMakeRulesJoinsContinuationsAndUnescapesSpaces(t *testing.T) {
	rules := "foo.o: foo.c \\\n  foo.h \\\n  /usr/include/my\\ header.h\n"
	got := sorted(ParseMakeRules(rules))
	want := sorted([]string{"foo.c", "foo.h", "/usr/include/my header.h"})
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestParseMakeRulesDiscardsTarget(t *testing.T) {
	got := ParseMakeRules("foo.o: foo.c\n")
	for _, d := range got {
		if d == "foo.o" {
			t.Fatalf("target leaked into dependencies: %v", got)
		}
	}
}

func TestParseSunOutputMatchesSpecExample(t *testing.T) {
	got := sorted(ParseSunOutput("foo.o:\n/usr/include/stdio.h\n./foo.h\n"))
	want := sorted([]string{"/usr/include/stdio.h", "./foo.h"})
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFilterDropsOutsideProjectRoot(t *testing.T) {
	got := Filter([]string{"/proj/foo.h", "/usr/include/stdio.h"}, FilterOptions{
		ProjectRoot: "/proj",
	})
	want := []string{"/proj/foo.h"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFilterIncludeGlobalPathsKeepsEverything(t *testing.T) {
	got := sorted(Filter([]string{"/proj/foo.h", "/usr/include/stdio.h"}, FilterOptions{
		ProjectRoot:        "/proj",
		IncludeGlobalPaths: true,
	}))
	want := sorted([]string{"/proj/foo.h", "/usr/include/stdio.h"})
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFilterDropsSelfProduct(t *testing.T) {
	got := Filter([]string{"foo.o", "foo.c"}, FilterOptions{Products: []string{"foo.o"}})
	want := []string{"foo.c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFilterDeduplicates(t *testing.T) {
	got := Filter([]string{"foo.h", "foo.h", "bar.h"}, FilterOptions{})
	want := []string{"foo.h", "bar.h"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}
