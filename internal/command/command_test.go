package command

import (
	"os"
	"testing"
)

func TestClassifyKnownBasenames(t *testing.T) {
	cases := map[string]Flavor{
		"/usr/bin/gcc-4.7": FlavorGCC,
		"g++":              FlavorGCC,
		"clang++":          FlavorClang,
		"CC":               FlavorSunStudio,
		"xlc++_r":          FlavorAIX,
	}
	for argv0, want := range cases {
		got, ok := Classify(argv0)
		if !ok || got != want {
			t.Errorf("Classify(%q) = %v, %v; want %v, true", argv0, got, ok, want)
		}
	}
}

func TestClassifyUnknownBasename(t *testing.T) {
	if _, ok := Classify("/usr/bin/rustc"); ok {
		t.Fatal("expected rustc to be unrecognized")
	}
}

func TestParseNonCompilerCommand(t *testing.T) {
	pc, err := Parse([]string{"ls", "-la"}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if pc.IsCompilerCommand {
		t.Fatal("expected IsCompilerCommand false")
	}
}

func TestParseGCCRewritesAbsoluteIncludePath(t *testing.T) {
	pc, err := Parse([]string{"gcc", "-c", "-I/proj/include", "/proj/foo.c", "-o", "foo.o"}, Options{
		ProjectRoot:      "/proj",
		WorkingDirectory: "/proj",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !pc.IsCompilerCommand || pc.Flavor != FlavorGCC {
		t.Fatalf("got %+v", pc)
	}
	want := []string{"gcc", "-c", "-Iinclude", "foo.c", "-o", "foo.o"}
	if len(pc.Argv) != len(want) {
		t.Fatalf("Argv = %v", pc.Argv)
	}
	for i := range want {
		if pc.Argv[i] != want[i] {
			t.Errorf("Argv[%d] = %q, want %q", i, pc.Argv[i], want[i])
		}
	}
	if len(pc.Products) != 1 || pc.Products[0] != "foo.o" {
		t.Fatalf("Products = %v", pc.Products)
	}
}

func TestParseGCCSynthesizesDependenciesCommand(t *testing.T) {
	pc, err := Parse([]string{"gcc", "-c", "foo.c", "-o", "foo.o"}, Options{ProjectRoot: "/proj"})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"gcc", "foo.c", "-M", "-MF", "-"}
	if len(pc.DependenciesArgv) != len(want) {
		t.Fatalf("DependenciesArgv = %v", pc.DependenciesArgv)
	}
	for i := range want {
		if pc.DependenciesArgv[i] != want[i] {
			t.Errorf("DependenciesArgv[%d] = %q, want %q", i, pc.DependenciesArgv[i], want[i])
		}
	}
}

func TestParseClangAppendsQUnusedArguments(t *testing.T) {
	pc, err := Parse([]string{"clang", "-c", "foo.c"}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	last := pc.DependenciesArgv[len(pc.DependenciesArgv)-1]
	if last != "-Qunused-arguments" {
		t.Fatalf("DependenciesArgv = %v", pc.DependenciesArgv)
	}
	if !pc.IsClang {
		t.Fatal("expected IsClang")
	}
}

func TestParseNoOutputSynthesizesAOut(t *testing.T) {
	pc, err := Parse([]string{"gcc", "foo.c"}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(pc.Products) != 1 || pc.Products[0] != "a.out" {
		t.Fatalf("Products = %v", pc.Products)
	}
}

func TestParseSunStudioAppendsXM1(t *testing.T) {
	pc, err := Parse([]string{"cc", "-c", "foo.c"}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !pc.ProducesSunMakeRules {
		t.Fatal("expected ProducesSunMakeRules")
	}
	last := pc.DependenciesArgv[len(pc.DependenciesArgv)-1]
	if last != "-xM1" {
		t.Fatalf("DependenciesArgv = %v", pc.DependenciesArgv)
	}
}

func TestParseAIXAllocatesTempDependencyFile(t *testing.T) {
	pc, err := Parse([]string{"xlc", "-c", "foo.c"}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if pc.AIXDependencyFile == "" {
		t.Fatal("expected a temp dependency file")
	}
	if _, err := os.Stat(pc.AIXDependencyFile); err != nil {
		t.Fatalf("temp file missing: %v", err)
	}
	if err := pc.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(pc.AIXDependencyFile); !os.IsNotExist(err) {
		t.Fatal("expected Close to remove the temp file")
	}
}

func TestParseUnknownCompilerSuggestion(t *testing.T) {
	pc, err := Parse([]string{"gccc", "foo.c"}, Options{Verbose: true})
	if err != nil {
		t.Fatal(err)
	}
	if pc.IsCompilerCommand {
		t.Fatal("expected unrecognized")
	}
	if pc.Suggestion == "" {
		t.Fatal("expected a suggestion")
	}
}
