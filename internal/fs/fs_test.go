package fs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "out", "blob.bin")
	if err := WriteFile(strings.NewReader("hello"), dest, 0644); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(dest)
	if err != nil || string(b) != "hello" {
		t.Fatalf("got %q, %v", b, err)
	}
}

func TestWriteFileExecutable(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "tool")
	if err := WriteFile(strings.NewReader("#!/bin/sh\n"), dest, 0755); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(dest)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode()&0100 == 0 {
		t.Error("expected executable bit to be set")
	}
}

func TestCopyOrLinkFileSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target")
	os.WriteFile(target, []byte("x"), 0644)
	link := filepath.Join(dir, "link")
	os.Symlink(target, link)

	dest := filepath.Join(dir, "copy")
	if err := CopyOrLinkFile(link, dest, 0644, true, true); err != nil {
		t.Fatal(err)
	}
	got, err := os.Readlink(dest)
	if err != nil || got != target {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestPathExists(t *testing.T) {
	dir := t.TempDir()
	if PathExists(filepath.Join(dir, "nope")) {
		t.Error("expected false")
	}
	f := filepath.Join(dir, "f")
	os.WriteFile(f, nil, 0644)
	if !PathExists(f) || !FileExists(f) {
		t.Error("expected true")
	}
}
