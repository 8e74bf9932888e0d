package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestAtomicWriteCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "out.txt")
	if err := AtomicWrite(path, []byte("hello\r\n"), FilePerm); err != nil {
		t.Fatalf("AtomicWrite: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello\r\n" {
		t.Errorf("content = %q, want %q", got, "hello\r\n")
	}
}

func TestAtomicWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.dart")
	if err := os.WriteFile(path, []byte("old"), FilePerm); err != nil {
		t.Fatal(err)
	}
	if err := AtomicWrite(path, []byte("new"), FilePerm); err != nil {
		t.Fatalf("AtomicWrite: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "main.dart" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("dir entries = %v, want only main.dart", names)
	}
}

func TestAtomicWriteKeepsMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permission bits")
	}
	path := filepath.Join(t.TempDir(), "run.sh")
	if err := AtomicWrite(path, []byte("#!/bin/sh\n"), 0750); err != nil {
		t.Fatalf("AtomicWrite: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0750 {
		t.Errorf("mode = %o, want 750", info.Mode().Perm())
	}
}

func TestAtomicWriteFailureKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	// A directory at the target path makes the final rename fail.
	path := filepath.Join(dir, "target")
	if err := os.MkdirAll(filepath.Join(path, "child"), DirPerm); err != nil {
		t.Fatal(err)
	}
	if err := AtomicWrite(path, []byte("x"), FilePerm); err == nil {
		t.Fatal("expected error when target is a non-empty directory")
	}
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file %s left behind", e.Name())
		}
	}
}

func TestBackupPath(t *testing.T) {
	if got := BackupPath("/src/main.dart"); got != "/src/main.dart.orig" {
		t.Errorf("BackupPath = %q", got)
	}
}

func TestLockPathStable(t *testing.T) {
	dir := t.TempDir()
	a := LockPath(dir, "/src/main.dart")
	b := LockPath(dir, "/src/main.dart")
	c := LockPath(dir, "/src/other.dart")
	if a != b {
		t.Errorf("LockPath not stable: %q vs %q", a, b)
	}
	if a == c {
		t.Errorf("LockPath collision for different targets: %q", a)
	}
	if filepath.Dir(a) != dir {
		t.Errorf("LockPath dir = %q, want %q", filepath.Dir(a), dir)
	}
}

func TestDataDirUsesAPPDATA(t *testing.T) {
	t.Setenv("APPDATA", "/fake/appdata")
	got := DataDir()
	want := filepath.Join("/fake/appdata", AppDirName)
	if got != want {
		t.Errorf("DataDir() = %q, want %q", got, want)
	}
}

func TestDataDirFallsBackWithoutAPPDATA(t *testing.T) {
	t.Setenv("APPDATA", "")
	got := DataDir()

	// Should use ~/.config/anchorpatch or temp dir; either way it must end with "anchorpatch".
	if filepath.Base(got) != AppDirName {
		t.Errorf("DataDir() = %q, expected base dir %q", got, AppDirName)
	}
}

func TestLockPathFollowsSymlinks(t *testing.T) {
	dir := t.TempDir()
	realPath := filepath.Join(dir, "real.txt")
	if err := os.WriteFile(realPath, []byte("x"), FilePerm); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link.txt")
	if err := os.Symlink(realPath, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if LockPath(dir, link) != LockPath(dir, realPath) {
		t.Error("link and its target use different lock files")
	}
}
