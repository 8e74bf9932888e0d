package patch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Mavwarf/anchorpatch/internal/filelock"
)

func writeTarget(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.dart")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func testOptions(t *testing.T) Options {
	t.Helper()
	return Options{LockDir: filepath.Join(t.TempDir(), "locks")}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestApplyFileWritesResult(t *testing.T) {
	path := writeTarget(t, "a-a-a")
	plan := Plan{Name: "p", Directives: []Directive{{Needle: "a", Replacement: "b", Occurrence: All}}}

	res, err := ApplyFile(context.Background(), path, plan, testOptions(t))
	require.NoError(t, err)
	assert.True(t, res.Written)
	assert.True(t, res.Changed())
	assert.Equal(t, 3, res.Replacements())
	assert.Equal(t, "b-b-b", readFile(t, path))
}

func TestApplyFileAllOrNothing(t *testing.T) {
	orig := "first anchor\nsecond\n"
	path := writeTarget(t, orig)
	plan := Plan{Directives: []Directive{
		{Needle: "first anchor", Replacement: "changed"},
		{Needle: "absent anchor", Replacement: "x"},
	}}

	res, err := ApplyFile(context.Background(), path, plan, testOptions(t))
	require.ErrorIs(t, err, ErrPreconditionNotMet)
	require.NotNil(t, res)
	assert.False(t, res.Written)
	assert.Len(t, res.Steps, 1)
	assert.Equal(t, orig, readFile(t, path))
}

func TestApplyFileEmptyPlanLeavesFileIdentical(t *testing.T) {
	orig := "x\r\ny"
	path := writeTarget(t, orig)
	before, err := os.Stat(path)
	require.NoError(t, err)

	res, err := ApplyFile(context.Background(), path, Plan{}, testOptions(t))
	require.NoError(t, err)
	assert.False(t, res.Written)
	assert.Equal(t, orig, readFile(t, path))

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, os.SameFile(before, after), "unchanged content must not be rewritten")
}

func TestApplyFileMissingTarget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.dart")
	plan := Plan{Directives: []Directive{{Needle: "a", Replacement: "b"}}}

	res, err := ApplyFile(context.Background(), path, plan, testOptions(t))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	var ioe *IOError
	require.True(t, errors.As(err, &ioe))
	assert.Equal(t, "read", ioe.Op)
}

func TestApplyFileInvalidPlanBeforeIO(t *testing.T) {
	// The target does not exist: a config error must win over the I/O error.
	path := filepath.Join(t.TempDir(), "nope.dart")
	plan := Plan{Directives: []Directive{{Needle: ""}}}

	_, err := ApplyFile(context.Background(), path, plan, testOptions(t))
	assert.ErrorIs(t, err, ErrInvalidPlan)
	assert.NotErrorIs(t, err, fs.ErrNotExist)
}

func TestApplyFileDryRun(t *testing.T) {
	path := writeTarget(t, "old")
	plan := Plan{Directives: []Directive{{Needle: "old", Replacement: "new"}}}
	opts := testOptions(t)
	opts.DryRun = true

	res, err := ApplyFile(context.Background(), path, plan, opts)
	require.NoError(t, err)
	assert.False(t, res.Written)
	assert.Equal(t, "new", res.After)
	assert.Equal(t, "old", readFile(t, path))
}

func TestApplyFileBackup(t *testing.T) {
	path := writeTarget(t, "old\n")
	plan := Plan{Directives: []Directive{{Needle: "old", Replacement: "new"}}}
	opts := testOptions(t)
	opts.Backup = true

	res, err := ApplyFile(context.Background(), path, plan, opts)
	require.NoError(t, err)
	assert.Equal(t, path+".orig", res.BackupPath)
	assert.Equal(t, "old\n", readFile(t, res.BackupPath))
	assert.Equal(t, "new\n", readFile(t, path))
}

func TestApplyFilePreservesMode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permission bits")
	}
	path := writeTarget(t, "#!/bin/sh\necho old\n")
	require.NoError(t, os.Chmod(path, 0755))
	plan := Plan{Directives: []Directive{{Needle: "old", Replacement: "new"}}}

	_, err := ApplyFile(context.Background(), path, plan, testOptions(t))
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, fs.FileMode(0755), info.Mode().Perm())
}

func TestApplyFileRoundTrip(t *testing.T) {
	orig := "trackedDuration: _currentTrackedDuration(task),\n"
	path := writeTarget(t, orig)
	plan := Plan{Directives: []Directive{{
		Needle:      "trackedDuration: _currentTrackedDuration(task),\n",
		Replacement: "trackedDuration: _currentTrackedDuration(task),\n    lateTrackedDuration: task.lateTrackedDuration,\n",
	}}}
	opts := testOptions(t)

	_, err := ApplyFile(context.Background(), path, plan, opts)
	require.NoError(t, err)
	require.NotEqual(t, orig, readFile(t, path))

	inv, err := plan.Inverse()
	require.NoError(t, err)
	_, err = ApplyFile(context.Background(), path, inv, opts)
	require.NoError(t, err)
	assert.Equal(t, orig, readFile(t, path))
}

func TestApplyFileLockContention(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" && runtime.GOOS != "windows" {
		t.Skip("no advisory locking on this platform")
	}
	path := writeTarget(t, "old")
	opts := testOptions(t)

	held, err := filelock.Acquire(context.Background(), opts.LockDir, path)
	require.NoError(t, err)
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	plan := Plan{Directives: []Directive{{Needle: "old", Replacement: "new"}}}
	_, err = ApplyFile(ctx, path, plan, opts)
	require.ErrorIs(t, err, filelock.ErrTimeout)
	assert.Equal(t, "old", readFile(t, path))

	opts.NoLock = true
	_, err = ApplyFile(context.Background(), path, plan, opts)
	require.NoError(t, err)
	assert.Equal(t, "new", readFile(t, path))
}

func TestLoadDirectory(t *testing.T) {
	_, err := Load(t.TempDir())
	var ioe *IOError
	require.True(t, errors.As(err, &ioe))
	assert.Equal(t, "read", ioe.Op)
}

func TestApplyFileLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	path := writeTarget(t, "x")
	plan := Plan{Name: "swap", Directives: []Directive{{Name: "x to y", Needle: "x", Replacement: "y"}}}

	opts := testOptions(t)
	opts.Logger = zap.New(core)
	_, err := ApplyFile(context.Background(), path, plan, opts)
	require.NoError(t, err)

	applied := logs.FilterMessage("directive applied").All()
	require.Len(t, applied, 1)
	assert.Equal(t, "x to y", applied[0].ContextMap()["name"])

	patched := logs.FilterMessage("patched").All()
	require.Len(t, patched, 1)
	assert.Equal(t, zapcore.InfoLevel, patched[0].Level)
	assert.Equal(t, path, patched[0].ContextMap()["target"])
}

func TestApplyFileThroughSymlink(t *testing.T) {
	dir := t.TempDir()
	realPath := filepath.Join(dir, "real.txt")
	require.NoError(t, os.WriteFile(realPath, []byte("old"), 0644))
	link := filepath.Join(dir, "link.txt")
	if err := os.Symlink(realPath, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	opts := testOptions(t)
	opts.Backup = true
	plan := Plan{Directives: []Directive{{Needle: "old", Replacement: "new"}}}
	res, err := ApplyFile(context.Background(), link, plan, opts)
	require.NoError(t, err)
	assert.True(t, res.Written)
	assert.Equal(t, link, res.Path)

	assert.Equal(t, "new", readFile(t, realPath))
	info, err := os.Lstat(link)
	require.NoError(t, err)
	assert.True(t, info.Mode()&os.ModeSymlink != 0, "link was replaced by a regular file")
	assert.Equal(t, "new", readFile(t, link))

	// The backup sits next to the real file.
	assert.Equal(t, "old", readFile(t, realPath+".orig"))
}

func TestApplyFileDanglingSymlink(t *testing.T) {
	dir := t.TempDir()
	link := filepath.Join(dir, "link.txt")
	if err := os.Symlink(filepath.Join(dir, "gone.txt"), link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	plan := Plan{Directives: []Directive{{Needle: "old", Replacement: "new"}}}
	_, err := ApplyFile(context.Background(), link, plan, testOptions(t))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}
