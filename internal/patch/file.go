package patch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/Mavwarf/anchorpatch/internal/filelock"
	"github.com/Mavwarf/anchorpatch/internal/paths"
)

// DefaultLockTimeout bounds how long ApplyFile waits for a concurrent run
// on the same target when the context carries no deadline.
const DefaultLockTimeout = 10 * time.Second

// Document is the loaded target file.
type Document struct {
	Path    string
	Content string
	Mode    fs.FileMode
}

// Load reads the whole file at path.
func Load(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	if info.IsDir() {
		return nil, &IOError{Op: "read", Path: path, Err: fmt.Errorf("is a directory")}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	return &Document{Path: path, Content: string(data), Mode: info.Mode().Perm()}, nil
}

// Save persists content over the document's path with an atomic rename.
// With backup set, the loaded content is first written to path.orig.
func (d *Document) Save(content string, backup bool) (backupPath string, err error) {
	if backup {
		backupPath = paths.BackupPath(d.Path)
		if err := paths.AtomicWrite(backupPath, []byte(d.Content), d.Mode); err != nil {
			return "", &IOError{Op: "backup", Path: backupPath, Err: err}
		}
	}
	if err := paths.AtomicWrite(d.Path, []byte(content), d.Mode); err != nil {
		return backupPath, &IOError{Op: "write", Path: d.Path, Err: err}
	}
	return backupPath, nil
}

// Options controls ApplyFile.
type Options struct {
	DryRun  bool // run every check but never write
	Backup  bool // keep the pre-patch content in path.orig
	NoLock  bool // skip the advisory lock
	LockDir string
	Logger  *zap.Logger
}

// Result describes a finished run.
type Result struct {
	Path       string
	Plan       string
	Steps      []StepResult
	Before     string
	After      string
	Written    bool
	BackupPath string
}

// Changed reports whether the plan altered the content.
func (r *Result) Changed() bool {
	return r.Before != r.After
}

// Replacements is the total number of substitutions across all steps.
func (r *Result) Replacements() int {
	n := 0
	for _, s := range r.Steps {
		n += s.Replacements
	}
	return n
}

// ApplyFile loads path, applies plan and, if every directive's needle was
// found, writes the result back atomically. The file on disk is either
// left untouched or carries the effect of the whole plan.
//
// Unchanged content is not rewritten. The returned Result is non-nil
// whenever the file was loaded, including on a precondition failure, so
// callers can report partial progress.
func ApplyFile(ctx context.Context, path string, plan Plan, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("target", path), zap.String("plan", plan.Name))

	if err := plan.Validate(); err != nil {
		return nil, err
	}

	// Work on the file a symlink points to; renaming over the link would
	// replace it with a regular file and leave the real target unpatched.
	resolvedPath := path
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		resolvedPath = resolved
		if resolvedPath != filepath.Clean(path) {
			log = log.With(zap.String("resolved", resolvedPath))
		}
	}

	if !opts.NoLock && !opts.DryRun {
		lockDir := opts.LockDir
		if lockDir == "" {
			lockDir = filepath.Join(paths.DataDir(), paths.LockDirName)
		}
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, DefaultLockTimeout)
			defer cancel()
		}
		lock, err := filelock.Acquire(ctx, lockDir, resolvedPath)
		if err != nil {
			return nil, &IOError{Op: "lock", Path: path, Err: err}
		}
		defer func() {
			if err := lock.Release(); err != nil {
				log.Warn("release lock", zap.Error(err))
			}
		}()
		log.Debug("lock acquired", zap.String("lock", lock.Path()))
	}

	doc, err := Load(resolvedPath)
	if err != nil {
		return nil, err
	}
	log.Debug("loaded", zap.Int("bytes", len(doc.Content)), zap.Int("directives", len(plan.Directives)))

	after, steps, err := Apply(doc.Content, plan)
	res := &Result{Path: path, Plan: plan.Name, Steps: steps, Before: doc.Content, After: after}
	for _, s := range steps {
		log.Debug("directive applied",
			zap.Int("index", s.Index+1),
			zap.String("name", s.Name),
			zap.Stringer("occurrence", s.Occurrence),
			zap.Int("replacements", s.Replacements),
			zap.Bool("skipped", s.Skipped))
	}
	if err != nil {
		log.Debug("plan aborted", zap.Error(err))
		return res, err
	}

	if opts.DryRun || !res.Changed() {
		return res, nil
	}

	backupPath, err := doc.Save(after, opts.Backup)
	res.BackupPath = backupPath
	if err != nil {
		return res, err
	}
	res.Written = true
	log.Info("patched",
		zap.Int("replacements", res.Replacements()),
		zap.Int("bytes", len(after)))
	return res, nil
}
