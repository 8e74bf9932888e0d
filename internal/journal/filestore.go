package journal

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/Mavwarf/anchorpatch/internal/paths"
)

// FileStore implements Store using a flat text file of FormatRun blocks.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore that reads and writes the given file.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Record(run Run) error {
	if err := os.MkdirAll(filepath.Dir(f.path), paths.DirPerm); err != nil {
		return err
	}
	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, paths.FilePerm)
	if err != nil {
		return err
	}
	if _, err := file.WriteString(FormatRun(run)); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func (f *FileStore) Entries(days int) ([]Run, error) {
	content, err := f.ReadContent()
	if err != nil {
		return nil, err
	}
	return FilterRunsByDays(ParseRuns(content), days), nil
}

func (f *FileStore) ReadContent() (string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// Clean drops runs older than DayCutoff(days) by rewriting the file.
// Blocks that do not parse are dropped as well.
func (f *FileStore) Clean(days int) (int, error) {
	content, err := f.ReadContent()
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(content) == "" {
		return 0, nil
	}

	orig := len(SplitBlocks(content))
	kept := FilterRunsByDays(ParseRuns(content), days)
	removed := orig - len(kept)
	if removed == 0 {
		return 0, nil
	}

	if len(kept) == 0 {
		_ = os.Remove(f.path)
		return removed, nil
	}

	var b strings.Builder
	for _, r := range kept {
		b.WriteString(FormatRun(r))
	}
	if err := paths.AtomicWrite(f.path, []byte(b.String()), paths.FilePerm); err != nil {
		return 0, err
	}
	return removed, nil
}

func (f *FileStore) Clear() error {
	err := os.Remove(f.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (f *FileStore) Path() string {
	return f.path
}

// Close is a no-op; the file is opened per write.
func (f *FileStore) Close() error {
	return nil
}
