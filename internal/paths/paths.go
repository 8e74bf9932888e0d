package paths

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	AppDirName      = "anchorpatch"
	ConfigFileName  = "anchorpatch-config.json"
	JournalFileName = "journal.log"
	JournalDBName   = "journal.db"
	LockDirName     = "locks"
	BackupSuffix    = ".orig"
	DirPerm         = 0755
	FilePerm        = 0644
)

// AtomicWrite writes data to path via a temporary file in the same
// directory followed by a rename, so readers never observe a partially
// written file. The temporary file is synced and given mode perm before
// the rename. On any failure the temporary file is removed and path is
// left as it was.
func AtomicWrite(path string, data []byte, perm fs.FileMode) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPerm); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Chmod(perm); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s → %s: %w", tmpName, path, err)
	}
	return nil
}

// BackupPath returns the location of the pre-patch copy of path.
func BackupPath(path string) string {
	return path + BackupSuffix
}

// LockPath returns the lock file used to serialize runs against target.
// Lock files are keyed by the absolute, symlink-free target path and kept
// under dir rather than next to the target.
func LockPath(dir, target string) string {
	abs, err := filepath.Abs(target)
	if err != nil {
		abs = target
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(dir, hex.EncodeToString(sum[:16])+".lock")
}

// DataDir returns the platform-specific data directory for anchorpatch:
//   - Windows: %APPDATA%\anchorpatch
//   - Unix:    ~/.config/anchorpatch
//
// Falls back to os.TempDir()/anchorpatch if neither is available.
func DataDir() string {
	if appdata := os.Getenv("APPDATA"); appdata != "" {
		return filepath.Join(appdata, AppDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), AppDirName)
	}
	return filepath.Join(home, ".config", AppDirName)
}
