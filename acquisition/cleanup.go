package acquisition

import (
	"os"
	"path/filepath"

	"github.com/nijaru/clipzaar/models"
	"github.com/pkg/errors"
)

// Cleanup removes an asset's audio file and its scratch directory. Missing
// files are not an error. Directories that cannot be a per-download scratch
// directory (filesystem root, the system temp dir, the working directory)
// are never removed wholesale.
func Cleanup(asset models.AudioAsset) error {
	if asset.Path == "" {
		return nil
	}

	if err := os.Remove(asset.Path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove audio file %s", asset.Path)
	}

	dir := asset.Dir()
	if !isScratchDir(dir) {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return errors.Wrapf(err, "remove scratch dir %s", dir)
	}
	return nil
}

func isScratchDir(dir string) bool {
	if dir == "" {
		return false
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	if abs == filepath.Dir(abs) {
		return false
	}
	if tmp, err := filepath.Abs(os.TempDir()); err == nil && abs == tmp {
		return false
	}
	if wd, err := os.Getwd(); err == nil && abs == wd {
		return false
	}
	if home, err := os.UserHomeDir(); err == nil && abs == home {
		return false
	}
	return true
}
