//go:build windows

package ops

import (
	"os"

	"github.com/hpungsan/cohesion/internal/errors"
)

// openFileNoFollowRead opens an import document for reading.
// On Windows, O_NOFOLLOW is not available, so symlinks are rejected via Lstat.
func openFileNoFollowRead(path string) (*os.File, error) {
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errors.NewInvalidRequest("cannot read from symlink")
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound("file", path)
		}
		return nil, errors.NewInternal(err)
	}
	return f, nil
}
