package hashdir

import (
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"

	"lukechampine.com/blake3"
)

// digestSize is the BLAKE3 output length in bytes.
const digestSize = 32

// Hash returns the hex BLAKE3 digest of all regular file contents under dir.
//
// Files are fed to the hasher in lexical order of their slash-separated
// relative paths, so the result is independent of directory iteration order
// and stable across platforms. Only contents contribute: file names, modes
// and timestamps are not hashed, matching the "same ports, same identity"
// contract.
func Hash(dir string) (string, error) {
	h := blake3.New(digestSize, nil)

	fsys := os.DirFS(dir)

	// fs.WalkDir visits entries in lexical order, which is all the
	// determinism we need.
	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			return nil
		}

		f, err := fsys.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}

		defer func() {
			_ = f.Close()
		}()

		if _, err = io.Copy(h, f); err != nil {
			return fmt.Errorf("hash %s: %w", path, err)
		}

		return nil
	})
	if err != nil {
		return "", fmt.Errorf("hash directory %s: %w", dir, err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
