package fetch

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/ulikunitz/xz"
)

var errUnsafeArchivePath = errors.New("archive entry escapes destination")

// extractTar unpacks a tar archive, transparently decompressing by extension.
func extractTar(archivePath, dest string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", archivePath, err)
	}

	defer func() {
		_ = f.Close()
	}()

	var reader io.Reader = f

	name := strings.ToLower(filepath.Base(archivePath))

	switch {
	case strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz"):
		gz, gzErr := pgzip.NewReader(f)
		if gzErr != nil {
			return fmt.Errorf("gzip reader for %s: %w", archivePath, gzErr)
		}

		defer func() {
			_ = gz.Close()
		}()

		reader = gz
	case strings.HasSuffix(name, ".tar.bz2"):
		reader = bzip2.NewReader(f)
	case strings.HasSuffix(name, ".tar.xz"):
		xzReader, xzErr := xz.NewReader(f)
		if xzErr != nil {
			return fmt.Errorf("xz reader for %s: %w", archivePath, xzErr)
		}

		reader = xzReader
	case strings.HasSuffix(name, ".tar.zst"):
		zstReader, zstErr := zstd.NewReader(f)
		if zstErr != nil {
			return fmt.Errorf("zstd reader for %s: %w", archivePath, zstErr)
		}

		defer zstReader.Close()

		reader = zstReader
	case strings.HasSuffix(name, ".tar"):
		// No compression.
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedArchive, name)
	}

	tarReader := tar.NewReader(reader)

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("read tar header in %s: %w", archivePath, err)
		}

		target, err := secureJoin(dest, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err = os.MkdirAll(target, os.FileMode(header.Mode)); err != nil {
				return fmt.Errorf("create dir %s: %w", target, err)
			}
		case tar.TypeReg:
			if err = writeEntry(target, tarReader, os.FileMode(header.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err = os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create parent of %s: %w", target, err)
			}

			if err = os.Symlink(header.Linkname, target); err != nil && !os.IsExist(err) {
				return fmt.Errorf("symlink %s -> %s: %w", target, header.Linkname, err)
			}
		default:
			// Extended headers and exotic entry types are skipped.
		}
	}
}

// extractZip unpacks a zip archive into dest.
func extractZip(archivePath, dest string) error {
	zipReader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive %s: %w", archivePath, err)
	}

	defer func() {
		_ = zipReader.Close()
	}()

	for _, entry := range zipReader.File {
		target, err := secureJoin(dest, entry.Name)
		if err != nil {
			return err
		}

		if entry.FileInfo().IsDir() {
			if err = os.MkdirAll(target, entry.Mode()); err != nil {
				return fmt.Errorf("create dir %s: %w", target, err)
			}

			continue
		}

		contents, err := entry.Open()
		if err != nil {
			return fmt.Errorf("open entry %s: %w", entry.Name, err)
		}

		err = writeEntry(target, contents, entry.Mode())

		_ = contents.Close()

		if err != nil {
			return err
		}
	}

	return nil
}

// writeEntry creates the parent directory and streams one archive entry to disk.
func writeEntry(target string, contents io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", target, err)
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}

	if _, err = io.Copy(out, contents); err != nil {
		_ = out.Close()

		return fmt.Errorf("write %s: %w", target, err)
	}

	return out.Close()
}

// secureJoin joins an archive entry name onto dest, rejecting entries that
// would escape it.
func secureJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))

	cleanDest := filepath.Clean(dest)
	if target != cleanDest && !strings.HasPrefix(target, cleanDest+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %s", errUnsafeArchivePath, name)
	}

	return target, nil
}
