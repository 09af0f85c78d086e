package fetch

import (
	"context"
	"crypto"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/vcpkg-tools/vcpkgman/internal/version"

	// Ensure the digest implementations used for archive
	// verification are linked in.
	_ "crypto/md5"
	_ "crypto/sha512"
)

// Kind selects the archive format when the URL extension is ambiguous.
type Kind int

const (
	// KindAuto detects the format from the URL path extension.
	KindAuto Kind = iota
	// KindTar forces tar extraction (optionally compressed).
	KindTar
	// KindZip forces zip extraction.
	KindZip
)

// DefaultChecksumFunction is used to verify downloaded archives unless the
// caller picks another one.
const DefaultChecksumFunction crypto.Hash = crypto.SHA512

// downloadTimeout bounds a single archive download end to end.
const downloadTimeout = 30 * time.Minute

var (
	// ErrChecksumMismatch is returned when a downloaded archive does not match
	// its pinned digest. Extraction never starts in that case.
	ErrChecksumMismatch = errors.New("archive checksum mismatch")
	// ErrUnsupportedArchive is returned for archive formats we cannot unpack.
	ErrUnsupportedArchive = errors.New("unsupported archive format")

	errBadHTTPStatus    = errors.New("unexpected http status")
	errHashUnavailable  = errors.New("hash function unavailable")
	errEmptyDestination = errors.New("destination directory must be provided")
)

// Options tunes a single DownloadAndExtract call.
type Options struct {
	// ExpectedHash is the hex digest the archive must match.
	// Empty disables verification.
	ExpectedHash string
	// Hash selects the digest function; zero means DefaultChecksumFunction.
	Hash crypto.Hash
	// Kind overrides archive format detection.
	Kind Kind
	// Quiet suppresses the progress bar.
	Quiet bool
}

// Func is the collaborator signature the repository manager depends on, so
// tests can substitute the network with a stub.
type Func func(ctx context.Context, rawURL, dest string, opts Options) error

// DownloadAndExtract fetches an archive over HTTP, verifies its digest and
// unpacks it into dest. Verification happens on the complete downloaded file
// before any extraction, so a mismatch leaves dest untouched.
func DownloadAndExtract(ctx context.Context, rawURL, dest string, opts Options) error {
	if dest == "" {
		return errEmptyDestination
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}

	// Query parameters (e.g. object-store version IDs) must not confuse
	// format detection.
	archiveName := path.Base(parsed.Path)

	if err = os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}

	stagingDir, err := os.MkdirTemp("", "vcpkgman-fetch-")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}

	defer func() {
		_ = os.RemoveAll(stagingDir)
	}()

	archivePath := filepath.Join(stagingDir, archiveName)

	if err = download(ctx, rawURL, archivePath, archiveName, opts.Quiet); err != nil {
		return err
	}

	if opts.ExpectedHash != "" {
		if err = verify(archivePath, opts.ExpectedHash, opts.Hash); err != nil {
			return err
		}
	}

	return extract(archivePath, dest, opts.Kind)
}

// download streams the response body into destFile, showing progress unless quiet.
func download(ctx context.Context, rawURL, destFile, archiveName string, quiet bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", version.UserAgent())

	client := &http.Client{Timeout: downloadTimeout}

	response, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", rawURL, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("%s, %s: %w", rawURL, response.Status, errBadHTTPStatus)
	}

	out, err := os.Create(destFile)
	if err != nil {
		return fmt.Errorf("create %s: %w", destFile, err)
	}

	defer func() {
		_ = out.Close()
	}()

	var writer io.Writer = out
	if !quiet {
		bar := progressbar.DefaultBytes(response.ContentLength, "downloading "+archiveName)
		writer = io.MultiWriter(out, bar)
	}

	if _, err = io.Copy(writer, response.Body); err != nil {
		return fmt.Errorf("write %s: %w", destFile, err)
	}

	return nil
}

// verify computes the archive digest and compares it to the pinned value.
func verify(archivePath, expectedHash string, hashFunction crypto.Hash) error {
	if hashFunction == 0 {
		hashFunction = DefaultChecksumFunction
	}

	if !hashFunction.Available() {
		return errHashUnavailable
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", archivePath, err)
	}

	defer func() {
		_ = f.Close()
	}()

	hasher := hashFunction.New()
	if _, err = io.Copy(hasher, f); err != nil {
		return fmt.Errorf("hash %s: %w", archivePath, err)
	}

	actual := hex.EncodeToString(hasher.Sum(nil))
	if !strings.EqualFold(actual, expectedHash) {
		return fmt.Errorf("%w: %s: got %s, want %s",
			ErrChecksumMismatch, filepath.Base(archivePath), actual, expectedHash)
	}

	return nil
}

// extract dispatches on the archive format.
func extract(archivePath, dest string, kind Kind) error {
	if kind == KindAuto {
		kind = detectKind(archivePath)
	}

	switch kind {
	case KindTar:
		return extractTar(archivePath, dest)
	case KindZip:
		return extractZip(archivePath, dest)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedArchive, filepath.Base(archivePath))
	}
}

// detectKind maps a file name to an archive kind, KindAuto meaning unknown.
func detectKind(archivePath string) Kind {
	name := strings.ToLower(filepath.Base(archivePath))

	switch {
	case strings.HasSuffix(name, ".zip"):
		return KindZip
	case strings.HasSuffix(name, ".tar"),
		strings.HasSuffix(name, ".tar.gz"),
		strings.HasSuffix(name, ".tgz"),
		strings.HasSuffix(name, ".tar.bz2"),
		strings.HasSuffix(name, ".tar.xz"),
		strings.HasSuffix(name, ".tar.zst"):
		return KindTar
	default:
		return KindAuto
	}
}
