package deploy

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// extractPackage unpacks a .tar.gz application package into its own
// directory under scratchDir and returns that directory. Entries that would
// escape the target directory are rejected.
func extractPackage(archivePath, scratchDir string) (string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return "", fmt.Errorf("open package: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return "", fmt.Errorf("read package %s: %w", archivePath, err)
	}
	defer gz.Close()

	base := strings.TrimSuffix(filepath.Base(archivePath), ".tar.gz")
	dest := filepath.Join(scratchDir, base)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", err
	}

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read package %s: %w", archivePath, err)
		}

		target, err := securePath(dest, header.Name)
		if err != nil {
			return "", err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return "", err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return "", err
			}
			if err := writeFile(target, tr, header.FileInfo().Mode()); err != nil {
				return "", err
			}
		default:
			// Symlinks and devices have no business in an application package
			return "", fmt.Errorf("package %s: unsupported entry %q", archivePath, header.Name)
		}
	}
	return dest, nil
}

// securePath joins name under dest and rejects traversal outside it
func securePath(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.Clean(name))
	if target != dest && !strings.HasPrefix(target, dest+string(os.PathSeparator)) {
		return "", fmt.Errorf("package entry %q escapes extraction directory", name)
	}
	return target, nil
}

func writeFile(path string, r io.Reader, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
