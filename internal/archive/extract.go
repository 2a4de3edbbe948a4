// Package archive unpacks the gzip tar bundles the SnowPilot export
// endpoint serves, one CAAML document per member.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Extract unpacks the archive at archivePath into destDir and deletes the
// archive afterwards, since the export endpoint generates a fresh bundle
// per query and the tarball has no value once its members are on disk.
//
// The returned paths are the extracted CAAML documents in archive order,
// which is the order the server assembled them in. Member names that would
// escape destDir fail the whole extraction.
func Extract(archivePath, destDir string) ([]string, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create destination: %w", err)
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("read archive %s: %w", filepath.Base(archivePath), err)
	}
	defer gz.Close()

	var caamlPaths []string
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read archive %s: %w", filepath.Base(archivePath), err)
		}

		target, err := securePath(destDir, hdr.Name)
		if err != nil {
			return nil, err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, fmt.Errorf("create directory: %w", err)
			}
		case tar.TypeReg:
			if err := writeMember(target, tr); err != nil {
				return nil, err
			}
			if IsCAAMLName(hdr.Name) {
				caamlPaths = append(caamlPaths, target)
			}
		}
	}

	f.Close()
	if err := os.Remove(archivePath); err != nil {
		return nil, fmt.Errorf("remove extracted archive: %w", err)
	}
	return caamlPaths, nil
}

// IsCAAMLName reports whether an archive member is a CAAML document by the
// export endpoint's naming convention.
func IsCAAMLName(name string) bool {
	return strings.HasSuffix(name, "caaml.xml")
}

// CountCAAML counts the CAAML documents in an archive stream without
// writing anything to disk. Estimates use this on the raw download bytes.
func CountCAAML(r io.Reader) (int, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("read archive: %w", err)
	}
	defer gz.Close()

	count := 0
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return 0, fmt.Errorf("read archive: %w", err)
		}
		if hdr.Typeflag == tar.TypeReg && IsCAAMLName(hdr.Name) {
			count++
		}
	}
}

func securePath(destDir, name string) (string, error) {
	target := filepath.Join(destDir, filepath.Clean(name))
	base := filepath.Clean(destDir) + string(os.PathSeparator)
	if !strings.HasPrefix(target, base) {
		return "", fmt.Errorf("archive member %q escapes destination directory", name)
	}
	return target, nil
}

func writeMember(target string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create member file: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return fmt.Errorf("write member file: %w", err)
	}
	return out.Close()
}
