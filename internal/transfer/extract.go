package transfer

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// extractZip unpacks the archive at path into destDir and returns the
// paths of the extracted files. Directory entries are skipped and nested
// paths are flattened to their base name; member names that would escape
// destDir are rejected. The archive itself is not removed here.
func extractZip(path, destDir string) ([]string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer reader.Close()

	var extracted []string
	for _, member := range reader.File {
		if member.FileInfo().IsDir() {
			continue
		}

		name := filepath.Base(member.Name)
		if name == "." || name == ".." || strings.Contains(member.Name, "..") {
			return extracted, fmt.Errorf("archive member %q escapes staging", member.Name)
		}

		dest := filepath.Join(destDir, name)
		if err := extractMember(member, dest); err != nil {
			return extracted, fmt.Errorf("extract %q: %w", member.Name, err)
		}
		extracted = append(extracted, dest)
	}

	return extracted, nil
}

func extractMember(member *zip.File, dest string) error {
	src, err := member.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}

	return out.Close()
}
