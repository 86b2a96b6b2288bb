package install

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/owlplug/owlplug-engine/internal/safety"
)

// maxLinkTarget bounds the size of a symlink entry's target.
const maxLinkTarget = 4096

// Unzip extracts the zip archive at archivePath into destDir and returns the
// number of files written. Entry names that would land outside destDir are
// rejected before anything is written for them. No entry is written through
// a link extracted by an earlier entry, and every extracted link must
// resolve inside destDir once extraction ends.
func Unzip(archivePath, destDir string) (int, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, fmt.Errorf("opening archive: %w", err)
	}
	defer zr.Close()

	destDir, err = filepath.Abs(destDir)
	if err != nil {
		return 0, fmt.Errorf("resolving destination: %w", err)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, fmt.Errorf("creating directory: %w", err)
	}

	extracted := 0
	var links []string
	for _, f := range zr.File {
		destPath, err := safety.SafeJoinUnder(destDir, f.Name)
		if err != nil {
			return extracted, fmt.Errorf("unsafe path in archive %q: %w", f.Name, err)
		}
		if err := checkNoLinks(destDir, destPath); err != nil {
			return extracted, fmt.Errorf("unsafe path in archive %q: %w", f.Name, err)
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(destPath, 0o755); err != nil {
				return extracted, fmt.Errorf("creating directory: %w", err)
			}
			continue
		case mode&fs.ModeSymlink != 0:
			if err := extractSymlink(f, destDir, destPath); err != nil {
				return extracted, err
			}
			links = append(links, destPath)
		default:
			if err := extractFile(f, destPath); err != nil {
				return extracted, err
			}
		}
		extracted++
	}

	if err := checkLinksResolveUnder(destDir, links); err != nil {
		return extracted, err
	}
	return extracted, nil
}

// checkNoLinks fails when any existing component of path below root,
// path itself included, is a symlink.
func checkNoLinks(root, path string) error {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return err
	}
	if rel == "." {
		return nil
	}
	cur := root
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		cur = filepath.Join(cur, part)
		info, err := os.Lstat(cur)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("path goes through link %s", cur)
		}
	}
	return nil
}

// checkLinksResolveUnder resolves every link on disk and removes the first
// one that is dangling or lands outside root.
func checkLinksResolveUnder(root string, links []string) error {
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", root, err)
	}
	for _, link := range links {
		resolved, err := filepath.EvalSymlinks(link)
		if err == nil {
			var rel string
			rel, err = filepath.Rel(realRoot, resolved)
			if err == nil && (rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
				err = fmt.Errorf("resolves outside %s", root)
			}
		}
		if err != nil {
			_ = os.Remove(link)
			return fmt.Errorf("unsafe link %s: %w", link, err)
		}
	}
	return nil
}

func extractFile(f *zip.File, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()

	perm := f.Mode().Perm()
	if perm == 0 {
		perm = 0o644
	}
	outFile, err := os.OpenFile(destPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", destPath, err)
	}

	_, err = io.Copy(outFile, safety.LimitReader(rc, int64(f.UncompressedSize64)))
	if closeErr := outFile.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("extracting %s: %w", f.Name, err)
	}
	return nil
}

// extractSymlink recreates a symlink entry whose target stays inside destDir.
// Plugin bundles for macOS carry such links inside their frameworks.
func extractSymlink(f *zip.File, destDir, destPath string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(safety.LimitReader(rc, maxLinkTarget))
	if err != nil {
		return fmt.Errorf("reading link %s: %w", f.Name, err)
	}
	target := string(raw)
	if target == "" || filepath.IsAbs(target) || strings.Contains(target, `\`) {
		return fmt.Errorf("unsafe link target in archive %q: %q", f.Name, target)
	}

	relFromRoot, err := filepath.Rel(destDir, filepath.Join(filepath.Dir(destPath), target))
	if err != nil {
		return fmt.Errorf("unsafe link target in archive %q: %w", f.Name, err)
	}
	if _, err := safety.SafeJoinUnder(destDir, relFromRoot); err != nil {
		return fmt.Errorf("unsafe link target in archive %q: %w", f.Name, err)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.Symlink(target, destPath); err != nil {
		return fmt.Errorf("creating link %s: %w", destPath, err)
	}
	return nil
}
