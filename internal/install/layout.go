package install

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

// Layout is the structural shape of an extracted package archive.
//
//	DIRECT        NESTED            NESTED_ENV
//	pkg/          pkg/              pkg/
//	├── a.dll     └── Plugin/       └── Plugin/
//	└── ...           ├── a.dll         ├── win/
//	                  └── ...           └── osx/
type Layout int

const (
	LayoutDirect Layout = iota
	LayoutNested
	LayoutNestedEnv
)

func (l Layout) String() string {
	switch l {
	case LayoutDirect:
		return "DIRECT"
	case LayoutNested:
		return "NESTED"
	case LayoutNestedEnv:
		return "NESTED_ENV"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// Platform tags naming the per-platform directories of a NESTED_ENV archive.
const (
	PlatformWindows = "win"
	PlatformMac     = "osx"
)

// ErrNoPlatformMatch is returned when a NESTED_ENV archive has no directory
// for the running platform.
var ErrNoPlatformMatch = errors.New("no directory matches the current platform")

// CurrentPlatform returns the platform tag of the running OS, or "" when the
// OS has no tag.
func CurrentPlatform() string {
	switch runtime.GOOS {
	case "windows":
		return PlatformWindows
	case "darwin":
		return PlatformMac
	default:
		return ""
	}
}

func isPlatformTag(name string) bool {
	return name == PlatformWindows || name == PlatformMac
}

// Classify infers the layout of the tree rooted at fsys. A single top-level
// directory makes the layout NESTED, or NESTED_ENV if that directory has a
// child named after a platform tag. Anything else is DIRECT.
func Classify(fsys fs.FS) (Layout, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return LayoutDirect, fmt.Errorf("reading archive root: %w", err)
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return LayoutDirect, nil
	}

	inner, err := fs.ReadDir(fsys, entries[0].Name())
	if err != nil {
		return LayoutDirect, fmt.Errorf("reading %s: %w", entries[0].Name(), err)
	}
	for _, e := range inner {
		if isPlatformTag(e.Name()) {
			return LayoutNestedEnv, nil
		}
	}
	return LayoutNested, nil
}

// ClassifyDir classifies an extracted directory on disk.
func ClassifyDir(dir string) (Layout, error) {
	return Classify(os.DirFS(dir))
}

// ResolveSource returns the directory whose contents get installed for a
// root classified as layout.
func ResolveSource(root string, layout Layout, platform string) (string, error) {
	if layout == LayoutDirect {
		return root, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", root, err)
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return "", fmt.Errorf("%s is not a %s archive", root, layout)
	}
	inner := filepath.Join(root, entries[0].Name())

	switch layout {
	case LayoutNested:
		return inner, nil
	case LayoutNestedEnv:
		if platform == "" {
			return "", fmt.Errorf("%w: platform %s has no tag", ErrNoPlatformMatch, runtime.GOOS)
		}
		src := filepath.Join(inner, platform)
		info, err := os.Stat(src)
		if err != nil || !info.IsDir() {
			return "", fmt.Errorf("%w: %s", ErrNoPlatformMatch, platform)
		}
		return src, nil
	default:
		return "", fmt.Errorf("unknown layout %s", layout)
	}
}
