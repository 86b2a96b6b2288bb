package install

import (
	"archive/zip"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

type zipEntry struct {
	name string
	body string
	mode fs.FileMode
}

// writeZip creates a zip archive at path from entries. Names ending in "/"
// become directory entries.
func writeZip(t *testing.T, path string, entries ...zipEntry) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		if e.mode != 0 {
			hdr.SetMode(e.mode)
		}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(e.body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestUnzip(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "a.owlpack")
	writeZip(t, archive,
		zipEntry{name: "Plugin/"},
		zipEntry{name: "Plugin/empty/"},
		zipEntry{name: "Plugin/synth.dll", body: "binary"},
		zipEntry{name: "Plugin/run.sh", body: "#!/bin/sh", mode: 0o755},
	)

	dest := filepath.Join(t.TempDir(), "temp-a")
	n, err := Unzip(archive, dest)
	if err != nil {
		t.Fatalf("Unzip() error: %v", err)
	}
	if n != 2 {
		t.Errorf("Unzip() = %d files, want 2", n)
	}

	data, err := os.ReadFile(filepath.Join(dest, "Plugin", "synth.dll"))
	if err != nil || string(data) != "binary" {
		t.Errorf("synth.dll = %q, %v", data, err)
	}
	if info, err := os.Stat(filepath.Join(dest, "Plugin", "empty")); err != nil || !info.IsDir() {
		t.Error("empty directory entry not created")
	}
	if info, err := os.Stat(filepath.Join(dest, "Plugin", "run.sh")); err != nil || info.Mode().Perm() != 0o755 {
		t.Errorf("run.sh mode = %v, %v", info.Mode(), err)
	}
}

func TestUnzipRejectsTraversal(t *testing.T) {
	for _, name := range []string{"../evil.dll", "Plugin/../../evil.dll", "/etc/evil", `..\evil.dll`} {
		t.Run(name, func(t *testing.T) {
			tmp := t.TempDir()
			archive := filepath.Join(tmp, "evil.owlpack")
			writeZip(t, archive, zipEntry{name: name, body: "x"})

			dest := filepath.Join(tmp, "out")
			if _, err := Unzip(archive, dest); err == nil {
				t.Fatal("expected error for traversal entry")
			}
			if _, err := os.Stat(filepath.Join(tmp, "evil.dll")); !os.IsNotExist(err) {
				t.Error("traversal entry written outside destination")
			}
		})
	}
}

func TestUnzipSymlinks(t *testing.T) {
	tmp := t.TempDir()
	archive := filepath.Join(tmp, "bundle.owlpack")
	writeZip(t, archive,
		zipEntry{name: "Synth.vst/Contents/Versions/A/Synth", body: "bin"},
		zipEntry{name: "Synth.vst/Contents/Versions/Current", body: "A", mode: fs.ModeSymlink | 0o777},
	)

	dest := filepath.Join(tmp, "out")
	if _, err := Unzip(archive, dest); err != nil {
		t.Fatalf("Unzip() error: %v", err)
	}
	target, err := os.Readlink(filepath.Join(dest, "Synth.vst", "Contents", "Versions", "Current"))
	if err != nil || target != "A" {
		t.Errorf("Readlink() = %q, %v", target, err)
	}

	escaping := filepath.Join(tmp, "escape.owlpack")
	writeZip(t, escaping, zipEntry{name: "link", body: "../../outside", mode: fs.ModeSymlink | 0o777})
	if _, err := Unzip(escaping, filepath.Join(tmp, "out2")); err == nil {
		t.Error("expected error for escaping symlink")
	}
}

func TestUnzipSymlinkChains(t *testing.T) {
	link := fs.ModeSymlink | 0o777
	tests := []struct {
		name    string
		entries []zipEntry
		outside string
	}{
		{
			name: "write through extracted link",
			entries: []zipEntry{
				{name: "d/keep", body: "keep"},
				{name: "a/b/x", body: "../../d", mode: link},
				{name: "a/b/x/l", body: "../..", mode: link},
				{name: "a/b/x/l/evil.txt", body: "pwned"},
			},
			outside: "evil.txt",
		},
		{
			name: "link resolving outside through another link",
			entries: []zipEntry{
				{name: "d/keep", body: "keep"},
				{name: "a/b/x", body: "../../d", mode: link},
				{name: "z", body: "a/b/x/../..", mode: link},
			},
		},
		{
			name: "file entry replacing a link",
			entries: []zipEntry{
				{name: "d/keep", body: "keep"},
				{name: "a/b/x", body: "../../d", mode: link},
				{name: "a/b/x", body: "pwned"},
			},
		},
		{
			name: "dangling link",
			entries: []zipEntry{
				{name: "Current", body: "Missing", mode: link},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmp := t.TempDir()
			archive := filepath.Join(tmp, "chain.owlpack")
			writeZip(t, archive, tt.entries...)

			dest := filepath.Join(tmp, "work", "out")
			if _, err := Unzip(archive, dest); err == nil {
				t.Fatal("expected error for unsafe link chain")
			}
			if tt.outside != "" {
				for _, dir := range []string{tmp, filepath.Join(tmp, "work")} {
					if _, err := os.Lstat(filepath.Join(dir, tt.outside)); err == nil {
						t.Errorf("%s written outside the destination", filepath.Join(dir, tt.outside))
					}
				}
			}
		})
	}
}

func TestUnzipCorrupt(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "corrupt.owlpack")
	if err := os.WriteFile(archive, []byte("this is not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Unzip(archive, t.TempDir()); err == nil {
		t.Fatal("expected error for corrupt archive")
	}
}
