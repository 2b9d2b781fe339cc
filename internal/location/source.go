package location

import (
	"archive/zip"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// ModuleSuffix is the file suffix of compiled modules.
const ModuleSuffix = ".class"

// Entry is a single compiled module inside a ByteSource.
type Entry struct {
	// Name is the slash-separated path relative to the source root.
	Name string
	// Location addresses this entry on its own.
	Location Location

	open func() (io.ReadCloser, error)
}

// Open returns the entry's bytes. Callers must close the reader.
func (e Entry) Open() (io.ReadCloser, error) {
	rc, err := e.open()
	if err != nil {
		return nil, &LocationIOError{Location: e.Location, Op: "open", Err: err}
	}
	return rc, nil
}

// ReadAll opens the entry and reads it fully.
func (e Entry) ReadAll() ([]byte, error) {
	rc, err := e.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &LocationIOError{Location: e.Location, Op: "read", Err: err}
	}
	return data, nil
}

// ByteSource enumerates the compiled modules reachable from a Location.
type ByteSource interface {
	// Entries lists the modules in name order.
	Entries() ([]Entry, error)
	Close() error
}

// ByteSource opens the provider for l. Archives are opened here; plain files
// and directories are only touched once Entries is called.
func (l Location) ByteSource() (ByteSource, error) {
	switch l.kind {
	case KindFile:
		return &fileSource{root: l}, nil
	case KindArchive:
		rc, err := zip.OpenReader(l.Path())
		if err != nil {
			return nil, &LocationIOError{Location: l, Op: "open archive", Err: err}
		}
		return &archiveSource{root: l, zr: rc}, nil
	default:
		return nil, &UnsupportedLocationError{Raw: l.URI(), Reason: "zero location"}
	}
}

type fileSource struct {
	root Location
}

func (s *fileSource) Entries() ([]Entry, error) {
	rootPath := s.root.Path()
	info, err := os.Stat(rootPath)
	if err != nil {
		return nil, &LocationIOError{Location: s.root, Op: "stat", Err: err}
	}

	if !info.IsDir() {
		if !strings.HasSuffix(info.Name(), ModuleSuffix) {
			return nil, nil
		}
		return []Entry{fileEntry(info.Name(), rootPath)}, nil
	}

	var entries []Entry
	err = filepath.WalkDir(rootPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ModuleSuffix) {
			return nil
		}
		rel, err := filepath.Rel(rootPath, p)
		if err != nil {
			return err
		}
		entries = append(entries, fileEntry(filepath.ToSlash(rel), p))
		return nil
	})
	if err != nil {
		return nil, &LocationIOError{Location: s.root, Op: "walk", Err: err}
	}
	return entries, nil
}

func (s *fileSource) Close() error { return nil }

func fileEntry(name, p string) Entry {
	return Entry{
		Name:     name,
		Location: Location{kind: KindFile, path: cleanPath(p)},
		open: func() (io.ReadCloser, error) {
			return os.Open(p)
		},
	}
}

type archiveSource struct {
	root Location
	zr   *zip.ReadCloser
}

func (s *archiveSource) Entries() ([]Entry, error) {
	prefix := s.root.entry
	var entries []Entry
	for _, f := range s.zr.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, ModuleSuffix) {
			continue
		}
		name := strings.TrimPrefix(path.Clean("/"+f.Name), "/")
		if prefix != "" && name != prefix && !strings.HasPrefix(name, strings.TrimSuffix(prefix, "/")+"/") {
			continue
		}
		zf := f
		entries = append(entries, Entry{
			Name:     name,
			Location: archiveAt(s.root.path, name),
			open:     zf.Open,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (s *archiveSource) Close() error {
	return s.zr.Close()
}
