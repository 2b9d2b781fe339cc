package location

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

const (
	fileScheme    = "file"
	archiveScheme = "jar"

	// archiveSeparator splits an archive URI into the archive file and the entry path.
	archiveSeparator = "!/"
)

// ArchiveSuffixes lists the file suffixes that are treated as archive bundles.
var ArchiveSuffixes = []string{".jar"}

// Kind tells how the bytes behind a Location are obtained.
type Kind uint8

const (
	KindFile Kind = iota + 1
	KindArchive
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindArchive:
		return "archive"
	default:
		return "unknown"
	}
}

// Location identifies where compiled modules come from. It is a comparable
// value: two locations are equal iff their normalized URIs are equal, so it
// can be used directly as a map key.
type Location struct {
	kind  Kind
	path  string // cleaned, slash-separated filesystem path of the file or archive
	entry string // entry prefix inside the archive, without a leading slash
}

// Parse classifies an address as filesystem- or archive-backed.
// Accepted forms are file: URIs, jar:file:<path>!/<entry> URIs and bare
// filesystem paths. Bare paths and file: URIs ending in an archive suffix are
// wrapped into an archive root automatically.
func Parse(raw string) (Location, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Location{}, &UnsupportedLocationError{Raw: raw, Reason: "empty address"}
	}

	if strings.HasPrefix(raw, archiveScheme+":") {
		return parseArchiveURI(raw)
	}

	if u, err := url.Parse(raw); err == nil && isScheme(u.Scheme) {
		if u.Scheme != fileScheme {
			return Location{}, &UnsupportedLocationError{Raw: raw, Scheme: u.Scheme}
		}
		p := u.Path
		if p == "" {
			p = u.Opaque
		}
		if p == "" {
			return Location{}, &UnsupportedLocationError{Raw: raw, Scheme: u.Scheme, Reason: "missing path"}
		}
		return fromPath(absPath(p)), nil
	}

	abs, err := filepath.Abs(raw)
	if err != nil {
		return Location{}, fmt.Errorf("resolve path %s: %w", raw, err)
	}
	return fromPath(abs), nil
}

// MustParse is Parse for addresses known to be valid, e.g. in tests.
func MustParse(raw string) Location {
	l, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return l
}

// OfPath returns the location of a filesystem path. Archive files are
// wrapped into an archive root.
func OfPath(p string) Location {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return fromPath(p)
}

// OfArchive returns the root of an archive bundle regardless of its suffix.
func OfArchive(p string) Location {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	return archiveAt(p, "")
}

func parseArchiveURI(raw string) (Location, error) {
	rest := strings.TrimPrefix(raw, archiveScheme+":")
	idx := strings.Index(rest, archiveSeparator)
	if idx < 0 {
		return Location{}, &UnsupportedLocationError{Raw: raw, Scheme: archiveScheme, Reason: "missing " + archiveSeparator + " separator"}
	}
	inner, entry := rest[:idx], rest[idx+len(archiveSeparator):]

	u, err := url.Parse(inner)
	if err != nil || u.Scheme != fileScheme {
		return Location{}, &UnsupportedLocationError{Raw: raw, Scheme: archiveScheme, Reason: "archive must be a file: URI"}
	}
	p := u.Path
	if p == "" {
		p = u.Opaque
	}
	return archiveAt(absPath(p), entry), nil
}

// isScheme filters out Windows drive letters, which url.Parse reports as schemes.
func isScheme(s string) bool {
	return len(s) > 1
}

// absPath resolves a relative URI path against the working directory.
func absPath(p string) string {
	if path.IsAbs(p) {
		return p
	}
	if abs, err := filepath.Abs(filepath.FromSlash(p)); err == nil {
		return abs
	}
	return p
}

func fromPath(p string) Location {
	if hasArchiveSuffix(p) {
		return archiveAt(p, "")
	}
	return Location{kind: KindFile, path: cleanPath(p)}
}

func archiveAt(p, entry string) Location {
	entry = strings.TrimPrefix(path.Clean("/"+entry), "/")
	return Location{kind: KindArchive, path: cleanPath(p), entry: entry}
}

func cleanPath(p string) string {
	return path.Clean(filepath.ToSlash(p))
}

func hasArchiveSuffix(p string) bool {
	lower := strings.ToLower(p)
	for _, suffix := range ArchiveSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// Kind reports whether the location is filesystem- or archive-backed.
func (l Location) Kind() Kind { return l.kind }

// IsArchive reports whether the bytes live inside an archive bundle.
func (l Location) IsArchive() bool { return l.kind == KindArchive }

// IsZero reports whether l is the zero Location.
func (l Location) IsZero() bool { return l.kind == 0 }

// Path is the filesystem path of the file, directory or archive.
func (l Location) Path() string { return filepath.FromSlash(l.path) }

// Entry is the path inside the archive; empty for filesystem locations and archive roots.
func (l Location) Entry() string { return l.entry }

// URI returns the normalized address. Directories render without a
// trailing slash; entries found beneath them carry the directory name
// followed by "/", so Contains("/classes/") matches every class file in a
// "classes" directory.
func (l Location) URI() string {
	fileURI := (&url.URL{Scheme: fileScheme, Path: l.path}).String()
	if l.kind == KindArchive {
		return archiveScheme + ":" + fileURI + archiveSeparator + l.entry
	}
	return fileURI
}

// Contains is a plain substring check over the normalized address.
func (l Location) Contains(part string) bool {
	return strings.Contains(l.URI(), part)
}

// Child returns the location of an entry nested under an archive location.
func (l Location) Child(name string) Location {
	if l.kind != KindArchive {
		return fromPath(path.Join(l.path, name))
	}
	return archiveAt(l.path, name)
}

func (l Location) String() string {
	return "Location{uri=" + l.URI() + "}"
}
