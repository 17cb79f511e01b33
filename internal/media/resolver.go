// Package media maps request paths onto files below a fixed root directory.
package media

import (
	"errors"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go2tv.app/go2tv/v2/utils"
	"go2tv.app/sonosbox/internal/domain"
)

var audioExtensions = map[string]struct{}{
	".mp3":  {},
	".mp4":  {},
	".m4a":  {},
	".wma":  {},
	".aac":  {},
	".ogg":  {},
	".flac": {},
	".alac": {},
	".aiff": {},
	".wav":  {},
}

// AllowedAudio reports whether name has a servable audio extension. The
// comparison ignores case.
func AllowedAudio(name string) bool {
	_, ok := audioExtensions[strings.ToLower(filepath.Ext(name))]
	return ok
}

var errNotFound = domain.NewError(domain.CodeNotFound, "not found")

type Resolver struct {
	root string
	// resolvedRoot is root with symlinks evaluated, used to check targets.
	resolvedRoot string
}

func NewResolver(root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	abs = filepath.Clean(abs)
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		resolved = abs
	}
	return &Resolver{root: abs, resolvedRoot: resolved}, nil
}

func Unescape(escaped string) (string, error) {
	decoded, err := url.PathUnescape(escaped)
	if err != nil {
		return "", errNotFound
	}
	return decoded, nil
}

// Resolve joins the decoded relative path rel to the root. Paths that leave
// the root, directly or through a symlink, are reported as not found.
func (r *Resolver) Resolve(rel string) (string, error) {
	if strings.ContainsRune(rel, 0) {
		return "", errNotFound
	}
	joined := filepath.Join(r.root, filepath.FromSlash(rel))
	if !within(r.root, joined) {
		return "", errNotFound
	}

	resolved, err := filepath.EvalSymlinks(joined)
	switch {
	case err == nil:
		if !within(r.resolvedRoot, resolved) {
			return "", errNotFound
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return "", errNotFound
	}
	return joined, nil
}

func (r *Resolver) ResolveEscaped(escaped string) (string, error) {
	rel, err := Unescape(escaped)
	if err != nil {
		return "", err
	}
	return r.Resolve(rel)
}

func (r *Resolver) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(r.root, abs)
	if err != nil || !within(r.root, abs) {
		return "", errNotFound
	}
	return rel, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator)))
}

// List returns the immediate entries of the directory at the escaped tail,
// sorted by name. Directories carry a trailing slash and dot entries are
// left out. Anything unreadable yields an empty list.
func (r *Resolver) List(escaped string) []string {
	dir, err := r.ResolveEscaped(escaped)
	if err != nil {
		return []string{}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []string{}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if isDir(dir, e) {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isDir(dir string, e fs.DirEntry) bool {
	if e.IsDir() {
		return true
	}
	if e.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, e.Name()))
	return err == nil && info.IsDir()
}

func Open(path string) (*os.File, fs.FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errNotFound
	}
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		_ = f.Close()
		return nil, nil, errNotFound
	}
	return f, info, nil
}

func ServeFile(w http.ResponseWriter, req *http.Request, path string) error {
	f, info, err := Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if ct := ContentType(path); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	http.ServeContent(w, req, info.Name(), info.ModTime(), f)
	return nil
}

func ContentType(path string) string {
	if mediaType, err := utils.GetMimeDetailsFromPath(path); err == nil && mediaType != "" && mediaType != "/" && mediaType != "application/octet-stream" {
		return mediaType
	}
	if guessed := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); guessed != "" {
		return guessed
	}
	return ""
}
