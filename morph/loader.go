package morph

import (
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
)

// Loader reads morphologies by name from a directory, keeping the
// most recently used ones in memory. It is safe for concurrent use.
type Loader struct {
	dir   string
	ext   string
	cache *lru.Cache[string, *Morphology]
}

// NewLoader returns a loader for files dir/<name><ext>. A size of 0
// disables the cache.
func NewLoader(dir, ext string, size int) (*Loader, error) {
	if size < 0 {
		return nil, errors.Errorf("negative cache size %d", size)
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	l := &Loader{dir: dir, ext: ext}
	if size > 0 {
		c, err := lru.New[string, *Morphology](size)
		if err != nil {
			return nil, err
		}
		l.cache = c
	}
	return l, nil
}

// Get returns the named morphology. Each call returns a fresh copy
// that the caller may modify.
func (l *Loader) Get(name string) (*Morphology, error) {
	if l.cache != nil {
		if m, ok := l.cache.Get(name); ok {
			return m.Copy(), nil
		}
	}
	m, err := ReadFile(filepath.Join(l.dir, name+l.ext))
	if err != nil {
		return nil, err
	}
	if l.cache != nil {
		l.cache.Add(name, m)
	}
	return m.Copy(), nil
}
