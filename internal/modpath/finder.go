package modpath

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/sunholo/buildtrack/internal/config"
)

// EagerFinder recursively walks every search root once, applying the file
// and directory filters, and returns every module path it finds,
// deduplicated by absolute path across roots (first root wins).
type EagerFinder struct {
	Roots    []config.SearchRoot
	Excludes []*regexp.Regexp
}

// NewEagerFinder constructs an EagerFinder over the given search roots.
func NewEagerFinder(roots []config.SearchRoot, excludes []*regexp.Regexp) *EagerFinder {
	return &EagerFinder{Roots: roots, Excludes: excludes}
}

// FindAll walks every search root and returns all module paths found.
func (f *EagerFinder) FindAll() ([]ModulePath, error) {
	seen := make(map[string]bool)
	var out []ModulePath

	for _, root := range f.Roots {
		err := filepath.WalkDir(root.Path, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root.Path && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			if seen[abs] {
				return nil
			}
			mp := Classify(abs, f.Roots, f.Excludes)
			if mp == nil {
				return nil
			}
			seen[abs] = true
			out = append(out, *mp)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// LazyFinder never crawls a search root. Given a qualifier it computes
// candidate parent directories, lists only those, and caches the listing
// result per qualifier in a table shared across calls.
type LazyFinder struct {
	Roots    []config.SearchRoot
	Excludes []*regexp.Regexp

	mu    sync.RWMutex
	cache map[string][]ModulePath
}

// NewLazyFinder constructs a LazyFinder over the given search roots with
// an empty directory-listing cache.
func NewLazyFinder(roots []config.SearchRoot, excludes []*regexp.Regexp) *LazyFinder {
	return &LazyFinder{Roots: roots, Excludes: excludes, cache: make(map[string][]ModulePath)}
}

// Find returns the module paths realizing qualifier, sorted winner-first
// by priority-aware compare. Results are served from cache when present.
func (f *LazyFinder) Find(qualifier string) ([]ModulePath, error) {
	f.mu.RLock()
	if cached, ok := f.cache[qualifier]; ok {
		f.mu.RUnlock()
		return cached, nil
	}
	f.mu.RUnlock()

	candidates, err := f.search(qualifier)
	if err != nil {
		return nil, err
	}
	sort.Slice(candidates, func(i, j int) bool { return Compare(candidates[i], candidates[j]) < 0 })

	f.mu.Lock()
	f.cache[qualifier] = candidates
	f.mu.Unlock()
	return candidates, nil
}

// search tries, for every root, every prefix split of the qualifier's
// dotted segments into a directory part and a filename part, listing the
// directory part and matching entries whose stem equals the filename
// part (or __init__, for the package-qualifier case where i is the full
// segment count).
func (f *LazyFinder) search(qualifier string) ([]ModulePath, error) {
	segments := strings.Split(qualifier, ".")
	var out []ModulePath

	for _, root := range f.Roots {
		for i := len(segments); i >= 0; i-- {
			dirSegs := segments[:i]
			nameSegs := segments[i:]

			dirParts := append([]string{root.Path}, dirSegs...)
			dir := filepath.Join(dirParts...)

			entries, err := os.ReadDir(dir)
			if os.IsNotExist(err) {
				continue
			}
			if err != nil {
				return nil, err
			}

			wantStem := strings.Join(nameSegs, ".")
			if wantStem == "" {
				wantStem = "__init__"
			}

			for _, e := range entries {
				if e.IsDir() {
					continue
				}
				name := e.Name()
				ext := filepath.Ext(name)
				if ext != ".py" && ext != ".pyi" {
					continue
				}
				stem := strings.TrimSuffix(name, ext)
				if stem != wantStem {
					continue
				}
				abs, err := filepath.Abs(filepath.Join(dir, name))
				if err != nil {
					return nil, err
				}
				mp := Classify(abs, f.Roots, f.Excludes)
				if mp != nil && mp.Qualifier == qualifier {
					out = append(out, *mp)
				}
			}
		}
	}
	return out, nil
}

// Cached reports whether qualifier currently has a directory-listing
// entry in the cache, i.e. whether some prior Find call was ever asked
// about it.
func (f *LazyFinder) Cached(qualifier string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.cache[qualifier]
	return ok
}

// Invalidate drops the cached listing for qualifier and for every
// ancestor qualifier (the parent packages whose directory listing could
// also have produced this qualifier's winner).
func (f *LazyFinder) Invalidate(qualifier string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.cache, qualifier)
	segments := strings.Split(qualifier, ".")
	for i := len(segments) - 1; i >= 1; i-- {
		delete(f.cache, strings.Join(segments[:i], "."))
	}
}
