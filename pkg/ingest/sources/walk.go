package sources

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
)

// WalkOptions filters the files produced by Walk.
type WalkOptions struct {
	// Include keeps only paths matching at least one pattern. Empty keeps all.
	Include []string

	// Exclude drops paths matching any pattern. Checked after Include.
	Exclude []string

	// FollowSymlinks walks into symlinked files.
	FollowSymlinks bool
}

// Matcher applies compiled include/exclude globs. Patterns use '/' as the
// separator and support "**"; a pattern without '/' is matched against the
// base name only.
type Matcher struct {
	include []pattern
	exclude []pattern
}

type pattern struct {
	g        glob.Glob
	baseOnly bool
}

// NewMatcher compiles include and exclude patterns.
func NewMatcher(include, exclude []string) (*Matcher, error) {
	m := &Matcher{}
	var err error
	if m.include, err = compilePatterns(include); err != nil {
		return nil, err
	}
	if m.exclude, err = compilePatterns(exclude); err != nil {
		return nil, err
	}
	return m, nil
}

func compilePatterns(raw []string) ([]pattern, error) {
	out := make([]pattern, 0, len(raw))
	for _, p := range raw {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", p, err)
		}
		out = append(out, pattern{g: g, baseOnly: !strings.Contains(p, "/")})
	}
	return out, nil
}

// Match reports whether rel (a slash-separated path relative to the walk
// root) passes the filters.
func (m *Matcher) Match(rel string) bool {
	if len(m.include) > 0 && !matchAny(m.include, rel) {
		return false
	}
	return !matchAny(m.exclude, rel)
}

func matchAny(patterns []pattern, rel string) bool {
	base := rel
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		base = rel[i+1:]
	}
	for _, p := range patterns {
		subject := rel
		if p.baseOnly {
			subject = base
		}
		if p.g.Match(subject) {
			return true
		}
	}
	return false
}

// Walk returns the regular files under root that pass opts, sorted for
// deterministic ordering. If root is a file it is returned as-is; if it
// contains glob metacharacters it is expanded with filepath.Glob first.
func Walk(ctx context.Context, root string, opts WalkOptions) ([]string, error) {
	m, err := NewMatcher(opts.Include, opts.Exclude)
	if err != nil {
		return nil, err
	}

	roots := []string{root}
	if strings.ContainsAny(root, "*?[") {
		roots, err = filepath.Glob(root)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern: %w", err)
		}
		if len(roots) == 0 {
			return nil, fmt.Errorf("no files match pattern: %s", root)
		}
	}

	var files []string
	for _, r := range roots {
		found, err := walkRoot(ctx, r, m, opts.FollowSymlinks)
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}

	sort.Strings(files)
	return files, nil
}

func walkRoot(ctx context.Context, root string, m *Matcher, follow bool) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if m.Match(filepath.ToSlash(filepath.Base(root))) {
			return []string{root}, nil
		}
		return nil, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			if !follow {
				return nil
			}
			target, err := os.Stat(path)
			if err != nil || target.IsDir() {
				// Dangling links and links to directories are skipped.
				return nil
			}
		} else if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if m.Match(filepath.ToSlash(rel)) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
