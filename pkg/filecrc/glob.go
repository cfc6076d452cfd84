package filecrc

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// A Glob matches the files found by a Walker. Names are slash separated and
// start with the base name of the walk root, so "build/tmp/x.bin" is the
// same name whether the root was given as "build", "./build" or an absolute
// path.
//
// A pattern with N elements is matched against the last N elements of a
// name, so "*.bin" matches the base name and "tmp/*.bin" matches files in
// any directory named tmp. A leading '/' anchors the pattern to the walk
// root and a leading '!' negates it.
type Glob struct {
	pattern  string
	negate   bool
	anchored bool
	elems    int
}

func (g Glob) String() string {
	s := g.pattern
	if g.anchored {
		s = "/" + s
	}
	if g.negate {
		s = "!" + s
	}
	return s
}

func NewGlob(s string) (*Glob, error) {
	if s == "" {
		return nil, errors.New("empty pattern")
	}
	g := &Glob{}
	if strings.HasPrefix(s, "!") {
		g.negate = true
		s = s[1:]
	}
	s = filepath.ToSlash(s)
	if strings.HasPrefix(s, "/") {
		g.anchored = true
	}
	s = strings.Trim(path.Clean(s), "/")
	if s == "" || s == "." {
		return nil, fmt.Errorf("pattern matches nothing: %q", s)
	}
	if _, err := path.Match(s, ""); err != nil {
		return nil, fmt.Errorf("%w: %q", err, s)
	}
	g.pattern = s
	g.elems = strings.Count(s, "/") + 1
	return g, nil
}

// suffix returns the last n elements of name.
func suffix(name string, n int) (string, bool) {
	i := len(name)
	for ; n > 0; n-- {
		j := strings.LastIndexByte(name[:i], '/')
		if j < 0 {
			return name, n == 1
		}
		i = j
	}
	return name[i+1:], true
}

func (g *Glob) Match(name string) bool {
	var ok bool
	if g.anchored {
		ok, _ = path.Match(g.pattern, name)
	} else if s, found := suffix(name, g.elems); found {
		ok, _ = path.Match(g.pattern, s)
	}
	return ok != g.negate
}

// GlobSet is a list of globs that can be used as a repeatable flag.
type GlobSet struct {
	globs []*Glob
}

func (gs *GlobSet) Set(s string) error {
	g, err := NewGlob(s)
	if err != nil {
		return err
	}
	gs.globs = append(gs.globs, g)
	return nil
}

func (gs *GlobSet) Len() int {
	if gs == nil {
		return 0
	}
	return len(gs.globs)
}

// Exclude reports if name matches any glob.
func (gs *GlobSet) Exclude(name string) bool {
	if gs == nil {
		return false
	}
	for _, g := range gs.globs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// Match reports if name matches every glob. An empty set matches everything.
func (gs *GlobSet) Match(name string) bool {
	if gs == nil {
		return true
	}
	for _, g := range gs.globs {
		if !g.Match(name) {
			return false
		}
	}
	return true
}

func (gs *GlobSet) String() string {
	if gs == nil || len(gs.globs) == 0 {
		return ""
	}
	a := make([]string, len(gs.globs))
	for i, g := range gs.globs {
		a[i] = g.String()
	}
	return "[" + strings.Join(a, ",") + "]"
}

func (gs *GlobSet) Type() string { return "glob" }
