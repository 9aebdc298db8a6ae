// Package filter decides which file paths take part in a staleness check.
//
// Rules are shell globs, tried in order; the first one that matches decides.
// A rule prefixed with "!" excludes instead of includes. An empty rule list
// selects everything, and a path no rule matches is not selected:
//
//	rules, _ := filter.Parse([]string{"!/usr/lib/debug/*", "/usr/*"}, filter.SyntaxFnmatch)
//	rules.Match("/usr/bin/sshd")            // true
//	rules.Match("/usr/lib/debug/libc.so")   // false
//	rules.Match("/opt/app")                 // false
package filter

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobwas/glob"
)

// Syntax selects how "*" treats the path separator.
type Syntax int

const (
	// SyntaxFnmatch is fnmatch(3) with no flags: "*" and "?" match any
	// character including "/", and a leading "." is not special.
	SyntaxFnmatch Syntax = iota

	// SyntaxPathname stops "*" and "?" at "/" and adds "**" for any number
	// of directories.
	SyntaxPathname
)

// ParseSyntax maps "fnmatch" or "pathname" (case-insensitive) to a Syntax.
// The empty string means SyntaxFnmatch.
func ParseSyntax(s string) (Syntax, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fnmatch":
		return SyntaxFnmatch, nil
	case "pathname":
		return SyntaxPathname, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadSyntax, s)
}

func (s Syntax) String() string {
	if s == SyntaxPathname {
		return "pathname"
	}
	return "fnmatch"
}

// Rule is one compiled pattern. Rules built by hand rather than by Parse
// are matched with SyntaxFnmatch, compiling the pattern on every call.
type Rule struct {
	Pattern string
	Negated bool

	match func(string) bool
}

// Match reports whether the rule's glob matches path, ignoring Negated. An
// invalid hand-built pattern matches nothing.
func (r Rule) Match(path string) bool {
	if r.match != nil {
		return r.match(path)
	}
	m, err := compileGlob(r.Pattern, SyntaxFnmatch)
	if err != nil {
		return false
	}
	return m(path)
}

// Rules is an ordered rule list.
type Rules []Rule

// Parse compiles patterns in order. A leading "!" marks the rule negated
// and is not part of the glob.
func Parse(patterns []string, syntax Syntax) (Rules, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	rules := make(Rules, 0, len(patterns))
	for _, p := range patterns {
		r, err := compile(p, syntax)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Match reports whether path is selected: true for an empty list, otherwise
// !Negated of the first rule whose glob matches, or false if none does.
func (rs Rules) Match(path string) bool {
	if len(rs) == 0 {
		return true
	}
	for _, r := range rs {
		if r.Match(path) {
			return !r.Negated
		}
	}
	return false
}

// Patterns returns the rules in their textual form, "!" included.
func (rs Rules) Patterns() []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		if r.Negated {
			out = append(out, "!"+r.Pattern)
			continue
		}
		out = append(out, r.Pattern)
	}
	return out
}

func compile(raw string, syntax Syntax) (Rule, error) {
	pat, negated := strings.CutPrefix(raw, "!")
	m, err := compileGlob(pat, syntax)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %q: %v", ErrBadPattern, raw, err)
	}
	return Rule{Pattern: pat, Negated: negated, match: m}, nil
}

func compileGlob(pat string, syntax Syntax) (func(string) bool, error) {
	if syntax == SyntaxPathname {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("invalid pathname glob")
		}
		return func(s string) bool {
			ok, err := doublestar.Match(pat, s)
			return err == nil && ok
		}, nil
	}

	gp, never, err := fnmatchToGlob(pat)
	if err != nil {
		return nil, err
	}
	if never {
		return func(string) bool { return false }, nil
	}
	g, err := glob.Compile(gp)
	if err != nil {
		return nil, err
	}
	return g.Match, nil
}
