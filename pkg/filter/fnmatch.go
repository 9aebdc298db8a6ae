package filter

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

// maxClassRunes bounds how far a bracket expression is expanded into an
// explicit list.
const maxClassRunes = 4096

// posixClasses are the C-locale members of the fnmatch(3) "[:name:]" forms.
var posixClasses = map[string][][2]rune{
	"alpha":  {{'A', 'Z'}, {'a', 'z'}},
	"digit":  {{'0', '9'}},
	"alnum":  {{'0', '9'}, {'A', 'Z'}, {'a', 'z'}},
	"upper":  {{'A', 'Z'}},
	"lower":  {{'a', 'z'}},
	"space":  {{'\t', '\r'}, {' ', ' '}},
	"blank":  {{'\t', '\t'}, {' ', ' '}},
	"punct":  {{'!', '/'}, {':', '@'}, {'[', '`'}, {'{', '~'}},
	"xdigit": {{'0', '9'}, {'A', 'F'}, {'a', 'f'}},
	"cntrl":  {{0, 0x1f}, {0x7f, 0x7f}},
	"print":  {{' ', '~'}},
	"graph":  {{'!', '~'}},
}

// fnmatchToGlob rewrites a pattern in fnmatch(3) syntax (no flags) into
// gobwas/glob syntax. never is set for patterns that cannot match anything,
// such as one containing the empty class "[z-a]".
//
// The differences handled here:
//   - braces and commas are literal in fnmatch
//   - "[^...]" negates like "[!...]"
//   - "[:digit:]" and the other C-locale classes
//   - "]" right after "[" or "[!" is a member, not the end of the class
//   - classes mixing ranges and single characters
//   - an unterminated "[" matches itself
func fnmatchToGlob(p string) (out string, never bool, err error) {
	var b strings.Builder
	b.Grow(len(p) + 8)
	for i := 0; i < len(p); {
		r, w := utf8.DecodeRuneInString(p[i:])
		switch r {
		case '*', '?':
			b.WriteRune(r)
			i += w
		case '\\':
			i += w
			if i == len(p) {
				writeLiteral(&b, '\\')
				continue
			}
			r, w = utf8.DecodeRuneInString(p[i:])
			writeLiteral(&b, r)
			i += w
		case '[':
			cls, n, ok, err := parseClass(p[i+w:])
			if err != nil {
				return "", false, err
			}
			if !ok {
				writeLiteral(&b, '[')
				i += w
				continue
			}
			i += w + n
			if err := cls.writeTo(&b, &never); err != nil {
				return "", false, err
			}
		default:
			writeLiteral(&b, r)
			i += w
		}
	}
	return b.String(), never, nil
}

func writeLiteral(b *strings.Builder, r rune) {
	if strings.ContainsRune(`*?[]{},\`, r) {
		b.WriteByte('\\')
	}
	b.WriteRune(r)
}

type charClass struct {
	negated bool
	ranges  [][2]rune
}

// parseClass reads a bracket expression body, s starting just after "[".
// ok is false if the class is not terminated.
func parseClass(s string) (c charClass, n int, ok bool, err error) {
	i := 0
	if i < len(s) && (s[i] == '!' || s[i] == '^') {
		c.negated = true
		i++
	}
	for first := true; i < len(s); first = false {
		if s[i] == ']' && !first {
			return c, i + 1, true, nil
		}
		if strings.HasPrefix(s[i:], "[:") {
			if end := strings.Index(s[i+2:], ":]"); end >= 0 {
				name := s[i+2 : i+2+end]
				set, known := posixClasses[name]
				if !known {
					return c, 0, false, fmt.Errorf("unknown character class %q", name)
				}
				c.ranges = append(c.ranges, set...)
				i += 2 + end + 2
				continue
			}
		}

		lo, w := classRune(s[i:])
		if w == 0 {
			break
		}
		i += w
		if i+1 < len(s) && s[i] == '-' && s[i+1] != ']' {
			hi, hw := classRune(s[i+1:])
			if hw == 0 {
				break
			}
			i += 1 + hw
			if lo <= hi {
				c.ranges = append(c.ranges, [2]rune{lo, hi})
			}
			continue
		}
		c.ranges = append(c.ranges, [2]rune{lo, lo})
	}
	return c, 0, false, nil
}

// classRune decodes one, possibly backslash-escaped, member. w is 0 for a
// trailing backslash.
func classRune(s string) (r rune, w int) {
	if s[0] != '\\' {
		return utf8.DecodeRuneInString(s)
	}
	if len(s) < 2 {
		return 0, 0
	}
	r, w = utf8.DecodeRuneInString(s[1:])
	return r, w + 1
}

// writeTo emits the class in gobwas form: a single "[lo-hi]" range where
// possible, otherwise an explicit "[abc]" list with "-" first.
func (c charClass) writeTo(b *strings.Builder, never *bool) error {
	if len(c.ranges) == 0 {
		if c.negated {
			b.WriteByte('?')
		} else {
			*never = true
		}
		return nil
	}

	if len(c.ranges) == 1 {
		lo, hi := c.ranges[0][0], c.ranges[0][1]
		if lo < hi && (c.negated || lo != '!') {
			b.WriteByte('[')
			if c.negated {
				b.WriteByte('!')
			}
			b.WriteRune(lo)
			b.WriteByte('-')
			b.WriteRune(hi)
			b.WriteByte(']')
			return nil
		}
	}

	var members []rune
	for _, rg := range c.ranges {
		if int(rg[1]-rg[0]) >= maxClassRunes || len(members) >= maxClassRunes {
			return fmt.Errorf("character class too large")
		}
		for r := rg[0]; r <= rg[1]; r++ {
			members = append(members, r)
		}
	}
	slices.Sort(members)
	members = slices.Compact(members)

	b.WriteByte('[')
	if c.negated {
		b.WriteByte('!')
	}
	if _, dash := slices.BinarySearch(members, '-'); dash {
		b.WriteByte('-')
	}
	for _, r := range members {
		switch r {
		case '-':
			continue
		case '\\', ']', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte(']')
	return nil
}
