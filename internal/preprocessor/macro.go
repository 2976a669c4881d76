package preprocessor

import (
	"slices"
	"strings"

	"github.com/dlclark/regexp2"
)

// Macro is a #define'd name.
type Macro struct {
	Name         string
	Params       []string
	FunctionLike bool   // declared with a parameter list, possibly empty
	Body         string // continuations joined, comments removed, trimmed

	params *regexp2.Regexp // matches any whole-word parameter
}

var (
	defineRe = regexp2.MustCompile(
		`^#[ \t]*define[ \t]+(?<name>[A-Za-z_][A-Za-z0-9_]*)(?<params>\([^)]*\))?(?<body>[\s\S]*)$`, regexp2.None)
	undefRe = regexp2.MustCompile(
		`^#[ \t]*undef[ \t]+(?<name>[A-Za-z_][A-Za-z0-9_]*)[ \t]*(?://.*)?$`, regexp2.None)
	includeRe = regexp2.MustCompile(
		`^#[ \t]*include[ \t]*"(?<key>[^"\r\n]+)"[ \t]*(?://.*)?$`, regexp2.None)
	directiveNameRe = regexp2.MustCompile(`^#[ \t]*(?<name>[A-Za-z_]+)`, regexp2.None)
	continuationRe  = regexp2.MustCompile(`\\\r?\n`, regexp2.None)
	commentRe       = regexp2.MustCompile(`//[^\n]*|/\*[\s\S]*?\*/`, regexp2.None)
	identRe         = regexp2.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`, regexp2.None)
)

// group returns the named group of a match, or "" when it did not take part.
func group(m *regexp2.Match, name string) string {
	if g := m.GroupByName(name); g != nil && len(g.Captures) > 0 {
		return g.String()
	}
	return ""
}

// directiveName returns the word after '#', such as "define" or "ifdef".
func directiveName(line string) string {
	m, err := directiveNameRe.FindStringMatch(line)
	if err != nil || m == nil {
		return ""
	}
	return group(m, "name")
}

// stripComments removes comments from macro text.
func stripComments(s string) string {
	out, err := commentRe.Replace(s, " ", -1, -1)
	if err != nil {
		return s
	}
	return out
}

// parseDefine parses a #define line. The bool is false if line is not a
// well-formed definition.
func parseDefine(line string) (*Macro, bool, error) {
	joined, err := continuationRe.Replace(line, " ", -1, -1)
	if err != nil {
		return nil, false, err
	}
	m, err := defineRe.FindStringMatch(joined)
	if err != nil || m == nil {
		return nil, false, err
	}

	macro := &Macro{
		Name: group(m, "name"),
		Body: strings.TrimSpace(stripComments(group(m, "body"))),
	}

	if params := group(m, "params"); params != "" {
		macro.FunctionLike = true
		inner := strings.TrimSpace(params[1 : len(params)-1])
		if inner != "" {
			for _, p := range strings.Split(inner, ",") {
				p = strings.TrimSpace(p)
				if ok, _ := identRe.MatchString(p); !ok {
					return nil, false, nil
				}
				macro.Params = append(macro.Params, p)
			}
		}
		if err := macro.compile(); err != nil {
			return nil, false, err
		}
	}
	return macro, true, nil
}

// parseUndef returns the macro name of an #undef line.
func parseUndef(line string) (string, bool) {
	m, err := undefRe.FindStringMatch(line)
	if err != nil || m == nil {
		return "", false
	}
	return group(m, "name"), true
}

// parseInclude returns the chunk key of an #include "key" line. Angle
// bracket includes are not matched.
func parseInclude(line string) (string, bool) {
	m, err := includeRe.FindStringMatch(line)
	if err != nil || m == nil {
		return "", false
	}
	return group(m, "key"), true
}

func (m *Macro) compile() error {
	if len(m.Params) == 0 {
		return nil
	}
	quoted := make([]string, len(m.Params))
	for i, p := range m.Params {
		quoted[i] = regexp2.Escape(p)
	}
	re, err := regexp2.Compile(`(?<![A-Za-z0-9_])(?:`+strings.Join(quoted, "|")+`)(?![A-Za-z0-9_])`, regexp2.None)
	if err != nil {
		return err
	}
	m.params = re
	return nil
}

// Equal reports whether two definitions are the same, so redefining one
// with the other is harmless.
func (m *Macro) Equal(other *Macro) bool {
	return m.Name == other.Name &&
		m.FunctionLike == other.FunctionLike &&
		slices.Equal(m.Params, other.Params) &&
		strings.Join(strings.Fields(m.Body), " ") == strings.Join(strings.Fields(other.Body), " ")
}

// substitute replaces every whole-word parameter of the body by its
// argument in a single pass.
func (m *Macro) substitute(args []string) (string, error) {
	if m.params == nil {
		return m.Body, nil
	}
	return m.params.ReplaceFunc(m.Body, func(match regexp2.Match) string {
		name := match.String()
		for i, p := range m.Params {
			if p == name {
				return args[i]
			}
		}
		return name
	}, -1, -1)
}
