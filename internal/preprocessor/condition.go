package preprocessor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/HugoDaniel/shaderlab/internal/diagnostic"
)

var definedRe = regexp2.MustCompile(
	`(?<![A-Za-z0-9_])defined[ \t]*(?:\([ \t]*(?<paren>[A-Za-z_][A-Za-z0-9_]*)[ \t]*\)|(?<bare>[A-Za-z_][A-Za-z0-9_]*))`, regexp2.None)

// condFrame is one #if ... #endif group.
type condFrame struct {
	parentActive bool
	taken        bool // some branch of the group was selected
	active       bool
	sawElse      bool
	passthrough  bool // left for the GPU compiler, every branch is kept
	directive    string
	at           int
}

// condStack holds the open conditional groups of one block.
type condStack struct {
	frames []condFrame
}

func (c *condStack) active() bool {
	if len(c.frames) == 0 {
		return true
	}
	return c.frames[len(c.frames)-1].active
}

func (c *condStack) unclosed() (condFrame, bool) {
	if len(c.frames) == 0 {
		return condFrame{}, false
	}
	return c.frames[len(c.frames)-1], true
}

// apply handles a conditional directive line at offset at. handled is
// false for any other directive; keep reports that the line stays in the
// output.
func (c *condStack) apply(p *Preprocessor, line string, at int) (handled, keep bool, err error) {
	name := directiveName(line)
	arg := directiveArg(line)

	switch name {
	case "if", "ifdef", "ifndef":
		parent := c.active()
		f := condFrame{parentActive: parent, directive: "#" + name, at: at}
		switch {
		case !parent:
		case reservedCondition(arg):
			f.passthrough, f.active, f.taken = true, true, true
		default:
			ok, err := p.test(name, arg)
			if err != nil {
				return true, false, err
			}
			f.active, f.taken = ok, ok
		}
		c.frames = append(c.frames, f)
		return true, f.passthrough, nil

	case "elif", "else":
		if len(c.frames) == 0 {
			return true, false, diagnostic.New(diagnostic.ParseError, "#%s without #if", name)
		}
		f := &c.frames[len(c.frames)-1]
		if f.sawElse {
			return true, false, diagnostic.New(diagnostic.ParseError, "#%s after #else", name)
		}
		f.sawElse = name == "else"
		if f.passthrough {
			return true, f.parentActive, nil
		}
		switch {
		case !f.parentActive || f.taken:
			f.active = false
		case name == "else":
			f.active, f.taken = true, true
		default:
			ok, err := p.evalCondition(arg)
			if err != nil {
				return true, false, err
			}
			f.active, f.taken = ok, ok
		}
		return true, false, nil

	case "endif":
		if len(c.frames) == 0 {
			return true, false, diagnostic.New(diagnostic.ParseError, "#endif without #if")
		}
		f := c.frames[len(c.frames)-1]
		c.frames = c.frames[:len(c.frames)-1]
		return true, f.passthrough && f.parentActive, nil
	}
	return false, false, nil
}

// test evaluates the condition of an #if, #ifdef or #ifndef line.
func (p *Preprocessor) test(directive, arg string) (bool, error) {
	if directive == "if" {
		return p.evalCondition(arg)
	}
	if ok, _ := identRe.MatchString(arg); !ok {
		return false, diagnostic.New(diagnostic.ParseError, "#%s expects a macro name, got %q", directive, arg)
	}
	_, defined := p.macros[arg]
	return defined == (directive == "ifdef"), nil
}

// directiveArg returns the text after the directive name, with
// continuations joined and comments removed.
func directiveArg(line string) string {
	joined, err := continuationRe.Replace(line, " ", -1, -1)
	if err != nil {
		joined = line
	}
	m, err := directiveNameRe.FindStringMatch(joined)
	if err != nil || m == nil {
		return ""
	}
	return strings.TrimSpace(stripComments(joined[m.Index+m.Length:]))
}

// reservedCondition reports whether a condition names a GL_ or __ macro,
// which only the GPU compiler knows.
func reservedCondition(arg string) bool {
	for i := 0; i < len(arg); {
		if !isIdentStart(arg[i]) {
			i++
			continue
		}
		end := i
		for end < len(arg) && isIdentByte(arg[end]) {
			end++
		}
		word := arg[i:end]
		if strings.HasPrefix(word, "GL_") || strings.HasPrefix(word, "__") {
			return true
		}
		i = end
	}
	return false
}

// evalCondition evaluates an #if or #elif expression. defined(NAME) is
// replaced first, then macros are expanded; names left over are 0.
func (p *Preprocessor) evalCondition(expr string) (bool, error) {
	replaced, err := definedRe.ReplaceFunc(expr, func(m regexp2.Match) string {
		name := group(&m, "paren")
		if name == "" {
			name = group(&m, "bare")
		}
		if _, ok := p.macros[name]; ok {
			return "1"
		}
		return "0"
	}, -1, -1)
	if err != nil {
		return false, err
	}
	expanded, err := p.expandText(replaced, hideSet{}, 0)
	if err != nil {
		return false, err
	}

	e := &condExpr{src: expanded}
	v, err := e.binary(1)
	if err == nil {
		e.space()
		if e.pos < len(e.src) {
			err = e.fail("unexpected %q", e.src[e.pos:])
		}
	}
	if err != nil {
		return false, diagnostic.New(diagnostic.ParseError, "invalid #if expression %q: %v", expr, err)
	}
	return v != 0, nil
}

// ----------------------------------------------------------------------------
// Expression evaluation
// ----------------------------------------------------------------------------

type condExpr struct {
	src string
	pos int
}

func (e *condExpr) fail(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

func (e *condExpr) space() {
	for e.pos < len(e.src) && (e.src[e.pos] == ' ' || e.src[e.pos] == '\t' || e.src[e.pos] == '\r' || e.src[e.pos] == '\n') {
		e.pos++
	}
}

// binaryOps lists the operators by precedence; longer spellings first.
var binaryOps = []struct {
	op   string
	prec int
}{
	{"||", 1}, {"&&", 2}, {"==", 6}, {"!=", 6}, {"<=", 7}, {">=", 7}, {"<<", 8}, {">>", 8},
	{"|", 3}, {"^", 4}, {"&", 5}, {"<", 7}, {">", 7}, {"+", 9}, {"-", 9}, {"*", 10}, {"/", 10}, {"%", 10},
}

func (e *condExpr) peekOp() (string, int) {
	e.space()
	for _, b := range binaryOps {
		if strings.HasPrefix(e.src[e.pos:], b.op) {
			return b.op, b.prec
		}
	}
	return "", 0
}

func (e *condExpr) binary(minPrec int) (int64, error) {
	lhs, err := e.unary()
	if err != nil {
		return 0, err
	}
	for {
		op, prec := e.peekOp()
		if prec == 0 || prec < minPrec {
			return lhs, nil
		}
		e.pos += len(op)
		rhs, err := e.binary(prec + 1)
		if err != nil {
			return 0, err
		}
		if lhs, err = e.apply(op, lhs, rhs); err != nil {
			return 0, err
		}
	}
}

func (e *condExpr) apply(op string, a, b int64) (int64, error) {
	truth := func(v bool) int64 {
		if v {
			return 1
		}
		return 0
	}
	switch op {
	case "||":
		return truth(a != 0 || b != 0), nil
	case "&&":
		return truth(a != 0 && b != 0), nil
	case "|":
		return a | b, nil
	case "^":
		return a ^ b, nil
	case "&":
		return a & b, nil
	case "==":
		return truth(a == b), nil
	case "!=":
		return truth(a != b), nil
	case "<":
		return truth(a < b), nil
	case ">":
		return truth(a > b), nil
	case "<=":
		return truth(a <= b), nil
	case ">=":
		return truth(a >= b), nil
	case "<<":
		return a << uint64(b&63), nil
	case ">>":
		return a >> uint64(b&63), nil
	case "+":
		return a + b, nil
	case "-":
		return a - b, nil
	case "*":
		return a * b, nil
	}
	if b == 0 {
		return 0, e.fail("division by zero")
	}
	if op == "/" {
		return a / b, nil
	}
	return a % b, nil
}

func (e *condExpr) unary() (int64, error) {
	e.space()
	if e.pos >= len(e.src) {
		return 0, e.fail("missing operand")
	}
	c := e.src[e.pos]
	switch {
	case c == '!' || c == '-' || c == '+' || c == '~':
		e.pos++
		v, err := e.unary()
		if err != nil {
			return 0, err
		}
		switch c {
		case '!':
			if v == 0 {
				return 1, nil
			}
			return 0, nil
		case '-':
			return -v, nil
		case '~':
			return ^v, nil
		}
		return v, nil

	case c == '(':
		e.pos++
		v, err := e.binary(1)
		if err != nil {
			return 0, err
		}
		e.space()
		if e.pos >= len(e.src) || e.src[e.pos] != ')' {
			return 0, e.fail("missing ')'")
		}
		e.pos++
		return v, nil

	case isDigit(c):
		end := e.pos
		for end < len(e.src) && isIdentByte(e.src[end]) {
			end++
		}
		lit := strings.TrimRight(e.src[e.pos:end], "uUlL")
		v, err := strconv.ParseInt(lit, 0, 64)
		if err != nil {
			return 0, e.fail("invalid number %q", e.src[e.pos:end])
		}
		e.pos = end
		return v, nil

	case isIdentStart(c):
		for e.pos < len(e.src) && isIdentByte(e.src[e.pos]) {
			e.pos++
		}
		return 0, nil
	}
	return 0, e.fail("unexpected %q", string(c))
}
