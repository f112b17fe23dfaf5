package analyzer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

// ErrUnparseable is returned when a command cannot be parsed as shell.
var ErrUnparseable = errors.New("unparseable command")

// ifsSplit marks an unquoted $IFS expansion; the word is split there.
const ifsSplit = "\x00"

// parseStructural analyzes cmd with the bash parser. It fails with
// ErrUnparseable rather than returning partial results.
func parseStructural(cmd string) (Analysis, error) {
	c := collector{}
	if err := c.parse(cmd, 0); err != nil {
		return Analysis{}, err
	}
	return c.analysis(true), nil
}

func (c *collector) parse(src string, depth int) error {
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(src), "")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnparseable, err)
	}

	syntax.Walk(file, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.Stmt:
			c.stmt(n, depth)
		case *syntax.FuncDecl:
			if n.Name != nil {
				c.token(n.Name.Value)
			}
		}
		return true
	})
	return nil
}

// stmt records the command of one statement. Nested statements (inside
// substitutions, subshells, blocks and so on) are reached by the walk.
func (c *collector) stmt(stmt *syntax.Stmt, depth int) {
	action := ""
	switch cmd := stmt.Cmd.(type) {
	case *syntax.CallExpr:
		var words []string
		for i, w := range cmd.Args {
			for _, v := range expansionWords(w) {
				c.token(v)
				if i == 0 {
					c.actions.add(commandName(v))
				}
			}
			for _, bw := range braceWords(w) {
				fields := wordFields(bw)
				if isDynamic(bw) {
					c.dynamic.addAll(fields)
				}
				words = append(words, fields...)
			}
		}
		if len(words) > 0 {
			action = commandName(words[0])
			c.command(words, depth)
		}
	case *syntax.DeclClause:
		if cmd.Variant != nil {
			c.actions.add(cmd.Variant.Value)
			c.token(cmd.Variant.Value)
		}
		for _, a := range cmd.Args {
			if a.Name != nil {
				c.token(a.Name.Value)
			}
			if a.Value != nil {
				c.token(wordValue(a.Value))
			}
		}
	}

	for _, r := range stmt.Redirs {
		c.redirect(r, action, depth)
	}
}

// redirect records redirection targets as tokens only; they are never path
// operands. Heredocs and here-strings fed to a shell are analyzed as scripts.
func (c *collector) redirect(r *syntax.Redirect, action string, depth int) {
	if r.Word != nil {
		target := wordValue(r.Word)
		if r.Op == syntax.WordHdoc && isShell(action) {
			c.script([]string{target}, depth+1)
		} else {
			c.token(target)
		}
	}
	if r.Hdoc != nil && isShell(action) {
		c.script([]string{wordValue(r.Hdoc)}, depth+1)
	}
}

// maxBraceFields bounds brace expansion; larger expansions are left
// unexpanded and judged as dynamic.
const maxBraceFields = 1024

// braceWords performs brace expansion on an unquoted literal word.
// "dist/{a,b}" yields "dist/a" and "dist/b".
func braceWords(w *syntax.Word) []*syntax.Word {
	cp := *w
	if !syntax.SplitBraces(&cp) || braceFields(cp.Parts) > maxBraceFields {
		return []*syntax.Word{w}
	}
	return expand.Braces(&cp)
}

// braceFields estimates how many words the brace expressions in parts
// expand to, saturating just above maxBraceFields.
func braceFields(parts []syntax.WordPart) int {
	total := 1
	for _, part := range parts {
		br, ok := part.(*syntax.BraceExp)
		if !ok {
			continue
		}
		n := 0
		if br.Sequence {
			from, err1 := strconv.Atoi(br.Elems[0].Lit())
			to, err2 := strconv.Atoi(br.Elems[1].Lit())
			switch {
			case err1 != nil || err2 != nil:
				n = 52 // letter ranges
			case from > to:
				n = from - to + 1
			default:
				n = to - from + 1
			}
		} else {
			for _, e := range br.Elems {
				n += braceFields(e.Parts)
			}
		}
		if n <= 0 || n > maxBraceFields {
			return maxBraceFields + 1
		}
		total *= n
		if total > maxBraceFields {
			return maxBraceFields + 1
		}
	}
	return total
}

// isDynamic reports whether the value of w is only known once the shell
// expands it: parameters other than a bare $IFS, substitutions, arithmetic
// and unexpanded brace expressions.
func isDynamic(w *syntax.Word) bool {
	for _, part := range w.Parts {
		if lit, ok := part.(*syntax.Lit); ok && hasBraceList(lit.Value) {
			return true
		}
	}
	dynamic := false
	syntax.Walk(w, func(node syntax.Node) bool {
		switch n := node.(type) {
		case *syntax.ParamExp:
			if !isPlainIFS(n) {
				dynamic = true
			}
		case *syntax.CmdSubst, *syntax.ArithmExp, *syntax.ProcSubst, *syntax.BraceExp:
			dynamic = true
		}
		return !dynamic
	})
	return dynamic
}

// hasBraceList reports whether s still holds a brace list or sequence the
// shell would expand, as left behind when a word mixes braces and quotes.
func hasBraceList(s string) bool {
	open := strings.IndexByte(s, '{')
	if open < 0 {
		return false
	}
	end := strings.IndexByte(s[open:], '}')
	if end < 0 {
		return false
	}
	inner := s[open : open+end]
	return strings.Contains(inner, ",") || strings.Contains(inner, "..")
}

func isPlainIFS(p *syntax.ParamExp) bool {
	return p.Param != nil && p.Param.Value == "IFS" &&
		p.Exp == nil && p.Repl == nil && p.Slice == nil && p.Index == nil &&
		!p.Length && !p.Excl && !p.Width
}

// expansionWords returns the literal text a parameter expansion in w may
// produce instead of the parameter: the word of ${X:-word} and friends, and
// the replacement of ${X/a/b}.
func expansionWords(w *syntax.Word) []string {
	var out []string
	syntax.Walk(w, func(node syntax.Node) bool {
		if p, ok := node.(*syntax.ParamExp); ok {
			if p.Exp != nil && p.Exp.Word != nil {
				out = append(out, wordValue(p.Exp.Word))
			}
			if p.Repl != nil && p.Repl.With != nil {
				out = append(out, wordValue(p.Repl.With))
			}
		}
		return true
	})
	return out
}

// wordFields renders a word to its static value, splitting it where an
// unquoted $IFS appeared.
func wordFields(w *syntax.Word) []string {
	v := wordValue(w)
	if !strings.Contains(v, ifsSplit) {
		return []string{v}
	}
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == 0 || r == ' ' || r == '\t' || r == '\n'
	})
}

// wordValue renders the statically known text of a word. Quotes and escapes
// are resolved; dynamic parts are kept as placeholders.
func wordValue(w *syntax.Word) string {
	if w == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range w.Parts {
		writePart(&b, part, false)
	}
	return b.String()
}

func writePart(b *strings.Builder, part syntax.WordPart, quoted bool) {
	switch p := part.(type) {
	case *syntax.Lit:
		b.WriteString(unescape(p.Value, quoted))
	case *syntax.SglQuoted:
		if p.Dollar {
			b.WriteString(decodeANSIC(p.Value))
		} else {
			b.WriteString(p.Value)
		}
	case *syntax.DblQuoted:
		for _, inner := range p.Parts {
			writePart(b, inner, true)
		}
	case *syntax.ParamExp:
		name := ""
		if p.Param != nil {
			name = p.Param.Value
		}
		switch {
		case isPlainIFS(p) && quoted:
			b.WriteByte(' ')
		case isPlainIFS(p):
			b.WriteString(ifsSplit)
		case p.Exp != nil && p.Exp.Word != nil:
			b.WriteString("${" + name + p.Exp.Op.String() + wordValue(p.Exp.Word) + "}")
		default:
			b.WriteString("$" + name)
		}
	case *syntax.CmdSubst:
		b.WriteString("$()")
	case *syntax.ArithmExp:
		b.WriteString("$(())")
	case *syntax.ProcSubst:
		b.WriteString("<()")
	case *syntax.BraceExp:
		sep := ","
		if p.Sequence {
			sep = ".."
		}
		b.WriteByte('{')
		for i, e := range p.Elems {
			if i > 0 {
				b.WriteString(sep)
			}
			b.WriteString(wordValue(e))
		}
		b.WriteByte('}')
	case *syntax.ExtGlob:
		if p.Pattern != nil {
			b.WriteString(p.Pattern.Value)
		}
	}
}

// unescape removes shell backslash escapes from literal text. Inside double
// quotes only $, `, ", \ and newline are escapable.
func unescape(s string, quoted bool) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch != '\\' || i+1 == len(s) {
			b.WriteByte(ch)
			continue
		}
		next := s[i+1]
		if quoted && !strings.ContainsRune("$`\"\\\n", rune(next)) {
			b.WriteByte(ch)
			continue
		}
		i++
		if next != '\n' {
			b.WriteByte(next)
		}
	}
	return b.String()
}
