package analyzer

import "strings"

var ifsReplacer = strings.NewReplacer("${IFS}", " ", "$IFS", " ")

// Longer operators come first so "&&" is not read as two "&".
var segmentReplacer = strings.NewReplacer(
	"$(", "\n",
	"`", "\n",
	"(", "\n",
	")", "\n",
	"&&", "\n",
	"||", "\n",
	";", "\n",
	"|", "\n",
	"&", "\n",
	"<", " ",
	">", " ",
	"{", " ",
	"}", " ",
	",", " ",
)

// scanLexical analyzes cmd without a parser. It cannot fail, so it always
// contributes something even for input the shell parser rejects.
func scanLexical(cmd string) Analysis {
	c := collector{lexical: true}
	c.scan(cmd, 0)
	return c.analysis(false)
}

func (c *collector) scan(cmd string, depth int) {
	s := stripEscapes(cmd)
	s = ifsReplacer.Replace(s)
	s = strings.NewReplacer(`'`, "", `"`, "").Replace(s)
	s = segmentReplacer.Replace(s)

	for _, segment := range strings.Split(s, "\n") {
		fields := strings.Fields(segment)
		for len(fields) > 0 && isAssignment(fields[0]) {
			c.token(fields[0])
			fields = fields[1:]
		}
		if len(fields) == 0 {
			continue
		}
		for _, f := range fields {
			if strings.ContainsAny(f, "$`") {
				c.dynamic.add(f)
			}
		}
		c.command(fields, depth)
	}
}

// stripEscapes drops backslashes, keeping the escaped character. An escaped
// newline is a line continuation and disappears entirely.
func stripEscapes(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) {
			i++
			if s[i] != '\n' {
				b.WriteByte(s[i])
			}
		}
	}
	return b.String()
}
