// Package analyzer turns a shell command string into the actions, path
// operands and tokens the policy engine reasons about.
//
// Two passes run on every command. The structural pass parses the string
// with a real shell parser and walks every simple command, including those
// nested in substitutions, subshells and control flow. The lexical pass
// un-escapes and de-quotes the raw string and splits it on chain operators.
// Actions and tokens from both passes are unioned. Paths come from the
// structural pass, or from the lexical pass when the structural parse failed.
package analyzer

import (
	"slices"
	"strings"

	"github.com/dgerlanc/mayi/internal/logger"
)

// maxDepth bounds recursion into "sh -c", "eval" and heredoc scripts.
const maxDepth = 4

// Analysis is the result of analyzing one command string.
type Analysis struct {
	// Actions are candidate command names, reduced to their basename.
	Actions []string
	// Paths are non-flag operands of those commands.
	Paths []string
	// Unresolved are the Paths whose value depends on shell expansion at run
	// time, such as "node_modules/$X" or "$(pwd)".
	Unresolved []string
	// Tokens is the flat, case-folded token set used for dangerous-word checks.
	Tokens []string
	// Parsed reports whether the structural pass succeeded.
	Parsed bool
}

// Analyze runs both passes over command and merges their findings.
// All values are case-folded and de-duplicated in first-seen order.
func Analyze(command string) Analysis {
	if strings.TrimSpace(command) == "" {
		return Analysis{Parsed: true}
	}

	structural, err := parseStructural(command)
	if err != nil {
		logger.Debug("structural parse failed, relying on lexical pass", "error", err)
	}
	lexical := scanLexical(command)

	var actions, paths, unresolved, tokens orderedSet
	actions.addAll(structural.Actions)
	actions.addAll(lexical.Actions)
	tokens.addAll(structural.Tokens)
	tokens.addAll(lexical.Tokens)
	paths.addAll(structural.Paths)
	unresolved.addAll(structural.Unresolved)
	if err != nil {
		paths.addAll(lexical.Paths)
		unresolved.addAll(lexical.Unresolved)
	}

	return Analysis{
		Actions:    actions.items,
		Paths:      paths.items,
		Unresolved: unresolved.items,
		Tokens:     tokens.items,
		Parsed:     err == nil,
	}
}

// orderedSet keeps case-folded strings in insertion order without duplicates.
type orderedSet struct {
	items []string
	seen  map[string]struct{}
}

func (s *orderedSet) add(v string) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return
	}
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}

func (s *orderedSet) has(v string) bool {
	_, ok := s.seen[strings.ToLower(strings.TrimSpace(v))]
	return ok
}

func (s *orderedSet) addAll(vs []string) {
	for _, v := range vs {
		s.add(v)
	}
}

// collector accumulates findings for one pass. The same command logic
// serves both passes; lexical selects how nested scripts are followed.
type collector struct {
	lexical bool

	actions orderedSet
	paths   orderedSet
	tokens  orderedSet
	// dynamic holds rendered words that need run-time expansion.
	dynamic orderedSet
}

func (c *collector) analysis(parsed bool) Analysis {
	var unresolved []string
	for _, p := range c.paths.items {
		if c.dynamic.has(p) {
			unresolved = append(unresolved, p)
		}
	}
	return Analysis{
		Actions:    c.actions.items,
		Paths:      c.paths.items,
		Unresolved: unresolved,
		Tokens:     c.tokens.items,
		Parsed:     parsed,
	}
}

func (c *collector) merge(a Analysis) {
	c.actions.addAll(a.Actions)
	c.paths.addAll(a.Paths)
	c.dynamic.addAll(a.Unresolved)
	c.tokens.addAll(a.Tokens)
}

// command records one simple command given its words, following wrappers
// such as sudo or xargs down to the command they run.
func (c *collector) command(words []string, depth int) {
	for len(words) > 0 {
		name := words[0]
		action := commandName(name)
		if action == "" {
			c.token(name)
			words = words[1:]
			continue
		}
		c.actions.add(action)
		c.token(name)
		rest := words[1:]

		switch {
		case isShell(action):
			if i, ok := shellScriptIndex(rest); ok {
				c.flags(rest[:i])
				if c.lexical {
					c.script(rest[i:], depth+1)
				} else {
					c.script(rest[i:i+1], depth+1)
					c.flags(rest[i+1:])
				}
				return
			}
		case action == "eval":
			c.flags(rest)
			c.script(rest, depth+1)
			return
		case action == "find":
			c.find(rest, depth)
			return
		}

		w, ok := wrappers[action]
		if !ok {
			c.operands(rest)
			return
		}
		next, lookup := c.unwrap(w, rest, depth)
		if lookup {
			// "command -v rm" names rm without running it.
			for _, a := range rest[next:] {
				c.token(a)
			}
			return
		}
		words = rest[next:]
	}
}

// unwrap skips a wrapper's own options and returns the index of the wrapped
// command in args.
func (c *collector) unwrap(w wrapper, args []string, depth int) (int, bool) {
	positional := w.positional
	flags := true
	lookup := false
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case flags && a == "--":
			c.token(a)
			flags = false
		case flags && isFlag(a):
			c.token(a)
			if slices.Contains(w.lookupFlags, a) {
				lookup = true
			}
			if slices.Contains(w.scriptFlags, a) && i+1 < len(args) {
				i++
				c.token(args[i])
				c.script(args[i:i+1], depth+1)
				continue
			}
			if slices.Contains(w.argFlags, a) && i+1 < len(args) {
				i++
				c.token(args[i])
			}
		case w.assignments && isAssignment(a):
			c.token(a)
		case positional > 0:
			c.token(a)
			positional--
		default:
			return i, lookup
		}
	}
	return len(args), lookup
}

// find treats -exec style primaries as nested commands.
func (c *collector) find(args []string, depth int) {
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch a {
		case "-exec", "-execdir", "-ok", "-okdir":
			c.token(a)
			end := i + 1
			for end < len(args) && args[end] != ";" && args[end] != "+" {
				end++
			}
			c.command(args[i+1:end], depth)
			if end < len(args) {
				c.token(args[end])
			}
			i = end
		default:
			c.token(a)
			if !isFlag(a) {
				c.paths.add(a)
			}
		}
	}
}

// operands records a command's arguments. Non-flag words are paths; "--"
// ends option parsing.
func (c *collector) operands(args []string) {
	flags := true
	for _, a := range args {
		c.token(a)
		if flags && a == "--" {
			flags = false
			continue
		}
		if flags && isFlag(a) {
			continue
		}
		c.paths.add(a)
	}
}

func (c *collector) flags(args []string) {
	for _, a := range args {
		c.token(a)
	}
}

// script follows a nested script to the depth limit. Beyond it every word
// is treated as a potential action.
func (c *collector) script(words []string, depth int) {
	if len(words) == 0 {
		return
	}
	if depth > maxDepth {
		for _, w := range words {
			for _, f := range strings.Fields(w) {
				c.actions.add(commandName(f))
				c.token(f)
			}
		}
		return
	}
	if c.lexical {
		c.command(words, depth)
		return
	}
	src := strings.Join(words, " ")
	if err := c.parse(src, depth); err != nil {
		logger.Debug("nested script unparseable, scanning lexically", "depth", depth, "error", err)
		nested := collector{lexical: true}
		nested.scan(src, depth)
		c.merge(nested.analysis(false))
	}
}

// token adds a word to the token set. Flags also contribute their de-dashed
// form and path-like words their basename.
func (c *collector) token(w string) {
	c.tokens.add(w)
	if isFlag(w) {
		bare := strings.TrimLeft(w, "-")
		c.tokens.add(bare)
		if name, _, ok := strings.Cut(bare, "="); ok {
			c.tokens.add(name)
		}
	}
	if strings.Contains(w, "/") {
		c.tokens.add(commandName(w))
	}
}

// commandName reduces a command word to its basename: "/usr/bin/rm" is "rm".
func commandName(w string) string {
	w = strings.TrimRight(strings.TrimSpace(w), "/")
	if i := strings.LastIndexByte(w, '/'); i >= 0 {
		w = w[i+1:]
	}
	return strings.ToLower(w)
}

func isFlag(w string) bool {
	return len(w) > 1 && w[0] == '-'
}

// isAssignment reports whether w has the form NAME=value.
func isAssignment(w string) bool {
	name, _, ok := strings.Cut(w, "=")
	if !ok || name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
