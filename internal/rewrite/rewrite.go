// Package rewrite implements the targeted command rewrites of the
// command preparer as a data-driven rule table instead of a cascade of
// inline conditionals. Each rule's applicability is a small boolean
// expression compiled once at package init with expr-lang/expr and
// evaluated against a CommandFacts value. Only the predicate goes
// through the expression engine; the rewritten string is always built
// with plain string handling.
package rewrite

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// CommandFacts describes a joined shell command string for the purpose
// of rule matching. Fields are exported so expr can bind to them
// directly when CommandFacts is used as the evaluation environment.
type CommandFacts struct {
	Raw           string
	Tokens        []string
	First         string
	HasPipe       bool
	HasRedirect   bool
	HasBackground bool
	HasAndAnd     bool
	IsFlaskLaunch bool
}

var flaskAppPattern = regexp.MustCompile(`(^|[/\s])app\.py(\s|$)`)

// Facts computes a CommandFacts from a joined argv string.
func Facts(s string) CommandFacts {
	tokens := strings.Fields(s)
	first := ""
	if len(tokens) > 0 {
		first = tokens[0]
	}

	isFlask := strings.HasPrefix(s, "flask run") ||
		((first == "python" || first == "python3") && flaskAppPattern.MatchString(s))

	return CommandFacts{
		Raw:           s,
		Tokens:        tokens,
		First:         first,
		HasPipe:       strings.Contains(s, "|"),
		HasRedirect:   strings.ContainsAny(s, "><"),
		HasBackground: strings.Contains(s, " & ") || strings.HasSuffix(s, " &"),
		HasAndAnd:     strings.Contains(s, "&&"),
		IsFlaskLaunch: isFlask,
	}
}

// Rule is one row of the rewrite table: a name for diagnostics, a
// compiled predicate, and the rewriter invoked when the predicate holds.
type Rule struct {
	Name    string
	when    *vm.Program
	Rewrite func(CommandFacts) string
}

func mustCompile(name, source string) *vm.Program {
	prog, err := expr.Compile(source, expr.Env(CommandFacts{}), expr.AsBool())
	if err != nil {
		panic(fmt.Sprintf("rewrite: rule %q failed to compile: %v", name, err))
	}
	return prog
}

// Matches evaluates the rule's predicate against facts.
func (r Rule) Matches(facts CommandFacts) bool {
	out, err := expr.Run(r.when, facts)
	if err != nil {
		return false
	}
	b, _ := out.(bool)
	return b
}

// Table is the ordered list of targeted rewrites, evaluated top to
// bottom; the first matching rule wins. New rewrites are added here and
// unit-tested in isolation without touching the preparer's control flow.
var Table = []Rule{
	{
		Name:    "python-dash-c",
		when:    mustCompile("python-dash-c", `(First == "python" || First == "python3") && len(Tokens) >= 2 && Tokens[1] == "-c"`),
		Rewrite: rewritePythonDashC,
	},
	{
		Name:    "timeout",
		when:    mustCompile("timeout", `First == "timeout"`),
		Rewrite: rewriteTimeout,
	},
	{
		Name:    "sleep",
		when:    mustCompile("sleep", `First == "sleep" && !HasAndAnd`),
		Rewrite: rewriteSleep,
	},
	{
		Name:    "nohup",
		when:    mustCompile("nohup", `First == "nohup"`),
		Rewrite: rewriteNohup,
	},
	{
		Name:    "flask",
		when:    mustCompile("flask", `IsFlaskLaunch && !HasBackground`),
		Rewrite: rewriteFlask,
	},
}

// Apply runs the table against facts and returns the first matching
// rule's rewrite, or ("", false) when no rule fires.
func Apply(facts CommandFacts) (string, bool) {
	for _, rule := range Table {
		if rule.Matches(facts) {
			return rule.Rewrite(facts), true
		}
	}
	return "", false
}

// EscapeSingleQuotes escapes ' as '\'' for embedding inside a single
// quoted /bin/sh -c argument.
func EscapeSingleQuotes(s string) string {
	return strings.ReplaceAll(s, `'`, `'\''`)
}

func rewritePythonDashC(f CommandFacts) string {
	interp := f.First
	if interp == "python" {
		interp = "python3"
	}
	code := strings.Join(f.Tokens[2:], " ")
	code = strings.Trim(code, `'"`)
	escaped := strings.ReplaceAll(code, `"`, `\"`)
	return fmt.Sprintf(`/bin/sh -c '%s -c "%s"'`, interp, escaped)
}

var timeoutPattern = regexp.MustCompile(`^timeout\s+(?:-t\s+)?(\d+)\s+(.+)$`)

func rewriteTimeout(f CommandFacts) string {
	m := timeoutPattern.FindStringSubmatch(f.Raw)
	if m == nil {
		return f.Raw
	}
	seconds, rest := m[1], m[2]
	inner := fmt.Sprintf(
		`%s & pid=$!; sleep %s; kill $pid 2>/dev/null || true; wait $pid 2>/dev/null || true`,
		rest, seconds,
	)
	return fmt.Sprintf(`/bin/sh -c '%s'`, EscapeSingleQuotes(inner))
}

func rewriteSleep(f CommandFacts) string {
	return fmt.Sprintf(`/bin/sh -c '%s'`, EscapeSingleQuotes(f.Raw))
}

func rewriteNohup(f CommandFacts) string {
	rest := strings.TrimSpace(strings.TrimPrefix(f.Raw, "nohup"))
	inner := "nohup " + rest
	return fmt.Sprintf(`/bin/sh -c '%s'`, EscapeSingleQuotes(inner))
}

func rewriteFlask(f CommandFacts) string {
	last := f.Raw
	if len(f.Tokens) > 0 {
		last = f.Tokens[len(f.Tokens)-1]
	}
	inner := fmt.Sprintf(
		`cd $(dirname %s); nohup %s > flask.log 2>&1 & echo "Flask app started with PID: $!"`,
		last, f.Raw,
	)
	return fmt.Sprintf(`/bin/sh -c '%s'`, EscapeSingleQuotes(inner))
}
