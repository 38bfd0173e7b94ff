// Package prepare turns an argv into the single shell string the remote
// one-shot/session process API accepts: simple-filename rooting, shell
// wrapping for patterns that need shell semantics, and the targeted
// rewrites of internal/rewrite, finished off with a "cd <workdir> &&"
// prefix. Prepare must not change program semantics for commands it does
// not recognize; every rewrite is a no-op unless its pattern matches.
package prepare

import (
	"regexp"
	"strings"

	"github.com/nkkko/sandboxcore/internal/pathmap"
	"github.com/nkkko/sandboxcore/internal/rewrite"
)

var simpleFilenamePattern = regexp.MustCompile(`^(rm|ls|cat|chmod|python|python3|head|tail|mkdir)\s+([^/\\\s-]+)(\s|$)`)

var bareTokens = []string{"echo", "which", "find", "grep", "nohup"}

const shWrapPrefix = `/bin/sh -c '`

// Preparer builds prepared command strings against a fixed Path Mapper.
type Preparer struct {
	mapper *pathmap.Mapper
}

// New creates a Preparer backed by mapper, used to root simple filenames
// and to resolve the working-directory prefix.
func New(mapper *pathmap.Mapper) *Preparer {
	return &Preparer{mapper: mapper}
}

// Prepare joins cmd and applies rooting/wrapping/rewrites, then prepends
// a cd to the remote working directory (mapped from workdir, or the
// workspace root when workdir is empty).
func (p *Preparer) Prepare(cmd []string, workdir string) string {
	s := strings.Join(cmd, " ")
	s = rootSimpleFilename(s, p.mapper.RootDir())
	s = applyRewritesAndWrapping(s)

	remoteWorkdir := p.mapper.RootDir()
	if workdir != "" {
		remoteWorkdir = p.mapper.Map(workdir)
	}
	return "cd " + remoteWorkdir + " && " + s
}

func rootSimpleFilename(s, rootDir string) string {
	m := simpleFilenamePattern.FindStringSubmatchIndex(s)
	if m == nil {
		return s
	}
	tokenStart, tokenEnd := m[4], m[5]
	token := s[tokenStart:tokenEnd]
	rooted := rootDir + "/" + token
	return s[:tokenStart] + rooted + s[tokenEnd:]
}

func applyRewritesAndWrapping(s string) string {
	if strings.HasPrefix(s, "/bin/sh -c") {
		// Already wrapped by a previous preparation pass; idempotent no-op.
		return s
	}

	facts := rewrite.Facts(s)
	if rewritten, ok := rewrite.Apply(facts); ok {
		return rewritten
	}

	if needsGenericWrap(s) {
		return shWrapPrefix + rewrite.EscapeSingleQuotes(s) + "'"
	}

	return s
}

func needsGenericWrap(s string) bool {
	if containsShellOperator(s) {
		return true
	}
	if strings.ContainsAny(s, `"'`+"`$") {
		return true
	}
	for _, tok := range bareTokens {
		if hasToken(s, tok) {
			return true
		}
	}
	first, _, _ := strings.Cut(s, " ")
	if (first == "python" || first == "python3") && (hasToken(s, "-c") || hasToken(s, "-m")) {
		return true
	}
	return false
}

func containsShellOperator(s string) bool {
	if strings.Contains(s, ">") || strings.Contains(s, "|") || strings.Contains(s, "&&") || strings.Contains(s, ";") {
		return true
	}
	return strings.Contains(s, " & ") || strings.HasSuffix(s, " &")
}

func hasToken(s, tok string) bool {
	for _, t := range strings.Fields(s) {
		if t == tok {
			return true
		}
	}
	return false
}
