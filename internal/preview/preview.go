// Package preview implements the Response Post-Processor: detecting a
// web-server launch from the prepared command and stdout,
// resolving the port it's likely bound to, and annotating the result
// with a preview banner that survives truncation by also landing a
// short summary line in stderr.
package preview

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nkkko/sandboxcore/internal/remoteclient"
)

var serverSubstrings = []string{
	"flask run", "node ", "npm start", "npm run dev", "npx",
	"rails server", "rails s", "server", "serve", "express",
	"http-server", "live-server",
}

var appPyPattern = regexp.MustCompile(`(^|[/\s])app\.py(\s|$)`)

// DetectServer reports whether the prepared command looks like it
// launches a long-running web server.
func DetectServer(cmd string) bool {
	lower := strings.ToLower(cmd)
	if launchesAppPy(cmd) {
		return true
	}
	for _, s := range serverSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// launchesAppPy reports whether cmd runs python/python3 anywhere in it
// (not only as the first word, since the prepared command starts with a
// "cd <dir> &&" prefix) together with an app.py argument.
func launchesAppPy(cmd string) bool {
	if !appPyPattern.MatchString(cmd) {
		return false
	}
	for _, tok := range strings.Fields(strings.ToLower(cmd)) {
		if tok == "python" || tok == "python3" {
			return true
		}
	}
	return false
}

var (
	runningOnPattern = regexp.MustCompile(`Running on https?://[^:]+:(\d+)`)
	listeningPattern = regexp.MustCompile(`(?i)(listening|started|running|server).*?(?:port|:)\s*(\d+)`)
	portFlagPattern  = regexp.MustCompile(`(?:--port[= ]|-p\s+)(\d+)`)
)

// ResolvePort applies the port resolution order against the prepared
// command and the remote's stdout.
func ResolvePort(cmd, stdout string) int {
	if m := runningOnPattern.FindStringSubmatch(stdout); m != nil {
		if p, err := strconv.Atoi(m[1]); err == nil {
			return p
		}
	}
	if m := listeningPattern.FindStringSubmatch(stdout); m != nil {
		if p, err := strconv.Atoi(m[2]); err == nil {
			return p
		}
	}
	if m := portFlagPattern.FindStringSubmatch(cmd); m != nil {
		if p, err := strconv.Atoi(m[1]); err == nil {
			return p
		}
	}
	return defaultPortFor(cmd)
}

func defaultPortFor(cmd string) int {
	lower := strings.ToLower(cmd)
	switch {
	case strings.Contains(lower, "flask"), launchesAppPy(cmd):
		return 5000
	case strings.Contains(lower, "rails"), strings.Contains(lower, "next"), strings.Contains(lower, "vite"):
		return 3000
	default:
		return 8000
	}
}

// Resolver annotates exec results for commands that look like server
// launches. GetPreviewLink is expected to be the active workspace's
// binding; it may return remoteclient.ErrNotSupported, in which case the
// resolver synthesizes a URL.
type Resolver struct {
	WorkspaceID    string
	GetPreviewLink func(ctx context.Context, port int) (*remoteclient.PreviewLink, error)
}

// Annotate inspects cmd/stdout and, if it looks like a server launch,
// returns stdout/stderr with a preview banner appended. When cmd does
// not look like a server, stdout/stderr are returned unchanged.
func (r *Resolver) Annotate(ctx context.Context, cmd, stdout, stderr string) (string, string) {
	if !DetectServer(cmd) {
		return stdout, stderr
	}

	port := ResolvePort(cmd, stdout)
	link, err := r.GetPreviewLink(ctx, port)
	if err != nil || link == nil {
		link = r.synthesize(port)
	}

	banner := fmt.Sprintf("====== PREVIEW LINK ======\n%s\n=========================", link.URL)
	newStdout := stdout
	if newStdout != "" {
		newStdout += "\n"
	}
	newStdout += banner

	newStderr := stderr
	if newStderr != "" {
		newStderr += "\n"
	}
	newStderr += fmt.Sprintf("PREVIEW LINK: %s\nLOCAL ACCESS: http://localhost:%d", link.URL, port)

	return newStdout, newStderr
}

func (r *Resolver) synthesize(port int) *remoteclient.PreviewLink {
	id := r.WorkspaceID
	prefix := id
	if len(id) > 6 {
		prefix = id[:6]
	}
	return &remoteclient.PreviewLink{
		URL:   fmt.Sprintf("https://%d-%s.%s.daytona.work", port, id, prefix),
		Token: "auth-required",
	}
}
