// Package envelope serializes ExecResult for the outer assistant loop
// and recognizes the envelope (or a raw patch echo) coming back in.
// Everything in this package is pure and synchronous; it never touches
// the network.
package envelope

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/nkkko/sandboxcore/internal/execresult"
)

// Metadata is the envelope's metadata object.
type Metadata struct {
	ExitCode        int     `json:"exit_code"`
	DurationSeconds float64 `json:"duration_seconds"`
	Error           string  `json:"error,omitempty"`
}

// Envelope is the tool-call output shape exec/applyPatch results are
// serialized as for the outer assistant.
type Envelope struct {
	Output   string   `json:"output"`
	Metadata Metadata `json:"metadata"`
}

// Encode builds the wire envelope for one ExecResult.
func Encode(res execresult.Result, duration time.Duration) Envelope {
	meta := Metadata{
		ExitCode:        res.ExitCode,
		DurationSeconds: duration.Seconds(),
	}
	if res.ExitCode != 0 {
		meta.Error = res.Stderr
	}
	return Envelope{Output: res.Stdout, Metadata: meta}
}

// Marshal encodes res as the JSON envelope text.
func Marshal(res execresult.Result, duration time.Duration) (string, error) {
	raw, err := json.Marshal(Encode(res, duration))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

const maxUnparsedEcho = 100

// rawPatchPrefixes are recognized as a successful raw patch echo when a
// consumer sends back plain text instead of a JSON envelope.
var rawPatchPrefixes = []string{"*** Begin Patch", "*** Add File:", "Created "}

// Decode parses text as either a JSON envelope or a recognized raw patch
// echo, falling back to a parse-failure envelope for anything else. This
// is the leniency half of the envelope contract: the core tolerates a
// consumer that forgot to wrap its reply.
func Decode(text string) Envelope {
	var env Envelope
	if err := json.Unmarshal([]byte(text), &env); err == nil && env.Output != "" {
		return env
	}

	for _, prefix := range rawPatchPrefixes {
		if strings.HasPrefix(text, prefix) {
			return Envelope{Output: text, Metadata: Metadata{ExitCode: 0}}
		}
	}

	snippet := text
	if len(snippet) > maxUnparsedEcho {
		snippet = snippet[:maxUnparsedEcho] + "…"
	}
	return Envelope{
		Output:   "Failed to parse output: " + snippet,
		Metadata: Metadata{ExitCode: 1},
	}
}
