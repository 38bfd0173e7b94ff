// Package patch implements a minimal add/delete patch grammar and
// applies it against a remote workspace through the Path Mapper and the
// Remote Client's filesystem binding. Individual file failures are
// appended to a per-file log and never abort the whole patch
// (PerFilePatchError); only a malformed top/bottom marker aborts the
// call outright (PatchFormatError).
package patch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nkkko/sandboxcore/internal/errs"
	"github.com/nkkko/sandboxcore/internal/execresult"
	"github.com/nkkko/sandboxcore/internal/pathmap"
	"github.com/nkkko/sandboxcore/internal/remoteclient"
)

const (
	beginMarker = "*** Begin Patch"
	endMarker   = "*** End Patch"

	addPrefix    = "*** Add File: "
	deletePrefix = "*** Delete File: "
	updatePrefix = "*** Update File: "
	endOfFile    = "*** End of File"
)

// OpKind distinguishes the two mutating operations this grammar supports.
type OpKind int

const (
	OpAdd OpKind = iota
	OpDelete
)

// Op is one parsed patch operation.
type Op struct {
	Kind    OpKind
	Path    string
	Content string // only meaningful for OpAdd
}

// Parse validates the top/bottom markers and extracts the Add/Delete
// operations from text. Update File blocks are recognized only as
// terminators for a preceding Add and contribute no operation.
func Parse(text string) ([]Op, error) {
	lines := strings.Split(text, "\n")
	// Trailing newline produces a final empty element; trim it so the
	// last real line is still checked against the end marker.
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) < 2 {
		return nil, &errs.PatchFormatError{Msg: "patch is too short to contain begin/end markers"}
	}
	if lines[0] != beginMarker {
		return nil, &errs.PatchFormatError{Msg: fmt.Sprintf("first line must be %q", beginMarker)}
	}
	if lines[len(lines)-1] != endMarker {
		return nil, &errs.PatchFormatError{Msg: fmt.Sprintf("last line must be %q", endMarker)}
	}

	var ops []Op
	var current *Op
	var content strings.Builder

	flush := func() {
		if current != nil {
			current.Content = content.String()
			ops = append(ops, *current)
			current = nil
			content.Reset()
		}
	}

	for _, line := range lines[1 : len(lines)-1] {
		switch {
		case strings.HasPrefix(line, addPrefix):
			flush()
			path := strings.TrimPrefix(line, addPrefix)
			current = &Op{Kind: OpAdd, Path: path}
		case strings.HasPrefix(line, deletePrefix):
			flush()
			path := strings.TrimPrefix(line, deletePrefix)
			ops = append(ops, Op{Kind: OpDelete, Path: path})
		case strings.HasPrefix(line, updatePrefix), line == endOfFile:
			flush()
		case current != nil && strings.HasPrefix(line, "+"):
			content.WriteString(strings.TrimPrefix(line, "+"))
			content.WriteString("\n")
		default:
			// Unrecognized line inside an add block or between
			// operations; ignored, matching the grammar's silence on
			// anything outside the enumerated directives.
		}
	}
	flush()

	return ops, nil
}

// Applier applies parsed patches against a workspace.
type Applier struct {
	mapper *pathmap.Mapper
	ws     remoteclient.Workspace
}

// New builds an Applier bound to mapper and the active workspace.
func New(mapper *pathmap.Mapper, ws remoteclient.Workspace) *Applier {
	return &Applier{mapper: mapper, ws: ws}
}

// Apply parses and applies patchText, returning an ExecResult that is
// always exitCode 0 for a well-formed patch, even if individual file
// operations failed (those are reported as lines in stdout).
func (a *Applier) Apply(ctx context.Context, patchText string) execresult.Result {
	ops, err := Parse(patchText)
	if err != nil {
		return execresult.Result{Stdout: "", Stderr: err.Error(), ExitCode: 1}
	}

	var log strings.Builder
	for _, op := range ops {
		switch op.Kind {
		case OpAdd:
			a.applyAdd(ctx, op, &log)
		case OpDelete:
			a.applyDelete(ctx, op, &log)
		}
	}

	stdout := log.String()
	if stdout == "" {
		stdout = "Patch applied successfully"
	}
	return execresult.Result{Stdout: stdout, Stderr: "", ExitCode: 0}
}

func (a *Applier) applyAdd(ctx context.Context, op Op, log *strings.Builder) {
	remote := a.mapper.Map(op.Path)
	fs := a.ws.FS()

	_ = fs.CreateFolder(ctx, filepath.Dir(remote))

	if err := fs.UploadFile(ctx, remote, []byte(op.Content)); err != nil {
		fmt.Fprintf(log, "Error creating %s: %v\n", op.Path, &errs.PerFilePatchError{Path: op.Path, Op: "add", Err: err})
		return
	}

	if VerifyFileExists(ctx, a.ws, remote) {
		fmt.Fprintf(log, "Created %s\n", op.Path)
		return
	}

	if err := EchoFallback(ctx, a.ws, remote, op.Content); err != nil {
		fmt.Fprintf(log, "Error creating %s: %v\n", op.Path, &errs.PerFilePatchError{Path: op.Path, Op: "add", Err: err})
		return
	}
	fmt.Fprintf(log, "Created %s (using echo fallback)\n", op.Path)
}

func (a *Applier) applyDelete(ctx context.Context, op Op, log *strings.Builder) {
	remote := a.mapper.Map(op.Path)
	if err := a.ws.FS().DeleteFile(ctx, remote); err != nil {
		fmt.Fprintf(log, "Error deleting %s: %v\n", op.Path, &errs.PerFilePatchError{Path: op.Path, Op: "delete", Err: err})
		return
	}
	fmt.Fprintf(log, "Deleted %s\n", op.Path)
}

// VerifyFileExists runs a test -f probe against remote on ws, the same
// verification step the Patch Applier's Add operation uses to confirm
// an upload actually landed. Any exec failure is treated as absence.
func VerifyFileExists(ctx context.Context, ws remoteclient.Workspace, remote string) bool {
	cmd := fmt.Sprintf(`test -f "%s" && echo exists || echo missing`, remote)
	res, err := ws.Process().ExecuteCommand(ctx, cmd, "", nil, 10)
	if err != nil {
		return false
	}
	return strings.Contains(res.Output, "exists")
}

// EchoFallback rewrites remote via a shell echo redirect, the fallback
// used when a filesystem upload reports success but VerifyFileExists
// still finds nothing on disk.
func EchoFallback(ctx context.Context, ws remoteclient.Workspace, remote, content string) error {
	escaped := strings.ReplaceAll(content, "'", `'\''`)
	cmd := fmt.Sprintf(`echo '%s' > "%s"`, escaped, remote)
	_, err := ws.Process().ExecuteCommand(ctx, cmd, "", nil, 10)
	return err
}
