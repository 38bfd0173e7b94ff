// Package archive offloads oversized stdout/stderr/patch bodies to
// durable blob storage, keyed by the owning ledger entry's ULID, so the
// in-memory ExecResult stays bounded. Archiving is best-effort: when
// unconfigured or unreachable, callers keep the full body inline exactly
// as they would without this package.
package archive

import "context"

// DefaultThreshold is the body size, in bytes, above which a transcript
// is offloaded instead of kept inline.
const DefaultThreshold = 256 * 1024

// Archiver stores and retrieves oversized transcript bodies.
type Archiver interface {
	// Store uploads body under a key derived from the ledger entry id and
	// stream name (stdout/stderr/patch), returning a short reference.
	Store(ctx context.Context, ledgerID, stream string, body []byte) (ref string, err error)

	// Fetch retrieves a previously archived body by reference.
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// MaybeArchive offloads body when it exceeds threshold and archiver is
// non-nil, returning a reference string in place of the body and true.
// On any archiver error, or when archiving is unconfigured/unnecessary,
// it returns the original body unchanged and false. An archiver error is
// not reported to the caller, which keeps the result inline.
func MaybeArchive(ctx context.Context, archiver Archiver, ledgerID, stream, body string, threshold int) (string, bool) {
	if archiver == nil || len(body) <= threshold {
		return body, false
	}
	ref, err := archiver.Store(ctx, ledgerID, stream, []byte(body))
	if err != nil {
		return body, false
	}
	return ref, true
}
