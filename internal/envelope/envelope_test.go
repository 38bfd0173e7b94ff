package envelope

import (
	"strings"
	"testing"
	"time"

	"github.com/nkkko/sandboxcore/internal/execresult"
)

func TestMarshalSuccess(t *testing.T) {
	text, err := Marshal(execresult.Success("hello"), 2*time.Second)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(text, `"output":"hello"`) || !strings.Contains(text, `"exit_code":0`) {
		t.Errorf("unexpected envelope: %s", text)
	}
}

func TestMarshalFailureCarriesError(t *testing.T) {
	text, err := Marshal(execresult.Failure("boom"), time.Second)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(text, `"error":"boom"`) {
		t.Errorf("expected error field in envelope: %s", text)
	}
}

func TestDecodeValidEnvelope(t *testing.T) {
	env := Decode(`{"output":"ok","metadata":{"exit_code":0,"duration_seconds":1.5}}`)
	if env.Output != "ok" || env.Metadata.ExitCode != 0 {
		t.Errorf("unexpected decode: %+v", env)
	}
}

func TestDecodeRawPatchEcho(t *testing.T) {
	env := Decode("*** Begin Patch\n*** Add File: a.py\n+x\n*** End Patch")
	if env.Metadata.ExitCode != 0 {
		t.Errorf("expected exit code 0 for recognized patch echo, got %+v", env)
	}
}

func TestDecodeCreatedEcho(t *testing.T) {
	env := Decode("Created hello.py")
	if env.Metadata.ExitCode != 0 {
		t.Errorf("expected exit code 0 for Created echo, got %+v", env)
	}
}

func TestDecodeUnrecognizedFallsBackToFailure(t *testing.T) {
	env := Decode("gibberish that is not json and not a patch echo")
	if env.Metadata.ExitCode != 1 || !strings.HasPrefix(env.Output, "Failed to parse output:") {
		t.Errorf("unexpected decode: %+v", env)
	}
}
