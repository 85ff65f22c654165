package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: New(PhaseLift, KindExcessiveEnd).
				FuncIdx(3).InstrIdx(12).Detail("unmatched end").Build(),
			contains: []string{"[lift]", "excessive_end", "func 3", "instr 12", "unmatched end"},
		},
		{
			name: "minimal error",
			err:  New(PhaseLink, KindLinkError).Build(),
			contains: []string{"[link]", "link_error"},
		},
		{
			name: "error with cause",
			err: New(PhaseCompile, KindCompilerError).
				Detail("rustc failed").Cause(stderrors.New("exit status 1")).Build(),
			contains: []string{"[compile]", "compiler_error", "rustc failed", "exit status 1"},
		},
		{
			name: "dsl position",
			err:  ParseError(4, 12, "unexpected token"),
			contains: []string{"[parse]", "parse_error", "line 4:12", "unexpected token"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.err.Error()
			for _, want := range tc.contains {
				if !strings.Contains(got, want) {
					t.Errorf("Error() = %q, want substring %q", got, want)
				}
			}
		})
	}
}

func TestErrorIs(t *testing.T) {
	a := MissingSignature("ret_i32_arg_i32")
	b := MissingSignature("ret_f64_arg_")
	if !stderrors.Is(a, b) {
		t.Errorf("expected errors with the same Phase/Kind to match Is()")
	}
	c := AttemptToInstrumentImport(0)
	if stderrors.Is(a, c) {
		t.Errorf("expected errors with different Kind to not match Is()")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := New(PhaseCompile, KindCompilerError).Cause(cause).Build()
	if stderrors.Unwrap(err) != cause {
		t.Errorf("Unwrap() did not return the wrapped cause")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	if got := AttemptToInstrumentImport(5); got.Phase != PhaseRewrite || got.Kind != KindAttemptToInstrumentImport {
		t.Errorf("AttemptToInstrumentImport: unexpected phase/kind: %+v", got)
	}
	if got := MissingSignature("ret_i32_arg_i32_i32"); got.Signature != "ret_i32_arg_i32_i32" {
		t.Errorf("MissingSignature: signature not recorded: %+v", got)
	}
	if got := LinkError("call_base_ret_i32_arg_i32"); got.Symbol == "" {
		t.Errorf("LinkError: symbol not recorded: %+v", got)
	}
}
