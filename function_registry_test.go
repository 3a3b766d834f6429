package paramgrid

import (
	"slices"
	"strings"
	"testing"
)

func TestFunctionRegistryRegister(t *testing.T) {
	noop := func(...any) (any, error) { return nil, nil }
	cases := []struct {
		name    string
		fn      Function
		wantErr string
	}{
		{name: "indexed", fn: noop},
		{name: "", fn: noop, wantErr: "not an identifier"},
		{name: "cap-rate", fn: noop, wantErr: "not an identifier"},
		{name: "2x", fn: noop, wantErr: "not an identifier"},
		{name: "value", fn: noop, wantErr: "record binding"},
		{name: "call", fn: noop, wantErr: "record binding"},
		{name: "nil_fn", wantErr: "is nil"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := NewFunctionRegistry().Register(tc.name, tc.fn)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}

	r := NewFunctionRegistry()
	if err := r.Register("cap", noop); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := r.Register("cap", noop); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}

func TestFunctionRegistryCloneAndDispatch(t *testing.T) {
	r := NewFunctionRegistry()
	_ = r.Register("double", func(args ...any) (any, error) { return args[0].(float64) * 2, nil })
	clone := r.Clone()
	_ = r.Register("half", func(args ...any) (any, error) { return args[0].(float64) / 2, nil })

	if !slices.Equal(clone.Names(), []string{"double"}) {
		t.Fatalf("clone should not see later registrations, got %v", clone.Names())
	}
	if !slices.Equal(r.Names(), []string{"double", "half"}) {
		t.Fatalf("expected sorted names, got %v", r.Names())
	}
	out, err := r.dispatch("half", 3.0)
	if err != nil || out != 1.5 {
		t.Fatalf("expected 1.5, got %v err=%v", out, err)
	}
	if _, err := r.dispatch(); err == nil {
		t.Fatalf("expected call without a name to fail")
	}
	if _, err := r.dispatch(1, 2); err == nil {
		t.Fatalf("expected non-string name to fail")
	}
	if _, err := r.Call("missing"); err == nil {
		t.Fatalf("expected unknown helper to fail")
	}
	var empty *FunctionRegistry
	if _, err := empty.Call("double"); err == nil {
		t.Fatalf("expected nil registry to fail")
	}
}

func TestRuleValidatorRejectsBadFunctionName(t *testing.T) {
	_, err := NewRuleValidator([]Rule{{Expr: "true"}}, WithRuleFunction("state", func(...any) (any, error) { return true, nil }))
	if err == nil || !strings.Contains(err.Error(), "record binding") {
		t.Fatalf("expected reserved name error, got %v", err)
	}
}
