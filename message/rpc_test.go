package message

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCall(t *testing.T) {
	full := []any{48, 7814135, Dict{}, "com.myapp.user.new", []any{"johnny"}, Dict{"firstname": "John", "surname": "Doe"}}

	t.Run("unmarshal each arity", func(t *testing.T) {
		for _, n := range []int{4, 5, 6} {
			got, err := UnmarshalCall(full[:n])
			if err != nil {
				t.Fatalf("length %d: UnmarshalCall failed: %v", n, err)
			}
			if got.Procedure != "com.myapp.user.new" {
				t.Errorf("length %d: unexpected procedure %s", n, got.Procedure)
			}
			if len(got.Marshal()) != n {
				t.Errorf("length %d: re-marshaled to %d elements", n, len(got.Marshal()))
			}
		}
	})

	t.Run("out of range lengths", func(t *testing.T) {
		for _, wire := range [][]any{full[:3], append(append([]any{}, full...), "extra")} {
			if _, err := UnmarshalCall(wire); !errors.Is(err, ErrInvalidLength) {
				t.Errorf("length %d: expected ErrInvalidLength, got %v", len(wire), err)
			}
		}
	})

	t.Run("kwargs must be a dictionary", func(t *testing.T) {
		wire := []any{48, 1, Dict{}, "com.myapp.proc", []any{}, []any{}}
		if _, err := UnmarshalCall(wire); !errors.Is(err, ErrInvalidField) {
			t.Errorf("expected ErrInvalidField, got %v", err)
		}
	})
}

func TestResult(t *testing.T) {
	result := NewResult(7814135, nil, List{30}, nil)
	want := []any{50, uint64(7814135), Dict{}, List{30}}
	if diff := cmp.Diff(want, result.Marshal()); diff != "" {
		t.Errorf("wire mismatch (-want +got):\n%s", diff)
	}

	got, err := UnmarshalResult([]any{50, 7814135, Dict{}})
	if err != nil {
		t.Fatalf("UnmarshalResult failed: %v", err)
	}
	if got.Args != nil || got.Kwargs != nil {
		t.Errorf("expected no payload, got %v %v", got.Args, got.Kwargs)
	}
}

func TestRegisterFamily(t *testing.T) {
	register := NewRegister(25349185, nil, "com.myapp.myprocedure1")
	if diff := cmp.Diff([]any{64, uint64(25349185), Dict{}, "com.myapp.myprocedure1"}, register.Marshal()); diff != "" {
		t.Errorf("register wire mismatch (-want +got):\n%s", diff)
	}

	registered, err := UnmarshalRegistered([]any{65, 25349185, 2103333224})
	if err != nil {
		t.Fatalf("UnmarshalRegistered failed: %v", err)
	}
	if registered.RegistrationID != 2103333224 {
		t.Errorf("expected registration 2103333224, got %d", registered.RegistrationID)
	}

	unregister, err := UnmarshalUnregister([]any{66, 788923562, 2103333224})
	if err != nil {
		t.Fatalf("UnmarshalUnregister failed: %v", err)
	}
	if unregister.RequestID != 788923562 || unregister.RegistrationID != 2103333224 {
		t.Errorf("unexpected ids: %+v", unregister)
	}

	unregistered, err := UnmarshalUnregistered([]any{67, 788923562})
	if err != nil {
		t.Fatalf("UnmarshalUnregistered failed: %v", err)
	}
	if unregistered.RequestID != 788923562 {
		t.Errorf("expected request 788923562, got %d", unregistered.RequestID)
	}

	if _, err := UnmarshalRegistered([]any{66, 1, 2}); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestInvocationAndYield(t *testing.T) {
	inv := NewInvocation(6131533, 9823526, nil, List{"Hello, world!"}, nil)
	want := []any{68, uint64(6131533), uint64(9823526), Dict{}, List{"Hello, world!"}}
	if diff := cmp.Diff(want, inv.Marshal()); diff != "" {
		t.Errorf("invocation wire mismatch (-want +got):\n%s", diff)
	}

	yield, err := UnmarshalYield([]any{70, 6131533, Dict{}, []any{}, Dict{"userid": 123, "karma": 10}})
	if err != nil {
		t.Fatalf("UnmarshalYield failed: %v", err)
	}
	if yield.RequestID != 6131533 {
		t.Errorf("expected request 6131533, got %d", yield.RequestID)
	}
	if yield.Kwargs["karma"] != 10 {
		t.Errorf("unexpected kwargs %v", yield.Kwargs)
	}
	if len(yield.Marshal()) != 5 {
		t.Errorf("expected length 5, got %d", len(yield.Marshal()))
	}
}
