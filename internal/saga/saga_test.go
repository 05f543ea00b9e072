package saga

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestRunCompensatesCompletedStepsInReverse(t *testing.T) {
	var trail []string
	step := func(name string, fail bool) Step {
		return Step{
			Name: name,
			Do: func(context.Context) error {
				trail = append(trail, "do:"+name)
				if fail {
					return errors.New(name + " broke")
				}
				return nil
			},
			Compensate: func(context.Context) error {
				trail = append(trail, "undo:"+name)
				return nil
			},
		}
	}

	err := New("purchase", step("a", false), step("b", false), step("c", true), step("d", false)).Run(context.Background())

	var sagaErr *Error
	if !errors.As(err, &sagaErr) || sagaErr.Step != "c" {
		t.Fatalf("err = %v, want failure at step c", err)
	}
	want := []string{"do:a", "do:b", "do:c", "undo:b", "undo:a"}
	if !reflect.DeepEqual(trail, want) {
		t.Fatalf("trail = %v, want %v", trail, want)
	}
}

func TestRunKeepsCompensatingAfterCompensationFailure(t *testing.T) {
	cause := errors.New("insufficient")
	undone := false

	err := New("purchase",
		Step{Name: "first", Do: func(context.Context) error { return nil }, Compensate: func(context.Context) error { undone = true; return nil }},
		Step{Name: "second", Do: func(context.Context) error { return nil }, Compensate: func(context.Context) error { return errors.New("release failed") }},
		Step{Name: "third", Do: func(context.Context) error { return cause }},
	).Run(context.Background())

	if !errors.Is(err, cause) {
		t.Fatalf("err = %v, want cause", err)
	}
	var sagaErr *Error
	errors.As(err, &sagaErr)
	if sagaErr.CompensationFailures != 1 {
		t.Fatalf("compensation failures = %d, want 1", sagaErr.CompensationFailures)
	}
	if !undone {
		t.Fatal("first step was not compensated")
	}
}

func TestRunSucceeds(t *testing.T) {
	n := 0
	s := New("noop")
	s.Add(Step{Name: "one", Do: func(context.Context) error { n++; return nil }})
	s.Add(Step{Name: "two", Do: func(context.Context) error { n++; return nil }})
	if err := s.Run(context.Background()); err != nil || n != 2 {
		t.Fatalf("err=%v n=%d", err, n)
	}
}
