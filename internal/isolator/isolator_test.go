package isolator

import (
	"context"
	"errors"
	"testing"
)

func TestPolicyString(t *testing.T) {
	if Single.String() != "single" {
		t.Fatalf("Single.String() = %q", Single.String())
	}
	if Fork.String() != "fork" {
		t.Fatalf("Fork.String() = %q", Fork.String())
	}
}

func TestRunSingleCallsWorkInline(t *testing.T) {
	iso := &Isolator{Policy: Single}
	called := false
	err := iso.Run(context.Background(), nil, nil, func(ctx context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !called {
		t.Fatalf("expected work to be invoked under Single policy")
	}
}

func TestRunSinglePropagatesWorkError(t *testing.T) {
	iso := &Isolator{Policy: Single}
	wantErr := errors.New("boom")
	err := iso.Run(context.Background(), nil, nil, func(ctx context.Context) error {
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("Run err = %v, want %v", err, wantErr)
	}
}
