package httpapi

import (
	"context"
	"testing"
	"time"
)

type ctxKey struct{}

func TestJoinContextsCancelsOnEither(t *testing.T) {
	a, cancelA := context.WithCancel(context.WithValue(context.Background(), ctxKey{}, "v"))
	defer cancelA()
	b, cancelB := context.WithCancel(context.Background())
	ctx, cancel := joinContexts(a, b)
	defer cancel()
	if ctx.Value(ctxKey{}) != "v" {
		t.Fatalf("values of the first context must be kept")
	}
	cancelB()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatalf("joined context not canceled by second parent")
	}

	a2, cancelA2 := context.WithCancel(context.Background())
	ctx2, cancel2 := joinContexts(a2, context.Background())
	defer cancel2()
	cancelA2()
	select {
	case <-ctx2.Done():
	case <-time.After(time.Second):
		t.Fatalf("joined context not canceled by first parent")
	}
}

func TestSetBaseContextNilResets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	SetBaseContext(ctx)
	cancel()
	SetBaseContext(nil)
	if serverBaseCtx.Err() != nil {
		t.Fatalf("nil base context not reset to Background")
	}
}
