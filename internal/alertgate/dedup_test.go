package alertgate

import (
	"context"
	"testing"
	"time"
)

func TestInProcessDedup_SuppressesWithinTTL(t *testing.T) {
	c := NewInProcessDedup()
	ctx := context.Background()

	seen, err := c.SeenRecently(ctx, "k1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Fatal("expected first observation to not be 'seen'")
	}

	seen, err = c.SeenRecently(ctx, "k1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if !seen {
		t.Fatal("expected second observation within TTL to be 'seen'")
	}
}

func TestInProcessDedup_ExpiresAfterTTL(t *testing.T) {
	c := NewInProcessDedup()
	ctx := context.Background()

	if _, err := c.SeenRecently(ctx, "k1", time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)

	seen, err := c.SeenRecently(ctx, "k1", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if seen {
		t.Fatal("expected key to have expired")
	}
}

func TestInProcessDedup_KeysIndependent(t *testing.T) {
	c := NewInProcessDedup()
	ctx := context.Background()
	c.SeenRecently(ctx, "a", time.Minute)

	seen, _ := c.SeenRecently(ctx, "b", time.Minute)
	if seen {
		t.Fatal("expected distinct keys to be independent")
	}
}
