package cache

import (
	"testing"
	"time"
)

func TestCache_Expiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	c := New[string](time.Hour, 0)
	defer c.Close()
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("Get = %q, %v", v, ok)
	}

	now = now.Add(2 * time.Hour)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry returned")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry kept, len %d", c.Len())
	}
}

func TestCache_Cleanup(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	c := New[int](time.Minute, 0)
	c.now = func() time.Time { return now }
	c.Set("a", 1)
	now = now.Add(time.Hour)
	c.Set("b", 2)

	c.cleanup()
	if c.Len() != 1 {
		t.Fatalf("len = %d", c.Len())
	}
	c.Close()
	c.Close()
}

func TestKey(t *testing.T) {
	t.Parallel()

	if Key("fr", "ab") == Key("fra", "b") {
		t.Error("key parts are not separated")
	}
	if Key("fr", "x") != Key("fr", "x") {
		t.Error("key is not stable")
	}
}
