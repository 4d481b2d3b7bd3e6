package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemory_SetGetDelete(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("Expected ErrMiss for empty cache, got %v", err)
	}

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Failed to set: %v", err)
	}

	data, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if string(data) != "v" {
		t.Errorf("Expected 'v', got '%s'", data)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("Expected ErrMiss after delete, got %v", err)
	}
}

func TestMemory_Expiry(t *testing.T) {
	c := NewMemory()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Set(ctx, "k", []byte("v"), 10*time.Second)

	now = now.Add(9 * time.Second)
	if _, err := c.Get(ctx, "k"); err != nil {
		t.Errorf("Expected hit before expiry, got %v", err)
	}

	now = now.Add(time.Second)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("Expected ErrMiss at expiry, got %v", err)
	}
}

func TestMemory_ReturnsCopies(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	src := []byte("abc")
	c.Set(ctx, "k", src, 0)
	src[0] = 'x'

	data, _ := c.Get(ctx, "k")
	if string(data) != "abc" {
		t.Errorf("Expected stored copy 'abc', got '%s'", data)
	}
}

func TestNoop(t *testing.T) {
	var c Cache = Noop{}
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrMiss) {
		t.Errorf("Expected ErrMiss from noop cache, got %v", err)
	}
}
