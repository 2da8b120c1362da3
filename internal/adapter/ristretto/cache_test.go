package ristretto

import (
	"context"
	"testing"
	"time"
)

func newCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(1 << 20)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestSetAndGet(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	val, found, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected found after Set")
	}
	if string(val) != "v" {
		t.Fatalf("expected v, got %s", val)
	}
}

func TestGetMiss(t *testing.T) {
	c := newCache(t)

	_, found, err := c.Get(context.Background(), "nonexistent")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected miss for nonexistent key")
	}
}

func TestDelete(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), time.Minute)
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	_, found, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Fatal("expected miss after Delete")
	}
}

func TestDeleteNonexistent(t *testing.T) {
	c := newCache(t)

	if err := c.Delete(context.Background(), "never-existed"); err != nil {
		t.Fatal("Delete of nonexistent key should not error")
	}
}

func TestOverwrite(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v1"), time.Minute)
	_ = c.Set(ctx, "k", []byte("v2"), time.Minute)
	val, found, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected found after overwrite")
	}
	if string(val) != "v2" {
		t.Fatalf("expected v2 after overwrite, got %s", val)
	}
}
