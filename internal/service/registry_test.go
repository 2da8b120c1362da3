package service

import (
	"context"
	"testing"
)

func noopExec(string) Executor {
	return Executor{Execute: func(context.Context, map[string]any, *TaskContext) (any, error) {
		return nil, nil
	}}
}

func TestRegistryResolveMessageOrderWins(t *testing.T) {
	a := noopExec("a")
	a.Extension = "urn:cap:a"
	b := noopExec("b")
	b.Extension = "urn:cap:b"

	reg := NewRegistry().Register(a).Register(b)

	// The message's extension order decides which executor wins.
	got, ok := reg.Resolve([]string{"urn:cap:b", "urn:cap:a"})
	if !ok {
		t.Fatal("expected a match")
	}
	if got.Extension != "urn:cap:b" {
		t.Fatalf("expected urn:cap:b (first in message order), got %s", got.Extension)
	}

	got, _ = reg.Resolve([]string{"urn:cap:a", "urn:cap:b"})
	if got.Extension != "urn:cap:a" {
		t.Fatalf("expected urn:cap:a (first in message order), got %s", got.Extension)
	}
}

func TestRegistryResolveSkipsUnknown(t *testing.T) {
	a := noopExec("a")
	a.Extension = "urn:cap:a"
	reg := NewRegistry().Register(a)

	got, ok := reg.Resolve([]string{"urn:cap:unknown", "urn:cap:a"})
	if !ok || got.Extension != "urn:cap:a" {
		t.Fatalf("expected fallthrough to urn:cap:a, got %v %v", got.Extension, ok)
	}

	if _, ok := reg.Resolve([]string{"urn:cap:none"}); ok {
		t.Fatal("expected no match")
	}
}

func TestRegistryLastRegistrationWins(t *testing.T) {
	first := Executor{Extension: "urn:cap:x", Execute: func(context.Context, map[string]any, *TaskContext) (any, error) {
		return "first", nil
	}}
	second := Executor{Extension: "urn:cap:x", Execute: func(context.Context, map[string]any, *TaskContext) (any, error) {
		return "second", nil
	}}

	reg := NewRegistry().Register(first).Register(second)
	got, _ := reg.Resolve([]string{"urn:cap:x"})
	out, _ := got.Execute(context.Background(), nil, nil)
	if out != "second" {
		t.Fatalf("expected second registration to win, got %v", out)
	}
}

func TestRegistryExtensionsSorted(t *testing.T) {
	b := noopExec("b")
	b.Extension = "urn:cap:b"
	a := noopExec("a")
	a.Extension = "urn:cap:a"

	reg := NewRegistry().Register(b).Register(a)
	exts := reg.Extensions()
	if len(exts) != 2 || exts[0] != "urn:cap:a" || exts[1] != "urn:cap:b" {
		t.Fatalf("expected sorted extensions, got %v", exts)
	}
}
