package memory

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"flowpanel/internal/blob/core"
)

func TestStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	if s.Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver %s", s.Driver())
	}
	meta := map[string]string{"project": "Panel"}
	info, err := s.Put(ctx, "Panel/a/matrix.csv", strings.NewReader("tube,cd45"), core.PutOptions{ContentType: "text/csv", Metadata: meta})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	meta["project"] = "mutated"
	if info.Size != 9 || info.ETag == "" || info.Metadata["project"] != "Panel" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "Panel/a/matrix.csv", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := s.Put(ctx, " ", strings.NewReader("x"), core.PutOptions{}); err == nil {
		t.Fatalf("expected empty key error")
	}

	got, rc, err := s.Get(ctx, "Panel/a/matrix.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "tube,cd45" || got.ContentType != "text/csv" {
		t.Fatalf("unexpected object %q %+v", body, got)
	}
	if _, err := s.Head(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := s.Get(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if _, err := s.Put(ctx, "Other/b/plan.csv", strings.NewReader("p"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	list, err := s.List(ctx, "Panel/")
	if err != nil || len(list) != 1 || list[0].Key != "Panel/a/matrix.csv" {
		t.Fatalf("unexpected list %v %v", list, err)
	}
	all, _ := s.List(ctx, "")
	if len(all) != 2 || all[0].Key != "Other/b/plan.csv" {
		t.Fatalf("list must be sorted by key, got %v", all)
	}

	if _, err := s.PresignURL(ctx, "Panel/a/matrix.csv", core.SignedURLOptions{}); !errors.Is(err, core.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if ok, _ := s.Delete(ctx, "Panel/a/matrix.csv"); !ok {
		t.Fatalf("expected delete to report existing object")
	}
	if ok, _ := s.Delete(ctx, "Panel/a/matrix.csv"); ok {
		t.Fatalf("second delete must report absent")
	}
}
