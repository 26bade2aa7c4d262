package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"flowpanel/internal/infra/persistence/memory"
	"flowpanel/pkg/domain"

	goredis "github.com/redis/go-redis/v9"
)

type fakeClient struct {
	hashes  map[string]map[string]string
	loadErr error
	setErr  error
	closed  bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{hashes: make(map[string]map[string]string)}
}

func (f *fakeClient) Ping(context.Context) *goredis.StatusCmd {
	return goredis.NewStatusResult("PONG", nil)
}

func (f *fakeClient) HGetAll(_ context.Context, key string) *goredis.MapStringStringCmd {
	if f.loadErr != nil {
		return goredis.NewMapStringStringResult(nil, f.loadErr)
	}
	out := make(map[string]string, len(f.hashes[key]))
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return goredis.NewMapStringStringResult(out, nil)
}

func (f *fakeClient) HSet(_ context.Context, key string, values ...any) *goredis.IntCmd {
	if f.setErr != nil {
		return goredis.NewIntResult(0, f.setErr)
	}
	hash, ok := f.hashes[key]
	if !ok {
		hash = make(map[string]string)
		f.hashes[key] = hash
	}
	for i := 0; i+1 < len(values); i += 2 {
		hash[fmt.Sprint(values[i])] = fmt.Sprint(values[i+1])
	}
	return goredis.NewIntResult(int64(len(values)/2), nil)
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func TestStorePersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store, err := NewStore(ctx, client, "", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if store.Key() != DefaultKey {
		t.Fatalf("expected default key, got %s", store.Key())
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if err := tx.RenameProject("shared"); err != nil {
			return err
		}
		_, err := tx.UpsertReagent(domain.Reagent{Name: "CD45", Concentration: 200, RecommendedUse: 0.25})
		return err
	}); err != nil {
		t.Fatalf("transaction: %v", err)
	}
	for _, bucket := range memory.Buckets {
		if client.hashes[DefaultKey][bucket] == "" {
			t.Fatalf("bucket %s not written", bucket)
		}
	}

	reloaded, err := NewStore(ctx, client, DefaultKey, nil)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	project := reloaded.Project()
	if project.Name != "shared" {
		t.Fatalf("expected project name shared, got %q", project.Name)
	}
	if r, ok := project.Reagents.Get("CD45"); !ok || r.Concentration != 200 {
		t.Fatalf("expected CD45 to reload, got %+v ok=%v", r, ok)
	}
	if err := reloaded.Close(); err != nil || !client.closed {
		t.Fatalf("expected client to close")
	}
}

func TestStoreFailedTransactionDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store, err := NewStore(ctx, client, "k", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteTube("missing")
	}); err == nil {
		t.Fatalf("expected not found error")
	}
	if len(client.hashes["k"]) != 0 {
		t.Fatalf("failed transaction must not write, got %v", client.hashes["k"])
	}
}

func TestStoreSurfacesClientErrors(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	client.loadErr = errors.New("down")
	if _, err := NewStore(ctx, client, "", nil); err == nil {
		t.Fatalf("expected load error")
	}

	client = newFakeClient()
	store, err := NewStore(ctx, client, "", nil)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	client.setErr = errors.New("readonly")
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.RenameProject("x")
	}); err == nil {
		t.Fatalf("expected hset error")
	}
}

func TestStoreRejectsCorruptBucket(t *testing.T) {
	client := newFakeClient()
	client.hashes[DefaultKey] = map[string]string{memory.BucketReagents: "{not json"}
	if _, err := NewStore(context.Background(), client, "", nil); err == nil {
		t.Fatalf("expected decode error")
	}
}
