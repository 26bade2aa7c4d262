package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"flowpanel/pkg/domain"
)

func TestSQLiteStorePersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	ctx := context.Background()
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if err := tx.RenameProject("persisted"); err != nil {
			return err
		}
		for _, r := range domain.StandardReagents() {
			if _, err := tx.UpsertReagent(r); err != nil {
				return err
			}
		}
		return tx.ReplaceTubes(domain.StandardTubes())
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reloaded, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	t.Cleanup(func() { _ = reloaded.Close() })
	project := reloaded.Project()
	if project.Name != "persisted" {
		t.Fatalf("expected persisted name, got %q", project.Name)
	}
	if project.Reagents.Len() != 4 || project.Tubes.Len() != 7 {
		t.Fatalf("unexpected sizes %d/%d", project.Reagents.Len(), project.Tubes.Len())
	}
	if names := project.Reagents.Names(); names[0] != domain.StandardFcBlock {
		t.Fatalf("catalog order lost: %v", names)
	}
	if reloaded.Path() != path {
		t.Fatalf("unexpected path %s", reloaded.Path())
	}
}

func TestSQLiteStoreFailedTransactionDoesNotPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteReagent("missing")
	}); err == nil {
		t.Fatalf("expected not found error")
	}
	var count int
	if err := store.DB().QueryRow(`SELECT COUNT(*) FROM state`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no buckets written, got %d", count)
	}
}
