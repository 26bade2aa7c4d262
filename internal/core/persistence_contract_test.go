package core

import (
	"go/types"
	"path/filepath"
	"runtime"
	"slices"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestPersistentStoreImplementationsHardening ensures only the persistence
// backends selectable through OpenStorage implement domain.PersistentStore.
func TestPersistentStoreImplementationsHardening(t *testing.T) {
	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedTypes, Tests: true}
	pkgs, err := packages.Load(cfg, "flowpanel/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}
	var persistentStore *types.Interface
	for _, p := range pkgs {
		if p.PkgPath != "flowpanel/pkg/domain" || p.Types == nil {
			continue
		}
		obj := p.Types.Scope().Lookup("PersistentStore")
		if obj == nil {
			t.Fatalf("domain.PersistentStore not found")
		}
		iface, ok := obj.Type().Underlying().(*types.Interface)
		if !ok {
			t.Fatalf("domain.PersistentStore is not an interface")
		}
		persistentStore = iface
	}
	if persistentStore == nil {
		t.Fatalf("failed to resolve PersistentStore interface")
	}
	allowed := map[string]struct{}{
		"flowpanel/internal/infra/persistence/memory":   {},
		"flowpanel/internal/infra/persistence/sqlite":   {},
		"flowpanel/internal/infra/persistence/postgres": {},
		"flowpanel/internal/infra/persistence/redis":    {},
	}
	var unexpected []string
	found := make(map[string]bool)
	for _, p := range pkgs {
		if p.Types == nil || p.Types.Scope() == nil {
			continue
		}
		for _, name := range p.Types.Scope().Names() {
			named, ok := p.Types.Scope().Lookup(name).Type().(*types.Named)
			if !ok {
				continue
			}
			if _, ok := named.Underlying().(*types.Struct); !ok {
				continue
			}
			if !types.Implements(types.NewPointer(named), persistentStore) {
				continue
			}
			if _, ok := allowed[p.PkgPath]; !ok {
				unexpected = append(unexpected, p.PkgPath+"."+name)
				continue
			}
			found[p.PkgPath] = true
		}
	}
	if len(unexpected) > 0 {
		slices.Sort(unexpected)
		_, file, line, _ := runtime.Caller(0)
		t.Fatalf("unexpected PersistentStore implementations (extend the allowed list when adding a backend):\nfile=%s:%d\n%v", filepath.Base(file), line, slices.Compact(unexpected))
	}
	for pkg := range allowed {
		if !found[pkg] {
			t.Errorf("expected %s to provide a PersistentStore implementation", pkg)
		}
	}
}
