package core

import (
	"math"
	"testing"

	"flowpanel/pkg/domain"
)

func standardCatalog(t *testing.T) *domain.Catalog {
	t.Helper()
	catalog, err := domain.NewCatalog(domain.StandardReagents()...)
	if err != nil {
		t.Fatalf("standard catalog: %v", err)
	}
	return catalog
}

func standardTubes(t *testing.T) *domain.TubeSet {
	t.Helper()
	tubes, err := domain.NewTubeSet(domain.StandardTubes()...)
	if err != nil {
		t.Fatalf("standard tubes: %v", err)
	}
	return tubes
}

func mustCatalog(t *testing.T, reagents ...domain.Reagent) *domain.Catalog {
	t.Helper()
	catalog, err := domain.NewCatalog(reagents...)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	return catalog
}

func mustTubes(t *testing.T, tubes ...domain.Tube) *domain.TubeSet {
	t.Helper()
	set, err := domain.NewTubeSet(tubes...)
	if err != nil {
		t.Fatalf("tubes: %v", err)
	}
	return set
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
