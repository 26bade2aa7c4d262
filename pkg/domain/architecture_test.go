package domain

import (
	"testing"

	"flowpanel/testutil"
)

// TestDomainStaysPure keeps the domain package free of adapters so the engine
// and codecs can be used from any shell.
func TestDomainStaysPure(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.ImportsContaining(
		"/internal/",
		"database/sql",
		"net/http",
		"github.com/aws/",
		"github.com/redis/",
		"go.uber.org/zap",
	), "domain must not depend on implementation packages or I/O stacks")
}
