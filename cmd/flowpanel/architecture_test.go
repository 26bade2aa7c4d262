package main

import (
	"testing"

	"flowpanel/testutil"
)

func TestCLIUsesFacades(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InfraImportForbidden, "commands open backends through core.OpenStorage and blob.OpenConfig")
}
