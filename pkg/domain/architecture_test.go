package domain

import (
	"testing"

	"gardenkeep/testutil"
)

// TestDomainDoesNotImportInternal keeps the domain layer free of internal
// implementation packages.
func TestDomainDoesNotImportInternal(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "domain must stay dependency-free")
}
