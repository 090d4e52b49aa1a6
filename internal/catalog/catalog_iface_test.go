package catalog_test

import (
	"netsync/internal/catalog"
	"netsync/internal/syncengine"
)

var _ syncengine.Catalog = (*catalog.DB)(nil)
