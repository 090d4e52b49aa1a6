package syncengine

import "netsync/internal/manifest"

// ManifestEntry and Manifest are aliases onto the dependency-free
// manifest package so callers of the engine never need to import it
// directly.
type ManifestEntry = manifest.Entry
type Manifest = manifest.Manifest
