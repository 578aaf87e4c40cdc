// Package registry is the package store of the CPM registry.
//
// The registry keeps two kinds of state under one storage root:
//
//   - Tarballs: one file per published version at
//     <root>/<name>/<name>-<version>.tgz (name and version path-escaped)
//   - Index: <root>/registry.json, a JSON array of every package and its
//     versions, the source of truth for what is published
//
// Components:
//   - FileStore: tarball persistence with in-place overwrite
//   - Index: snapshot load/save with atomic rename and a serialized
//     read-modify-write (Mutate)
//   - Service: publish (Upsert), queries, tarball access and Verify
//
// Publishing writes the tarball before the index, so a crash in between can
// leave an unreferenced tarball but never an index entry without its file.
// All index updates run under one lock; reads load the snapshot from disk on
// every call and take no lock.
//
// Example Usage:
//
//	svc := registry.NewService(registry.NewFileStore(root), registry.NewIndex(root))
//	pkg, err := svc.Upsert(ctx, registry.Metadata{Name: "example", Version: "1.0.0"}, tgz)
//	v, err := svc.GetVersion(ctx, "example", "1.0.0")
package registry
