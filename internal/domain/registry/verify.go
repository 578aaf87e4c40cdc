package registry

import (
	"context"
	"sort"
)

// VerifyReport describes how the index and the stored tarballs line up.
type VerifyReport struct {
	Packages int `json:"packages"`
	Versions int `json:"versions"`
	// Orphaned lists stored tarballs that no index entry references.
	Orphaned []string `json:"orphaned"`
	// Missing lists index entries ("name@version") whose tarball is absent.
	Missing []string `json:"missing"`
}

// Consistent reports whether every indexed version has its tarball.
// Orphaned tarballs do not make the registry inconsistent.
func (r *VerifyReport) Consistent() bool {
	return len(r.Missing) == 0
}

// Verify compares the index against the blob store. It never modifies either.
func (s *Service) Verify(ctx context.Context) (*VerifyReport, error) {
	reg, err := s.index.Load(ctx)
	if err != nil {
		return nil, err
	}
	keys, err := s.blobs.Keys(ctx)
	if err != nil {
		return nil, err
	}

	stored := make(map[string]bool, len(keys))
	for _, k := range keys {
		stored[k] = true
	}

	report := &VerifyReport{
		Packages: len(reg),
		Versions: reg.VersionCount(),
		Orphaned: []string{},
		Missing:  []string{},
	}
	referenced := make(map[string]bool, report.Versions)
	for _, pkg := range reg {
		for v := range pkg.Versions {
			loc := s.blobs.Location(pkg.Name, v)
			referenced[loc] = true
			if !stored[loc] {
				report.Missing = append(report.Missing, pkg.Name+"@"+v)
			}
		}
	}
	for _, k := range keys {
		if !referenced[k] {
			report.Orphaned = append(report.Orphaned, k)
		}
	}
	sort.Strings(report.Missing)
	return report, nil
}
