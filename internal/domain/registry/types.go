package registry

import (
	"net/url"
	"sort"
)

// Dist describes where the tarball of a published version can be fetched.
type Dist struct {
	Tarball string `json:"tarball"`
}

// Metadata is the caller-supplied description of one version being published.
type Metadata struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Author       string            `json:"author,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// PackageVersion is one published version of one package.
type PackageVersion struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Author       string            `json:"author,omitempty"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
	Dist         Dist              `json:"dist"`
}

// Versions maps a version string to its entry.
type Versions map[string]PackageVersion

// Package is the aggregate of every published version under one name.
type Package struct {
	Name     string   `json:"name"`
	Author   string   `json:"author,omitempty"`
	Versions Versions `json:"versions"`
}

// Registry maps a package name to its package.
type Registry map[string]*Package

// Packages returns the packages sorted by name.
func (r Registry) Packages() []*Package {
	pkgs := make([]*Package, 0, len(r))
	for _, pkg := range r {
		pkgs = append(pkgs, pkg)
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Name < pkgs[j].Name })
	return pkgs
}

// VersionCount returns the number of versions across all packages.
func (r Registry) VersionCount() int {
	n := 0
	for _, pkg := range r {
		n += len(pkg.Versions)
	}
	return n
}

// entry builds the stored version entry for m.
func (m Metadata) entry() PackageVersion {
	v := PackageVersion{
		Name:    m.Name,
		Version: m.Version,
		Author:  m.Author,
		Dist:    Dist{Tarball: TarballURL(m.Name, m.Version)},
	}
	if len(m.Dependencies) > 0 {
		v.Dependencies = make(map[string]string, len(m.Dependencies))
		for k, r := range m.Dependencies {
			v.Dependencies[k] = r
		}
	}
	return v
}

// TarballURL returns the public reference of the tarball for name@version.
func TarballURL(name, version string) string {
	return "/packages/" + url.PathEscape(name) + "/" + url.PathEscape(version) + "/dist/tarball"
}

// TarballFilename returns the file name the blob of name@version is stored under.
func TarballFilename(name, version string) string {
	return url.PathEscape(name) + "-" + url.PathEscape(version) + ".tgz"
}
