package registry

import (
	"regexp"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// Patterns accepted for package names and versions.
const (
	NamePattern    = `^[a-zA-Z0-9._-]+$`
	VersionPattern = `^[0-9]+\.[0-9]+\.[0-9]+(-[A-Za-z0-9.-]+)?$`
)

var (
	nameRe    = regexp.MustCompile(NamePattern)
	versionRe = regexp.MustCompile(VersionPattern)
)

// ValidateName checks a package name.
func ValidateName(name string) error {
	if name == "" {
		return validationError("name is required")
	}
	if !nameRe.MatchString(name) {
		return validationError("invalid package name %q: allowed characters are a-z, 0-9, '.', '_' and '-'", name)
	}
	if name == "." || name == ".." {
		return validationError("invalid package name %q", name)
	}
	return nil
}

// ValidateVersion checks a MAJOR.MINOR.PATCH[-prerelease] version string.
func ValidateVersion(version string) error {
	if version == "" {
		return validationError("version is required")
	}
	if !versionRe.MatchString(version) {
		return validationError("invalid version %q: expected MAJOR.MINOR.PATCH[-prerelease]", version)
	}
	return nil
}

// ValidateRange checks that r is a well-formed semver range.
func ValidateRange(r string) error {
	if r == "" {
		return validationError("empty version range")
	}
	if _, err := semver.NewConstraint(r); err != nil {
		return validationError("invalid version range %q: %v", r, err)
	}
	return nil
}

// Validate checks the metadata of a publish request.
func (m Metadata) Validate() error {
	if err := ValidateName(m.Name); err != nil {
		return err
	}
	if err := ValidateVersion(m.Version); err != nil {
		return err
	}
	return validateDependencies(m.Dependencies)
}

func validateDependencies(deps map[string]string) error {
	// Sorted so the reported error is stable.
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ValidateName(name); err != nil {
			return validationError("dependency %q: %s", name, Message(err))
		}
		if err := ValidateRange(deps[name]); err != nil {
			return validationError("dependency %q: %s", name, Message(err))
		}
	}
	return nil
}

// validatePackage checks a package read back from the index.
func validatePackage(pkg *Package) error {
	if pkg == nil {
		return validationError("null package entry")
	}
	if err := ValidateName(pkg.Name); err != nil {
		return err
	}
	if pkg.Versions == nil {
		return validationError("package %q: versions is required", pkg.Name)
	}
	for key, entry := range pkg.Versions {
		if err := ValidateVersion(key); err != nil {
			return validationError("package %q: %s", pkg.Name, Message(err))
		}
		meta := Metadata{
			Name:         entry.Name,
			Version:      entry.Version,
			Author:       entry.Author,
			Dependencies: entry.Dependencies,
		}
		if err := meta.Validate(); err != nil {
			return validationError("package %q version %q: %s", pkg.Name, key, Message(err))
		}
		if entry.Dist.Tarball == "" {
			return validationError("package %q version %q: dist.tarball is required", pkg.Name, key)
		}
	}
	return nil
}
