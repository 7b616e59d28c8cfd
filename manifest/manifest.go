package manifest

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/Masterminds/semver/v3"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/samber/oops"
)

// FileName is the project manifest file.
const FileName = "daisy.toml"

// Dependency is one [dependencies] entry: a local path dep with an optional
// version requirement (`x.y.z` exact or `^x.y.z` same-major).
type Dependency struct {
	Name    string
	Path    string
	Version *VersionSpec
}

// VersionSpec wraps a semver constraint.
type VersionSpec struct {
	Raw        string
	constraint *semver.Constraints
}

// ParseVersionSpec accepts `x.y.z` and `^x.y.z`.
func ParseVersionSpec(raw string) (*VersionSpec, error) {
	c, err := semver.NewConstraint(raw)
	if err != nil {
		return nil, oops.Code("invalid_version").With("spec", raw).Wrap(err)
	}
	return &VersionSpec{Raw: raw, constraint: c}, nil
}

// Matches reports whether the concrete version satisfies the spec.
func (v *VersionSpec) Matches(version string) bool {
	sv, err := semver.NewVersion(version)
	if err != nil {
		return false
	}
	return v.constraint.Check(sv)
}

// Manifest is a loaded daisy.toml.
type Manifest struct {
	Dir          string
	Name         string
	Version      string
	ABIMajor     int
	Dependencies []Dependency
	Members      []string // workspace member patterns
}

// Load reads and parses a manifest file.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Code("manifest_read").With("path", path).Wrap(err)
	}
	return Parse(path, string(raw))
}

// Parse builds a Manifest from manifest text.
func Parse(path, text string) (*Manifest, error) {
	file, err := tomlParser.ParseString(path, text)
	if err != nil {
		return nil, oops.Code("manifest_syntax").With("path", path).Wrap(err)
	}
	m := &Manifest{Dir: filepath.Dir(path), ABIMajor: 1}
	for _, sec := range file.Sections {
		switch sec.Name {
		case "package":
			for _, e := range sec.Entries {
				switch e.Key {
				case "name":
					if e.Value.Str != nil {
						m.Name = *e.Value.Str
					}
				case "version":
					if e.Value.Str != nil {
						m.Version = *e.Value.Str
					}
				case "abi_major":
					if e.Value.Int != nil {
						m.ABIMajor = int(*e.Value.Int)
					}
				}
			}
		case "dependencies":
			for _, e := range sec.Entries {
				dep, err := parseDependency(e)
				if err != nil {
					return nil, err
				}
				m.Dependencies = append(m.Dependencies, dep)
			}
		case "workspace":
			for _, e := range sec.Entries {
				if e.Key == "members" {
					m.Members = append(m.Members, e.Value.Array...)
				}
			}
		default:
			return nil, oops.Code("manifest_section").
				With("path", path).With("section", sec.Name).
				Errorf("unknown manifest section [%s]", sec.Name)
		}
	}
	return m, nil
}

func parseDependency(e *EntryAST) (Dependency, error) {
	dep := Dependency{Name: e.Key}
	switch {
	case e.Value.Str != nil:
		spec, err := ParseVersionSpec(*e.Value.Str)
		if err != nil {
			return dep, err
		}
		dep.Version = spec
	case e.Value.Table != nil:
		for _, sub := range e.Value.Table {
			switch sub.Key {
			case "path":
				if sub.Value.Str != nil {
					dep.Path = *sub.Value.Str
				}
			case "version":
				if sub.Value.Str != nil {
					spec, err := ParseVersionSpec(*sub.Value.Str)
					if err != nil {
						return dep, err
					}
					dep.Version = spec
				}
			}
		}
	default:
		return dep, oops.Code("manifest_dependency").
			With("dependency", e.Key).
			Errorf("dependency %s must be a version string or an inline table", e.Key)
	}
	return dep, nil
}

// SearchPaths expands workspace member patterns and dependency paths into
// the module search list handed to the resolver. Patterns use doublestar
// globbing relative to the manifest directory.
func (m *Manifest) SearchPaths() ([]string, error) {
	paths := []string{m.Dir}
	for _, pat := range m.Members {
		matches, err := doublestar.Glob(os.DirFS(m.Dir), pat)
		if err != nil {
			return nil, oops.Code("workspace_glob").With("pattern", pat).Wrap(err)
		}
		sort.Strings(matches)
		for _, rel := range matches {
			abs := filepath.Join(m.Dir, rel)
			if st, err := os.Stat(abs); err == nil && st.IsDir() {
				paths = append(paths, abs)
			}
		}
	}
	for _, dep := range m.Dependencies {
		if dep.Path != "" {
			paths = append(paths, filepath.Join(m.Dir, dep.Path))
		}
	}
	return paths, nil
}

// Find walks upward from dir looking for a daisy.toml. Returns "" when none
// exists.
func Find(dir string) string {
	for {
		cand := filepath.Join(dir, FileName)
		if _, err := os.Stat(cand); err == nil {
			return cand
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
