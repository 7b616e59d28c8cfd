// Package resolver loads a module graph: it follows import/use directives
// against the search paths provided by the workspace manifest, parses each
// module once, and rejects cycles.
package resolver

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ZAPPYcore/DAISY/ast"
	"github.com/ZAPPYcore/DAISY/core"
	"github.com/ZAPPYcore/DAISY/parser"
)

// Loaded is the resolved program: modules in dependency order (imports
// before importers) plus their sources keyed by file id.
type Loaded struct {
	Modules []*ast.Module
	Sources map[int]*core.Source
}

type loader struct {
	search  []string
	diags   *core.Diagnostics
	loaded  map[string]*ast.Module // absolute path -> module
	onStack map[string]bool
	order   []*ast.Module
	sources map[int]*core.Source
	nextID  int
}

// Load parses the entry file and, transitively, everything it imports.
func Load(entry string, searchPaths []string, diags *core.Diagnostics) *Loaded {
	ld := &loader{
		search:  searchPaths,
		diags:   diags,
		loaded:  map[string]*ast.Module{},
		onStack: map[string]bool{},
		sources: map[int]*core.Source{},
	}
	abs, err := filepath.Abs(entry)
	if err != nil {
		abs = entry
	}
	ld.visit(abs, core.Span{})
	return &Loaded{Modules: ld.order, Sources: ld.sources}
}

func (ld *loader) visit(path string, from core.Span) *ast.Module {
	if m, ok := ld.loaded[path]; ok {
		if ld.onStack[path] {
			ld.diags.Addf(core.KindImportCycle, from, "import cycle through %s", filepath.Base(path))
			return nil
		}
		return m
	}
	src, err := core.LoadSource(ld.nextID, path)
	if err != nil {
		ld.diags.Addf(core.KindUnknownSymbol, from, "cannot read module %s: %v", path, err)
		return nil
	}
	ld.nextID++
	ld.sources[src.ID] = src

	m := parser.Parse(src, ld.diags)
	ld.loaded[path] = m
	ld.onStack[path] = true
	defer func() {
		ld.onStack[path] = false
		ld.order = append(ld.order, m)
	}()

	for _, imp := range m.Imports {
		dep := ld.resolveImport(filepath.Dir(path), imp)
		if dep == "" {
			ld.diags.Addf(core.KindUnknownSymbol, imp.Span(),
				"cannot resolve module %s", strings.Join(imp.Path, "."))
			continue
		}
		ld.visit(dep, imp.Span())
	}
	return m
}

// resolveImport maps dotted import segments to a .dsy file: first relative
// to the importing file, then through each workspace search path.
func (ld *loader) resolveImport(fromDir string, imp *ast.Import) string {
	rel := filepath.Join(imp.Path...) + ".dsy"
	for _, dir := range append([]string{fromDir}, ld.search...) {
		cand := filepath.Join(dir, rel)
		if abs, err := filepath.Abs(cand); err == nil {
			cand = abs
		}
		if fileExists(cand) {
			return cand
		}
	}
	return ""
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
