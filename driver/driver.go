// Package driver orchestrates the compilation pipeline: manifest loading,
// module resolution, checking, ownership analysis, lowering, emission, and
// the build cache. Shared state is built append-only per phase and frozen
// before the next phase reads it.
package driver

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/samber/oops"
	"gorm.io/gorm"

	"github.com/ZAPPYcore/DAISY/ast"
	"github.com/ZAPPYcore/DAISY/borrow"
	"github.com/ZAPPYcore/DAISY/checker"
	"github.com/ZAPPYcore/DAISY/core"
	"github.com/ZAPPYcore/DAISY/db"
	"github.com/ZAPPYcore/DAISY/emit"
	"github.com/ZAPPYcore/DAISY/ir"
	"github.com/ZAPPYcore/DAISY/manifest"
	"github.com/ZAPPYcore/DAISY/models"
	"github.com/ZAPPYcore/DAISY/resolver"
)

// Driver owns one compiler invocation's configuration and cache handle.
type Driver struct {
	cfg *core.Config
	gdb *gorm.DB
}

// New connects the cache index and returns a ready driver.
func New(cfg *core.Config) (*Driver, error) {
	gdb, err := db.Connect(cfg.CacheDSN, cfg.Debug)
	if err != nil {
		return nil, oops.Code("cache_open").With("dsn", cfg.CacheDSN).Wrap(err)
	}
	return &Driver{cfg: cfg, gdb: gdb}, nil
}

// DB exposes the cache handle to the CLI cache subcommands.
func (d *Driver) DB() *gorm.DB { return d.gdb }

// ModuleReport describes one module's outcome.
type ModuleReport struct {
	Name     string `json:"name"`
	CacheHit bool   `json:"cache_hit"`
	CPath    string `json:"c_path"`
}

// Result is a completed (or diagnosed) build.
type Result struct {
	Diags   []core.Diagnostic
	Reports []ModuleReport
	Sources map[int]*core.Source
}

// HasErrors reports whether diagnostics block artifact generation.
func (r *Result) HasErrors() bool { return len(r.Diags) > 0 }

type phaseTimes struct {
	start  time.Time
	phases []map[string]any
}

func (p *phaseTimes) mark(name string, since time.Time) {
	p.phases = append(p.phases, map[string]any{
		"phase":    name,
		"duration": time.Since(since).String(),
	})
}

// Build compiles the entry file and its imports. No artifact is written
// when any diagnostic (including the ABI gate) fires.
func (d *Driver) Build(entry string) (*Result, error) {
	diags := &core.Diagnostics{}
	prof := &phaseTimes{start: time.Now()}
	res := &Result{}

	// Workspace manifest: search paths plus the dependency ABI gate.
	var searchPaths []string
	if mf := manifest.Find(filepath.Dir(entry)); mf != "" {
		m, err := manifest.Load(mf)
		if err != nil {
			return nil, err
		}
		searchPaths, err = m.SearchPaths()
		if err != nil {
			return nil, err
		}
		d.gateABI(m, diags)
	}

	t := time.Now()
	loaded := resolver.Load(entry, searchPaths, diags)
	res.Sources = loaded.Sources
	prof.mark("parse", t)

	if !diags.HasErrors() {
		t = time.Now()
		prog := checker.Check(loaded.Modules, diags)
		prof.mark("check", t)

		if !diags.HasErrors() {
			t = time.Now()
			own := borrow.Check(prog, diags)
			prof.mark("borrow", t)

			if !diags.HasErrors() {
				if err := d.emitAll(loaded, prog, own, res, prof); err != nil {
					return nil, err
				}
			}
		}
	}

	res.Diags = diags.All()
	d.recordRun(entry, res)
	if d.cfg.Profile {
		d.writeProfile(prof)
	}
	return res, nil
}

// gateABI rejects dependencies whose declared ABI major differs from the
// compiler's before anything is compiled.
func (d *Driver) gateABI(m *manifest.Manifest, diags *core.Diagnostics) {
	if m.ABIMajor != core.ABIMajor {
		diags.Addf(core.KindAbiIncompatible, core.Span{},
			"manifest declares abi_major %d, compiler supports %d", m.ABIMajor, core.ABIMajor)
	}
	for _, dep := range m.Dependencies {
		if dep.Path == "" {
			continue
		}
		depToml := filepath.Join(m.Dir, dep.Path, manifest.FileName)
		dm, err := manifest.Load(depToml)
		if err != nil {
			continue // path deps without a manifest inherit the workspace ABI
		}
		if dm.ABIMajor != core.ABIMajor {
			diags.Addf(core.KindAbiIncompatible, core.Span{},
				"dependency %s declares abi_major %d, compiler supports %d",
				dep.Name, dm.ABIMajor, core.ABIMajor)
		}
		if dep.Version != nil && dm.Version != "" && !dep.Version.Matches(dm.Version) {
			diags.Addf(core.KindAbiIncompatible, core.Span{},
				"dependency %s version %s does not satisfy %s", dep.Name, dm.Version, dep.Version.Raw)
		}
	}
}

func (d *Driver) emitAll(loaded *resolver.Loaded, prog *checker.Program, own *borrow.Result, res *Result, prof *phaseTimes) error {
	if err := os.MkdirAll(d.cfg.BuildDir, 0o755); err != nil {
		return oops.Code("build_dir").With("dir", d.cfg.BuildDir).Wrap(err)
	}
	t := time.Now()
	for _, m := range loaded.Modules {
		report, err := d.emitModule(loaded, prog, own, m)
		if err != nil {
			return err
		}
		res.Reports = append(res.Reports, *report)
	}
	prof.mark("lower+emit", t)
	return nil
}

func (d *Driver) emitModule(loaded *resolver.Loaded, prog *checker.Program, own *borrow.Result, m *ast.Module) (*ModuleReport, error) {
	src := sourceOf(loaded, m)
	key := CacheKey([]byte(src.Text), core.ABIMajor, core.Version, d.cfg.FeatureFlags())
	report := &ModuleReport{Name: m.Name}

	if art, err := cacheLookup(d.gdb, key); err != nil {
		return nil, err
	} else if art != nil && fileExists(art.CPath) {
		report.CacheHit = true
		report.CPath = art.CPath
		return report, nil
	}

	diags := &core.Diagnostics{}
	irMod := ir.Lower(prog, own, m, diags)
	if diags.HasErrors() {
		return nil, oops.Code("lowering").With("module", m.Name).
			Errorf("internal error lowering %s: %s", m.Name, diags.All()[0].Error())
	}
	out := emit.Module(irMod, prog, d.cfg)

	cPath := filepath.Join(d.cfg.BuildDir, m.Name+".c")
	hPath := filepath.Join(d.cfg.BuildDir, m.Name+".h")
	manPath := filepath.Join(d.cfg.BuildDir, m.Name+".abi.json")
	if err := os.WriteFile(cPath, []byte(out.C), 0o644); err != nil {
		return nil, oops.Code("artifact_write").With("path", cPath).Wrap(err)
	}
	if err := os.WriteFile(hPath, []byte(out.Header), 0o644); err != nil {
		return nil, oops.Code("artifact_write").With("path", hPath).Wrap(err)
	}

	man := emit.BuildManifest(irMod, core.ABIMajor, SourceHash([]byte(src.Text)))
	manJSON, err := man.JSON()
	if err != nil {
		return nil, oops.Code("manifest_encode").Wrap(err)
	}
	if err := os.WriteFile(manPath, manJSON, 0o644); err != nil {
		return nil, oops.Code("artifact_write").With("path", manPath).Wrap(err)
	}

	irPath := ""
	if d.cfg.EmitIR {
		irPath = filepath.Join(d.cfg.BuildDir, m.Name+".ir.txt")
		if err := os.WriteFile(irPath, []byte(irMod.Dump()), 0o644); err != nil {
			return nil, oops.Code("artifact_write").With("path", irPath).Wrap(err)
		}
	}
	if err := d.writeUnsafeLog(m, src); err != nil {
		return nil, err
	}

	art := &models.ModuleArtifact{
		Key:             key,
		Module:          m.Name,
		SourceHash:      SourceHash([]byte(src.Text)),
		ABIMajor:        core.ABIMajor,
		CompilerVersion: core.Version,
		FeatureFlags:    d.cfg.FeatureFlags(),
		CPath:           cPath,
		HeaderPath:      hPath,
		IRPath:          irPath,
		ManifestPath:    manPath,
		Manifest:        manJSON,
	}
	if err := cacheStore(d.gdb, art); err != nil {
		return nil, err
	}
	report.CPath = cPath
	return report, nil
}

// writeUnsafeLog writes one line per unsafe block: file, span,
// justification. The file is rewritten on each compile of the module, not
// appended to. No file is written for modules without unsafe blocks.
func (d *Driver) writeUnsafeLog(m *ast.Module, src *core.Source) error {
	var lines []string
	var walkBlock func(b *ast.Block)
	var walkStmt func(s ast.Stmt)
	walkStmt = func(s ast.Stmt) {
		switch s := s.(type) {
		case *ast.Unsafe:
			lines = append(lines, fmt.Sprintf("%s:%d:%d %q", src.Path, s.Sp.Line, s.Sp.Col, s.Reason))
			walkBlock(s.Body)
		case *ast.If:
			walkBlock(s.Then)
			for _, e := range s.Elifs {
				walkBlock(e.Body)
			}
			walkBlock(s.Else)
		case *ast.Repeat:
			walkBlock(s.Body)
		case *ast.Match:
			for _, a := range s.Arms {
				walkBlock(a.Body)
			}
		}
	}
	walkBlock = func(b *ast.Block) {
		if b == nil {
			return
		}
		for _, s := range b.Stmts {
			walkStmt(s)
		}
	}
	for _, decl := range m.Decls {
		switch decl := decl.(type) {
		case *ast.FuncDecl:
			walkBlock(decl.Body)
		case *ast.ImplDecl:
			for _, f := range decl.Methods {
				walkBlock(f.Body)
			}
		}
	}
	if len(lines) == 0 {
		return nil
	}
	path := filepath.Join(d.cfg.BuildDir, m.Name+".unsafe.log")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return oops.Code("artifact_write").With("path", path).Wrap(err)
	}
	return nil
}

func (d *Driver) recordRun(entry string, res *Result) {
	hits := 0
	for _, r := range res.Reports {
		if r.CacheHit {
			hits++
		}
	}
	now := time.Now()
	d.gdb.Create(&models.BuildRun{
		Entry:      entry,
		FinishedAt: &now,
		Modules:    len(res.Reports),
		CacheHits:  hits,
		Success:    !res.HasErrors(),
	})
}

func (d *Driver) writeProfile(prof *phaseTimes) {
	payload := map[string]any{
		"total":  time.Since(prof.start).String(),
		"phases": prof.phases,
	}
	raw, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(d.cfg.BuildDir, "profile.json"), raw, 0o644)
}

// VerifyDeterminism diffs a cached C output against a regenerated one; the
// caller does the regeneration. A non-empty diff means the
// cache-determinism invariant is broken.
func VerifyDeterminism(cached, regenerated string) (string, error) {
	if cached == regenerated {
		return "", nil
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(cached),
		B:        difflib.SplitLines(regenerated),
		FromFile: "cached",
		ToFile:   "regenerated",
		Context:  3,
	})
}

func sourceOf(loaded *resolver.Loaded, m *ast.Module) *core.Source {
	for _, s := range loaded.Sources {
		if s.Path == m.Path {
			return s
		}
	}
	return core.NewSource(0, m.Path, "")
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
