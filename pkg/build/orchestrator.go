package build

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/pyrite-lang/pyrite/pkg/ast"
	"github.com/pyrite-lang/pyrite/pkg/check"
	"github.com/pyrite-lang/pyrite/pkg/symbols"
)

var tracer = otel.Tracer("pyrite/build")

// Source is one module's input: its dotted name, file path, and raw
// text. Parsing is the caller's concern.
type Source struct {
	Module string
	Path   string
	Text   []byte
}

// ParseFunc turns a source into an AST. The orchestrator never parses
// itself; the front end plugs in here.
type ParseFunc func(ctx context.Context, src Source) (*ast.Module, error)

// Options configure one orchestrator.
type Options struct {
	Check check.Options
	// MaxCyclePasses caps the per-cycle interface fixpoint.
	MaxCyclePasses int
	// Parallelism bounds how many independent components check at once.
	// Zero means no bound.
	Parallelism int
}

func (o Options) withDefaults() Options {
	if o.MaxCyclePasses <= 0 {
		o.MaxCyclePasses = 5
	}
	return o
}

// Orchestrator runs incremental whole-program checks: parse, graph,
// condense, then check components in dependency order, skipping work
// the cache proves unchanged.
type Orchestrator struct {
	store Store
	parse ParseFunc
	opts  Options
}

func NewOrchestrator(store Store, parse ParseFunc, opts Options) *Orchestrator {
	return &Orchestrator{store: store, parse: parse, opts: opts.withDefaults()}
}

// ModuleResult is one module's outcome within a run.
type ModuleResult struct {
	Module      string
	Diagnostics []check.Diagnostic
	FromCache   bool
}

// Result aggregates one run. Diagnostics are ordered by module name,
// then position, so output is reproducible.
type Result struct {
	Modules map[string]*ModuleResult

	Checked []string
	Cached  []string
}

// Diagnostics flattens every module's diagnostics in deterministic
// order.
func (r *Result) Diagnostics() []check.Diagnostic {
	names := make([]string, 0, len(r.Modules))
	for name := range r.Modules {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []check.Diagnostic
	for _, name := range names {
		out = append(out, r.Modules[name].Diagnostics...)
	}
	return out
}

// HasErrors reports whether any module produced an error-severity
// diagnostic.
func (r *Result) HasErrors() bool {
	for _, mr := range r.Modules {
		for _, d := range mr.Diagnostics {
			if d.Severity == check.Error {
				return true
			}
		}
	}
	return false
}

// runState is the mutable state of one Run, shared across component
// goroutines within a wave.
type runState struct {
	mu sync.Mutex

	infos        map[string]*symbols.ModuleInfo
	digests      map[string]string
	fingerprints map[string]string
	cached       map[string]*Entry
	result       *Result
}

// Run checks the given sources. Modules whose fingerprint and
// dependency interfaces are unchanged reuse their cached diagnostics;
// everything else re-checks, in dependency order, cycles as a unit.
func (o *Orchestrator) Run(ctx context.Context, sources []Source) (*Result, error) {
	ctx, span := tracer.Start(ctx, "build.Run")
	defer span.End()
	started := time.Now()
	defer func() { checkDuration.Observe(time.Since(started).Seconds()) }()

	graph := NewGraph()
	modsByName := make(map[string]*ast.Module, len(sources))
	state := &runState{
		infos:        make(map[string]*symbols.ModuleInfo),
		digests:      make(map[string]string, len(sources)),
		fingerprints: make(map[string]string, len(sources)),
		cached:       make(map[string]*Entry, len(sources)),
		result:       &Result{Modules: make(map[string]*ModuleResult)},
	}

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		mod, err := o.parse(ctx, src)
		if err != nil {
			return nil, errors.Wrapf(err, "parse module %q", src.Module)
		}
		modsByName[mod.Name] = mod
		state.fingerprints[mod.Name] = ContentFingerprint(src.Text)
		graph.Add(mod)

		entry, err := o.store.Get(ctx, mod.Name)
		if err != nil {
			slog.Warn("cache read failed, treating as miss", "module", mod.Name, "error", err)
		} else if entry != nil {
			state.cached[mod.Name] = entry
		}
	}

	cond := graph.Condense()
	graphModules.Set(float64(len(graph.Names())))
	graphComponents.Set(float64(len(cond.Comps)))

	uni := check.NewUniverse()
	analyzer := check.NewAnalyzer(uni, o.opts.Check)

	for _, level := range cond.Levels() {
		g, gctx := errgroup.WithContext(ctx)
		if o.opts.Parallelism > 0 {
			g.SetLimit(o.opts.Parallelism)
		}
		for _, compIdx := range level {
			members := cond.Comps[compIdx]
			g.Go(func() error {
				return o.processComponent(gctx, analyzer, modsByName, members, state)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	state.result.Checked = sortedKeys(state.result.Modules, func(mr *ModuleResult) bool { return !mr.FromCache })
	state.result.Cached = sortedKeys(state.result.Modules, func(mr *ModuleResult) bool { return mr.FromCache })
	return state.result, nil
}

func sortedKeys(mods map[string]*ModuleResult, keep func(*ModuleResult) bool) []string {
	var out []string
	for name, mr := range mods {
		if keep(mr) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// processComponent analyzes and checks one strongly connected
// component. Cyclic components iterate declaration resolution until
// every member's exported interface stops changing.
func (o *Orchestrator) processComponent(ctx context.Context, analyzer *check.Analyzer, modsByName map[string]*ast.Module, members []string, state *runState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var mods []*ast.Module
	for _, name := range members {
		if mod := modsByName[name]; mod != nil {
			mods = append(mods, mod)
		}
	}
	if len(mods) == 0 {
		// Placeholder-only component: an unresolved import target.
		return nil
	}

	ctx, span := tracer.Start(ctx, "build.component",
		trace.WithAttributes(attribute.StringSlice("modules", members)))
	defer span.End()

	diags, infos := o.resolveComponent(analyzer, mods, members, state)

	// Interfaces are complete after the resolution passes; flow checking
	// never changes a module's exports. Publishing digests before the
	// dirtiness decision lets cycle members compare against each other.
	state.mu.Lock()
	for _, mod := range mods {
		state.infos[mod.Name] = infos[mod.Name]
		state.digests[mod.Name] = InterfaceDigest(infos[mod.Name])
	}
	state.mu.Unlock()

	dirty := o.componentDirty(mods, state)

	if !dirty {
		state.mu.Lock()
		for _, mod := range mods {
			entry := state.cached[mod.Name]
			state.result.Modules[mod.Name] = &ModuleResult{
				Module:      mod.Name,
				Diagnostics: entry.Diagnostics,
				FromCache:   true,
			}
			cacheHitsTotal.Inc()
		}
		state.mu.Unlock()
		return nil
	}

	for _, mod := range mods {
		if err := ctx.Err(); err != nil {
			return err
		}

		moduleDiags := diags[mod.Name]
		state.mu.Lock()
		deps := o.depInfos(mod, state)
		state.mu.Unlock()

		check.NewChecker(analyzer, mod, infos[mod.Name], deps, moduleDiags).Check()

		all := moduleDiags.All()
		modulesCheckedTotal.Inc()
		for _, d := range all {
			diagnosticsTotal.WithLabelValues(d.Severity.String()).Inc()
		}

		state.mu.Lock()
		digest := state.digests[mod.Name]
		fingerprint := state.fingerprints[mod.Name]
		depDigests := make(map[string]string)
		for _, imp := range mod.Imports() {
			if d, ok := state.digests[imp.Module]; ok {
				depDigests[imp.Module] = d
			}
		}
		state.result.Modules[mod.Name] = &ModuleResult{
			Module:      mod.Name,
			Diagnostics: all,
		}
		state.mu.Unlock()

		entry := &Entry{
			Module:          mod.Name,
			Fingerprint:     fingerprint,
			InterfaceDigest: digest,
			DepDigests:      depDigests,
			Diagnostics:     all,
			CheckedAt:       time.Now().UTC(),
		}
		if err := o.store.Put(ctx, entry); err != nil {
			slog.Warn("cache write failed", "module", mod.Name, "error", err)
		}
	}
	return nil
}

// resolveComponent runs the two analysis passes over a component. A
// multi-module cycle repeats the passes until interfaces stabilize or
// the cap is hit.
func (o *Orchestrator) resolveComponent(analyzer *check.Analyzer, mods []*ast.Module, members []string, state *runState) (map[string]*check.Diagnostics, map[string]*symbols.ModuleInfo) {
	maxPasses := 1
	if len(mods) > 1 {
		maxPasses = o.opts.MaxCyclePasses
	}

	var (
		diags   map[string]*check.Diagnostics
		infos   map[string]*symbols.ModuleInfo
		digests map[string]string
	)
	passes := 0
	for pass := 0; pass < maxPasses; pass++ {
		passes++
		diags = make(map[string]*check.Diagnostics, len(mods))
		infos = make(map[string]*symbols.ModuleInfo, len(mods))

		for _, mod := range mods {
			diags[mod.Name] = &check.Diagnostics{}
			infos[mod.Name] = symbols.NewModuleInfo(mod.Name, analyzer.Universe().Scope)
			analyzer.Pass1(mod, infos[mod.Name], diags[mod.Name])
		}
		for _, mod := range mods {
			deps := o.depsFor(mod, infos, state)
			analyzer.Pass2(mod, infos[mod.Name], deps, diags[mod.Name])
		}

		next := make(map[string]string, len(mods))
		for _, mod := range mods {
			next[mod.Name] = InterfaceDigest(infos[mod.Name])
		}
		if digests != nil && digestsEqual(digests, next) {
			digests = next
			break
		}
		digests = next

		if pass == maxPasses-1 && maxPasses > 1 {
			for _, mod := range mods {
				diags[mod.Name].Notef(check.CodeInternalLimitReached, mod.Position(),
					"import cycle %v did not stabilize after %d passes; freezing declarations", members, maxPasses)
			}
		}
	}
	componentPasses.Observe(float64(passes))
	return diags, infos
}

func digestsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// depsFor collects the resolved infos a module's imports refer to,
// preferring same-component infos from the current fixpoint pass.
func (o *Orchestrator) depsFor(mod *ast.Module, compInfos map[string]*symbols.ModuleInfo, state *runState) map[string]*symbols.ModuleInfo {
	deps := make(map[string]*symbols.ModuleInfo)
	for _, imp := range mod.Imports() {
		if info, ok := compInfos[imp.Module]; ok {
			deps[imp.Module] = info
			continue
		}
		state.mu.Lock()
		if info, ok := state.infos[imp.Module]; ok {
			deps[imp.Module] = info
		}
		state.mu.Unlock()
	}
	return deps
}

// depInfos is depsFor without a component overlay; the caller holds
// state.mu.
func (o *Orchestrator) depInfos(mod *ast.Module, state *runState) map[string]*symbols.ModuleInfo {
	deps := make(map[string]*symbols.ModuleInfo)
	for _, imp := range mod.Imports() {
		if info, ok := state.infos[imp.Module]; ok {
			deps[imp.Module] = info
		}
	}
	return deps
}

// componentDirty decides whether a component needs re-checking: any
// member's content changed, any member has no cache entry, or any
// dependency's current interface digest no longer matches the one the
// cached result was built against. A dependency that was recorded but
// is now absent from the source set (or the reverse) mismatches too.
func (o *Orchestrator) componentDirty(mods []*ast.Module, state *runState) bool {
	state.mu.Lock()
	defer state.mu.Unlock()

	for _, mod := range mods {
		entry := state.cached[mod.Name]
		if entry == nil || entry.Fingerprint != state.fingerprints[mod.Name] {
			return true
		}
		for _, imp := range mod.Imports() {
			recorded, rok := entry.DepDigests[imp.Module]
			current, cok := state.digests[imp.Module]
			if rok != cok || recorded != current {
				return true
			}
		}
	}
	return false
}
