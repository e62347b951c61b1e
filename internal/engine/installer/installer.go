// Package installer materializes a resolved spec set onto disk.
//
// Specifications are installed in dependency order on a bounded worker pool.
// A coordinator owns all scheduling state; workers only report results on a
// channel. A process-wide advisory lock guards the step that publishes an
// install directory, so concurrent runs never expose a half-written gem.
package installer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.trai.ch/bundle/internal/core/domain"
	"go.trai.ch/bundle/internal/core/ports"
	"go.trai.ch/zerr"
)

// Status is the final state of one specification in a run.
type Status string

const (
	// StatusInstalled means the specification was materialized in this run.
	StatusInstalled Status = "Installed"
	// StatusCached means a complete install directory already existed.
	StatusCached Status = "Cached"
	// StatusFailed means materialization was attempted and failed.
	StatusFailed Status = "Failed"
	// StatusSkipped means the specification was never attempted because a
	// dependency failed or the run was canceled.
	StatusSkipped Status = "Skipped"
)

// Report lists the full names of the specifications by outcome, sorted.
type Report struct {
	Installed []string
	Cached    []string
	Failed    []string
	Skipped   []string
}

// Total returns the number of specifications in the run.
func (r *Report) Total() int {
	return len(r.Installed) + len(r.Cached) + len(r.Failed) + len(r.Skipped)
}

// Option configures an Installer.
type Option func(*Installer)

// WithJobs bounds the number of concurrent installs.
func WithJobs(n int) Option {
	return func(i *Installer) {
		if n > 0 {
			i.jobs = n
		}
	}
}

// WithMetrics records install outcomes.
func WithMetrics(m ports.Metrics) Option {
	return func(i *Installer) {
		i.metrics = m
	}
}

// Installer materializes spec sets into a Layout.
type Installer struct {
	layout  domain.Layout
	locker  ports.Locker
	tracer  ports.Tracer
	logger  ports.Logger
	metrics ports.Metrics
	jobs    int
	now     func() time.Time
}

// New creates an Installer writing into layout.
func New(layout domain.Layout, locker ports.Locker, tracer ports.Tracer, logger ports.Logger, opts ...Option) *Installer {
	i := &Installer{
		layout: layout,
		locker: locker,
		tracer: tracer,
		logger: logger,
		jobs:   1,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

type result struct {
	name    string
	status  Status
	err     error
	elapsed time.Duration
}

type runState struct {
	i         *Installer
	ctx       context.Context
	graph     *domain.Graph
	sources   map[string]ports.Source
	inDegree  map[string]int
	ready     []string
	active    int
	resultsCh chan result
	status    map[string]Status
	errs      error
}

// Install materializes every specification of set using the source whose
// identity matches each spec. It returns a Report in all cases; the error is
// non-nil when any specification failed or the run was canceled.
//
// A specification starts only after all of its dependencies were installed
// or found cached. When one fails, specs that depend on it are skipped while
// unrelated installs continue. Cancellation stops dispatch; running installs
// finish before Install returns.
func (i *Installer) Install(ctx context.Context, set *domain.SpecSet, sources []ports.Source) (*Report, error) {
	graph := domain.NewGraph(set)
	if err := graph.Validate(); err != nil {
		return nil, err
	}

	state := &runState{
		i:         i,
		ctx:       ctx,
		graph:     graph,
		sources:   make(map[string]ports.Source, len(sources)),
		inDegree:  make(map[string]int, graph.Len()),
		resultsCh: make(chan result, i.jobs),
		status:    make(map[string]Status, graph.Len()),
	}
	for _, src := range sources {
		state.sources[src.Identity().Key()] = src
	}

	var planned []string
	for spec := range graph.Walk() {
		planned = append(planned, spec.FullName())
		state.inDegree[spec.Name] = len(graph.Dependencies(spec.Name))
		if state.inDegree[spec.Name] == 0 {
			state.ready = append(state.ready, spec.Name)
		}
	}
	i.tracer.EmitPlan(ctx, planned)

	state.runLoop()
	return state.report()
}

func (state *runState) runLoop() {
	for !state.isDone() {
		state.schedule()

		if state.isDone() {
			break
		}

		select {
		case res := <-state.resultsCh:
			state.handleResult(res)
		case <-state.ctx.Done():
			if state.active == 0 {
				return
			}
			// Drain running installs; nothing new is dispatched.
			res := <-state.resultsCh
			state.handleResult(res)
		}
	}
}

func (state *runState) isDone() bool {
	return state.active == 0 && (len(state.ready) == 0 || state.ctx.Err() != nil)
}

func (state *runState) schedule() {
	for len(state.ready) > 0 && state.active < state.i.jobs && state.ctx.Err() == nil {
		name := state.ready[0]
		state.ready = state.ready[1:]

		state.active++
		spec, _ := state.graph.Spec(name)
		go state.install(spec)
	}
}

func (state *runState) install(spec *domain.Specification) {
	start := state.i.now()
	res := func() result {
		ctx, span := state.i.tracer.Start(
			context.WithoutCancel(state.ctx),
			spec.FullName(),
			ports.WithAttribute("bundle.source", spec.Source.Key()),
		)
		defer span.End()

		status, err := state.i.materialize(ctx, spec, state.sources[spec.Source.Key()])
		if err != nil {
			span.RecordError(err)
			return result{name: spec.Name, status: StatusFailed, err: err}
		}
		if status == StatusCached {
			span.SetAttribute("bundle.cached", true)
		}
		return result{name: spec.Name, status: status}
	}()
	res.elapsed = state.i.now().Sub(start)

	state.resultsCh <- res
}

func (state *runState) handleResult(res result) {
	state.active--
	state.status[res.name] = res.status
	state.i.observe(res.status, res.elapsed)

	spec, _ := state.graph.Spec(res.name)
	if res.err != nil {
		err := zerr.With(domain.ErrMaterializeFailed.Wrap(res.err), "gem", spec.FullName())
		state.errs = errors.Join(state.errs, err)
		state.i.logger.Warn("failed to install " + spec.FullName())
		return
	}
	if res.status == StatusInstalled {
		state.i.logger.Debug("installed " + spec.FullName())
	}

	for _, dependent := range state.graph.Dependents(res.name) {
		state.inDegree[dependent]--
		if state.inDegree[dependent] == 0 {
			state.ready = append(state.ready, dependent)
		}
	}
}

func (i *Installer) observe(status Status, elapsed time.Duration) {
	if i.metrics == nil {
		return
	}
	switch status {
	case StatusInstalled:
		i.metrics.ObserveInstall(ports.OutcomeInstalled, elapsed)
	case StatusCached:
		i.metrics.ObserveInstall(ports.OutcomeCached, elapsed)
	case StatusFailed:
		i.metrics.ObserveInstall(ports.OutcomeFailed, elapsed)
	case StatusSkipped:
		i.metrics.ObserveInstall(ports.OutcomeSkipped, 0)
	}
}

func (state *runState) report() (*Report, error) {
	r := &Report{}
	for spec := range state.graph.Walk() {
		status, ok := state.status[spec.Name]
		if !ok {
			status = StatusSkipped
			state.i.observe(StatusSkipped, 0)
		}
		switch status {
		case StatusInstalled:
			r.Installed = append(r.Installed, spec.FullName())
		case StatusCached:
			r.Cached = append(r.Cached, spec.FullName())
		case StatusFailed:
			r.Failed = append(r.Failed, spec.FullName())
		case StatusSkipped:
			r.Skipped = append(r.Skipped, spec.FullName())
		}
	}
	slices.Sort(r.Installed)
	slices.Sort(r.Cached)
	slices.Sort(r.Failed)
	slices.Sort(r.Skipped)

	errs := state.errs
	if err := state.ctx.Err(); err != nil {
		errs = errors.Join(errs, zerr.Wrap(err, "install canceled"))
	}
	if errs == nil {
		return r, nil
	}

	err := zerr.With(domain.ErrInstallFailed.Wrap(errs), "failed", r.Failed)
	return r, zerr.With(err, "skipped", r.Skipped)
}

// materialize installs one specification. Files are staged in a uniquely
// named directory without holding the lock; only the publish step runs under
// the process-wide lock.
func (i *Installer) materialize(ctx context.Context, spec *domain.Specification, src ports.Source) (Status, error) {
	target := i.layout.InstallDir(spec)
	if installed(target) {
		return StatusCached, nil
	}
	if src == nil {
		return StatusFailed, zerr.With(domain.ErrUnknownSource, "source", spec.Source.Key())
	}

	if err := os.MkdirAll(i.layout.InstallPath(), domain.DirPerm); err != nil {
		return StatusFailed, zerr.Wrap(err, "failed to create install path")
	}
	staging := filepath.Join(i.layout.InstallPath(), ".staging-"+uuid.NewString())
	if err := os.Mkdir(staging, domain.DirPerm); err != nil {
		return StatusFailed, zerr.Wrap(err, "failed to create staging directory")
	}
	defer func() { _ = os.RemoveAll(staging) }()

	if err := src.Materialize(ctx, spec, staging); err != nil {
		return StatusFailed, err
	}

	unlock, err := i.locker.Lock(ctx, i.layout.LockFile())
	if err != nil {
		return StatusFailed, err
	}
	defer func() { _ = unlock() }()

	return i.publish(spec, staging, target)
}

// publish moves a staged directory into place and registers the spec. The
// caller holds the install lock.
func (i *Installer) publish(spec *domain.Specification, staging, target string) (Status, error) {
	if installed(target) {
		return StatusCached, nil
	}
	if err := os.RemoveAll(target); err != nil {
		return StatusFailed, zerr.With(zerr.Wrap(err, "failed to clear install directory"), "path", target)
	}
	if err := os.Rename(staging, target); err != nil {
		return StatusFailed, zerr.With(zerr.Wrap(err, "failed to publish install directory"), "path", target)
	}
	if err := writeRegistry(i.layout, spec, target); err != nil {
		return StatusFailed, err
	}
	marker := filepath.Join(target, domain.InstalledMarker)
	if err := os.WriteFile(marker, []byte(spec.ID()+"\n"), domain.FilePerm); err != nil {
		return StatusFailed, zerr.Wrap(err, "failed to mark install directory")
	}
	return StatusInstalled, nil
}

// Installed reports whether spec has a complete install directory in layout.
func Installed(layout domain.Layout, spec *domain.Specification) bool {
	return installed(layout.InstallDir(spec))
}

func installed(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, domain.InstalledMarker))
	return err == nil
}
