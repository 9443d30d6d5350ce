// Package gate decides whether a meshing request can reuse an existing artifact and serializes
// the builds that cannot.
//
// An artifact is fresh when it exists, was modified no earlier than its input and its sidecar
// fingerprint names the same input, method, format and settings as the request. Builds write to
// a temporary sibling of the artifact and are renamed into place only when they succeed and are
// still the newest request for that path, so a reader never sees a partial or stale-by-supersession
// file.
package gate

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/splatmesh/splatmesh/logging"
	"github.com/splatmesh/splatmesh/pipeline"
	"github.com/splatmesh/splatmesh/utils"
)

var (
	// ErrCacheRace marks a request that found another build for the same artifact in flight. The
	// request waits for that build; the error is only ever logged.
	ErrCacheRace = errors.New("another build for this artifact is in flight")
	// ErrSuperseded is returned to a request whose result was discarded because a newer request
	// for the same artifact arrived while it was building.
	ErrSuperseded = errors.New("build superseded by a newer request")
)

// State is the lifecycle of one artifact path.
type State int

// The artifact states.
const (
	StateMissing State = iota
	StateBuilding
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateMissing:
		return "missing"
	case StateBuilding:
		return "building"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Artifact is the outcome of Ensure.
type Artifact struct {
	Path     string
	Rebuilt  bool
	Duration time.Duration
	// Result is set when the artifact was rebuilt.
	Result *pipeline.Result
}

// BuildFunc produces the artifact for req at dst.
type BuildFunc func(ctx context.Context, req pipeline.Request, dst string) (*pipeline.Result, error)

// StateFunc is called whenever the state of an artifact path changes.
type StateFunc func(path string, state State, err error)

// Option configures a Gate.
type Option func(*Gate)

// WithClock sets the clock used to time builds.
func WithClock(clk clock.Clock) Option {
	return func(g *Gate) { g.clock = clk }
}

// WithBuilder replaces the pipeline build.
func WithBuilder(build BuildFunc) Option {
	return func(g *Gate) { g.build = build }
}

// WithObserver reports pipeline progress of the default builder to obs.
func WithObserver(obs pipeline.Observer) Option {
	return func(g *Gate) { g.observer = obs }
}

// WithStateFunc registers a state listener.
func WithStateFunc(fn StateFunc) Option {
	return func(g *Gate) { g.onState = fn }
}

// Gate guards artifact paths. The zero value is not usable; use New.
type Gate struct {
	logger   logging.Logger
	clock    clock.Clock
	build    BuildFunc
	observer pipeline.Observer
	onState  StateFunc

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	// sem holds one token; the holder is the only build for the path.
	sem        chan struct{}
	generation atomic.Int64

	mu    sync.Mutex
	state State
	err   error
}

// New returns a gate that builds with the meshing pipeline unless WithBuilder says otherwise.
func New(logger logging.Logger, opts ...Option) *Gate {
	g := &Gate{
		logger:  logger,
		clock:   clock.New(),
		entries: map[string]*entry{},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.build == nil {
		g.build = func(ctx context.Context, req pipeline.Request, dst string) (*pipeline.Result, error) {
			return pipeline.Build(ctx, req, dst, g.logger, g.observer)
		}
	}
	return g
}

func (g *Gate) entry(path string) *entry {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[path]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		g.entries[path] = e
	}
	return e
}

// State returns the last known state of the artifact at path and the error of a failed build.
func (g *Gate) State(path string) (State, error) {
	g.mu.Lock()
	e, ok := g.entries[path]
	g.mu.Unlock()
	if !ok {
		return existingState(path), nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.err
}

func (g *Gate) setState(path string, e *entry, state State, err error) {
	e.mu.Lock()
	e.state, e.err = state, err
	e.mu.Unlock()
	if g.onState != nil {
		g.onState(path, state, err)
	}
}

// Fresh reports whether the artifact for req exists, is at least as new as its input and was
// built with the settings of req. In-memory requests are never fresh.
func Fresh(req pipeline.Request) (bool, error) {
	dst, err := req.ArtifactPath()
	if err != nil {
		return false, err
	}
	if req.InputPath == "" {
		return false, nil
	}
	artifactTime, exists, err := utils.ModTime(dst)
	if err != nil || !exists {
		return false, err
	}
	inputTime, exists, err := utils.ModTime(req.InputPath)
	if err != nil || !exists {
		return false, err
	}
	if artifactTime.Before(inputTime) {
		return false, nil
	}
	return matchesFingerprint(req, dst)
}

// Ensure returns the artifact for req, building it when it is missing, stale or forced. Builds of
// the same path never overlap; a request that waited behind a build re-checks freshness first.
// A build whose request was overtaken by a newer one for the same path returns ErrSuperseded and
// leaves the existing artifact alone. Failed builds are not retried.
func (g *Gate) Ensure(ctx context.Context, req pipeline.Request) (Artifact, error) {
	dst, err := req.ArtifactPath()
	if err != nil {
		return Artifact{}, err
	}
	e := g.entry(dst)
	gen := e.generation.Inc()

	select {
	case e.sem <- struct{}{}:
	default:
		g.logger.Debugw("waiting for build in flight", "path", dst, "reason", ErrCacheRace)
		select {
		case e.sem <- struct{}{}:
		case <-ctx.Done():
			return Artifact{}, ctx.Err()
		}
	}
	defer func() { <-e.sem }()

	if e.generation.Load() != gen {
		return Artifact{}, ErrSuperseded
	}

	if !req.Force {
		fresh, err := Fresh(req)
		if err != nil {
			g.logger.Warnw("cannot check artifact freshness, rebuilding", "path", dst, "error", err)
		}
		if fresh {
			g.logger.Debugw("reusing artifact", "path", dst)
			g.setState(dst, e, StateReady, nil)
			return Artifact{Path: dst}, nil
		}
	}

	g.setState(dst, e, StateBuilding, nil)
	start := g.clock.Now()
	tmp := utils.TempSibling(dst)
	res, err := g.build(ctx, req, tmp)
	if err == nil && e.generation.Load() != gen {
		err = ErrSuperseded
	}
	if err == nil {
		// the old fingerprint must not outlive the artifact it describes
		err = removeIfExists(SidecarPath(dst))
	}
	if err == nil {
		err = utils.RenameIntoPlace(tmp, dst)
	}
	if err != nil {
		err = multierr.Combine(err, removeIfExists(tmp))
		if errors.Is(err, ErrSuperseded) {
			g.logger.Debugw("discarding superseded build", "path", dst)
			g.setState(dst, e, existingState(dst), nil)
			return Artifact{}, ErrSuperseded
		}
		g.logger.Warnw("build failed", "path", dst, "error", err)
		g.setState(dst, e, StateFailed, err)
		return Artifact{}, err
	}

	if req.InputPath != "" {
		if err := writeFingerprint(req, dst); err != nil {
			g.logger.Warnw("artifact will be rebuilt next time", "path", dst, "error", err)
		}
	}

	duration := g.clock.Since(start)
	g.logger.Infow("artifact built", "path", dst, "duration", duration)
	g.setState(dst, e, StateReady, nil)
	return Artifact{Path: dst, Rebuilt: true, Duration: duration, Result: res}, nil
}

// existingState is the state of a path whose build went nowhere.
func existingState(path string) State {
	if _, exists, _ := utils.ModTime(path); exists {
		return StateReady
	}
	return StateMissing
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "cannot remove %q", path)
	}
	return nil
}
