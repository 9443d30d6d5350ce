package viewer

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/splatmesh/splatmesh/gate"
	"github.com/splatmesh/splatmesh/logging"
	"github.com/splatmesh/splatmesh/mesh"
	"github.com/splatmesh/splatmesh/meshio"
	"github.com/splatmesh/splatmesh/pipeline"
	"github.com/splatmesh/splatmesh/pointcloud"
	"github.com/splatmesh/splatmesh/postprocess"
	"github.com/splatmesh/splatmesh/reconstruct"
	"github.com/splatmesh/splatmesh/utils"
)

// State is what the session is doing.
type State int

// The session states.
const (
	StateIdle State = iota
	StateBuilding
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
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

// Status is a snapshot of the session state. Seq is the sequence number of the request it
// describes.
type Status struct {
	State   State
	Message string
	Seq     uint64
	// Err is set when State is StateFailed.
	Err error
}

// View is the mesh on display.
type View struct {
	Mesh     *mesh.Mesh
	Artifact gate.Artifact
	Method   reconstruct.Method
	Format   meshio.Format
	Seq      uint64
}

// Session is a viewer session over one input cloud.
type Session struct {
	cfg     Config
	logger  logging.Logger
	gate    *gate.Gate
	workers utils.StoppableWorkers

	mu       sync.Mutex
	cloud    *pointcloud.PointCloud
	method   reconstruct.Method
	format   meshio.Format
	post     postprocess.Options
	seq      uint64
	status   Status
	current  *View
	scale    float64
	changed  chan struct{}
	watching bool
}

// NewSession loads the input cloud and returns an idle session. gateOpts configure the gate that
// builds the meshes.
func NewSession(cfg Config, logger logging.Logger, gateOpts ...gate.Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid viewer config")
	}
	cloud, err := loadCloud(cfg.InputPath, logger)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.MeshDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "cannot create mesh directory %q", cfg.MeshDir)
	}
	return &Session{
		cfg:     cfg,
		logger:  logger,
		gate:    gate.New(logger, gateOpts...),
		workers: utils.NewStoppableWorkers(),
		cloud:   cloud,
		method:  cfg.Method,
		format:  cfg.Format,
		post:    cfg.PostProcess,
		scale:   1,
		changed: make(chan struct{}),
	}, nil
}

func loadCloud(path string, logger logging.Logger) (*pointcloud.PointCloud, error) {
	cloud, err := pointcloud.NewFromFile(path, logger)
	if err != nil {
		return nil, err
	}
	cloud, hasColor := pointcloud.ResolveColors(cloud)
	if !hasColor {
		logger.Warnw("point cloud has no vertex colors", "path", path)
	}
	return cloud, nil
}

// Close stops background work and waits for it.
func (s *Session) Close() {
	s.workers.Stop()
}

// Cloud returns the point cloud on display.
func (s *Session) Cloud() *pointcloud.PointCloud {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cloud
}

// Status returns the current status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Current returns the last successfully built view, nil before the first one.
func (s *Session) Current() *View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SetScale sets the display scale of the mesh about its center. It affects snapshots and the
// reported dimensions only.
func (s *Session) SetScale(scale float64) error {
	if scale <= 0 {
		return errors.Errorf("scale must be positive, got %v", scale)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scale = scale
	return nil
}

// Select shows the mesh for method and format, reusing a cached one when it is fresh. It returns
// the request's sequence number; the build runs in the background.
func (s *Session) Select(method reconstruct.Method, format meshio.Format) uint64 {
	s.mu.Lock()
	s.method, s.format = method, format
	s.mu.Unlock()
	return s.request(false)
}

// Remesh rebuilds the current selection with new post-processing options.
func (s *Session) Remesh(opts postprocess.Options) uint64 {
	s.mu.Lock()
	s.post = opts
	s.mu.Unlock()
	return s.request(true)
}

func (s *Session) request(force bool) uint64 {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	req := pipeline.NewRequest(s.cfg.InputPath)
	req.Method = s.method
	req.Format = s.format
	req.Params = s.cfg.Params
	req.PostProcess = s.post
	req.OutputDir = s.cfg.MeshDir
	req.Force = force
	s.setStatusLocked(Status{
		State:   StateBuilding,
		Message: fmt.Sprintf("building %s mesh as %s", req.Method, req.Format),
		Seq:     seq,
	})
	s.mu.Unlock()

	s.logger.Debugw("mesh requested", "seq", seq, "method", req.Method, "format", req.Format, "force", force)
	s.workers.AddWorkers(func(ctx context.Context) {
		s.build(ctx, seq, req)
	})
	return seq
}

func (s *Session) build(ctx context.Context, seq uint64, req pipeline.Request) {
	art, err := s.gate.Ensure(ctx, req)
	var m *mesh.Mesh
	if err == nil {
		if art.Result != nil {
			m = art.Result.Mesh
		} else {
			m, err = meshio.Read(art.Path)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		s.logger.Debugw("discarding result of an older request", "seq", seq, "latest", s.seq)
		return
	}
	if err != nil {
		s.logger.Warnw("mesh build failed, keeping the previous mesh", "seq", seq, "error", err)
		s.setStatusLocked(Status{State: StateFailed, Message: err.Error(), Seq: seq, Err: err})
		return
	}
	s.current = &View{Mesh: m, Artifact: art, Method: req.Method, Format: req.Format, Seq: seq}
	s.setStatusLocked(Status{
		State:   StateReady,
		Message: fmt.Sprintf("%d vertices, %d triangles", len(m.Vertices), len(m.Triangles)),
		Seq:     seq,
	})
}

func (s *Session) setStatusLocked(status Status) {
	s.status = status
	close(s.changed)
	s.changed = make(chan struct{})
}

// Wait blocks until the latest request has finished and returns the resulting status.
func (s *Session) Wait(ctx context.Context) (Status, error) {
	for {
		s.mu.Lock()
		status, changed := s.status, s.changed
		s.mu.Unlock()
		if status.State != StateBuilding {
			return status, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return status, ctx.Err()
		}
	}
}

// Dimensions returns the extent of the displayed mesh after scaling. ok is false when no mesh is
// shown.
func (s *Session) Dimensions() (x, y, z float64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return 0, 0, 0, false
	}
	size := s.current.Mesh.Bounds().Size().Mul(s.scale)
	return size.X, size.Y, size.Z, true
}
