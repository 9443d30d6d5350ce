package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/docker/go-units"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/splatmesh/splatmesh/gate"
	"github.com/splatmesh/splatmesh/meshio"
	"github.com/splatmesh/splatmesh/pipeline"
	"github.com/splatmesh/splatmesh/pointcloud"
	"github.com/splatmesh/splatmesh/reconstruct"
)

type batchJob struct {
	req      pipeline.Request
	artifact gate.Artifact
	err      error
	took     time.Duration
}

// listInputs returns the point clouds in dir in name order.
func listInputs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot list %q", dir)
	}
	var inputs []string
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || !slices.Contains(pointcloud.SupportedExtensions, ext) {
			continue
		}
		inputs = append(inputs, filepath.Join(dir, entry.Name()))
	}
	if len(inputs) == 0 {
		return nil, errors.Errorf("no point clouds found in %q", dir)
	}
	return inputs, nil
}

// BatchAction meshes every point cloud of a directory.
func BatchAction(c *cli.Context) (err error) {
	rt, err := newCmdEnv(c)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Combine(err, rt.close()) }()

	inputs, err := listInputs(c.String(flagInputDir))
	if err != nil {
		return err
	}
	outputDir := c.String(flagOutputDir)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return errors.Wrapf(err, "cannot create %q", outputDir)
	}

	var jobs []*batchJob
	for _, input := range inputs {
		base, err := rt.meshRequest(c, input)
		if err != nil {
			return err
		}
		base.OutputDir = outputDir
		if !c.Bool(flagAll) {
			jobs = append(jobs, &batchJob{req: base})
			continue
		}
		for _, method := range reconstruct.Methods {
			for _, format := range meshio.Formats {
				req := base
				req.Method, req.Format = method, format
				jobs = append(jobs, &batchJob{req: req})
			}
		}
	}

	parallel := c.Int(flagJobs)
	if !c.IsSet(flagJobs) {
		parallel = rt.cfg.Meshing.Jobs
	}
	if parallel <= 0 {
		parallel = max(1, runtime.NumCPU()/2)
	}

	printf(c.App.Writer, "Meshing %d inputs (%d jobs, %d at a time)", len(inputs), len(jobs), parallel)
	g := gate.New(rt.logger)
	var group errgroup.Group
	group.SetLimit(parallel)
	var printMu sync.Mutex
	for _, job := range jobs {
		group.Go(func() error {
			start := time.Now()
			job.artifact, job.err = g.Ensure(c.Context, job.req)
			job.took = time.Since(start)
			printMu.Lock()
			defer printMu.Unlock()
			name := ""
			if dst, err := job.req.ArtifactPath(); err == nil {
				name = filepath.Base(dst)
			}
			if job.err != nil {
				Errorf(c.App.ErrWriter, "%s: %v", name, job.err)
			} else {
				printf(c.App.Writer, "  %s %s", statusOf(job), name)
			}
			return nil
		})
	}
	//nolint:errcheck
	group.Wait()

	printBatchSummary(c, jobs)

	var failed error
	count := 0
	for _, job := range jobs {
		if job.err != nil {
			failed = multierr.Append(failed, job.err)
			count++
		}
	}
	if failed != nil {
		return errors.Wrapf(failed, "%d of %d jobs failed", count, len(jobs))
	}
	return nil
}

func statusOf(job *batchJob) string {
	switch {
	case job.err != nil:
		return "failed"
	case job.artifact.Rebuilt:
		return "built"
	default:
		return "cached"
	}
}

func printBatchSummary(c *cli.Context, jobs []*batchJob) {
	t := table.NewWriter()
	t.SetOutputMirror(c.App.Writer)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Input", "Method", "Format", "Status", "Triangles", "Size", "Time"})
	var total int64
	for _, job := range jobs {
		triangles, size := "-", "-"
		if job.artifact.Result != nil {
			triangles = fmt.Sprint(len(job.artifact.Result.Mesh.Triangles))
		}
		if job.err == nil {
			if info, err := os.Stat(job.artifact.Path); err == nil {
				size = units.HumanSize(float64(info.Size()))
				total += info.Size()
			}
		}
		t.AppendRow(table.Row{
			filepath.Base(job.req.InputPath),
			job.req.Method,
			job.req.Format,
			statusOf(job),
			triangles,
			size,
			job.took.Round(time.Millisecond),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Total", units.HumanSize(float64(total)), ""})
	t.Render()
}
