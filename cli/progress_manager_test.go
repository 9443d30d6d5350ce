package cli

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"

	"go.viam.com/test"

	"github.com/splatmesh/splatmesh/pipeline"
)

type fakeSpinner struct {
	mu        sync.Mutex
	text      string
	stopped   bool
	successes []string
	failures  []string
}

func (f *fakeSpinner) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeSpinner) Success(message ...any) {
	f.mu.Lock()
	f.successes = append(f.successes, fmt.Sprint(message...))
	f.mu.Unlock()
	_ = f.Stop()
}

func (f *fakeSpinner) Fail(message ...any) {
	f.mu.Lock()
	f.failures = append(f.failures, fmt.Sprint(message...))
	f.mu.Unlock()
	_ = f.Stop()
}

func (f *fakeSpinner) UpdateText(text string) {
	f.mu.Lock()
	f.text = text
	f.mu.Unlock()
}

// spinnerRecorder keeps every spinner it creates.
type spinnerRecorder struct {
	spinners []*fakeSpinner
}

func (r *spinnerRecorder) factory() progressSpinnerFactory {
	return func(text string) (progressSpinner, error) {
		fs := &fakeSpinner{}
		fs.UpdateText(text)
		r.spinners = append(r.spinners, fs)
		return fs, nil
	}
}

func TestGetPrefix(t *testing.T) {
	test.That(t, getPrefix(&Step{IndentLevel: 0}), test.ShouldEqual, "")
	test.That(t, getPrefix(&Step{IndentLevel: 1}), test.ShouldEqual, "  → ")
	test.That(t, getPrefix(&Step{IndentLevel: 2}), test.ShouldEqual, "    → ")
}

func TestProgressManagerLifecycle(t *testing.T) {
	var out bytes.Buffer
	rec := &spinnerRecorder{}
	steps := []*Step{
		{ID: "root", Message: "Parent step"},
		{ID: "a", Message: "First child", CompletedMsg: "First child done", IndentLevel: 1},
		{ID: "b", Message: "Second child", IndentLevel: 1},
	}
	pm := NewProgressManager(steps, WithProgressWriter(&out), withProgressSpinnerFactory(rec.factory()))

	test.That(t, pm.Start("root"), test.ShouldBeNil)
	test.That(t, out.String(), test.ShouldEqual, " …  Parent step\n")
	test.That(t, steps[0].Status, test.ShouldEqual, StepRunning)

	test.That(t, pm.Start("a"), test.ShouldBeNil)
	test.That(t, rec.spinners, test.ShouldHaveLength, 1)
	test.That(t, rec.spinners[0].text, test.ShouldEqual, "   → First child")
	pm.UpdateText("halfway")
	test.That(t, rec.spinners[0].text, test.ShouldEqual, "halfway")
	test.That(t, pm.Complete("a"), test.ShouldBeNil)
	test.That(t, steps[1].Status, test.ShouldEqual, StepCompleted)
	test.That(t, rec.spinners[0].successes, test.ShouldHaveLength, 1)
	test.That(t, rec.spinners[0].successes[0], test.ShouldStartWith, "   → First child done (")

	test.That(t, pm.Start("b"), test.ShouldBeNil)
	test.That(t, pm.Fail("b", errors.New("boom")), test.ShouldBeNil)
	test.That(t, steps[2].Status, test.ShouldEqual, StepFailed)
	test.That(t, rec.spinners[1].failures, test.ShouldResemble, []string{"   → Second child: boom"})

	test.That(t, pm.Start("missing"), test.ShouldNotBeNil)
	test.That(t, pm.Complete("missing"), test.ShouldNotBeNil)
	test.That(t, pm.Fail("missing", nil), test.ShouldNotBeNil)
}

func TestProgressManagerStartStopsPreviousSpinner(t *testing.T) {
	rec := &spinnerRecorder{}
	steps := []*Step{
		{ID: "a", Message: "A", IndentLevel: 1},
		{ID: "b", Message: "B", IndentLevel: 1},
	}
	pm := NewProgressManager(steps, withProgressSpinnerFactory(rec.factory()))
	test.That(t, pm.Start("a"), test.ShouldBeNil)
	test.That(t, pm.Start("b"), test.ShouldBeNil)
	test.That(t, rec.spinners[0].stopped, test.ShouldBeTrue)
	test.That(t, rec.spinners[1].stopped, test.ShouldBeFalse)
	pm.Stop()
	test.That(t, rec.spinners[1].stopped, test.ShouldBeTrue)
}

func TestProgressManagerDisabled(t *testing.T) {
	var out bytes.Buffer
	rec := &spinnerRecorder{}
	steps := []*Step{{ID: "root", Message: "Parent"}, {ID: "a", Message: "A", IndentLevel: 1}}
	pm := NewProgressManager(steps,
		WithProgressOutput(false), WithProgressWriter(&out), withProgressSpinnerFactory(rec.factory()))

	test.That(t, pm.Start("root"), test.ShouldBeNil)
	test.That(t, pm.Start("a"), test.ShouldBeNil)
	test.That(t, pm.Complete("a"), test.ShouldBeNil)
	test.That(t, out.Len(), test.ShouldEqual, 0)
	test.That(t, rec.spinners, test.ShouldBeEmpty)
	test.That(t, steps[1].Status, test.ShouldEqual, StepCompleted)
}

func TestMeshProgressObservesPipeline(t *testing.T) {
	var out bytes.Buffer
	rec := &spinnerRecorder{}
	p := newMeshProgress("Meshing scan.ply", WithProgressWriter(&out), withProgressSpinnerFactory(rec.factory()))
	test.That(t, p.pm.steps, test.ShouldHaveLength, len(pipeline.Steps)+1)

	p.begin()
	p.StepStarted(pipeline.StepLoad)
	p.StepFinished(pipeline.StepLoad, nil)
	p.StepStarted(pipeline.StepReconstruct)
	p.StepFinished(pipeline.StepReconstruct, errors.New("all points are collinear"))
	p.end("", errors.New("failed"))

	test.That(t, out.String(), test.ShouldStartWith, " …  Meshing scan.ply\n")
	test.That(t, out.String(), test.ShouldContainSubstring, "Meshing scan.ply: failed")
	test.That(t, rec.spinners, test.ShouldHaveLength, 2)
	test.That(t, rec.spinners[0].successes[0], test.ShouldStartWith, "   → Loading point cloud")
	test.That(t, rec.spinners[1].failures[0], test.ShouldContainSubstring, "Reconstructing surface: all points are collinear")
	test.That(t, p.pm.stepMap[string(pipeline.StepReconstruct)].Status, test.ShouldEqual, StepFailed)
	test.That(t, p.pm.stepMap[rootStepID].Status, test.ShouldEqual, StepFailed)
	test.That(t, p.pm.stepMap[string(pipeline.StepWrite)].Status, test.ShouldEqual, StepPending)
}
