package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"github.com/splatmesh/splatmesh/pipeline"
)

type progressSpinner interface {
	Stop() error
	Success(...any)
	Fail(...any)
	UpdateText(string)
}

type progressSpinnerFactory func(string) (progressSpinner, error)

var defaultSpinnerFactory progressSpinnerFactory = func(text string) (progressSpinner, error) {
	spinner, err := pterm.DefaultSpinner.
		WithRemoveWhenDone(false).
		WithText(text).
		Start()
	if err != nil {
		return nil, err
	}
	return spinner, nil
}

// StepStatus represents the state of a progress step.
type StepStatus int

const (
	// StepPending indicates a step has not yet started.
	StepPending StepStatus = iota
	// StepRunning indicates a step is currently in progress.
	StepRunning
	// StepCompleted indicates a step finished successfully.
	StepCompleted
	// StepFailed indicates a step encountered an error.
	StepFailed
)

// Step represents a single progress step.
type Step struct {
	ID           string
	Message      string
	Status       StepStatus
	CompletedMsg string // Optional: Custom message when completed
	IndentLevel  int    // 0 = root, 1 = child (→), 2 = nested child, etc.
	startTime    time.Time
}

// ProgressManager shows a sequence of steps, one spinner at a time.
type ProgressManager struct {
	steps          []*Step
	stepMap        map[string]*Step
	currentSpinner progressSpinner
	spinnerFactory progressSpinnerFactory
	out            io.Writer
	mu             sync.Mutex
	disabled       bool
}

// ProgressManagerOption allows customizing ProgressManager behavior at creation time.
type ProgressManagerOption func(*ProgressManager)

// WithProgressOutput enables or disables terminal output for a ProgressManager.
func WithProgressOutput(enabled bool) ProgressManagerOption {
	return func(pm *ProgressManager) {
		pm.disabled = !enabled
	}
}

// WithProgressWriter sends root step lines to out instead of stdout.
func WithProgressWriter(out io.Writer) ProgressManagerOption {
	return func(pm *ProgressManager) {
		pm.out = out
	}
}

func withProgressSpinnerFactory(factory progressSpinnerFactory) ProgressManagerOption {
	return func(pm *ProgressManager) {
		pm.spinnerFactory = factory
	}
}

// NewProgressManager creates a new ProgressManager with all steps registered upfront.
func NewProgressManager(steps []*Step, opts ...ProgressManagerOption) *ProgressManager {
	pterm.Success.Prefix = pterm.Prefix{
		Text:  "✓",
		Style: pterm.NewStyle(pterm.FgGreen),
	}
	pterm.Error.Prefix = pterm.Prefix{
		Text:  "✗",
		Style: pterm.NewStyle(pterm.FgRed),
	}
	baseSequence := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	spinnerSequence := make([]string, len(baseSequence))
	for i, char := range baseSequence {
		spinnerSequence[i] = " " + char
	}
	pterm.DefaultSpinner.Sequence = spinnerSequence
	pterm.DefaultSpinner.Style = pterm.NewStyle(pterm.FgCyan)

	stepMap := make(map[string]*Step, len(steps))
	for _, step := range steps {
		stepMap[step.ID] = step
	}
	pm := &ProgressManager{
		steps:          steps,
		stepMap:        stepMap,
		spinnerFactory: defaultSpinnerFactory,
		out:            os.Stdout,
	}
	for _, opt := range opts {
		opt(pm)
	}
	return pm
}

// getPrefix returns the formatted prefix for a step based on its indent level.
func getPrefix(step *Step) string {
	if step.IndentLevel == 0 {
		return ""
	}
	return strings.Repeat("  ", step.IndentLevel) + "→ "
}

func (pm *ProgressManager) lookup(stepID string) (*Step, error) {
	step, exists := pm.stepMap[stepID]
	if !exists {
		return nil, fmt.Errorf("step %q not found", stepID)
	}
	return step, nil
}

// Start marks a step running. Root steps print a "…" line; child steps get a spinner.
func (pm *ProgressManager) Start(stepID string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	step, err := pm.lookup(stepID)
	if err != nil {
		return err
	}
	step.Status = StepRunning
	step.startTime = time.Now()
	if pm.disabled {
		return nil
	}

	if step.IndentLevel == 0 {
		_, err := fmt.Fprintf(pm.out, " …  %s\n", step.Message)
		return err
	}
	if pm.currentSpinner != nil {
		_ = pm.currentSpinner.Stop() //nolint:errcheck
	}
	// pterm adds a space after the spinner character
	spinner, err := pm.spinnerFactory(" " + getPrefix(step) + step.Message)
	if err != nil {
		return fmt.Errorf("failed to start child spinner: %w", err)
	}
	pm.currentSpinner = spinner
	return nil
}

// Complete marks a step as completed with its completion message.
func (pm *ProgressManager) Complete(stepID string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	step, err := pm.lookup(stepID)
	if err != nil {
		return err
	}
	msg := step.CompletedMsg
	if msg == "" {
		msg = step.Message
	}
	pm.completeLocked(step, msg)
	return nil
}

// CompleteWithMessage marks a step as completed with a custom message.
func (pm *ProgressManager) CompleteWithMessage(stepID, message string) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	step, err := pm.lookup(stepID)
	if err != nil {
		return err
	}
	pm.completeLocked(step, message)
	return nil
}

func (pm *ProgressManager) completeLocked(step *Step, message string) {
	step.Status = StepCompleted
	if pm.disabled {
		return
	}
	line := getPrefix(step) + message + elapsed(step)
	if step.IndentLevel > 0 {
		line = " " + line
	}
	if pm.currentSpinner != nil {
		pm.currentSpinner.Success(line)
		pm.currentSpinner = nil
		return
	}
	fmt.Fprintln(pm.out, pterm.Success.Sprint(line))
}

// Fail marks a step as failed with an error message.
func (pm *ProgressManager) Fail(stepID string, err error) error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	step, lookupErr := pm.lookup(stepID)
	if lookupErr != nil {
		return lookupErr
	}
	step.Status = StepFailed
	if pm.disabled {
		return nil
	}
	line := " " + getPrefix(step) + fmt.Sprintf("%s: %v", step.Message, err)
	if pm.currentSpinner != nil {
		pm.currentSpinner.Fail(line)
		pm.currentSpinner = nil
		return nil
	}
	fmt.Fprintln(pm.out, pterm.Error.Sprint(line))
	return nil
}

// UpdateText updates the text of the currently active spinner.
func (pm *ProgressManager) UpdateText(text string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.disabled || pm.currentSpinner == nil {
		return
	}
	pm.currentSpinner.UpdateText(text)
}

// Stop stops any active spinner.
func (pm *ProgressManager) Stop() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if pm.disabled {
		return
	}
	if pm.currentSpinner != nil {
		_ = pm.currentSpinner.Stop() //nolint:errcheck
		pm.currentSpinner = nil
	}
}

func elapsed(step *Step) string {
	if step.startTime.IsZero() {
		return ""
	}
	return fmt.Sprintf(" (%s)", time.Since(step.startTime).Round(10*time.Millisecond))
}

var stageMessages = map[pipeline.Step]string{
	pipeline.StepLoad:        "Loading point cloud",
	pipeline.StepResolve:     "Resolving colors",
	pipeline.StepReconstruct: "Reconstructing surface",
	pipeline.StepTransfer:    "Transferring colors",
	pipeline.StepPostProcess: "Post-processing mesh",
	pipeline.StepWrite:       "Writing mesh",
}

const rootStepID = "mesh"

// meshProgress shows one pipeline run as a root step with a child step per stage.
type meshProgress struct {
	pm *ProgressManager
}

var _ pipeline.Observer = (*meshProgress)(nil)

func newMeshProgress(title string, opts ...ProgressManagerOption) *meshProgress {
	steps := []*Step{{ID: rootStepID, Message: title}}
	for _, stage := range pipeline.Steps {
		steps = append(steps, &Step{ID: string(stage), Message: stageMessages[stage], IndentLevel: 1})
	}
	return &meshProgress{pm: NewProgressManager(steps, opts...)}
}

func (p *meshProgress) begin() {
	_ = p.pm.Start(rootStepID) //nolint:errcheck
}

func (p *meshProgress) end(message string, err error) {
	p.pm.Stop()
	if err != nil {
		_ = p.pm.Fail(rootStepID, err) //nolint:errcheck
		return
	}
	_ = p.pm.CompleteWithMessage(rootStepID, message) //nolint:errcheck
}

func (p *meshProgress) StepStarted(step pipeline.Step) {
	_ = p.pm.Start(string(step)) //nolint:errcheck
}

func (p *meshProgress) StepFinished(step pipeline.Step, err error) {
	if err != nil {
		_ = p.pm.Fail(string(step), err) //nolint:errcheck
		return
	}
	_ = p.pm.Complete(string(step)) //nolint:errcheck
}
