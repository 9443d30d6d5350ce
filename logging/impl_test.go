package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.viam.com/test"
)

type cloudStats struct {
	Points  int
	Colored bool
	path    string
}

type stageReport struct {
	Stage string
	Stats cloudStats
	notes string
}

// logLine is one tab separated line written by a ConsoleAppender.
type logLine struct {
	time    string
	level   string
	name    string
	file    string
	line    int
	message string
	fields  map[string]any
}

func parseLine(t *testing.T, buf *bytes.Buffer, named bool) logLine {
	t.Helper()
	raw, err := buf.ReadString('\n')
	test.That(t, err, test.ShouldBeNil)
	parts := strings.Split(strings.TrimSuffix(raw, "\n"), "\t")
	var out logLine
	out.time, out.level, parts = parts[0], parts[1], parts[2:]
	if named {
		out.name, parts = parts[0], parts[1:]
	}
	file, line, found := strings.Cut(parts[0], ":")
	test.That(t, found, test.ShouldBeTrue)
	out.file = file
	out.line, err = strconv.Atoi(line)
	test.That(t, err, test.ShouldBeNil)
	out.message = parts[1]
	if len(parts) > 2 {
		test.That(t, parts, test.ShouldHaveLength, 3)
		test.That(t, json.Unmarshal([]byte(parts[2]), &out.fields), test.ShouldBeNil)
	}
	return out
}

func TestConsoleOutputFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := newImpl("", DEBUG, true, NewWriterAppender(buf))

	logger.Info("loaded ", 3, " clouds")
	line := parseLine(t, buf, false)
	_, err := time.Parse(DefaultTimeFormatStr, line.time)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, strings.HasSuffix(line.time, "Z"), test.ShouldBeTrue)
	test.That(t, line.level, test.ShouldEqual, "INFO")
	// the caller is this file, not the logging internals
	test.That(t, line.file, test.ShouldEqual, "logging/impl_test.go")
	test.That(t, line.line, test.ShouldBeGreaterThan, 0)
	test.That(t, line.message, test.ShouldEqual, "loaded 3 clouds")
	test.That(t, line.fields, test.ShouldBeNil)

	logger.Warnf("%d of %d points dropped", 2, 10)
	line = parseLine(t, buf, false)
	test.That(t, line.level, test.ShouldEqual, "WARN")
	test.That(t, line.file, test.ShouldEqual, "logging/impl_test.go")
	test.That(t, line.message, test.ShouldEqual, "2 of 10 points dropped")

	logger.Debugw("stage done", "stage", "reconstruct", "triangles", 512)
	line = parseLine(t, buf, false)
	test.That(t, line.level, test.ShouldEqual, "DEBUG")
	test.That(t, line.fields, test.ShouldResemble, map[string]any{"stage": "reconstruct", "triangles": 512.0})
}

func TestStructuredValues(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := newImpl("", DEBUG, false, NewWriterAppender(buf))

	// unexported fields are left out, nested exported ones are kept
	report := stageReport{Stage: "load", Stats: cloudStats{Points: 10, Colored: true, path: "a.ply"}, notes: "x"}
	logger.Infow("report", "report", report, 7, "numeric key")
	line := parseLine(t, buf, false)
	test.That(t, line.fields, test.ShouldResemble, map[string]any{
		"report": map[string]any{
			"Stage": "load",
			"Stats": map[string]any{"Points": 10.0, "Colored": true},
		},
		"7": "numeric key",
	})

	// a dangling key keeps its place with an error value
	logger.Errorw("unbalanced", "path")
	line = parseLine(t, buf, false)
	test.That(t, line.level, test.ShouldEqual, "ERROR")
	test.That(t, line.fields["path"], test.ShouldEqual, errUnpairedKey.Error())
}

func TestLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := newImpl("", WARN, false, NewWriterAppender(buf))

	evaluated := false
	logger.Debug("dropped")
	logger.Infof("dropped %v", stringerFunc(func() string { evaluated = true; return "x" }))
	test.That(t, buf.Len(), test.ShouldEqual, 0)
	test.That(t, evaluated, test.ShouldBeFalse)

	logger.Warnw("kept", "key", "value")
	test.That(t, buf.String(), test.ShouldContainSubstring, "WARN")
	test.That(t, buf.String(), test.ShouldContainSubstring, `{"key":"value"}`)

	logger.SetLevel(DEBUG)
	test.That(t, logger.GetLevel(), test.ShouldEqual, DEBUG)
	logger.Debug("now visible")
	test.That(t, buf.String(), test.ShouldContainSubstring, "now visible")
}

type stringerFunc func() string

func (f stringerFunc) String() string { return f() }

func TestSubloggerNames(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	sub := logger.Sublogger("gate").Sublogger("build")
	sub.Infow("built", "path", "out.obj")

	entries := observed.All()
	test.That(t, len(entries), test.ShouldEqual, 1)
	test.That(t, entries[0].LoggerName, test.ShouldEqual, "gate.build")
	test.That(t, entries[0].ContextMap()["path"], test.ShouldEqual, "out.obj")

	// changing the sublogger level does not affect the parent
	sub.SetLevel(ERROR)
	test.That(t, logger.GetLevel(), test.ShouldEqual, DEBUG)

	// appenders added later reach subloggers created earlier
	buf := &bytes.Buffer{}
	logger.AddAppender(NewWriterAppender(buf))
	sub.Errorw("failed")
	test.That(t, buf.String(), test.ShouldContainSubstring, "gate.build")
}

func TestForRequest(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewCLILogger("splatmesh", buf, DEBUG)
	id := uuid.MustParse("3f2a9c10-0000-4000-8000-000000000000")
	test.That(t, RequestName(id), test.ShouldEqual, "req-3f2a9c10")

	ForRequest(logger, id).Infow("loaded", "points", 5)
	line := parseLine(t, buf, true)
	test.That(t, line.name, test.ShouldEqual, "splatmesh.req-3f2a9c10")
	test.That(t, line.message, test.ShouldEqual, "loaded")

	// two jobs never share a name
	other := ForRequest(logger, uuid.New())
	other.Info("other job")
	test.That(t, parseLine(t, buf, true).name, test.ShouldNotEqual, "splatmesh.req-3f2a9c10")
}

func TestCLILevel(t *testing.T) {
	test.That(t, CLILevel(nil, false), test.ShouldEqual, WARN)
	info := INFO
	test.That(t, CLILevel(&info, false), test.ShouldEqual, INFO)
	test.That(t, CLILevel(&info, true), test.ShouldEqual, DEBUG)

	buf := &bytes.Buffer{}
	logger := NewCLILogger("splatmesh", buf, CLILevel(nil, false))
	logger.Info("progress is shown elsewhere")
	test.That(t, buf.Len(), test.ShouldEqual, 0)
	logger.Warn("input has no colors")
	test.That(t, buf.String(), test.ShouldContainSubstring, "input has no colors")
}

func TestLevelFromString(t *testing.T) {
	for input, expected := range map[string]Level{"debug": DEBUG, "INFO": INFO, "warning": WARN, "Error": ERROR} {
		level, err := LevelFromString(input)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, level, test.ShouldEqual, expected)
	}
	_, err := LevelFromString("verbose")
	test.That(t, err, test.ShouldNotBeNil)

	var level Level
	test.That(t, json.Unmarshal([]byte(`"warn"`), &level), test.ShouldBeNil)
	test.That(t, level, test.ShouldEqual, WARN)
}

func TestFileAppender(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "splatmesh.log")
	appender := NewFileAppender(logPath, 1)
	logger := NewBlankLogger("file")
	logger.AddAppender(appender)

	logger.Infow("written to disk", "points", 12)
	test.That(t, logger.Sync(), test.ShouldBeNil)
	test.That(t, appender.Close(), test.ShouldBeNil)

	//nolint:gosec
	contents, err := os.ReadFile(logPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(contents), test.ShouldContainSubstring, "written to disk")
	test.That(t, string(contents), test.ShouldContainSubstring, `{"points":12}`)
}
