// Package ztest runs formulaic tests ("ztests") that can be (1) run in-process
// with the compiled-in code base or (2) run as a bash script running a sequence
// of arbitrary shell commands invoking any of the build artifacts.  The
// first case comprises the "protocol test style" and the second case
// comprises the "script test style".  Case (1) is easier to debug by
// simply running "go test" compared to replicating the test using "go run".
// Script-style tests don't have this convenience.
//
// In the protocol style, ztest compiles a YAML protocol and checks for an
// expected output.
//
//	protocol: |
//	  statements:
//	    - {op: create, name: in1, columns: [{name: a}], stored_with: [1]}
//	    - {op: project, name: p, input: in1, cols: [a]}
//
//	output: |
//	  CREATE RELATION in1([a]) {1} WITH COLUMNS (INTEGER)
//	  PROJECT [a] FROM (in1([a]) {1}) AS p([a]) {1}
//
// The flags field takes the flags of "conclave compile" (-O, -P and -dot)
// and the config field holds an optional workflow configuration.  A test
// that expects compilation to fail sets error instead of output.
//
// Alternatively, tests can be configured to run as shell scripts.
// Scripts are executed by "bash -e -o pipefail", and a nonzero shell exit
// code causes a test failure.  The yaml sets up a collection of input
// files and stdin, the script runs, and the test driver compares expected
// output files, stdout, and stderr with data in the yaml spec.
//
//	inputs:
//	  - name: protocol.yaml
//	    data: |
//	      statements:
//	        - {op: create, name: in1, columns: [{name: a}], stored_with: [1]}
//
//	script: |
//	  conclave compile protocol.yaml
//
//	outputs:
//	  - name: stdout
//	    data: |
//	      CREATE RELATION in1([a]) {1} WITH COLUMNS (INTEGER)
//
// Each input and output has a name.  For inputs, a file (source)
// or inline data (data) may be specified.
// If no data is specified, then a file of the same name as the
// name field is looked for in the same directory as the yaml file.
// The source spec is a file path relative to the directory of the
// yaml file.  For outputs, expected output is defined in the same
// fashion as the inputs though you can also specify a "regexp" string
// instead of expected data.  If an output is named "stdout" or "stderr"
// then the actual output is taken from the stdout or stderr of the
// the shell script.
//
// Ztest YAML files for a package should reside in a subdirectory named
// testdata/ztest and the package's tests should contain a Go test named
// TestZTest that calls Run.
//
//	func TestZTest(t *testing.T) { ztest.Run(t, "testdata/ztest") }
//
// If the ZTEST_PATH environment variable is unset or empty, Run runs the
// protocol tests in the current process and skips the script tests.
// Otherwise, Run runs only the script tests, with the conclave executable
// found in the directories specified by ZTEST_PATH.
//
// Tests of either style can be skipped by setting the skip field to a non-empty
// string.  A message containing the string will be written to the test log.
package ztest

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/brimdata/conclave"
	"github.com/brimdata/conclave/compiler/frontend"
	"github.com/brimdata/conclave/config"
	"github.com/goccy/go-yaml"
	yamlparser "github.com/goccy/go-yaml/parser"
	"github.com/pmezard/go-difflib/difflib"
)

func ShellPath() string {
	return os.Getenv("ZTEST_PATH")
}

type Bundle struct {
	TestName string
	FileName string
	Test     *ZTest
	Error    error
}

func Load(dirname string) ([]Bundle, error) {
	var bundles []Bundle
	fileinfos, err := os.ReadDir(dirname)
	if err != nil {
		return nil, err
	}
	for _, fi := range fileinfos {
		filename := fi.Name()
		const dotyaml = ".yaml"
		if !strings.HasSuffix(filename, dotyaml) {
			continue
		}
		testname := strings.TrimSuffix(filename, dotyaml)
		filename = filepath.Join(dirname, filename)
		zt, err := FromYAMLFile(filename)
		bundles = append(bundles, Bundle{testname, filename, zt, err})
	}
	return bundles, nil
}

// Run runs the ztests in the directory named dirname.  For each file f.yaml in
// the directory, Run calls FromYAMLFile to load a ztest and then runs it in
// subtest named f.
func Run(t *testing.T, dirname string) {
	shellPath := ShellPath()
	bundles, err := Load(dirname)
	if err != nil {
		t.Fatal(err)
	}
	for _, b := range bundles {
		t.Run(b.TestName, func(t *testing.T) {
			t.Parallel()
			if b.Error != nil {
				t.Fatalf("%s: %s", b.FileName, b.Error)
			}
			b.Test.Run(t, shellPath, b.FileName)
		})
	}
}

type File struct {
	// Name is the name of the file with respect to the directory in which
	// the test script runs.  For inputs, if no data source is specified,
	// then name is also the name of a data file in the directory containing
	// the yaml test file, which is copied to the test script directory.
	// Name can also be stdin (for inputs) or stdout or stderr (for outputs).
	Name string `yaml:"name"`
	// Data and Source represent the different ways file data can
	// be defined for this file.  Data is a string turned into the contents
	// of the file.  Source is the pathname of a file in the repo whose
	// contents comprise the data.
	Data   *string `yaml:"data,omitempty"`
	Source string  `yaml:"source,omitempty"`
	// Re is a regular expression describing the contents of the file,
	// which is only applicable to output files.
	Re string `yaml:"regexp,omitempty"`
}

func (f *File) check() error {
	if f.Data != nil && f.Source != "" {
		return fmt.Errorf("%s: must specify at most one of data or source", f.Name)
	}
	return nil
}

func (f *File) load(dir string) ([]byte, *regexp.Regexp, error) {
	if f.Data != nil {
		return []byte(*f.Data), nil, nil
	}
	if f.Source != "" {
		b, err := os.ReadFile(filepath.Join(dir, f.Source))
		return b, nil, err
	}
	if f.Re != "" {
		re, err := regexp.Compile(f.Re)
		return nil, re, err
	}
	b, err := os.ReadFile(filepath.Join(dir, f.Name))
	if err == nil {
		return b, nil, nil
	}
	if os.IsNotExist(err) {
		err = fmt.Errorf("%s: no data source", f.Name)
	}
	return nil, nil, err
}

// ZTest defines a ztest.
type ZTest struct {
	Skip string `yaml:"skip,omitempty"`
	Tag  string `yaml:"tag,omitempty"`

	// For protocol-style tests.
	Protocol string `yaml:"protocol,omitempty"`
	Config   string `yaml:"config,omitempty"`
	Flags    string `yaml:"flags,omitempty"`
	Output   string `yaml:"output,omitempty"`
	Error    string `yaml:"error,omitempty"`

	// For script-style tests.
	Script  string   `yaml:"script,omitempty"`
	Inputs  []File   `yaml:"inputs,omitempty"`
	Outputs []File   `yaml:"outputs,omitempty"`
	Env     []string `yaml:"env,omitempty"`
}

func (z *ZTest) check() error {
	if z.Script != "" {
		if z.Outputs == nil {
			return errors.New("outputs field missing in a sh test")
		}
		for _, f := range z.Inputs {
			if err := f.check(); err != nil {
				return err
			}
			if f.Re != "" {
				return fmt.Errorf("%s: cannot use regexp in an input", f.Name)
			}
		}
		for _, f := range z.Outputs {
			if err := f.check(); err != nil {
				return err
			}
		}
	} else if z.Protocol == "" {
		return errors.New("either a protocol field or script field must be present")
	}
	return nil
}

// FromYAMLFile loads a ZTest from the YAML file named filename.
func FromYAMLFile(filename string) (*ZTest, error) {
	f, err := yamlparser.ParseFile(filename, 0)
	if err != nil {
		return nil, err
	}
	if len(f.Docs) != 1 {
		return nil, errors.New("file must contain one YAML document")
	}
	var z ZTest
	if err := yaml.NodeToValue(f.Docs[0].Body, &z, yaml.DisallowUnknownField()); err != nil {
		return nil, err
	}
	return &z, nil
}

func (z *ZTest) ShouldSkip(path string) string {
	switch {
	case z.Script != "" && path == "":
		return "script test on in-process run"
	case z.Protocol != "" && path != "":
		return "in-process test on script run"
	case z.Skip != "":
		return z.Skip
	case z.Tag != "" && z.Tag != os.Getenv("ZTEST_TAG"):
		return fmt.Sprintf("tag %q does not match ZTEST_TAG=%q", z.Tag, os.Getenv("ZTEST_TAG"))
	}
	return ""
}

func (z *ZTest) RunScript(ctx context.Context, shellPath, testDir, tempDir string) error {
	if err := z.check(); err != nil {
		return fmt.Errorf("bad yaml format: %w", err)
	}
	return runsh(ctx, shellPath, testDir, tempDir, z)
}

func (z *ZTest) RunInternal() error {
	if err := z.check(); err != nil {
		return fmt.Errorf("bad yaml format: %w", err)
	}
	return z.diffInternal(runInternal(z.Protocol, z.Config, strings.Fields(z.Flags)))
}

func (z *ZTest) diffInternal(out string, err error) error {
	var outDiffErr, errDiffErr error
	if z.Output != out {
		outDiffErr = diffErr("output", z.Output, out)
	}
	var errStr string
	if err != nil {
		// Append newline if err doesn't end with one.
		errStr = strings.TrimSuffix(err.Error(), "\n") + "\n"
	}
	if z.Error != errStr {
		errDiffErr = diffErr("error", z.Error, errStr)
	}
	return errors.Join(outDiffErr, errDiffErr)
}

func (z *ZTest) Run(t *testing.T, path, filename string) {
	if msg := z.ShouldSkip(path); msg != "" {
		t.Skip("skipping test:", msg)
	}
	var err error
	if z.Script != "" {
		err = z.RunScript(t.Context(), path, filepath.Dir(filename), t.TempDir())
	} else {
		err = z.RunInternal()
	}
	if err != nil {
		t.Fatalf("%s: %s", filename, err)
	}
}

func diffErr(name, expected, actual string) error {
	if !utf8.ValidString(expected) {
		expected = hex.Dump([]byte(expected))
		actual = hex.Dump([]byte(actual))
	}
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		FromFile: "expected",
		B:        difflib.SplitLines(actual),
		ToFile:   "actual",
		Context:  5,
	})
	if err != nil {
		panic("ztest: " + err.Error())
	}
	return fmt.Errorf("expected and actual %s differ:\n%s", name, diff)
}

func runsh(ctx context.Context, path, testDir, tempDir string, zt *ZTest) error {
	var stdin io.Reader
	for _, f := range zt.Inputs {
		b, _, err := f.load(testDir)
		if err != nil {
			return err
		}
		if f.Name == "stdin" {
			stdin = bytes.NewReader(b)
			continue
		}
		if err := os.WriteFile(filepath.Join(tempDir, f.Name), b, 0644); err != nil {
			return err
		}
	}
	stdout, stderr, err := RunShell(ctx, tempDir, path, zt.Script, stdin, zt.Env)
	if err != nil {
		return fmt.Errorf("script failed: %w\n=== stdout ===\n%s=== stderr ===\n%s",
			err, stdout, stderr)
	}
	for _, f := range zt.Outputs {
		var actual string
		switch f.Name {
		case "stdout":
			actual = stdout
		case "stderr":
			actual = stderr
		default:
			b, err := os.ReadFile(filepath.Join(tempDir, f.Name))
			if err != nil {
				return fmt.Errorf("%s: %w", f.Name, err)
			}
			actual = string(b)
		}
		expected, expectedRE, err := f.load(testDir)
		if err != nil {
			return err
		}
		if expected != nil && string(expected) != actual {
			return diffErr(f.Name, string(expected), actual)
		}
		if expectedRE != nil && !expectedRE.MatchString(actual) {
			return fmt.Errorf("%s: regexp %q does not match %q", f.Name, expectedRE, actual)
		}
	}
	return nil
}

// RunShell runs script with "bash -e -o pipefail" in dir.  path is
// prepended to PATH and env is appended to the environment of the
// script.
func RunShell(ctx context.Context, dir, path, script string, stdin io.Reader, env []string) (string, string, error) {
	cmd := exec.CommandContext(ctx, "bash", "-e", "-o", "pipefail")
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "PATH="+path+string(os.PathListSeparator)+os.Getenv("PATH"))
	cmd.Env = append(cmd.Env, env...)
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	cmd.Stdin = io.MultiReader(strings.NewReader(script), stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// runInternal compiles protocol with the workflow configuration in
// configYAML, or the defaults when it is empty.  flags may contain any
// of the stage flags of "conclave compile".
func runInternal(protocol, configYAML string, flags []string) (string, error) {
	var opts conclave.CompileOptions
	fs := flag.NewFlagSet("ztest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.BoolVar(&opts.Optimize, "O", false, "")
	fs.BoolVar(&opts.Partition, "P", false, "")
	fs.BoolVar(&opts.DOT, "dot", false, "")
	if err := fs.Parse(flags); err != nil {
		return "", err
	}
	cfg, err := config.New("ztest")
	if configYAML != "" {
		cfg, err = config.Parse([]byte(configYAML))
	}
	if err != nil {
		return "", err
	}
	p, err := frontend.ParseProtocol([]byte(protocol))
	if err != nil {
		return "", err
	}
	return conclave.Compile(p, cfg, opts, nil)
}
