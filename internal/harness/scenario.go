// Package harness runs compile scenarios: a schema document plus a
// block program, compiled end to end and compared against golden SQL.
// Scenarios are the conformance surface for the compiler - the golden
// files are the source of truth for what a program must compile to.
package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/gravel/internal/emit"
	"github.com/roach88/gravel/internal/ir"
	"github.com/roach88/gravel/internal/relation"
	"github.com/roach88/gravel/internal/schema"
	"github.com/roach88/gravel/internal/sqlgen"
)

// Scenario defines one compile scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the path to the CUE schema document, relative to the
	// scenario file.
	Schema string `yaml:"schema"`

	// Program is the path to the block program file, relative to the
	// scenario file.
	Program string `yaml:"program"`

	// dir is the directory of the scenario file, for resolving the
	// relative paths above.
	dir string
}

// Result is the outcome of compiling a scenario.
type Result struct {
	// Plan is the compiled relational query.
	Plan *relation.SelectQuery

	// SQL is the parameterized rendering; Params are its values.
	SQL    string
	Params []any

	// InlineSQL is the rendering with literals inlined, the form the
	// golden files hold.
	InlineSQL string

	// Fingerprint is the canonical JSON form of the plan.
	Fingerprint []byte
}

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// are rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Name == "" {
		return nil, fmt.Errorf("scenario name is required")
	}
	if scenario.Schema == "" || scenario.Program == "" {
		return nil, fmt.Errorf("scenario %q: schema and program are required", scenario.Name)
	}

	scenario.dir = filepath.Dir(path)
	return &scenario, nil
}

// Run compiles a scenario end to end: load schema metadata, load the
// program, emit the plan, render SQL both ways, and fingerprint.
func Run(scenario *Scenario) (*Result, error) {
	meta, err := schema.LoadMetadata(filepath.Join(scenario.dir, scenario.Schema))
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}

	prog, err := ir.LoadProgram(filepath.Join(scenario.dir, scenario.Program))
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}

	plan, err := emit.Compile(prog, meta)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}

	sql, params, err := sqlgen.NewCompiler().Compile(plan)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}

	inline, _, err := (&sqlgen.Compiler{InlineLiterals: true}).Compile(plan)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}

	fingerprint, err := relation.Fingerprint(plan)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}

	return &Result{
		Plan:        plan,
		SQL:         sql,
		Params:      params,
		InlineSQL:   inline,
		Fingerprint: fingerprint,
	}, nil
}
