// Package config loads model definitions from YAML.
//
// A definition file declares the sets, tables, variables and problems of one
// model; expressions are written in the textual form parsed by
// ParseExpression. Load returns a validated *model.Model ready for a run
// session.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couplex/couplex/internal/utils"
	"github.com/couplex/couplex/model"
	"github.com/couplex/couplex/sets"
)

// File mirrors the YAML model definition.
type File struct {
	Name      string        `yaml:"name"`
	Sets      []SetDef      `yaml:"sets"`
	Tables    []TableDef    `yaml:"tables"`
	Variables []VariableDef `yaml:"variables"`
	Problems  []ProblemDef  `yaml:"problems"`
}

// SetDef declares one index set.
type SetDef struct {
	Name         string              `yaml:"name"`
	Coordinates  []string            `yaml:"coordinates"`
	InterProblem bool                `yaml:"inter_problem"`
	Filters      map[string][]string `yaml:"filters"`
}

// TableDef declares one data table over a domain of set names.
type TableDef struct {
	Name   string   `yaml:"name"`
	Domain []string `yaml:"domain"`
	Kind   string   `yaml:"kind"`
	Role   RoleDef  `yaml:"role"`
}

// RoleDef decodes a table role: the scalar forms "exogenous" and
// "endogenous", or a mapping with either a constant generator name or a
// per-subproblem role split.
//
//	role: exogenous
//	role:
//	  constant: sum_vector
//	role:
//	  per_subproblem: {market: endogenous, plant: exogenous}
type RoleDef struct {
	Kind          string
	Generator     string
	PerSubproblem map[string]string
}

func (r *RoleDef) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		return node.Decode(&r.Kind)
	case yaml.MappingNode:
		var m struct {
			Constant      string            `yaml:"constant"`
			PerSubproblem map[string]string `yaml:"per_subproblem"`
		}
		if err := node.Decode(&m); err != nil {
			return err
		}
		switch {
		case m.Constant != "" && m.PerSubproblem != nil:
			return errors.New("role cannot be both constant and per_subproblem")
		case m.Constant != "":
			r.Kind = "constant"
			r.Generator = m.Constant
		case m.PerSubproblem != nil:
			r.Kind = "per_subproblem"
			r.PerSubproblem = m.PerSubproblem
		default:
			return errors.New("role mapping needs constant or per_subproblem")
		}
		return nil
	default:
		return errors.New("role must be a string or a mapping")
	}
}

func (r RoleDef) role() (model.Role, error) {
	switch r.Kind {
	case "", "exogenous":
		return model.Exogenous(), nil
	case "endogenous":
		return model.Endogenous(), nil
	case "constant":
		return model.Constant(r.Generator), nil
	case "per_subproblem":
		per := make(map[string]model.RoleKind, len(r.PerSubproblem))
		for name, kind := range r.PerSubproblem {
			switch kind {
			case "exogenous":
				per[name] = model.RoleExogenous
			case "endogenous":
				per[name] = model.RoleEndogenous
			default:
				return model.Role{}, fmt.Errorf("per-subproblem role for %q must be exogenous or endogenous, got %q", name, kind)
			}
		}
		return model.PerSubproblem(per), nil
	default:
		return model.Role{}, fmt.Errorf("unknown role %q", r.Kind)
	}
}

// VariableDef binds a table under an axis allocation.
type VariableDef struct {
	Name   string              `yaml:"name"`
	Table  string              `yaml:"table"`
	Rows   string              `yaml:"rows"`
	Cols   string              `yaml:"cols"`
	Intra  []string            `yaml:"intra"`
	Select map[string][]string `yaml:"select"`
}

// ProblemDef declares one problem with its expressions.
type ProblemDef struct {
	Name        string          `yaml:"name"`
	Group       string          `yaml:"group"`
	Order       int             `yaml:"order"`
	Feasibility bool            `yaml:"feasibility"`
	Expressions []ExpressionDef `yaml:"expressions"`
}

// ExpressionDef is one labeled constraint or objective in textual form.
type ExpressionDef struct {
	Label string `yaml:"label"`
	Expr  string `yaml:"expr"`
}

// Load reads a YAML model definition and returns the validated model.
func Load(path string) (*model.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse builds the validated model described by YAML data.
func Parse(data []byte) (*model.Model, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return f.Model()
}

// Model assembles and validates the model described by the file.
func (f *File) Model() (*model.Model, error) {
	if f.Name == "" {
		return nil, errors.New("config: model name required")
	}
	m := model.New(f.Name)
	for _, sd := range f.Sets {
		var opts []sets.SetOption
		if sd.InterProblem {
			opts = append(opts, sets.WithRole(sets.InterProblem))
		}
		for _, fname := range utils.SortedKeys(sd.Filters) {
			opts = append(opts, sets.WithFilter(fname, sd.Filters[fname]...))
		}
		s, err := sets.NewSet(sd.Name, sd.Coordinates, opts...)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := m.AddSet(s); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	for _, td := range f.Tables {
		domSets := make([]*sets.Set, len(td.Domain))
		for i, name := range td.Domain {
			s, ok := m.Set(name)
			if !ok {
				return nil, fmt.Errorf("config: table %q: unknown set %q", td.Name, name)
			}
			domSets[i] = s
		}
		dom, err := sets.NewDomain(domSets...)
		if err != nil {
			return nil, fmt.Errorf("config: table %q: %w", td.Name, err)
		}
		kind, err := parseKind(td.Kind)
		if err != nil {
			return nil, fmt.Errorf("config: table %q: %w", td.Name, err)
		}
		role, err := td.Role.role()
		if err != nil {
			return nil, fmt.Errorf("config: table %q: %w", td.Name, err)
		}
		t, err := model.NewDataTable(td.Name, dom, kind, role)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := m.AddTable(t); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	for _, vd := range f.Variables {
		t, ok := m.Table(vd.Table)
		if !ok {
			return nil, fmt.Errorf("config: variable %q: unknown table %q", vd.Name, vd.Table)
		}
		var opts []model.VariableOption
		if len(vd.Select) > 0 {
			sel := make(sets.Selection, len(vd.Select))
			for name, coords := range vd.Select {
				sel[name] = coords
			}
			opts = append(opts, model.WithSelection(sel))
		}
		alloc := sets.Allocation{Rows: vd.Rows, Cols: vd.Cols, Intra: vd.Intra}
		v, err := model.NewVariable(vd.Name, t, alloc, opts...)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := m.AddVariable(v); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	for _, pd := range f.Problems {
		var opts []model.ProblemOption
		if pd.Group != "" {
			opts = append(opts, model.InGroup(pd.Group, pd.Order))
		}
		if pd.Feasibility {
			opts = append(opts, model.AsFeasibility())
		}
		p, err := model.NewProblem(pd.Name, opts...)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		for _, ed := range pd.Expressions {
			root, err := ParseExpression(ed.Expr)
			if err != nil {
				return nil, fmt.Errorf("config: problem %q, expression %q: %w", pd.Name, ed.Label, err)
			}
			if err := p.AddExpression(ed.Label, root); err != nil {
				return nil, fmt.Errorf("config: %w", err)
			}
		}
		if err := m.AddProblem(p); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func parseKind(s string) (model.ValueKind, error) {
	switch s {
	case "", "real":
		return model.Real, nil
	case "integer":
		return model.Integer, nil
	case "binary":
		return model.Binary, nil
	default:
		return 0, fmt.Errorf("unknown value kind %q", s)
	}
}

// DataFile maps table names to their full-domain values in row-major order.
type DataFile struct {
	Tables map[string][]float64 `yaml:"tables"`
}

// LoadData reads a YAML data file of full-domain table values, the shape
// accepted by Session.LoadTable.
func LoadData(path string) (map[string][]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	var f DataFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return f.Tables, nil
}
