package run

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/couplex/couplex/internal/utils"
	"github.com/couplex/couplex/model"
	"github.com/couplex/couplex/sets"
	"github.com/couplex/couplex/store"
)

// runIntegrated solves scenarios in parallel. Within a scenario, uncoupled
// problems solve once against the store, then each coupling group iterates
// block Gauss-Seidel on a stage until its shared values settle. Only
// converged passes are promoted to the store.
func (s *Session) runIntegrated(ctx context.Context) (*Report, error) {
	scenarios := s.model.Scenarios()
	groups := s.model.CouplingGroups()
	uncoupled := s.model.UncoupledProblems()

	type cell struct {
		solves []SolveReport
		groups []GroupReport
	}
	cells := make([]cell, len(scenarios))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for i, sc := range scenarios {
		g.Go(func() error {
			c := &cells[i]
			for _, p := range uncoupled {
				c.solves = append(c.solves, s.solveUnit(ctx, p, sc, s.store, s.store))
			}
			for _, grp := range groups {
				gr, solves := s.runGroup(ctx, grp, sc)
				c.groups = append(c.groups, gr)
				c.solves = append(c.solves, solves...)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	rep := &Report{Mode: ModeIntegrated}
	for i := range cells {
		rep.Solves = append(rep.Solves, cells[i].solves...)
		rep.Groups = append(rep.Groups, cells[i].groups...)
	}
	return rep, nil
}

// runGroup iterates one coupling group in one scenario. Each pass solves the
// members in declared order against a stage, so later members see the values
// the earlier ones just wrote. The pass converges when the values shared
// between members stop moving; the stage is then promoted. A failed member
// discards the stage; so does an exhausted iteration cap, unless BestEffort
// promotes the last pass anyway. Either way the report carries the terminal
// state.
func (s *Session) runGroup(ctx context.Context, grp model.CouplingGroup, sc model.Scenario) (GroupReport, []SolveReport) {
	rep := GroupReport{Group: grp.Name, Scenario: sc.Key()}

	stage, err := s.store.Stage(stageName(grp.Name, sc))
	if err != nil {
		rep.State = GroupSolverFailed
		rep.Err = fmt.Errorf("coupling group %q, scenario %q: %w", grp.Name, sc.Key(), err)
		return rep, nil
	}

	mon := NewMonitor(s.cfg.Norm, s.cfg.Tolerance)
	solves := make([]SolveReport, 0, len(grp.Problems))
	for iter := 1; iter <= s.cfg.MaxIterations; iter++ {
		rep.State = GroupIterating
		rep.Iterations = iter
		solves = solves[:0]
		for _, p := range grp.Problems {
			sr := s.solveUnit(ctx, p, sc, stage, stage)
			solves = append(solves, sr)
			if sr.Err != nil {
				rep.State = GroupSolverFailed
				discard(stage, &rep)
				rep.Err = fmt.Errorf("coupling group %q: %w", grp.Name, sr.Err)
				return rep, solves
			}
		}

		shared, err := s.snapshot(stage, s.coupling[grp.Name], sc)
		if err != nil {
			rep.State = GroupSolverFailed
			discard(stage, &rep)
			rep.Err = fmt.Errorf("coupling group %q, scenario %q: %w", grp.Name, sc.Key(), err)
			return rep, solves
		}
		delta, converged := mon.Observe(shared)
		rep.Delta = delta
		s.log.Debug().
			Str("group", grp.Name).
			Str("scenario", sc.Key()).
			Int("iteration", iter).
			Float64("delta", delta).
			Msg("gauss-seidel pass")
		if converged {
			rep.State = GroupConverged
			if err := stage.Promote(); err != nil {
				rep.Err = fmt.Errorf("coupling group %q, scenario %q: promote: %w", grp.Name, sc.Key(), err)
			}
			return rep, solves
		}
	}

	rep.State = GroupMaxIterExceeded
	if s.cfg.BestEffort {
		if err := stage.Promote(); err != nil {
			rep.Err = fmt.Errorf("coupling group %q, scenario %q: promote: %w", grp.Name, sc.Key(), err)
			return rep, solves
		}
	} else {
		discard(stage, &rep)
	}
	rep.Err = &ConvergenceFailure{
		Group:      grp.Name,
		Scenario:   sc.Key(),
		Iterations: rep.Iterations,
		Delta:      rep.Delta,
		Tolerance:  s.cfg.Tolerance,
	}
	return rep, solves
}

func discard(st store.Stage, rep *GroupReport) {
	if err := st.Discard(); err != nil && rep.Err == nil {
		rep.Err = err
	}
}

func stageName(group string, sc model.Scenario) string {
	return "gs/" + sc.Key() + "/" + group
}

// couplingTables resolves the surface monitored for convergence: tables
// endogenous for exactly one member and referenced by at least one other.
func (s *Session) couplingTables(grp model.CouplingGroup) ([]*model.DataTable, error) {
	produced := make(map[string]string)
	readers := make(map[string]map[string]bool)
	for _, p := range grp.Problems {
		vars, err := s.model.ProblemVariables(p)
		if err != nil {
			return nil, err
		}
		for _, v := range vars {
			t := v.Table()
			if t.Role().IsEndogenousFor(p.Name()) {
				produced[t.Name()] = p.Name()
			}
			if readers[t.Name()] == nil {
				readers[t.Name()] = make(map[string]bool)
			}
			readers[t.Name()][p.Name()] = true
		}
	}

	var out []*model.DataTable
	for _, name := range utils.SortedKeys(produced) {
		producer := produced[name]
		for member := range readers[name] {
			if member != producer {
				t, _ := s.model.Table(name)
				out = append(out, t)
				break
			}
		}
	}
	return out, nil
}

// snapshot reads the scenario slice of each table into a dense vector for
// the monitor. Entries never written read as zero here; the first pass that
// writes them registers as movement.
func (s *Session) snapshot(src store.Reader, tables []*model.DataTable, sc model.Scenario) (map[string][]float64, error) {
	out := make(map[string][]float64, len(tables))
	for _, t := range tables {
		sel := sets.Selection{}
		for name, coords := range sc.Fix() {
			if t.Domain().Contains(name) {
				sel[name] = coords
			}
		}
		sub, err := t.Domain().Restrict(sel)
		if err != nil {
			return nil, err
		}
		vals, err := src.Read(t.Name(), sub.ParentIndices())
		if err != nil {
			return nil, err
		}
		xs := make([]float64, vals.Len())
		for i := range xs {
			if x, ok := vals.Get(i); ok {
				xs[i] = x
			}
		}
		out[t.Name()] = xs
	}
	return out, nil
}
