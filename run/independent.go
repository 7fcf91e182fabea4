package run

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// runIndependent solves every (scenario, uncoupled problem) pair exactly
// once, in parallel, all against the authoritative store. Coupled problems
// need the Gauss-Seidel loop and are skipped here.
func (s *Session) runIndependent(ctx context.Context) (*Report, error) {
	scenarios := s.model.Scenarios()
	problems := s.model.UncoupledProblems()
	if skipped := len(s.model.Problems()) - len(problems); skipped > 0 {
		s.log.Warn().
			Int("problems", skipped).
			Msg("independent mode skips coupling group members")
	}

	reports := make([]SolveReport, len(scenarios)*len(problems))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for i, sc := range scenarios {
		for j, p := range problems {
			idx := i*len(problems) + j
			g.Go(func() error {
				reports[idx] = s.solveUnit(ctx, p, sc, s.store, s.store)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Report{Mode: ModeIndependent, Solves: reports}, nil
}
