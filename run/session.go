package run

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/couplex/couplex/engine"
	"github.com/couplex/couplex/logger"
	"github.com/couplex/couplex/model"
	"github.com/couplex/couplex/solver"
	"github.com/couplex/couplex/store"
)

// Session ties a model, a store and a solver backend together for one or
// more runs. Construction validates the model and registers every
// non-constant table with the store; the session is then safe for concurrent
// use through Run.
type Session struct {
	model   *model.Model
	store   store.Store
	backend solver.Backend
	builder *engine.Builder
	cfg     Config
	log     zerolog.Logger

	// coupling tables per group name, resolved once at construction.
	coupling map[string][]*model.DataTable
}

// Option configures a session.
type Option func(*sessionConfig)

type sessionConfig struct {
	registry *engine.Registry
	log      zerolog.Logger
	haveLog  bool
}

// WithRegistry supplies a custom operator registry to the expression engine.
func WithRegistry(r *engine.Registry) Option {
	return func(sc *sessionConfig) { sc.registry = r }
}

// WithLogger routes session logging.
func WithLogger(l zerolog.Logger) Option {
	return func(sc *sessionConfig) {
		sc.log = l
		sc.haveLog = true
	}
}

// NewSession validates m, registers its tables with st and returns a session
// solving through be.
func NewSession(m *model.Model, st store.Store, be solver.Backend, cfg Config, opts ...Option) (*Session, error) {
	if st == nil {
		return nil, errors.New("run: nil store")
	}
	if be == nil {
		return nil, errors.New("run: nil backend")
	}
	var sc sessionConfig
	for _, o := range opts {
		o(&sc)
	}
	if !sc.haveLog {
		sc.log = logger.Logger().With().Str("backend", be.Name()).Logger()
	}
	cfg.fillDefaults()

	var bopts []engine.Option
	if sc.registry != nil {
		bopts = append(bopts, engine.WithRegistry(sc.registry))
	}
	bopts = append(bopts, engine.WithLogger(sc.log))
	if cfg.Missing == MissingZero {
		bopts = append(bopts, engine.WithMissingFill(0))
	}
	builder, err := engine.NewBuilder(m, bopts...)
	if err != nil {
		return nil, err
	}

	for _, t := range m.Tables() {
		if t.Role().Kind() == model.RoleConstant {
			continue
		}
		if err := st.Register(t.Name(), t.Domain().Size()); err != nil {
			return nil, fmt.Errorf("run: register table %q: %w", t.Name(), err)
		}
	}

	s := &Session{
		model:    m,
		store:    st,
		backend:  be,
		builder:  builder,
		cfg:      cfg,
		log:      sc.log,
		coupling: make(map[string][]*model.DataTable),
	}
	for _, g := range m.CouplingGroups() {
		tables, err := s.couplingTables(g)
		if err != nil {
			return nil, err
		}
		s.coupling[g.Name] = tables
	}
	return s, nil
}

// Store returns the session's value store.
func (s *Session) Store() store.Store { return s.store }

// Config returns the effective configuration, defaults applied.
func (s *Session) Config() Config { return s.cfg }

// LoadTable writes a full table in domain order, all entries valid. Partial
// loads go through Store().Write directly.
func (s *Session) LoadTable(name string, values []float64) error {
	t, ok := s.model.Table(name)
	if !ok {
		return fmt.Errorf("run: unknown table %q", name)
	}
	if t.Role().Kind() == model.RoleConstant {
		return fmt.Errorf("run: table %q is generated, not loaded", name)
	}
	size := t.Domain().Size()
	if len(values) != size {
		return fmt.Errorf("run: table %q holds %d entries, got %d", name, size, len(values))
	}
	indices := make([]int, size)
	for i := range indices {
		indices[i] = i
	}
	return s.store.Write(name, indices, store.Filled(values))
}

// Export reads a full table in domain order. Entries no solve has produced
// come back invalid.
func (s *Session) Export(name string) (store.Values, error) {
	t, ok := s.model.Table(name)
	if !ok {
		return store.Values{}, fmt.Errorf("run: unknown table %q", name)
	}
	if t.Role().Kind() == model.RoleConstant {
		return store.Values{}, fmt.Errorf("run: table %q is generated, not stored", name)
	}
	size := t.Domain().Size()
	indices := make([]int, size)
	for i := range indices {
		indices[i] = i
	}
	return s.store.Read(name, indices)
}

// Run solves the model per the configured mode and reports per-unit
// outcomes. Unit failures land in the report; the returned error is reserved
// for systemic failures such as context cancellation.
func (s *Session) Run(ctx context.Context) (*Report, error) {
	if s.cfg.Mode == ModeIntegrated {
		return s.Integrated(ctx)
	}
	return s.Independent(ctx)
}

// Independent solves every (scenario, uncoupled problem) pair exactly once,
// in parallel. Members of coupling groups are skipped; solving them needs
// Integrated.
func (s *Session) Independent(ctx context.Context) (*Report, error) {
	start := time.Now()
	rep, err := s.runIndependent(ctx)
	s.finish(rep, start)
	return rep, err
}

// Integrated additionally iterates every coupling group with block
// Gauss-Seidel until its shared values settle.
func (s *Session) Integrated(ctx context.Context) (*Report, error) {
	start := time.Now()
	rep, err := s.runIntegrated(ctx)
	s.finish(rep, start)
	return rep, err
}

func (s *Session) finish(rep *Report, start time.Time) {
	if rep == nil {
		return
	}
	rep.Duration = time.Since(start)
	s.log.Info().
		Stringer("mode", rep.Mode).
		Int("solves", len(rep.Solves)).
		Int("failures", len(rep.Failures())).
		Dur("took", rep.Duration).
		Msg("run finished")
}

// solveUnit builds and solves one (problem, scenario) pair, reading from src
// and writing the solution back to dst. Failures are recorded in the report,
// not returned; a failed unit never writes.
func (s *Session) solveUnit(ctx context.Context, p *model.Problem, sc model.Scenario, src store.Reader, dst store.Writer) SolveReport {
	rep := SolveReport{Problem: p.Name(), Scenario: sc.Key()}
	if err := ctx.Err(); err != nil {
		rep.Err = err
		return rep
	}

	built, err := s.builder.Build(p, sc, src)
	if err != nil {
		rep.Err = err
		return rep
	}
	rep.Rows = built.Stats.Rows
	rep.Cols = built.Stats.Cols

	res, err := s.backend.Solve(ctx, built.Model, s.cfg.SolverOptions...)
	if err != nil {
		var serr *solver.Error
		if errors.As(err, &serr) {
			rep.Status = serr.Status
		}
		rep.Err = fmt.Errorf("problem %q, scenario %q: %w", p.Name(), sc.Key(), err)
		return rep
	}
	rep.Status = res.Status
	rep.Objective = res.Objective
	rep.Runtime = res.Runtime

	if err := writeSolution(dst, built, res); err != nil {
		rep.Err = err
		return rep
	}
	s.log.Debug().
		Str("problem", p.Name()).
		Str("scenario", sc.Key()).
		Float64("objective", res.Objective).
		Dur("took", res.Runtime).
		Msg("unit solved")
	return rep
}

// writeSolution maps decision columns back onto their tables.
func writeSolution(dst store.Writer, built *engine.Built, res *solver.Result) error {
	for _, blk := range built.Blocks {
		vals := store.NewValues(blk.Size)
		for k := 0; k < blk.Size; k++ {
			vals.Set(k, res.X[blk.Start+k])
		}
		if err := dst.Write(blk.Table, blk.Indices, vals); err != nil {
			return fmt.Errorf("write solution of table %q: %w", blk.Table, err)
		}
	}
	return nil
}
