// Package profile provides a simple way to generate pprof compatible
// expansion profiles: which expressions of which problems produce how many
// constraint rows when a model is built.
//
// Building happens in a single go-routine per (problem, scenario) pair, but
// several builds may run concurrently; sampling is funneled through one
// worker so sessions never race.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/pprof/profile"

	"github.com/couplex/couplex/logger"
)

var (
	sessions       []*Profile // active sessions
	activeSessions uint32
)

// Profile represents an active expansion profiling session.
type Profile struct {
	// defaults to ./couplex.pprof
	// if blank, profile is not written to disk
	filePath string

	// actual pprof profile struct
	// details on pprof format: https://github.com/google/pprof/blob/main/proto/README.md
	pprof profile.Profile

	functions map[string]*profile.Function
	locations map[string]*profile.Location

	total int64

	onceSetName sync.Once

	chDone chan struct{}
}

// Option defines configuration options for Profile.
type Option func(*Profile)

// WithPath controls the profile destination file. If blank, the profile is
// not written.
//
// Defaults to ./couplex.pprof.
func WithPath(path string) Option {
	return func(p *Profile) {
		p.filePath = path
	}
}

// WithNoOutput indicates that the profile is not going to be written to
// disk.
//
// This is equivalent to WithPath("").
func WithNoOutput() Option {
	return func(p *Profile) {
		p.filePath = ""
	}
}

// Start creates a new active profiling session. When Stop() is called, the
// session is removed from the active set and may be serialized to disk as a
// pprof compatible file (see WithPath).
//
// Overlapping sessions are allowed.
func Start(options ...Option) *Profile {

	// start the worker the first time a profiling session starts.
	onceInit.Do(func() {
		go worker()
	})

	p := Profile{
		functions: make(map[string]*profile.Function),
		locations: make(map[string]*profile.Location),
		filePath:  filepath.Join(".", "couplex.pprof"),
		chDone:    make(chan struct{}),
	}
	p.pprof.SampleType = []*profile.ValueType{{
		Type: "expansions",
		Unit: "count",
	}}

	for _, option := range options {
		option(&p)
	}

	log := logger.Logger()
	if p.filePath == "" {
		log.Warn().Msg("expansion profiling enabled [not writing to disk]")
	} else {
		log.Info().Str("path", p.filePath).Msg("expansion profiling enabled")
	}

	// add the session to active sessions
	chCommands <- command{p: &p}
	atomic.AddUint32(&activeSessions, 1)

	return &p
}

// Stop removes the profile from the active sessions and may write the pprof
// file to disk. See WithPath.
func (p *Profile) Stop() {
	log := logger.Logger()

	if p.chDone == nil {
		log.Fatal().Msg("expansion profile stopped multiple times")
	}

	// ask the worker routine to remove ourselves from the active sessions
	chCommands <- command{p: p, remove: true}

	// wait for the worker routine to remove us.
	<-p.chDone
	p.chDone = nil

	// if filePath is set, serialize profile to disk in pprof format
	if p.filePath != "" {
		f, err := os.Create(p.filePath)
		if err != nil {
			log.Fatal().Err(err).Msg("could not create expansion profile")
		}
		if err := p.pprof.Write(f); err != nil {
			log.Error().Err(err).Msg("writing profile")
		}
		f.Close()
		log.Info().Str("path", p.filePath).Msg("expansion profiling disabled")
	} else {
		log.Warn().Msg("expansion profiling disabled [not writing to disk]")
	}
}

// NbExpansions returns the number of constraint rows collected by the
// session across all recorded expressions.
func (p *Profile) NbExpansions() int {
	return int(p.total)
}

// Top returns a text summary in the spirit of pprof top: per expression,
// its flat row count and share of the total.
func (p *Profile) Top() string {
	type entry struct {
		name string
		flat int64
	}
	byName := make(map[string]int64)
	for _, s := range p.pprof.Sample {
		if len(s.Location) == 0 || len(s.Value) == 0 {
			continue
		}
		// Location[0] is the expression frame, Location[1] its problem.
		name := frameName(s.Location[0])
		if len(s.Location) > 1 {
			name = frameName(s.Location[1]) + "/" + name
		}
		byName[name] += s.Value[0]
	}
	entries := make([]entry, 0, len(byName))
	for name, flat := range byName {
		entries = append(entries, entry{name, flat})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].flat != entries[j].flat {
			return entries[i].flat > entries[j].flat
		}
		return entries[i].name < entries[j].name
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "Showing nodes accounting for %d expansions\n", p.total)
	fmt.Fprintf(&sb, "%10s %7s %7s  %s\n", "flat", "flat%", "sum%", "expression")
	var sum int64
	for _, e := range entries {
		sum += e.flat
		fmt.Fprintf(&sb, "%10d %6.2f%% %6.2f%%  %s\n", e.flat, pct(e.flat, p.total), pct(sum, p.total), e.name)
	}
	return sb.String()
}

func pct(v, total int64) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(v) / float64(total)
}

func frameName(l *profile.Location) string {
	if len(l.Line) == 0 || l.Line[0].Function == nil {
		return "?"
	}
	return l.Line[0].Function.Name
}

// RecordExpansion adds a sample of rows constraint rows for one expression
// of one problem to all active profiling sessions.
func RecordExpansion(problem, label string, rows int) {
	if n := atomic.LoadUint32(&activeSessions); n == 0 {
		return // do nothing, no active session.
	}
	if rows <= 0 {
		return
	}
	chCommands <- command{problem: problem, label: label, rows: int64(rows)}
}

// getLocation returns the location of one synthetic frame, creating the
// backing function on first use.
func (p *Profile) getLocation(name, file string) *profile.Location {
	key := file + "\x00" + name
	l, ok := p.locations[key]
	if !ok {
		f, ok := p.functions[key]
		if !ok {
			f = &profile.Function{
				ID:         uint64(len(p.functions) + 1),
				Name:       name,
				SystemName: name,
				Filename:   file,
			}
			p.functions[key] = f
			p.pprof.Function = append(p.pprof.Function, f)
		}
		l = &profile.Location{
			ID:   uint64(len(p.locations) + 1),
			Line: []profile.Line{{Function: f, Line: 1}},
		}
		p.locations[key] = l
		p.pprof.Location = append(p.pprof.Location, l)
	}
	return l
}
