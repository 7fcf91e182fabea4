package profile

import (
	"sync"
	"sync/atomic"

	"github.com/google/pprof/profile"
)

// The channel has many producers (parallel builds) and one consumer. Its
// purpose is to serialize adding / removing profiling sessions and sampling
// events, while letting builders sample asynchronously.
var chCommands = make(chan command, 100)
var onceInit sync.Once

type command struct {
	p      *Profile
	remove bool

	problem string
	label   string
	rows    int64
}

func worker() {
	for c := range chCommands {
		if c.p != nil {
			if c.remove {
				for i := 0; i < len(sessions); i++ {
					if sessions[i] == c.p {
						sessions[i] = sessions[len(sessions)-1]
						sessions = sessions[:len(sessions)-1]
						break
					}
				}
				close(c.p.chDone)

				// decrement active sessions
				atomic.AddUint32(&activeSessions, ^uint32(0))
			} else {
				sessions = append(sessions, c.p)
			}
			continue
		}

		// it's a sampling event
		collectSample(c.problem, c.label, c.rows)
	}
}

// collectSample must be called from the worker go routine. Each session gets
// its own sample since function and location ids differ per session.
func collectSample(problem, label string, rows int64) {
	for _, session := range sessions {
		session.onceSetName.Do(func() {
			// once per session, the first problem names the mapping
			session.pprof.Mapping = []*profile.Mapping{
				{ID: 1, File: problem},
			}
		})
		sample := &profile.Sample{
			Value: []int64{rows},
			Location: []*profile.Location{
				session.getLocation(label, problem),
				session.getLocation(problem, problem),
			},
		}
		session.pprof.Sample = append(session.pprof.Sample, sample)
		session.total += rows
	}
}
