package simulation

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"

	"git.fiblab.net/sim/epidemic/agent"
	"git.fiblab.net/sim/epidemic/infection"
	"git.fiblab.net/sim/epidemic/mapdata"
	"git.fiblab.net/sim/epidemic/report"
	"git.fiblab.net/sim/epidemic/router"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

// Kernel owns the population and advances it in fixed steps.
//
// Only route computation runs on worker goroutines, once per simulated hour;
// every other pass runs on the goroutine calling Step.
type Kernel struct {
	RunID string

	cfg   Config
	city  *mapdata.City
	net   *router.Network
	model infection.Model
	sink  report.Sink
	rng   *rand.Rand

	homes  []*agent.Home
	agents []*agent.Agent
	chunks [][]*agent.Agent

	// infections not yet recovered, in creation order
	active []*agent.Infection
	// infections not yet written to the sink
	unreported []*agent.Infection
	total      int

	steps    int64
	lastHour int
	history  []report.Summary
	flushed  int
	cooldown int

	unreachable *xsync.Counter
	stale       *xsync.Counter
	frozen      *xsync.Counter

	snapshot atomic.Pointer[Snapshot]
}

// New generates the population over city. classes are completed with their
// workplaces from the city building types.
func New(
	cfg Config,
	city *mapdata.City, net *router.Network,
	classes []*agent.JobClass,
	model infection.Model, sink report.Sink,
) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = report.NewMemorySink()
	}
	if cfg.RunID == "" {
		cfg.RunID = report.NewRunID()
	}
	k := &Kernel{
		RunID:       cfg.RunID,
		cfg:         cfg,
		city:        city,
		net:         net,
		model:       model,
		sink:        sink,
		rng:         rand.New(rand.NewSource(cfg.Seed)),
		lastHour:    -1,
		cooldown:    cfg.ReportInterval,
		unreachable: xsync.NewCounter(),
		stale:       xsync.NewCounter(),
		frozen:      xsync.NewCounter(),
	}
	if err := k.generate(classes); err != nil {
		return nil, err
	}
	k.chunks = chunk(k.agents, cfg.ThreadNumber)
	log.Infof("run %s: %d agents in %d chunks", k.RunID, len(k.agents), len(k.chunks))
	k.publish(report.NewTimestamp(0))
	return k, nil
}

func (k *Kernel) Agents() []*agent.Agent {
	return k.agents
}

func (k *Kernel) Homes() []*agent.Home {
	return k.homes
}

func (k *Kernel) Chunks() [][]*agent.Agent {
	return k.chunks
}

// Now is the simulated time of the next step.
func (k *Kernel) Now() report.Timestamp {
	return report.NewTimestamp(k.steps * k.cfg.StepLength)
}

func (k *Kernel) History() []report.Summary {
	return k.history
}

// Stats are the counters of the recoverable failures of the run.
type Stats struct {
	Infections  int   `json:"infections"`
	Unreachable int64 `json:"unreachable"`
	StaleRoutes int64 `json:"staleRoutes"`
	Frozen      int64 `json:"frozen"`
}

func (k *Kernel) Stats() Stats {
	return Stats{
		Infections:  k.total,
		Unreachable: k.unreachable.Value(),
		StaleRoutes: k.stale.Value(),
		Frozen:      k.frozen.Value(),
	}
}

func (k *Kernel) track(inf *agent.Infection) {
	k.active = append(k.active, inf)
	k.unreported = append(k.unreported, inf)
	k.total++
}

// Step advances the simulation by one step and returns its summary.
func (k *Kernel) Step(ctx context.Context) report.Summary {
	now := k.Now()
	stepLength := float64(k.cfg.StepLength)

	// 整点重新规划路线
	if now.Hour != k.lastHour {
		k.RefreshRoutes(ctx, now.Weekday(), now.Hour)
		k.lastHour = now.Hour
	}

	for _, a := range k.agents {
		if err := k.stepAgent(a, stepLength); err != nil {
			log.Errorf("step %d: %v, agent frozen", now.Step, err)
			a.Freeze()
			k.frozen.Inc()
		}
	}

	k.model.Snapshot(k.agents)
	for _, a := range k.agents {
		if inf := k.model.Infect(a, stepLength, now.Step); inf != nil {
			k.track(inf)
		}
	}

	for _, inf := range k.active {
		inf.Finalize(now.Step, stepLength, k.rng, k.cfg.Symptoms)
	}
	k.active = lo.Filter(k.active, func(inf *agent.Infection, _ int) bool {
		return inf.Active()
	})

	summary := k.count(now)
	k.history = append(k.history, summary)
	k.steps++

	if k.cfg.HeartbeatInterval > 0 && k.steps%int64(k.cfg.HeartbeatInterval) == 0 {
		log.Infof("step %d day %d %02d:%02d S=%d E=%d I=%d R=%d",
			k.steps, now.Day, now.Hour, now.Minute,
			summary.Susceptible, summary.Exposed, summary.Infectious, summary.Recovered)
	}

	k.cooldown--
	if k.cooldown <= 0 {
		if err := k.Flush(ctx); err != nil {
			log.Errorf("report flush failed: %v", err)
		}
		k.cooldown = k.cfg.ReportInterval
	}
	k.publish(k.Now())
	return summary
}

func (k *Kernel) stepAgent(a *agent.Agent, stepLength float64) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = fmt.Errorf("panic: agent %d step: %v", a.ID, e)
		}
	}()
	return a.Step(stepLength)
}

func (k *Kernel) count(now report.Timestamp) report.Summary {
	s := report.Summary{RunID: k.RunID, Timestamp: now}
	for _, a := range k.agents {
		switch a.Status {
		case agent.Susceptible:
			s.Susceptible++
		case agent.Exposed:
			s.Exposed++
		case agent.Infectious:
			s.Infectious++
		case agent.Recovered:
			s.Recovered++
		}
	}
	return s
}

// RefreshRoutes plans the hour for every agent on one worker per chunk and
// applies the plans once all workers are done, in chunk order.
//
// A cancelled ctx stops the workers between agents; the plans computed so far
// are applied and the other agents keep their previous route. A crashed worker
// loses its whole chunk the same way.
func (k *Kernel) RefreshRoutes(ctx context.Context, day, hour int) {
	results := make([]map[int]agent.Plan, len(k.chunks))
	var g errgroup.Group
	for i, part := range k.chunks {
		i, part := i, part
		g.Go(func() (err error) {
			plans := make(map[int]agent.Plan, len(part))
			results[i] = plans
			// panic recover
			defer func() {
				if e := recover(); e != nil {
					results[i] = nil
					err = fmt.Errorf("panic: route worker %d: %v", i, e)
				}
			}()
			for _, a := range part {
				if err := ctx.Err(); err != nil {
					return err
				}
				plans[a.ID] = a.Plan(k.net, day, hour)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warnf("route refresh at day %d hour %d: %v", day, hour, err)
	}

	for i, part := range k.chunks {
		plans := results[i]
		if missing := len(part) - len(plans); missing > 0 {
			log.Warnf("route worker %d: %d of %d agents keep a stale route", i, missing, len(part))
			k.stale.Add(int64(missing))
		}
		for _, a := range part {
			p, ok := plans[a.ID]
			if !ok {
				continue
			}
			if p.Unreachable {
				k.unreachable.Inc()
			}
			a.ApplyPlan(p)
		}
	}
}

// Flush writes the summaries since the last flush and the infections that
// are over.
func (k *Kernel) Flush(ctx context.Context) error {
	return k.flush(ctx, false)
}

func (k *Kernel) flush(ctx context.Context, all bool) error {
	summaries := k.history[k.flushed:]
	if err := k.sink.WriteSummaries(ctx, summaries); err != nil {
		return err
	}
	k.flushed = len(k.history)

	done, pending := make([]*agent.Infection, 0), make([]*agent.Infection, 0)
	for _, inf := range k.unreported {
		if all || !inf.Active() {
			done = append(done, inf)
		} else {
			pending = append(pending, inf)
		}
	}
	records := lo.Map(done, func(inf *agent.Infection, _ int) report.InfectionRecord {
		r := inf.Summarize()
		r.RunID = k.RunID
		return r
	})
	if err := k.sink.WriteInfections(ctx, records); err != nil {
		return err
	}
	k.unreported = pending
	log.Debugf("flushed %d summaries and %d infections", len(summaries), len(records))
	return nil
}

// Close writes everything left, the final agent states included, and closes
// the sink.
func (k *Kernel) Close(ctx context.Context) error {
	if err := k.flush(ctx, true); err != nil {
		return err
	}
	if err := k.sink.WriteAgents(ctx, k.Extract()); err != nil {
		return err
	}
	return k.sink.Close(ctx)
}

// Extract dumps the current state of every agent.
func (k *Kernel) Extract() []report.AgentRecord {
	return lo.Map(k.agents, func(a *agent.Agent, _ int) report.AgentRecord {
		r := a.Record()
		r.RunID = k.RunID
		return r
	})
}

// Run calls Step until steps steps are done, forever when steps is negative.
// wait, if set, is called before every step and may block; a cancelled ctx
// ends the run between two steps.
func (k *Kernel) Run(ctx context.Context, steps int64, wait func(context.Context) error) error {
	for i := int64(0); steps < 0 || i < steps; i++ {
		if wait != nil {
			if err := wait(ctx); err != nil {
				return err
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		k.Step(ctx)
	}
	return nil
}
