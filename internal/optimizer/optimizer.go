// Package optimizer drives synchronized consensus rounds across one worker
// agent per graph node. Each round every agent takes a local gradient step,
// exchanges value copies of its state with its neighbors, and mixes them
// with its row of the doubly-stochastic mixing matrix. A synchronous barrier
// separates rounds: no agent starts round k+1 before every agent finished
// round k.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/IteraLabs/convective/internal/common"
	"github.com/IteraLabs/convective/internal/events"
	"github.com/IteraLabs/convective/internal/model"
	"github.com/IteraLabs/convective/internal/spectral"
	"github.com/IteraLabs/convective/internal/worker"
	"github.com/creachadair/taskgroup"
	"github.com/hashicorp/go-hclog"
	"gonum.org/v1/gonum/mat"
)

// ErrRoundTimeout signals that a round's barrier did not complete within
// the configured per-round timeout.
var ErrRoundTimeout = errors.New("optimizer: round barrier timed out")

type cmdKind int

const (
	cmdRound cmdKind = iota
	cmdRestore
)

type roundCmd struct {
	kind     cmdKind
	lr       float64
	strategy UpdateStrategy
	restore  []float64
}

type stateMsg struct {
	id    int
	state []float64
}

type roundDone struct {
	id        int
	state     []float64
	objective float64
	err       error
}

// ConsensusOptimizer coordinates one run. Construct with New and call Run
// once; the zero value is not usable.
type ConsensusOptimizer struct {
	logger hclog.Logger
	bus    *events.EventBus
	runId  string
}

// New builds an optimizer. bus may be nil; runId tags published events.
func New(logger hclog.Logger, bus *events.EventBus, runId string) *ConsensusOptimizer {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &ConsensusOptimizer{
		logger: logger.Named("optimizer"),
		bus:    bus,
		runId:  runId,
	}
}

// Run fits the configured model over the per-node partitions. partitions[i]
// is owned exclusively by agent i and must have one entry per graph node.
// Setup errors (topology, mixing, config, shapes) are returned immediately
// with a nil result; once rounds begin the caller always receives a Result
// with a terminal status and the full convergence history.
func (o *ConsensusOptimizer) Run(ctx context.Context, graph *spectral.Graph, partitions []*model.Batch, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := graph.NodeCount()
	if len(partitions) != n {
		return nil, fmt.Errorf("got %d partitions for %d nodes", len(partitions), n)
	}

	w, err := spectral.MixingMatrix(graph, cfg.Mixing, cfg.Epsilon)
	if err != nil {
		return nil, err
	}
	mdl, err := model.New(cfg.ModelName, cfg.Ridge)
	if err != nil {
		return nil, err
	}

	featureCount := partitions[0].Features()
	dim := mdl.Dim(featureCount)
	agents := make([]*worker.Agent, n)
	for i := 0; i < n; i++ {
		if partitions[i].Features() != featureCount {
			return nil, fmt.Errorf("partition %d has %d features, partition 0 has %d", i, partitions[i].Features(), featureCount)
		}
		agents[i], err = worker.NewAgent(i, mdl, partitions[i], model.InitParams(dim, cfg.InitSeed+uint64(i)), cfg.NormBound)
		if err != nil {
			return nil, err
		}
	}

	if slem, err := spectral.SecondLargestEigenvalueMagnitude(w); err == nil {
		o.logger.Info("starting consensus run",
			"nodes", n, "dim", dim, "model", cfg.ModelName,
			"mixing", string(cfg.Mixing), "slem", slem)
	}

	run := &runState{
		opt:      o,
		cfg:      cfg,
		agents:   agents,
		weights:  w,
		cmds:     make([]chan roundCmd, n),
		inboxes:  make([]chan map[int][]float64, n),
		exchange: make(chan stateMsg, n),
		done:     make(chan roundDone, n),
		graph:    graph,
	}
	for i := 0; i < n; i++ {
		run.cmds[i] = make(chan roundCmd, 1)
		run.inboxes[i] = make(chan map[int][]float64, 1)
	}

	g := taskgroup.New(nil)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			return run.agentLoop(agents[i], run.cmds[i], run.inboxes[i], rowOf(w, i))
		})
	}

	result := run.drive(ctx)

	for i := 0; i < n; i++ {
		close(run.cmds[i])
	}
	_ = g.Wait()

	o.publishFinished(result)
	return result, nil
}

type runState struct {
	opt     *ConsensusOptimizer
	cfg     Config
	agents  []*worker.Agent
	weights *mat.SymDense
	graph   *spectral.Graph

	cmds     []chan roundCmd
	inboxes  []chan map[int][]float64
	exchange chan stateMsg
	done     chan roundDone
}

// agentLoop is the per-agent goroutine: it executes round and restore
// commands until its command channel closes. All state leaving the loop is
// a value copy.
func (r *runState) agentLoop(a *worker.Agent, cmds <-chan roundCmd, inbox <-chan map[int][]float64, row []float64) error {
	for cmd := range cmds {
		switch cmd.kind {
		case cmdRestore:
			a.Restore(cmd.restore)
			r.done <- roundDone{id: a.ID}
		case cmdRound:
			var stepErr error
			if cmd.strategy == AdaptThenCombine {
				stepErr = a.LocalStep(cmd.lr)
			}

			r.exchange <- stateMsg{id: a.ID, state: a.Snapshot()}
			a.AwaitNeighbors()
			neighborStates := <-inbox
			a.Mix(neighborStates, row)

			if cmd.strategy == CombineThenAdapt {
				if err := a.LocalStep(cmd.lr); err != nil {
					stepErr = err
				}
			}

			r.done <- roundDone{
				id:        a.ID,
				state:     a.Snapshot(),
				objective: a.Objective(),
				err:       stepErr,
			}
		}
	}
	return nil
}

// drive owns round sequencing: barrier, retries, convergence checks and
// the append-only history.
func (r *runState) drive(ctx context.Context) *Result {
	n := len(r.agents)
	lr := r.cfg.LearningRate
	history := make([]ConvergenceRecord, 0, r.cfg.MaxRounds)

	prevStates := make([][]float64, n)
	for i, a := range r.agents {
		prevStates[i] = a.Snapshot()
	}

	finish := func(status Status, rounds int, states [][]float64, reason error) *Result {
		return &Result{
			Status:            status,
			Params:            common.MeanVector(states),
			History:           history,
			Rounds:            rounds,
			FinalLearningRate: lr,
			FailureReason:     reason,
		}
	}

	retries := 0
	round := 1
	for round <= r.cfg.MaxRounds {
		// Cancellation is honored only between rounds, so no agent is ever
		// left with a partially-mixed state.
		select {
		case <-ctx.Done():
			return finish(StatusCancelled, round-1, prevStates, ctx.Err())
		default:
		}

		states, objectives, roundErr := r.playRound(lr)

		if roundErr != nil {
			// Report the last good states, not the diverged ones.
			if retries >= r.cfg.MaxRetries {
				return finish(StatusDiverged, round, prevStates, roundErr)
			}
			retries++
			lr /= 2
			r.opt.logger.Warn("round failed, retrying at reduced rate",
				"round", round, "retry", retries, "lr", lr, "error", roundErr)
			r.restoreAll(prevStates)
			continue
		}
		retries = 0

		disagreement := maxPairwiseDisagreement(states)
		objective := common.CalculateAverage(objectives)
		rec := ConvergenceRecord{Round: round, Objective: objective, Disagreement: disagreement}
		history = append(history, rec)
		r.opt.publishRound(rec)

		prevStates = states

		if disagreement <= r.cfg.Tolerance {
			r.opt.logger.Info("consensus reached", "round", round, "disagreement", disagreement)
			return finish(StatusConverged, round, states, nil)
		}
		round++
	}

	return finish(StatusRoundBudgetExhausted, r.cfg.MaxRounds, prevStates, nil)
}

// playRound executes one full round: command fan-out, state exchange,
// neighbor delivery, done barrier. The optional per-round timeout never
// interrupts the round mid-flight; it marks the round failed after it
// completes, which triggers the retry path.
func (r *runState) playRound(lr float64) (states [][]float64, objectives []float64, err error) {
	n := len(r.agents)

	var deadline <-chan time.Time
	if r.cfg.RoundTimeout > 0 {
		timer := time.NewTimer(r.cfg.RoundTimeout)
		defer timer.Stop()
		deadline = timer.C
	}
	timedOut := false

	for i := 0; i < n; i++ {
		r.cmds[i] <- roundCmd{kind: cmdRound, lr: lr, strategy: r.cfg.Strategy}
	}

	// Exchange phase: collect every agent's post-step state, then hand each
	// agent value copies of exactly its neighbors' states.
	collected := make(map[int][]float64, n)
	for len(collected) < n {
		select {
		case msg := <-r.exchange:
			collected[msg.id] = msg.state
		case <-deadline:
			timedOut = true
			deadline = nil
		}
	}
	for i := 0; i < n; i++ {
		neighborStates := make(map[int][]float64)
		for _, j := range r.graph.Neighbors(i) {
			neighborStates[j] = common.CopyVector(collected[j])
		}
		r.inboxes[i] <- neighborStates
	}

	states = make([][]float64, n)
	objectives = make([]float64, n)
	for received := 0; received < n; {
		select {
		case d := <-r.done:
			states[d.id] = d.state
			objectives[d.id] = d.objective
			if d.err != nil && err == nil {
				err = d.err
			}
			received++
		case <-deadline:
			timedOut = true
			deadline = nil
		}
	}

	if err == nil && timedOut {
		err = fmt.Errorf("round exceeded %v: %w", r.cfg.RoundTimeout, ErrRoundTimeout)
	}
	return states, objectives, err
}

func (r *runState) restoreAll(states [][]float64) {
	for i := range r.agents {
		r.cmds[i] <- roundCmd{kind: cmdRestore, restore: states[i]}
	}
	for i := 0; i < len(r.agents); i++ {
		<-r.done
	}
}

func (o *ConsensusOptimizer) publishRound(rec ConvergenceRecord) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(events.Event{
		Type:      common.ROUND_COMPLETED_EVENT_TYPE,
		Timestamp: time.Now(),
		Data: events.RoundCompletedEvent{
			RunId:        o.runId,
			Round:        rec.Round,
			Objective:    rec.Objective,
			Disagreement: rec.Disagreement,
		},
	})
}

func (o *ConsensusOptimizer) publishFinished(res *Result) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(events.Event{
		Type:      common.RUN_FINISHED_EVENT_TYPE,
		Timestamp: time.Now(),
		Data: events.RunFinishedEvent{
			RunId:  o.runId,
			Status: string(res.Status),
			Rounds: res.Rounds,
		},
	})
}

// rowOf copies row i of a symmetric matrix into a dense slice.
func rowOf(w *mat.SymDense, i int) []float64 {
	n, _ := w.Dims()
	row := make([]float64, n)
	for j := 0; j < n; j++ {
		row[j] = w.At(i, j)
	}
	return row
}
