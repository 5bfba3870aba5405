// Package service replays battle records through the rating algorithm and
// fans the results out to the aggregation workers.
package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/okian/mmr/internal/adapters/mq/worker"
	"github.com/okian/mmr/internal/adapters/repository"
	"github.com/okian/mmr/internal/aggregate"
	"github.com/okian/mmr/internal/dataset"
	"github.com/okian/mmr/internal/domain/filter"
	"github.com/okian/mmr/internal/domain/model"
	"github.com/okian/mmr/internal/domain/rating"
	"github.com/okian/mmr/internal/domain/record"
	"github.com/okian/mmr/internal/domain/session"
	"github.com/okian/mmr/internal/domain/statistic"
	"github.com/okian/mmr/pkg/logger"
	"github.com/okian/mmr/pkg/metrics"
)

const maxLineBytes = 1024 * 1024

// Report summarizes a run.
type Report struct {
	Lines    int
	Parsed   int
	Rejected int
	Sessions int
	Accepted int
	Changes  int
	// Carried is true when the tail session was saved for the next run.
	Carried bool
	// Interrupted is true when the context ended before all input was read.
	Interrupted bool
}

// Engine is one batch replay. Rating state is touched only by the goroutine
// calling Run.
type Engine struct {
	logger    logger.Logger
	algorithm string
	inputs    []string
	tables    dataset.Paths

	leaderboardBase    string
	leaderboardFaction string
	storeOpts          []repository.Option

	memoryPath string
	carryTail  bool

	changeLog          aggregate.ChangeLogConfig
	statisticPath      string
	sanityPath         string
	classificationPath string
	rosterPath         string

	spreadPath       string
	spreadMMRDist    uint32
	spreadBattleDist uint32
	spreadFilter     repository.SpreadFilter

	filterExpr  string
	metricsPath string
}

// New constructs an Engine. Without options it runs V2 over no input.
func New(opts ...Option) *Engine {
	e := &Engine{
		algorithm: rating.NameV2,
		changeLog: aggregate.ChangeLogConfig{Dir: "changes", Shards: 1},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("engine")
	}
	return e
}

// run is the state of one Run call.
type run struct {
	e       *Engine
	alg     rating.Algorithm
	filter  *filter.Filter
	tables  *dataset.Tables
	store   *repository.Store
	parser  *record.Parser
	acc     *session.Accumulator
	report  Report
	stats   *aggregate.StatisticMerger
	sanity  *aggregate.SanityBucketer
	changes *aggregate.ChangeLogger
	classes *aggregate.SessionClassifier
}

// Run replays every input. Cancelling ctx stops reading between lines; the
// workers are still drained and every output is written for what was read.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	r, files, err := e.prepare(ctx)
	if err != nil {
		return Report{}, err
	}

	aggs := []aggregate.Aggregator{r.stats, r.sanity, r.changes, r.classes}
	runners := make([]worker.Runner, len(aggs))
	for i, a := range aggs {
		runners[i] = a.Runner()
	}
	group := worker.NewGroup(runners...)
	// Workers must drain after cancellation, so they never see it.
	wctx := context.WithoutCancel(ctx)
	group.Start(wctx)

	readErr := r.readAll(ctx, files)
	if errors.Is(readErr, context.Canceled) || errors.Is(readErr, context.DeadlineExceeded) {
		e.logger.Warn(ctx, "input interrupted, finishing with what was read", logger.Error(readErr))
		r.report.Interrupted = true
		readErr = nil
	}

	var errs []error
	if readErr != nil {
		errs = append(errs, readErr)
	} else if err := r.finishTail(wctx, len(files)-1); err != nil {
		errs = append(errs, err)
	}

	for _, a := range aggs {
		if err := a.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := group.Wait(wctx); err != nil {
		errs = append(errs, err)
	}
	finished := true
	for _, a := range aggs {
		if err := a.Finish(); err != nil {
			errs = append(errs, err)
			finished = false
		}
	}
	// The leaderboard is only saved when every aggregate output is complete.
	if readErr == nil && finished {
		errs = append(errs, r.persist(wctx))
	}

	e.logger.Info(wctx, "run finished",
		logger.Int("lines", r.report.Lines),
		logger.Int("rejected", r.report.Rejected),
		logger.Int("sessions", r.report.Sessions),
		logger.Int("accepted", r.report.Accepted),
		logger.Int("changes", r.report.Changes),
		logger.Int("leaderboard", r.store.Len()),
		logger.Bool("carried", r.report.Carried))
	return r.report, errors.Join(errs...)
}

// prepare loads state and opens every input and output before any worker
// starts, so open failures abort the run without partial output.
func (e *Engine) prepare(ctx context.Context) (*run, []*os.File, error) {
	alg, err := rating.New(e.algorithm)
	if err != nil {
		return nil, nil, err
	}
	f, err := filter.New(e.filterExpr)
	if err != nil {
		return nil, nil, err
	}
	tables, err := dataset.Load(ctx, e.tables)
	if err != nil {
		return nil, nil, err
	}

	store := repository.NewStore(e.storeOpts...)
	if err := store.Load(ctx, e.leaderboardBase, e.leaderboardFaction); err != nil {
		return nil, nil, err
	}
	metrics.UpdateLeaderboardSize(store.Len(), store.CalibratedLen())

	acc := session.NewAccumulator()
	if e.memoryPath != "" {
		batch, ok, err := session.LoadMemory(e.memoryPath)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			acc.Restore(batch)
			e.logger.Info(ctx, "restored carried session",
				logger.Uint64("session_id", batch.SessionID),
				logger.Int("rows", batch.Len()))
		}
	}

	for _, p := range []string{e.statisticPath, e.sanityPath, e.classificationPath, e.rosterPath,
		e.leaderboardBase, e.leaderboardFaction, e.spreadPath, e.metricsPath, e.memoryPath} {
		if err := ensureParent(p); err != nil {
			return nil, nil, err
		}
	}

	// Outputs opened so far are released if a later one fails.
	var opened []aggregate.Aggregator
	abort := func(err error) (*run, []*os.File, error) {
		for _, a := range opened {
			_ = a.Finish()
		}
		return nil, nil, err
	}

	stats, err := aggregate.NewStatisticMerger(e.statisticPath)
	if err != nil {
		return abort(err)
	}
	opened = append(opened, stats)
	sanity, err := aggregate.NewSanityBucketer(e.sanityPath)
	if err != nil {
		return abort(err)
	}
	opened = append(opened, sanity)
	changes, err := aggregate.NewChangeLogger(e.changeLog)
	if err != nil {
		return abort(err)
	}
	opened = append(opened, changes)
	classes, err := aggregate.NewSessionClassifier(e.classificationPath, e.rosterPath)
	if err != nil {
		return abort(err)
	}
	opened = append(opened, classes)

	files := make([]*os.File, 0, len(e.inputs))
	for _, p := range e.inputs {
		fh, err := os.Open(p)
		if err != nil {
			for _, o := range files {
				_ = o.Close()
			}
			return abort(fmt.Errorf("%w: %w", ErrOpenInput, err))
		}
		files = append(files, fh)
	}

	e.logger.Info(ctx, "engine prepared",
		logger.String("algorithm", alg.Name()),
		logger.Int("inputs", len(files)),
		logger.Int("leaderboard", store.Len()),
		logger.String("filter", f.String()))

	return &run{
		e:       e,
		alg:     alg,
		filter:  f,
		tables:  tables,
		store:   store,
		parser:  record.NewParser(tables),
		acc:     acc,
		stats:   stats,
		sanity:  sanity,
		changes: changes,
		classes: classes,
	}, files, nil
}

func (r *run) readAll(ctx context.Context, files []*os.File) error {
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	for i, f := range files {
		if err := r.readFile(ctx, f, i); err != nil {
			return err
		}
		r.e.logger.Debug(ctx, "input consumed", logger.String("path", f.Name()), logger.Int("classifier", i))
	}
	return nil
}

func (r *run) readFile(ctx context.Context, f *os.File, classifier int) error {
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.report.Lines++
		row, err := r.parser.Parse(sc.Text())
		if err != nil {
			r.report.Rejected++
			metrics.RecordRecordRejected(record.Reason(err))
			r.e.logger.Debug(ctx, "record skipped", logger.Int("line", r.report.Lines), logger.Error(err))
			continue
		}
		r.report.Parsed++
		metrics.RecordRecordParsed()

		if batch, ok := r.acc.Push(row); ok {
			if err := r.process(ctx, batch, classifier); err != nil {
				return err
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrReadInput, f.Name(), err)
	}
	return nil
}

// finishTail rates the last open session or, with carry-over enabled, saves
// it for the next run. A consumed memory file is removed.
func (r *run) finishTail(ctx context.Context, classifier int) error {
	batch, ok := r.acc.Flush()
	if ok && r.e.carryTail {
		if err := session.SaveMemory(r.e.memoryPath, batch); err != nil {
			return err
		}
		r.report.Carried = true
		r.e.logger.Info(ctx, "carried tail session",
			logger.Uint64("session_id", batch.SessionID),
			logger.Int("rows", batch.Len()))
		return nil
	}
	if r.e.memoryPath != "" {
		if err := os.Remove(r.e.memoryPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %w", ErrPersistState, err)
		}
	}
	if !ok {
		return nil
	}
	if classifier < 0 {
		classifier = 0
	}
	return r.process(ctx, batch, classifier)
}

// process rates one completed session and emits its outputs.
func (r *run) process(ctx context.Context, batch model.SessionBatch, classifier int) error {
	r.report.Sessions++
	s := rating.Prepare(batch, r.store, r.tables)

	accepted, err := r.filter.Accept(s)
	if err != nil {
		r.e.logger.Warn(ctx, "session filter failed", logger.Uint64("session_id", s.ID), logger.Error(err))
	}
	if !accepted {
		metrics.RecordSession(metrics.OutcomeFiltered, s.Size())
		return nil
	}
	outcome, ok := s.Gate()
	metrics.RecordSession(outcome, s.Size())
	if !ok {
		return nil
	}
	r.report.Accepted++

	st := statistic.Build(s.Team1, s.Team2, r.tables)
	for _, board := range boards(s) {
		if err := r.stats.Send(ctx, aggregate.BoardStatistic{Board: board, Statistic: st}); err != nil {
			return fmt.Errorf("%w: %w", ErrEmitSession, err)
		}
	}
	if w, l, ok := statistic.SanityPair(s.Team1, s.Team2); ok {
		if err := r.sanity.Send(ctx, aggregate.SanityPair{Winner: w, Loser: l}); err != nil {
			return fmt.Errorf("%w: %w", ErrEmitSession, err)
		}
	}

	// Every change is computed before any is applied.
	for _, p := range r.alg.Compute(ctx, s) {
		row := r.alg.Apply(r.store, p)
		metrics.RecordChangeApplied(r.alg.Name())
		r.report.Changes++
		ch := model.Change{Algorithm: r.alg.Name(), Pending: p, Row: row, ClassifierID: classifier}
		if err := r.changes.Send(ctx, ch); err != nil {
			return fmt.Errorf("%w: %w", ErrEmitSession, err)
		}
	}
	if err := r.classes.Send(ctx, s); err != nil {
		return fmt.Errorf("%w: %w", ErrEmitSession, err)
	}
	metrics.UpdateLeaderboardSize(r.store.Len(), r.store.CalibratedLen())
	return nil
}

// persist writes the leaderboard and the optional reports.
func (r *run) persist(ctx context.Context) error {
	var errs []error
	if err := r.store.Save(ctx, r.e.leaderboardBase, r.e.leaderboardFaction); err != nil {
		errs = append(errs, err)
	}
	if r.e.spreadPath != "" {
		mmr := r.store.MMRSpread(r.e.spreadMMRDist, r.e.spreadFilter)
		battles := r.store.BattleSpread(r.e.spreadBattleDist, r.e.spreadFilter)
		if err := repository.WriteSpread(r.e.spreadPath, mmr, battles); err != nil {
			errs = append(errs, err)
		}
	}
	if r.e.metricsPath != "" {
		if err := metrics.WriteTextfile(r.e.metricsPath); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// boards lists the distinct boards a session's statistic is merged into.
func boards(s rating.Session) []string {
	out := []string{statistic.BoardCommon}
	if !s.HasMode {
		return out
	}
	for _, b := range []string{s.Mode.Raw, s.Mode.Common, s.Mode.Specific} {
		if b == "" || slices.Contains(out, b) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func ensureParent(path string) error {
	if path == "" {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", aggregate.ErrOpenOutput, err)
	}
	return nil
}
