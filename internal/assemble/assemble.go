// Package assemble builds the per-turn memory context: one query embedding,
// six parallel dimension searches, per-dimension allocation, and a
// budget-bounded text rendering.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/sixmem/internal/embedding"
	"github.com/rcliao/sixmem/internal/memory"
	"github.com/rcliao/sixmem/internal/model"
	"github.com/rcliao/sixmem/internal/rank"
)

const instrumentationName = "github.com/rcliao/sixmem/internal/assemble"

// State is a step of one BuildContext run. A healthy run visits Idle,
// Embedding, Querying, Ranking, Serializing and Done. Degraded is entered
// from Embedding or Querying; a degraded run still searches (keyword-only
// after an embedding failure) and allocates, then moves straight to
// Serializing.
type State string

const (
	StateIdle        State = "idle"
	StateEmbedding   State = "embedding"
	StateQuerying    State = "querying"
	StateDegraded    State = "degraded"
	StateRanking     State = "ranking"
	StateSerializing State = "serializing"
	StateDone        State = "done"
)

// Config bounds one BuildContext run.
type Config struct {
	// BudgetChars caps the rendered context, in characters.
	BudgetChars      int
	EmbedTimeout     time.Duration
	DimensionTimeout time.Duration
	// Concurrency is the number of dimension searches run at once.
	Concurrency int
	// TrimOrder lists dimensions from first to last trimmed.
	TrimOrder []model.Dimension
}

// DefaultTrimOrder drops validated knowledge first and core identity last.
var DefaultTrimOrder = []model.Dimension{
	model.DimensionKnowledge,
	model.DimensionResource,
	model.DimensionProcedural,
	model.DimensionSemantic,
	model.DimensionEpisodic,
	model.DimensionCore,
}

// DefaultConfig is a 2000-token budget at four characters per token.
func DefaultConfig() Config {
	return Config{
		BudgetChars:      8000,
		EmbedTimeout:     5 * time.Second,
		DimensionTimeout: time.Second,
		Concurrency:      len(model.Dimensions),
		TrimOrder:        DefaultTrimOrder,
	}
}

// Stats describes how a context was built.
type Stats struct {
	PerDimensionCount map[model.Dimension]int `json:"per_dimension_count"`
	TotalChars        int                     `json:"total_chars"`
	Degraded          bool                    `json:"degraded"`
	// FailedDimensions lists dimensions that errored or timed out.
	FailedDimensions []model.Dimension `json:"failed_dimensions,omitempty"`
	// Trimmed counts records dropped to fit the budget.
	Trimmed int           `json:"trimmed"`
	Path    []State       `json:"path"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// Result is the assembled context for one turn. Message is the user's
// message, passed through for the chat-completion call.
type Result struct {
	Context string `json:"context"`
	Message string `json:"message"`
	Stats   Stats  `json:"stats"`
}

// Options wires an Assembler. Embedder may be nil for keyword-only
// retrieval; Ranker defaults to rank.New(nil).
type Options struct {
	Embedder   embedding.Embedder
	Retrievers []Retriever
	Ranker     *rank.Ranker
	Config     Config
	Logger     *slog.Logger
}

// Assembler runs the context state machine. It is safe for concurrent use.
type Assembler struct {
	embedder   embedding.Embedder
	retrievers []Retriever
	ranker     *rank.Ranker
	cfg        Config
	log        *slog.Logger

	tracer        trace.Tracer
	degradedTurns metric.Int64Counter
	timeouts      metric.Int64Counter
	failures      metric.Int64Counter
	latency       metric.Float64Histogram
}

// New builds an Assembler, filling unset config from DefaultConfig. A
// budget smaller than EmptyMarker is raised to fit it.
func New(opts Options) *Assembler {
	cfg := opts.Config
	def := DefaultConfig()
	if cfg.BudgetChars <= 0 {
		cfg.BudgetChars = def.BudgetChars
	}
	if n := utf8.RuneCountInString(EmptyMarker); cfg.BudgetChars < n {
		cfg.BudgetChars = n
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = def.EmbedTimeout
	}
	if cfg.DimensionTimeout <= 0 {
		cfg.DimensionTimeout = def.DimensionTimeout
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	cfg.TrimOrder = trimOrder(cfg.TrimOrder)

	a := &Assembler{
		embedder:   opts.Embedder,
		retrievers: opts.Retrievers,
		ranker:     opts.Ranker,
		cfg:        cfg,
		log:        opts.Logger,
		tracer:     otel.Tracer(instrumentationName),
	}
	if a.ranker == nil {
		a.ranker = rank.New(nil)
	}
	if a.log == nil {
		a.log = slog.New(slog.DiscardHandler)
	}

	meter := otel.Meter(instrumentationName)
	var err error
	if a.degradedTurns, err = meter.Int64Counter("sixmem_context_degraded_total"); err != nil {
		a.log.Warn("otel counter sixmem_context_degraded_total", "err", err)
	}
	if a.timeouts, err = meter.Int64Counter("sixmem_dimension_timeouts_total"); err != nil {
		a.log.Warn("otel counter sixmem_dimension_timeouts_total", "err", err)
	}
	if a.failures, err = meter.Int64Counter("sixmem_dimension_failures_total"); err != nil {
		a.log.Warn("otel counter sixmem_dimension_failures_total", "err", err)
	}
	if a.latency, err = meter.Float64Histogram("sixmem_context_latency_ms", metric.WithUnit("ms")); err != nil {
		a.log.Warn("otel histogram sixmem_context_latency_ms", "err", err)
	}
	return a
}

// Config returns the effective configuration.
func (a *Assembler) Config() Config { return a.cfg }

// run tracks the state path of one BuildContext call.
type run struct {
	a      *Assembler
	userID string
	stats  Stats
}

func (r *run) enter(s State) {
	if s == StateDegraded {
		if r.stats.Degraded {
			return
		}
		r.stats.Degraded = true
	}
	r.stats.Path = append(r.stats.Path, s)
	r.a.log.Debug("context state", "user", r.userID, "state", s)
}

// BuildContext assembles the memory context for one user turn. It never
// fails: dimension failures and timeouts contribute nothing and mark the
// result degraded.
func (a *Assembler) BuildContext(ctx context.Context, userID, message string) Result {
	start := time.Now()
	ctx, span := a.tracer.Start(ctx, "assemble.BuildContext",
		trace.WithAttributes(attribute.String("sixmem.user", userID)))
	defer span.End()

	r := &run{a: a, userID: userID, stats: Stats{PerDimensionCount: make(map[model.Dimension]int)}}
	r.enter(StateIdle)

	r.enter(StateEmbedding)
	q := memory.Query{Text: message}
	if v, err := a.embedQuery(ctx, message); err != nil {
		a.log.Warn("query embedding failed, continuing keyword-only", "user", userID, "err", err)
		span.RecordError(err)
		r.enter(StateDegraded)
	} else {
		q.Vector = v
	}

	if !r.stats.Degraded {
		r.enter(StateQuerying)
	}
	hits := a.query(ctx, r, q)

	if !r.stats.Degraded {
		r.enter(StateRanking)
	}
	selected := a.ranker.Allocate(hits)
	before := 0
	for _, items := range selected {
		before += len(items)
	}

	r.enter(StateSerializing)
	out, selected := fit(selected, a.cfg.BudgetChars, a.cfg.TrimOrder)
	after := 0
	for d, items := range selected {
		r.stats.PerDimensionCount[d] = len(items)
		after += len(items)
	}
	r.stats.Trimmed = before - after
	if out == "" {
		out = EmptyMarker
	}
	r.stats.TotalChars = utf8.RuneCountInString(out)

	r.enter(StateDone)
	r.stats.Elapsed = time.Since(start)

	attrs := []attribute.KeyValue{attribute.Bool("sixmem.degraded", r.stats.Degraded)}
	span.SetAttributes(append(attrs,
		attribute.Int("sixmem.total_chars", r.stats.TotalChars),
		attribute.Int("sixmem.trimmed", r.stats.Trimmed))...)
	if r.stats.Degraded {
		span.SetStatus(codes.Error, "degraded")
		if a.degradedTurns != nil {
			a.degradedTurns.Add(ctx, 1)
		}
	}
	if a.latency != nil {
		a.latency.Record(ctx, float64(r.stats.Elapsed.Microseconds())/1000, metric.WithAttributes(attrs...))
	}
	a.log.Debug("context built", "user", userID, "chars", r.stats.TotalChars,
		"degraded", r.stats.Degraded, "elapsed", r.stats.Elapsed)

	return Result{Context: out, Message: message, Stats: r.stats}
}

// embedQuery returns nil, nil when embeddings are disabled or the message is
// empty.
func (a *Assembler) embedQuery(ctx context.Context, message string) (embedding.Vector, error) {
	if a.embedder == nil || message == "" {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.EmbedTimeout)
	defer cancel()
	v, err := a.embedder.Embed(ctx, message)
	if err != nil {
		return nil, &model.ProviderError{Op: "embed query", Err: err}
	}
	if dims := a.embedder.Dims(); dims > 0 && len(v) != dims {
		return nil, &model.ProviderError{Op: "embed query", Err: fmt.Errorf("got %d dimensions, want %d", len(v), dims)}
	}
	return v, nil
}

type dimResult struct {
	items []rank.Item
	err   error
}

// query runs every retriever on a bounded pool. Each search gets its own
// timeout; failures are logged and leave the dimension empty.
func (a *Assembler) query(ctx context.Context, r *run, q memory.Query) map[model.Dimension][]rank.Item {
	results := make([]dimResult, len(a.retrievers))
	var g errgroup.Group
	g.SetLimit(a.cfg.Concurrency)
	for i, ret := range a.retrievers {
		limit := a.ranker.Cap(ret.Dimension())
		if limit <= 0 {
			continue
		}
		g.Go(func() error {
			results[i] = a.retrieve(ctx, ret, r.userID, q, limit)
			return nil
		})
	}
	_ = g.Wait()

	hits := make(map[model.Dimension][]rank.Item, len(a.retrievers))
	for i, res := range results {
		d := a.retrievers[i].Dimension()
		if res.err != nil {
			r.stats.FailedDimensions = append(r.stats.FailedDimensions, d)
			r.enter(StateDegraded)
			continue
		}
		hits[d] = append(hits[d], res.items...)
	}
	return hits
}

func (a *Assembler) retrieve(ctx context.Context, ret Retriever, userID string, q memory.Query, limit int) dimResult {
	d := ret.Dimension()
	ctx, span := a.tracer.Start(ctx, "assemble.search",
		trace.WithAttributes(attribute.String("sixmem.dimension", string(d))))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, a.cfg.DimensionTimeout)
	defer cancel()

	done := make(chan dimResult, 1)
	go func() {
		items, err := ret.Retrieve(ctx, userID, q, limit)
		done <- dimResult{items: items, err: err}
	}()

	var res dimResult
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	if res.err == nil {
		span.SetAttributes(attribute.Int("sixmem.hits", len(res.items)))
		return res
	}

	attrs := metric.WithAttributes(attribute.String("sixmem.dimension", string(d)))
	if errors.Is(res.err, context.DeadlineExceeded) {
		a.log.Warn("dimension search timed out", "user", userID, "dimension", d, "err", res.err)
		if a.timeouts != nil {
			a.timeouts.Add(ctx, 1, attrs)
		}
	} else {
		a.log.Warn("dimension search failed", "user", userID, "dimension", d, "err", res.err)
		if a.failures != nil {
			a.failures.Add(ctx, 1, attrs)
		}
	}
	span.RecordError(res.err)
	span.SetStatus(codes.Error, res.err.Error())
	return dimResult{err: res.err}
}
