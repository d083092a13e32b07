package formline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cognicore/formline/pkg/formline/decode"
	"github.com/cognicore/formline/pkg/formline/ingest"
	"github.com/cognicore/formline/pkg/formline/reconcile"
	"github.com/cognicore/formline/pkg/formline/store"
)

// Formline is the ingestion facade: it decodes documents, stores horse form
// and reconciles runs into races.
type Formline struct {
	store   store.Store
	decCfg  decode.Config
	engine  *reconcile.Engine
	workers int
	logger  *slog.Logger

	mu    sync.Mutex
	stats Stats
}

// Options configures a Formline instance
type Options struct {
	Store   store.Store
	Decoder decode.Config    // zero value means decode.DefaultConfig
	Engine  reconcile.Config // zero value means reconcile.DefaultConfig
	Workers int              // parallel document decoders, default 4
	Logger  *slog.Logger
}

// Stats counts pipeline outcomes across Ingest calls
type Stats struct {
	Documents     int
	Horses        int
	Runs          int
	HorseFailures int
	RunFailures   int
	OrphanRuns    int
	Repairs       int
	Races         int
}

// Document is one tokenized source document
type Document struct {
	ID     string
	Tokens []ingest.Token
}

// New creates a Formline instance with the given dependencies
func New(opts Options) *Formline {
	if opts.Decoder == (decode.Config{}) {
		opts.Decoder = decode.DefaultConfig()
	}
	if opts.Engine == (reconcile.Config{}) {
		opts.Engine = reconcile.DefaultConfig()
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Formline{
		store:   opts.Store,
		decCfg:  opts.Decoder,
		engine:  reconcile.NewEngine(opts.Engine, opts.Logger),
		workers: opts.Workers,
		logger:  opts.Logger.With("comp", "pipeline"),
	}
}

// Ingest decodes docs in parallel and funnels every horse through a single
// writer that stores it and submits its runs for reconciliation.
func (f *Formline) Ingest(ctx context.Context, docs []Document) error {
	g, ctx := errgroup.WithContext(ctx)
	horses := make(chan decode.Horse, f.workers)

	g.Go(func() error {
		defer close(horses)
		dg, dctx := errgroup.WithContext(ctx)
		dg.SetLimit(f.workers)
		for _, doc := range docs {
			dg.Go(func() error { return f.decodeDoc(dctx, doc, horses) })
		}
		return dg.Wait()
	})

	g.Go(func() error {
		for h := range horses {
			if err := f.write(ctx, h); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}

func (f *Formline) decodeDoc(ctx context.Context, doc Document, out chan<- decode.Horse) error {
	logger := f.logger.With("doc", doc.ID)
	d := decode.New(f.decCfg, func(h decode.Horse) {
		select {
		case out <- h:
		case <-ctx.Done():
		}
	}, logger)

	for _, tok := range doc.Tokens {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.Feed(tok)
	}
	d.Close()

	st := d.Stats()
	f.mu.Lock()
	f.stats.Documents++
	f.stats.Horses += st.Horses
	f.stats.Runs += st.Runs
	f.stats.HorseFailures += st.HorseFailures
	f.stats.RunFailures += st.RunFailures
	f.stats.OrphanRuns += st.OrphanRuns
	f.stats.Repairs += st.Repairs
	f.mu.Unlock()

	logger.Info("document decoded",
		"tokens", st.Tokens,
		"horses", st.Horses,
		"runs", st.Runs,
		"failures", st.HorseFailures+st.RunFailures)
	return ctx.Err()
}

// write runs on the single writer goroutine.
func (f *Formline) write(ctx context.Context, h decode.Horse) error {
	if err := f.store.UpsertHorse(ctx, h); err != nil {
		return fmt.Errorf("store horse %s: %w", h.Identity(), err)
	}
	for _, run := range h.Runs {
		races, err := f.engine.Submit(reconcile.KeyOf(run), reconcile.NewRunner(h, run))
		if err != nil {
			return fmt.Errorf("submit %s: %w", h.Identity(), err)
		}
		for _, race := range races {
			if err := f.store.PutRace(ctx, race); err != nil {
				return fmt.Errorf("store race %s: %w", race.ID, err)
			}
			f.mu.Lock()
			f.stats.Races++
			f.mu.Unlock()
		}
	}
	return nil
}

// Stats returns the pipeline counters
func (f *Formline) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats
}

// EngineStats returns the reconciliation counters
func (f *Formline) EngineStats() reconcile.Stats {
	return f.engine.Stats()
}

// Close ends reconciliation, reports unresolved races and closes the store
func (f *Formline) Close(ctx context.Context) (reconcile.Report, error) {
	rep := f.engine.Close()
	if counts, err := f.store.Counts(ctx); err == nil {
		f.logger.Info("ingest finished",
			"horses", counts.Horses,
			"runs", counts.Runs,
			"races", counts.Races,
			"unresolved", len(rep.Unresolved))
	}
	return rep, f.store.Close()
}
