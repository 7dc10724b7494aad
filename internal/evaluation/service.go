// Package evaluation runs the request pipeline: compile, sandboxed run,
// report formatting and write-back into the document store.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/xtal-lab/xtal/internal/document"
	"github.com/xtal-lab/xtal/internal/instrument"
	"github.com/xtal-lab/xtal/internal/report"
	"github.com/xtal-lab/xtal/internal/sandbox"
)

// State is the terminal state of an evaluation.
type State string

const (
	StateCompleted State = "completed"
	StateTimedOut  State = "timed_out"
)

// Request is one evaluation.
type Request struct {
	SourceText string `json:"source_text"`
	DocumentID string `json:"document_id"`
	// Name is the script name used in stack traces.
	Name string `json:"-"`
}

// Outcome is what the caller receives and what is written to the document.
type Outcome struct {
	Result string   `json:"result"`
	Errors []string `json:"errors"`
	State  State    `json:"state"`
}

// Documents is the slice of the document store the pipeline needs.
type Documents interface {
	Get(ctx context.Context, id string) (*document.Document, error)
	WriteOutcome(ctx context.Context, id string, result string, errs []string) error
}

// Config configures a Service.
type Config struct {
	Sandbox        sandbox.Options
	Kinds          instrument.KindSet
	MaxConcurrency int
	CacheCapacity  int
}

// DefaultConfig returns the defaults used when no configuration is given.
func DefaultConfig() Config {
	return Config{
		Sandbox:        sandbox.DefaultOptions(),
		Kinds:          instrument.AllKinds(),
		MaxConcurrency: 4,
		CacheCapacity:  256,
	}
}

type Service struct {
	cache            *Cache
	coordinator      *sandbox.Coordinator
	sem              *semaphore.Weighted
	maxConcurrency   int
	docs             Documents
	flights          singleflight.Group
	maxBodySizeBytes int

	// Write-back ordering. Every request on a document takes a sequence
	// number; a run only writes when it is newer than the last write.
	seqMu  sync.Mutex
	seq    uint64
	latest map[string]*flightSeq
	writes map[string]*writeBack
}

// flightSeq is the newest sequence number among the callers of one flight key.
type flightSeq struct {
	seq     uint64
	callers int
}

type writeBack struct {
	mu      sync.Mutex
	written uint64
}

// NewService creates an evaluation service. docs may be nil, in which case
// outcomes are not written back.
func NewService(cfg Config, docs Documents, maxBodySizeMB int) (*Service, error) {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	coordinator := sandbox.NewCoordinator(cfg.Sandbox)
	pass := instrument.New(coordinator.Options().Hook, cfg.Kinds)

	cache, err := NewCache(cfg.CacheCapacity, pass)
	if err != nil {
		return nil, err
	}

	slog.Info("[Evaluation] Service initialized",
		"max_concurrency", cfg.MaxConcurrency,
		"cache_capacity", cfg.CacheCapacity,
		"timeout", coordinator.Options().Timeout,
		"kinds", cfg.Kinds.String())

	return &Service{
		cache:            cache,
		coordinator:      coordinator,
		sem:              semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		maxConcurrency:   cfg.MaxConcurrency,
		docs:             docs,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
		latest:           make(map[string]*flightSeq),
		writes:           make(map[string]*writeBack),
	}, nil
}

// RegisterRoutes registers the evaluation routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/evaluate", s.EvaluateHandler)
	r.POST("/v1/documents/:id/evaluate", s.EvaluateDocumentHandler)
}

// Unit returns the cached compile products for a named source.
func (s *Service) Unit(name, src string) *Unit {
	return s.cache.Unit(name, src)
}

// Evaluate runs one request and writes the outcome back to its document.
// Identical concurrent requests share a single run.
func (s *Service) Evaluate(ctx context.Context, req Request) (*Outcome, error) {
	unit := s.cache.Unit(req.Name, req.SourceText)
	key := req.DocumentID + "\x00" + unit.Fingerprint
	if req.DocumentID != "" {
		s.stamp(key)
		defer s.unstamp(key)
	}

	v, err, shared := s.flights.Do(key, func() (interface{}, error) {
		return s.run(ctx, req, unit, key)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("[Evaluation] Shared in-flight run", "document_id", req.DocumentID)
	}
	out := v.(*Outcome)
	return &Outcome{Result: out.Result, Errors: append([]string{}, out.Errors...), State: out.State}, nil
}

// EvaluateDocument evaluates the stored content of a document.
func (s *Service) EvaluateDocument(ctx context.Context, id string) (*Outcome, error) {
	if s.docs == nil {
		return nil, errors.New("no document store configured")
	}
	doc, err := s.docs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Evaluate(ctx, Request{SourceText: doc.Content, DocumentID: doc.ID})
}

// EvaluateBatch runs requests concurrently and returns outcomes in request order.
func (s *Service) EvaluateBatch(ctx context.Context, reqs []Request) ([]*Outcome, error) {
	outs := make([]*Outcome, len(reqs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)
	for i, req := range reqs {
		g.Go(func() error {
			out, err := s.Evaluate(ctx, req)
			if err != nil {
				return fmt.Errorf("request %d: %w", i, err)
			}
			outs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outs, nil
}

func (s *Service) run(ctx context.Context, req Request, unit *Unit, key string) (*Outcome, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("failed to acquire evaluation slot: %w", err)
	}
	defer s.sem.Release(1)

	start := time.Now()
	res := s.coordinator.Run(ctx, unit.Script())

	out := &Outcome{
		Result: report.Format(res.Events),
		Errors: append([]string{}, res.Errors...),
		State:  StateCompleted,
	}
	if res.TimedOut {
		out.State = StateTimedOut
	}

	slog.Debug("[Evaluation] Completed",
		"document_id", req.DocumentID,
		"state", out.State,
		"events", len(res.Events),
		"errors", len(out.Errors),
		"duration", time.Since(start))

	if req.DocumentID != "" && s.docs != nil {
		// The outcome is stored even when the caller has gone away.
		if err := s.writeOutcome(context.WithoutCancel(ctx), key, req.DocumentID, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// stamp records a new request on the flight key.
func (s *Service) stamp(key string) uint64 {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	f, ok := s.latest[key]
	if !ok {
		f = &flightSeq{}
		s.latest[key] = f
	}
	s.seq++
	f.seq = s.seq
	f.callers++
	return s.seq
}

func (s *Service) unstamp(key string) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	if f, ok := s.latest[key]; ok {
		if f.callers--; f.callers <= 0 {
			delete(s.latest, key)
		}
	}
}

// writeOutcome stores out unless a newer request on the same document has
// already been written.
func (s *Service) writeOutcome(ctx context.Context, key, id string, out *Outcome) error {
	s.seqMu.Lock()
	var seq uint64
	if f, ok := s.latest[key]; ok {
		seq = f.seq
	}
	w, ok := s.writes[id]
	if !ok {
		w = &writeBack{}
		s.writes[id] = w
	}
	s.seqMu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()
	if seq <= w.written {
		slog.Debug("[Evaluation] Dropped stale outcome", "document_id", id, "seq", seq, "written", w.written)
		return nil
	}
	if err := s.docs.WriteOutcome(ctx, id, out.Result, out.Errors); err != nil {
		return err
	}
	w.written = seq
	return nil
}

// Close releases the unit cache.
func (s *Service) Close() {
	s.cache.Close()
}
