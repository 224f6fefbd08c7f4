package service

import (
	"context"

	"github.com/nowemoore/phonology-app/pkg/analysis"
	"github.com/nowemoore/phonology-app/pkg/db"
	"github.com/nowemoore/phonology-app/pkg/phonology"
	"github.com/nowemoore/phonology-app/pkg/table"
	"github.com/nowemoore/phonology-app/pkg/workerpool"
	"k8s.io/klog/v2"
)

// NoSolutionMessage is recorded for analyses without a distinguishing feature set.
const NoSolutionMessage = "No feature combination distinguishes the targets"

// Recorder stores completed queries.
type Recorder interface {
	RecordAnalysis(rec *db.AnalysisRecord) error
}

// Service answers catalog, filter and analysis queries against one table source.
// It is safe for concurrent use.
type Service struct {
	src      table.Source
	cache    *matrixCache
	recorder Recorder
	workers  int
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder records every successful Analyze and FindByFeatures call.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithWorkers sets how many analyses AnalyzeBatch runs at once.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

func New(src table.Source, opts ...Option) *Service {
	s := &Service{
		src:     src,
		cache:   newMatrixCache(src),
		workers: 4,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Source returns the table source the service reads.
func (s *Service) Source() table.Source { return s.src }

// Matrix returns the current feature matrix.
func (s *Service) Matrix(ctx context.Context) (*phonology.Matrix, error) {
	return s.cache.get(ctx)
}

// Invalidate makes the next query reload the table.
func (s *Service) Invalidate() {
	s.cache.invalidate()
}

// PhonemeType is a phoneme with the value of its type column.
type PhonemeType struct {
	Phoneme string `json:"phoneme" yaml:"phoneme"`
	Type    string `json:"type" yaml:"type"`
}

func (s *Service) ListPhonemes(ctx context.Context) ([]string, error) {
	m, err := s.cache.get(ctx)
	if err != nil {
		return nil, err
	}
	return m.Phonemes(), nil
}

func (s *Service) ListFeatures(ctx context.Context) ([]string, error) {
	m, err := s.cache.get(ctx)
	if err != nil {
		return nil, err
	}
	return phonology.AllFeatures(m), nil
}

func (s *Service) ListPhonemesWithTypes(ctx context.Context) ([]PhonemeType, error) {
	m, err := s.cache.get(ctx)
	if err != nil {
		return nil, err
	}
	ids := m.Phonemes()
	out := make([]PhonemeType, len(ids))
	for i, p := range ids {
		out[i] = PhonemeType{Phoneme: p, Type: m.Type(p)}
	}
	return out, nil
}

// FindByFeatures returns the alphabet members matching every spec.
func (s *Service) FindByFeatures(ctx context.Context, alphabet []string, specs []phonology.FeatureSpec) ([]string, error) {
	m, err := s.cache.get(ctx)
	if err != nil {
		return nil, err
	}
	found, err := analysis.FindPhonemesByFeatures(alphabet, specs, m)
	if err != nil {
		return nil, err
	}
	s.record(&db.AnalysisRecord{
		Kind:     db.KindFind,
		Alphabet: alphabet,
		Specs:    db.SpecStrings(specs),
		Result:   [][]string{found},
	})
	return found, nil
}

// Analyze finds the minimal feature sets singling out targets. The Result is
// nil when no feature set does.
func (s *Service) Analyze(ctx context.Context, alphabet, targets []string) (*analysis.Result, error) {
	m, err := s.cache.get(ctx)
	if err != nil {
		return nil, err
	}
	return s.analyze(ctx, m, alphabet, targets)
}

func (s *Service) analyze(ctx context.Context, m *phonology.Matrix, alphabet, targets []string) (*analysis.Result, error) {
	res, err := analysis.FindMinimumFeatures(ctx, alphabet, targets, m)
	if err != nil {
		return nil, err
	}
	rec := &db.AnalysisRecord{
		Kind:     db.KindAnalyze,
		Alphabet: alphabet,
		Targets:  targets,
		Message:  NoSolutionMessage,
	}
	if res != nil {
		rec.Message = res.Message
		for _, sol := range res.Solutions {
			rec.Result = append(rec.Result, db.SpecStrings(sol))
		}
	}
	s.record(rec)
	return res, nil
}

func (s *Service) record(rec *db.AnalysisRecord) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordAnalysis(rec); err != nil {
		klog.Warningf("failed to record %s query: %v", rec.Kind, err)
	}
}

// Query is one analysis of a batch.
type Query struct {
	Name     string   `yaml:"name"`
	Alphabet []string `yaml:"alphabet"`
	Targets  []string `yaml:"targets"`
}

// BatchResult pairs a query with its outcome.
type BatchResult struct {
	Query  Query
	Result *analysis.Result
	Err    error
}

// AnalyzeBatch runs queries concurrently against one matrix snapshot. Results
// are in query order and each carries its own error. onDone, if set, is
// called from the worker goroutines as each query finishes.
func (s *Service) AnalyzeBatch(ctx context.Context, queries []Query, onDone func(BatchResult)) []BatchResult {
	results := make([]BatchResult, len(queries))
	for i, q := range queries {
		results[i].Query = q
	}
	if len(queries) == 0 {
		return results
	}

	m, err := s.cache.get(ctx)
	if err != nil {
		for i := range results {
			results[i].Err = err
		}
		return results
	}

	wp := workerpool.New(s.workers, len(queries))
	wp.Start(ctx)
	finished := make([]bool, len(queries))
	for i := range queries {
		i := i
		err := wp.SubmitCtx(ctx, func(ctx context.Context) error {
			r := &results[i]
			r.Result, r.Err = s.analyze(ctx, m, r.Query.Alphabet, r.Query.Targets)
			finished[i] = true
			if onDone != nil {
				onDone(*r)
			}
			return r.Err
		})
		if err != nil {
			break
		}
	}
	wp.Close()

	// Queries the pool never ran were cut short by ctx.
	for i := range results {
		if !finished[i] {
			results[i].Err = ctx.Err()
			if results[i].Err == nil {
				results[i].Err = workerpool.ErrPoolClosed
			}
		}
	}
	return results
}
