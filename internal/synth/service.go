// Package synth orchestrates a speech request end to end: validate input,
// resolve the voice, split the text, run the model chunk by chunk, and
// concatenate the audio in order.
package synth

import (
	"context"
	"log"
	"time"
	"unicode/utf8"

	"github.com/voxdesk/voxdesk/internal/engine"
	"github.com/voxdesk/voxdesk/internal/history"
	"github.com/voxdesk/voxdesk/internal/observability"
	"github.com/voxdesk/voxdesk/internal/textseg"
	"github.com/voxdesk/voxdesk/internal/voices"
)

// MaxTextChars is the hard cap on request text length.
const MaxTextChars = 10000

// ModelProvider hands out the resident model, loading it when needed.
type ModelProvider interface {
	Acquire(ctx context.Context) (engine.Model, error)
}

// VoiceCatalog resolves voice names to reference clips.
type VoiceCatalog interface {
	Get(name string) (voices.Info, bool)
	SamplePath(name string) string
}

// Request is one synthesis call.
type Request struct {
	Text         string
	Voice        string
	Exaggeration float64
	CFGWeight    float64
}

// Result is the concatenated audio for a whole request.
type Result struct {
	Samples        []float32
	SampleRate     int
	Chunks         int
	AudioSeconds   float64
	GenerationTime time.Duration
}

// Service ties the chunker, the residency manager, and the voice catalog
// together. metrics and hist may be nil.
type Service struct {
	provider      ModelProvider
	catalog       VoiceCatalog
	hist          history.Store
	metrics       *observability.Metrics
	maxChunkChars int

	now func() time.Time
}

func NewService(provider ModelProvider, catalog VoiceCatalog, hist history.Store, metrics *observability.Metrics, maxChunkChars int) *Service {
	if maxChunkChars <= 0 {
		maxChunkChars = textseg.DefaultMaxChunkChars
	}
	return &Service{
		provider:      provider,
		catalog:       catalog,
		hist:          hist,
		metrics:       metrics,
		maxChunkChars: maxChunkChars,
		now:           time.Now,
	}
}

// GenerateSpeech synthesizes req.Text with the requested voice. Chunks
// are generated strictly in input order; a failed chunk aborts the whole
// request. The model's own lock is held only for acquisition, not for
// generation, so status queries stay responsive during long syntheses.
func (s *Service) GenerateSpeech(ctx context.Context, req Request) (Result, error) {
	if err := s.validate(&req); err != nil {
		if s.metrics != nil {
			s.metrics.Generations.WithLabelValues("invalid").Inc()
		}
		return Result{}, err
	}

	promptPath := s.catalog.SamplePath(req.Voice)
	opts := engine.GenerateOpts{
		Exaggeration:    req.Exaggeration,
		CFGWeight:       req.CFGWeight,
		VoicePromptPath: promptPath,
	}

	chunks := textseg.Chunk(req.Text, s.maxChunkChars)
	start := s.now()

	var all []float32
	sampleRate := 0
	for i, chunk := range chunks {
		model, err := s.provider.Acquire(ctx)
		if err != nil {
			if s.metrics != nil {
				s.metrics.Generations.WithLabelValues("load_error").Inc()
			}
			return Result{}, err
		}
		sampleRate = model.SampleRate()

		log.Printf("synth: generating chunk %d/%d (%d chars)", i+1, len(chunks), utf8.RuneCountInString(chunk))
		chunkStart := s.now()
		samples, err := model.Generate(ctx, chunk, opts)
		if err != nil {
			if s.metrics != nil {
				s.metrics.Generations.WithLabelValues("generation_error").Inc()
			}
			return Result{}, &GenerationError{Chunk: i + 1, Chunks: len(chunks), Err: err}
		}
		if s.metrics != nil {
			s.metrics.Stages.Observe("chunk_generate", s.now().Sub(chunkStart))
		}
		all = append(all, samples...)
	}

	elapsed := s.now().Sub(start)
	res := Result{
		Samples:        all,
		SampleRate:     sampleRate,
		Chunks:         len(chunks),
		AudioSeconds:   float64(len(all)) / float64(sampleRate),
		GenerationTime: elapsed,
	}
	if s.metrics != nil {
		s.metrics.ObserveGeneration("ok", elapsed, len(chunks))
	}
	if s.hist != nil {
		rec := history.Record{
			Voice:             req.Voice,
			TextChars:         utf8.RuneCountInString(req.Text),
			Chunks:            len(chunks),
			AudioSeconds:      res.AudioSeconds,
			GenerationSeconds: elapsed.Seconds(),
		}
		if err := s.hist.Save(ctx, rec); err != nil {
			log.Printf("synth: record history: %v", err)
		}
	}
	return res, nil
}

// validate rejects bad input before the model or the filesystem is
// touched. It also normalizes the voice name in place.
func (s *Service) validate(req *Request) error {
	if isBlank(req.Text) {
		return &ValidationError{Reason: "Text cannot be empty"}
	}
	if utf8.RuneCountInString(req.Text) > MaxTextChars {
		return &ValidationError{Reason: "Text exceeds 10,000 character limit"}
	}
	if req.Exaggeration < 0 || req.Exaggeration > 1 {
		return &ValidationError{Reason: "exaggeration must be between 0.0 and 1.0"}
	}
	if req.CFGWeight < 0 || req.CFGWeight > 1 {
		return &ValidationError{Reason: "cfg_weight must be between 0.0 and 1.0"}
	}

	if req.Voice == "" {
		req.Voice = voices.DefaultVoice
	}
	if _, ok := s.catalog.Get(req.Voice); !ok {
		return &ValidationError{Reason: "Unknown voice: " + req.Voice}
	}
	return nil
}

func isBlank(text string) bool {
	for _, r := range text {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
