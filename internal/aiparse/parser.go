package aiparse

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/contaflow/bankparse/internal/statement"
)

const minChunkTokens = 1

// Config controls chunking and retry behavior.
type Config struct {
	ChunkTokens int           // initial per-chunk token budget
	MaxRetries  int           // halving retries per span before giving up
	Workers     int           // parallel spans in flight
	CallTimeout time.Duration // per model call
}

// DefaultConfig returns the production settings.
func DefaultConfig() Config {
	return Config{
		ChunkTokens: 6000,
		MaxRetries:  4,
		Workers:     3,
		CallTimeout: 90 * time.Second,
	}
}

// Report summarizes one parse run for logging and job records.
type Report struct {
	Spans       int
	Calls       int
	Retries     int
	FailedSpans int
	Issues      []string
}

// Parser turns raw statement text into transactions by sending it to an
// external classifier in chunks. Truncated or malformed replies are retried
// with the chunk size halved, and the reduced size carries forward to the
// remaining spans so they do not rediscover the same limit.
type Parser struct {
	svc Service
	cfg Config
	log zerolog.Logger
}

// New creates a Parser. Zero-valued Config fields fall back to defaults.
func New(svc Service, cfg Config, log zerolog.Logger) *Parser {
	def := DefaultConfig()
	if cfg.ChunkTokens <= 0 {
		cfg.ChunkTokens = def.ChunkTokens
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	return &Parser{svc: svc, cfg: cfg, log: log}
}

type span struct {
	index int
	text  string
}

type spanResult struct {
	index   int
	raws    []statement.RawTransaction
	calls   int
	retries int
	err     error
}

// Parse classifies the full statement text. Output order follows the order
// of the text. Spans that fail after every retry are dropped and reported;
// Parse errors only when no span produced transactions.
func (p *Parser) Parse(ctx context.Context, text string, meta Meta) ([]statement.RawTransaction, Report, error) {
	spans := SplitChunks(text, p.cfg.ChunkTokens)
	report := Report{Spans: len(spans)}
	if len(spans) == 0 {
		return nil, report, fmt.Errorf("%w: no statement text", statement.ErrClassificationParse)
	}

	// Spans that sit later in the queue start at the smallest size any
	// earlier span had to shrink to.
	var sharedSize atomic.Int64
	sharedSize.Store(int64(p.cfg.ChunkTokens))

	workChan := make(chan span, len(spans))
	for i, s := range spans {
		workChan <- span{index: i, text: s}
	}
	close(workChan)

	resultsChan := make(chan spanResult, len(spans))

	var wg sync.WaitGroup
	wg.Add(p.cfg.Workers)
	for i := 0; i < p.cfg.Workers; i++ {
		go func() {
			defer wg.Done()
			for sp := range workChan {
				select {
				case <-ctx.Done():
					resultsChan <- spanResult{index: sp.index, err: ctx.Err()}
					continue
				default:
				}
				res := p.parseSpan(ctx, sp, &sharedSize, meta)
				resultsChan <- res
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	// Single reader folds results, then flattens them in span order.
	ordered := make([][]statement.RawTransaction, len(spans))
	for res := range resultsChan {
		report.Calls += res.calls
		report.Retries += res.retries
		if res.err != nil {
			report.FailedSpans++
			report.Issues = append(report.Issues, fmt.Sprintf("span %d: %v", res.index, res.err))
			p.log.Warn().Int("span", res.index).Err(res.err).Msg("span failed after retries")
			continue
		}
		ordered[res.index] = res.raws
	}

	if err := ctx.Err(); err != nil {
		return nil, report, err
	}

	var raws []statement.RawTransaction
	for _, part := range ordered {
		raws = append(raws, part...)
	}

	if len(raws) == 0 {
		return nil, report, fmt.Errorf("%w: all %d spans failed", statement.ErrClassificationParse, report.Spans)
	}
	return raws, report, nil
}

// parseSpan classifies one span, halving the chunk size on truncation or
// malformed JSON until the span parses, the size reaches one token, or the
// retry budget runs out.
func (p *Parser) parseSpan(ctx context.Context, sp span, shared *atomic.Int64, meta Meta) spanResult {
	res := spanResult{index: sp.index}
	size := int(shared.Load())

	for {
		raws, calls, err := p.classifySpanAtSize(ctx, sp.text, size, meta)
		res.calls += calls
		if err == nil {
			res.raws = raws
			// Later spans start where this one ended up.
			shrinkShared(shared, size)
			return res
		}
		if ctx.Err() != nil {
			res.err = ctx.Err()
			return res
		}
		if res.retries >= p.cfg.MaxRetries || size <= minChunkTokens {
			res.err = err
			return res
		}
		res.retries++
		size /= 2
		if size < minChunkTokens {
			size = minChunkTokens
		}
		p.log.Debug().
			Int("span", sp.index).
			Int("chunk_tokens", size).
			Int("retry", res.retries).
			Err(err).
			Msg("halving chunk size")
	}
}

// classifySpanAtSize sends the span as one or more chunks of at most size
// tokens. Any truncated or unparseable chunk fails the whole span attempt.
func (p *Parser) classifySpanAtSize(ctx context.Context, text string, size int, meta Meta) ([]statement.RawTransaction, int, error) {
	chunks := SplitChunks(text, size)
	var raws []statement.RawTransaction
	calls := 0

	for _, chunk := range chunks {
		callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
		resp, err := p.svc.Classify(callCtx, buildPrompt(meta, chunk))
		cancel()
		calls++
		if err != nil {
			return nil, calls, err
		}
		if resp.Truncated {
			return nil, calls, statement.ErrTruncated
		}
		clean, err := sanitizeModelJSON(resp.Text)
		if err != nil {
			return nil, calls, err
		}
		part, err := decodeChunk(clean)
		if err != nil {
			return nil, calls, err
		}
		raws = append(raws, part...)
	}
	return raws, calls, nil
}

func shrinkShared(shared *atomic.Int64, size int) {
	for {
		cur := shared.Load()
		if int64(size) >= cur {
			return
		}
		if shared.CompareAndSwap(cur, int64(size)) {
			return
		}
	}
}
