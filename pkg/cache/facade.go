package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/pario-ai/ragcache/pkg/models"
)

// Source identifies which layer produced an answer.
type Source string

const (
	SourceMemory     Source = "memory"
	SourcePersistent Source = "persistent"
	SourceProducer   Source = "producer"
)

// Producer computes an answer for a query. It is expected to be slow and billed.
type Producer interface {
	Answer(ctx context.Context, query string) (string, error)
}

// ProducerFunc adapts a function to the Producer interface.
type ProducerFunc func(ctx context.Context, query string) (string, error)

// Answer calls f.
func (f ProducerFunc) Answer(ctx context.Context, query string) (string, error) {
	return f(ctx, query)
}

// Store is the durable tier.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
}

// Memory is the in-process tier.
type Memory interface {
	Get(key string) (string, bool)
	Put(key, value string)
	Len() int
	Evictions() int64
}

// Options tunes a Facade.
type Options struct {
	// Timeout bounds a single producer invocation. Zero means DefaultTimeout.
	Timeout time.Duration
	Logger  *log.Logger
}

// DefaultTimeout bounds producer calls when Options.Timeout is unset.
const DefaultTimeout = 60 * time.Second

// persistTimeout bounds the write-through to the durable tier, which runs
// detached from the caller's cancellation.
const persistTimeout = 5 * time.Second

// Facade answers queries from the memory tier, then the persistent tier,
// then the producer, writing new answers through to both tiers.
// It is safe for concurrent use.
type Facade struct {
	memory   Memory
	store    Store
	producer Producer
	timeout  time.Duration
	logger   *log.Logger

	memoryHits       atomic.Int64
	persistentHits   atomic.Int64
	misses           atomic.Int64
	producerFailures atomic.Int64
	storageErrors    atomic.Int64
}

// New creates a Facade that owns the given tiers.
func New(memory Memory, store Store, producer Producer, opts Options) *Facade {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Facade{
		memory:   memory,
		store:    store,
		producer: producer,
		timeout:  opts.Timeout,
		logger:   opts.Logger,
	}
}

// Answer returns the answer for query.
func (f *Facade) Answer(ctx context.Context, query string) (string, error) {
	answer, _, err := f.AnswerWithSource(ctx, query)
	return answer, err
}

// AnswerWithSource returns the answer for query and the layer that served it.
func (f *Facade) AnswerWithSource(ctx context.Context, query string) (string, Source, error) {
	if err := validateQuery(query); err != nil {
		return "", "", err
	}

	if answer, ok := f.memory.Get(query); ok {
		f.memoryHits.Add(1)
		f.logger.Debug("cache hit", "tier", SourceMemory, "query_len", len(query))
		return answer, SourceMemory, nil
	}

	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	answer, ok, err := f.store.Get(ctx, query)
	switch {
	case err != nil && ctx.Err() != nil:
		return "", "", ctx.Err()
	case err != nil:
		f.storageErrors.Add(1)
		f.logger.Warn("persistent cache read failed, falling back to producer", "err", err)
	case ok:
		f.persistentHits.Add(1)
		f.memory.Put(query, answer)
		f.logger.Debug("cache hit", "tier", SourcePersistent, "query_len", len(query))
		return answer, SourcePersistent, nil
	}

	f.misses.Add(1)
	f.logger.Debug("cache miss, running producer", "query_len", len(query))

	answer, err = f.produce(ctx, query)
	if err != nil {
		f.producerFailures.Add(1)
		f.logger.Error("producer failed", "err", err)
		return "", "", err
	}

	if err := f.persist(ctx, query, answer); err != nil {
		f.storageErrors.Add(1)
		f.logger.Error("persistent cache write failed, answer kept in memory only", "err", err)
	}
	f.memory.Put(query, answer)

	return answer, SourceProducer, nil
}

func (f *Facade) persist(ctx context.Context, query, answer string) error {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()
	return f.store.Put(wctx, query, answer)
}

func (f *Facade) produce(ctx context.Context, query string) (string, error) {
	pctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	answer, err := f.producer.Answer(pctx, query)
	if err != nil {
		var pe *ProducerError
		if errors.As(err, &pe) {
			return "", err
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(pctx.Err(), context.DeadlineExceeded) {
			return "", &ProducerError{Timeout: true, Err: err}
		}
		return "", &ProducerError{Err: err}
	}
	if answer == "" {
		return "", &ProducerError{Err: errors.New("empty answer")}
	}
	return answer, nil
}

// Stats returns hit, miss, and failure counters.
func (f *Facade) Stats() models.TierStats {
	return models.TierStats{
		MemoryHits:       f.memoryHits.Load(),
		PersistentHits:   f.persistentHits.Load(),
		Misses:           f.misses.Load(),
		ProducerFailures: f.producerFailures.Load(),
		StorageErrors:    f.storageErrors.Load(),
		MemoryEntries:    f.memory.Len(),
		MemoryEvictions:  f.memory.Evictions(),
	}
}

func validateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: query is empty", ErrMalformedInput)
	}
	if !utf8.ValidString(query) {
		return fmt.Errorf("%w: query is not valid UTF-8", ErrMalformedInput)
	}
	return nil
}
