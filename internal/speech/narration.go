package speech

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hammamikhairi/ottonav/internal/domain"
	"github.com/hammamikhairi/ottonav/internal/logger"
)

// NarrationSource resolves an AudioRef to WAV bytes: a pre-rendered file
// when the ref has a path, otherwise synthesized text through the cache.
// Concurrent requests for the same text share one synthesis call.
type NarrationSource struct {
	synth   domain.Synthesizer
	cache   *NarrationCache
	log     *logger.Logger
	group   singleflight.Group
	timeout time.Duration
}

// NarrationOption configures a NarrationSource.
type NarrationOption func(*NarrationSource)

// WithSynthesisTimeout bounds one shared synthesis call. It applies
// regardless of which caller started it.
func WithSynthesisTimeout(d time.Duration) NarrationOption {
	return func(s *NarrationSource) { s.timeout = d }
}

// NewNarrationSource creates a source. synth may be nil when every step
// carries pre-rendered audio.
func NewNarrationSource(synth domain.Synthesizer, cache *NarrationCache, log *logger.Logger, opts ...NarrationOption) *NarrationSource {
	s := &NarrationSource{
		synth:   synth,
		cache:   cache,
		log:     log.Named("narration"),
		timeout: 30 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Audio returns the WAV data for ref.
func (s *NarrationSource) Audio(ctx context.Context, ref domain.AudioRef) ([]byte, error) {
	if ref.Path != "" {
		data, err := os.ReadFile(ref.Path)
		if err != nil {
			return nil, fmt.Errorf("reading narration %s: %w", ref.Path, err)
		}
		return data, nil
	}
	if ref.Text == "" {
		return nil, domain.ErrEmptyRef
	}

	if s.cache != nil {
		if data, ok := s.cache.Get(ref.Text); ok {
			return data, nil
		}
	}
	if s.synth == nil {
		return nil, fmt.Errorf("no synthesizer for %s: %w", ref.ID, domain.ErrUnsupported)
	}

	// The flight outlives any single caller: each waiter gives up on its
	// own context while synthesis continues for the others.
	flight := s.group.DoChan(ref.Text, func() (any, error) {
		// A caller that missed just before the previous flight stored its
		// result lands here after the key was released.
		if s.cache != nil {
			if data, ok := s.cache.Get(ref.Text); ok {
				return data, nil
			}
		}
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		data, err := s.synth.Synthesize(sctx, ref.Text)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			s.cache.Put(ref.Text, data)
		}
		return data, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("synthesizing %s: %w", ref.ID, ctx.Err())
	case r := <-flight:
		if r.Err != nil {
			return nil, fmt.Errorf("synthesizing %s: %w", ref.ID, r.Err)
		}
		if r.Shared {
			s.log.Debug("shared synthesis for %s", ref.ID)
		}
		return r.Val.([]byte), nil
	}
}
