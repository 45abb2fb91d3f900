package backends

import (
	"context"
	"errors"
	"fmt"

	"github.com/cwhuang/segscribe/pkg/logger"
)

// ErrAllBackendsFailed reports that every backend in the chain errored
// without producing any result, usable or degenerate. The caller should
// abort the current file rather than retry the dead chain per segment.
var ErrAllBackendsFailed = errors.New("all transcription backends failed")

// Chain runs a primary backend and falls back through an ordered list of
// alternates when the primary returns degenerate output. Degenerate text is
// a quality signal, never an error: when every backend produces it, the last
// result is kept and the caller proceeds.
type Chain struct {
	primary   Backend
	fallbacks []Backend
}

// NewChain creates a fallback chain. At least a primary backend is required.
func NewChain(primary Backend, fallbacks ...Backend) (*Chain, error) {
	if primary == nil {
		return nil, fmt.Errorf("primary backend is required")
	}
	return &Chain{primary: primary, fallbacks: fallbacks}, nil
}

// Name returns the primary backend's name.
func (c *Chain) Name() string {
	return c.primary.Name()
}

// Transcribe runs the primary backend, then each fallback in order while the
// result stays degenerate. A backend error is only fatal when no backend in
// the chain has produced a result at all.
func (c *Chain) Transcribe(ctx context.Context, path string) (*Result, error) {
	log := logger.WithComponent("backend-chain")

	result, err := c.primary.Transcribe(ctx, path)
	if err != nil {
		log.Warn().Err(err).Str("backend", c.primary.Name()).Msg("Primary backend failed")
	} else if !IsDegenerate(result.Text) {
		return result, nil
	}

	for _, fb := range c.fallbacks {
		if result != nil {
			log.Warn().
				Str("backend", fb.Name()).
				Msg("Output degenerate, retrying with fallback backend")
		}

		fbResult, fbErr := fb.Transcribe(ctx, path)
		if fbErr != nil {
			log.Warn().Err(fbErr).Str("backend", fb.Name()).Msg("Fallback backend failed")
			continue
		}

		result = fbResult
		err = nil
		if !IsDegenerate(result.Text) {
			log.Info().Str("backend", fb.Name()).Msg("Fallback backend produced usable output")
			return result, nil
		}
	}

	if result == nil {
		return nil, fmt.Errorf("%w: %v", ErrAllBackendsFailed, err)
	}

	// Every backend produced degenerate output; keep the last result.
	log.Warn().Str("text", result.Text).Msg("All backends returned degenerate output, keeping last result")
	return result, nil
}
