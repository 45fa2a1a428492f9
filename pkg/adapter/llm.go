package adapter

import (
	"context"
	"errors"
	"net"
	"net/url"
	"syscall"

	"github.com/m-mizutani/askdb/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// CompleteOptions controls a single completion request
type CompleteOptions struct {
	// Temperature is the sampling temperature (0.0-1.0). Low by default
	// to keep generated SQL stable.
	Temperature float64

	// MaxTokens limits the generated output size
	MaxTokens int
}

// DefaultCompleteOptions returns the options used when the caller does
// not override them
func DefaultCompleteOptions() CompleteOptions {
	return CompleteOptions{
		Temperature: 0.1,
		MaxTokens:   500,
	}
}

// LLM is the completion boundary: send a prompt, get generated text.
// Implementations must not retry; retry policy belongs to the caller.
type LLM interface {
	Complete(ctx context.Context, prompt string, opts CompleteOptions) (string, error)
}

// Embedder maps text to a fixed-dimensionality vector. Identical input
// must produce an identical vector so similarity scores stay stable.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Executor runs validated SQL against the target database
type Executor interface {
	Execute(ctx context.Context, gen *model.GeneratedSQL) (*model.QueryResult, error)
}

// translateLLMError is the single translation point from transport
// errors to the domain error taxonomy
func translateLLMError(err error, msg string) error {
	var netErr net.Error
	var urlErr *url.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.As(err, &netErr),
		errors.As(err, &urlErr):
		return goerr.Wrap(model.ErrBackendUnavailable, msg, goerr.V("cause", err.Error()))
	default:
		return goerr.Wrap(model.ErrBackendError, msg, goerr.V("cause", err.Error()))
	}
}
