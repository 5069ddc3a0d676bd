// Package provider gives the rest of the pipeline one call surface over
// the supported LLM backends. Variants differ only in transport and
// credential handling; prompt construction and response validation are
// shared here.
package provider

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Request is a single prompt-response exchange.
type Request struct {
	System      string
	Prompt      string
	Temperature float32
}

// Provider is one concrete LLM backend.
type Provider interface {
	// Name identifies the backend for logs and error messages.
	Name() string
	// Complete sends the prompt and returns the raw text completion.
	Complete(ctx context.Context, req Request) (string, error)
}

const (
	// maxAttempts bounds transient retries per completion call.
	maxAttempts = 3
	baseBackoff = 500 * time.Millisecond
)

// Invoke runs one structured exchange: complete, strip fences, validate
// against the schema, unmarshal into out. A response that fails
// validation is sent back to the model once with the violations attached
// before the call is given up as a ValidationError.
func Invoke(ctx context.Context, p Provider, req Request, schema *Schema, out any) error {
	req.System = req.System + "\n\n" + schema.Instructions()

	raw, err := completeWithBackoff(ctx, p, req)
	if err != nil {
		return err
	}

	doc := ExtractJSON(raw)
	verr := schema.Validate(doc)
	if verr == nil {
		return decode(doc, out)
	}

	// Corrective retry: re-ask once with the rejected output and the
	// exact violations.
	fix := req
	fix.Prompt = req.Prompt + correctionSuffix(doc, verr)

	raw, err = completeWithBackoff(ctx, p, fix)
	if err != nil {
		return err
	}

	doc = ExtractJSON(raw)
	if verr = schema.Validate(doc); verr != nil {
		return &ValidationError{Provider: p.Name(), Raw: doc, Err: verr}
	}
	return decode(doc, out)
}

func correctionSuffix(rejected string, verr error) string {
	var sb strings.Builder
	sb.WriteString("\n\nYour previous reply did not satisfy the required schema.\n")
	sb.WriteString("Previous reply:\n")
	sb.WriteString(rejected)
	sb.WriteString("\nProblems:\n")
	sb.WriteString(verr.Error())
	sb.WriteString("\nReturn a corrected JSON document only.")
	return sb.String()
}

// completeWithBackoff retries transient failures with exponential backoff
// up to maxAttempts. Auth and other non-retryable errors surface
// immediately.
func completeWithBackoff(ctx context.Context, p Provider, req Request) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := baseBackoff * time.Duration(1<<(attempt-2))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		raw, err := p.Complete(ctx, req)
		if err == nil {
			return raw, nil
		}
		if !IsRetryable(err) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("gave up after %d attempts: %w", maxAttempts, lastErr)
}
