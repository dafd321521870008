// ABOUTME: Extractor contract and its tagged result
// ABOUTME: Every extraction ends in exactly one of Success, ParseFailure or Unavailable
package extract

import (
	"context"
	"errors"
	"fmt"

	"github.com/harper/muleta/internal/models"
)

// Status tags which variant a Result holds
type Status int

const (
	StatusSuccess Status = iota
	StatusParseFailure
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusParseFailure:
		return "parse_failure"
	case StatusUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the outcome of one extraction. Candidates are set only on
// Success; Raw holds the unparseable output on ParseFailure; Err explains
// ParseFailure and Unavailable.
type Result struct {
	Status     Status
	Candidates models.Candidates
	Raw        string
	Err        error

	// Source names the extractor that produced the candidates
	Source string
	// Degraded is set when the candidates came from a fallback extractor
	Degraded bool
}

// Success wraps extracted candidates
func Success(source string, c models.Candidates) Result {
	return Result{Status: StatusSuccess, Candidates: c, Source: source}
}

// ParseFailure records output that could not be interpreted
func ParseFailure(source, raw string, err error) Result {
	return Result{Status: StatusParseFailure, Raw: raw, Err: err, Source: source}
}

// Unavailable records an extractor that could not be reached
func Unavailable(source string, err error) Result {
	return Result{Status: StatusUnavailable, Err: err, Source: source}
}

// Error converts a non-success result into an ErrExtraction error
func (r Result) Error() error {
	if r.Status == StatusSuccess {
		return nil
	}
	return fmt.Errorf("%w: %s %s: %v", models.ErrExtraction, r.Source, r.Status, r.Err)
}

// Extractor turns raw text into candidate entities and relations
type Extractor interface {
	Extract(ctx context.Context, text string) Result
}

// Func adapts a function into an Extractor
type Func func(ctx context.Context, text string) Result

func (f Func) Extract(ctx context.Context, text string) Result {
	return f(ctx, text)
}

var errNoPrimary = errors.New("no primary extractor configured")
