// Package vkerrors implements the pipeline's error taxonomy (spec §7):
// configuration, discovery, parse, extractor, normalizer, and impact-pack
// errors. Only configuration errors are fatal; the rest attach to a stage's
// diagnostics and let the pipeline continue.
package vkerrors

import (
	"fmt"
	"time"
)

// Stage identifies which pipeline stage raised an error.
type Stage string

const (
	StageConfiguration Stage = "configuration"
	StageDiscovery     Stage = "discovery"
	StageParse         Stage = "parse"
	StageExtractor     Stage = "extractor"
	StageNormalizer    Stage = "normalizer"
	StageImpactPack    Stage = "impact_pack"
	StageInternal      Stage = "internal"
)

// StageError is the common shape for every non-fatal diagnostic the
// pipeline accumulates. Configuration errors use the same type but are
// returned directly to the caller instead of being appended to a result.
type StageError struct {
	Stage       Stage
	Operation   string
	EntityID    string
	FilePath    string
	Underlying  error
	Timestamp   time.Time
	Recoverable bool
}

// New creates a StageError for the given stage and operation.
func New(stage Stage, op string, err error) *StageError {
	return &StageError{
		Stage:       stage,
		Operation:   op,
		Underlying:  err,
		Timestamp:   time.Now(),
		Recoverable: stage != StageConfiguration,
	}
}

// WithFile attaches a file path to the error.
func (e *StageError) WithFile(path string) *StageError {
	e.FilePath = path
	return e
}

// WithEntity attaches an entity id to the error.
func (e *StageError) WithEntity(id string) *StageError {
	e.EntityID = id
	return e
}

func (e *StageError) Error() string {
	switch {
	case e.EntityID != "":
		return fmt.Sprintf("%s: %s failed for entity %s: %v", e.Stage, e.Operation, e.EntityID, e.Underlying)
	case e.FilePath != "":
		return fmt.Sprintf("%s: %s failed for %s: %v", e.Stage, e.Operation, e.FilePath, e.Underlying)
	default:
		return fmt.Sprintf("%s: %s failed: %v", e.Stage, e.Operation, e.Underlying)
	}
}

// Unwrap supports errors.Is/As against the underlying cause.
func (e *StageError) Unwrap() error {
	return e.Underlying
}

// ConfigurationError signals a fail-fast construction-time problem: bad
// weights, missing required sections, or an unknown language. Construction
// of the pipeline must abort when this is returned.
type ConfigurationError struct {
	Field      string
	Value      string
	Underlying error
}

func NewConfiguration(field, value string, err error) *ConfigurationError {
	return &ConfigurationError{Field: field, Value: value, Underlying: err}
}

func (e *ConfigurationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("configuration error for %s (%s): %v", e.Field, e.Value, e.Underlying)
	}
	return fmt.Sprintf("configuration error for %s: %v", e.Field, e.Underlying)
}

func (e *ConfigurationError) Unwrap() error { return e.Underlying }

// Bag accumulates non-fatal StageErrors for a PipelineResult.
type Bag struct {
	errs []*StageError
}

func (b *Bag) Add(errs ...*StageError) {
	for _, e := range errs {
		if e != nil {
			b.errs = append(b.errs, e)
		}
	}
}

func (b *Bag) Errors() []*StageError { return b.errs }

func (b *Bag) Strings() []string {
	out := make([]string, len(b.errs))
	for i, e := range b.errs {
		out[i] = e.Error()
	}
	return out
}

func (b *Bag) Len() int { return len(b.errs) }
