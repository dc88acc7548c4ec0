// Package extract implements the feature extractor stage (spec.md §4.3):
// complexity, graph features, clone mass, language-specific features, the
// refactoring-pattern detector, coverage, and structure. Every extractor
// is registered explicitly and run through a single safeExtract call site
// so a panicking or erroring extractor degrades one feature instead of
// aborting the stage (spec.md §7's "extractor errors" case).
package extract

import (
	"fmt"

	"github.com/valknut-dev/valknut/internal/entity"
	"github.com/valknut-dev/valknut/internal/vkerrors"
)

// Extractor computes a set of named features for one entity, given the
// ParseIndex it belongs to (for graph/cross-entity lookups).
type Extractor interface {
	Name() string
	Definitions() []entity.FeatureDefinition
	Extract(e *entity.Entity, idx *entity.ParseIndex) (map[string]float64, []string, error)
}

// Registry holds every enabled extractor in run order.
type Registry struct {
	extractors []Extractor
}

// NewRegistry builds a registry from the given extractors, in the order
// they should run (graph/clone-mass extractors that need whole-index
// precomputation are expected to do so lazily and cache per ParseIndex).
func NewRegistry(extractors ...Extractor) *Registry {
	return &Registry{extractors: extractors}
}

// Definitions returns every registered extractor's feature definitions,
// used by the normalizer to look up polarity/bounds.
func (r *Registry) Definitions() []entity.FeatureDefinition {
	var out []entity.FeatureDefinition
	for _, ex := range r.extractors {
		out = append(out, ex.Definitions()...)
	}
	return out
}

// Run executes every extractor against one entity, producing its
// FeatureVector. Each extractor call goes through safeExtract so a single
// failing extractor only defaults its own features.
func (r *Registry) Run(e *entity.Entity, idx *entity.ParseIndex) (*entity.FeatureVector, []*vkerrors.StageError) {
	fv := entity.NewFeatureVector(e.ID)
	var warnings []*vkerrors.StageError

	for _, ex := range r.extractors {
		features, suggestions, err := safeExtract(ex, e, idx)
		if err != nil {
			warnings = append(warnings, vkerrors.New(vkerrors.StageExtractor, ex.Name(), err).WithEntity(string(e.ID)))
			fv.Metadata[ex.Name()+"_error"] = err.Error()
			for _, def := range ex.Definitions() {
				fv.Raw[def.Name] = def.Default
			}
			continue
		}
		for k, v := range features {
			fv.Raw[k] = v
		}
		fv.Suggestions = append(fv.Suggestions, suggestions...)
	}

	return fv, warnings
}

// safeExtract is the single call site that recovers from an extractor
// panic and converts it to an error, so one misbehaving extractor can
// never take down the pipeline (spec.md §7).
func safeExtract(ex Extractor, e *entity.Entity, idx *entity.ParseIndex) (features map[string]float64, suggestions []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extractor panic: %v", r)
		}
	}()
	return ex.Extract(e, idx)
}
