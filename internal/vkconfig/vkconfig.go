// Package vkconfig loads and validates the pipeline's configuration
// document. Two equivalent formats are supported: YAML (the primary,
// spec-named format, github.com/go-yaml/yaml.v3) and KDL (the teacher's
// own alternate format, github.com/sblinch/kdl-go), auto-selected by file
// extension. Validation failures become vkerrors.ConfigurationError and
// must abort pipeline construction (spec.md §7).
package vkconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sblinch/kdl-go"
	"gopkg.in/yaml.v3"

	"github.com/valknut-dev/valknut/internal/vkerrors"
)

// Granularity is the ranking granularity knob.
type Granularity string

const (
	GranularityAuto     Granularity = "auto"
	GranularityFile     Granularity = "file"
	GranularityFunction Granularity = "function"
	GranularityClass    Granularity = "class"
)

// NormalizeScheme selects one of the six normalization schemes.
type NormalizeScheme string

const (
	SchemeRobust           NormalizeScheme = "robust"
	SchemeMinMax           NormalizeScheme = "minmax"
	SchemeZScore           NormalizeScheme = "zscore"
	SchemeRobustBayesian   NormalizeScheme = "robust_bayesian"
	SchemeMinMaxBayesian   NormalizeScheme = "minmax_bayesian"
	SchemeZScoreBayesian   NormalizeScheme = "zscore_bayesian"
)

// RootConfig describes one analysis root: its include/exclude globs.
type RootConfig struct {
	Path    string   `yaml:"path" kdl:"path"`
	Include []string `yaml:"include" kdl:"include"`
	Exclude []string `yaml:"exclude" kdl:"exclude"`
}

// RankingConfig controls result size and the unit of analysis.
type RankingConfig struct {
	TopK        int         `yaml:"top_k"`
	Granularity Granularity `yaml:"granularity"`
}

// WeightsConfig is the per-category scoring weight vector, each in [0,1].
type WeightsConfig struct {
	Complexity   float64 `yaml:"complexity"`
	CloneMass    float64 `yaml:"clone_mass"`
	Centrality   float64 `yaml:"centrality"`
	Cycles       float64 `yaml:"cycles"`
	TypeFriction float64 `yaml:"type_friction"`
	SmellPrior   float64 `yaml:"smell_prior"`
}

// EchoDetectorConfig controls the clone-mass detector integration.
type EchoDetectorConfig struct {
	Enabled       bool    `yaml:"enabled"`
	MinSimilarity float64 `yaml:"min_similarity"`
	MinTokens     int     `yaml:"min_tokens"`
}

// DetectorsConfig groups optional detector integrations.
type DetectorsConfig struct {
	Echo EchoDetectorConfig `yaml:"echo"`
}

// NormalizeConfig controls feature normalization.
type NormalizeConfig struct {
	Scheme               NormalizeScheme `yaml:"scheme"`
	ClipBounds           [2]float64      `yaml:"clip_bounds"`
	UseBayesianFallbacks bool            `yaml:"use_bayesian_fallbacks"`
	ConfidenceReporting  bool            `yaml:"confidence_reporting"`
	// Seed makes the Bayesian fallback's stochastic offset reproducible
	// (resolves spec.md §9's determinism open question).
	Seed int64 `yaml:"seed"`
}

// CloneConfig controls the clone-mass extractor's floor.
type CloneConfig struct {
	MinTotalLOC int `yaml:"min_total_loc"`
}

// CoverageConfig points the coverage extractor (spec.md §4.3.6) at an
// externally generated report. Left at its zero value, no coverage
// extractor runs and coverage features are absent from every vector.
type CoverageConfig struct {
	ReportPath string `yaml:"report_path"`
}

// ImpactPacksConfig controls the impact-pack synthesizer.
type ImpactPacksConfig struct {
	EnableCyclePacks     bool `yaml:"enable_cycle_packs"`
	EnableChokepointPacks bool `yaml:"enable_chokepoint_packs"`
	MaxPacks             int  `yaml:"max_packs"`
	CentralitySamples    int  `yaml:"centrality_samples"`
	NonOverlap           bool `yaml:"non_overlap"`
}

// BriefsConfig controls how result briefs are rendered for callers.
type BriefsConfig struct {
	CalleeDepth             int  `yaml:"callee_depth"`
	MaxTokensPerItem         int  `yaml:"max_tokens_per_item"`
	IncludeSignatures        bool `yaml:"include_signatures"`
	IncludeDetectedRefactors bool `yaml:"include_detected_refactors"`
}

// Config is the root configuration document (spec.md §6).
type Config struct {
	Version         int               `yaml:"version"`
	Languages       []string          `yaml:"languages"`
	CacheDir        string            `yaml:"cache_dir"`
	CacheTTLSeconds int               `yaml:"cache_ttl_seconds"`
	Roots           []RootConfig      `yaml:"roots"`
	Ranking         RankingConfig     `yaml:"ranking"`
	Weights         WeightsConfig     `yaml:"weights"`
	Detectors       DetectorsConfig   `yaml:"detectors"`
	Normalize       NormalizeConfig   `yaml:"normalize"`
	Clone           CloneConfig       `yaml:"clone"`
	Coverage        CoverageConfig    `yaml:"coverage"`
	ImpactPacks     ImpactPacksConfig `yaml:"impact_packs"`
	Briefs          BriefsConfig      `yaml:"briefs"`
}

// defaultExcludes mirrors the teacher's build-artifact/vendored-dir
// blacklist (build_artifact_detector.go), applied to every root whose
// Exclude list is empty.
var defaultExcludes = []string{
	".git", ".hg", ".svn",
	"node_modules", "vendor", "target", "dist", "build", "out",
	".venv", "venv", "__pycache__", ".tox",
	".cache", ".next", ".nuxt",
	"bin", "obj",
}

// Default returns a Config populated with the spec's documented defaults.
func Default() *Config {
	return &Config{
		Version:         1,
		Languages:       []string{"go", "python", "javascript", "typescript"},
		CacheDir:        ".valknut-cache",
		CacheTTLSeconds: 3600,
		Ranking:         RankingConfig{TopK: 100, Granularity: GranularityAuto},
		Weights: WeightsConfig{
			Complexity:   0.25,
			CloneMass:    0.2,
			Centrality:   0.15,
			Cycles:       0.15,
			TypeFriction: 0.15,
			SmellPrior:   0.1,
		},
		Detectors: DetectorsConfig{
			Echo: EchoDetectorConfig{Enabled: true, MinSimilarity: 0.7, MinTokens: 30},
		},
		Normalize: NormalizeConfig{
			Scheme:               SchemeRobustBayesian,
			ClipBounds:           [2]float64{0, 1},
			UseBayesianFallbacks: true,
			ConfidenceReporting:  true,
			Seed:                 0x76616c6b, // "valk" — fixed default seed
		},
		Clone:       CloneConfig{MinTotalLOC: 10},
		ImpactPacks: ImpactPacksConfig{EnableCyclePacks: true, EnableChokepointPacks: true, MaxPacks: 50, CentralitySamples: 64, NonOverlap: true},
		Briefs:      BriefsConfig{CalleeDepth: 1, MaxTokensPerItem: 800, IncludeSignatures: true, IncludeDetectedRefactors: true},
	}
}

// Load reads a config document from path, selecting YAML or KDL by
// extension (.yaml/.yml => YAML, .kdl => KDL), merges it over Default(),
// and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, vkerrors.NewConfiguration("path", path, err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".kdl":
		if err := loadKDL(data, cfg); err != nil {
			return nil, vkerrors.NewConfiguration("document", path, err)
		}
	case ".yaml", ".yml", "":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, vkerrors.NewConfiguration("document", path, err)
		}
	default:
		return nil, vkerrors.NewConfiguration("format", ext, fmt.Errorf("unrecognized config extension %q", ext))
	}

	ApplyRootDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadKDL decodes a KDL document into cfg. kdl-go's Unmarshal mirrors
// encoding/json's shape, so the yaml struct tags double as field hints
// via the `kdl` tag on RootConfig; other sections fall back to KDL's
// default name-matching.
func loadKDL(data []byte, cfg *Config) error {
	return kdl.Unmarshal(data, cfg)
}

// ApplyRootDefaults fills in the build-artifact exclude list for any root
// that didn't specify its own, so ad hoc Config values (e.g. analyze_repo's
// path-list construction) get the same blacklist as a loaded document.
func ApplyRootDefaults(cfg *Config) {
	for i := range cfg.Roots {
		if len(cfg.Roots[i].Exclude) == 0 {
			cfg.Roots[i].Exclude = append([]string(nil), defaultExcludes...)
		}
	}
}

// Validate checks the structural and range invariants from spec.md §6.
// Any failure is a vkerrors.ConfigurationError, fatal to pipeline
// construction per §7.
func Validate(cfg *Config) error {
	if cfg.Version < 1 {
		return vkerrors.NewConfiguration("version", fmt.Sprint(cfg.Version), fmt.Errorf("version must be >= 1"))
	}
	if len(cfg.Roots) == 0 {
		return vkerrors.NewConfiguration("roots", "", fmt.Errorf("at least one root is required"))
	}
	if cfg.Ranking.TopK < 1 {
		return vkerrors.NewConfiguration("ranking.top_k", fmt.Sprint(cfg.Ranking.TopK), fmt.Errorf("top_k must be >= 1"))
	}
	switch cfg.Ranking.Granularity {
	case GranularityAuto, GranularityFile, GranularityFunction, GranularityClass:
	default:
		return vkerrors.NewConfiguration("ranking.granularity", string(cfg.Ranking.Granularity), fmt.Errorf("unrecognized granularity"))
	}

	for name, w := range map[string]float64{
		"complexity":    cfg.Weights.Complexity,
		"clone_mass":    cfg.Weights.CloneMass,
		"centrality":    cfg.Weights.Centrality,
		"cycles":        cfg.Weights.Cycles,
		"type_friction": cfg.Weights.TypeFriction,
		"smell_prior":   cfg.Weights.SmellPrior,
	} {
		if w < 0 || w > 1 {
			return vkerrors.NewConfiguration("weights."+name, fmt.Sprint(w), fmt.Errorf("weight must be in [0,1]"))
		}
	}

	if cfg.Detectors.Echo.Enabled {
		if cfg.Detectors.Echo.MinSimilarity < 0 || cfg.Detectors.Echo.MinSimilarity > 1 {
			return vkerrors.NewConfiguration("detectors.echo.min_similarity", fmt.Sprint(cfg.Detectors.Echo.MinSimilarity), fmt.Errorf("must be in [0,1]"))
		}
		if cfg.Detectors.Echo.MinTokens < 1 {
			return vkerrors.NewConfiguration("detectors.echo.min_tokens", fmt.Sprint(cfg.Detectors.Echo.MinTokens), fmt.Errorf("must be >= 1"))
		}
	}

	switch cfg.Normalize.Scheme {
	case SchemeRobust, SchemeMinMax, SchemeZScore, SchemeRobustBayesian, SchemeMinMaxBayesian, SchemeZScoreBayesian:
	default:
		return vkerrors.NewConfiguration("normalize.scheme", string(cfg.Normalize.Scheme), fmt.Errorf("unrecognized scheme"))
	}
	if cfg.Normalize.ClipBounds[0] >= cfg.Normalize.ClipBounds[1] {
		return vkerrors.NewConfiguration("normalize.clip_bounds", fmt.Sprint(cfg.Normalize.ClipBounds), fmt.Errorf("lower bound must be < upper bound"))
	}

	if cfg.Clone.MinTotalLOC < 10 {
		return vkerrors.NewConfiguration("clone.min_total_loc", fmt.Sprint(cfg.Clone.MinTotalLOC), fmt.Errorf("must be >= 10"))
	}

	if cfg.ImpactPacks.MaxPacks < 0 {
		return vkerrors.NewConfiguration("impact_packs.max_packs", fmt.Sprint(cfg.ImpactPacks.MaxPacks), fmt.Errorf("must be >= 0"))
	}
	if cfg.ImpactPacks.CentralitySamples < 1 {
		return vkerrors.NewConfiguration("impact_packs.centrality_samples", fmt.Sprint(cfg.ImpactPacks.CentralitySamples), fmt.Errorf("must be >= 1"))
	}

	for _, lang := range cfg.Languages {
		if !knownLanguages[lang] {
			return vkerrors.NewConfiguration("languages", lang, fmt.Errorf("unknown language %q", lang))
		}
	}

	return nil
}

var knownLanguages = map[string]bool{
	"go": true, "python": true, "java": true, "rust": true,
	"cpp": true, "c#": true, "csharp": true, "php": true,
	"zig": true, "javascript": true, "typescript": true,
}

// SetWeights validates and replaces the weight vector in place, used by
// the set_weights RPC method (spec.md §6).
func SetWeights(cfg *Config, w WeightsConfig) error {
	next := *cfg
	next.Weights = w
	if err := Validate(&next); err != nil {
		return err
	}
	cfg.Weights = w
	return nil
}
