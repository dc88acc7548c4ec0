package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/valknut-dev/valknut/internal/clonebridge"
	"github.com/valknut-dev/valknut/internal/discover"
	"github.com/valknut-dev/valknut/internal/entity"
	"github.com/valknut-dev/valknut/internal/extract"
	"github.com/valknut-dev/valknut/internal/graph"
	"github.com/valknut-dev/valknut/internal/impact"
	"github.com/valknut-dev/valknut/internal/langadapter"
	"github.com/valknut-dev/valknut/internal/normalize"
	"github.com/valknut-dev/valknut/internal/score"
	"github.com/valknut-dev/valknut/internal/vkconfig"
	"github.com/valknut-dev/valknut/internal/vkerrors"
	"github.com/valknut-dev/valknut/internal/vklog"
)

// Result is the pipeline's final output (spec.md §4.7): the ranked entity
// list, the impact packs, and every non-fatal diagnostic collected along
// the way.
type Result struct {
	Ranked        []score.RankedEntry
	Packs         []*impact.Pack
	Warnings      []*vkerrors.StageError
	Indexes       map[string]*entity.ParseIndex
	TotalFiles    int
	TotalEntities int
}

// Pipeline owns one configuration and runs repeated analyses against it.
type Pipeline struct {
	cfg        *vkconfig.Config
	registry   *langadapter.Registry
	extractors *extract.Registry
	coverage   extract.CoverageReport
}

// New constructs a Pipeline, failing fast (spec.md §7) if the configured
// language list references an adapter that doesn't exist or a configured
// coverage report can't be read.
func New(cfg *vkconfig.Config) (*Pipeline, error) {
	registry, err := langadapter.NewRegistry(cfg.Languages)
	if err != nil {
		return nil, err
	}

	var coverage extract.CoverageReport
	if cfg.Coverage.ReportPath != "" {
		coverage, err = extract.LoadCoverageReport(cfg.Coverage.ReportPath)
		if err != nil {
			return nil, vkerrors.NewConfiguration("coverage.report_path", cfg.Coverage.ReportPath, err)
		}
	}

	p := &Pipeline{cfg: cfg, registry: registry, coverage: coverage}
	p.extractors = extract.NewRegistry(p.extractorList()...)
	return p, nil
}

// Run executes every stage of spec.md §2's table against the configured
// roots: discovery, parsing, feature extraction, normalization, scoring,
// and impact-pack synthesis. Stage-level failures degrade (StageError
// accumulated in Result.Warnings); only configuration problems caught at
// New() are fatal.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	bag := &vkerrors.Bag{}
	progress := NewProgress()

	progress.SetStage("discover")
	roots := make([]discover.Root, len(p.cfg.Roots))
	for i, r := range p.cfg.Roots {
		roots[i] = discover.Root{Path: r.Path, Include: r.Include, Exclude: r.Exclude}
	}
	paths, discoverWarnings := discover.Discover(roots, p.registry.Extensions())
	bag.Add(discoverWarnings...)
	progress.SetTotal(len(paths))
	vklog.Stage("discover", "found %d files", len(paths))

	progress.SetStage("parse")
	byLanguage, fileInfos, sources, indexWarnings := p.parseAll(ctx, paths, progress)
	bag.Add(indexWarnings...)

	progress.SetStage("extract")
	vectors, entities, cloneGroups, extractWarnings := p.extractAll(ctx, byLanguage, sources, progress)
	bag.Add(extractWarnings...)

	progress.SetStage("normalize")
	normalizer := normalize.New(mapScheme(p.cfg.Normalize.Scheme), p.cfg.Normalize.ClipBounds[0], p.cfg.Normalize.ClipBounds[1], p.cfg.Normalize.Seed)
	normalizer.Fit(vectors, p.extractors.Definitions())

	progress.SetStage("score")
	weights := score.Weights{
		Complexity:   p.cfg.Weights.Complexity,
		CloneMass:    p.cfg.Weights.CloneMass,
		Centrality:   p.cfg.Weights.Centrality,
		Cycles:       p.cfg.Weights.Cycles,
		TypeFriction: p.cfg.Weights.TypeFriction,
		SmellPrior:   p.cfg.Weights.SmellPrior,
	}
	ranking := score.NewRankingSystem(score.NewWeightedScorer(weights))
	ranked := ranking.Rank(vectors, entities)
	if p.cfg.Ranking.TopK > 0 && len(ranked) > p.cfg.Ranking.TopK {
		ranked = ranked[:p.cfg.Ranking.TopK]
	}

	progress.SetStage("impact")
	packs := p.buildPacks(byLanguage, cloneGroups, fileInfos)

	totalEntities := 0
	for _, idx := range byLanguage {
		totalEntities += idx.Len()
	}

	vklog.Stage("assemble", "ranked %d entities, %d impact packs", len(ranked), len(packs))
	return &Result{
		Ranked:        ranked,
		Packs:         packs,
		Warnings:      bag.Errors(),
		Indexes:       byLanguage,
		TotalFiles:    len(paths),
		TotalEntities: totalEntities,
	}, nil
}

// parseAll parses every discovered file through its language's adapter,
// bounded by a semaphore sized to GOMAXPROCS so a very large repository
// doesn't spawn one goroutine per file at once (spec.md §5's concurrency
// guidance).
func (p *Pipeline) parseAll(ctx context.Context, paths []string, progress *Progress) (map[string]*entity.ParseIndex, []extract.FileInfo, map[string][]byte, []*vkerrors.StageError) {
	type parsed struct {
		lang     string
		path     string
		entities []*entity.Entity
		imports  []langadapter.ParsedImport
		fileID   entity.ID
		info     extract.FileInfo
		source   []byte
		err      *vkerrors.StageError
	}

	sem := semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0)))
	g, gctx := errgroup.WithContext(ctx)
	results := make([]parsed, len(paths))

	for i, path := range paths {
		i, path := i, path
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			progress.Increment(path)

			ext := strings.ToLower(filepath.Ext(path))
			adapter, ok := p.registry.ForExtension(ext)
			if !ok {
				return nil
			}
			source, err := os.ReadFile(path)
			if err != nil {
				results[i] = parsed{err: vkerrors.New(vkerrors.StageParse, "read_file", err).WithFile(path)}
				return nil
			}
			ents, imports, err := adapter.ParseFile(path, source)
			if err != nil {
				results[i] = parsed{err: vkerrors.New(vkerrors.StageParse, "parse_file", err).WithFile(path)}
				return nil
			}
			lines := strings.Count(string(source), "\n") + 1
			var fileID entity.ID
			var entityIDs []string
			for _, e := range ents {
				if e.Kind == entity.KindFile {
					fileID = e.ID
				} else {
					entityIDs = append(entityIDs, string(e.ID))
				}
			}
			results[i] = parsed{
				lang:     adapter.Name(),
				path:     path,
				entities: ents,
				imports:  imports,
				fileID:   fileID,
				source:   source,
				info: extract.FileInfo{
					Path:      path,
					LOC:       lines,
					Bytes:     int64(len(source)),
					Language:  adapter.Name(),
					EntityIDs: entityIDs,
				},
			}
			return nil
		})
	}
	_ = g.Wait()

	indexes := make(map[string]*entity.ParseIndex)
	importsByLang := make(map[string]map[string][]langadapter.ParsedImport)
	fileIDsByLang := make(map[string]map[string]entity.ID)
	var fileInfos []extract.FileInfo
	sources := make(map[string][]byte)
	var warnings []*vkerrors.StageError

	for _, r := range results {
		if r.err != nil {
			warnings = append(warnings, r.err)
			continue
		}
		if r.lang == "" {
			continue
		}
		idx, ok := indexes[r.lang]
		if !ok {
			idx = entity.NewParseIndex(r.lang)
			indexes[r.lang] = idx
			importsByLang[r.lang] = make(map[string][]langadapter.ParsedImport)
			fileIDsByLang[r.lang] = make(map[string]entity.ID)
		}
		for _, e := range r.entities {
			if err := idx.Add(e); err != nil {
				warnings = append(warnings, vkerrors.New(vkerrors.StageParse, "add_entity", err).WithFile(r.path))
			}
		}
		importsByLang[r.lang][r.path] = r.imports
		fileIDsByLang[r.lang][r.path] = r.fileID
		fileInfos = append(fileInfos, r.info)
		sources[r.path] = r.source
	}

	for lang, idx := range indexes {
		spec := langSpec(lang)
		if spec == nil {
			continue
		}
		idx.ImportGraph = langadapter.BuildImportGraph(importsByLang[lang], fileIDsByLang[lang], spec)
		if err := idx.Validate(); err != nil {
			warnings = append(warnings, vkerrors.New(vkerrors.StageParse, "validate_index", err))
		}
	}

	sort.Slice(fileInfos, func(i, j int) bool { return fileInfos[i].Path < fileInfos[j].Path })
	return indexes, fileInfos, sources, warnings
}

// extractAll runs the feature-extractor registry over every entity in
// every parsed language index, folding in the clone-mass extractor once
// clone groups are known. The clone detector proper is external (spec.md's
// Non-goals), but rather than leave clone_mass permanently dark this stage
// runs clonebridge's in-process grouper directly over the parsed sources
// when the echo detector is enabled, since that grouper doesn't depend on
// any external process being present (spec.md §9's Open Question on
// unreliable echo-subsystem line ranges — this path trusts nothing but the
// source text itself).
func (p *Pipeline) extractAll(ctx context.Context, indexes map[string]*entity.ParseIndex, sources map[string][]byte, progress *Progress) ([]*entity.FeatureVector, map[entity.ID]*entity.Entity, []extract.CloneGroup, []*vkerrors.StageError) {
	var cloneGroups []extract.CloneGroup
	if p.cfg.Detectors.Echo.Enabled {
		cloneGroups = clonebridge.GroupInProcess(sourceFilesFrom(sources), clonebridge.FallbackConfig{
			MinSimilarity: p.cfg.Detectors.Echo.MinSimilarity,
		})
	}

	cloneExtractor := extract.NewCloneMassExtractor(cloneGroups)
	registryWithClones := extract.NewRegistry(append(p.extractorList(), cloneExtractor)...)

	var vectors []*entity.FeatureVector
	entities := make(map[entity.ID]*entity.Entity)
	var warnings []*vkerrors.StageError

	total := 0
	for _, idx := range indexes {
		total += idx.Len()
	}
	progress.SetTotal(total)

	for _, idx := range indexes {
		for _, e := range idx.Entities() {
			if e.Kind == entity.KindFile {
				continue
			}
			fv, w := registryWithClones.Run(e, idx)
			vectors = append(vectors, fv)
			entities[e.ID] = e
			warnings = append(warnings, w...)
			progress.Increment(string(e.ID))
		}
	}
	return vectors, entities, cloneGroups, warnings
}

// sourceFilesFrom adapts parseAll's raw byte contents into clonebridge's
// line-oriented input.
func sourceFilesFrom(sources map[string][]byte) []clonebridge.SourceFile {
	files := make([]clonebridge.SourceFile, 0, len(sources))
	for path, src := range sources {
		files = append(files, clonebridge.SourceFile{Path: path, Lines: strings.Split(string(src), "\n")})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files
}

func (p *Pipeline) extractorList() []extract.Extractor {
	extractors := []extract.Extractor{
		extract.NewComplexityExtractor(),
		extract.NewGraphExtractor(p.cfg.Normalize.Seed),
		extract.NewLanguageFeatureExtractor(),
		extract.NewRefactorExtractor(),
	}
	if p.coverage != nil {
		extractors = append(extractors, extract.NewCoverageExtractor(p.coverage))
	}
	return extractors
}

// buildPacks synthesizes every configured impact-pack family and runs the
// final value/effort ranker over the combined set (spec.md §4.6).
func (p *Pipeline) buildPacks(indexes map[string]*entity.ParseIndex, cloneGroups []extract.CloneGroup, fileInfos []extract.FileInfo) []*impact.Pack {
	var packs []*impact.Pack

	packs = append(packs, impact.BuildClonePacks(cloneGroups, impact.CloneConsolidatorConfig{
		MinTotalLOC: p.cfg.Clone.MinTotalLOC,
	})...)

	for _, idx := range indexes {
		g, ok := idx.ImportGraph.(*graph.Graph)
		if !ok || g == nil {
			continue
		}
		if p.cfg.ImpactPacks.EnableCyclePacks {
			scc := g.Tarjan()
			packs = append(packs, impact.BuildCyclePacks(g, scc, impact.CycleCutterConfig{})...)
		}
		if p.cfg.ImpactPacks.EnableChokepointPacks {
			packs = append(packs, impact.BuildChokepointPacks(g, impact.ChokepointConfig{})...)
		}
	}

	tree := extract.BuildTree(fileInfos)
	packs = append(packs, impact.BuildStructurePacks(tree, impact.StructurePackConfig{})...)

	return impact.Rank(packs, impact.RankConfig{
		MaxPacks:   p.cfg.ImpactPacks.MaxPacks,
		NonOverlap: p.cfg.ImpactPacks.NonOverlap,
	})
}

func mapScheme(s vkconfig.NormalizeScheme) normalize.Scheme {
	switch s {
	case vkconfig.SchemeMinMax:
		return normalize.SchemeMinMax
	case vkconfig.SchemeZScore:
		return normalize.SchemeZScore
	case vkconfig.SchemeRobustBayesian:
		return normalize.SchemeRobustBayesian
	case vkconfig.SchemeMinMaxBayesian:
		return normalize.SchemeMinMaxBayesian
	case vkconfig.SchemeZScoreBayesian:
		return normalize.SchemeZScoreBayesian
	default:
		return normalize.SchemeRobust
	}
}

// langSpec resolves a language name to its LanguageSpec for import-graph
// resolution; returns nil for unknown languages (should not happen, since
// indexes are only created for names the registry already validated).
func langSpec(lang string) *langadapter.LanguageSpec {
	return langadapter.SpecFor(lang)
}
