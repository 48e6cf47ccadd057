// Package web looks up unit pages on institution websites and slices the unit
// description, learning outcomes and topics out of them.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/cpl-matcher/internal/enrichment"
	"github.com/spigell/cpl-matcher/internal/logger"
	"github.com/spigell/cpl-matcher/internal/store"
	"github.com/spigell/cpl-matcher/internal/unit"
)

const (
	// Mode is recorded as the retrieval mode of units enriched from fetched pages.
	Mode = "static"

	defaultUserAgent = "Mozilla/5.0 (compatible; CPLBot/0.1)"
	defaultTimeout   = 12 * time.Second
	defaultMaxPages  = 6
)

// Config tunes page retrieval.
type Config struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxPages  int           `mapstructure:"max-pages"`
	UserAgent string        `mapstructure:"user-agent"`
}

// Institution is a registry entry for one source institution.
type Institution struct {
	BaseURL   string `mapstructure:"base-url"`
	CourseURL string `mapstructure:"course-url"`
}

// Registry maps institution names to their websites.
type Registry map[string]Institution

// Lookup finds an institution by case-insensitive name.
func (r Registry) Lookup(name string) (Institution, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Institution{}, false
	}
	if inst, ok := r[name]; ok {
		return inst, true
	}
	for k, inst := range r {
		if strings.EqualFold(strings.TrimSpace(k), name) {
			return inst, true
		}
	}
	return Institution{}, false
}

// URLCache remembers which URL a unit was last enriched from.
type URLCache interface {
	CachedUnitURL(ctx context.Context, institution, code string) (string, error)
	CacheUnitURL(ctx context.Context, c store.CachedURL) error
}

// Retriever is an enrichment.Oracle backed by institution websites.
type Retriever struct {
	cfg        Config
	registry   Registry
	cache      URLCache
	structurer enrichment.Structurer
	client     *http.Client
	logger     *zap.Logger
}

// Option customises a Retriever.
type Option func(*Retriever)

// WithCache enables the URL cache.
func WithCache(c URLCache) Option {
	return func(r *Retriever) { r.cache = c }
}

// WithStructurer lets a model fill in fields the section slicer missed.
func WithStructurer(s enrichment.Structurer) Option {
	return func(r *Retriever) { r.structurer = s }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Retriever) { r.client = c }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// New builds a Retriever.
func New(cfg Config, registry Registry, opts ...Option) *Retriever {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = defaultUserAgent
	}

	r := &Retriever{cfg: cfg, registry: registry}
	for _, opt := range opts {
		opt(r)
	}
	if r.client == nil {
		r.client = &http.Client{Timeout: cfg.Timeout}
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

type page struct {
	url      string
	sections Sections
	quality  float64
}

// Enrich fetches candidate pages for the unit and returns the best one found.
// Finding nothing is not an error; the returned Enrichment is then empty.
func (r *Retriever) Enrich(ctx context.Context, req enrichment.Request) (unit.Enrichment, error) {
	code := unit.NormalizeCode(req.Code)
	if code == "" {
		return unit.Enrichment{}, nil
	}
	log := logger.WithUnit(r.logger, code, req.Institution)

	candidates := r.Candidates(ctx, req)
	log.Debug("candidate urls", zap.Strings("urls", candidates))
	if len(candidates) == 0 {
		log.Info("no unit-level urls found")
		return unit.Enrichment{}, nil
	}

	var (
		best    *page
		errs    []error
		fetched int
	)
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return unit.Enrichment{}, err
		}

		p, err := r.retrieve(ctx, candidate, code, req.Title)
		if err != nil {
			log.Debug("page skipped", zap.String("url", candidate), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		fetched++
		if p == nil {
			continue
		}
		log.Debug("page scored", zap.String("url", p.url), zap.Float64("quality", p.quality))
		if best == nil || p.quality > best.quality {
			best = p
		}
		if best.quality >= 1 {
			break
		}
	}

	if best == nil {
		if fetched == 0 && len(errs) > 0 {
			return unit.Enrichment{}, fmt.Errorf("retrieve %s: %w", code, errors.Join(errs...))
		}
		log.Info("no page described the unit", zap.Int("candidates", len(candidates)))
		return unit.Enrichment{}, nil
	}

	if best.quality >= SuccessThreshold && r.cache != nil {
		if err := r.cache.CacheUnitURL(ctx, store.CachedURL{
			Institution: req.Institution,
			Code:        code,
			Title:       req.Title,
			URL:         best.url,
			Confidence:  best.quality,
			Mode:        Mode,
		}); err != nil {
			log.Warn("cache unit url", zap.Error(err))
		}
	}

	return toEnrichment(best), nil
}

// Candidates lists the URLs tried for a unit, most trusted first: the unit's own
// source hint, the cached URL, a link discovered on the course page, then the
// well-known unit paths under the institution website.
func (r *Retriever) Candidates(ctx context.Context, req enrichment.Request) []string {
	code := unit.NormalizeCode(req.Code)
	var urls []string

	if hint := strings.TrimSpace(req.SourceHint); hint != "" {
		urls = append(urls, hint)
	}

	if r.cache != nil {
		cached, err := r.cache.CachedUnitURL(ctx, req.Institution, code)
		if err != nil {
			r.logger.Warn("read cached unit url", zap.String("unit", code), zap.Error(err))
		}
		if cached != "" {
			urls = append(urls, cached)
		}
	}

	if inst, ok := r.registry.Lookup(req.Institution); ok {
		if inst.CourseURL != "" {
			if found := r.discover(ctx, inst.CourseURL, code); found != "" {
				urls = append(urls, found)
			}
		}
		root := inst.BaseURL
		if root == "" {
			root = inst.CourseURL
		}
		if root != "" {
			base := siteRoot(root)
			escaped := url.PathEscape(code)
			for _, p := range []string{"units", "unit", "subjects", "subject"} {
				urls = append(urls, base+"/"+p+"/"+escaped)
			}
		}
	}

	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if seen[u] || !IsUnitLikeURL(u) {
			continue
		}
		seen[u] = true
		out = append(out, u)
		if len(out) >= r.cfg.MaxPages {
			break
		}
	}
	return out
}

// discover scans a course page for a link to the unit.
func (r *Retriever) discover(ctx context.Context, courseURL, code string) string {
	doc, err := r.fetch(ctx, courseURL)
	if err != nil {
		r.logger.Debug("course page unavailable", zap.String("url", courseURL), zap.Error(err))
		return ""
	}
	for _, l := range pageLinks(courseURL, doc) {
		blob := strings.ToUpper(l.URL + " " + l.Label)
		if strings.Contains(blob, code) && IsUnitLikeURL(l.URL) {
			return l.URL
		}
	}
	return ""
}

// retrieve fetches one page. A nil page with a nil error means the page was
// reachable but did not describe the unit.
func (r *Retriever) retrieve(ctx context.Context, pageURL, code, title string) (*page, error) {
	doc, err := r.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	text := PageText(doc)
	if !LooksLikeUnitPage(text, code) {
		return nil, nil
	}

	sections := ExtractSections(text)
	if r.structurer != nil {
		structured, err := r.structurer.Structure(ctx, code, title, text)
		if err != nil {
			r.logger.Warn("structure page text failed; using sliced sections",
				zap.String("url", pageURL),
				zap.String("text", logger.TruncateForLog(text, 120)),
				zap.Error(err),
			)
		} else {
			sections = sections.overlay(fromEnrichment(structured))
		}
	}
	quality := sections.Quality()
	if !sections.HasText() || quality == 0 {
		return nil, nil
	}
	return &page{url: pageURL, sections: sections, quality: quality}, nil
}

func fromEnrichment(e unit.Enrichment) Sections {
	return Sections{
		Description:      e.Description.OrElse(""),
		LearningOutcomes: e.LearningOutcomes.OrElse(""),
		Topics:           e.Topics.OrElse(""),
		CreditPoints:     e.CreditPoints.OrElse(""),
		LevelCode:        e.LevelCode.OrElse(""),
	}
}

func toEnrichment(p *page) unit.Enrichment {
	opt := func(s string) unit.Optional[string] {
		if s == "" {
			return unit.None[string]()
		}
		return unit.Some(s)
	}
	return unit.Enrichment{
		Description:      opt(p.sections.Description),
		LearningOutcomes: opt(p.sections.LearningOutcomes),
		Topics:           opt(p.sections.Topics),
		CreditPoints:     opt(p.sections.CreditPoints),
		LevelCode:        opt(p.sections.LevelCode),
		SourceURL:        unit.Some(p.url),
		Mode:             unit.Some(Mode),
		Confidence:       unit.Some(p.quality),
	}
}
