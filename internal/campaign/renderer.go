package campaign

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"text/template"

	appErrors "github.com/unclebandit/mailinglist/internal/errors"
	"github.com/unclebandit/mailinglist/internal/model"
)

// Config carries the site addresses used while rendering.
type Config struct {
	// BaseHref is the absolute site URI used for <base> and :uri: markers.
	BaseHref string
	// ResourceBaseHref locates images and stylesheets. Defaults to BaseHref.
	ResourceBaseHref string
}

func (c Config) resourceBaseHref() string {
	if c.ResourceBaseHref != "" {
		return c.ResourceBaseHref
	}
	return c.BaseHref
}

// Renderer evaluates campaign templates read from an fs.FS.
// Parsed templates are cached; rendered output never is.
type Renderer struct {
	fs  fs.FS
	cfg Config
	log *slog.Logger

	mu    sync.RWMutex
	cache map[string]*cachedTemplate
}

type cachedTemplate struct {
	metadata model.CampaignMetadata
	tmpl     *template.Template
}

// layout is the value templates are executed against.
type layout struct {
	Data             map[string]any
	Campaign         *Campaign
	BaseHref         string
	ResourceBaseHref string
}

func NewRenderer(filesystem fs.FS, cfg Config, log *slog.Logger) *Renderer {
	if log == nil {
		log = slog.Default()
	}
	return &Renderer{
		fs:    filesystem,
		cfg:   cfg,
		log:   log,
		cache: make(map[string]*cachedTemplate),
	}
}

// Content runs Build, Evaluate, Substitute Markers and Transform, in that
// order, and returns the finished document for format.
func (r *Renderer) Content(ctx context.Context, c *Campaign, format Format) (string, error) {
	if _, err := format.templateFile(); err != nil {
		return "", err
	}
	hooks := c.hooks()

	hooks.Build(ctx, c, format)

	raw, err := r.evaluate(c, format)
	if err != nil {
		return "", err
	}

	var out string
	switch format {
	case FormatXHTML:
		substituted := SubstituteMarkers(raw, func(id string) string {
			return hooks.ReplacementMarkerText(c, id, FormatXHTML)
		})
		out, err = r.transformXHTML(substituted, hooks.CustomAnalyticsURIVars(c))
	case FormatText:
		substituted := SubstituteMarkers(raw, func(id string) string {
			return hooks.ReplacementMarkerText(c, id, FormatText)
		})
		out, err = r.transformText(substituted)
	}
	if err != nil {
		r.log.ErrorContext(ctx, "campaign content rejected",
			slog.String("campaign", c.Shortname),
			slog.String("format", format.String()),
			slog.String("error", err.Error()),
		)
		return "", err
	}
	return out, nil
}

// Render produces both formats plus metadata for handing to a provider.
func (r *Renderer) Render(ctx context.Context, c *Campaign) (*model.CampaignContent, error) {
	xhtml, err := r.Content(ctx, c, FormatXHTML)
	if err != nil {
		return nil, err
	}
	text, err := r.Content(ctx, c, FormatText)
	if err != nil {
		return nil, err
	}
	return &model.CampaignContent{
		Shortname:    c.Shortname,
		AnalyticsKey: c.AnalyticsKey(),
		Title:        c.Title(),
		Metadata:     c.Metadata,
		XHTML:        xhtml,
		Text:         text,
	}, nil
}

func (r *Renderer) evaluate(c *Campaign, format Format) (string, error) {
	name, err := c.templatePath(format)
	if err != nil {
		return "", err
	}

	cached, err := r.template(c.Shortname, name)
	if err != nil {
		return "", err
	}
	mergeMetadata(&c.Metadata, cached.metadata)

	var buf bytes.Buffer
	err = cached.tmpl.Execute(&buf, layout{
		Data:             c.Data,
		Campaign:         c,
		BaseHref:         r.cfg.BaseHref,
		ResourceBaseHref: r.cfg.resourceBaseHref(),
	})
	if err != nil {
		return "", fmt.Errorf("%w: execute %s: %v", ErrRenderFailed, name, err)
	}
	return buf.String(), nil
}

func (r *Renderer) template(shortname, name string) (*cachedTemplate, error) {
	r.mu.RLock()
	cached, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.cache[name]; ok {
		return cached, nil
	}

	content, err := fs.ReadFile(r.fs, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, appErrors.NewCampaignNotFound(shortname)
		}
		return nil, fmt.Errorf("%w: read %s: %v", ErrRenderFailed, name, err)
	}

	meta, body, err := splitFrontMatter(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	tmpl, err := template.New(name).Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrRenderFailed, name, err)
	}

	cached = &cachedTemplate{metadata: meta, tmpl: tmpl}
	r.cache[name] = cached
	return cached, nil
}
