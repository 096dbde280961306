// Package campaign renders campaign templates into deliverable XHTML and
// plain-text content.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path"
	"strings"

	"github.com/unclebandit/mailinglist/internal/model"
)

var (
	ErrUnknownFormat      = errors.New("campaign: unknown format")
	ErrInvalidUTF8        = errors.New("campaign: text output is not valid UTF-8")
	ErrInvalidFrontMatter = errors.New("campaign: invalid front matter")
	ErrRenderFailed       = errors.New("campaign: render failed")
)

type Format int

const (
	FormatXHTML Format = 1
	FormatText  Format = 2
)

func (f Format) String() string {
	switch f {
	case FormatXHTML:
		return "xhtml"
	case FormatText:
		return "text"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat accepts the names used on the HTTP surface.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "xhtml", "html":
		return FormatXHTML, nil
	case "text", "txt", "plain":
		return FormatText, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// templateFile locates the template for a format inside a campaign directory.
func (f Format) templateFile() (string, error) {
	switch f {
	case FormatXHTML:
		return "template-html.tmpl", nil
	case FormatText:
		return "template-text.tmpl", nil
	}
	return "", fmt.Errorf("%w: %d", ErrUnknownFormat, int(f))
}

// Campaign is one mailing. It is built per render request and never persisted.
type Campaign struct {
	Shortname string
	// Directory holds the campaign templates; defaults to Shortname.
	Directory string
	// Data is the layout data handed to templates, filled by Hooks.Build.
	Data     map[string]any
	Metadata model.CampaignMetadata
	Hooks    Hooks
}

func New(shortname string, hooks Hooks) *Campaign {
	return &Campaign{
		Shortname: shortname,
		Data:      map[string]any{},
		Hooks:     hooks,
	}
}

func (c *Campaign) AnalyticsKey() string { return c.Shortname }

func (c *Campaign) Title() string {
	if c.Metadata.Title != "" {
		return c.Metadata.Title
	}
	return c.Shortname
}

func (c *Campaign) templatePath(f Format) (string, error) {
	name, err := f.templateFile()
	if err != nil {
		return "", err
	}
	dir := c.Directory
	if dir == "" {
		dir = c.Shortname
	}
	return path.Join(dir, name), nil
}

func (c *Campaign) hooks() Hooks {
	if c.Hooks == nil {
		return DefaultHooks{}
	}
	return c.Hooks
}

// Hooks customise one campaign type.
type Hooks interface {
	// Build fills c.Data before the template is evaluated.
	Build(ctx context.Context, c *Campaign, format Format)
	// ReplacementMarkerText resolves a <!-- [id] --> marker.
	ReplacementMarkerText(c *Campaign, id string, format Format) string
	// CustomAnalyticsURIVars returns query parameters appended to XHTML links.
	CustomAnalyticsURIVars(c *Campaign) map[string]string
}

// DefaultHooks builds nothing, resolves every marker to "" and adds no
// analytics parameters.
type DefaultHooks struct{}

func (DefaultHooks) Build(context.Context, *Campaign, Format) {}

func (DefaultHooks) ReplacementMarkerText(*Campaign, string, Format) string { return "" }

func (DefaultHooks) CustomAnalyticsURIVars(*Campaign) map[string]string { return nil }

// StaticHooks resolves markers and analytics parameters from fixed tables.
type StaticHooks struct {
	DefaultHooks

	// Markers apply to both formats; TextMarkers override them for text.
	Markers     map[string]string
	TextMarkers map[string]string
	Analytics   map[string]string
	// UTMSource, when set, adds utm_source, utm_medium and utm_campaign.
	UTMSource string
}

func (h StaticHooks) ReplacementMarkerText(_ *Campaign, id string, format Format) string {
	if format == FormatText {
		if v, ok := h.TextMarkers[id]; ok {
			return v
		}
	}
	return h.Markers[id]
}

func (h StaticHooks) CustomAnalyticsURIVars(c *Campaign) map[string]string {
	vars := maps.Clone(h.Analytics)
	if h.UTMSource == "" {
		return vars
	}
	if vars == nil {
		vars = map[string]string{}
	}
	vars["utm_source"] = h.UTMSource
	vars["utm_medium"] = "email"
	vars["utm_campaign"] = c.AnalyticsKey()
	return vars
}

var (
	_ Hooks = DefaultHooks{}
	_ Hooks = StaticHooks{}
)
