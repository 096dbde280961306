package service_test

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/mailinglist/internal/campaign"
	appErrors "github.com/unclebandit/mailinglist/internal/errors"
	"github.com/unclebandit/mailinglist/internal/list"
	"github.com/unclebandit/mailinglist/internal/logger"
	"github.com/unclebandit/mailinglist/internal/service"
)

func newCampaignService(t *testing.T) (*service.CampaignService, *list.MemoryProvider) {
	t.Helper()
	fsys := fstest.MapFS{
		"spring/template-html.tmpl": &fstest.MapFile{Data: []byte(`<html><body><p><!-- [greeting] --></p><a href="/shop">Shop</a></body></html>`)},
		"spring/template-text.tmpl": &fstest.MapFile{Data: []byte("<!-- [greeting] -->\nVisit :uri:/shop now")},
	}
	renderer := campaign.NewRenderer(fsys, campaign.Config{BaseHref: "https://example.com"}, logger.NewNope())
	provider := list.NewMemoryProvider()
	gw := list.NewFallbackGateway(provider, nil, list.Config{Shortname: "news", TenantID: 1}, list.WithLogger(logger.NewNope()))
	hooks := campaign.StaticHooks{
		Markers:   map[string]string{"greeting": "Hello &amp; welcome"},
		Analytics: map[string]string{"src": "mail"},
	}
	return service.NewCampaignService(renderer, gw, hooks, logger.NewNope()), provider
}

func TestCampaignContent(t *testing.T) {
	s, _ := newCampaignService(t)

	out, err := s.Content(context.Background(), "spring", campaign.FormatText)
	require.NoError(t, err)
	assert.Equal(t, "Hello & welcome\nVisit https://example.com/shop now", out)

	out, err = s.Content(context.Background(), "spring", campaign.FormatXHTML)
	require.NoError(t, err)
	assert.Contains(t, out, `<a href="/shop?src=mail">Shop</a>`)
}

func TestCampaignSaveHandsContentToProvider(t *testing.T) {
	s, provider := newCampaignService(t)

	content, err := s.Save(context.Background(), "spring")
	require.NoError(t, err)

	stored, ok := provider.Campaign("spring")
	require.True(t, ok)
	assert.Equal(t, content, stored)
	assert.Equal(t, "spring", stored.Title)
	assert.Contains(t, stored.XHTML, "Hello &amp; welcome")

	require.NoError(t, s.Delete(context.Background(), "spring"))
	_, ok = provider.Campaign("spring")
	assert.False(t, ok)
}

func TestCampaignSaveNeedsProvider(t *testing.T) {
	s, provider := newCampaignService(t)
	provider.SetAvailable(false)

	_, err := s.Save(context.Background(), "spring")
	assert.ErrorIs(t, err, list.ErrProviderUnavailable)
	assert.ErrorIs(t, s.Delete(context.Background(), "spring"), list.ErrProviderUnavailable)
}

func TestCampaignRejectsUnknownShortnames(t *testing.T) {
	s, _ := newCampaignService(t)

	for _, name := range []string{"autumn", "../spring", "", "spring/.."} {
		_, err := s.Preview(context.Background(), name)
		assert.True(t, appErrors.IsNotFound(err), name)
	}
	assert.True(t, appErrors.IsNotFound(s.Delete(context.Background(), "../x")))
}
