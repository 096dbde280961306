package service

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/unclebandit/mailinglist/internal/campaign"
	appErrors "github.com/unclebandit/mailinglist/internal/errors"
	"github.com/unclebandit/mailinglist/internal/list"
	"github.com/unclebandit/mailinglist/internal/model"
)

var shortnamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// CampaignService renders campaigns from the template tree and hands them to
// the list provider.
type CampaignService struct {
	Renderer *campaign.Renderer
	Gateway  list.Gateway
	Hooks    campaign.Hooks
	Log      *slog.Logger
}

func NewCampaignService(renderer *campaign.Renderer, gateway list.Gateway, hooks campaign.Hooks, log *slog.Logger) *CampaignService {
	return &CampaignService{
		Renderer: renderer,
		Gateway:  gateway,
		Hooks:    hooks,
		Log:      log,
	}
}

func (s *CampaignService) newCampaign(shortname string) (*campaign.Campaign, error) {
	if !shortnamePattern.MatchString(shortname) {
		return nil, appErrors.NewCampaignNotFound(shortname)
	}
	return campaign.New(shortname, s.Hooks), nil
}

// Content renders one format of a campaign.
func (s *CampaignService) Content(ctx context.Context, shortname string, format campaign.Format) (string, error) {
	c, err := s.newCampaign(shortname)
	if err != nil {
		return "", err
	}
	return s.Renderer.Content(ctx, c, format)
}

// Preview renders both formats without touching the provider.
func (s *CampaignService) Preview(ctx context.Context, shortname string) (*model.CampaignContent, error) {
	c, err := s.newCampaign(shortname)
	if err != nil {
		return nil, err
	}
	return s.Renderer.Render(ctx, c)
}

// Save renders the campaign and stores it with the provider.
func (s *CampaignService) Save(ctx context.Context, shortname string) (*model.CampaignContent, error) {
	content, err := s.Preview(ctx, shortname)
	if err != nil {
		return nil, err
	}
	if err := s.Gateway.SaveCampaign(ctx, content); err != nil {
		return nil, err
	}
	s.Log.InfoContext(ctx, "campaign saved", slog.String("campaign", shortname))
	return content, nil
}

func (s *CampaignService) Delete(ctx context.Context, shortname string) error {
	if !shortnamePattern.MatchString(shortname) {
		return appErrors.NewCampaignNotFound(shortname)
	}
	if err := s.Gateway.DeleteCampaign(ctx, shortname); err != nil {
		return err
	}
	s.Log.InfoContext(ctx, "campaign deleted", slog.String("campaign", shortname))
	return nil
}
