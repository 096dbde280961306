// internal/model/campaign.go
package model

// CampaignMetadata is read from the front matter of a campaign's templates.
type CampaignMetadata struct {
	Subject     string `yaml:"subject" json:"subject,omitempty"`
	FromAddress string `yaml:"from_address" json:"from_address,omitempty"`
	FromName    string `yaml:"from_name" json:"from_name,omitempty"`
	Title       string `yaml:"title" json:"title,omitempty"`
}

// CampaignContent is a fully rendered campaign, ready to hand to a provider.
type CampaignContent struct {
	Shortname    string           `json:"shortname"`
	AnalyticsKey string           `json:"analytics_key"`
	Title        string           `json:"title"`
	Metadata     CampaignMetadata `json:"metadata"`
	XHTML        string           `json:"xhtml"`
	Text         string           `json:"text"`
}
