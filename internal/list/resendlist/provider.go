// Package resendlist implements list.Provider on top of Resend audiences,
// contacts and broadcasts.
package resendlist

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/resend/resend-go/v2"

	"github.com/unclebandit/mailinglist/internal/list"
	"github.com/unclebandit/mailinglist/internal/model"
)

// Provider field names understood by Resend contacts.
const (
	FieldFirstName = "first_name"
	FieldLastName  = "last_name"
)

type Config struct {
	APIKey     string
	AudienceID string
	// From is used for broadcasts and welcome mail when a campaign sets no sender.
	From    string
	ReplyTo string

	WelcomeSubject string
	WelcomeHTML    string
	WelcomeText    string
}

type Provider struct {
	client *resend.Client
	cfg    Config
}

func New(cfg Config) *Provider {
	return NewWithClient(resend.NewCustomClient(NewHTTPClient(nil), cfg.APIKey), cfg)
}

// NewWithClient uses client as is. Build it over NewHTTPClient so missing
// contacts are recognised.
func NewWithClient(client *resend.Client, cfg Config) *Provider {
	return &Provider{client: client, cfg: cfg}
}

// Ping fetches the configured audience.
func (p *Provider) Ping(ctx context.Context) error {
	_, err := p.client.Audiences.GetWithContext(ctx, p.cfg.AudienceID)
	return err
}

func (p *Provider) IsMember(ctx context.Context, address string) (bool, error) {
	contact, err := p.contact(ctx, address)
	if err != nil {
		if err == list.ErrNotMember {
			return false, nil
		}
		return false, err
	}
	return !contact.Unsubscribed, nil
}

func (p *Provider) Subscribe(ctx context.Context, sub model.Subscriber, sendWelcome bool) error {
	existing, err := p.contact(ctx, sub.Address)
	switch {
	case err == list.ErrNotMember:
		_, err = p.client.Contacts.CreateWithContext(ctx, &resend.CreateContactRequest{
			Email:      sub.Address,
			AudienceId: p.cfg.AudienceID,
			FirstName:  sub.Info[FieldFirstName],
			LastName:   sub.Info[FieldLastName],
		})
		if err != nil {
			return fmt.Errorf("create contact: %w", err)
		}
	case err != nil:
		return err
	default:
		req := &resend.UpdateContactRequest{
			Id:         existing.Id,
			AudienceId: p.cfg.AudienceID,
			FirstName:  sub.Info[FieldFirstName],
			LastName:   sub.Info[FieldLastName],
		}
		req.SetUnsubscribed(false)
		if _, err := p.client.Contacts.UpdateWithContext(ctx, req); err != nil {
			return fmt.Errorf("resubscribe contact: %w", err)
		}
		if !existing.Unsubscribed {
			// already a member; no second welcome
			return nil
		}
	}

	if sendWelcome {
		return p.sendWelcome(ctx, sub.Address)
	}
	return nil
}

func (p *Provider) sendWelcome(ctx context.Context, address string) error {
	if p.cfg.WelcomeSubject == "" {
		return nil
	}
	_, err := p.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    p.cfg.From,
		To:      []string{address},
		Subject: p.cfg.WelcomeSubject,
		Html:    p.cfg.WelcomeHTML,
		Text:    p.cfg.WelcomeText,
		ReplyTo: p.cfg.ReplyTo,
	})
	if err != nil {
		return fmt.Errorf("send welcome: %w", err)
	}
	return nil
}

func (p *Provider) Unsubscribe(ctx context.Context, address string) error {
	contact, err := p.contact(ctx, address)
	if err != nil {
		return err
	}
	if contact.Unsubscribed {
		return list.ErrAlreadyUnsubscribed
	}

	req := &resend.UpdateContactRequest{Id: contact.Id, AudienceId: p.cfg.AudienceID}
	req.SetUnsubscribed(true)
	if _, err := p.client.Contacts.UpdateWithContext(ctx, req); err != nil {
		return fmt.Errorf("unsubscribe contact: %w", err)
	}
	return nil
}

func (p *Provider) Update(ctx context.Context, sub model.Subscriber) error {
	contact, err := p.contact(ctx, sub.Address)
	if err != nil {
		return err
	}
	_, err = p.client.Contacts.UpdateWithContext(ctx, &resend.UpdateContactRequest{
		Id:         contact.Id,
		AudienceId: p.cfg.AudienceID,
		FirstName:  sub.Info[FieldFirstName],
		LastName:   sub.Info[FieldLastName],
	})
	if err != nil {
		return fmt.Errorf("update contact: %w", err)
	}
	return nil
}

// SaveCampaign creates the broadcast named after the campaign, or updates it
// when one already exists.
func (p *Provider) SaveCampaign(ctx context.Context, content *model.CampaignContent) error {
	subject := content.Metadata.Subject
	if subject == "" {
		subject = content.Title
	}
	from := p.from(content.Metadata)

	existing, err := p.broadcast(ctx, content.Shortname)
	if err != nil {
		return err
	}

	if existing != nil {
		_, err = p.client.Broadcasts.UpdateWithContext(ctx, &resend.UpdateBroadcastRequest{
			BroadcastId: existing.Id,
			AudienceId:  p.cfg.AudienceID,
			From:        from,
			Subject:     subject,
			ReplyTo:     p.replyTo(),
			Html:        content.XHTML,
			Text:        content.Text,
			Name:        content.Shortname,
		})
		if err != nil {
			return fmt.Errorf("update broadcast %s: %w", content.Shortname, err)
		}
		return nil
	}

	_, err = p.client.Broadcasts.CreateWithContext(ctx, &resend.CreateBroadcastRequest{
		AudienceId: p.cfg.AudienceID,
		From:       from,
		Subject:    subject,
		ReplyTo:    p.replyTo(),
		Html:       content.XHTML,
		Text:       content.Text,
		Name:       content.Shortname,
	})
	if err != nil {
		return fmt.Errorf("create broadcast %s: %w", content.Shortname, err)
	}
	return nil
}

// DeleteCampaign removes the campaign's broadcast. A missing broadcast is not an error.
func (p *Provider) DeleteCampaign(ctx context.Context, shortname string) error {
	existing, err := p.broadcast(ctx, shortname)
	if err != nil || existing == nil {
		return err
	}
	if _, err := p.client.Broadcasts.RemoveWithContext(ctx, existing.Id); err != nil {
		return fmt.Errorf("remove broadcast %s: %w", shortname, err)
	}
	return nil
}

func (p *Provider) contact(ctx context.Context, address string) (resend.Contact, error) {
	contact, err := p.client.Contacts.GetWithContext(ctx, p.cfg.AudienceID, address)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return resend.Contact{}, list.ErrNotMember
		}
		return resend.Contact{}, err
	}
	return contact, nil
}

func (p *Provider) broadcast(ctx context.Context, name string) (*resend.Broadcast, error) {
	resp, err := p.client.Broadcasts.ListWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list broadcasts: %w", err)
	}
	for i := range resp.Data {
		if resp.Data[i].Name == name {
			return &resp.Data[i], nil
		}
	}
	return nil, nil
}

func (p *Provider) from(meta model.CampaignMetadata) string {
	if meta.FromAddress == "" {
		return p.cfg.From
	}
	addr := mail.Address{Name: meta.FromName, Address: meta.FromAddress}
	return addr.String()
}

func (p *Provider) replyTo() []string {
	if p.cfg.ReplyTo == "" {
		return nil
	}
	return []string{p.cfg.ReplyTo}
}

var _ list.Provider = (*Provider)(nil)
