// Package notice turns list ResultCodes into user-facing messages.
package notice

import (
	"fmt"
	"html"

	"github.com/unclebandit/mailinglist/internal/model"
)

type Severity string

const (
	SeverityError  Severity = "error"
	SeverityNotice Severity = "notice"
)

// DefaultContactLink is used when a Classifier has no link configured.
const DefaultContactLink = "about/contact"

type Notice struct {
	Severity  Severity `json:"severity"`
	Primary   string   `json:"primary"`
	Secondary string   `json:"secondary,omitempty"`
	// RichText marks Secondary as XHTML.
	RichText bool `json:"rich_text"`
}

type Classifier struct {
	ContactLink string
}

func NewClassifier(contactLink string) *Classifier {
	return &Classifier{ContactLink: contactLink}
}

const (
	invalidAddress  = "Sorry, the email address you entered is not a valid email address."
	neverSubscribed = "Thank you. Your email address was never subscribed to our newsletter."
	alreadyGone     = "Thank you. Your email address has already been unsubscribed from our newsletter."
	noMailings      = "You will not receive any mailings to this address."
)

var failureText = map[model.OperationKind]string{
	model.OpSubscribe:   "Sorry, there was an issue subscribing you to the list.",
	model.OpUnsubscribe: "Sorry, there was an issue unsubscribing from the list.",
	model.OpUpdate:      "Sorry, there was an issue with updating your information.",
}

// Classify returns the notice for code in the context of kind, or nil when
// the caller should stay silent.
func (c *Classifier) Classify(code model.ResultCode, kind model.OperationKind) *Notice {
	switch code {
	case model.Invalid:
		if kind == model.OpUnsubscribe {
			return nil
		}
		return &Notice{Severity: SeverityError, Primary: invalidAddress}

	case model.Failure:
		primary, ok := failureText[kind]
		if !ok {
			return nil
		}
		return &Notice{
			Severity:  SeverityError,
			Primary:   primary,
			Secondary: c.contactSecondary(kind),
			RichText:  true,
		}

	case model.NotFound:
		if kind == model.OpSubscribe {
			return nil
		}
		return &Notice{Severity: SeverityNotice, Primary: neverSubscribed, Secondary: noMailings}

	case model.NotSubscribed:
		if kind == model.OpSubscribe {
			return nil
		}
		return &Notice{Severity: SeverityNotice, Primary: alreadyGone, Secondary: noMailings}
	}

	// SUCCESS, QUEUED and unknown codes are silent.
	return nil
}

func (c *Classifier) contactSecondary(kind model.OperationKind) string {
	link := c.ContactLink
	if link == "" {
		link = DefaultContactLink
	}
	format := "This can usually be resolved by trying again later. If the issue persists, please <a href=\"%s\">contact us</a>."
	if kind == model.OpSubscribe {
		format = "This can usually be resolved by trying again later. If the issue persists please <a href=\"%s\">contact us</a>."
	}
	return fmt.Sprintf(format, html.EscapeString(link))
}
