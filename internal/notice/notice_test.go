package notice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/mailinglist/internal/model"
	"github.com/unclebandit/mailinglist/internal/notice"
)

func TestClassifyIsTotal(t *testing.T) {
	c := notice.NewClassifier("")

	applicable := map[model.OperationKind]map[model.ResultCode]notice.Severity{
		model.OpSubscribe: {
			model.Invalid: notice.SeverityError,
			model.Failure: notice.SeverityError,
		},
		model.OpUnsubscribe: {
			model.Failure:       notice.SeverityError,
			model.NotFound:      notice.SeverityNotice,
			model.NotSubscribed: notice.SeverityNotice,
		},
		model.OpUpdate: {
			model.Invalid:       notice.SeverityError,
			model.Failure:       notice.SeverityError,
			model.NotFound:      notice.SeverityNotice,
			model.NotSubscribed: notice.SeverityNotice,
		},
	}

	for _, kind := range model.OperationKinds {
		for _, code := range model.ResultCodes {
			t.Run(string(kind)+"/"+code.String(), func(t *testing.T) {
				n := c.Classify(code, kind)
				want, ok := applicable[kind][code]
				if !ok {
					assert.Nil(t, n)
					return
				}
				require.NotNil(t, n)
				assert.Equal(t, want, n.Severity)
				assert.NotEmpty(t, n.Primary)
			})
		}
	}
}

func TestFailureCarriesContactLink(t *testing.T) {
	n := notice.NewClassifier("").Classify(model.Failure, model.OpSubscribe)
	require.NotNil(t, n)
	assert.True(t, n.RichText)
	assert.Equal(t, "Sorry, there was an issue subscribing you to the list.", n.Primary)
	assert.Contains(t, n.Secondary, `<a href="about/contact">contact us</a>`)

	n = notice.NewClassifier("https://example.com/help?a=1&b=2").Classify(model.Failure, model.OpUpdate)
	require.NotNil(t, n)
	assert.Equal(t, "Sorry, there was an issue with updating your information.", n.Primary)
	assert.Contains(t, n.Secondary, `href="https://example.com/help?a=1&amp;b=2"`)
}

func TestStateNotices(t *testing.T) {
	c := notice.NewClassifier("")

	n := c.Classify(model.NotFound, model.OpUnsubscribe)
	require.NotNil(t, n)
	assert.Equal(t, "Thank you. Your email address was never subscribed to our newsletter.", n.Primary)
	assert.Equal(t, "You will not receive any mailings to this address.", n.Secondary)
	assert.False(t, n.RichText)

	n = c.Classify(model.NotSubscribed, model.OpUpdate)
	require.NotNil(t, n)
	assert.Equal(t, "Thank you. Your email address has already been unsubscribed from our newsletter.", n.Primary)

	assert.Nil(t, c.Classify(model.Queued, model.OpUnsubscribe))
	assert.Nil(t, c.Classify(model.Success, model.OpSubscribe))
	assert.Nil(t, c.Classify(model.ResultCode(99), model.OpUpdate))
}
