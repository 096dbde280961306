package campaign_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unclebandit/mailinglist/internal/campaign"
)

func TestSubstituteMarkers(t *testing.T) {
	resolve := func(id string) string {
		if id == "name" {
			return "Ada"
		}
		return ""
	}

	out := campaign.SubstituteMarkers("Hi <!-- [name] -->!<!-- [unknown] --> <!-- plain comment -->", resolve)
	assert.Equal(t, "Hi Ada! <!-- plain comment -->", out)

	assert.Equal(t, out, campaign.SubstituteMarkers(out, resolve))
}

func TestSubstituteMarkersInsertsLiterally(t *testing.T) {
	out := campaign.SubstituteMarkers("<!-- [x] -->", func(string) string { return "$1 ${2}" })
	assert.Equal(t, "$1 ${2}", out)
}
