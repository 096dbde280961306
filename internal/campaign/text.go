package campaign

import (
	"html"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var uriMarker = regexp.MustCompile(`:uri:(.*?)(\s)`)

var (
	stripPolicy     *bluemonday.Policy
	stripPolicyOnce sync.Once
)

func stripTags(s string) string {
	stripPolicyOnce.Do(func() {
		stripPolicy = bluemonday.StrictPolicy()
	})
	return stripPolicy.Sanitize(s)
}

// transformText expands :uri: markers against the base href, then strips
// markup and decodes entities.
func (r *Renderer) transformText(text string) (string, error) {
	base := strings.ReplaceAll(r.cfg.BaseHref, "$", "$$")
	text = uriMarker.ReplaceAllString(text, base+"${1}${2}")

	if !utf8.ValidString(text) {
		return "", ErrInvalidUTF8
	}

	return html.UnescapeString(stripTags(text)), nil
}
