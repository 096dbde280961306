package campaign

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/beevik/etree"
)

// Links starting with this prefix are provider merge tags.
const mergeTagPrefix = "*|"

// Diagnostic is one XML parse problem.
type Diagnostic struct {
	Message string `json:"message"`
	Line    int    `json:"line"`
}

// InvalidXHTMLError reports markup that is not well-formed after marker
// substitution.
type InvalidXHTMLError struct {
	Diagnostics []Diagnostic
}

func (e *InvalidXHTMLError) Error() string {
	var b strings.Builder
	b.WriteString("generated XHTML is not valid:")
	for _, d := range e.Diagnostics {
		fmt.Fprintf(&b, "\n%s, line %d", d.Message, d.Line)
	}
	return b.String()
}

func (r *Renderer) transformXHTML(markup string, analytics map[string]string) (string, error) {
	if err := validateXHTML(markup); err != nil {
		return "", err
	}

	doc := etree.NewDocument()
	doc.ReadSettings.Entity = xml.HTMLEntity
	doc.ReadSettings.PreserveCData = true
	doc.WriteSettings.CanonicalText = true
	doc.WriteSettings.CanonicalAttrVal = true
	if err := doc.ReadFromString(markup); err != nil {
		return "", &InvalidXHTMLError{Diagnostics: []Diagnostic{{Message: err.Error()}}}
	}
	root := doc.Root()

	head := root.SelectElement("head")
	if head == nil {
		head = etree.NewElement("head")
		root.InsertChildAt(0, head)
	}

	meta := etree.NewElement("meta")
	meta.CreateAttr("http-equiv", "Content-Type")
	meta.CreateAttr("content", "text/html; charset=utf-8")
	head.InsertChildAt(0, meta)

	base := etree.NewElement("base")
	base.CreateAttr("href", r.cfg.BaseHref)
	head.InsertChildAt(0, base)

	if len(analytics) > 0 {
		for _, a := range root.FindElements(".//a") {
			href := a.SelectAttr("href")
			if href == nil || strings.HasPrefix(href.Value, mergeTagPrefix) {
				continue
			}
			href.Value = appendAnalytics(href.Value, analytics)
		}
	}

	var b strings.Builder
	root.WriteTo(&b, &doc.WriteSettings)
	return b.String(), nil
}

// validateXHTML runs a strict parse so failures carry line numbers.
func validateXHTML(markup string) error {
	d := xml.NewDecoder(strings.NewReader(markup))
	d.Strict = true
	d.Entity = xml.HTMLEntity

	var depth, roots int
	for {
		tok, err := d.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			var syntaxErr *xml.SyntaxError
			if errors.As(err, &syntaxErr) {
				return &InvalidXHTMLError{Diagnostics: []Diagnostic{{Message: syntaxErr.Msg, Line: syntaxErr.Line}}}
			}
			line, _ := d.InputPos()
			return &InvalidXHTMLError{Diagnostics: []Diagnostic{{Message: err.Error(), Line: line}}}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if name, ok := duplicateAttr(t.Attr); ok {
				line, _ := d.InputPos()
				return &InvalidXHTMLError{Diagnostics: []Diagnostic{{Message: "attribute " + name + " redefined", Line: line}}}
			}
			if depth == 0 {
				roots++
				if roots > 1 {
					line, _ := d.InputPos()
					return &InvalidXHTMLError{Diagnostics: []Diagnostic{{Message: "extra content at the end of the document", Line: line}}}
				}
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && len(strings.TrimSpace(string(t))) > 0 {
				line, _ := d.InputPos()
				return &InvalidXHTMLError{Diagnostics: []Diagnostic{{Message: "text outside the document element", Line: line}}}
			}
		}
	}

	if roots == 0 {
		return &InvalidXHTMLError{Diagnostics: []Diagnostic{{Message: "document is empty", Line: 1}}}
	}
	return nil
}

// duplicateAttr reports the first attribute name that occurs twice.
// encoding/xml accepts repeated attributes, well-formed XML does not.
func duplicateAttr(attrs []xml.Attr) (string, bool) {
	for i := 1; i < len(attrs); i++ {
		for _, prev := range attrs[:i] {
			if prev.Name == attrs[i].Name {
				if attrs[i].Name.Space != "" {
					return attrs[i].Name.Space + ":" + attrs[i].Name.Local, true
				}
				return attrs[i].Name.Local, true
			}
		}
	}
	return "", false
}

// appendAnalytics adds vars to href as a sorted, URL-encoded query string,
// keeping any fragment last.
func appendAnalytics(href string, vars map[string]string) string {
	if len(vars) == 0 {
		return href
	}

	keys := slices.Sorted(maps.Keys(vars))
	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = url.QueryEscape(k) + "=" + url.QueryEscape(vars[k])
	}

	fragment := ""
	if i := strings.IndexByte(href, '#'); i >= 0 {
		href, fragment = href[:i], href[i:]
	}

	sep := "?"
	if strings.Contains(href, "?") {
		sep = "&"
	}
	return href + sep + strings.Join(pairs, "&") + fragment
}
