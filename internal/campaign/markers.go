package campaign

import "regexp"

var markerPattern = regexp.MustCompile(`<!-- \[(.*?)\] -->`)

// SubstituteMarkers replaces every <!-- [id] --> in text with resolve(id).
// Replacement text is inserted literally.
func SubstituteMarkers(text string, resolve func(id string) string) string {
	return markerPattern.ReplaceAllStringFunc(text, func(marker string) string {
		m := markerPattern.FindStringSubmatch(marker)
		return resolve(m[1])
	})
}
