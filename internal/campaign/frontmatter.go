package campaign

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/unclebandit/mailinglist/internal/model"
)

// splitFrontMatter separates an optional YAML header delimited by "---"
// lines from the template body.
func splitFrontMatter(content []byte) (model.CampaignMetadata, string, error) {
	var meta model.CampaignMetadata
	delimiter := []byte("---")

	if !bytes.HasPrefix(content, delimiter) {
		return meta, string(content), nil
	}

	rest := bytes.TrimLeft(bytes.TrimPrefix(content, delimiter), "\r\n")
	end := bytes.Index(rest, delimiter)
	if end == -1 {
		return meta, "", fmt.Errorf("%w: closing delimiter not found", ErrInvalidFrontMatter)
	}

	header := rest[:end]
	body := rest[end+len(delimiter):]
	// one newline after the closing delimiter belongs to it
	body = bytes.TrimPrefix(body, []byte("\r"))
	body = bytes.TrimPrefix(body, []byte("\n"))

	if len(bytes.TrimSpace(header)) > 0 {
		if err := yaml.Unmarshal(header, &meta); err != nil {
			return meta, "", fmt.Errorf("%w: %v", ErrInvalidFrontMatter, err)
		}
	}
	return meta, string(body), nil
}

// mergeMetadata fills empty fields of dst from src.
func mergeMetadata(dst *model.CampaignMetadata, src model.CampaignMetadata) {
	if dst.Subject == "" {
		dst.Subject = src.Subject
	}
	if dst.FromAddress == "" {
		dst.FromAddress = src.FromAddress
	}
	if dst.FromName == "" {
		dst.FromName = src.FromName
	}
	if dst.Title == "" {
		dst.Title = src.Title
	}
}
