package domain

import (
	"bytes"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	ErrNoFrontMatter           = errors.New("document has no front matter")
	ErrUnterminatedFrontMatter = errors.New("front matter block is never closed")
)

var frontMatterDelimiter = []byte("---")

// SplitFrontMatter separates the leading YAML front matter block from the
// Markdown body. bodyLine is the 1-based line number the body starts on,
// so findings in the body can point at the right line of the file.
// On error the whole input is returned as the body.
func SplitFrontMatter(raw []byte) (frontMatter, body []byte, bodyLine int, err error) {
	lines := bytes.Split(raw, []byte("\n"))

	if len(lines) == 0 || !isDelimiter(lines[0]) {
		return nil, raw, 1, ErrNoFrontMatter
	}

	for i := 1; i < len(lines); i++ {
		if !isDelimiter(lines[i]) {
			continue
		}

		frontMatter = bytes.Join(lines[1:i], []byte("\n"))
		body = bytes.Join(lines[i+1:], []byte("\n"))
		bodyLine = i + 2
		return
	}

	return nil, raw, 1, ErrUnterminatedFrontMatter
}

func isDelimiter(line []byte) bool {
	return bytes.Equal(bytes.TrimRight(line, "\r"), frontMatterDelimiter)
}

// DecodeFrontMatter parses the YAML block into a flat mapping.
// YAML resolves unquoted dates to time.Time; those are normalized back
// to RFC 3339 strings so the front matter schema only deals in strings.
func DecodeFrontMatter(frontMatter []byte) (map[string]any, error) {
	fields := map[string]any{}
	if err := yaml.Unmarshal(frontMatter, &fields); err != nil {
		return nil, errors.WithMessage(err, "While decoding front matter YAML")
	}

	for key, value := range fields {
		if t, ok := value.(time.Time); ok {
			fields[key] = t.Format(time.RFC3339)
		}
	}

	return fields, nil
}
