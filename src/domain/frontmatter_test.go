package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitFrontMatter(t *testing.T) {
	t.Parallel()

	tries := map[string]struct {
		raw         string
		frontMatter string
		body        string
		bodyLine    int
		err         error
	}{
		"happy path": {
			"---\ntitle: Hello\n---\nbody here\n",
			"title: Hello",
			"body here\n",
			4,
			nil,
		},
		"windows line endings": {
			"---\r\ntitle: Hello\r\n---\r\nbody\r\n",
			"title: Hello\r",
			"body\r\n",
			4,
			nil,
		},
		"no front matter": {
			"# Just a heading\n",
			"",
			"# Just a heading\n",
			1,
			ErrNoFrontMatter,
		},
		"unterminated block": {
			"---\ntitle: Hello\nbody that never ends",
			"",
			"---\ntitle: Hello\nbody that never ends",
			1,
			ErrUnterminatedFrontMatter,
		},
		"empty block": {
			"---\n---\nbody\n",
			"",
			"body\n",
			3,
			nil,
		},
	}

	for k, try := range tries {
		k := k
		try := try

		t.Run(k, func(t *testing.T) {
			t.Parallel()

			frontMatter, body, bodyLine, err := SplitFrontMatter([]byte(try.raw))

			if try.err != nil {
				assert.ErrorIs(t, err, try.err)
			} else {
				assert.Nil(t, err)
			}
			assert.Equal(t, try.frontMatter, string(frontMatter))
			assert.Equal(t, try.body, string(body))
			assert.Equal(t, try.bodyLine, bodyLine)
		})
	}
}

func TestDecodeFrontMatter(t *testing.T) {
	t.Parallel()

	// given
	frontMatter := []byte(`title: Signing artifacts in CI
description: Why you should sign your build outputs.
pubDate: 2024-07-08
heroImage: /images/signing.png
heroImageAlt: A pipeline diagram
tags: [security, supply-chain]`)

	// when
	fields, err := DecodeFrontMatter(frontMatter)

	// then
	assert.Nil(t, err)
	assert.Equal(t, "Signing artifacts in CI", fields[FieldTitle])
	// unquoted YAML dates come back normalized to RFC 3339 strings
	assert.Equal(t, "2024-07-08T00:00:00Z", fields[FieldPubDate])
	assert.Equal(t, []any{"security", "supply-chain"}, fields["tags"])
}

func TestDecodeFrontMatterInvalidYaml(t *testing.T) {
	t.Parallel()

	_, err := DecodeFrontMatter([]byte("title: [unclosed"))
	assert.Error(t, err)
}
