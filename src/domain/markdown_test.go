package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractLinks(t *testing.T) {
	t.Parallel()

	body := []byte(`Read about [our services](/services) or [contact us](/contact).

![hero](/images/hero.png)

External: [Cosign](https://github.com/sigstore/cosign)
`)

	links := ExtractLinks(body, 0)

	destinations := make(map[string]Link, len(links))
	for _, link := range links {
		destinations[link.Destination] = link
	}

	assert.Len(t, links, 4)
	assert.Contains(t, destinations, "/services")
	assert.Contains(t, destinations, "/contact")
	assert.Contains(t, destinations, "https://github.com/sigstore/cosign")
	assert.True(t, destinations["/images/hero.png"].Image)

	if assert.NotNil(t, destinations["/services"].Line) {
		assert.Equal(t, 1, *destinations["/services"].Line)
	}
	if assert.NotNil(t, destinations["/images/hero.png"].Line) {
		assert.Equal(t, 3, *destinations["/images/hero.png"].Line)
	}
}

func TestExtractLinksLineOffset(t *testing.T) {
	t.Parallel()

	links := ExtractLinks([]byte("[a](/a)"), 5)
	if assert.Len(t, links, 1) && assert.NotNil(t, links[0].Line) {
		assert.Equal(t, 6, *links[0].Line)
	}
}

func TestScanFences(t *testing.T) {
	t.Parallel()

	tries := map[string]struct {
		body   string
		fences []Fence
	}{
		"balanced with language": {
			"```bash\ncosign sign $IMAGE\n```\n",
			[]Fence{{Line: 1, Info: "bash", Closed: true}},
		},
		"unterminated": {
			"text\n```yaml\nkey: value\n",
			[]Fence{{Line: 2, Info: "yaml", Closed: false}},
		},
		"no language tag": {
			"```\nplain\n```\n",
			[]Fence{{Line: 1, Info: "", Closed: true}},
		},
		"tildes": {
			"~~~dockerfile\nFROM scratch\n~~~\n",
			[]Fence{{Line: 1, Info: "dockerfile", Closed: true}},
		},
		"closer must be at least as long": {
			"````go\n```\nnot a closer\n````\n",
			[]Fence{{Line: 1, Info: "go", Closed: true}},
		},
		"two blocks": {
			"```sh\na\n```\n\n```json\n{}\n```\n",
			[]Fence{
				{Line: 1, Info: "sh", Closed: true},
				{Line: 5, Info: "json", Closed: true},
			},
		},
		"none": {
			"just text\n",
			nil,
		},
	}

	for k, try := range tries {
		k := k
		try := try

		t.Run(k, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, try.fences, ScanFences([]byte(try.body), 0))
		})
	}
}
