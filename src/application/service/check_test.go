package service

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siteworks/prepress/src/domain"
)

const validDocument = `---
title: Signing artifacts in CI
description: Why you should sign your build outputs.
pubDate: 2024-07-08
heroImage: /images/hero.png
heroImageAlt: A pipeline diagram
---
Talk to [our team](/contact) about supply-chain security.

` + "```bash\ncosign sign $IMAGE\n```\n"

func newCheckService(t *testing.T) CheckService {
	t.Helper()

	logger := zerolog.New(io.Discard)
	checkService, err := NewCheckService("", nil, &logger)
	require.Nil(t, err)
	return checkService
}

func newAssetDir(t *testing.T) string {
	t.Helper()

	assetDir := t.TempDir()
	require.Nil(t, os.MkdirAll(filepath.Join(assetDir, "images"), 0o755))
	require.Nil(t, os.WriteFile(filepath.Join(assetDir, "images", "hero.png"), []byte("png"), 0o644))
	return assetDir
}

func kinds(findings []domain.Finding) map[domain.CheckKind]int {
	counts := map[domain.CheckKind]int{}
	for _, finding := range findings {
		counts[finding.CheckKind] += 1
	}
	return counts
}

func TestValidateCleanDocument(t *testing.T) {
	t.Parallel()

	checkService := newCheckService(t)

	findings := checkService.Validate(context.Background(), CheckInput{
		Path:     "blog/signing.md",
		Raw:      []byte(validDocument),
		AssetDir: newAssetDir(t),
		Routes:   domain.Routes{"/", "/contact", "/services"}.Set(),
	})

	assert.Empty(t, findings)
}

func TestValidateFindings(t *testing.T) {
	t.Parallel()

	checkService := newCheckService(t)

	tries := map[string]struct {
		raw      string
		expected map[domain.CheckKind]int
		errors   int
	}{
		"no front matter": {
			"# heading only\n",
			map[domain.CheckKind]int{domain.CheckFrontMatter: 1},
			1,
		},
		"unterminated front matter": {
			"---\ntitle: oops\nbody\n",
			map[domain.CheckKind]int{domain.CheckFrontMatter: 1},
			1,
		},
		"invalid yaml": {
			"---\ntitle: [unclosed\n---\nbody\n",
			map[domain.CheckKind]int{domain.CheckFrontMatter: 1},
			1,
		},
		"missing and empty fields": {
			`---
title: ""
description: fine
pubDate: 2024-07-08
heroImage: /images/hero.png
heroImageAlt: alt
---
body
`,
			map[domain.CheckKind]int{domain.CheckFrontMatter: 1},
			1,
		},
		"unparseable pubDate": {
			`---
title: t
description: d
pubDate: "sometime soon"
heroImage: /images/hero.png
heroImageAlt: alt
---
body
`,
			map[domain.CheckKind]int{domain.CheckPubDate: 1},
			1,
		},
		"missing hero asset": {
			`---
title: t
description: d
pubDate: 2024-07-08
heroImage: /images/missing.png
heroImageAlt: alt
---
body
`,
			map[domain.CheckKind]int{domain.CheckAsset: 1},
			1,
		},
		"dead internal link": {
			`---
title: t
description: d
pubDate: 2024-07-08
heroImage: /images/hero.png
heroImageAlt: alt
---
See [services](/servcies).
`,
			map[domain.CheckKind]int{domain.CheckLink: 1},
			1,
		},
		"unterminated fence": {
			`---
title: t
description: d
pubDate: 2024-07-08
heroImage: /images/hero.png
heroImageAlt: alt
---
` + "```yaml\nkey: value\n",
			map[domain.CheckKind]int{domain.CheckFence: 1},
			1,
		},
		"unknown fence language": {
			`---
title: t
description: d
pubDate: 2024-07-08
heroImage: /images/hero.png
heroImageAlt: alt
---
` + "```klingon\nqapla'\n```\n",
			map[domain.CheckKind]int{domain.CheckFence: 1},
			0,
		},
	}

	assetDir := newAssetDir(t)
	routes := domain.Routes{"/", "/contact", "/services"}.Set()

	for k, try := range tries {
		k := k
		try := try

		t.Run(k, func(t *testing.T) {
			t.Parallel()

			findings := checkService.Validate(context.Background(), CheckInput{
				Path:     "blog/post.md",
				Raw:      []byte(try.raw),
				AssetDir: assetDir,
				Routes:   routes,
			})

			assert.Equal(t, try.expected, kinds(findings))

			report := domain.Report{Findings: findings}
			assert.Equal(t, try.errors, report.Errors())
		})
	}
}

func TestValidateBodyChecksRunWithBrokenFrontMatter(t *testing.T) {
	t.Parallel()

	checkService := newCheckService(t)

	findings := checkService.Validate(context.Background(), CheckInput{
		Path:   "blog/post.md",
		Raw:    []byte("no front matter\n\n```yaml\nunterminated\n"),
		Routes: domain.Routes{"/"}.Set(),
	})

	counts := kinds(findings)
	assert.Equal(t, 1, counts[domain.CheckFrontMatter])
	assert.Equal(t, 1, counts[domain.CheckFence])
}

func TestValidateLongDescription(t *testing.T) {
	t.Parallel()

	checkService := newCheckService(t)

	description := ""
	for i := 0; i < 20; i++ {
		description += "waffling on! "
	}

	findings := checkService.Validate(context.Background(), CheckInput{
		Path: "blog/post.md",
		Raw: []byte(`---
title: t
description: ` + description + `
pubDate: 2024-07-08
heroImage: /images/hero.png
heroImageAlt: alt
---
body
`),
	})

	counts := kinds(findings)
	assert.Equal(t, 1, counts[domain.CheckSeo])
	assert.Zero(t, counts[domain.CheckAsset], "asset check is disabled without an asset dir")
}

func TestValidateRejectsTraversal(t *testing.T) {
	t.Parallel()

	checkService := newCheckService(t)

	findings := checkService.Validate(context.Background(), CheckInput{
		Path:     "blog/post.md",
		AssetDir: newAssetDir(t),
		Raw: []byte(`---
title: t
description: d
pubDate: 2024-07-08
heroImage: ../../etc/passwd
heroImageAlt: alt
---
body
`),
	})

	counts := kinds(findings)
	assert.Equal(t, 1, counts[domain.CheckAsset])
}

func TestNewCheckServiceRejectsBrokenSchema(t *testing.T) {
	t.Parallel()

	logger := zerolog.New(io.Discard)
	_, err := NewCheckService("title: string &", nil, &logger)
	assert.Error(t, err)
}
