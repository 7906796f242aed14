package prepress

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lintedDocument = `---
title: Signing artifacts in CI
description: Why you should sign your build outputs.
pubDate: 2024-07-08
heroImage: /images/hero.png
heroImageAlt: A pipeline diagram
---
Talk to [our team](/contact) about supply-chain security.
`

func writeLintedDocument(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.Nil(t, os.WriteFile(filepath.Join(dir, "post.md"), []byte(lintedDocument), 0o644))
	return dir
}

func TestLintWithoutRoutesFileSkipsLinkCheck(t *testing.T) {
	t.Parallel()

	dir := writeLintedDocument(t)

	logger := zerolog.New(io.Discard)
	cmd := LintCmd{Paths: []string{dir}}
	assert.Nil(t, cmd.Run(&logger))
}

func TestLintFlagsUnknownRoute(t *testing.T) {
	t.Parallel()

	dir := writeLintedDocument(t)

	routesFile := filepath.Join(t.TempDir(), "routes.txt")
	require.Nil(t, os.WriteFile(routesFile, []byte("# known routes\n/\n/services\n"), 0o644))

	logger := zerolog.New(io.Discard)
	cmd := LintCmd{Paths: []string{dir}, Routes: routesFile}
	assert.EqualError(t, cmd.Run(&logger), "1 error(s) in 1 file(s)")
}

func TestReadRoutes(t *testing.T) {
	t.Parallel()

	routes, err := LintCmd{}.readRoutes()
	assert.Nil(t, err)
	assert.Nil(t, routes, "no routes file must disable the link check, not fail it")

	routesFile := filepath.Join(t.TempDir(), "routes.txt")
	require.Nil(t, os.WriteFile(routesFile, []byte("/\n\n# comment\n/contact/\n"), 0o644))

	routes, err = LintCmd{Routes: routesFile}.readRoutes()
	assert.Nil(t, err)
	assert.Equal(t, map[string]struct{}{"/": {}, "/contact": {}}, routes)
}
