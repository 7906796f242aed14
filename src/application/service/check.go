package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"cuelang.org/go/cue"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/siteworks/prepress/src/domain"
	"github.com/siteworks/prepress/src/util"
)

// DefaultFrontMatterSchema is the publishing contract:
// the five fields every post must carry, each non-empty.
// Extra fields are allowed.
const DefaultFrontMatterSchema util.CUEString = `
title:        string & !=""
description:  string & !=""
pubDate:      string & !=""
heroImage:    string & !=""
heroImageAlt: string & !=""
`

// Search engines truncate meta descriptions around this length.
const maxDescriptionLength = 160

type CheckService interface {
	Validate(context.Context, CheckInput) []domain.Finding
}

// CheckInput is everything needed to validate one document.
// A nil Routes set disables internal link checking, an empty AssetDir
// disables asset resolution, ExternalLinks gates HTTP probing.
type CheckInput struct {
	Path          string
	Raw           []byte
	AssetDir      string
	Routes        map[string]struct{}
	ExternalLinks bool
}

type checkService struct {
	logger zerolog.Logger
	schema util.CUEString
	links  LinkService
}

func NewCheckService(schema util.CUEString, links LinkService, logger *zerolog.Logger) (CheckService, error) {
	if schema == "" {
		schema = DefaultFrontMatterSchema
	}
	if err := schema.Value(nil, nil).Err(); err != nil {
		return nil, errors.WithMessage(err, "While compiling front matter schema")
	}

	return &checkService{
		logger: logger.With().Str("component", "CheckService").Logger(),
		schema: schema,
		links:  links,
	}, nil
}

func (self *checkService) Validate(ctx context.Context, input CheckInput) []domain.Finding {
	self.logger.Debug().Str("path", input.Path).Msg("Validating document")

	findings := []domain.Finding{}

	frontMatter, body, bodyLine, err := domain.SplitFrontMatter(input.Raw)
	if err != nil {
		findings = append(findings, domain.Finding{
			CheckKind: domain.CheckFrontMatter,
			Severity:  domain.SeverityError,
			Detail:    err.Error(),
		})
	} else if fields, err := domain.DecodeFrontMatter(frontMatter); err != nil {
		findings = append(findings, domain.Finding{
			CheckKind: domain.CheckFrontMatter,
			Severity:  domain.SeverityError,
			Detail:    err.Error(),
		})
	} else {
		findings = append(findings, self.checkSchema(fields)...)
		findings = append(findings, checkPubDate(fields)...)
		findings = append(findings, checkAsset(fields, input.AssetDir)...)
		findings = append(findings, checkDescription(fields)...)
	}

	// Body checks run even when the front matter is broken.
	findings = append(findings, self.checkLinks(ctx, body, bodyLine-1, input)...)
	findings = append(findings, checkFences(body, bodyLine-1)...)

	return findings
}

func (self *checkService) checkSchema(fields map[string]any) (findings []domain.Finding) {
	schema := self.schema.Value(nil, nil)
	unified := schema.Unify(schema.Context().Encode(fields))

	if err := unified.Validate(cue.Concrete(true)); err != nil {
		for _, e := range cueerrors.Errors(err) {
			findings = append(findings, domain.Finding{
				CheckKind: domain.CheckFrontMatter,
				Severity:  domain.SeverityError,
				Detail:    e.Error(),
			})
		}
	}
	return
}

var pubDateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"Jan 2 2006",
	"Jan 02 2006",
	"January 2, 2006",
	"2006-01-02 15:04:05",
}

func checkPubDate(fields map[string]any) []domain.Finding {
	// Presence and type are the schema's business. Only a present
	// string value is parsed here.
	pubDate, ok := fields[domain.FieldPubDate].(string)
	if !ok || pubDate == "" {
		return nil
	}

	for _, layout := range pubDateLayouts {
		if _, err := time.Parse(layout, pubDate); err == nil {
			return nil
		}
	}

	return []domain.Finding{{
		CheckKind: domain.CheckPubDate,
		Severity:  domain.SeverityError,
		Detail:    fmt.Sprintf("pubDate %q is not a parseable date", pubDate),
	}}
}

func checkAsset(fields map[string]any, assetDir string) []domain.Finding {
	if assetDir == "" {
		return nil
	}

	hero, ok := fields[domain.FieldHeroImage].(string)
	if !ok || hero == "" {
		return nil
	}

	if finding := assetFinding(assetDir, hero, nil); finding != nil {
		return []domain.Finding{*finding}
	}
	return nil
}

// assetFinding resolves an asset path against the asset root and
// returns a finding when it escapes the root or does not exist.
func assetFinding(assetDir, asset string, line *int) *domain.Finding {
	root, err := filepath.Abs(assetDir)
	if err != nil {
		return &domain.Finding{
			CheckKind: domain.CheckAsset,
			Severity:  domain.SeverityError,
			Line:      line,
			Detail:    fmt.Sprintf("cannot resolve asset directory %q: %s", assetDir, err),
		}
	}

	rel := strings.TrimPrefix(asset, "/")
	resolved := filepath.Join(root, filepath.FromSlash(rel))

	if resolved != root && !strings.HasPrefix(resolved, root+string(filepath.Separator)) {
		return &domain.Finding{
			CheckKind: domain.CheckAsset,
			Severity:  domain.SeverityError,
			Line:      line,
			Detail:    fmt.Sprintf("asset path %q escapes the asset directory", asset),
		}
	}

	if _, err := os.Stat(resolved); err != nil {
		return &domain.Finding{
			CheckKind: domain.CheckAsset,
			Severity:  domain.SeverityError,
			Line:      line,
			Detail:    fmt.Sprintf("asset %q does not resolve to an existing file", asset),
		}
	}

	return nil
}

func checkDescription(fields map[string]any) []domain.Finding {
	description, ok := fields[domain.FieldDescription].(string)
	if !ok {
		return nil
	}

	if length := utf8.RuneCountInString(description); length > maxDescriptionLength {
		return []domain.Finding{{
			CheckKind: domain.CheckSeo,
			Severity:  domain.SeverityWarning,
			Detail:    fmt.Sprintf("description is %d characters long, search engines truncate after %d", length, maxDescriptionLength),
		}}
	}
	return nil
}

func (self *checkService) checkLinks(ctx context.Context, body []byte, lineOffset int, input CheckInput) (findings []domain.Finding) {
	for _, link := range domain.ExtractLinks(body, lineOffset) {
		dest := link.Destination

		switch {
		case dest == "" || strings.HasPrefix(dest, "#") || strings.HasPrefix(dest, "mailto:"):
			continue

		case strings.HasPrefix(dest, "http://") || strings.HasPrefix(dest, "https://"):
			if !input.ExternalLinks || self.links == nil {
				continue
			}
			if err := self.links.Check(ctx, dest); err != nil {
				findings = append(findings, domain.Finding{
					CheckKind: domain.CheckLink,
					Severity:  domain.SeverityWarning,
					Line:      link.Line,
					Detail:    fmt.Sprintf("external link %q is unreachable: %s", dest, err),
				})
			}

		case strings.HasPrefix(dest, "/"):
			if link.Image {
				// Absolute image destinations are assets, not routes.
				if input.AssetDir != "" {
					if finding := assetFinding(input.AssetDir, dest, link.Line); finding != nil {
						findings = append(findings, *finding)
					}
				}
				continue
			}
			if input.Routes == nil {
				continue
			}
			if _, ok := input.Routes[domain.NormalizeRoute(dest)]; !ok {
				findings = append(findings, domain.Finding{
					CheckKind: domain.CheckLink,
					Severity:  domain.SeverityError,
					Line:      link.Line,
					Detail:    fmt.Sprintf("internal link %q does not match any route", dest),
				})
			}
		}
	}
	return
}

var knownFenceLanguages = map[string]struct{}{
	"bash": {}, "sh": {}, "shell": {}, "zsh": {}, "console": {},
	"yaml": {}, "yml": {}, "json": {}, "toml": {}, "ini": {},
	"dockerfile": {}, "docker": {},
	"go": {}, "golang": {},
	"js": {}, "javascript": {}, "ts": {}, "typescript": {},
	"python": {}, "py": {},
	"rego": {}, "hcl": {}, "cue": {},
	"sql": {}, "diff": {}, "makefile": {},
	"html": {}, "css": {}, "xml": {},
	"markdown": {}, "md": {},
	"text": {}, "plain": {}, "plaintext": {}, "txt": {},
	"rust": {}, "java": {}, "c": {}, "cpp": {}, "powershell": {},
}

func checkFences(body []byte, lineOffset int) (findings []domain.Finding) {
	for _, fence := range domain.ScanFences(body, lineOffset) {
		line := fence.Line

		if !fence.Closed {
			findings = append(findings, domain.Finding{
				CheckKind: domain.CheckFence,
				Severity:  domain.SeverityError,
				Line:      &line,
				Detail:    "code fence is never closed",
			})
		}

		if fence.Info == "" {
			findings = append(findings, domain.Finding{
				CheckKind: domain.CheckFence,
				Severity:  domain.SeverityWarning,
				Line:      &line,
				Detail:    "code fence has no language tag",
			})
		} else if _, ok := knownFenceLanguages[strings.ToLower(fence.Info)]; !ok {
			findings = append(findings, domain.Finding{
				CheckKind: domain.CheckFence,
				Severity:  domain.SeverityWarning,
				Line:      &line,
				Detail:    fmt.Sprintf("unknown code fence language %q", fence.Info),
			})
		}
	}
	return
}
