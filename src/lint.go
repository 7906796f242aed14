package prepress

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/siteworks/prepress/src/application/service"
	"github.com/siteworks/prepress/src/domain"
	"github.com/siteworks/prepress/src/util"
)

type LintCmd struct {
	Paths []string `arg:"positional,required" help:"markdown files or directories to check"`

	Assets        string `arg:"--assets" help:"directory that absolute asset references resolve against"`
	Routes        string `arg:"--routes" help:"file with one known internal route per line"`
	Schema        string `arg:"--schema" help:"file with a CUE schema that front matter must satisfy"`
	ExternalLinks bool   `arg:"--external-links" help:"probe external links over HTTP"`
}

func (cmd LintCmd) Run(logger *zerolog.Logger) error {
	schema := service.DefaultFrontMatterSchema
	if cmd.Schema != "" {
		if buf, err := os.ReadFile(cmd.Schema); err != nil {
			return errors.WithMessagef(err, "Could not read schema file %q", cmd.Schema)
		} else {
			schema = util.CUEString(buf)
		}
	}

	routes, err := cmd.readRoutes()
	if err != nil {
		return err
	}

	checkService, err := service.NewCheckService(schema, service.NewLinkService(logger), logger)
	if err != nil {
		return err
	}

	files, err := cmd.collectFiles()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("No markdown files found")
	}

	numErrors := 0
	for _, file := range files {
		raw, err := os.ReadFile(file)
		if err != nil {
			return errors.WithMessagef(err, "Could not read %q", file)
		}

		findings := checkService.Validate(context.Background(), service.CheckInput{
			Path:          file,
			Raw:           raw,
			AssetDir:      cmd.Assets,
			Routes:        routes,
			ExternalLinks: cmd.ExternalLinks,
		})

		for _, finding := range findings {
			fmt.Printf("%s:%s\n", file, finding)
			if finding.Severity == domain.SeverityError {
				numErrors += 1
			}
		}
	}

	if numErrors > 0 {
		return fmt.Errorf("%d error(s) in %d file(s)", numErrors, len(files))
	}
	return nil
}

// A nil set disables internal link checking entirely,
// so a missing --routes flag must not yield an empty map.
func (cmd LintCmd) readRoutes() (map[string]struct{}, error) {
	if cmd.Routes == "" {
		return nil, nil
	}

	file, err := os.Open(cmd.Routes)
	if err != nil {
		return nil, errors.WithMessagef(err, "Could not read routes file %q", cmd.Routes)
	}
	defer file.Close()

	routes := map[string]struct{}{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		routes[domain.NormalizeRoute(line)] = struct{}{}
	}
	return routes, scanner.Err()
}

func (cmd LintCmd) collectFiles() ([]string, error) {
	var files []string
	for _, path := range cmd.Paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}

		if !info.IsDir() {
			files = append(files, path)
			continue
		}

		if err := filepath.WalkDir(path, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if entry.IsDir() {
				if strings.HasPrefix(entry.Name(), ".") && entry.Name() != "." {
					return fs.SkipDir
				}
				return nil
			}
			switch strings.ToLower(filepath.Ext(path)) {
			case ".md", ".mdx":
				files = append(files, path)
			}
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return files, nil
}
