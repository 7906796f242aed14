package domain

import (
	"bufio"
	"bytes"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Link is a link or image destination found in a Markdown body.
type Link struct {
	Destination string
	Image       bool
	Line        *int
}

// The goldmark parser keeps internal state, so parsing is serialized.
var markdownMutex = &sync.Mutex{}
var markdown = goldmark.New()

// ExtractLinks walks the Markdown AST and collects every link, image and
// autolink destination. lineOffset is added to reported line numbers so
// they refer to the whole file rather than the body.
func ExtractLinks(body []byte, lineOffset int) []Link {
	markdownMutex.Lock()
	doc := markdown.Parser().Parse(text.NewReader(body))
	markdownMutex.Unlock()

	var links []Link
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Link:
			links = append(links, Link{
				Destination: string(node.Destination),
				Line:        lineOf(body, node.Destination, lineOffset),
			})
		case *ast.Image:
			links = append(links, Link{
				Destination: string(node.Destination),
				Image:       true,
				Line:        lineOf(body, node.Destination, lineOffset),
			})
		case *ast.AutoLink:
			url := node.URL(body)
			links = append(links, Link{
				Destination: string(url),
				Line:        lineOf(body, url, lineOffset),
			})
		}

		return ast.WalkContinue, nil
	})

	return links
}

// Inline nodes carry no line information,
// so the destination is located in the raw body instead.
func lineOf(body, needle []byte, lineOffset int) *int {
	if len(needle) == 0 {
		return nil
	}
	idx := bytes.Index(body, needle)
	if idx < 0 {
		return nil
	}
	line := bytes.Count(body[:idx], []byte("\n")) + 1 + lineOffset
	return &line
}

// Fence is one code fence opener found in a Markdown body.
type Fence struct {
	Line   int
	Info   string // declared language tag, empty if none
	Closed bool
}

// ScanFences finds every ``` or ~~~ fence and whether it is closed again.
// This works on raw lines instead of the AST: the parser silently closes
// unterminated fences at EOF, which is exactly the defect to report.
func ScanFences(body []byte, lineOffset int) []Fence {
	var fences []Fence
	open := -1
	var openMarker byte
	var openLength int

	line := lineOffset
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line++
		trimmed := strings.TrimLeft(strings.TrimRight(scanner.Text(), " \t\r"), " ")

		marker, length := fenceMarker(trimmed)
		if length < 3 {
			continue
		}

		info := strings.TrimSpace(trimmed[length:])

		if open < 0 {
			// CommonMark: the info string of a backtick fence must not contain backticks.
			if marker == '`' && strings.ContainsRune(info, '`') {
				continue
			}
			if fields := strings.Fields(info); len(fields) > 0 {
				info = fields[0]
			}
			fences = append(fences, Fence{Line: line, Info: info})
			open = len(fences) - 1
			openMarker = marker
			openLength = length
			continue
		}

		if marker == openMarker && length >= openLength && info == "" {
			fences[open].Closed = true
			open = -1
		}
	}

	return fences
}

func fenceMarker(line string) (marker byte, length int) {
	if line == "" {
		return 0, 0
	}
	marker = line[0]
	if marker != '`' && marker != '~' {
		return 0, 0
	}
	for length < len(line) && line[length] == marker {
		length++
	}
	return
}
