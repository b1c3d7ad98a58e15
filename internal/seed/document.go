package seed

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// maxDocumentSize bounds how much of a documentation file is read.
const maxDocumentSize = 1 << 20

var (
	usernamePattern = regexp.MustCompile(`(?im)^\W*(?:user(?:name)?|login|e-?mail)\s*[:=]\s*` + "`?" + `([^\s` + "`" + `]+)`)
	passwordPattern = regexp.MustCompile(`(?im)^\W*pass(?:word)?\s*[:=]\s*` + "`?" + `([^\s` + "`" + `]+)`)
	pathPattern     = regexp.MustCompile(`^/[A-Za-z0-9._~/-]*$`)
)

// FromFile reads a documentation file and extracts a seed from it.
func FromFile(path string) (*Seed, error) {
	f, err := os.Open(path) //nolint:gosec // path is operator-supplied
	if err != nil {
		return nil, fmt.Errorf("failed to open documentation: %w", err)
	}
	defer f.Close()
	return FromDocument(f)
}

// FromDocument extracts a seed from Markdown or plain-text documentation.
//
// The first absolute http(s) URL becomes the target. Further URLs on the
// same host and code spans that look like paths ("`/settings`") become hint
// pages. "username:" and "password:" lines become credentials. List items
// under a heading that mentions features become feature hints.
func FromDocument(r io.Reader) (*Seed, error) {
	src, err := io.ReadAll(io.LimitReader(r, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read documentation: %w", err)
	}

	s := &Seed{}
	if m := usernamePattern.FindSubmatch(src); m != nil {
		s.Credentials.Username = string(m[1])
	}
	if m := passwordPattern.FindSubmatch(src); m != nil {
		s.Credentials.Password = string(m[1])
	}

	md := goldmark.New(goldmark.WithExtensions(extension.Linkify))
	doc := md.Parser().Parse(text.NewReader(src))

	var (
		urls         []string
		paths        []string
		inFeatures   bool
		featureLevel int
	)
	walkErr := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			title := strings.ToLower(plainText(node, src))
			switch {
			case strings.Contains(title, "feature"):
				inFeatures, featureLevel = true, node.Level
			case inFeatures && node.Level <= featureLevel:
				inFeatures = false
			}
		case *ast.ListItem:
			if inFeatures {
				if feature := firstLine(plainText(node, src)); feature != "" {
					s.Features = append(s.Features, feature)
				}
			}
		case *ast.Link:
			urls = append(urls, string(node.Destination))
		case *ast.AutoLink:
			urls = append(urls, string(node.URL(src)))
		case *ast.CodeSpan:
			if p := plainText(node, src); pathPattern.MatchString(p) {
				paths = append(paths, p)
			}
		}
		return ast.WalkContinue, nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to parse documentation: %w", walkErr)
	}

	var host string
	for _, raw := range urls {
		u, err := url.Parse(strings.TrimRight(raw, ".,;)"))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}
		if s.TargetURL == "" {
			root := url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}
			s.TargetURL = root.String()
			host = strings.ToLower(u.Host)
		}
		if strings.EqualFold(u.Host, host) && u.Path != "" && u.Path != "/" {
			s.HintPages = append(s.HintPages, u.String())
		}
	}
	s.HintPages = union(s.HintPages, paths)
	s.Features = union(s.Features, nil)

	return s, nil
}

// plainText concatenates the text segments below n.
func plainText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(t.Value)
		case *ast.AutoLink:
			buf.Write(t.URL(src))
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
