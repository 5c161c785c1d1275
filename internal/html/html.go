// Package html renders the HTML shell that references the bundled assets.
//
// The template is executed with html/template and the result is then parsed
// so that any asset the template did not reference itself can be injected
// into <head>.
package html

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"maps"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const defaultTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{ .Title }}</title>
</head>
<body>
</body>
</html>
`

// DefaultTitle is used when no title is configured.
const DefaultTitle = "Sitepack App"

type Options struct {
	// Template path, the built-in shell is used when it does not exist
	Template string
	Title    string
	Mode     string

	Scripts  []string
	Styles   []string
	Preloads []string
	// Load scripts as ES modules rather than deferred classic scripts
	Module bool

	// Inline scripts appended to <head>
	InlineScripts []string

	Funcs template.FuncMap
}

type templateData struct {
	Title    string
	Mode     string
	Scripts  []string
	Styles   []string
	Preloads []string
}

// Render executes the template and injects the asset references.
func Render(opts Options) ([]byte, error) {
	tmpl, err := parseTemplate(opts)
	if err != nil {
		return nil, err
	}

	title := opts.Title
	if title == "" {
		title = DefaultTitle
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, templateData{
		Title:    title,
		Mode:     opts.Mode,
		Scripts:  opts.Scripts,
		Styles:   opts.Styles,
		Preloads: opts.Preloads,
	}); err != nil {
		return nil, fmt.Errorf("failed to render template: %w", err)
	}

	return Inject(buf.Bytes(), opts)
}

func parseTemplate(opts Options) (*template.Template, error) {
	funcs := template.FuncMap{
		"marshal": marshal,
		"safe": func(s string) template.HTML {
			return template.HTML(s) //nolint:gosec
		},
	}

	// Merge custom functions
	maps.Copy(funcs, opts.Funcs)

	text := defaultTemplate
	name := "default"
	if opts.Template != "" {
		data, err := os.ReadFile(opts.Template)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			log.Debug().Str("template", opts.Template).Msg("Template not found, using default shell")
		case err != nil:
			return nil, fmt.Errorf("failed to read template: %w", err)
		default:
			text = string(data)
			name = opts.Template
		}
	}

	tmpl, err := template.New(name).Funcs(funcs).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	return tmpl, nil
}

// Inject adds link and script elements for every asset in opts that the
// document does not already reference.
func Inject(document []byte, opts Options) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	head := findElement(doc, atom.Head)
	if head == nil {
		// html.Parse always synthesizes a head
		return nil, errors.New("html document has no head element")
	}

	refs := references(doc)

	for _, href := range opts.Styles {
		if refs[normalizeRef(href)] {
			continue
		}
		head.AppendChild(element(atom.Link, "rel", "stylesheet", "href", href))
	}

	for _, href := range opts.Preloads {
		if refs[normalizeRef(href)] {
			continue
		}
		head.AppendChild(element(atom.Link, "rel", "modulepreload", "href", href))
	}

	for _, src := range opts.Scripts {
		if refs[normalizeRef(src)] {
			continue
		}
		if opts.Module {
			head.AppendChild(element(atom.Script, "type", "module", "src", src))
		} else {
			head.AppendChild(element(atom.Script, "defer", "", "src", src))
		}
	}

	for _, code := range opts.InlineScripts {
		script := element(atom.Script)
		script.AppendChild(&html.Node{Type: html.TextNode, Data: code})
		head.AppendChild(script)
	}

	out := new(bytes.Buffer)
	if err := html.Render(out, doc); err != nil {
		return nil, fmt.Errorf("failed to render html: %w", err)
	}
	return out.Bytes(), nil
}

func element(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

// references collects script src and link href values.
func references(doc *html.Node) map[string]bool {
	refs := map[string]bool{}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, attr := range n.Attr {
				switch {
				case n.DataAtom == atom.Script && attr.Key == "src",
					n.DataAtom == atom.Link && attr.Key == "href":
					refs[normalizeRef(attr.Val)] = true
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return refs
}

// normalizeRef makes "./a.js", "/a.js" and "a.js?v=1" compare equal. URLs
// with a scheme or host are compared as written.
func normalizeRef(ref string) string {
	ref = strings.TrimSpace(ref)
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ref
	}
	if u.Path == "" {
		return ref
	}
	return strings.TrimPrefix(path.Clean("/"+u.Path), "/")
}

func marshal(value any) string {
	buf := new(bytes.Buffer)

	if err := json.NewEncoder(buf).Encode(value); err != nil {
		panic(errors.New("context can only be json serializable"))
	}

	return buf.String()
}
