// Package htmlx extracts form data from vendor HTML pages. Every lookup
// returns a Result instead of an error so the caller decides, per field,
// whether a missing value is fatal or gets a default.
package htmlx

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Result is a tagged lookup result.
type Result struct {
	Value string
	Found bool
}

// Found wraps a present value.
func Found(v string) Result { return Result{Value: v, Found: true} }

// NotFound is the empty result.
var NotFound = Result{}

// Or returns the value, or def when nothing was found.
func (r Result) Or(def string) string {
	if !r.Found {
		return def
	}
	return r.Value
}

// Document is a parsed page.
type Document struct {
	root *html.Node
}

// Parse never fails on malformed markup; the html tokenizer recovers the
// same way a browser does. A nil document is returned only for read
// errors, which cannot happen on an in-memory body.
func Parse(body []byte) *Document {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		root = &html.Node{Type: html.DocumentNode}
	}
	return &Document{root: root}
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func (d *Document) find(match func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

func (d *Document) findAll(match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	walk(d.root, func(n *html.Node) bool {
		if n.Type == html.ElementNode && match(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

func named(a atom.Atom, name string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.DataAtom != a {
			return false
		}
		v, ok := attr(n, "name")
		return ok && v == name
	}
}

// InputValue returns the value of the first <input> with the given name.
func (d *Document) InputValue(name string) Result {
	n := d.find(named(atom.Input, name))
	if n == nil {
		return NotFound
	}
	v, _ := attr(n, "value")
	return Found(v)
}

// Field is a name/value pair from a form.
type Field struct {
	Name  string
	Value string
}

// HiddenInputs returns every named hidden input in document order.
func (d *Document) HiddenInputs() []Field {
	nodes := d.findAll(func(n *html.Node) bool {
		if n.DataAtom != atom.Input {
			return false
		}
		typ, _ := attr(n, "type")
		_, hasName := attr(n, "name")
		return strings.EqualFold(typ, "hidden") && hasName
	})
	fields := make([]Field, 0, len(nodes))
	for _, n := range nodes {
		name, _ := attr(n, "name")
		v, _ := attr(n, "value")
		fields = append(fields, Field{Name: name, Value: v})
	}
	return fields
}

// FirstOption returns the first non-empty option value of the named
// <select>.
func (d *Document) FirstOption(selectName string) Result {
	sel := d.find(named(atom.Select, selectName))
	if sel == nil {
		return NotFound
	}
	var res Result
	walk(sel, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != atom.Option {
			return true
		}
		v, ok := attr(n, "value")
		if !ok {
			v = strings.TrimSpace(text(n))
		}
		if v == "" {
			return true
		}
		res = Found(v)
		return false
	})
	return res
}

// HasSelect reports whether a <select> with the given name exists.
func (d *Document) HasSelect(name string) bool {
	return d.find(named(atom.Select, name)) != nil
}

// FormAction returns the action of the first form containing the named
// field, or of the first form when field is empty.
func (d *Document) FormAction(field string) Result {
	form := d.find(func(n *html.Node) bool {
		if n.DataAtom != atom.Form {
			return false
		}
		if field == "" {
			return true
		}
		var has bool
		walk(n, func(c *html.Node) bool {
			if c.Type == html.ElementNode {
				if v, ok := attr(c, "name"); ok && v == field {
					has = true
					return false
				}
			}
			return true
		})
		return has
	})
	if form == nil {
		return NotFound
	}
	v, ok := attr(form, "action")
	if !ok || strings.TrimSpace(v) == "" {
		return NotFound
	}
	return Found(strings.TrimSpace(v))
}

// HasLoginForm reports whether the page is a login page: a form whose
// action points at the login handler together with a password input.
func (d *Document) HasLoginForm(loginPath string) bool {
	form := d.find(func(n *html.Node) bool {
		if n.DataAtom != atom.Form {
			return false
		}
		action, _ := attr(n, "action")
		return strings.Contains(strings.ToLower(action), strings.ToLower(loginPath))
	})
	if form == nil {
		return false
	}
	pw := d.find(func(n *html.Node) bool {
		typ, _ := attr(n, "type")
		return n.DataAtom == atom.Input && strings.EqualFold(typ, "password")
	})
	return pw != nil
}

// Scripts returns the text of every inline <script>.
func (d *Document) Scripts() []string {
	var out []string
	for _, n := range d.findAll(func(n *html.Node) bool { return n.DataAtom == atom.Script }) {
		if s := text(n); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func text(n *html.Node) string {
	var b strings.Builder
	walk(n, func(c *html.Node) bool {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
		return true
	})
	return b.String()
}

// ScriptVar finds a numeric assignment such as `clubId: "123"` or
// `clubId = 123` inside inline scripts.
func (d *Document) ScriptVar(name string) Result {
	re := regexp.MustCompile(regexp.QuoteMeta(name) + `["']?\s*[:=]\s*["']?(\d+)`)
	for _, s := range d.Scripts() {
		if m := re.FindStringSubmatch(s); m != nil {
			return Found(m[1])
		}
	}
	return NotFound
}
