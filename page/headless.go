package page

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Headless is an in-memory Document. The host service keeps one per browser
// session and mirrors it to the browser shim; tests use it directly.
type Headless struct {
	mu   sync.Mutex
	root *node
	body *node
	head *node
	env  Environment

	// ScriptHook, when set, decides whether a script load succeeds.
	ScriptHook func(ctx context.Context, src string) error
	// SubmitHook, when set, decides whether a form submission succeeds.
	SubmitHook func(action string, fields map[string]string) error

	submissions []Submission
	navigations []string
}

// Submission records a submitted form.
type Submission struct {
	ID     string            `json:"id"`
	Action string            `json:"action"`
	Target string            `json:"target"`
	Fields map[string]string `json:"fields"`
}

// NodeSnapshot is a serializable copy of an element subtree.
type NodeSnapshot struct {
	Tag      string            `json:"tag"`
	Attrs    map[string]string `json:"attrs,omitempty"`
	Children []NodeSnapshot    `json:"children,omitempty"`
}

func NewHeadless(env Environment) *Headless {
	d := &Headless{env: env}
	d.root = d.newNode("html")
	d.head = d.newNode("head")
	d.body = d.newNode("body")
	d.root.appendLocked(d.head)
	d.root.appendLocked(d.body)
	return d
}

func (d *Headless) newNode(tag string) *node {
	return &node{doc: d, tag: strings.ToLower(tag), attrs: map[string]string{}}
}

func (d *Headless) CreateElement(tag string) Element {
	return d.newNode(tag)
}

func (d *Headless) Body() Element { return d.body }
func (d *Headless) Head() Element { return d.head }

func (d *Headless) Environment() Environment {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.env
}

// SetEnvironment replaces the environment reported by the browser shim.
func (d *Headless) SetEnvironment(env Environment) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.env = env
}

func (d *Headless) Query(selector string) Element {
	return d.root.Query(selector)
}

func (d *Headless) ElementByID(id string) Element {
	if id == "" {
		return nil
	}
	return d.root.Query("#" + id)
}

// Mount returns the element matching selector, creating it under body when
// the mirror does not have it yet. The shim calls it for containers that
// exist on the merchant page.
func (d *Headless) Mount(selector string) (Element, error) {
	if el := d.Query(selector); el != nil {
		return el, nil
	}
	sel := parseSelector(selector)
	if sel.invalid {
		return nil, fmt.Errorf("invalid selector %q", selector)
	}
	tag := sel.tag
	if tag == "" {
		tag = "div"
	}
	el := d.newNode(tag)
	if sel.id != "" {
		el.attrs["id"] = sel.id
	}
	if len(sel.classes) > 0 {
		el.attrs["class"] = strings.Join(sel.classes, " ")
	}
	for k, v := range sel.attrs {
		if v == "\x00" {
			v = ""
		}
		el.attrs[k] = v
	}
	d.body.AppendChild(el)
	return el, nil
}

func (d *Headless) LoadScript(ctx context.Context, parent, script Element) error {
	if parent == nil || script == nil {
		return fmt.Errorf("script and parent are required")
	}
	parent.AppendChild(script)
	if d.ScriptHook != nil {
		return d.ScriptHook(ctx, script.Attr("src"))
	}
	return ctx.Err()
}

func (d *Headless) SubmitForm(form Element) error {
	if form == nil || form.Tag() != "form" {
		return fmt.Errorf("element is not a form")
	}
	if form.Parent() == nil {
		return fmt.Errorf("form is not attached to the document")
	}
	fields := map[string]string{}
	for _, input := range form.QueryAll("input") {
		fields[input.Attr("name")] = input.Attr("value")
	}
	if d.SubmitHook != nil {
		if err := d.SubmitHook(form.Attr("action"), fields); err != nil {
			return err
		}
	}
	d.mu.Lock()
	d.submissions = append(d.submissions, Submission{
		ID:     form.ID(),
		Action: form.Attr("action"),
		Target: form.Attr("target"),
		Fields: fields,
	})
	d.mu.Unlock()
	return nil
}

func (d *Headless) Navigate(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.navigations = append(d.navigations, url)
}

func (d *Headless) Submissions() []Submission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Submission(nil), d.submissions...)
}

func (d *Headless) Navigations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.navigations...)
}

// Snapshot serializes the body subtree for the browser shim.
func (d *Headless) Snapshot() NodeSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.body.snapshotLocked()
}

// HeadSnapshot serializes the head subtree, where provider scripts live.
func (d *Headless) HeadSnapshot() NodeSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.head.snapshotLocked()
}

type node struct {
	doc      *Headless
	tag      string
	attrs    map[string]string
	parent   *node
	children []*node
}

func (n *node) ID() string  { return n.Attr("id") }
func (n *node) Tag() string { return n.tag }

func (n *node) Attr(name string) string {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return n.attrs[name]
}

func (n *node) SetAttr(name, value string) {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	n.attrs[name] = value
}

func (n *node) HasClass(name string) bool {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	return n.hasClassLocked(name)
}

func (n *node) hasClassLocked(name string) bool {
	for _, c := range strings.Fields(n.attrs["class"]) {
		if c == name {
			return true
		}
	}
	return false
}

func (n *node) AppendChild(child Element) {
	c, ok := child.(*node)
	if !ok || c.doc != n.doc {
		return
	}
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	c.detachLocked()
	n.appendLocked(c)
}

func (n *node) appendLocked(c *node) {
	c.parent = n
	n.children = append(n.children, c)
}

func (n *node) Children() []Element {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	out := make([]Element, 0, len(n.children))
	for _, c := range n.children {
		out = append(out, c)
	}
	return out
}

func (n *node) Parent() Element {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *node) Remove() {
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	n.detachLocked()
}

func (n *node) detachLocked() {
	p := n.parent
	if p == nil {
		return
	}
	for i, c := range p.children {
		if c == n {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	n.parent = nil
}

func (n *node) Query(selector string) Element {
	sel := parseSelector(selector)
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	var found *node
	n.walkLocked(func(c *node) bool {
		if sel.matches(c) {
			found = c
			return false
		}
		return true
	})
	if found == nil {
		return nil
	}
	return found
}

func (n *node) QueryAll(selector string) []Element {
	sel := parseSelector(selector)
	n.doc.mu.Lock()
	defer n.doc.mu.Unlock()
	var out []Element
	n.walkLocked(func(c *node) bool {
		if sel.matches(c) {
			out = append(out, c)
		}
		return true
	})
	return out
}

// walkLocked visits descendants depth-first, excluding n itself.
func (n *node) walkLocked(visit func(*node) bool) bool {
	for _, c := range n.children {
		if !visit(c) {
			return false
		}
		if !c.walkLocked(visit) {
			return false
		}
	}
	return true
}

func (n *node) snapshotLocked() NodeSnapshot {
	s := NodeSnapshot{Tag: n.tag}
	if len(n.attrs) > 0 {
		s.Attrs = make(map[string]string, len(n.attrs))
		keys := make([]string, 0, len(n.attrs))
		for k := range n.attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			s.Attrs[k] = n.attrs[k]
		}
	}
	for _, c := range n.children {
		s.Children = append(s.Children, c.snapshotLocked())
	}
	return s
}
