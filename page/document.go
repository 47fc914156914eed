// Package page abstracts the merchant page the flows render into: elements,
// hidden forms and frames, provider scripts and top-level navigation.
package page

import "context"

// Element is a node of the merchant page.
type Element interface {
	ID() string
	Tag() string
	Attr(name string) string
	SetAttr(name, value string)
	HasClass(name string) bool
	AppendChild(child Element)
	Children() []Element
	Parent() Element
	// Remove detaches the element from its parent. Removing a detached
	// element is a no-op.
	Remove()
	Query(selector string) Element
	QueryAll(selector string) []Element
}

// Environment describes the browser the page runs in.
type Environment struct {
	UserAgent      string `json:"user_agent"`
	Language       string `json:"language"`
	ScreenWidth    int    `json:"screen_width"`
	ScreenHeight   int    `json:"screen_height"`
	ColorDepth     int    `json:"color_depth"`
	TimezoneOffset int    `json:"timezone_offset"`
}

// Document is the page a flow drives.
type Document interface {
	Query(selector string) Element
	ElementByID(id string) Element
	CreateElement(tag string) Element
	Body() Element
	Head() Element
	// LoadScript attaches script to parent and waits until it loaded.
	LoadScript(ctx context.Context, parent, script Element) error
	SubmitForm(form Element) error
	Navigate(url string)
	Environment() Environment
}
