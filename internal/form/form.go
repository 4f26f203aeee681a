// Package form models the custom forms players fill in and tracks the forms
// that are waiting for an answer.
package form

import "encoding/json"

// Element is one field of a custom form.
type Element interface {
	json.Marshaler
	elementType() string
}

// Input is a free text field.
type Input struct {
	Text        string
	Placeholder string
	Default     string
}

func (Input) elementType() string { return "input" }

// MarshalJSON implements json.Marshaler.
func (e Input) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		Placeholder string `json:"placeholder"`
		Default     string `json:"default"`
	}{e.elementType(), e.Text, e.Placeholder, e.Default})
}

// Dropdown lets the player choose one of Options. Default is an index.
type Dropdown struct {
	Text    string
	Options []string
	Default int
}

func (Dropdown) elementType() string { return "dropdown" }

// MarshalJSON implements json.Marshaler.
func (e Dropdown) MarshalJSON() ([]byte, error) {
	options := e.Options
	if options == nil {
		options = []string{}
	}
	return json.Marshal(struct {
		Type    string   `json:"type"`
		Text    string   `json:"text"`
		Options []string `json:"options"`
		Default int      `json:"default"`
	}{e.elementType(), e.Text, options, e.Default})
}

// Toggle is an on/off switch.
type Toggle struct {
	Text    string
	Default bool
}

func (Toggle) elementType() string { return "toggle" }

// MarshalJSON implements json.Marshaler.
func (e Toggle) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Text    string `json:"text"`
		Default bool   `json:"default"`
	}{e.elementType(), e.Text, e.Default})
}

// Custom is a form with a title and an ordered list of elements. The answer
// to a custom form is a JSON array with one value per element, in order.
type Custom struct {
	Title    string
	Elements []Element
}

// NewCustom returns a custom form with the elements in the given order.
func NewCustom(title string, elements ...Element) Custom {
	return Custom{Title: title, Elements: elements}
}

// MarshalJSON encodes the form in the custom_form layout clients render.
func (c Custom) MarshalJSON() ([]byte, error) {
	content := c.Elements
	if content == nil {
		content = []Element{}
	}
	return json.Marshal(struct {
		Type    string    `json:"type"`
		Title   string    `json:"title"`
		Content []Element `json:"content"`
	}{"custom_form", c.Title, content})
}

// Decoded is the client-side view of a custom form, as parsed from its JSON.
type Decoded struct {
	Type    string           `json:"type"`
	Title   string           `json:"title"`
	Content []DecodedElement `json:"content"`
}

// DecodedElement is one element of a Decoded form. Default is kept raw since
// its type depends on the element type.
type DecodedElement struct {
	Type        string          `json:"type"`
	Text        string          `json:"text"`
	Placeholder string          `json:"placeholder,omitempty"`
	Options     []string        `json:"options,omitempty"`
	Default     json.RawMessage `json:"default,omitempty"`
}

// Decode parses a form sent by the server.
func Decode(data []byte) (Decoded, error) {
	var d Decoded
	err := json.Unmarshal(data, &d)
	return d, err
}

// Defaults answers every element with its prefilled value. Elements without a
// usable default get the zero value of their answer type.
func (d Decoded) Defaults() *Response {
	r := &Response{values: make([]json.RawMessage, len(d.Content))}
	for i, e := range d.Content {
		var zero interface{}
		switch e.Type {
		case "input":
			zero = ""
		case "dropdown":
			zero = 0
		case "toggle":
			zero = false
		}
		r.values[i] = json.RawMessage("null")
		if b, err := json.Marshal(zero); err == nil {
			r.values[i] = b
		}
		if len(e.Default) > 0 && string(e.Default) != "null" {
			r.values[i] = e.Default
		}
	}
	return r
}
