package spec

import (
	"encoding/json"
	"strings"

	"github.com/ThalitaPinheiro/defacto/internal/schema"
)

// Swagger 2.0 document model built up from observed exchanges.

const (
	SwaggerVersion = "2.0"
	MimeJSON       = "application/json"
)

// Location is where a parameter was observed.
type Location string

const (
	InQuery Location = "query"
	InPath  Location = "path"
	InBody  Location = "body"
)

type Document struct {
	Swagger string              `json:"swagger"`
	Paths   map[string]PathItem `json:"paths"`
}

// PathItem maps a lowercased HTTP method to its operation.
type PathItem map[string]*Operation

type Operation struct {
	Parameters []*Parameter         `json:"parameters"`
	Responses  map[string]*Response `json:"responses"`
	Consumes   []string             `json:"consumes"`
	Produces   []string             `json:"produces"`
}

// Parameter carries Type for query and path locations and Schema for body.
type Parameter struct {
	Name   string         `json:"name"`
	In     Location       `json:"in"`
	Type   schema.TypeSet `json:"type,omitempty"`
	Schema *schema.Schema `json:"schema,omitempty"`
}

type Response struct {
	Schema   *schema.Schema             `json:"schema"`
	Examples map[string]json.RawMessage `json:"examples"`
}

// Exchange is one matched request paired with its completed response.
type Exchange struct {
	Method       string
	Path         string
	RawQuery     string
	RequestBody  []byte
	Status       int
	ResponseBody []byte
}

// New returns an empty document.
func New() *Document {
	return &Document{Swagger: SwaggerVersion, Paths: map[string]PathItem{}}
}

// Operation returns the operation for template and method, if recorded.
func (d *Document) Operation(template, method string) (*Operation, bool) {
	item, ok := d.Paths[template]
	if !ok {
		return nil, false
	}
	op, ok := item[strings.ToLower(method)]
	return op, ok
}

func (d *Document) ensureOperation(template, method string) *Operation {
	if d.Paths == nil {
		d.Paths = map[string]PathItem{}
	}
	item, ok := d.Paths[template]
	if !ok {
		item = PathItem{}
		d.Paths[template] = item
	}
	method = strings.ToLower(method)
	op, ok := item[method]
	if !ok {
		op = &Operation{
			Parameters: []*Parameter{},
			Responses:  map[string]*Response{},
			Consumes:   []string{MimeJSON},
			Produces:   []string{MimeJSON},
		}
		item[method] = op
	}
	return op
}

// Parameter returns the parameter with the given name.
func (o *Operation) Parameter(name string) (*Parameter, bool) {
	for _, p := range o.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	out := &Document{Swagger: d.Swagger, Paths: make(map[string]PathItem, len(d.Paths))}
	for template, item := range d.Paths {
		cp := make(PathItem, len(item))
		for method, op := range item {
			cp[method] = op.clone()
		}
		out.Paths[template] = cp
	}
	return out
}

func (o *Operation) clone() *Operation {
	out := &Operation{
		Parameters: make([]*Parameter, 0, len(o.Parameters)),
		Responses:  make(map[string]*Response, len(o.Responses)),
		Consumes:   append([]string(nil), o.Consumes...),
		Produces:   append([]string(nil), o.Produces...),
	}
	for _, p := range o.Parameters {
		out.Parameters = append(out.Parameters, &Parameter{
			Name:   p.Name,
			In:     p.In,
			Type:   append(schema.TypeSet(nil), p.Type...),
			Schema: p.Schema.Clone(),
		})
	}
	for code, r := range o.Responses {
		examples := make(map[string]json.RawMessage, len(r.Examples))
		for mime, ex := range r.Examples {
			examples[mime] = append(json.RawMessage(nil), ex...)
		}
		out.Responses[code] = &Response{Schema: r.Schema.Clone(), Examples: examples}
	}
	return out
}
