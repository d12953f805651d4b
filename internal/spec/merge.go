package spec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/ThalitaPinheiro/defacto/internal/route"
	"github.com/ThalitaPinheiro/defacto/internal/schema"
)

// ErrSkipped marks an exchange that was not recorded because its response
// body is not JSON. The document is left untouched.
var ErrSkipped = errors.New("spec: exchange skipped")

// ConflictPolicy decides what happens when a parameter name shows up under a
// location other than the one first recorded for it.
type ConflictPolicy int

const (
	// ConflictReport keeps the first location, reports the clash in
	// Result.Conflicts and records the rest of the exchange.
	ConflictReport ConflictPolicy = iota
	// ConflictReject refuses the whole exchange with a *ConflictError.
	ConflictReject
)

// ConflictError describes a parameter observed under two locations.
type ConflictError struct {
	Template string
	Method   string
	Name     string
	Existing Location
	Observed Location
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("spec: parameter %q of %s %s in both %s and %s",
		e.Name, strings.ToUpper(e.Method), e.Template, e.Existing, e.Observed)
}

// Result summarizes what Apply did with an exchange.
type Result struct {
	Route     route.Route
	Method    string
	Conflicts []*ConflictError
	// BodyRecorded is set when the request body parsed as JSON.
	BodyRecorded bool
}

// ApplyOption configures Apply.
type ApplyOption func(*applyConfig)

type applyConfig struct {
	policy ConflictPolicy
}

// WithConflictPolicy selects how parameter location clashes are handled.
func WithConflictPolicy(p ConflictPolicy) ApplyOption {
	return func(c *applyConfig) { c.policy = p }
}

type sample struct {
	name  string
	in    Location
	value schema.Value
}

// Apply merges one exchange into the document.
//
// Exchanges whose response body is not JSON return an error wrapping
// ErrSkipped. Under ConflictReject a location clash returns a *ConflictError
// and the document is not modified.
func (d *Document) Apply(ex Exchange, c *route.Classifier, opts ...ApplyOption) (Result, error) {
	cfg := applyConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	body, err := schema.Decode(ex.ResponseBody)
	if err != nil {
		return Result{}, fmt.Errorf("%w: response: %v", ErrSkipped, err)
	}

	method := strings.ToLower(strings.TrimSpace(ex.Method))
	if method == "" {
		method = "get"
	}
	res := Result{Route: c.Classify(ex.Path), Method: method}

	samples := querySamples(ex.RawQuery)
	if res.Route.Templated {
		samples = append(samples, sample{name: route.IDParam, in: InPath, value: schema.String(res.Route.ID)})
	}
	if reqBody, err := schema.Decode(ex.RequestBody); err == nil {
		samples = append(samples, sample{name: res.Route.BodyName(), in: InBody, value: reqBody})
		res.BodyRecorded = true
	}

	res.Conflicts = d.conflicts(res.Route.Template, method, samples)
	if cfg.policy == ConflictReject && len(res.Conflicts) > 0 {
		return res, res.Conflicts[0]
	}

	op := d.ensureOperation(res.Route.Template, method)
	for _, s := range samples {
		op.mergeParameter(s)
	}
	op.mergeResponse(ex.Status, body, ex.ResponseBody)
	return res, nil
}

// conflicts walks the samples in merge order against the recorded parameters.
func (d *Document) conflicts(template, method string, samples []sample) []*ConflictError {
	seen := map[string]Location{}
	if op, ok := d.Operation(template, method); ok {
		for _, p := range op.Parameters {
			seen[p.Name] = p.In
		}
	}
	var out []*ConflictError
	for _, s := range samples {
		loc, ok := seen[s.name]
		if !ok {
			seen[s.name] = s.in
			continue
		}
		if loc != s.in {
			out = append(out, &ConflictError{
				Template: template,
				Method:   method,
				Name:     s.name,
				Existing: loc,
				Observed: s.in,
			})
		}
	}
	return out
}

func (o *Operation) mergeParameter(s sample) {
	p, ok := o.Parameter(s.name)
	if !ok {
		p = &Parameter{Name: s.name, In: s.in}
		if s.in == InBody {
			p.Schema = &schema.Schema{}
		}
		o.Parameters = append(o.Parameters, p)
	}

	if p.In != s.in {
		// First location wins. Query and path samples still widen each
		// other's type; anything involving a body is dropped.
		if p.In != InBody && s.in != InBody {
			p.Type = p.Type.Add(s.value.Kind())
		}
		return
	}

	if p.In == InBody {
		if p.Schema == nil {
			p.Schema = &schema.Schema{}
		}
		p.Schema.Merge(s.value)
		return
	}
	p.Type = p.Type.Add(s.value.Kind())
}

func (o *Operation) mergeResponse(status int, body schema.Value, raw []byte) {
	code := strconv.Itoa(status)
	r, ok := o.Responses[code]
	if !ok {
		r = &Response{
			Schema:   &schema.Schema{},
			Examples: map[string]json.RawMessage{MimeJSON: compact(raw)},
		}
		o.Responses[code] = r
	}
	if r.Schema == nil {
		r.Schema = &schema.Schema{}
	}
	r.Schema.Merge(body)
}

func compact(raw []byte) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return append(json.RawMessage(nil), bytes.TrimSpace(raw)...)
	}
	return buf.Bytes()
}

// querySamples parses a raw query string keeping first-seen name order. A
// name given once is a string sample, a repeated name an array of strings.
func querySamples(rawQuery string) []sample {
	var order []string
	values := map[string][]string{}
	for rawQuery != "" {
		var pair string
		pair, rawQuery, _ = strings.Cut(rawQuery, "&")
		if pair == "" || strings.Contains(pair, ";") {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			continue
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			continue
		}
		if _, ok := values[key]; !ok {
			order = append(order, key)
		}
		values[key] = append(values[key], val)
	}

	out := make([]sample, 0, len(order))
	for _, name := range order {
		vs := values[name]
		var v schema.Value = schema.String(vs[0])
		if len(vs) > 1 {
			arr := make(schema.Array, 0, len(vs))
			for _, s := range vs {
				arr = append(arr, schema.String(s))
			}
			v = arr
		}
		out = append(out, sample{name: name, in: InQuery, value: v})
	}
	return out
}
