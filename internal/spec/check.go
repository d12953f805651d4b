package spec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ThalitaPinheiro/defacto/internal/schema"
)

// CheckExamples validates every stored response example against the schema
// inferred for its status code. Since schemas only widen, a failure points at
// a document edited by hand or produced by another tool.
func (d *Document) CheckExamples() []error {
	var errs []error
	templates := make([]string, 0, len(d.Paths))
	for t := range d.Paths {
		templates = append(templates, t)
	}
	sort.Strings(templates)

	for _, template := range templates {
		item := d.Paths[template]
		methods := make([]string, 0, len(item))
		for m := range item {
			methods = append(methods, m)
		}
		sort.Strings(methods)
		for _, method := range methods {
			op := item[method]
			codes := make([]string, 0, len(op.Responses))
			for c := range op.Responses {
				codes = append(codes, c)
			}
			sort.Strings(codes)
			for _, code := range codes {
				r := op.Responses[code]
				ex, ok := r.Examples[MimeJSON]
				if !ok || r.Schema == nil {
					continue
				}
				v, err := schema.Decode(ex)
				if err == nil {
					err = r.Schema.Accepts(v)
				}
				if err != nil {
					errs = append(errs, fmt.Errorf("%s %s %s: %w", strings.ToUpper(method), template, code, err))
				}
			}
		}
	}
	return errs
}
