// Package route maps concrete request paths onto template paths.
package route

import (
	"strings"
)

// IDParam is the name of the path parameter inferred for templated paths.
const IDParam = "id"

// Route is the classification of one concrete path.
type Route struct {
	// Template is the grouping key, e.g. /users/{id}.
	Template string
	// ID is the concrete identifier segment when Templated is set.
	ID string
	// ResourceType names the resource addressed by the path.
	ResourceType string
	Templated    bool
}

// BodyName is the parameter name a JSON request body is recorded under.
func (r Route) BodyName() string {
	if r.ResourceType == "" {
		return "body"
	}
	return r.ResourceType
}

// Classifier strips a base path and templates collection/identifier pairs.
type Classifier struct {
	basePath string
}

// New returns a Classifier for paths under basePath.
func New(basePath string) *Classifier {
	return &Classifier{basePath: cleanBase(basePath)}
}

// BasePath returns the normalized base path, always without a trailing slash
// ("" for the root).
func (c *Classifier) BasePath() string { return c.basePath }

// Under reports whether path lies below the base path on a segment boundary.
func (c *Classifier) Under(path string) bool {
	if c.basePath == "" {
		return strings.HasPrefix(path, "/") || path == ""
	}
	if !strings.HasPrefix(path, c.basePath) {
		return false
	}
	rest := path[len(c.basePath):]
	return rest == "" || rest[0] == '/'
}

// Strip removes the base path, returning a path rooted at /.
func (c *Classifier) Strip(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if c.Under(path) {
		path = path[len(c.basePath):]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

// Classify derives the template, identifier and resource type for path.
func (c *Classifier) Classify(path string) Route {
	p := c.Strip(path)
	if collection, id, ok := splitPair(p); ok {
		return Route{
			Template:     "/" + collection + "/{" + IDParam + "}",
			ID:           id,
			ResourceType: singularize(collection),
			Templated:    true,
		}
	}
	return Route{
		Template:     p,
		ResourceType: strings.TrimPrefix(p, "/"),
	}
}

// splitPair matches exactly /<collection>/<identifier>.
func splitPair(p string) (string, string, bool) {
	parts := strings.Split(strings.TrimPrefix(p, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func singularize(name string) string {
	return strings.TrimSuffix(name, "s")
}

func cleanBase(base string) string {
	base = strings.TrimSpace(base)
	base = strings.TrimRight(base, "/")
	if base != "" && !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return base
}
