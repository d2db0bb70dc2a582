// Package catalog contains the per-client result of evaluating a manifest, and the facts a
// client supplies to parameterize that evaluation.
package catalog

import (
	"fmt"
	"slices"
	"strconv"
)

// Facts describe the calling node. Keys such as "hostname" and "ipaddress" are reported by the
// agent on every request. Values are whatever the agent's serialization produced: strings,
// numbers, booleans, or nested lists and maps.
type Facts map[string]any

// Well-known fact names
const (
	FactHostname  = "hostname"
	FactIPAddress = "ipaddress"
)

// Hostname returns the "hostname" fact, or an empty string.
func (f Facts) Hostname() string {
	s, _ := f.Value(FactHostname)
	return s
}

// IPAddress returns the "ipaddress" fact, or an empty string.
func (f Facts) IPAddress() string {
	s, _ := f.Value(FactIPAddress)
	return s
}

// Value returns the named fact in its string form. A nil value is reported as absent.
func (f Facts) Value(name string) (string, bool) {
	v, ok := f[name]
	if !ok || v == nil {
		return "", false
	}
	return FormatValue(v), true
}

// FormatValue renders a decoded scalar the way manifests interpolate it. Floats with no
// fractional part print without a decimal point, so a JSON 4 and a YAML 4 both become "4".
func FormatValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}

// Clone returns a shallow copy of the facts.
func (f Facts) Clone() Facts {
	if f == nil {
		return nil
	}
	out := make(Facts, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Resource is a single managed entity, identified by type and title.
type Resource struct {
	Type   string         `yaml:"type"             json:"type"             cbor:"type"`
	Title  string         `yaml:"title"            json:"title"            cbor:"title"`
	Params map[string]any `yaml:"params,omitempty" json:"params,omitempty" cbor:"params,omitempty"`
	// Class is the class that declared the resource, empty for top-level and node resources.
	Class string `yaml:"class,omitempty" json:"class,omitempty" cbor:"class,omitempty"`
}

// Ref returns the resource reference, e.g. "file[/etc/motd]".
func (r Resource) Ref() string {
	return fmt.Sprintf("%s[%s]", r.Type, r.Title)
}

// Catalog is the compiled configuration for one client.
type Catalog struct {
	Name      string     `yaml:"name"      json:"name"      cbor:"name"`
	Resources []Resource `yaml:"resources" json:"resources" cbor:"resources"`
	Classes   []string   `yaml:"classes"   json:"classes"   cbor:"classes"`
}

// New creates an empty catalog for the named client.
func New(name string) *Catalog {
	return &Catalog{
		Name:      name,
		Resources: []Resource{},
		Classes:   []string{},
	}
}

// Add appends a resource to the catalog.
func (c *Catalog) Add(r Resource) {
	c.Resources = append(c.Resources, r)
}

// Resource looks up a resource by type and title.
func (c *Catalog) Resource(typ, title string) (Resource, bool) {
	for _, r := range c.Resources {
		if r.Type == typ && r.Title == title {
			return r, true
		}
	}
	return Resource{}, false
}

// HasClass reports whether the class was included in the catalog.
func (c *Catalog) HasClass(name string) bool {
	return slices.Contains(c.Classes, name)
}

// MergeClasses returns the classes of a followed by those of b that are not already present,
// preserving order.
func MergeClasses(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, name := range list {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}
