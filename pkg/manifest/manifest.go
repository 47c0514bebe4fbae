// Package manifest loads and validates the operator's packaging manifest.
//
// The manifest is the declarative description of the deployment unit: the
// workload container, the OCI image resource backing it, and the relation
// endpoints the unit provides and requires. The operator embeds its own
// manifest and reads it at startup to learn the default workload image and
// the names of its integration surfaces; nothing at runtime mutates it.
package manifest

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"sort"

	"sigs.k8s.io/yaml"
)

// ResourceTypeOCIImage is the resource type for container image resources.
const ResourceTypeOCIImage = "oci-image"

// ErrInvalid is wrapped by every validation failure reported by Validate.
var ErrInvalid = errors.New("invalid manifest")

// namePattern is the shape of a deployable unit name: lowercase, starting
// with a letter, hyphen-separated alphanumeric runs.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)

// Manifest is the parsed packaging manifest.
type Manifest struct {
	// Name is the unique package identifier.
	Name string `json:"name"`

	// Summary is a one-line description of the unit.
	Summary string `json:"summary,omitempty"`

	// Description is the long-form description.
	Description string `json:"description,omitempty"`

	// Containers binds workload containers to image resources.
	Containers map[string]Container `json:"containers,omitempty"`

	// Resources declares the resources the unit needs at deploy time.
	Resources map[string]Resource `json:"resources,omitempty"`

	// Provides are the relation endpoints this unit offers to consumers.
	Provides map[string]Endpoint `json:"provides,omitempty"`

	// Requires are the relation endpoints this unit needs from a provider.
	Requires map[string]Endpoint `json:"requires,omitempty"`
}

// Container binds a named workload container to a declared resource.
type Container struct {
	// Resource is the key under Resources holding the container image.
	Resource string `json:"resource"`
}

// Resource declares an external resource, typically an OCI image.
type Resource struct {
	// Type is the resource type, e.g. "oci-image".
	Type string `json:"type"`

	// Description is a human-readable description.
	Description string `json:"description,omitempty"`

	// UpstreamSource is the default source for the resource, e.g. an image
	// reference.
	UpstreamSource string `json:"upstream-source,omitempty"`
}

// Endpoint is a relation endpoint identified by its interface name.
type Endpoint struct {
	// Interface identifies the relation contract, e.g. "prometheus_scrape".
	Interface string `json:"interface"`
}

//go:embed metadata.yaml
var embedded []byte

// Parse decodes and validates a manifest from YAML.
func Parse(data []byte) (*Manifest, error) {
	m := &Manifest{}
	if err := yaml.UnmarshalStrict(data, m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Load returns the manifest embedded in the operator binary.
func Load() (*Manifest, error) {
	return Parse(embedded)
}

// Validate checks the manifest's internal consistency. All violations are
// reported, joined into a single error wrapping ErrInvalid.
func (m *Manifest) Validate() error {
	var errs []error

	if m.Name == "" {
		errs = append(errs, errors.New("name must not be empty"))
	} else if !namePattern.MatchString(m.Name) {
		errs = append(errs, fmt.Errorf("name %q must be a lowercase hyphenated identifier", m.Name))
	}

	for _, name := range sortedKeys(m.Containers) {
		c := m.Containers[name]
		if c.Resource == "" {
			errs = append(errs, fmt.Errorf("container %q does not name a resource", name))
			continue
		}
		if _, ok := m.Resources[c.Resource]; !ok {
			errs = append(errs, fmt.Errorf("container %q references undeclared resource %q", name, c.Resource))
		}
	}

	for _, name := range sortedKeys(m.Resources) {
		r := m.Resources[name]
		if r.Type == ResourceTypeOCIImage && r.UpstreamSource == "" {
			errs = append(errs, fmt.Errorf("oci-image resource %q has no upstream-source", name))
		}
	}

	for _, name := range sortedKeys(m.Provides) {
		if m.Provides[name].Interface == "" {
			errs = append(errs, fmt.Errorf("provided endpoint %q has no interface", name))
		}
	}
	for _, name := range sortedKeys(m.Requires) {
		if m.Requires[name].Interface == "" {
			errs = append(errs, fmt.Errorf("required endpoint %q has no interface", name))
		}
		if _, ok := m.Provides[name]; ok {
			errs = append(errs, fmt.Errorf("endpoint %q is declared under both provides and requires", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// ContainerImage resolves the image reference for the named container from
// its declared resource's upstream source.
func (m *Manifest) ContainerImage(container string) (string, error) {
	c, ok := m.Containers[container]
	if !ok {
		return "", fmt.Errorf("manifest declares no container %q", container)
	}
	r, ok := m.Resources[c.Resource]
	if !ok {
		return "", fmt.Errorf("container %q references undeclared resource %q", container, c.Resource)
	}
	if r.Type != ResourceTypeOCIImage {
		return "", fmt.Errorf("resource %q is not an oci-image (got %q)", c.Resource, r.Type)
	}
	return r.UpstreamSource, nil
}

// ProvidedInterfaces returns the interface names offered by this unit, sorted.
func (m *Manifest) ProvidedInterfaces() []string {
	return interfaces(m.Provides)
}

// RequiredInterfaces returns the interface names this unit consumes, sorted.
func (m *Manifest) RequiredInterfaces() []string {
	return interfaces(m.Requires)
}

func interfaces(endpoints map[string]Endpoint) []string {
	out := make([]string, 0, len(endpoints))
	for _, ep := range endpoints {
		out = append(out, ep.Interface)
	}
	sort.Strings(out)
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
