package ulink

import "fmt"

// URI is the structured address of a uEntity resource: an authority
// (device/vehicle name), a numeric entity id, the entity's major version
// and a resource id within the entity's address space.
//
// URI is a comparable value type with structural equality; transports use
// it directly as a registration key. The zero value is not a valid
// address.
type URI struct {
	Authority string
	Entity    uint32
	Version   uint8
	Resource  uint16
}

// String renders the address in the canonical //authority/entity/version/resource
// form with hexadecimal numeric segments.
func (u URI) String() string {
	return fmt.Sprintf("//%s/%X/%X/%X", u.Authority, u.Entity, u.Version, u.Resource)
}

// IsZero reports whether the URI is the zero value.
func (u URI) IsZero() bool { return u == URI{} }

// URIProvider resolves an entity's own identity into concrete URIs.
// Publisher and Notifier use it to build outgoing source addresses.
type URIProvider interface {
	// ResourceURI returns the URI for a numbered resource of this entity.
	ResourceURI(resource uint16) URI
	// SourceURI returns the URI identifying the entity itself.
	SourceURI() URI
}

// StaticURIProvider is a URIProvider with a fixed identity, constructed
// once from (authority, entity id, version).
type StaticURIProvider struct {
	authority string
	entity    uint32
	version   uint8
}

var _ URIProvider = (*StaticURIProvider)(nil)

// NewStaticURIProvider returns a provider for the given entity identity.
func NewStaticURIProvider(authority string, entity uint32, version uint8) *StaticURIProvider {
	return &StaticURIProvider{
		authority: authority,
		entity:    entity,
		version:   version,
	}
}

func (p *StaticURIProvider) ResourceURI(resource uint16) URI {
	return URI{
		Authority: p.authority,
		Entity:    p.entity,
		Version:   p.version,
		Resource:  resource,
	}
}

// SourceURI returns the entity's own address: resource id 0 denotes the
// entity itself rather than one of its resources.
func (p *StaticURIProvider) SourceURI() URI {
	return p.ResourceURI(0)
}
