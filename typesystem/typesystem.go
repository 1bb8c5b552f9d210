// Package typesystem defines the FHIR type model vocabulary the language
// server navigates: type descriptors, property metadata, choice-type
// resolution results, and the provider contract answering type queries.
//
// The provider is an external collaborator; this package only fixes the
// shapes that cross the cache boundary, so every type here must survive a
// JSON round trip unchanged.
package typesystem

import "context"

// TypeKind classifies a descriptor.
type TypeKind string

const (
	KindResource  TypeKind = "resource"
	KindComplex   TypeKind = "complex"
	KindPrimitive TypeKind = "primitive"
)

// TypeInfo is the base descriptor of a named type.
type TypeInfo struct {
	Name     string   `json:"name"`
	Kind     TypeKind `json:"kind"`
	BaseType string   `json:"base_type,omitempty"`
}

// PropertyInfo describes one property of a type. Choice properties (FHIR
// value[x] elements) carry the set of concrete target types.
type PropertyInfo struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Cardinality string   `json:"cardinality,omitempty"`
	IsChoice    bool     `json:"is_choice,omitempty"`
	ChoiceTypes []string `json:"choice_types,omitempty"`
}

// EnhancedTypeInfo is a base descriptor enriched with its full property
// list. It is derived from several provider calls and is the most expensive
// shape to recompute.
type EnhancedTypeInfo struct {
	TypeInfo
	Properties []PropertyInfo `json:"properties,omitempty"`
}

// PathResolution is the outcome of navigating a dotted property path from a
// root type.
type PathResolution struct {
	RootType   string    `json:"root_type"`
	Path       string    `json:"path"`
	Valid      bool      `json:"valid"`
	ResultType *TypeInfo `json:"result_type,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// ChoiceResolution lists the concrete types a choice property can resolve
// to, optionally narrowed to a single target.
type ChoiceResolution struct {
	BaseType      string   `json:"base_type"`
	Target        string   `json:"target,omitempty"`
	ResolvedTypes []string `json:"resolved_types,omitempty"`
}

// ChoiceContext is the expression-scoped resolution of a resource.property
// reference to its concrete choice variant.
type ChoiceContext struct {
	ResourceType string `json:"resource_type"`
	Property     string `json:"property"`
	ResolvedType string `json:"resolved_type,omitempty"`
}

// ChoiceValidation is the outcome of validating a property against a
// resource type's choice declarations.
type ChoiceValidation struct {
	ResourceType  string   `json:"resource_type"`
	Property      string   `json:"property"`
	Valid         bool     `json:"valid"`
	ExpectedTypes []string `json:"expected_types,omitempty"`
	Message       string   `json:"message,omitempty"`
}

// Provider answers type-model queries. Implementations are external to the
// cache; the façade memoizes their answers and never calls them on a hit.
type Provider interface {
	// ResolveType returns the descriptor for a type name, or false when
	// the name is unknown.
	ResolveType(ctx context.Context, name string) (*TypeInfo, bool)

	// ResolveProperty returns the descriptor of a property's type, or
	// false when the type has no such property.
	ResolveProperty(ctx context.Context, typeName, property string) (*TypeInfo, bool)

	// ListProperties returns the property names of a type.
	ListProperties(ctx context.Context, typeName string) []string
}
