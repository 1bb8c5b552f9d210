package typesystem

import (
	"context"
	"sort"
)

// TypeDef declares one type for a StaticProvider.
type TypeDef struct {
	Info       TypeInfo
	Properties []PropertyInfo
}

// StaticProvider answers type queries from an in-memory table. It backs the
// server until a full schema-package provider is plugged in, and doubles as
// the provider used by tests.
type StaticProvider struct {
	types      map[string]TypeInfo
	properties map[string]map[string]PropertyInfo
}

// NewStaticProvider builds a provider from type declarations.
func NewStaticProvider(defs ...TypeDef) *StaticProvider {
	p := &StaticProvider{
		types:      make(map[string]TypeInfo, len(defs)),
		properties: make(map[string]map[string]PropertyInfo, len(defs)),
	}
	for _, def := range defs {
		p.types[def.Info.Name] = def.Info
		props := make(map[string]PropertyInfo, len(def.Properties))
		for _, prop := range def.Properties {
			props[prop.Name] = prop
		}
		p.properties[def.Info.Name] = props
	}
	return p
}

// ResolveType implements Provider.
func (p *StaticProvider) ResolveType(_ context.Context, name string) (*TypeInfo, bool) {
	info, ok := p.types[name]
	if !ok {
		return nil, false
	}
	return &info, true
}

// ResolveProperty implements Provider.
func (p *StaticProvider) ResolveProperty(ctx context.Context, typeName, property string) (*TypeInfo, bool) {
	prop, ok := p.properties[typeName][property]
	if !ok {
		return nil, false
	}
	if info, ok := p.types[prop.Type]; ok {
		return &info, true
	}
	// Property types outside the table are treated as opaque primitives.
	return &TypeInfo{Name: prop.Type, Kind: KindPrimitive}, true
}

// ListProperties implements Provider.
func (p *StaticProvider) ListProperties(_ context.Context, typeName string) []string {
	props := p.properties[typeName]
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CoreProvider returns a provider covering the handful of resource types the
// default warm-up list references. It stands in for a real schema-package
// provider during development.
func CoreProvider() *StaticProvider {
	return NewStaticProvider(
		TypeDef{
			Info: TypeInfo{Name: "Patient", Kind: KindResource, BaseType: "DomainResource"},
			Properties: []PropertyInfo{
				{Name: "name", Type: "HumanName", Cardinality: "0..*"},
				{Name: "birthDate", Type: "date", Cardinality: "0..1"},
				{Name: "gender", Type: "code", Cardinality: "0..1"},
				{Name: "deceased", Type: "boolean", Cardinality: "0..1", IsChoice: true, ChoiceTypes: []string{"boolean", "dateTime"}},
				{Name: "multipleBirth", Type: "boolean", Cardinality: "0..1", IsChoice: true, ChoiceTypes: []string{"boolean", "integer"}},
			},
		},
		TypeDef{
			Info: TypeInfo{Name: "Observation", Kind: KindResource, BaseType: "DomainResource"},
			Properties: []PropertyInfo{
				{Name: "status", Type: "code", Cardinality: "1..1"},
				{Name: "code", Type: "CodeableConcept", Cardinality: "1..1"},
				{Name: "value", Type: "Quantity", Cardinality: "0..1", IsChoice: true, ChoiceTypes: []string{"Quantity", "CodeableConcept", "string", "boolean", "integer", "Range", "Ratio", "SampledData", "time", "dateTime", "Period"}},
				{Name: "effective", Type: "dateTime", Cardinality: "0..1", IsChoice: true, ChoiceTypes: []string{"dateTime", "Period", "Timing", "instant"}},
			},
		},
		TypeDef{
			Info: TypeInfo{Name: "Condition", Kind: KindResource, BaseType: "DomainResource"},
			Properties: []PropertyInfo{
				{Name: "code", Type: "CodeableConcept", Cardinality: "0..1"},
				{Name: "subject", Type: "Reference", Cardinality: "1..1"},
				{Name: "onset", Type: "dateTime", Cardinality: "0..1", IsChoice: true, ChoiceTypes: []string{"dateTime", "Age", "Period", "Range", "string"}},
			},
		},
		TypeDef{
			Info: TypeInfo{Name: "HumanName", Kind: KindComplex},
			Properties: []PropertyInfo{
				{Name: "family", Type: "string", Cardinality: "0..1"},
				{Name: "given", Type: "string", Cardinality: "0..*"},
				{Name: "use", Type: "code", Cardinality: "0..1"},
			},
		},
		TypeDef{
			Info: TypeInfo{Name: "CodeableConcept", Kind: KindComplex},
			Properties: []PropertyInfo{
				{Name: "coding", Type: "Coding", Cardinality: "0..*"},
				{Name: "text", Type: "string", Cardinality: "0..1"},
			},
		},
		TypeDef{Info: TypeInfo{Name: "string", Kind: KindPrimitive}},
		TypeDef{Info: TypeInfo{Name: "boolean", Kind: KindPrimitive}},
		TypeDef{Info: TypeInfo{Name: "date", Kind: KindPrimitive}},
		TypeDef{Info: TypeInfo{Name: "dateTime", Kind: KindPrimitive}},
		TypeDef{Info: TypeInfo{Name: "code", Kind: KindPrimitive}},
	)
}

var _ Provider = (*StaticProvider)(nil)
