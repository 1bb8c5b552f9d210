package typecache

// Cache key schema. Keys are derived deterministically from the query so
// the same question always lands on the same entry, and every key family
// shares a prefix so a whole family can be invalidated with one pattern.
//
//	type:<TypeName>
//	enhanced:<TypeName>
//	path:<RootType>:<seg1.seg2...>
//	choice:<BaseType>:<TargetOrAll>
//	context:<ResourceType>.<property>
//	validation:<ResourceType>:<Property>

const choiceTargetAll = "all"

func typeKey(name string) string {
	return "type:" + name
}

func enhancedKey(name string) string {
	return "enhanced:" + name
}

func pathKey(rootType, path string) string {
	return "path:" + rootType + ":" + path
}

func choiceKey(baseType, target string) string {
	if target == "" {
		target = choiceTargetAll
	}
	return "choice:" + baseType + ":" + target
}

func contextKey(resourceType, property string) string {
	return "context:" + resourceType + "." + property
}

func validationKey(resourceType, property string) string {
	return "validation:" + resourceType + ":" + property
}

// typeDependency is the logical dependency identifier entries derived from
// a type declare, so a type change fans out to everything built on it.
func typeDependency(name string) string {
	return "type:" + name
}
