package gtm

// Classify partitions entities into tags, triggers and linked variables,
// preserving the order the API returned them in. Entities carrying none of
// the three markers are dropped.
func Classify(name, typ string, entities []Entity) EnrichedVariable {
	out := EnrichedVariable{
		VariableName:    name,
		VariableType:    typ,
		Tags:            []string{},
		Triggers:        []string{},
		LinkedVariables: []string{},
	}
	for _, e := range entities {
		switch e.Kind() {
		case EntityTag:
			out.Tags = append(out.Tags, e.DisplayName())
		case EntityTrigger:
			out.Triggers = append(out.Triggers, e.DisplayName())
		case EntityVariable:
			out.LinkedVariables = append(out.LinkedVariables, e.DisplayName())
		}
	}
	return out
}

// Unreferenced returns a record with empty reference sequences, used when the
// references for a variable could not be fetched.
func Unreferenced(ref VariableRef) EnrichedVariable {
	return Classify(ref.Name, ref.Type, nil)
}
