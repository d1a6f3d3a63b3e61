// Package gtm holds the data model shared by the scraper, the reference
// fetcher and the table: variable descriptors scraped from the Tag Manager
// variables page and the entities returned by its references API.
package gtm

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// VariableRef describes one user-defined variable found on the page.
type VariableRef struct {
	Name         string `json:"name"`
	Type         string `json:"type,omitempty"`
	ReferenceURL string `json:"reference_url"`
}

// EntityKind discriminates the records returned by the references API.
type EntityKind int

const (
	EntityUnknown EntityKind = iota
	EntityTag
	EntityTrigger
	EntityVariable
)

func (k EntityKind) String() string {
	switch k {
	case EntityTag:
		return "tag"
	case EntityTrigger:
		return "trigger"
	case EntityVariable:
		return "variable"
	default:
		return "unknown"
	}
}

// Entity is a loosely typed reference record. Only the marker keys and the
// display fields are decoded; everything else the API sends is ignored.
type Entity struct {
	TagKey      json.RawMessage `json:"tagKey,omitempty"`
	TriggerKey  json.RawMessage `json:"triggerKey,omitempty"`
	VariableKey json.RawMessage `json:"variableKey,omitempty"`
	Name        json.RawMessage `json:"name,omitempty"`
	PublicID    json.RawMessage `json:"publicId,omitempty"`
}

// Kind reports which marker the entity carries, checked in tag, trigger,
// variable order.
func (e Entity) Kind() EntityKind {
	switch {
	case truthy(e.TagKey):
		return EntityTag
	case truthy(e.TriggerKey):
		return EntityTrigger
	case truthy(e.VariableKey):
		return EntityVariable
	default:
		return EntityUnknown
	}
}

// DisplayName returns name, falling back to publicId.
func (e Entity) DisplayName() string {
	if s := scalarText(e.Name); s != "" {
		return s
	}
	return scalarText(e.PublicID)
}

// EnrichedVariable is a variable plus the names of everything referencing it.
type EnrichedVariable struct {
	VariableName    string   `json:"variable_name"`
	VariableType    string   `json:"variable_type"`
	Tags            []string `json:"tags"`
	Triggers        []string `json:"triggers"`
	LinkedVariables []string `json:"linked_variables"`
}

// HasReferences reports whether anything uses the variable. Variables without
// references are the only ones that may be flagged for deletion.
func (v EnrichedVariable) HasReferences() bool {
	return len(v.Tags) > 0 || len(v.Triggers) > 0 || len(v.LinkedVariables) > 0
}

// TagList is the display form of Tags.
func (v EnrichedVariable) TagList() string { return JoinNames(v.Tags) }

// TriggerList is the display form of Triggers.
func (v EnrichedVariable) TriggerList() string { return JoinNames(v.Triggers) }

// LinkedVariableList is the display form of LinkedVariables.
func (v EnrichedVariable) LinkedVariableList() string { return JoinNames(v.LinkedVariables) }

// JoinNames joins display names with ", ". An empty sequence yields "".
func JoinNames(names []string) string {
	return strings.Join(names, ", ")
}

// truthy mirrors JavaScript truthiness for a raw JSON value.
func truthy(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 {
		return false
	}
	switch string(v) {
	case "null", "false", `""`:
		return false
	}
	if v[0] == '-' || (v[0] >= '0' && v[0] <= '9') {
		f, err := strconv.ParseFloat(string(v), 64)
		return err != nil || f != 0
	}
	return true
}

// scalarText renders a JSON string or number as plain text. Objects, arrays,
// booleans and null render as "".
func scalarText(raw json.RawMessage) string {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 {
		return ""
	}
	switch {
	case v[0] == '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return ""
		}
		return s
	case v[0] == '-' || (v[0] >= '0' && v[0] <= '9'):
		return string(v)
	default:
		return ""
	}
}
