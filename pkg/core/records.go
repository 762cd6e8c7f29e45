package core

import "time"

// =============================================================================
// Platform records
// =============================================================================

// Field describes a single column of a StorageObject.
type Field struct {
	// Name is the field name as declared on the platform
	Name string
	// Type is the declared field type (Text, EmailAddress, Phone, Number, ...)
	Type string
	// IsPrimaryKey marks fields that participate in the object's primary key
	IsPrimaryKey bool
	// Sensitivity is nil until the field has been classified
	Sensitivity *Classification
}

// StorageObject is a named, uniquely keyed tabular structure (a data extension).
type StorageObject struct {
	// Key is the stable external key, unique and immutable
	Key string
	// Name is the display name, unique within a run
	Name string
	// Folder is the optional folder/category path
	Folder string
	// RowCount is the last known row count, 0 when unknown
	RowCount int64
	// ModifiedAt is the last modification time when the platform reports one
	ModifiedAt *time.Time
	// Fields are the ordered field descriptors
	Fields []Field
}

// Label returns the display name, falling back to the key.
func (o StorageObject) Label() string {
	if o.Name != "" {
		return o.Name
	}
	return o.Key
}

// Transform is a SQL-defined job (query activity).
type Transform struct {
	Key   string
	Name  string
	Query string
	// Output references the declared target object by key or name; empty when undeclared
	Output string
	// UpdateType is the write mode (Overwrite, Update, Append)
	UpdateType string
}

// Label returns the display name, falling back to the key.
func (t Transform) Label() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Key
}

// PipelineStep is one activity of an automation.
type PipelineStep struct {
	Name string
	// Type is the platform activity type (query, import, extract, ...)
	Type string
	// Target names the storage object the step writes to, by key or name
	Target string
	// Transform names the transform the step runs, by key or name
	Transform string
}

// Pipeline is a scheduled automation made of ordered steps.
type Pipeline struct {
	Key    string
	Name   string
	Status string
	Steps  []PipelineStep
}

// Label returns the display name, falling back to the key.
func (p Pipeline) Label() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Key
}

// Interaction is a journey-style customer flow.
type Interaction struct {
	Key  string
	Name string
	// Entry names the entry-source storage object by key or name; empty when none
	Entry string
}

// Label returns the display name, falling back to the key.
func (i Interaction) Label() string {
	if i.Name != "" {
		return i.Name
	}
	return i.Key
}

// RenderedAsset is markup/script content such as a landing page.
type RenderedAsset struct {
	Key       string
	Name      string
	AssetType string
	Content   string
}

// Label returns the display name, falling back to the key.
func (a RenderedAsset) Label() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Key
}
