package collect

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/leapstack-labs/mclineage/pkg/core"
)

// aliasSet maps a canonical attribute to the normalized record keys that may
// carry it, in priority order. Platform exports spell the same attribute many
// ways (CustomerKey, customerKey, key, id ...).
type aliasSet map[string][]string

var (
	storageAliases = aliasSet{
		"key":        {"customerkey", "key", "externalkey", "id", "objectid"},
		"name":       {"name", "displayname"},
		"folder":     {"folder", "folderpath", "category", "categoryid"},
		"rowcount":   {"rowcount", "count"},
		"modifiedat": {"modifieddate", "modifiedat", "lastmodified", "updatedat"},
		"fields":     {"fields", "columns"},
	}
	fieldAliases = aliasSet{
		"name":       {"name"},
		"type":       {"fieldtype", "type"},
		"primarykey": {"isprimarykey", "primarykey"},
	}
	transformAliases = aliasSet{
		"key":        {"key", "customerkey", "queryid", "querydefinitionid", "id", "objectid"},
		"name":       {"name", "displayname"},
		"query":      {"querytext", "query", "sql"},
		"output":     {"targetkey", "dataextensiontarget", "target", "output", "targetname"},
		"updatetype": {"targetupdatetypename", "targetupdatetype", "updatetype"},
	}
	pipelineAliases = aliasSet{
		"key":    {"key", "customerkey", "id", "programid"},
		"name":   {"name", "displayname"},
		"status": {"statusname", "status"},
		"steps":  {"steps", "activities"},
	}
	stepAliases = aliasSet{
		"name":       {"name", "displayname"},
		"type":       {"type", "activitytype", "objecttypeid"},
		"target":     {"target", "targetkey", "targetdataextension", "dataextensioncustomerkey", "destination"},
		"transform":  {"transform", "querykey", "query", "queryname"},
		"objectid":   {"activityobjectid"},
		"activities": {"activities"},
	}
	interactionAliases = aliasSet{
		"key":   {"key", "customerkey", "definitionid", "id"},
		"name":  {"name", "displayname"},
		"entry": {"entry", "entrysource", "entryevent", "dataextensionkey", "dataextensionname", "dataextensionid"},
	}
	assetAliases = aliasSet{
		"key":       {"customerkey", "key", "id", "assetid"},
		"name":      {"name", "displayname"},
		"assettype": {"assettype", "type"},
		"content":   {"content", "html", "views"},
	}
	// referenceAliases pick an object reference out of a nested map such as
	// DataExtensionTarget or entryEvent.
	referenceAliases = aliasSet{
		"ref": {"customerkey", "dataextensionkey", "dataextensioncustomerkey", "key", "dataextensionname", "name", "dataextensionid", "id"},
	}
	// contentAliases dig markup out of nested asset views.
	contentAliases = aliasSet{
		"content": {"content", "html", "text"},
	}
)

// normalizeKey lower-cases a key and drops everything but letters and digits.
func normalizeKey(k string) string {
	var b strings.Builder
	b.Grow(len(k))
	for _, r := range k {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// canonicalize rewrites a loose record into canonical attribute names.
// Empty values do not shadow lower-priority aliases. Raw keys that normalize
// alike ("Name", "name") are visited in sorted order and the first non-empty
// value wins.
func canonicalize(raw map[string]any, aliases aliasSet) map[string]any {
	norm := make(map[string]any, len(raw))
	for _, k := range slices.Sorted(maps.Keys(raw)) {
		nk := normalizeKey(k)
		if prev, dup := norm[nk]; dup && !isEmpty(prev) {
			continue
		}
		norm[nk] = raw[k]
	}

	out := make(map[string]any, len(aliases))
	for canon, names := range aliases {
		for _, n := range names {
			if v, ok := norm[n]; ok && !isEmpty(v) {
				out[canon] = v
				break
			}
		}
	}
	return out
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

func decodeInto(input map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

// asMap accepts both yaml.v3 and JSON style maps.
func asMap(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

// scalarOrNested returns a string value, looking inside a nested map with the
// given aliases when v is not a scalar.
func scalarOrNested(v any, aliases aliasSet, canon string) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case int, int64, float64, bool:
		return fmt.Sprint(t)
	}
	if m, ok := asMap(v); ok {
		nested := canonicalize(m, aliases)
		if inner, ok := nested[canon]; ok {
			return scalarOrNested(inner, aliases, canon)
		}
	}
	return ""
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"1/2/2006 3:04:05 PM",
}

func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

type rawStorageObject struct {
	Key        string `mapstructure:"key"`
	Name       string `mapstructure:"name"`
	Folder     string `mapstructure:"folder"`
	RowCount   int64  `mapstructure:"rowcount"`
	ModifiedAt string `mapstructure:"modifiedat"`
	Fields     []any  `mapstructure:"fields"`
}

type rawField struct {
	Name       string `mapstructure:"name"`
	Type       string `mapstructure:"type"`
	PrimaryKey bool   `mapstructure:"primarykey"`
}

func decodeStorageObject(m map[string]any) (core.StorageObject, error) {
	var raw rawStorageObject
	if err := decodeInto(canonicalize(m, storageAliases), &raw); err != nil {
		return core.StorageObject{}, err
	}

	obj := core.StorageObject{
		Key:        strings.TrimSpace(raw.Key),
		Name:       strings.TrimSpace(raw.Name),
		Folder:     raw.Folder,
		RowCount:   raw.RowCount,
		ModifiedAt: parseTime(raw.ModifiedAt),
	}
	for _, item := range raw.Fields {
		fm, ok := asMap(item)
		if !ok {
			continue
		}
		var rf rawField
		if err := decodeInto(canonicalize(fm, fieldAliases), &rf); err != nil {
			return core.StorageObject{}, fmt.Errorf("field of %q: %w", obj.Key, err)
		}
		if rf.Name == "" {
			continue
		}
		obj.Fields = append(obj.Fields, core.Field{Name: rf.Name, Type: rf.Type, IsPrimaryKey: rf.PrimaryKey})
	}
	return obj, nil
}

type rawTransform struct {
	Key        string `mapstructure:"key"`
	Name       string `mapstructure:"name"`
	Query      string `mapstructure:"query"`
	Output     any    `mapstructure:"output"`
	UpdateType string `mapstructure:"updatetype"`
}

func decodeTransform(m map[string]any) (core.Transform, error) {
	var raw rawTransform
	if err := decodeInto(canonicalize(m, transformAliases), &raw); err != nil {
		return core.Transform{}, err
	}
	return core.Transform{
		Key:        strings.TrimSpace(raw.Key),
		Name:       strings.TrimSpace(raw.Name),
		Query:      raw.Query,
		Output:     scalarOrNested(raw.Output, referenceAliases, "ref"),
		UpdateType: raw.UpdateType,
	}, nil
}

type rawPipeline struct {
	Key    string `mapstructure:"key"`
	Name   string `mapstructure:"name"`
	Status string `mapstructure:"status"`
	Steps  []any  `mapstructure:"steps"`
}

type rawStep struct {
	Name       string `mapstructure:"name"`
	Type       string `mapstructure:"type"`
	Target     any    `mapstructure:"target"`
	Transform  any    `mapstructure:"transform"`
	ObjectID   string `mapstructure:"objectid"`
	Activities []any  `mapstructure:"activities"`
}

// queryActivityType is the platform's object type id for query activities.
const queryActivityType = "300"

func decodePipeline(m map[string]any) (core.Pipeline, error) {
	var raw rawPipeline
	if err := decodeInto(canonicalize(m, pipelineAliases), &raw); err != nil {
		return core.Pipeline{}, err
	}
	p := core.Pipeline{
		Key:    strings.TrimSpace(raw.Key),
		Name:   strings.TrimSpace(raw.Name),
		Status: raw.Status,
	}
	steps, err := decodeSteps(raw.Steps)
	if err != nil {
		return core.Pipeline{}, fmt.Errorf("steps of %q: %w", p.Key, err)
	}
	p.Steps = steps
	return p, nil
}

// decodeSteps flattens the platform's step → activities nesting into one ordered list.
func decodeSteps(items []any) ([]core.PipelineStep, error) {
	var steps []core.PipelineStep
	for _, item := range items {
		sm, ok := asMap(item)
		if !ok {
			continue
		}
		var rs rawStep
		if err := decodeInto(canonicalize(sm, stepAliases), &rs); err != nil {
			return nil, err
		}
		if len(rs.Activities) > 0 {
			nested, err := decodeSteps(rs.Activities)
			if err != nil {
				return nil, err
			}
			steps = append(steps, nested...)
			continue
		}

		step := core.PipelineStep{
			Name:      rs.Name,
			Type:      rs.Type,
			Target:    scalarOrNested(rs.Target, referenceAliases, "ref"),
			Transform: scalarOrNested(rs.Transform, referenceAliases, "ref"),
		}
		if step.Transform == "" && rs.ObjectID != "" && isQueryStep(rs.Type) {
			step.Transform = rs.ObjectID
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func isQueryStep(t string) bool {
	return t == queryActivityType || strings.Contains(strings.ToLower(t), "query")
}

type rawInteraction struct {
	Key   string `mapstructure:"key"`
	Name  string `mapstructure:"name"`
	Entry any    `mapstructure:"entry"`
}

func decodeInteraction(m map[string]any) (core.Interaction, error) {
	var raw rawInteraction
	if err := decodeInto(canonicalize(m, interactionAliases), &raw); err != nil {
		return core.Interaction{}, err
	}
	return core.Interaction{
		Key:   strings.TrimSpace(raw.Key),
		Name:  strings.TrimSpace(raw.Name),
		Entry: scalarOrNested(raw.Entry, referenceAliases, "ref"),
	}, nil
}

type rawAsset struct {
	Key       string `mapstructure:"key"`
	Name      string `mapstructure:"name"`
	AssetType any    `mapstructure:"assettype"`
	Content   any    `mapstructure:"content"`
}

var assetTypeAliases = aliasSet{"name": {"name", "displayname", "id"}}

func decodeAsset(m map[string]any) (core.RenderedAsset, error) {
	var raw rawAsset
	if err := decodeInto(canonicalize(m, assetAliases), &raw); err != nil {
		return core.RenderedAsset{}, err
	}
	return core.RenderedAsset{
		Key:       strings.TrimSpace(raw.Key),
		Name:      strings.TrimSpace(raw.Name),
		AssetType: scalarOrNested(raw.AssetType, assetTypeAliases, "name"),
		Content:   scalarOrNested(raw.Content, contentAliases, "content"),
	}, nil
}
