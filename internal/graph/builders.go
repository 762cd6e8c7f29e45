package graph

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/leapstack-labs/mclineage/internal/evidence"
	"github.com/leapstack-labs/mclineage/internal/lineage"
	"github.com/leapstack-labs/mclineage/internal/pii"
	"github.com/leapstack-labs/mclineage/internal/registry"
	"github.com/leapstack-labs/mclineage/pkg/core"
)

// FieldMeta is the exported form of a classified field.
type FieldMeta struct {
	Name        string           `json:"name"`
	Type        string           `json:"type"`
	PrimaryKey  bool             `json:"primary_key,omitempty"`
	Sensitivity core.Sensitivity `json:"sensitivity"`
	Reasons     []string         `json:"reasons,omitempty"`
}

// AddStorageObjects adds a storage node per object with its classified fields
// and a PII summary. Fields are classified in place.
func (a *Assembler) AddStorageObjects(objects []*core.StorageObject) error {
	for _, obj := range objects {
		pii.ClassifyFields(obj.Fields)

		fields := make([]FieldMeta, 0, len(obj.Fields))
		for _, f := range obj.Fields {
			fields = append(fields, FieldMeta{
				Name:        f.Name,
				Type:        f.Type,
				PrimaryKey:  f.IsPrimaryKey,
				Sensitivity: f.Sensitivity.Category,
				Reasons:     f.Sensitivity.Reasons,
			})
		}
		summary := pii.Summarize(obj.Fields)

		meta := map[string]any{
			"name":        obj.Name,
			"fields":      fields,
			"field_count": len(fields),
			"pii":         summary,
			"has_pii":     summary.Total() > 0,
		}
		if obj.Folder != "" {
			meta["folder"] = obj.Folder
		}
		if obj.RowCount > 0 {
			meta["row_count"] = obj.RowCount
		}
		if obj.ModifiedAt != nil {
			meta["modified_at"] = obj.ModifiedAt.UTC().Format(time.RFC3339)
		}

		if _, err := a.UpsertNode(core.CategoryStorage, obj.Key, obj.Label(), meta); err != nil {
			return err
		}
	}
	return nil
}

// BuildFromSQL adds a transform node with its inferred inputs and declared output.
func (a *Assembler) BuildFromSQL(t core.Transform) error {
	tokens := lineage.ExtractSQLReferences(t.Query)

	meta := map[string]any{"references": len(tokens)}
	if t.UpdateType != "" {
		meta["update_type"] = t.UpdateType
	}
	if t.Output != "" {
		meta["output"] = t.Output
	}
	src, err := a.UpsertNode(core.CategoryTransform, t.Key, t.Label(), meta)
	if err != nil {
		return err
	}

	for _, token := range tokens {
		obj, match, ok := a.objects.Resolve(token)
		if !ok {
			target, err := a.unresolvedNode(token, src, RefKindStorage)
			if err != nil {
				return err
			}
			if err := a.UpsertEdge(src, target, core.RelReadsFrom, []string{EvidenceUnmatched}, ConfidenceUnresolved); err != nil {
				return err
			}
			continue
		}

		target, err := a.storageNode(obj)
		if err != nil {
			return err
		}
		confidence := ConfidenceKeyMatch
		if match == registry.MatchName {
			confidence = ConfidenceNameMatch
		}
		if err := a.UpsertEdge(src, target, core.RelReadsFrom, []string{EvidenceReference}, confidence); err != nil {
			return err
		}
	}

	if t.Output != "" {
		target, err := a.resolveStorage(t.Output, src)
		if err != nil {
			return err
		}
		ev := []string{fmt.Sprintf("query:%s target", t.Key)}
		if err := a.UpsertEdge(src, target, core.RelWritesTo, ev, ConfidenceDeclared); err != nil {
			return err
		}
	}
	return nil
}

// BuildFromPipeline adds a pipeline node with executes edges to the transforms
// its steps run and writes-to edges to the objects they target.
func (a *Assembler) BuildFromPipeline(p core.Pipeline) error {
	meta := map[string]any{"steps": len(p.Steps)}
	if p.Status != "" {
		meta["status"] = p.Status
	}
	src, err := a.UpsertNode(core.CategoryPipeline, p.Key, p.Label(), meta)
	if err != nil {
		return err
	}

	for i, step := range p.Steps {
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step-%d", i+1)
		}
		ev := []string{fmt.Sprintf("automation:%s activity:%s", p.Key, name)}
		confidence := evidence.Score(ev)

		if step.Transform != "" {
			target, err := a.resolveTransform(step.Transform, src)
			if err != nil {
				return err
			}
			if err := a.UpsertEdge(src, target, core.RelExecutes, ev, confidence); err != nil {
				return err
			}
		}

		if step.Target != "" {
			target, err := a.resolveStorage(step.Target, src)
			if err != nil {
				return err
			}
			if err := a.UpsertEdge(src, target, core.RelWritesTo, ev, confidence); err != nil {
				return err
			}
		}
	}
	return nil
}

// BuildFromInteraction adds an interaction node and a used-by edge from its entry object.
func (a *Assembler) BuildFromInteraction(in core.Interaction) error {
	meta := map[string]any{}
	if in.Entry != "" {
		meta["entry"] = in.Entry
	}
	dst, err := a.UpsertNode(core.CategoryInteraction, in.Key, in.Label(), meta)
	if err != nil {
		return err
	}
	if in.Entry == "" {
		return nil
	}

	src, err := a.resolveStorage(in.Entry, dst)
	if err != nil {
		return err
	}
	ev := []string{fmt.Sprintf("journey:%s entry", in.Key)}
	return a.UpsertEdge(src, dst, core.RelUsedBy, ev, evidence.Score(ev))
}

// BuildFromAsset adds an asset node with a references edge per object its content touches.
// Several snippets naming the same object merge into one edge with accumulated evidence.
func (a *Assembler) BuildFromAsset(asset core.RenderedAsset) error {
	refs := lineage.ExtractAssetReferences(asset.Content)

	meta := map[string]any{"references": len(refs)}
	if asset.AssetType != "" {
		meta["asset_type"] = asset.AssetType
	}
	src, err := a.UpsertNode(core.CategoryAsset, asset.Key, asset.Label(), meta)
	if err != nil {
		return err
	}

	for _, ref := range refs {
		target, err := a.resolveStorage(ref.Token, src)
		if err != nil {
			return err
		}
		ev := []string{ref.Evidence()}
		if err := a.UpsertEdge(src, target, core.RelReferences, ev, evidence.Score(ev)); err != nil {
			return err
		}
	}
	return nil
}

// storageNode ensures a node exists for a resolved object without touching
// metadata contributed by AddStorageObjects.
func (a *Assembler) storageNode(obj *core.StorageObject) (string, error) {
	return a.UpsertNode(core.CategoryStorage, obj.Key, obj.Label(), nil)
}

// resolveStorage returns the node id for an object reference, falling back to
// an unresolved node on a miss.
func (a *Assembler) resolveStorage(ref, origin string) (string, error) {
	if obj, match, ok := a.objects.Resolve(ref); ok {
		a.logger.Debug("resolved reference",
			slog.String("token", ref),
			slog.String("key", obj.Key),
			slog.String("match", match.String()),
		)
		return a.storageNode(obj)
	}
	return a.unresolvedNode(ref, origin, RefKindStorage)
}

// resolveTransform returns the node id for a transform reference, falling
// back to an unresolved node on a miss.
func (a *Assembler) resolveTransform(ref, origin string) (string, error) {
	if t, ok := a.transforms.Resolve(ref); ok {
		return a.UpsertNode(core.CategoryTransform, t.Key, t.Label(), nil)
	}
	return a.unresolvedNode(ref, origin, RefKindTransform)
}
