package collect

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/leapstack-labs/mclineage/pkg/core"
	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// Snapshot document sections, normalized, with their accepted spellings.
var sectionAliases = map[core.Category][]string{
	core.CategoryStorage:     {"dataextensions", "storageobjects"},
	core.CategoryTransform:   {"queries", "queryactivities", "transforms"},
	core.CategoryPipeline:    {"automations", "pipelines"},
	core.CategoryInteraction: {"journeys", "interactions"},
	core.CategoryAsset:       {"cloudpages", "assets"},
}

// FileSource reads a snapshot document (YAML or JSON) from a local path or any
// URL the afs service understands (file://, mem://, s3://, gs:// ...).
// The document is downloaded once and shared by all category calls.
type FileSource struct {
	location string
	fs       afs.Service

	once     sync.Once
	sections map[string]any
	err      error
}

// NewFileSource creates a source for the snapshot at location.
func NewFileSource(location string) *FileSource {
	return &FileSource{location: location, fs: afs.New()}
}

// Name returns the snapshot location.
func (s *FileSource) Name() string {
	return s.location
}

func (s *FileSource) load(ctx context.Context) (map[string]any, error) {
	s.once.Do(func() {
		location := s.location
		if !strings.Contains(location, "://") {
			abs, err := filepath.Abs(location)
			if err != nil {
				s.err = fmt.Errorf("failed to resolve snapshot path: %w", err)
				return
			}
			location = abs
		}

		data, err := s.fs.DownloadWithURL(ctx, location)
		if err != nil {
			s.err = fmt.Errorf("failed to download snapshot %s: %w", s.location, err)
			return
		}
		s.sections, s.err = ParseDocument(data)
	})
	return s.sections, s.err
}

// ParseDocument decodes a snapshot document into its top-level sections,
// keyed by normalized section name.
func ParseDocument(data []byte) (map[string]any, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	sections := make(map[string]any, len(doc))
	for k, v := range doc {
		sections[normalizeKey(k)] = v
	}
	return sections, nil
}

// records returns the raw records of a category. A missing section is an
// empty category, not a failure.
func (s *FileSource) records(ctx context.Context, category core.Category) ([]map[string]any, error) {
	sections, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	var section any
	for _, name := range sectionAliases[category] {
		if v, ok := sections[name]; ok {
			section = v
			break
		}
	}
	if section == nil {
		return nil, nil
	}

	items, ok := section.([]any)
	if !ok {
		return nil, fmt.Errorf("%s section is %T, expected a list", category, section)
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		m, ok := asMap(item)
		if !ok {
			// keeps the count honest: a keyless record is skipped downstream
			m = map[string]any{}
		}
		out = append(out, m)
	}
	return out, nil
}

// decodeAll decodes every record; a record that fails to decode becomes a
// zero value, which Collect skips and counts.
func decodeAll[T any](records []map[string]any, decode func(map[string]any) (T, error)) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		v, err := decode(r)
		if err != nil {
			var zero T
			v = zero
		}
		out = append(out, v)
	}
	return out
}

// StorageObjects implements Source.
func (s *FileSource) StorageObjects(ctx context.Context) ([]core.StorageObject, error) {
	records, err := s.records(ctx, core.CategoryStorage)
	if err != nil {
		return nil, err
	}
	return decodeAll(records, decodeStorageObject), nil
}

// Transforms implements Source.
func (s *FileSource) Transforms(ctx context.Context) ([]core.Transform, error) {
	records, err := s.records(ctx, core.CategoryTransform)
	if err != nil {
		return nil, err
	}
	return decodeAll(records, decodeTransform), nil
}

// Pipelines implements Source.
func (s *FileSource) Pipelines(ctx context.Context) ([]core.Pipeline, error) {
	records, err := s.records(ctx, core.CategoryPipeline)
	if err != nil {
		return nil, err
	}
	return decodeAll(records, decodePipeline), nil
}

// Interactions implements Source.
func (s *FileSource) Interactions(ctx context.Context) ([]core.Interaction, error) {
	records, err := s.records(ctx, core.CategoryInteraction)
	if err != nil {
		return nil, err
	}
	return decodeAll(records, decodeInteraction), nil
}

// Assets implements Source.
func (s *FileSource) Assets(ctx context.Context) ([]core.RenderedAsset, error) {
	records, err := s.records(ctx, core.CategoryAsset)
	if err != nil {
		return nil, err
	}
	return decodeAll(records, decodeAsset), nil
}
