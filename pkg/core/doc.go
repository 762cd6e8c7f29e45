// Package core defines the shared language of the lineage engine.
//
// This package contains:
//   - Platform records (StorageObject, Transform, Pipeline, Interaction, RenderedAsset)
//   - Graph entities (Node, Edge, Payload) and their identifier rules
//   - Closed vocabularies (Category, Relationship, Sensitivity)
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
