package graph

import "errors"

// Contract violations. Builders never produce them for well-formed records;
// they guard the exported vocabulary against programming errors.
var (
	ErrInvalidCategory     = errors.New("invalid node category")
	ErrEmptyKey            = errors.New("empty node key")
	ErrInvalidRelationship = errors.New("invalid relationship")
	ErrConfidenceRange     = errors.New("confidence out of range")
	ErrUnknownNode         = errors.New("unknown node")
)
