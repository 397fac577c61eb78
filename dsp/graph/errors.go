package graph

import "errors"

// Control-plane errors. Operations wrap them with context; match with
// errors.Is.
var (
	ErrNodeNotFound  = errors.New("node not found")
	ErrPortNotFound  = errors.New("port not found")
	ErrTypeMismatch  = errors.New("signal type mismatch")
	ErrCycleDetected = errors.New("cycle detected")
	ErrEdgeNotFound  = errors.New("edge not found")
	ErrDuplicateNode = errors.New("node already in graph")
)
