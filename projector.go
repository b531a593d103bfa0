package probeql

import (
	"fmt"

	"github.com/jward/probeql/internal/ast"
	"github.com/jward/probeql/internal/probe"
	"github.com/jward/probeql/internal/result"
)

// ResultProjector turns one execution result into rows shaped for a target.
// Projection is pure and deterministic.
type ResultProjector interface {
	TargetType() ast.Target
	Project(r *probe.Result) []result.Row
}

type methodsProjector struct{}
type classesProjector struct{}
type pathsProjector struct{}
type eventsProjector struct{}
type stringsProjector struct{}
type objectsProjector struct{}

func (methodsProjector) TargetType() ast.Target { return ast.TargetMethods }
func (classesProjector) TargetType() ast.Target { return ast.TargetClasses }
func (pathsProjector) TargetType() ast.Target   { return ast.TargetPaths }
func (eventsProjector) TargetType() ast.Target  { return ast.TargetEvents }
func (stringsProjector) TargetType() ast.Target { return ast.TargetStrings }
func (objectsProjector) TargetType() ast.Target { return ast.TargetObjects }

func (methodsProjector) Project(r *probe.Result) []result.Row { return r.ToMethodRows() }
func (classesProjector) Project(r *probe.Result) []result.Row { return r.ToClassRows() }
func (pathsProjector) Project(r *probe.Result) []result.Row   { return r.ToPathRows() }
func (eventsProjector) Project(r *probe.Result) []result.Row  { return r.ToEventRows() }
func (stringsProjector) Project(r *probe.Result) []result.Row { return r.ToStringRows() }
func (objectsProjector) Project(r *probe.Result) []result.Row { return r.ToObjectRows() }

// ProjectorFor returns the projector for t, or ErrUnknownTarget.
func ProjectorFor(t ast.Target) (ResultProjector, error) {
	switch t {
	case ast.TargetMethods:
		return methodsProjector{}, nil
	case ast.TargetClasses:
		return classesProjector{}, nil
	case ast.TargetPaths:
		return pathsProjector{}, nil
	case ast.TargetEvents:
		return eventsProjector{}, nil
	case ast.TargetStrings:
		return stringsProjector{}, nil
	case ast.TargetObjects:
		return objectsProjector{}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownTarget, int(t))
}
