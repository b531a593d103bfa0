package probeql

import (
	"fmt"

	"github.com/jward/probeql/internal/ast"
	"github.com/jward/probeql/internal/probe"
)

// collectProbes registers the instrumentation needed to decide pred at
// runtime.
func collectProbes(pred ast.Predicate, b *probe.SetBuilder) error {
	switch pred := pred.(type) {
	case nil:
		return nil

	case *ast.Calls:
		b.AddCallProbe(pred.Ref.Owner, pred.Ref.Name, pred.Ref.Desc)

	case *ast.ReadsField:
		b.AddFieldProbe(probe.FieldProbe{
			Owner: pred.Ref.Owner, Name: pred.Ref.Name, Desc: pred.Ref.Desc,
			Reads: true,
		})

	case *ast.WritesField:
		b.AddFieldProbe(probe.FieldProbe{
			Owner: pred.Ref.Owner, Name: pred.Ref.Name, Desc: pred.Ref.Desc,
			Writes: true,
		})

	case *ast.FieldBecomes:
		b.AddFieldProbe(probe.FieldProbe{
			Owner: pred.Ref.Owner, Name: pred.Ref.Name, Desc: pred.Ref.Desc,
			Writes: true, Transitions: true,
		})

	case *ast.AllocCount:
		b.AddAllocProbe(pred.Type)

	case *ast.InstructionCount:
		// Instruction counts are always captured.

	case *ast.Coverage:
		b.AddBranchProbe()
		b.AddCoverageProbe()

	case *ast.ContainsString:
		b.AddStringPatternProbe(pred.Pattern, pred.Regex)

	case *ast.Throws:
		b.AddExceptionProbe(pred.Type, pred.IncludeSubtypes)

	case *ast.Before:
		return collectProbes(pred.Event, b)

	case *ast.After:
		return collectProbes(pred.Event, b)

	case *ast.And:
		if err := collectProbes(pred.Left, b); err != nil {
			return err
		}
		return collectProbes(pred.Right, b)

	case *ast.Or:
		if err := collectProbes(pred.Left, b); err != nil {
			return err
		}
		return collectProbes(pred.Right, b)

	case *ast.Not:
		return collectProbes(pred.Inner, b)

	case *ast.Script:
		// Scripts may inspect any evidence.
		b.AddCallProbe("", "", "")
		b.AddFieldProbe(probe.FieldProbe{Reads: true, Writes: true})
		b.AddAllAllocsProbe()
		b.AddStringProbe()
		b.AddExceptionProbe("", true)
		b.AddBranchProbe()

	default:
		return fmt.Errorf("%w: %T", ErrUnknownPredicate, pred)
	}
	return nil
}

// collectScopeProbes registers the instrumentation a scope needs to find
// its boundaries at runtime.
func collectScopeProbes(s ast.Scope, b *probe.SetBuilder) error {
	switch s := s.(type) {
	case *ast.BetweenScope:
		if err := collectProbes(s.Start, b); err != nil {
			return err
		}
		return collectProbes(s.End, b)
	case *ast.AllScope, *ast.ClassScope, *ast.MethodScope, *ast.DuringScope:
		return nil
	}
	return fmt.Errorf("%w: %T", ErrUnknownScope, s)
}
