package runtime

import (
	"context"
	"log/slog"
	"strings"

	"github.com/risor-io/risor/object"

	"github.com/jward/probeql/internal/probe"
)

// =============================================================================
// Evidence globals
// =============================================================================

func allocationsObject(res *probe.Result) *object.Map {
	m := make(map[string]object.Object)
	for typeName, n := range res.Allocations() {
		m[typeName] = object.NewInt(int64(n))
	}
	return object.NewMap(m)
}

func callsObject(res *probe.Result) *object.List {
	events := res.CallEvents()
	items := make([]object.Object, len(events))
	for i, e := range events {
		items[i] = object.NewMap(map[string]object.Object{
			"sequence": object.NewInt(e.Sequence),
			"pc":       object.NewInt(int64(e.PC)),
			"owner":    object.NewString(e.TargetOwner),
			"name":     object.NewString(e.TargetName),
			"desc":     object.NewString(e.TargetDesc),
		})
	}
	return object.NewList(items)
}

func fieldsObject(res *probe.Result) *object.List {
	events := res.FieldEvents()
	items := make([]object.Object, len(events))
	for i, e := range events {
		items[i] = object.NewMap(map[string]object.Object{
			"sequence": object.NewInt(e.Sequence),
			"pc":       object.NewInt(int64(e.PC)),
			"owner":    object.NewString(e.Owner),
			"name":     object.NewString(e.Field),
			"desc":     object.NewString(e.Desc),
			"write":    object.NewBool(e.IsWrite),
			"value":    object.NewString(e.Value),
		})
	}
	return object.NewList(items)
}

func stringsObject(res *probe.Result) *object.List {
	events := res.StringEvents()
	items := make([]object.Object, len(events))
	for i, e := range events {
		items[i] = object.NewMap(map[string]object.Object{
			"sequence": object.NewInt(e.Sequence),
			"pc":       object.NewInt(int64(e.PC)),
			"value":    object.NewString(e.Value),
			"origin":   object.NewString(e.Origin),
		})
	}
	return object.NewList(items)
}

func exceptionsObject(res *probe.Result) *object.List {
	events := res.ExceptionEvents()
	items := make([]object.Object, len(events))
	for i, e := range events {
		items[i] = object.NewMap(map[string]object.Object{
			"sequence": object.NewInt(e.Sequence),
			"pc":       object.NewInt(int64(e.PC)),
			"type":     object.NewString(e.Type),
			"caught":   object.NewBool(e.Caught),
		})
	}
	return object.NewList(items)
}

func branchesObject(res *probe.Result) *object.List {
	events := res.BranchEvents()
	items := make([]object.Object, len(events))
	for i, e := range events {
		items[i] = object.NewMap(map[string]object.Object{
			"sequence": object.NewInt(e.Sequence),
			"from":     object.NewInt(int64(e.FromPC)),
			"to":       object.NewInt(int64(e.ToPC)),
			"taken":    object.NewBool(e.Taken),
		})
	}
	return object.NewList(items)
}

// =============================================================================
// Builtins
// =============================================================================

// makeAllocCountFn creates "alloc_count".
//
// alloc_count(type) → int
func makeAllocCountFn(res *probe.Result) *object.Builtin {
	return object.NewBuiltin("alloc_count", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("alloc_count", 1, len(args))
		}
		typeStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("alloc_count: type must be a string, got %s", args[0].Type())
		}
		return object.NewInt(int64(res.AllocationCount(typeStr.Value())))
	})
}

// makeHasCallFn creates "has_call". The owner matches by substring and the
// name exactly; empty strings match any.
//
// has_call(owner, name) → bool
func makeHasCallFn(res *probe.Result) *object.Builtin {
	return object.NewBuiltin("has_call", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("has_call", 2, len(args))
		}
		owner, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("has_call: owner must be a string, got %s", args[0].Type())
		}
		name, ok := args[1].(*object.String)
		if !ok {
			return object.Errorf("has_call: name must be a string, got %s", args[1].Type())
		}
		return object.NewBool(res.HasCallTo(owner.Value(), name.Value()))
	})
}

// makeHasStringFn creates "has_string".
//
// has_string(substr) → bool
func makeHasStringFn(res *probe.Result) *object.Builtin {
	return object.NewBuiltin("has_string", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError("has_string", 1, len(args))
		}
		sub, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("has_string: argument must be a string, got %s", args[0].Type())
		}
		for _, e := range res.StringEvents() {
			if strings.Contains(e.Value, sub.Value()) {
				return object.True
			}
		}
		return object.False
	})
}

// makeLogFn creates "log", which writes its arguments at info level.
//
// log(args...) → nil
func makeLogFn(logger *slog.Logger, method string) *object.Builtin {
	return object.NewBuiltin("log", func(ctx context.Context, args ...object.Object) object.Object {
		parts := make([]string, len(args))
		for i, a := range args {
			if s, ok := a.(*object.String); ok {
				parts[i] = s.Value()
			} else {
				parts[i] = a.Inspect()
			}
		}
		logger.InfoContext(ctx, strings.Join(parts, " "), "method", method)
		return object.Nil
	})
}
