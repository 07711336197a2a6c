package evaluator

import (
	"github.com/akasaka-miraina/lambdust-sub001/internal/diagnostics"
	"github.com/akasaka-miraina/lambdust-sub001/internal/syntax"
	"github.com/akasaka-miraina/lambdust-sub001/internal/value"
)

// stepDefineRecordType implements R7RS define-record-type:
//
//	(define-record-type <name>
//	  (constructor field ...)
//	  predicate
//	  (field accessor [mutator]) ...)
func (ev *Evaluator) stepDefineRecordType(d syntax.Datum, elems []syntax.Datum, env *value.Frame) (value.Value, error) {
	if len(elems) < 4 {
		return nil, malformed(d, "define-record-type")
	}
	typeName, ok := elems[1].IdentifierName()
	if !ok {
		return nil, malformed(d, "define-record-type")
	}
	ctorSpec := elems[2].Elements()
	if len(ctorSpec) == 0 {
		return nil, malformed(d, "define-record-type constructor")
	}
	ctorName, ok := ctorSpec[0].IdentifierName()
	if !ok {
		return nil, malformed(d, "define-record-type constructor")
	}
	var ctorFields []string
	for _, f := range ctorSpec[1:] {
		name, ok := f.IdentifierName()
		if !ok {
			return nil, malformed(d, "define-record-type constructor")
		}
		ctorFields = append(ctorFields, name)
	}
	predName, ok := elems[3].IdentifierName()
	if !ok {
		return nil, malformed(d, "define-record-type predicate")
	}

	fieldSpecs := elems[4:]
	var fields []string
	type accessorSpec struct {
		field, accessor, mutator string
	}
	var specs []accessorSpec
	for _, fs := range fieldSpecs {
		fe := fs.Elements()
		if len(fe) < 2 {
			return nil, malformed(d, "define-record-type field")
		}
		fieldName, ok := fe[0].IdentifierName()
		if !ok {
			return nil, malformed(d, "define-record-type field")
		}
		accessorName, ok := fe[1].IdentifierName()
		if !ok {
			return nil, malformed(d, "define-record-type field")
		}
		mutatorName := ""
		if len(fe) >= 3 {
			mutatorName, _ = fe[2].IdentifierName()
		}
		fields = append(fields, fieldName)
		specs = append(specs, accessorSpec{field: fieldName, accessor: accessorName, mutator: mutatorName})
	}

	rt := &value.RecordType{Name: typeName, Fields: fields}
	env.Define(ev.Intern(typeName), rt)

	ctorIndices := make([]int, len(ctorFields))
	for i, f := range ctorFields {
		ctorIndices[i] = rt.FieldIndex(f)
	}
	env.Define(ev.Intern(ctorName), &Primitive{
		Name: ctorName,
		Fn: func(args []value.Value) (value.Value, error) {
			if len(args) != len(ctorIndices) {
				return nil, diagnostics.New(diagnostics.CodeArityMismatch, d.Span(),
					"%s expects %d arguments, got %d", ctorName, len(ctorIndices), len(args))
			}
			vals := make([]value.Value, len(fields))
			for i := range vals {
				vals[i] = value.Unspecified
			}
			for i, idx := range ctorIndices {
				vals[idx] = args[i]
			}
			return &value.Record{Type: rt, Fields: vals}, nil
		},
	})

	env.Define(ev.Intern(predName), &Primitive{
		Name: predName,
		Fn: func(args []value.Value) (value.Value, error) {
			if len(args) != 1 {
				return nil, diagnostics.New(diagnostics.CodeArityMismatch, d.Span(), "%s expects 1 argument", predName)
			}
			r, ok := args[0].(*value.Record)
			return value.Bool(ok && r.Type == rt), nil
		},
	})

	for _, spec := range specs {
		idx := rt.FieldIndex(spec.field)
		accessorName := spec.accessor
		env.Define(ev.Intern(accessorName), &Primitive{
			Name: accessorName,
			Fn: func(args []value.Value) (value.Value, error) {
				if len(args) != 1 {
					return nil, diagnostics.New(diagnostics.CodeArityMismatch, d.Span(), "%s expects 1 argument", accessorName)
				}
				r, ok := args[0].(*value.Record)
				if !ok || r.Type != rt {
					return nil, diagnostics.New(diagnostics.CodeTypeMismatch, d.Span(), "%s: not a %s", accessorName, typeName)
				}
				return r.Fields[idx], nil
			},
		})
		if spec.mutator == "" {
			continue
		}
		mutatorName := spec.mutator
		env.Define(ev.Intern(mutatorName), &Primitive{
			Name: mutatorName,
			Fn: func(args []value.Value) (value.Value, error) {
				if len(args) != 2 {
					return nil, diagnostics.New(diagnostics.CodeArityMismatch, d.Span(), "%s expects 2 arguments", mutatorName)
				}
				r, ok := args[0].(*value.Record)
				if !ok || r.Type != rt {
					return nil, diagnostics.New(diagnostics.CodeTypeMismatch, d.Span(), "%s: not a %s", mutatorName, typeName)
				}
				r.Fields[idx] = args[1]
				return value.Unspecified, nil
			},
		})
	}

	return value.NewSymbol(ev.Interner, typeName), nil
}
