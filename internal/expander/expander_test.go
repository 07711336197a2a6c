package expander_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/akasaka-miraina/lambdust-sub001/internal/expander"
	"github.com/akasaka-miraina/lambdust-sub001/internal/reader"
	"github.com/akasaka-miraina/lambdust-sub001/internal/syntax"
)

// wrapOne reads a single top-level form and wraps it with a fresh
// use-site scope, mirroring what the evaluator does before handing a
// form to Expand.
func wrapOne(t *testing.T, src string) syntax.Datum {
	t.Helper()
	program, err := reader.Read("<test>", src)
	require.NoError(t, err)
	require.Len(t, program.Forms, 1)
	return syntax.Wrap(program.Forms[0], syntax.ScopeSet{syntax.NewScope()})
}

// TestExpandIntroducesFreshScopeForTemplateIdentifiers covers hygiene
// at the expander level directly: a template identifier not bound by
// the pattern (here `tmp`, introduced by the macro's own `let`) must
// carry a scope absent from the identifiers present at the use site,
// so it cannot collide with a caller's same-named binding.
func TestExpandIntroducesFreshScopeForTemplateIdentifiers(t *testing.T) {
	patternForm := wrapOne(t, `(_ a b)`)
	templateForm := wrapOne(t, `(let ((tmp a)) (set! a b) (set! b tmp))`)

	e := expander.New()
	e.DefineSyntax(&expander.Macro{
		Name:  "my-swap!",
		Rules: []expander.Rule{{Pattern: patternForm, Template: templateForm}},
	})

	use := wrapOne(t, `(my-swap! x y)`)
	useTmpScopes := use.Scopes // the use site never mentions tmp at all

	expanded, err := e.Expand(use)
	require.NoError(t, err)

	// Find the `tmp` identifier introduced by the template inside the
	// expansion and confirm it carries a scope the use site's own
	// identifiers (x, y) do not share.
	found := findIdentifier(t, expanded, "tmp")
	require.NotNil(t, found)
	require.False(t, found.Scopes.Subset(useTmpScopes),
		"template-introduced tmp must carry a scope absent from the use site")
}

// TestExpandLeavesNonMacroFormsUnchanged confirms Expand is a no-op on
// forms that are neither a registered macro use nor a derived form.
func TestExpandLeavesNonMacroFormsUnchanged(t *testing.T) {
	e := expander.New()
	d := wrapOne(t, `(+ 1 2)`)
	expanded, err := e.Expand(d)
	require.NoError(t, err)
	name, ok := expanded.Elements()[0].IdentifierName()
	require.True(t, ok)
	require.Equal(t, "+", name)
}

func findIdentifier(t *testing.T, d syntax.Datum, name string) *syntax.Datum {
	t.Helper()
	if n, ok := d.IdentifierName(); ok && n == name {
		return &d
	}
	if !d.IsList() {
		return nil
	}
	for _, elem := range d.Elements() {
		if found := findIdentifier(t, elem, name); found != nil {
			return found
		}
	}
	return nil
}
