package types

import "fmt"

// Class is a type class declaration: a name and the method signatures
// its instances must provide (spec §4.T "type classes (instance
// resolution via constraint entailment)").
type Class struct {
	Name    string
	TParam  string
	Methods map[string]Term // method name -> type, with TParam free in each
}

// Instance is one type class instance: a concrete type substituted for
// the class's parameter. It records no method implementations, so an
// instance is not checked for completeness, and internal/evaluator does
// not pass instance dictionaries.
type Instance struct {
	Class string
	For   Term
}

// ClassTable tracks declared classes and their instances, and resolves
// the unique instance for a (class, type) pair — ambiguity or absence
// is a CodeAmbiguousInstance / CodeContractViolation diagnostic at the
// call site, raised by the caller since this table has no span to
// report against.
type ClassTable struct {
	classes   map[string]*Class
	instances map[string][]Instance // class name -> instances
}

func NewClassTable() *ClassTable {
	return &ClassTable{
		classes:   make(map[string]*Class),
		instances: make(map[string][]Instance),
	}
}

func (ct *ClassTable) Declare(c *Class) { ct.classes[c.Name] = c }

func (ct *ClassTable) AddInstance(inst Instance) error {
	c, ok := ct.classes[inst.Class]
	if !ok {
		return fmt.Errorf("instance declared for unknown class %s", inst.Class)
	}
	for _, existing := range ct.instances[inst.Class] {
		if existing.For.String() == inst.For.String() {
			return fmt.Errorf("duplicate instance of %s for %s", inst.Class, inst.For)
		}
	}
	_ = c
	ct.instances[inst.Class] = append(ct.instances[inst.Class], inst)
	return nil
}

// Resolve finds the unique instance of class for a concrete type,
// unifying For against t so a polymorphic instance (e.g. `(Eq (List a))`)
// can match a concrete `(List Integer)` use site.
func (ct *ClassTable) Resolve(class string, t Term) (Instance, Subst, error) {
	var match *Instance
	var matchSubst Subst
	for _, inst := range ct.instances[class] {
		s, err := Unify(inst.For, t)
		if err != nil {
			continue
		}
		if match != nil {
			return Instance{}, nil, fmt.Errorf("ambiguous instance of %s for %s", class, t)
		}
		instCopy := inst
		match = &instCopy
		matchSubst = s
	}
	if match == nil {
		return Instance{}, nil, fmt.Errorf("no instance of %s for %s", class, t)
	}
	return *match, matchSubst, nil
}
