package access

import "fmt"

// PolicyMisconfiguredError reports an entity type registered with a
// policy whose required relation or capability is missing. It is raised
// at registration time only; a running engine never produces it.
type PolicyMisconfiguredError struct {
	Entity string
	Reason string
}

func (e *PolicyMisconfiguredError) Error() string {
	return fmt.Sprintf("access: policy misconfigured for %q: %s", e.Entity, e.Reason)
}

// EntityType declares how one entity type is stored and which policies
// govern it per mode.
type EntityType struct {
	// Name is the registry key, matching Entity.EntityType of the
	// domain struct.
	Name string
	// Table and IDCol locate rows for query-side evaluation. IDCol
	// defaults to "id".
	Table string
	IDCol string
	// Prototype is a zero value of the domain struct, used to verify
	// the capability interfaces the policies require.
	Prototype Entity
	// ObjRoot marks the astronomical-object root type that LinkedObj
	// policies resolve against. Exactly one registered type may set it.
	ObjRoot bool

	Read  Policy
	Write Policy
}

// Registry holds the declared entity types. All registration happens
// during startup wiring; lookups at request time are read-only.
type Registry struct {
	entries map[string]EntityType
	objRoot string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]EntityType)}
}

// Register validates and stores an entity type declaration.
func (r *Registry) Register(t EntityType) error {
	if t.Name == "" || t.Table == "" {
		return &PolicyMisconfiguredError{Entity: t.Name, Reason: "name and table are required"}
	}
	if t.IDCol == "" {
		t.IDCol = "id"
	}
	if _, dup := r.entries[t.Name]; dup {
		return &PolicyMisconfiguredError{Entity: t.Name, Reason: "registered twice"}
	}
	if t.Prototype == nil {
		return &PolicyMisconfiguredError{Entity: t.Name, Reason: "prototype is required"}
	}
	if err := r.validatePolicy(t, t.Read, "read"); err != nil {
		return err
	}
	if err := r.validatePolicy(t, t.Write, "write"); err != nil {
		return err
	}
	if t.ObjRoot {
		if r.objRoot != "" {
			return &PolicyMisconfiguredError{Entity: t.Name, Reason: "obj root already registered as " + r.objRoot}
		}
		r.objRoot = t.Name
	}
	r.entries[t.Name] = t
	return nil
}

// MustRegister panics on registration failure. Policy misconfiguration
// is a programming error; wiring code uses this to fail at startup.
func (r *Registry) MustRegister(t EntityType) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Finalize verifies cross-type references once all types are
// registered: LinkedObj policies need an obj root, and the obj root's
// own read policy must not link further (single hop).
func (r *Registry) Finalize() error {
	for name, t := range r.entries {
		if containsKind(t.Read, KindLinkedObj) || containsKind(t.Write, KindLinkedObj) {
			if r.objRoot == "" {
				return &PolicyMisconfiguredError{Entity: name, Reason: "linked policy declared but no obj root registered"}
			}
		}
	}
	if r.objRoot != "" {
		root := r.entries[r.objRoot]
		if containsKind(root.Read, KindLinkedObj) {
			return &PolicyMisconfiguredError{Entity: r.objRoot, Reason: "obj root read policy may not itself be linked"}
		}
	}
	return nil
}

func (r *Registry) entry(name string) (EntityType, error) {
	t, ok := r.entries[name]
	if !ok {
		return EntityType{}, &PolicyMisconfiguredError{Entity: name, Reason: "not registered"}
	}
	return t, nil
}

func (r *Registry) validatePolicy(t EntityType, p Policy, mode string) error {
	fail := func(reason string) error {
		return &PolicyMisconfiguredError{Entity: t.Name, Reason: mode + " policy: " + reason}
	}
	switch p.Kind {
	case KindEveryone, KindNobody, KindSelfGroup:
		return nil
	case KindGroupMember:
		if p.GroupCol == "" {
			return fail("group column is required")
		}
		if _, ok := t.Prototype.(GroupScoped); !ok {
			return fail("prototype does not expose a group")
		}
	case KindGroupsMember:
		if p.Join.Table == "" || p.Join.FK == "" {
			return fail("group join table is required")
		}
		if _, ok := t.Prototype.(GroupShared); !ok {
			return fail("prototype does not expose shared groups")
		}
	case KindFilterGroup:
		if p.FilterCol == "" {
			return fail("filter column is required")
		}
		if _, ok := t.Prototype.(FilterScoped); !ok {
			return fail("prototype does not expose a filter group")
		}
	case KindViaFK, KindViaRelation:
		if p.RelTable == "" || p.RelCol == "" {
			return fail("relation table and column are required")
		}
		if p.Inner == nil {
			return fail("relation policy needs an inner policy")
		}
		return r.validateInner(t, *p.Inner, mode)
	case KindLinkedObj:
		if p.ObjCol == "" {
			return fail("obj column is required")
		}
		if _, ok := t.Prototype.(ObjLinked); !ok {
			return fail("prototype does not expose an obj reference")
		}
	case KindOwner:
		if p.OwnerCol == "" {
			return fail("owner column is required")
		}
		if _, ok := t.Prototype.(Owned); !ok {
			return fail("prototype does not expose an owner")
		}
	case KindAnyOf, KindAllOf:
		if len(p.Branches) == 0 {
			return fail("composite policy needs at least one branch")
		}
		for _, b := range p.Branches {
			if err := r.validatePolicy(t, b, mode); err != nil {
				return err
			}
		}
	default:
		return fail("unknown policy kind")
	}
	return nil
}

// validateInner checks policies applied to related tables, where the
// prototype's capability interfaces do not apply (the related row is
// never evaluated in memory).
func (r *Registry) validateInner(t EntityType, p Policy, mode string) error {
	fail := func(reason string) error {
		return &PolicyMisconfiguredError{Entity: t.Name, Reason: mode + " policy: " + reason}
	}
	switch p.Kind {
	case KindEveryone, KindNobody:
		return nil
	case KindGroupMember:
		if p.GroupCol == "" {
			return fail("inner group column is required")
		}
	case KindGroupsMember:
		if p.Join.Table == "" || p.Join.FK == "" {
			return fail("inner group join table is required")
		}
	case KindFilterGroup:
		if p.FilterCol == "" {
			return fail("inner filter column is required")
		}
	case KindOwner:
		if p.OwnerCol == "" {
			return fail("inner owner column is required")
		}
	case KindViaFK, KindViaRelation:
		if p.RelTable == "" || p.RelCol == "" {
			return fail("inner relation table and column are required")
		}
		if p.Inner == nil {
			return fail("inner relation policy needs an inner policy")
		}
		return r.validateInner(t, *p.Inner, mode)
	case KindAnyOf, KindAllOf:
		if len(p.Branches) == 0 {
			return fail("inner composite policy needs at least one branch")
		}
		for _, b := range p.Branches {
			if err := r.validateInner(t, b, mode); err != nil {
				return err
			}
		}
	default:
		return fail("policy kind not usable on a related table")
	}
	return nil
}

func containsKind(p Policy, k Kind) bool {
	if p.Kind == k {
		return true
	}
	if p.Inner != nil && containsKind(*p.Inner, k) {
		return true
	}
	for _, b := range p.Branches {
		if containsKind(b, k) {
			return true
		}
	}
	return false
}
