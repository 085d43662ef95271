package access

import "fmt"

// Entity is the minimal view of a loaded row the engine needs. Domain
// structs additionally implement whichever capability interfaces their
// registered policies require; the registry verifies this at
// registration time.
type Entity interface {
	// EntityType is the registry name of the entity's type.
	EntityType() string
	// EntityID is the primary key value.
	EntityID() any
}

// GroupScoped is implemented by entities with a singular group foreign key.
type GroupScoped interface {
	AccessGroupID() int64
}

// GroupShared is implemented by entities shared with many groups.
type GroupShared interface {
	AccessGroupIDs() []int64
}

// FilterScoped is implemented by entities reachable through a stream
// filter's group.
type FilterScoped interface {
	AccessFilterGroupID() int64
}

// ObjLinked is implemented by entities whose readability derives from
// their owning astronomical object.
type ObjLinked interface {
	AccessObjID() string
}

// Owned is implemented by entities with an owning user.
type Owned interface {
	AccessOwnerID() int64
}

// Kind enumerates the policy variants.
type Kind int

const (
	// KindEveryone admits any resolved principal.
	KindEveryone Kind = iota + 1
	// KindNobody admits no one; combined with the engine's admin
	// override it expresses admin-managed entities.
	KindNobody
	// KindSelfGroup is the groups table's own policy: a group row is
	// accessible iff its id is in the closure.
	KindSelfGroup
	// KindGroupMember checks a singular group foreign key.
	KindGroupMember
	// KindGroupsMember checks a group join table for intersection.
	KindGroupsMember
	// KindFilterGroup checks the group of the referenced stream filter.
	KindFilterGroup
	// KindViaFK descends a forward foreign key and applies an inner
	// policy to the referenced row.
	KindViaFK
	// KindViaRelation applies an inner policy to child rows referencing
	// this row; the row is accessible if any child passes.
	KindViaRelation
	// KindLinkedObj ties accessibility to the readability of the
	// referenced obj. Single hop: the obj's own policy may not link
	// further.
	KindLinkedObj
	// KindOwner compares an owner column to the closure's user.
	KindOwner
	// KindAnyOf is a disjunction of branches.
	KindAnyOf
	// KindAllOf is a conjunction of branches.
	KindAllOf
)

// JoinSpec names a group join table and its entity-side column.
type JoinSpec struct {
	Table string
	FK    string
}

// Policy is a declarative accessibility rule for one entity type and
// mode. It is a plain value: inspectable, comparable in tests, and
// dispatched by kind rather than inherited behavior.
type Policy struct {
	Kind      Kind
	GroupCol  string
	Join      JoinSpec
	FilterCol string
	RelTable  string
	RelCol    string
	ObjCol    string
	OwnerCol  string
	Inner     *Policy
	Branches  []Policy
}

// Everyone admits any resolved principal.
func Everyone() Policy { return Policy{Kind: KindEveryone} }

// Nobody admits no principal; only the admin override grants access.
func Nobody() Policy { return Policy{Kind: KindNobody} }

// SelfGroup is the policy of the groups table itself.
func SelfGroup() Policy { return Policy{Kind: KindSelfGroup} }

// ByGroup admits members of the group referenced by the column.
func ByGroup(col string) Policy { return Policy{Kind: KindGroupMember, GroupCol: col} }

// ByGroups admits principals whose groups intersect the entity's
// share set stored in the join table.
func ByGroups(joinTable, fk string) Policy {
	return Policy{Kind: KindGroupsMember, Join: JoinSpec{Table: joinTable, FK: fk}}
}

// ByFilterGroup admits members of the group owning the referenced
// stream filter.
func ByFilterGroup(col string) Policy { return Policy{Kind: KindFilterGroup, FilterCol: col} }

// ViaFK applies inner to the row referenced by the foreign key column.
func ViaFK(table, col string, inner Policy) Policy {
	return Policy{Kind: KindViaFK, RelTable: table, RelCol: col, Inner: &inner}
}

// ViaRelation admits the row if any child row in table (whose fk column
// references this row) passes inner.
func ViaRelation(table, fk string, inner Policy) Policy {
	return Policy{Kind: KindViaRelation, RelTable: table, RelCol: fk, Inner: &inner}
}

// LinkedObj ties readability to the referenced obj's read policy.
func LinkedObj(col string) Policy { return Policy{Kind: KindLinkedObj, ObjCol: col} }

// ByOwner admits the owning user named by the column.
func ByOwner(col string) Policy { return Policy{Kind: KindOwner, OwnerCol: col} }

// AnyOf admits the row if any branch does. Every branch contributes to
// the generated query; evaluation is a true union, not a first-match.
func AnyOf(branches ...Policy) Policy { return Policy{Kind: KindAnyOf, Branches: branches} }

// AllOf admits the row only if every branch does.
func AllOf(branches ...Policy) Policy { return Policy{Kind: KindAllOf, Branches: branches} }

// allows evaluates the policy in memory against a loaded entity.
// The second result reports whether the policy is decidable without a
// query; relational kinds (ViaFK, ViaRelation, LinkedObj) are not.
func (p Policy) allows(e Entity, c *Closure) (allowed, decided bool) {
	switch p.Kind {
	case KindEveryone:
		return true, true
	case KindNobody:
		return false, true
	case KindSelfGroup:
		id, ok := e.EntityID().(int64)
		return ok && c.InGroup(id), true
	case KindGroupMember:
		g, ok := e.(GroupScoped)
		if !ok {
			return false, false
		}
		return c.InGroup(g.AccessGroupID()), true
	case KindGroupsMember:
		g, ok := e.(GroupShared)
		if !ok {
			return false, false
		}
		for _, id := range g.AccessGroupIDs() {
			if c.InGroup(id) {
				return true, true
			}
		}
		return false, true
	case KindFilterGroup:
		f, ok := e.(FilterScoped)
		if !ok {
			return false, false
		}
		return c.InGroup(f.AccessFilterGroupID()), true
	case KindOwner:
		o, ok := e.(Owned)
		if !ok {
			return false, false
		}
		owner := o.AccessOwnerID()
		return owner != 0 && owner == c.OwnerUserID(), true
	case KindAnyOf:
		undecided := false
		for _, b := range p.Branches {
			ok, dec := b.allows(e, c)
			if dec && ok {
				return true, true
			}
			if !dec {
				undecided = true
			}
		}
		return false, !undecided
	case KindAllOf:
		undecided := false
		for _, b := range p.Branches {
			ok, dec := b.allows(e, c)
			if dec && !ok {
				return false, true
			}
			if !dec {
				undecided = true
			}
		}
		return !undecided, !undecided
	default:
		return false, false
	}
}

func (k Kind) String() string {
	switch k {
	case KindEveryone:
		return "everyone"
	case KindNobody:
		return "nobody"
	case KindSelfGroup:
		return "self-group"
	case KindGroupMember:
		return "group-member"
	case KindGroupsMember:
		return "groups-member"
	case KindFilterGroup:
		return "filter-group"
	case KindViaFK:
		return "via-fk"
	case KindViaRelation:
		return "via-relation"
	case KindLinkedObj:
		return "linked-obj"
	case KindOwner:
		return "owner"
	case KindAnyOf:
		return "any-of"
	case KindAllOf:
		return "all-of"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}
