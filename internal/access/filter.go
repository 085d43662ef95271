package access

import (
	"fmt"
	"strconv"
)

// Stream filters live in a fixed table; FilterGroup policies always
// resolve through it.
const (
	filterTable    = "filters"
	filterGroupCol = "group_id"
)

// clauseBuilder renders a policy tree into a SQL clause for one
// closure. Aliases for nested relation scans are numbered so arbitrary
// nesting never collides with the outer table name.
type clauseBuilder struct {
	reg     *Registry
	closure *Closure
	n       int
}

func (b *clauseBuilder) nextAlias() string {
	a := "r" + strconv.Itoa(b.n)
	b.n++
	return a
}

func (b *clauseBuilder) build(p Policy, alias, idCol string) (Clause, error) {
	switch p.Kind {
	case KindEveryone:
		return TrueClause(), nil
	case KindNobody:
		return FalseClause(), nil
	case KindSelfGroup:
		return Clause{
			SQL:  fmt.Sprintf("%s.%s = ANY(?)", alias, idCol),
			Args: []any{b.closure.GroupIDs()},
		}, nil
	case KindGroupMember:
		return Clause{
			SQL:  fmt.Sprintf("%s.%s = ANY(?)", alias, p.GroupCol),
			Args: []any{b.closure.GroupIDs()},
		}, nil
	case KindGroupsMember:
		j := b.nextAlias()
		return Clause{
			SQL: fmt.Sprintf("EXISTS (SELECT 1 FROM %s %s WHERE %s.%s = %s.%s AND %s.group_id = ANY(?))",
				p.Join.Table, j, j, p.Join.FK, alias, idCol, j),
			Args: []any{b.closure.GroupIDs()},
		}, nil
	case KindFilterGroup:
		f := b.nextAlias()
		return Clause{
			SQL: fmt.Sprintf("EXISTS (SELECT 1 FROM %s %s WHERE %s.id = %s.%s AND %s.%s = ANY(?))",
				filterTable, f, f, alias, p.FilterCol, f, filterGroupCol),
			Args: []any{b.closure.GroupIDs()},
		}, nil
	case KindViaFK:
		r := b.nextAlias()
		inner, err := b.build(*p.Inner, r, "id")
		if err != nil {
			return Clause{}, err
		}
		return Clause{
			SQL: fmt.Sprintf("EXISTS (SELECT 1 FROM %s %s WHERE %s.id = %s.%s AND %s)",
				p.RelTable, r, r, alias, p.RelCol, inner.SQL),
			Args: inner.Args,
		}, nil
	case KindViaRelation:
		r := b.nextAlias()
		inner, err := b.build(*p.Inner, r, "id")
		if err != nil {
			return Clause{}, err
		}
		return Clause{
			SQL: fmt.Sprintf("EXISTS (SELECT 1 FROM %s %s WHERE %s.%s = %s.%s AND %s)",
				p.RelTable, r, r, p.RelCol, alias, idCol, inner.SQL),
			Args: inner.Args,
		}, nil
	case KindLinkedObj:
		if b.reg.objRoot == "" {
			return Clause{}, &PolicyMisconfiguredError{Reason: "linked policy without obj root"}
		}
		root := b.reg.entries[b.reg.objRoot]
		r := b.nextAlias()
		inner, err := b.build(root.Read, r, root.IDCol)
		if err != nil {
			return Clause{}, err
		}
		return Clause{
			SQL: fmt.Sprintf("EXISTS (SELECT 1 FROM %s %s WHERE %s.%s = %s.%s AND %s)",
				root.Table, r, r, root.IDCol, alias, p.ObjCol, inner.SQL),
			Args: inner.Args,
		}, nil
	case KindOwner:
		return Clause{
			SQL:  fmt.Sprintf("%s.%s = ?", alias, p.OwnerCol),
			Args: []any{b.closure.OwnerUserID()},
		}, nil
	case KindAnyOf, KindAllOf:
		clauses := make([]Clause, 0, len(p.Branches))
		for _, branch := range p.Branches {
			cl, err := b.build(branch, alias, idCol)
			if err != nil {
				return Clause{}, err
			}
			clauses = append(clauses, cl)
		}
		if p.Kind == KindAnyOf {
			return Or(clauses...), nil
		}
		return And(clauses...), nil
	default:
		return Clause{}, &PolicyMisconfiguredError{Reason: "unknown policy kind " + p.Kind.String()}
	}
}
