package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRejectsMissingCapability(t *testing.T) {
	reg := NewRegistry()

	// sourceRow has no owner accessor, so an owner policy is a
	// programming mistake caught at registration.
	err := reg.Register(EntityType{
		Name:      "source",
		Table:     "sources",
		Prototype: sourceRow{},
		Read:      ByGroup("group_id"),
		Write:     ByOwner("owner_id"),
	})
	var misconfigured *PolicyMisconfiguredError
	require.ErrorAs(t, err, &misconfigured)
	assert.Equal(t, "source", misconfigured.Entity)
}

func TestRegisterRejectsMissingRelationMetadata(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(EntityType{
		Name:      "photometry",
		Table:     "photometry",
		Prototype: photometryRow{},
		Read:      Policy{Kind: KindGroupsMember},
		Write:     ByOwner("owner_id"),
	})
	var misconfigured *PolicyMisconfiguredError
	require.ErrorAs(t, err, &misconfigured)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	entry := EntityType{
		Name:      "source",
		Table:     "sources",
		Prototype: sourceRow{},
		Read:      ByGroup("group_id"),
		Write:     ByGroup("group_id"),
	}
	require.NoError(t, reg.Register(entry))
	err := reg.Register(entry)
	var misconfigured *PolicyMisconfiguredError
	require.ErrorAs(t, err, &misconfigured)
}

func TestFinalizeRequiresObjRootForLinkedPolicies(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(EntityType{
		Name:      "comment",
		Table:     "comments",
		Prototype: commentRow{},
		Read:      AllOf(LinkedObj("obj_id"), ByGroups("comment_groups", "comment_id")),
		Write:     ByOwner("author_id"),
	}))

	var misconfigured *PolicyMisconfiguredError
	require.ErrorAs(t, reg.Finalize(), &misconfigured)
}

type objRow struct {
	id string
}

func (o objRow) EntityType() string { return "obj" }
func (o objRow) EntityID() any      { return o.id }

type selfLinkedObjRow struct {
	id     string
	parent string
}

func (o selfLinkedObjRow) EntityType() string  { return "obj" }
func (o selfLinkedObjRow) EntityID() any       { return o.id }
func (o selfLinkedObjRow) AccessObjID() string { return o.parent }

func TestFinalizeRejectsLinkedObjRoot(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(EntityType{
		Name:      "obj",
		Table:     "objs",
		Prototype: selfLinkedObjRow{},
		ObjRoot:   true,
		Read:      AnyOf(LinkedObj("parent_id"), ViaRelation("sources", "obj_id", ByGroup("group_id"))),
		Write:     Nobody(),
	}))
	var misconfigured *PolicyMisconfiguredError
	require.ErrorAs(t, reg.Finalize(), &misconfigured)
}

func TestFinalizeAcceptsWellFormedRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(EntityType{
		Name:      "obj",
		Table:     "objs",
		Prototype: objRow{},
		ObjRoot:   true,
		Read: AnyOf(
			ViaRelation("sources", "obj_id", ByGroup("group_id")),
			ViaRelation("photometry", "obj_id", ByGroups("photometry_groups", "photometry_id")),
		),
		Write: Nobody(),
	}))
	require.NoError(t, reg.Register(EntityType{
		Name:      "comment",
		Table:     "comments",
		Prototype: commentRow{},
		Read:      AllOf(LinkedObj("obj_id"), ByGroups("comment_groups", "comment_id")),
		Write:     ByOwner("author_id"),
	}))
	assert.NoError(t, reg.Finalize())
}
