package catalog

import (
	"time"

	"github.com/aurora-portal/aurora/internal/access"
)

// Obj is an astronomical object: the root every linked record hangs
// off. An obj has no sharing rows of its own; it is visible exactly
// when at least one source, candidate or photometry row attached to it
// is.
type Obj struct {
	ID        string    `json:"id"`
	RA        float64   `json:"ra"`
	Dec       float64   `json:"dec"`
	Redshift  *float64  `json:"redshift,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EntityType implements access.Entity.
func (o Obj) EntityType() string { return "obj" }

// EntityID implements access.Entity.
func (o Obj) EntityID() any { return o.ID }

// Source is an obj saved to a group. The same obj may be saved to many
// groups, each save being its own row.
type Source struct {
	ID      int64     `json:"id"`
	ObjID   string    `json:"obj_id"`
	GroupID int64     `json:"group_id"`
	SavedBy int64     `json:"saved_by"`
	SavedAt time.Time `json:"saved_at"`
}

// EntityType implements access.Entity.
func (s Source) EntityType() string { return "source" }

// EntityID implements access.Entity.
func (s Source) EntityID() any { return s.ID }

// AccessGroupID scopes a source to its group.
func (s Source) AccessGroupID() int64 { return s.GroupID }

// Candidate is an obj that passed a stream filter. Its visibility
// follows the filter's group.
type Candidate struct {
	ID            int64     `json:"id"`
	ObjID         string    `json:"obj_id"`
	FilterID      int64     `json:"filter_id"`
	FilterGroupID int64     `json:"filter_group_id"`
	PassedAt      time.Time `json:"passed_at"`
}

// EntityType implements access.Entity.
func (c Candidate) EntityType() string { return "candidate" }

// EntityID implements access.Entity.
func (c Candidate) EntityID() any { return c.ID }

// AccessFilterGroupID exposes the owning filter's group for in-memory
// checks; queries join through the filters table instead.
func (c Candidate) AccessFilterGroupID() int64 { return c.FilterGroupID }

// Filter selects candidates from a stream on behalf of one group.
type Filter struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	StreamID int64  `json:"stream_id"`
	GroupID  int64  `json:"group_id"`
}

// EntityType implements access.Entity.
func (f Filter) EntityType() string { return "filter" }

// EntityID implements access.Entity.
func (f Filter) EntityID() any { return f.ID }

// AccessGroupID scopes a filter to its group.
func (f Filter) AccessGroupID() int64 { return f.GroupID }

// Stream is an alert stream. Streams are provisioned by operators;
// groups are granted access through stream_groups.
type Stream struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	GroupIDs []int64 `json:"group_ids"`
}

// EntityType implements access.Entity.
func (s Stream) EntityType() string { return "stream" }

// EntityID implements access.Entity.
func (s Stream) EntityID() any { return s.ID }

// AccessGroupIDs lists the groups granted access to the stream.
func (s Stream) AccessGroupIDs() []int64 { return s.GroupIDs }

// RegisterTypes declares the catalog access policies. The obj root's
// policy is a union over its attachment relations: saved sources,
// passed candidates and shared photometry.
func RegisterTypes(reg *access.Registry) {
	objPolicy := access.AnyOf(
		access.ViaRelation("sources", "obj_id", access.ByGroup("group_id")),
		access.ViaRelation("candidates", "obj_id", access.ByFilterGroup("filter_id")),
		access.ViaRelation("photometry", "obj_id", access.ByGroups("photometry_groups", "photometry_id")),
	)
	reg.MustRegister(access.EntityType{
		Name: "obj", Table: "objs", Prototype: Obj{}, ObjRoot: true,
		Read: objPolicy, Write: objPolicy,
	})
	reg.MustRegister(access.EntityType{
		Name: "source", Table: "sources", Prototype: Source{},
		Read: access.ByGroup("group_id"), Write: access.ByGroup("group_id"),
	})
	reg.MustRegister(access.EntityType{
		Name: "candidate", Table: "candidates", Prototype: Candidate{},
		Read: access.ByFilterGroup("filter_id"), Write: access.ByFilterGroup("filter_id"),
	})
	reg.MustRegister(access.EntityType{
		Name: "filter", Table: "filters", Prototype: Filter{},
		Read: access.ByGroup("group_id"), Write: access.ByGroup("group_id"),
	})
	reg.MustRegister(access.EntityType{
		Name: "stream", Table: "streams", Prototype: Stream{},
		Read: access.ByGroups("stream_groups", "stream_id"), Write: access.Nobody(),
	})
}
