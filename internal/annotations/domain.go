package annotations

import (
	"encoding/json"
	"time"

	"github.com/aurora-portal/aurora/internal/access"
)

// Comment is a free-text note on an obj, visible only to principals
// that can both read the obj and share one of the comment's groups.
type Comment struct {
	ID        int64     `json:"id"`
	ObjID     string    `json:"obj_id"`
	AuthorID  int64     `json:"author_id"`
	Text      string    `json:"text"`
	GroupIDs  []int64   `json:"group_ids"`
	CreatedAt time.Time `json:"created_at"`
}

// EntityType implements access.Entity.
func (c Comment) EntityType() string { return "comment" }

// EntityID implements access.Entity.
func (c Comment) EntityID() any { return c.ID }

// AccessObjID links readability to the obj.
func (c Comment) AccessObjID() string { return c.ObjID }

// AccessGroupIDs lists the comment's sharing set.
func (c Comment) AccessGroupIDs() []int64 { return c.GroupIDs }

// AccessOwnerID is the author.
func (c Comment) AccessOwnerID() int64 { return c.AuthorID }

// Annotation is structured machine-generated metadata on an obj, keyed
// by origin.
type Annotation struct {
	ID        int64           `json:"id"`
	ObjID     string          `json:"obj_id"`
	AuthorID  int64           `json:"author_id"`
	Origin    string          `json:"origin"`
	Data      json.RawMessage `json:"data"`
	GroupIDs  []int64         `json:"group_ids"`
	CreatedAt time.Time       `json:"created_at"`
}

// EntityType implements access.Entity.
func (a Annotation) EntityType() string { return "annotation" }

// EntityID implements access.Entity.
func (a Annotation) EntityID() any { return a.ID }

// AccessObjID links readability to the obj.
func (a Annotation) AccessObjID() string { return a.ObjID }

// AccessGroupIDs lists the annotation's sharing set.
func (a Annotation) AccessGroupIDs() []int64 { return a.GroupIDs }

// AccessOwnerID is the author.
func (a Annotation) AccessOwnerID() int64 { return a.AuthorID }

// Classification is a taxonomy label assigned to an obj.
type Classification struct {
	ID          int64     `json:"id"`
	ObjID       string    `json:"obj_id"`
	AuthorID    int64     `json:"author_id"`
	Label       string    `json:"label"`
	Probability *float64  `json:"probability,omitempty"`
	GroupIDs    []int64   `json:"group_ids"`
	CreatedAt   time.Time `json:"created_at"`
}

// EntityType implements access.Entity.
func (c Classification) EntityType() string { return "classification" }

// EntityID implements access.Entity.
func (c Classification) EntityID() any { return c.ID }

// AccessObjID links readability to the obj.
func (c Classification) AccessObjID() string { return c.ObjID }

// AccessGroupIDs lists the classification's sharing set.
func (c Classification) AccessGroupIDs() []int64 { return c.GroupIDs }

// AccessOwnerID is the author.
func (c Classification) AccessOwnerID() int64 { return c.AuthorID }

// FollowupRequest asks an observing resource for more data on an obj.
// Only the requester may edit or cancel it.
type FollowupRequest struct {
	ID          int64     `json:"id"`
	ObjID       string    `json:"obj_id"`
	RequesterID int64     `json:"requester_id"`
	Instrument  string    `json:"instrument"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	GroupIDs    []int64   `json:"group_ids"`
	CreatedAt   time.Time `json:"created_at"`
}

// EntityType implements access.Entity.
func (f FollowupRequest) EntityType() string { return "followup_request" }

// EntityID implements access.Entity.
func (f FollowupRequest) EntityID() any { return f.ID }

// AccessObjID links readability to the obj.
func (f FollowupRequest) AccessObjID() string { return f.ObjID }

// AccessGroupIDs lists the request's sharing set.
func (f FollowupRequest) AccessGroupIDs() []int64 { return f.GroupIDs }

// AccessOwnerID is the requester.
func (f FollowupRequest) AccessOwnerID() int64 { return f.RequesterID }

// RegisterTypes declares the annotation access policies. Reading any of
// these requires both obj readability and group overlap; writes are
// author-only.
func RegisterTypes(reg *access.Registry) {
	reg.MustRegister(access.EntityType{
		Name: "comment", Table: "comments", Prototype: Comment{},
		Read:  access.AllOf(access.LinkedObj("obj_id"), access.ByGroups("comment_groups", "comment_id")),
		Write: access.ByOwner("author_id"),
	})
	reg.MustRegister(access.EntityType{
		Name: "annotation", Table: "annotations", Prototype: Annotation{},
		Read:  access.AllOf(access.LinkedObj("obj_id"), access.ByGroups("annotation_groups", "annotation_id")),
		Write: access.ByOwner("author_id"),
	})
	reg.MustRegister(access.EntityType{
		Name: "classification", Table: "classifications", Prototype: Classification{},
		Read:  access.AllOf(access.LinkedObj("obj_id"), access.ByGroups("classification_groups", "classification_id")),
		Write: access.ByOwner("author_id"),
	})
	reg.MustRegister(access.EntityType{
		Name: "followup_request", Table: "followup_requests", Prototype: FollowupRequest{},
		Read:  access.AllOf(access.LinkedObj("obj_id"), access.ByGroups("followup_request_groups", "followup_request_id")),
		Write: access.ByOwner("requester_id"),
	})
}
