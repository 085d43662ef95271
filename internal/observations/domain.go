package observations

import (
	"time"

	"github.com/aurora-portal/aurora/internal/access"
)

// Photometry is one photometric measurement of an obj, shared with an
// explicit set of groups chosen at upload time.
type Photometry struct {
	ID        int64     `json:"id"`
	ObjID     string    `json:"obj_id"`
	MJD       float64   `json:"mjd"`
	Flux      *float64  `json:"flux"`
	FluxErr   float64   `json:"fluxerr"`
	Band      string    `json:"band"`
	OwnerID   int64     `json:"owner_id"`
	GroupIDs  []int64   `json:"group_ids"`
	CreatedAt time.Time `json:"created_at"`
}

// EntityType implements access.Entity.
func (p Photometry) EntityType() string { return "photometry" }

// EntityID implements access.Entity.
func (p Photometry) EntityID() any { return p.ID }

// AccessGroupIDs lists the groups the measurement is shared with.
func (p Photometry) AccessGroupIDs() []int64 { return p.GroupIDs }

// AccessOwnerID is the uploading user; only they may modify the row.
func (p Photometry) AccessOwnerID() int64 { return p.OwnerID }

// Spectrum is one observed spectrum of an obj.
type Spectrum struct {
	ID          int64     `json:"id"`
	ObjID       string    `json:"obj_id"`
	ObservedAt  time.Time `json:"observed_at"`
	Wavelengths []float64 `json:"wavelengths"`
	Fluxes      []float64 `json:"fluxes"`
	OwnerID     int64     `json:"owner_id"`
	GroupIDs    []int64   `json:"group_ids"`
}

// EntityType implements access.Entity.
func (s Spectrum) EntityType() string { return "spectrum" }

// EntityID implements access.Entity.
func (s Spectrum) EntityID() any { return s.ID }

// AccessGroupIDs lists the groups the spectrum is shared with.
func (s Spectrum) AccessGroupIDs() []int64 { return s.GroupIDs }

// AccessOwnerID is the uploading user.
func (s Spectrum) AccessOwnerID() int64 { return s.OwnerID }

// Thumbnail is a survey cutout image attached to an obj. Thumbnails
// carry no sharing rows; whoever can read the obj can see them.
type Thumbnail struct {
	ID        int64  `json:"id"`
	ObjID     string `json:"obj_id"`
	Type      string `json:"type"`
	PublicURL string `json:"public_url"`
}

// EntityType implements access.Entity.
func (t Thumbnail) EntityType() string { return "thumbnail" }

// EntityID implements access.Entity.
func (t Thumbnail) EntityID() any { return t.ID }

// AccessObjID ties the thumbnail's readability to its obj.
func (t Thumbnail) AccessObjID() string { return t.ObjID }

// RegisterTypes declares the observation access policies.
func RegisterTypes(reg *access.Registry) {
	reg.MustRegister(access.EntityType{
		Name: "photometry", Table: "photometry", Prototype: Photometry{},
		Read:  access.ByGroups("photometry_groups", "photometry_id"),
		Write: access.ByOwner("owner_id"),
	})
	reg.MustRegister(access.EntityType{
		Name: "spectrum", Table: "spectra", Prototype: Spectrum{},
		Read:  access.ByGroups("spectrum_groups", "spectrum_id"),
		Write: access.ByOwner("owner_id"),
	})
	reg.MustRegister(access.EntityType{
		Name: "thumbnail", Table: "thumbnails", Prototype: Thumbnail{},
		Read:  access.LinkedObj("obj_id"),
		Write: access.Nobody(),
	})
}
