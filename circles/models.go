// Package circles groups accounts into circles. Public circles are listed
// by activity; any verified account holding a session may create one.
package circles

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Circle is the circle model
type Circle struct {
	bun.BaseModel `bun:"table:circles,alias:cir"`
	ID            uuid.UUID  `bun:"id,pk" json:"id"`
	Name          string     `bun:"name,notnull" json:"name"`
	SlugName      string     `bun:"slug_name,notnull,unique" json:"slug_name"`
	About         string     `bun:"about,notnull" json:"about"`
	Picture       string     `bun:"picture,notnull" json:"picture,omitempty"`
	RidesOffered  int        `bun:"rides_offered,notnull" json:"rides_offered"`
	RidesTaken    int        `bun:"rides_taken,notnull" json:"rides_taken"`
	Verified      bool       `bun:"is_verified,notnull" json:"verified"`
	IsPublic      bool       `bun:"is_public,notnull" json:"is_public"`
	IsLimited     bool       `bun:"is_limited,notnull" json:"is_limited"`
	MembersLimit  int        `bun:"members_limit,notnull" json:"members_limit"`
	CreatedBy     *uuid.UUID `bun:"created_by" json:"-"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull" json:"updated_at"`
}

// Summary is the listing view of a circle
type Summary struct {
	Name         string `json:"name"`
	SlugName     string `json:"slug_name"`
	RidesOffered int    `json:"rides_offered"`
	RidesTaken   int    `json:"rides_taken"`
	MembersLimit int    `json:"members_limit"`
}

func (c *Circle) Summary() Summary {
	return Summary{
		Name:         c.Name,
		SlugName:     c.SlugName,
		RidesOffered: c.RidesOffered,
		RidesTaken:   c.RidesTaken,
		MembersLimit: c.MembersLimit,
	}
}
