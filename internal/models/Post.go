package models

import "time"

const (
	MaxNameLength    = 50
	MaxMessageLength = 500
	PaletteSize      = 6
)

// Placement is the visual position of a post on the wall. It is computed once
// when the post is submitted and stored with it, so the layout does not move
// between visits.
type Placement struct {
	Column           int     `json:"column"`
	Row              int     `json:"row"`
	HorizontalOffset float64 `json:"x"`
	VerticalOffset   float64 `json:"y"`
	RotationDegrees  float64 `json:"rotation"`
	ColorIndex       int     `json:"color"`
}

type Post struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Message      string     `json:"message"`
	CreatedAt    time.Time  `json:"createdAt"`
	VisitorToken string     `json:"-"`
	Placement    *Placement `json:"placement,omitempty"`
}
