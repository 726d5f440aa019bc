// internal/domain/library_session.go
package domain

import "time"

// LibrarySession is a creator-owned, reusable session template. Clients never
// mutate it; personalization always happens on a copy.
type LibrarySession struct {
	ID        string     `bson:"_id" json:"id"`
	CreatorID string     `bson:"creatorId" json:"creatorId"`
	Title     string     `bson:"title" json:"title"`
	Image     string     `bson:"image,omitempty" json:"image,omitempty"`
	Exercises []Exercise `bson:"exercises" json:"exercises"`
	CreatedAt time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time  `bson:"updatedAt" json:"updatedAt"`
}
