package models

import "time"

// Comedian is a performer profile, owned by its subject.
type Comedian struct {
	ID        string    `json:"id" bson:"_id"`
	Email     string    `json:"email" bson:"email"`
	Name      string    `json:"name" bson:"name"`
	Phone     string    `json:"phone,omitempty" bson:"phone,omitempty"`
	Bio       string    `json:"bio,omitempty" bson:"bio,omitempty"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
	Version   int64     `json:"version" bson:"version"`
}

// IdentityClaim is the pre-validated identity of the caller.
type IdentityClaim struct {
	SubjectID   string `json:"sub"`
	Email       string `json:"email"`
	DisplayName string `json:"name"`
}
