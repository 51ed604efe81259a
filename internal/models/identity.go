package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Identity is an Aadhaar number to registered email mapping, owned by the
// directory collection and read-only here.
type Identity struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitzero"`
	AadharNumber    string             `bson:"aadharNumber" json:"aadharNumber"`
	RegisteredEmail string             `bson:"registeredEmail,omitempty" json:"registeredEmail,omitempty"`
}
