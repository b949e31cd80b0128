package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Suggestion is a message left through the contact form.
type Suggestion struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email" json:"email"`
	RUT       string             `bson:"rut,omitempty" json:"rut,omitempty"`
	Message   string             `bson:"message" json:"message"`
	Read      bool               `bson:"read" json:"read"`
	Responded bool               `bson:"responded" json:"responded"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
