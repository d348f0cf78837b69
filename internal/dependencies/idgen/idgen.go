package idgen

import (
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Generator produces identifiers that can be mocked for testing
type Generator interface {
	// NewID returns a new entity ID as a 24-char hex ObjectID
	NewID() string

	// NewToken returns an unguessable token for confirmation links and token IDs
	NewToken() string
}

// ObjectIDGenerator implements Generator with Mongo ObjectIDs and random UUIDs
type ObjectIDGenerator struct{}

// New creates a new ObjectIDGenerator
func New() *ObjectIDGenerator {
	return &ObjectIDGenerator{}
}

// NewID returns a fresh ObjectID in hex form
func (g *ObjectIDGenerator) NewID() string {
	return primitive.NewObjectID().Hex()
}

// NewToken returns a random v4 UUID
func (g *ObjectIDGenerator) NewToken() string {
	return uuid.NewString()
}

// IsID reports whether s parses as an ID produced by NewID
func IsID(s string) bool {
	return primitive.IsValidObjectID(s)
}
