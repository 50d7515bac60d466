package models

import (
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ErrInvalidID is returned when a path or query identifier is not a 24-hex ObjectID.
var ErrInvalidID = errors.New("invalid identifier format")

// ParseID parses a hex ObjectID. Both store drivers use this format.
func ParseID(s string) (bson.ObjectID, error) {
	id, err := bson.ObjectIDFromHex(s)
	if err != nil {
		return bson.NilObjectID, ErrInvalidID
	}
	return id, nil
}

// ParseOptionalID treats an empty string as "no id" rather than an error.
func ParseOptionalID(s string) (*bson.ObjectID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := ParseID(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
