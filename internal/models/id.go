package models

import (
	"strings"

	"github.com/vidtube/vidtube/pkg/apperror"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ParseID parses a hex object id coming from a request. what names the id in
// the error message.
func ParseID(raw, what string) (primitive.ObjectID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return primitive.NilObjectID, apperror.InvalidArgument(what + " is required")
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, apperror.InvalidArgument("invalid " + what)
	}
	return id, nil
}

// ParseOptionalID is ParseID for ids that may be absent, such as the viewer
// of a public page.
func ParseOptionalID(raw, what string) (*primitive.ObjectID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := ParseID(raw, what)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
