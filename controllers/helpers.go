// Package controllers holds the HTTP handlers. Handlers decode and validate
// input, call a store or service, and answer with the JSON envelope.
package controllers

import (
	"net/http"

	"plantify/apperr"
	"plantify/middleware"
	"plantify/models"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// pathID parses the route variable key as an ObjectID
func pathID(r *http.Request, key, label string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)[key])
	if err != nil {
		return primitive.NilObjectID, apperr.Validation("Invalid " + label + " ID")
	}
	return id, nil
}

func requireUser(r *http.Request) (*models.User, error) {
	user, ok := middleware.CurrentUser(r.Context())
	if !ok {
		return nil, apperr.Unauthorized("Not authorized")
	}
	return user, nil
}
