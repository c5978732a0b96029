package models

// ActorKind separates end users from operators
type ActorKind string

const (
	// ActorUser is a regular member of the platform
	ActorUser ActorKind = "USER"
	// ActorAdmin is an operator using the admin dashboard
	ActorAdmin ActorKind = "ADMIN"
)

// ActorIdentity is the authenticated principal behind a connection or request
type ActorIdentity struct {
	ID          string    `json:"id" bson:"id"`
	Kind        ActorKind `json:"kind" bson:"kind"`
	DisplayName string    `json:"displayName" bson:"displayName"`
}

// IsAdmin reports whether the actor is an operator
func (a ActorIdentity) IsAdmin() bool {
	return a.Kind == ActorAdmin
}
