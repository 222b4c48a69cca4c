package users

import "context"

// User is a single record in the user list, identified by its name
type User struct {
	Name string `json:"name"`
}

// Store represents the subset of storage functionality used to view and modify the
// user list. Names are stored as given: it's up to the Store whether a name that's
// already present can be added again.
type Store interface {
	ListUsers(ctx context.Context) ([]User, error)
	AddUser(ctx context.Context, name string) error
	RemoveUser(ctx context.Context, name string) error
}
