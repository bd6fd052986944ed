package models

import "time"

// Entity is a persisted model. IDs and sequences are assigned by the repository on create.
type Entity interface {
	ID() string
	Sequence() int
	CreatedAt() time.Time
	UpdatedAt() time.Time
	Validate() error
}

// Repository is CRUD access to one entity type.
//
// Delete is soft: deleted entities stay in the table and are hidden from Get and List.
// The keys accepted by List are defined by each implementation.
type Repository[T Entity] interface {
	Create(entity T) error
	Get(id string) (T, error)
	Update(entity T) error
	Delete(id string) error
	List(criteria map[string]any) ([]T, error)
}

var _ Entity = (*SyncRun)(nil)
