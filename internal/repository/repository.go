// Package repository declares the persistence contracts the service layer
// depends on. Implementations live in sub-packages (see sqlstore).
package repository

import (
	"context"

	"github.com/sakif/taskboard/internal/model"
)

// TaskRepository reads and writes tasks. Every method takes the owner's user
// ID and applies it inside the same statement as the id predicate, so a task
// belonging to somebody else is never read or written.
type TaskRepository interface {
	ListByOwner(ctx context.Context, ownerID int64) ([]model.Task, error)
	GetByIDAndOwner(ctx context.Context, id, ownerID int64) (*model.Task, error)
	Create(ctx context.Context, task *model.Task) (model.WriteResult, error)
	Update(ctx context.Context, id, ownerID int64, patch model.TaskPatch) (model.WriteResult, error)
	Delete(ctx context.Context, id, ownerID int64) (model.WriteResult, error)
}

// UserRepository reads and writes user accounts.
type UserRepository interface {
	Upsert(ctx context.Context, upsert model.UserUpsert) error
	GetByOpenID(ctx context.Context, openID string) (*model.User, error)
}

// Pinger is implemented by stores that can report connectivity for the
// readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}
