package todo

import (
	"context"
)

// Repository is the todos relation as seen through one credential. Every
// implementation is already scoped to a subject; rows owned by anyone else
// are invisible to it. SetComplete and Delete report ErrNotFound when no
// visible row matches id.
type Repository interface {
	List(ctx context.Context) ([]Todo, error)
	Create(ctx context.Context, params CreateParams) (*Todo, error)
	SetComplete(ctx context.Context, id int64, complete bool) (*Todo, error)
	Delete(ctx context.Context, id int64) (*Todo, error)
}
