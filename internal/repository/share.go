package repository

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/todoshare/server-go/internal/database"
	"github.com/todoshare/server-go/internal/model"
)

// ErrDuplicateShare is returned when a grant already exists for the same
// (todo, recipient) pair.
var ErrDuplicateShare = errors.New("todo already shared with this user")

// ShareRepository handles share grant operations.
type ShareRepository interface {
	Create(ctx context.Context, params model.CreateShareParams) (*model.ShareGrant, error)
	FindByTodoID(ctx context.Context, todoID int64) ([]model.ShareGrant, error)
	FindByTodoIDs(ctx context.Context, todoIDs []int64) ([]model.ShareGrant, error)
	ExistsForUser(ctx context.Context, todoID int64, userID string, login string) (bool, error)
	Delete(ctx context.Context, todoID int64, sharedWithID string) (int64, error)
	DeleteOrphaned(ctx context.Context) (int64, error)
}

type shareRepo struct {
	db *database.DB
}

// NewShareRepository creates a new share grant repository.
func NewShareRepository(db *database.DB) ShareRepository {
	return &shareRepo{db: db}
}

func (r *shareRepo) Create(ctx context.Context, params model.CreateShareParams) (*model.ShareGrant, error) {
	var grant model.ShareGrant
	err := r.db.GetContext(ctx, &grant, `
		INSERT INTO todo_shares (todo_id, owner_id, shared_with_id, shared_with_login)
		VALUES ($1, $2, $3, $4)
		RETURNING *
	`, params.TodoID, params.OwnerID, params.SharedWithID, params.SharedWithLogin)
	if err != nil {
		if IsUniqueViolation(err) {
			return nil, ErrDuplicateShare
		}
		return nil, err
	}
	return &grant, nil
}

func (r *shareRepo) FindByTodoID(ctx context.Context, todoID int64) ([]model.ShareGrant, error) {
	grants := []model.ShareGrant{}
	err := r.db.SelectContext(ctx, &grants, `
		SELECT * FROM todo_shares WHERE todo_id = $1 ORDER BY created_at
	`, todoID)
	return grants, err
}

func (r *shareRepo) FindByTodoIDs(ctx context.Context, todoIDs []int64) ([]model.ShareGrant, error) {
	grants := []model.ShareGrant{}
	if len(todoIDs) == 0 {
		return grants, nil
	}

	query, args, err := sqlx.In(`SELECT * FROM todo_shares WHERE todo_id IN (?)`, todoIDs)
	if err != nil {
		return nil, err
	}
	err = r.db.SelectContext(ctx, &grants, r.db.Rebind(query), args...)
	return grants, err
}

func (r *shareRepo) ExistsForUser(ctx context.Context, todoID int64, userID string, login string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM todo_shares
			WHERE todo_id = $1 AND (shared_with_id = $2 OR shared_with_login = $3)
		)
	`, todoID, userID, login)
	return exists, err
}

func (r *shareRepo) Delete(ctx context.Context, todoID int64, sharedWithID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM todo_shares WHERE todo_id = $1 AND shared_with_id = $2
	`, todoID, sharedWithID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteOrphaned removes grants whose todo no longer exists. The delete path
// cascades in a transaction, so this only catches rows left behind by
// out-of-band deletions.
func (r *shareRepo) DeleteOrphaned(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM todo_shares ts
		WHERE NOT EXISTS (SELECT 1 FROM todos t WHERE t.id = ts.todo_id)
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
