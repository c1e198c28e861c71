package mysql

import (
	"context"
	"fmt"

	"supportconsole/internal/store"

	"github.com/google/uuid"
)

const userColumns = `BIN_TO_UUID(user_uuid) AS user_uuid, CTID, email, firstname, lastname,
	country_id, language, valid`

func (s *Store) GetUserByUUID(ctx context.Context, id uuid.UUID) (*store.User, error) {
	var u store.User
	if err := s.get(ctx, &u, "SELECT "+userColumns+" FROM user WHERE user_uuid = UUID_TO_BIN(?)", id.String()); err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	var u store.User
	if err := s.get(ctx, &u, "SELECT "+userColumns+" FROM user WHERE email = ?", email); err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", email, err)
	}
	return &u, nil
}

func (s *Store) GetUserByCTID(ctx context.Context, ctid int64) (*store.User, error) {
	var u store.User
	if err := s.get(ctx, &u, "SELECT "+userColumns+" FROM user WHERE CTID = ?", ctid); err != nil {
		return nil, fmt.Errorf("failed to get user with CTID %d: %w", ctid, err)
	}
	return &u, nil
}

func (s *Store) SearchUsers(ctx context.Context, pattern string) ([]store.User, error) {
	like := "%" + pattern + "%"

	var users []store.User
	err := s.db.SelectContext(ctx, &users,
		"SELECT "+userColumns+` FROM user
		WHERE email LIKE ? OR firstname LIKE ? OR lastname LIKE ?
		ORDER BY email
		LIMIT 20`, like, like, like)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return users, nil
}
