package repository

import (
	"context"
	"fmt"

	"collabnotes-server/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}

type userDoc struct {
	Rev  string `json:"_rev,omitempty"`
	Type string `json:"type"`
	domain.User
}

type userRepository struct {
	client *kivik.Client
	dbName string
}

func NewUserRepository(client *kivik.Client, dbName string) UserRepository {
	return &userRepository{
		client: client,
		dbName: dbName,
	}
}

// Users are keyed by username so the document id doubles as the unique index.
func userDocID(username string) string {
	return fmt.Sprintf("user:%s", username)
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	db := r.client.DB(r.dbName)

	doc := userDoc{Type: "user", User: *user}
	if _, err := db.Put(ctx, userDocID(user.Username), doc); err != nil {
		return couchError("failed to create user", err)
	}

	return nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	db := r.client.DB(r.dbName)

	var doc userDoc
	if err := db.Get(ctx, userDocID(username)).ScanDoc(&doc); err != nil {
		return nil, couchError("failed to find user", err)
	}

	return &doc.User, nil
}

func (r *userRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	db := r.client.DB(r.dbName)

	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"type":  "user",
			"email": email,
		},
		"limit": 1,
	}

	rows := db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("failed to query user by email: %w", err)
	}
	defer rows.Close()

	return rows.Next(), rows.Err()
}
