package service

import (
	"context"
	"fmt"

	"collabnotes-server/internal/domain"
	"collabnotes-server/internal/repository"
)

type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{
		userRepo: userRepo,
	}
}

// Profile returns the account behind username with the password hash cleared.
func (s *UserService) Profile(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.userRepo.FindByUsername(ctx, username)
	if err != nil {
		return nil, repoError(err, fmt.Sprintf("user %q", username))
	}

	user.Password = ""
	return user, nil
}
