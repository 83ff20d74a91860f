package ports

import (
	"context"

	"github.com/taskboard/task-system/internal/core/domain"
)

type AuthService interface {
	Register(ctx context.Context, username, password string, role domain.Role) (*domain.User, error)
	Login(ctx context.Context, username, password string) (string, *domain.User, error)
	ListUsers(ctx context.Context, caller domain.Identity) ([]*domain.User, error)
}
