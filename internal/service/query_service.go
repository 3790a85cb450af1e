// internal/service/query_service.go
package service

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/domain"
	"storefront/internal/repository"
	"storefront/internal/util"
)

// QueryService serves the read side: a user's profile joined with what they bought.
type QueryService interface {
	GetUserPurchases(ctx context.Context, username string) (*domain.UserPurchases, error)
}

type queryService struct {
	dbExecutor repository.DBExecutor
	userRepo   repository.UserRepository
}

// NewQueryService creates a new QueryService.
func NewQueryService(dbExecutor repository.DBExecutor, userRepo repository.UserRepository) QueryService {
	return &queryService{dbExecutor: dbExecutor, userRepo: userRepo}
}

func (s *queryService) GetUserPurchases(ctx context.Context, username string) (*domain.UserPurchases, error) {
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("username is required: %w", util.ErrInvalidInput)
	}
	view, err := s.userRepo.GetUserPurchases(ctx, s.dbExecutor, username)
	if err != nil {
		if util.IsError(err, util.ErrNotFound) {
			return nil, util.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user purchases: %w", err)
	}
	return view, nil
}
