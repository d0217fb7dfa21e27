package services

import (
	"context"
	"strings"

	"budgetbook/internal/core"
)

type TagStore interface {
	CreateTag(ctx context.Context, t core.Tag) (core.Tag, error)
	ListTags(ctx context.Context, owner core.OwnerID) ([]core.Tag, error)
}

type TagService struct {
	store TagStore
}

func NewTagService(store TagStore) *TagService {
	return &TagService{store: store}
}

// Create adds a tag. Names are unique per owner regardless of case.
func (s *TagService) Create(ctx context.Context, t core.Tag) (core.Tag, error) {
	t.Name = strings.TrimSpace(t.Name)
	if err := t.Validate(); err != nil {
		return core.Tag{}, err
	}
	return s.store.CreateTag(ctx, t)
}

func (s *TagService) List(ctx context.Context, owner core.OwnerID) ([]core.Tag, error) {
	return s.store.ListTags(ctx, owner)
}
