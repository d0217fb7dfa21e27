package services

import (
	"context"
	"time"

	"budgetbook/internal/cache"
	"budgetbook/internal/core"
	"budgetbook/internal/log"
	"budgetbook/internal/storage"
)

// FallbackCategoryName is the root category that receives the entries of
// deleted categories.
const FallbackCategoryName = "Other"

type CategoryStore interface {
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	ListCategories(ctx context.Context, owner core.OwnerID) ([]core.Category, error)
	ReparentCategory(ctx context.Context, owner core.OwnerID, id int64, parent *int64) (core.Category, error)
	DeleteCategory(ctx context.Context, owner core.OwnerID, id int64, fallbackName string) (storage.CategoryDeletion, error)
}

// CategoryService answers hierarchy questions from a per-owner cached forest
// and drops the cached forest whenever the owner's categories change.
type CategoryService struct {
	store   CategoryStore
	forests *cache.LRUCache[core.OwnerID, *core.Forest]
	logger  *log.Logger
}

func NewCategoryService(store CategoryStore, cacheSize int, ttl time.Duration) *CategoryService {
	return &CategoryService{
		store:   store,
		forests: cache.NewLRUCache[core.OwnerID, *core.Forest](cacheSize, ttl, func(o core.OwnerID) string { return string(o) }),
		logger:  log.Default(log.ComponentCache),
	}
}

// Cache exposes the forest cache so it can be registered for periodic cleanup.
func (s *CategoryService) Cache() *cache.LRUCache[core.OwnerID, *core.Forest] {
	return s.forests
}

// Forest returns the owner's category hierarchy.
func (s *CategoryService) Forest(ctx context.Context, owner core.OwnerID) (*core.Forest, error) {
	return s.forests.GetOrLoad(owner, func() (*core.Forest, error) {
		cats, err := s.store.ListCategories(ctx, owner)
		if err != nil {
			return nil, err
		}
		s.logger.DebugContext(ctx, "Loaded category forest", log.FieldOwnerID, string(owner), "categories", len(cats))
		return core.NewForest(cats), nil
	})
}

func (s *CategoryService) invalidate(owner core.OwnerID) {
	s.forests.Delete(owner)
}

// Descendants returns id and all categories below it.
func (s *CategoryService) Descendants(ctx context.Context, owner core.OwnerID, id int64) ([]int64, error) {
	f, err := s.Forest(ctx, owner)
	if err != nil {
		return nil, err
	}
	return f.Descendants(id)
}

// Root returns the topmost ancestor of id.
func (s *CategoryService) Root(ctx context.Context, owner core.OwnerID, id int64) (core.Category, error) {
	f, err := s.Forest(ctx, owner)
	if err != nil {
		return core.Category{}, err
	}
	return f.Root(id)
}

func (s *CategoryService) List(ctx context.Context, owner core.OwnerID) ([]core.Category, error) {
	return s.store.ListCategories(ctx, owner)
}

func (s *CategoryService) Create(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	created, err := s.store.CreateCategory(ctx, c)
	if err != nil {
		return core.Category{}, err
	}
	s.invalidate(c.OwnerID)
	return created, nil
}

// Reparent moves id under parent, or makes it a root when parent is nil.
// It fails with CycleWouldForm when parent lies below id.
func (s *CategoryService) Reparent(ctx context.Context, owner core.OwnerID, id int64, parent *int64) (core.Category, error) {
	if parent != nil && *parent == id {
		return core.Category{}, core.NewError(core.KindCycleWouldForm, "category.reparent", "category cannot be its own parent")
	}
	// fast rejection from the cached forest; the store re-checks in its transaction
	if f, err := s.Forest(ctx, owner); err == nil {
		if err := f.CheckReparent(id, parent); core.KindOf(err) == core.KindCycleWouldForm {
			return core.Category{}, err
		}
	}
	updated, err := s.store.ReparentCategory(ctx, owner, id, parent)
	if err != nil {
		return core.Category{}, err
	}
	s.invalidate(owner)
	return updated, nil
}

// Delete removes a category, moving its entries and specs to the owner's
// "Other" root and its children to its parent.
func (s *CategoryService) Delete(ctx context.Context, owner core.OwnerID, id int64) (storage.CategoryDeletion, error) {
	res, err := s.store.DeleteCategory(ctx, owner, id, FallbackCategoryName)
	if err != nil {
		return res, err
	}
	s.invalidate(owner)
	s.logger.InfoContext(ctx, "Category deleted",
		log.FieldOwnerID, string(owner),
		"category_id", id,
		"moved_entries", res.MovedEntries,
		"moved_specs", res.MovedSpecs,
		"reparented_children", res.ReparentedKids,
		"fallback_created", res.FallbackCreated)
	return res, nil
}
