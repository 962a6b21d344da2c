package core

import (
	"book-portal/internal/core/model"
	"context"
)

type CatalogService interface {
	ListBooks(ctx context.Context, credential string, q model.PageQuery) (model.PagedResult[model.Book], error)
}

type ModerationService interface {
	ListModeration(ctx context.Context, credential string, queue model.Queue, q model.PageQuery) (model.PagedResult[model.ModerationItem], error)
	TransitionModeration(ctx context.Context, credential string, queue model.Queue, id string, target model.ModerationStatus) (model.ModerationItem, error)
}

type FormatService interface {
	AddFormat(ctx context.Context, credential, bookID string, f model.Format) ([]model.Format, error)
	RemoveFormat(ctx context.Context, credential, bookID string, f model.Format) ([]model.Format, error)
}

type ShelfService interface {
	ListShelves(ctx context.Context, credential string, q model.PageQuery) (model.PagedResult[model.Shelf], error)
	DeleteShelf(ctx context.Context, credential, shelfID string) ([]model.Shelf, error)
}

func BookSource(svc CatalogService) PageSource[model.Book] {
	return svc.ListBooks
}

func ShelfSource(svc ShelfService) PageSource[model.Shelf] {
	return svc.ListShelves
}

// FormatCommit sends one format toggle and returns the book's format set.
func FormatCommit(svc FormatService) CommitFunc[model.Format] {
	return func(ctx context.Context, credential string, m model.Mutation[model.Format]) ([]model.Format, error) {
		if m.Op == model.OpRemove {
			return svc.RemoveFormat(ctx, credential, m.Owner, m.Flag)
		}
		return svc.AddFormat(ctx, credential, m.Owner, m.Flag)
	}
}

// ShelfCommit deletes a shelf and returns the ids of the shelves left.
// Shelves are created through a form, not toggled, so OpAdd is refused.
func ShelfCommit(svc ShelfService) CommitFunc[string] {
	return func(ctx context.Context, credential string, m model.Mutation[string]) ([]string, error) {
		if m.Op != model.OpRemove {
			return nil, model.ValidationError{Field: "op", Msg: "shelves can only be removed"}
		}
		left, err := svc.DeleteShelf(ctx, credential, m.Flag)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(left))
		for _, s := range left {
			ids = append(ids, s.ID)
		}
		return ids, nil
	}
}
