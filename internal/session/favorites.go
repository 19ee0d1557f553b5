package session

import (
	"context"
	"slices"

	"gardenkeep/pkg/domain"
)

// FavoriteAPI is the server surface the favorites view needs.
type FavoriteAPI interface {
	ListFavorites(ctx context.Context) ([]domain.Favorite, error)
	AddFavorite(ctx context.Context, species domain.SpeciesSummary) (domain.Favorite, error)
	RemoveFavorite(ctx context.Context, id string) error
}

// Favorites is the local list of saved species, newest first.
type Favorites struct {
	api   FavoriteAPI
	items []domain.Favorite
}

// NewFavorites returns an empty Favorites backed by api.
func NewFavorites(api FavoriteAPI) *Favorites {
	return &Favorites{api: api}
}

// Load replaces the local list with the server's.
func (f *Favorites) Load(ctx context.Context) error {
	items, err := f.api.ListFavorites(ctx)
	if err != nil {
		return err
	}
	f.items = items
	return nil
}

// Items returns a copy of the local list.
func (f *Favorites) Items() []domain.Favorite {
	return slices.Clone(f.items)
}

// Add saves species. A duplicate yields an informational notice and leaves
// the list as it was.
func (f *Favorites) Add(ctx context.Context, species domain.SpeciesSummary) Notice {
	fav, err := f.api.AddFavorite(ctx, species)
	if err != nil {
		return NoticeFor(err)
	}
	f.items = append([]domain.Favorite{fav}, f.items...)
	return success(msgFavoriteAdded)
}

// Remove deletes the favorite and drops it from the local list on success.
func (f *Favorites) Remove(ctx context.Context, id string) Notice {
	if err := f.api.RemoveFavorite(ctx, id); err != nil {
		return NoticeFor(err)
	}
	f.items = slices.DeleteFunc(f.items, func(x domain.Favorite) bool { return x.ID == id })
	return success(msgFavoriteRemoved)
}
