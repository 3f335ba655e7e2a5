package memory

import (
	"sort"

	"github.com/patrickmn/go-cache"

	"reading-surface/internal/entity"
)

// NoteRepository is the surface-lifetime cache of notes pushed down by the
// host. Entries never expire; the whole set is replaced on every
// displayNotes command.
type NoteRepository struct {
	cache *cache.Cache
}

func NewNoteRepository() *NoteRepository {
	return &NoteRepository{
		cache: cache.New(cache.NoExpiration, 0),
	}
}

// Replace drops the cached set and stores the new one.
func (r *NoteRepository) Replace(notes []entity.Note) {
	r.cache.Flush()
	for _, n := range notes {
		if n.ID == "" {
			continue
		}
		r.cache.Set(n.ID, n, cache.NoExpiration)
	}
}

// ForPage returns the cached notes targeting a page, ordered by id so every
// re-anchoring pass walks them deterministically.
func (r *NoteRepository) ForPage(page int) []entity.Note {
	var out []entity.Note
	for _, item := range r.cache.Items() {
		n := item.Object.(entity.Note)
		if n.Page == page {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns one cached note.
func (r *NoteRepository) Get(id string) (entity.Note, bool) {
	if x, found := r.cache.Get(id); found {
		return x.(entity.Note), true
	}
	return entity.Note{}, false
}

// Count returns the cached note count.
func (r *NoteRepository) Count() int {
	return r.cache.ItemCount()
}
