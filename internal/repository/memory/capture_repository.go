package memory

import (
	"fmt"

	"github.com/patrickmn/go-cache"

	"reading-surface/pkg/render"
)

// CaptureRepository remembers which annotation elements have already been
// reported to the host, keyed by engine-assigned id or, when the element has
// none, by a position-derived key. Owning the set here keeps the capture
// loop from tagging externally-owned elements.
type CaptureRepository struct {
	cache *cache.Cache
}

func NewCaptureRepository() *CaptureRepository {
	return &CaptureRepository{
		cache: cache.New(cache.NoExpiration, 0),
	}
}

// Key derives the stable identity used for deduplication.
func (r *CaptureRepository) Key(page int, el *render.AnnotationElement) string {
	if el.ID != "" {
		return fmt.Sprintf("id:%s", el.ID)
	}
	return fmt.Sprintf("pos:%d:%s:%.2f:%.2f", page, el.Kind, el.Pos.X, el.Pos.Y)
}

// Seen reports whether the identity was already captured.
func (r *CaptureRepository) Seen(key string) bool {
	_, found := r.cache.Get(key)
	return found
}

// Mark records the identity as captured for the surface lifetime.
func (r *CaptureRepository) Mark(key string) {
	r.cache.Set(key, struct{}{}, cache.NoExpiration)
}

// Count returns how many identities were captured so far.
func (r *CaptureRepository) Count() int {
	return r.cache.ItemCount()
}
