package onboarding

import (
	"github.com/shoplocal/onboarding-api/internal/models"
)

// DraftCollection is the ordered set of business drafts being edited in one
// session, plus the cursor naming the draft currently shared by steps 2-5.
// The cursor is always a valid index while the collection is non-empty.
type DraftCollection struct {
	Drafts []*models.BusinessDraft `json:"drafts"`
	Cursor int                     `json:"cursor"`
}

// NewDraftCollection starts with exactly one default-valued draft. The
// collection never becomes empty while business ownership is active.
func NewDraftCollection() *DraftCollection {
	return &DraftCollection{
		Drafts: []*models.BusinessDraft{models.NewBusinessDraft()},
		Cursor: 0,
	}
}

func (c *DraftCollection) Len() int {
	return len(c.Drafts)
}

// Current returns the draft at the cursor.
func (c *DraftCollection) Current() *models.BusinessDraft {
	return c.Drafts[c.Cursor]
}

// Append creates a default-valued draft and moves the cursor to it.
func (c *DraftCollection) Append() *models.BusinessDraft {
	draft := models.NewBusinessDraft()
	c.Drafts = append(c.Drafts, draft)
	c.Cursor = len(c.Drafts) - 1
	return draft
}

// RemoveAt deletes the draft at index. Removing the sole remaining draft is
// rejected with ErrCollectionInvariant and leaves the collection unchanged.
// The cursor keeps pointing at the same draft where possible and is clamped
// to the last valid index otherwise.
func (c *DraftCollection) RemoveAt(index int) error {
	if index < 0 || index >= len(c.Drafts) {
		return ErrIndexOutOfRange
	}
	if len(c.Drafts) == 1 {
		return ErrCollectionInvariant
	}

	c.Drafts = append(c.Drafts[:index], c.Drafts[index+1:]...)

	if index < c.Cursor {
		c.Cursor--
	}
	if c.Cursor >= len(c.Drafts) {
		c.Cursor = len(c.Drafts) - 1
	}
	return nil
}

// SetCursor switches editing to another draft, e.g. from a tab selector.
func (c *DraftCollection) SetCursor(index int) error {
	if index < 0 || index >= len(c.Drafts) {
		return ErrIndexOutOfRange
	}
	c.Cursor = index
	return nil
}

// UpdateCurrent merges a partial update into the draft at the cursor.
// Other drafts are never touched.
func (c *DraftCollection) UpdateCurrent(patch *models.BusinessDraftPatch) *models.BusinessDraft {
	draft := c.Current()
	patch.Apply(draft)
	return draft
}

// FindByDraftID returns the draft with the given ID, or nil. Used by the
// address resolver to apply debounced results to the right draft even if the
// cursor moved while the lookup was in flight.
func (c *DraftCollection) FindByDraftID(id string) *models.BusinessDraft {
	for _, d := range c.Drafts {
		if d.DraftID == id {
			return d
		}
	}
	return nil
}
