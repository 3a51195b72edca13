package moderation

import "context"

// Content is the minimal view of a content item needed for a visibility
// decision. Implemented by sif.SIF; the moderation core never sees message
// bodies or delivery details.
type Content interface {
	ContentID() string
	ContentAuthorID() string
	ContentRemoved() bool
}

// IsVisible decides whether a content item is shown to a viewer. The check
// order is load-bearing:
//
//  1. Moderator removal always wins, even for the author's own view.
//  2. The viewer has blocked the author.
//  3. The author has blocked the viewer.
//  4. Authors see their own non-removed content.
//
// Blocks are irreflexive, so rules 2 and 3 can never hide a user's own
// content; rule 1 is the only thing that can.
func IsVisible(c Content, viewerID string, info BlockingInfo) bool {
	if c.ContentRemoved() {
		return false
	}
	author := c.ContentAuthorID()
	if info.HasBlocked(author) {
		return false
	}
	if info.IsBlockedBy(author) {
		return false
	}
	// Self-authorship needs no explicit branch: a viewer cannot appear in
	// either block set for their own content, so rules 2 and 3 never fire
	// and only removal can hide an author's own view.
	return true
}

// FilterVisible applies IsVisible to each item and returns the ones the
// viewer may see, preserving order. The single-item predicate is canonical;
// batch feeds get the exact same policy.
func FilterVisible[T Content](items []T, viewerID string, info BlockingInfo) []T {
	visible := make([]T, 0, len(items))
	for _, item := range items {
		if IsVisible(item, viewerID, info) {
			visible = append(visible, item)
		}
	}
	return visible
}

// VisibleTo is a convenience for surfaces that need a visibility decision
// for a single item and have only a store handle: it fetches the viewer's
// blocking snapshot and applies IsVisible.
func (s *Service) VisibleTo(ctx context.Context, c Content, viewerID string) (bool, error) {
	info, err := s.BlockingInfo(ctx, viewerID)
	if err != nil {
		return false, err
	}
	return IsVisible(c, viewerID, info), nil
}
