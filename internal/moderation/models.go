package moderation

import (
	"sort"
	"time"
)

// BlockRelationship is a directed record that one user no longer wants to
// see another's content. Keyed by the ordered pair (blocker, blocked);
// unique per pair.
type BlockRelationship struct {
	BlockerID string    `json:"blocker_id"`
	BlockedID string    `json:"blocked_id"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// BlockingInfo is a snapshot of every block relationship involving a single
// user, split by direction. Consumed by the visibility engine.
type BlockingInfo struct {
	// BlockedUsers holds the IDs this user has blocked.
	BlockedUsers map[string]struct{} `json:"-"`

	// BlockedByUsers holds the IDs of users who have blocked this user.
	BlockedByUsers map[string]struct{} `json:"-"`
}

// HasBlocked reports whether the snapshot's owner has blocked userID.
func (b BlockingInfo) HasBlocked(userID string) bool {
	_, ok := b.BlockedUsers[userID]
	return ok
}

// IsBlockedBy reports whether userID has blocked the snapshot's owner.
func (b BlockingInfo) IsBlockedBy(userID string) bool {
	_, ok := b.BlockedByUsers[userID]
	return ok
}

// BlockedUserIDs returns the blocked set as a sorted slice for JSON responses.
func (b BlockingInfo) BlockedUserIDs() []string {
	return sortedKeys(b.BlockedUsers)
}

// BlockedByUserIDs returns the blocked-by set as a sorted slice for JSON responses.
func (b BlockingInfo) BlockedByUserIDs() []string {
	return sortedKeys(b.BlockedByUsers)
}

func sortedKeys(m map[string]struct{}) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ReportReason categorizes why content was reported.
type ReportReason string

const (
	ReasonInappropriateContent ReportReason = "inappropriate-content"
	ReasonHarassment           ReportReason = "harassment"
	ReasonSpam                 ReportReason = "spam"
	ReasonHateSpeech           ReportReason = "hate-speech"
	ReasonViolence             ReportReason = "violence"
	ReasonMisinformation       ReportReason = "misinformation"
	ReasonCopyright            ReportReason = "copyright"
	ReasonOther                ReportReason = "other"
)

// Valid reports whether r is one of the enumerated report reasons.
func (r ReportReason) Valid() bool {
	switch r {
	case ReasonInappropriateContent, ReasonHarassment, ReasonSpam,
		ReasonHateSpeech, ReasonViolence, ReasonMisinformation,
		ReasonCopyright, ReasonOther:
		return true
	}
	return false
}

// ReportStatus is the review state of a report. Status only moves forward:
// pending -> under_review -> {resolved | dismissed}.
type ReportStatus string

const (
	StatusPending     ReportStatus = "pending"
	StatusUnderReview ReportStatus = "under_review"
	StatusResolved    ReportStatus = "resolved"
	StatusDismissed   ReportStatus = "dismissed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s ReportStatus) Terminal() bool {
	return s == StatusResolved || s == StatusDismissed
}

// CanTransitionTo reports whether the workflow permits moving from s to next.
// Review must be explicitly entered before a report can be resolved or
// dismissed; terminal states admit nothing.
func (s ReportStatus) CanTransitionTo(next ReportStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusUnderReview
	case StatusUnderReview:
		return next == StatusResolved || next == StatusDismissed
	}
	return false
}

// ActionKind is a moderator disposition. The first five are valid resolution
// actions attached to a report; ActionOpened and ActionDismissed exist only
// in the audit log to record the corresponding transitions.
type ActionKind string

const (
	ActionNone           ActionKind = "no-action"
	ActionContentRemoved ActionKind = "content-removed"
	ActionUserWarned     ActionKind = "user-warned"
	ActionUserSuspended  ActionKind = "user-suspended"
	ActionUserBanned     ActionKind = "user-banned"

	// Audit-only kinds.
	ActionOpened    ActionKind = "opened"
	ActionDismissed ActionKind = "dismissed"
)

// ValidResolution reports whether a is an action a moderator may attach when
// resolving a report.
func (a ActionKind) ValidResolution() bool {
	switch a {
	case ActionNone, ActionContentRemoved, ActionUserWarned,
		ActionUserSuspended, ActionUserBanned:
		return true
	}
	return false
}

// Report is a user report filed against a content item. The reported author
// is captured at filing time and never changes, even if the content item's
// author metadata later does. Reports are never deleted; resolved reports
// are retained for audit.
type Report struct {
	ID          string       `json:"id"`
	ReporterID  string       `json:"reporter_id"`
	ContentID   string       `json:"content_id"`
	AuthorID    string       `json:"author_id"`
	Reason      ReportReason `json:"reason"`
	Description string       `json:"description,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	Status      ReportStatus `json:"status"`

	// Set by the workflow. All empty while pending; ModeratorID is set when
	// review opens; the rest are set together on resolution or dismissal.
	ModeratorID    string     `json:"moderator_id,omitempty"`
	ModeratorNotes string     `json:"moderator_notes,omitempty"`
	Action         ActionKind `json:"action,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`

	// Revision is bumped on every workflow transition and checked with a
	// conditional write so two moderators cannot both transition the same
	// report.
	Revision int64 `json:"revision"`
}

// ModeratorAction is an append-only audit log entry, one per workflow
// transition. Immutable once created.
type ModeratorAction struct {
	ID          string     `json:"id"`
	ReportID    string     `json:"report_id"`
	ModeratorID string     `json:"moderator_id"`
	Action      ActionKind `json:"action"`
	Notes       string     `json:"notes,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}
