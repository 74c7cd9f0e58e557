// Package lists stores named lists, their ranking and tier layout, per owner.
package lists

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GenericOctopus/ListSorter/pkg/tiers"
)

var (
	ErrNotFound     = errors.New("lists: list not found")
	ErrInvalidList  = errors.New("lists: invalid list")
	ErrNotSortable  = errors.New("lists: list cannot be sorted")
	ErrUnknownStore = errors.New("lists: unknown store backend")
)

const (
	maxIDLength   = 100
	maxNameLength = 200
)

// SavedList is one list document. SortedItems and Tiers are set once a sort
// completes; Items keeps the order the list was entered in.
type SavedList struct {
	ID          string            `json:"id"`
	Name        string            `json:"listName"`
	OwnerID     string            `json:"userId"`
	Items       []string          `json:"items"`
	SortedItems []string          `json:"sortedItems,omitempty"`
	Tiers       []tiers.TierGroup `json:"tieredItems,omitempty"`
	Completed   bool              `json:"completed"`
	CreatedAt   time.Time         `json:"createdAt"`
	CompletedAt *time.Time        `json:"completedAt,omitempty"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// NewSavedList starts an unsorted list with a fresh ID.
func NewSavedList(owner, name string, items []string) *SavedList {
	now := timestamp()
	return &SavedList{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		OwnerID:   owner,
		Items:     append([]string{}, items...),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Complete records the result of a sort and its tier layout.
func (l *SavedList) Complete(sorted []string, groups []tiers.TierGroup) {
	now := timestamp()
	l.SortedItems = slices.Clone(sorted)
	l.Tiers = groups
	l.Completed = true
	l.CompletedAt = &now
	l.UpdatedAt = now
}

// AddItems appends items not already in the list. A completed list keeps its
// ranking so the next sort can insert only the new items.
func (l *SavedList) AddItems(items ...string) int {
	added := 0
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || slices.Contains(l.Items, item) {
			continue
		}
		l.Items = append(l.Items, item)
		added++
	}
	if added > 0 {
		l.Completed = false
		l.UpdatedAt = timestamp()
	}
	return added
}

func (l *SavedList) Validate() error {
	if l.ID == "" || len(l.ID) > maxIDLength {
		return fmt.Errorf("%w: id %q", ErrInvalidList, l.ID)
	}
	if l.OwnerID == "" || len(l.OwnerID) > maxIDLength {
		return fmt.Errorf("%w: owner %q", ErrInvalidList, l.OwnerID)
	}
	if len(l.Name) > maxNameLength {
		return fmt.Errorf("%w: name longer than %d characters", ErrInvalidList, maxNameLength)
	}
	if l.Items == nil {
		return fmt.Errorf("%w: items missing", ErrInvalidList)
	}
	return nil
}

// ValidateForSort gates starting a sort: the list needs a name and at least
// two items.
func ValidateForSort(name string, items []string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name is required", ErrNotSortable)
	}
	if len(items) < 2 {
		return fmt.Errorf("%w: need at least 2 items, have %d", ErrNotSortable, len(items))
	}
	return nil
}

// timestamp is stored with millisecond precision, like the list documents.
func timestamp() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
