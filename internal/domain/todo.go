package domain

import "time"

// Todo is the stored record. The gorm tags describe the postgres table and
// the bson tags the mongo document; the sqlite repository maps columns by hand.
type Todo struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" bson:"_id"`
	Title       string    `gorm:"not null;index" bson:"title"`
	Description string    `gorm:"not null;default:''" bson:"description"`
	Completed   bool      `gorm:"not null;default:false" bson:"completed"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime:false" bson:"created_at"`
	UpdatedAt   time.Time `gorm:"not null;autoUpdateTime:false" bson:"updated_at"`
}

// SortOrder selects the ordering of a listing.
type SortOrder string

const (
	// SortByID lists in creation order, oldest first.
	SortByID SortOrder = ""
	// SortByDate lists newest first.
	SortByDate SortOrder = "date"
	// SortByCompleted lists completed todos before open ones.
	SortByCompleted SortOrder = "completed"
)

// Valid reports whether s is a known sort order.
func (s SortOrder) Valid() bool {
	switch s {
	case SortByID, SortByDate, SortByCompleted:
		return true
	}
	return false
}

// Changes holds the fields an update may overwrite. Nil means keep.
type Changes struct {
	Title       *string
	Description *string
	Completed   *bool
}

// Empty reports whether c would leave a record untouched.
func (c Changes) Empty() bool {
	return c.Title == nil && c.Description == nil && c.Completed == nil
}

// Apply copies the set fields of c onto t and reports whether anything
// actually changed.
func (c Changes) Apply(t *Todo) bool {
	changed := false
	if c.Title != nil && *c.Title != t.Title {
		t.Title = *c.Title
		changed = true
	}
	if c.Description != nil && *c.Description != t.Description {
		t.Description = *c.Description
		changed = true
	}
	if c.Completed != nil && *c.Completed != t.Completed {
		t.Completed = *c.Completed
		changed = true
	}
	return changed
}

// Now is the timestamp stamped on records: UTC, truncated to the
// millisecond so every datastore round-trips it unchanged.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
