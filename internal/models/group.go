package models

// Group is a named class of students. Groups cannot be deleted while
// students reference them unless a replacement group is supplied.
type Group struct {
	ID        int64  `db:"id" json:"id"`
	Name      string `db:"name" json:"name"`
	CreatedAt Time   `db:"created_at" json:"created_at"`
	UpdatedAt Time   `db:"updated_at" json:"updated_at"`
}

// GroupWithCount is a group joined with its member count for list views.
type GroupWithCount struct {
	Group
	StudentCount int `db:"student_count" json:"student_count"`
}
