package domain

import "time"

// Company is a prospect organisation that receives shared documents.
// Managed elsewhere; the followup engine only reads it.
type Company struct {
	ID          string     `json:"id" db:"id"`
	Name        string     `json:"name" db:"name"`
	Email       string     `json:"email" db:"email"`
	ContactName string     `json:"contact_name" db:"contact_name"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// IsDeleted reports a soft-deleted company.
func (c *Company) IsDeleted() bool { return c.DeletedAt != nil }

// Document is a shared PDF.
type Document struct {
	ID        string     `json:"id" db:"id"`
	CompanyID *string    `json:"company_id,omitempty" db:"company_id"`
	Title     string     `json:"title" db:"title"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// IsDeleted reports a soft-deleted document.
func (d *Document) IsDeleted() bool { return d.DeletedAt != nil }

// Setting is one global key/value configuration row.
type Setting struct {
	Key       string    `json:"key" db:"key"`
	Value     string    `json:"value" db:"value"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
