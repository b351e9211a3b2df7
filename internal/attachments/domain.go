// Package attachments stores supporting documents (safety data sheets,
// supplier certificates) against products.
package attachments

import "time"

// Defaults applied to uploads without an associated product.
const (
	GeneralOilID    = "GENERAL"
	GeneralOilName  = "General Documents"
	DefaultUploader = "admin"
)

// Attachment is one stored document.
type Attachment struct {
	ID                int64     `json:"id"`
	FileName          string    `json:"file_name"`
	StoredFileName    string    `json:"stored_file_name"`
	FileType          string    `json:"file_type"`
	FileSize          int64     `json:"file_size"`
	FilePath          string    `json:"file_path"`
	AssociatedOilID   string    `json:"associated_oil_id"`
	AssociatedOilName string    `json:"associated_oil_name"`
	UploadedBy        string    `json:"uploaded_by"`
	Notes             string    `json:"notes"`
	UploadDate        time.Time `json:"upload_date"`
}

// UploadInput describes a new document.
type UploadInput struct {
	FileName          string
	FileType          string
	AssociatedOilID   string
	AssociatedOilName string
	UploadedBy        string
	Notes             string
}

// ListFilter narrows the attachment listing. FileType matches as a substring.
type ListFilter struct {
	OilID    string
	FileType string
}
