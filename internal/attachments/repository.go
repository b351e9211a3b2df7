package attachments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scentstock/scentstock/internal/shared"
)

const attachmentColumns = `id, file_name, stored_file_name, file_type, file_size, file_path,
associated_oil_id, associated_oil_name, uploaded_by, notes, upload_date`

// Repository stores attachment metadata in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns attachments newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Attachment, error) {
	var (
		where []string
		args  []any
	)
	if filter.OilID != "" {
		args = append(args, filter.OilID)
		where = append(where, fmt.Sprintf("associated_oil_id = $%d", len(args)))
	}
	if filter.FileType != "" {
		args = append(args, "%"+filter.FileType+"%")
		where = append(where, fmt.Sprintf("file_type ILIKE $%d", len(args)))
	}
	query := `SELECT ` + attachmentColumns + ` FROM attachments`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY upload_date DESC, id DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]Attachment, 0)
	for rows.Next() {
		a, err := scanAttachment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

// Insert stores a new attachment row.
func (r *Repository) Insert(ctx context.Context, a Attachment) (Attachment, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO attachments
(file_name, stored_file_name, file_type, file_size, file_path, associated_oil_id, associated_oil_name, uploaded_by, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+attachmentColumns,
		a.FileName, a.StoredFileName, a.FileType, a.FileSize, a.FilePath,
		a.AssociatedOilID, a.AssociatedOilName, a.UploadedBy, a.Notes)
	return scanAttachment(row)
}

// Delete removes an attachment row and returns it.
func (r *Repository) Delete(ctx context.Context, id int64) (Attachment, error) {
	a, err := scanAttachment(r.pool.QueryRow(ctx, `DELETE FROM attachments WHERE id = $1 RETURNING `+attachmentColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Attachment{}, fmt.Errorf("%w: attachment %d", shared.ErrNotFound, id)
	}
	return a, err
}

func scanAttachment(row pgx.Row) (Attachment, error) {
	var a Attachment
	err := row.Scan(&a.ID, &a.FileName, &a.StoredFileName, &a.FileType, &a.FileSize, &a.FilePath,
		&a.AssociatedOilID, &a.AssociatedOilName, &a.UploadedBy, &a.Notes, &a.UploadDate)
	return a, err
}

var _ RepositoryPort = (*Repository)(nil)
