package sqlstore

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"answersheet/internal/model"
	"answersheet/internal/repository"

	"github.com/jmoiron/sqlx"
	"github.com/oklog/ulid/v2"
)

type annotationRow struct {
	ID        string    `db:"id"`
	Path      string    `db:"path"`
	Width     int       `db:"width"`
	Height    int       `db:"height"`
	Depth     int       `db:"depth"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type objectRow struct {
	AnnotationID string          `db:"annotation_id"`
	Position     int             `db:"position"`
	Name         string          `db:"name"`
	XMin         int             `db:"x_min"`
	YMin         int             `db:"y_min"`
	XMax         int             `db:"x_max"`
	YMax         int             `db:"y_max"`
	Confidence   sql.NullFloat64 `db:"confidence"`
}

// AnnotationRepository implements repository.AnnotationRepository with sqlx.
type AnnotationRepository struct {
	db      *DB
	entropy io.Reader
}

var _ repository.AnnotationRepository = (*AnnotationRepository)(nil)

// NewAnnotationRepository creates a new annotation repository.
func NewAnnotationRepository(db *DB) *AnnotationRepository {
	return &AnnotationRepository{
		db:      db,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Insert stores a new annotation. The id is assigned when empty and both
// timestamps are set to now.
func (r *AnnotationRepository) Insert(ctx context.Context, ann *model.ImageAnnotation) error {
	r.db.Lock()
	defer r.db.Unlock()

	now := timestamp()
	if ann.ID == "" {
		id, err := ulid.New(ulid.Timestamp(now), r.entropy)
		if err != nil {
			return fmt.Errorf("failed to generate annotation id: %w", err)
		}
		ann.ID = id.String()
	}
	ann.CreatedAt = now
	ann.UpdatedAt = now

	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, queryInsertAnnotation, toAnnotationRow(ann)); err != nil {
			return fmt.Errorf("failed to insert annotation: %w", err)
		}
		return insertObjects(ctx, tx, ann.ID, ann.Objects)
	})
}

// GetByID retrieves an annotation with its objects in stored order.
func (r *AnnotationRepository) GetByID(ctx context.Context, id string) (*model.ImageAnnotation, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	conn := r.db.Conn()

	var row annotationRow
	err := conn.GetContext(ctx, &row, conn.Rebind(queryGetAnnotation), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get annotation: %w", err)
	}

	var objects []objectRow
	if err := conn.SelectContext(ctx, &objects, conn.Rebind(queryGetObjects), id); err != nil {
		return nil, fmt.Errorf("failed to get annotation objects: %w", err)
	}

	ann := fromRows(row, objects)
	return &ann, nil
}

// List returns a page of annotations, newest first.
func (r *AnnotationRepository) List(ctx context.Context, limit, offset int) ([]model.ImageAnnotation, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	conn := r.db.Conn()

	var rows []annotationRow
	if err := conn.SelectContext(ctx, &rows, conn.Rebind(queryListAnnotations), limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list annotations: %w", err)
	}
	if len(rows) == 0 {
		return []model.ImageAnnotation{}, nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}

	query, args, err := sqlx.In(`
SELECT annotation_id, position, name, x_min, y_min, x_max, y_max, confidence
FROM annotation_objects
    WHERE annotation_id IN (?)
ORDER BY annotation_id, position`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build objects query: %w", err)
	}

	var objects []objectRow
	if err := conn.SelectContext(ctx, &objects, conn.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list annotation objects: %w", err)
	}

	byAnnotation := make(map[string][]objectRow, len(rows))
	for _, obj := range objects {
		byAnnotation[obj.AnnotationID] = append(byAnnotation[obj.AnnotationID], obj)
	}

	result := make([]model.ImageAnnotation, len(rows))
	for i, row := range rows {
		result[i] = fromRows(row, byAnnotation[row.ID])
	}
	return result, nil
}

// Count returns the number of stored annotations.
func (r *AnnotationRepository) Count(ctx context.Context) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	if err := r.db.Conn().GetContext(ctx, &count, queryCountAnnotations); err != nil {
		return 0, fmt.Errorf("failed to count annotations: %w", err)
	}
	return count, nil
}

// Replace overwrites the stored annotation and its whole object list.
func (r *AnnotationRepository) Replace(ctx context.Context, ann *model.ImageAnnotation) error {
	r.db.Lock()
	defer r.db.Unlock()

	updatedAt := timestamp()

	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, tx.Rebind(queryUpdateAnnotation),
			ann.Path, ann.Size.Width, ann.Size.Height, ann.Size.Depth, updatedAt, ann.ID)
		if err != nil {
			return fmt.Errorf("failed to update annotation: %w", err)
		}
		if err := requireAffected(result); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(queryDeleteObjects), ann.ID); err != nil {
			return fmt.Errorf("failed to delete annotation objects: %w", err)
		}
		return insertObjects(ctx, tx, ann.ID, ann.Objects)
	})
	if err != nil {
		return err
	}

	ann.UpdatedAt = updatedAt
	return nil
}

// Delete removes an annotation and its objects.
func (r *AnnotationRepository) Delete(ctx context.Context, id string) error {
	r.db.Lock()
	defer r.db.Unlock()

	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(queryDeleteObjects), id); err != nil {
			return fmt.Errorf("failed to delete annotation objects: %w", err)
		}

		result, err := tx.ExecContext(ctx, tx.Rebind(queryDeleteAnnotation), id)
		if err != nil {
			return fmt.Errorf("failed to delete annotation: %w", err)
		}
		return requireAffected(result)
	})
}

func (r *AnnotationRepository) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.Conn().BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertObjects(ctx context.Context, tx *sqlx.Tx, annotationID string, objects []model.Object) error {
	for i, obj := range objects {
		if _, err := tx.NamedExecContext(ctx, queryInsertObject, toObjectRow(annotationID, i, obj)); err != nil {
			return fmt.Errorf("failed to insert object %d: %w", i, err)
		}
	}
	return nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func timestamp() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func toAnnotationRow(ann *model.ImageAnnotation) annotationRow {
	return annotationRow{
		ID:        ann.ID,
		Path:      ann.Path,
		Width:     ann.Size.Width,
		Height:    ann.Size.Height,
		Depth:     ann.Size.Depth,
		CreatedAt: ann.CreatedAt,
		UpdatedAt: ann.UpdatedAt,
	}
}

func toObjectRow(annotationID string, position int, obj model.Object) objectRow {
	row := objectRow{
		AnnotationID: annotationID,
		Position:     position,
		Name:         string(obj.Name),
		XMin:         obj.BoundingBox.XMin,
		YMin:         obj.BoundingBox.YMin,
		XMax:         obj.BoundingBox.XMax,
		YMax:         obj.BoundingBox.YMax,
	}
	if row.Name == "" {
		row.Name = string(model.LabelUnpredicted)
	}
	if obj.Confidence != nil {
		row.Confidence = sql.NullFloat64{Float64: *obj.Confidence, Valid: true}
	}
	return row
}

func fromRows(row annotationRow, objects []objectRow) model.ImageAnnotation {
	ann := model.ImageAnnotation{
		ID:   row.ID,
		Path: row.Path,
		Size: model.Size{
			Width:  row.Width,
			Height: row.Height,
			Depth:  row.Depth,
		},
		Objects:   make([]model.Object, 0, len(objects)),
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}

	for _, obj := range objects {
		o := model.Object{
			Name: model.Label(obj.Name),
			BoundingBox: model.Box{
				XMin: obj.XMin,
				YMin: obj.YMin,
				XMax: obj.XMax,
				YMax: obj.YMax,
			},
		}
		if obj.Confidence.Valid {
			conf := obj.Confidence.Float64
			o.Confidence = &conf
		}
		ann.Objects = append(ann.Objects, o)
	}
	return ann
}
