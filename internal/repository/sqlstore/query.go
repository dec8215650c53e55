package sqlstore

const schema = `
CREATE TABLE IF NOT EXISTS image_annotations (
	id TEXT PRIMARY KEY,
	path TEXT NOT NULL,
	width INTEGER NOT NULL DEFAULT 0,
	height INTEGER NOT NULL DEFAULT 0,
	depth INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS annotation_objects (
	annotation_id TEXT NOT NULL REFERENCES image_annotations(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	x_min INTEGER NOT NULL,
	y_min INTEGER NOT NULL,
	x_max INTEGER NOT NULL,
	y_max INTEGER NOT NULL,
	confidence DOUBLE PRECISION NULL,
	PRIMARY KEY (annotation_id, position)
);

CREATE INDEX IF NOT EXISTS idx_image_annotations_created_at ON image_annotations(created_at);
`

const (
	queryInsertAnnotation = `
INSERT INTO image_annotations (id, path, width, height, depth, created_at, updated_at)
VALUES (:id, :path, :width, :height, :depth, :created_at, :updated_at)`

	queryInsertObject = `
INSERT INTO annotation_objects (annotation_id, position, name, x_min, y_min, x_max, y_max, confidence)
VALUES (:annotation_id, :position, :name, :x_min, :y_min, :x_max, :y_max, :confidence)`

	queryGetAnnotation = `
SELECT id, path, width, height, depth, created_at, updated_at
FROM image_annotations
    WHERE id = ?`

	queryGetObjects = `
SELECT annotation_id, position, name, x_min, y_min, x_max, y_max, confidence
FROM annotation_objects
    WHERE annotation_id = ?
ORDER BY position`

	queryListAnnotations = `
SELECT id, path, width, height, depth, created_at, updated_at
FROM image_annotations
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`

	queryCountAnnotations = `SELECT COUNT(*) FROM image_annotations`

	queryUpdateAnnotation = `
UPDATE image_annotations
SET path = ?, width = ?, height = ?, depth = ?, updated_at = ?
    WHERE id = ?`

	queryDeleteObjects = `DELETE FROM annotation_objects WHERE annotation_id = ?`

	queryDeleteAnnotation = `DELETE FROM image_annotations WHERE id = ?`
)
