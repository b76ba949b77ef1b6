package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Detection represents one completed recognition cycle: the classification
// merged with its trigger metadata.
type Detection struct {
	ID              string    `json:"id"`
	Category        string    `json:"category"`
	Composition     string    `json:"composition"`
	DegradationTime string    `json:"degradation_time"`
	RecyclingValue  string    `json:"recycling_value"`
	Description     string    `json:"description"`
	Confidence      float64   `json:"confidence,omitempty"`
	ImagePath       string    `json:"image_path"`
	DetectionMethod string    `json:"detection_method"`
	PresenceState   string    `json:"presence_state,omitempty"`
	StabilityMS     int64     `json:"stability_ms,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// DetectionRepository provides persistence for detection records.
type DetectionRepository struct {
	db *sql.DB
}

// Detections returns the detection repository for this store.
func (s *Store) Detections() *DetectionRepository {
	return &DetectionRepository{db: s.db}
}

// Create inserts a detection record. A missing ID is generated, a zero
// CreatedAt is stamped with the current time.
func (r *DetectionRepository) Create(d *Detection) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO detections (id, category, composition, degradation_time, recycling_value,
		 description, confidence, image_path, detection_method, presence_state, stability_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Category, d.Composition, d.DegradationTime, d.RecyclingValue,
		d.Description, d.Confidence, d.ImagePath, d.DetectionMethod, d.PresenceState, d.StabilityMS, d.CreatedAt,
	)
	return err
}

// GetByID retrieves a detection by its ID.
func (r *DetectionRepository) GetByID(id string) (*Detection, error) {
	d := &Detection{}

	err := r.db.QueryRow(
		`SELECT id, category, composition, degradation_time, recycling_value,
		 description, confidence, image_path, detection_method, presence_state, stability_ms, created_at
		 FROM detections WHERE id = ?`,
		id,
	).Scan(&d.ID, &d.Category, &d.Composition, &d.DegradationTime, &d.RecyclingValue,
		&d.Description, &d.Confidence, &d.ImagePath, &d.DetectionMethod, &d.PresenceState, &d.StabilityMS, &d.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return d, nil
}

// ListRecent retrieves up to limit detections, newest first. A non-positive
// limit lists everything.
func (r *DetectionRepository) ListRecent(limit int) ([]*Detection, error) {
	query := `SELECT id, category, composition, degradation_time, recycling_value,
	 description, confidence, image_path, detection_method, presence_state, stability_ms, created_at
	 FROM detections ORDER BY created_at DESC, id`

	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = r.db.Query(query+` LIMIT ?`, limit)
	} else {
		rows, err = r.db.Query(query)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var detections []*Detection
	for rows.Next() {
		d := &Detection{}
		err := rows.Scan(&d.ID, &d.Category, &d.Composition, &d.DegradationTime, &d.RecyclingValue,
			&d.Description, &d.Confidence, &d.ImagePath, &d.DetectionMethod, &d.PresenceState, &d.StabilityMS, &d.CreatedAt)
		if err != nil {
			return nil, err
		}
		detections = append(detections, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return detections, nil
}

// Count returns the number of stored detections.
func (r *DetectionRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM detections`).Scan(&n)
	return n, err
}

// PruneOlderThan deletes detections created before the cutoff and returns
// how many rows were removed.
func (r *DetectionRepository) PruneOlderThan(cutoff time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM detections WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
