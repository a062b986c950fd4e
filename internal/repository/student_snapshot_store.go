package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/school-dashboard-api/internal/models"
	"github.com/noah-isme/school-dashboard-api/pkg/storage"
)

const (
	studentSnapshotFile    = "students.json"
	studentSnapshotVersion = 1
)

type studentSnapshot struct {
	Version  int              `json:"version"`
	SavedAt  time.Time        `json:"savedAt"`
	Students []models.Student `json:"students"`
}

// FileStudentSnapshotStore keeps the student roster as a JSON document on local storage.
type FileStudentSnapshotStore struct {
	storage *storage.LocalStorage
	now     func() time.Time
}

// NewFileStudentSnapshotStore constructs the store over a storage root.
func NewFileStudentSnapshotStore(store *storage.LocalStorage) *FileStudentSnapshotStore {
	return &FileStudentSnapshotStore{storage: store, now: time.Now}
}

// Load returns the saved roster, or an empty collection when nothing was saved yet.
func (s *FileStudentSnapshotStore) Load(ctx context.Context) ([]models.Student, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := s.storage.ReadAll(studentSnapshotFile)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return []models.Student{}, nil
		}
		return nil, fmt.Errorf("read student snapshot: %w", err)
	}
	var snapshot studentSnapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, fmt.Errorf("decode student snapshot: %w", err)
	}
	if snapshot.Version != studentSnapshotVersion {
		return nil, fmt.Errorf("unsupported student snapshot version %d", snapshot.Version)
	}
	if snapshot.Students == nil {
		snapshot.Students = []models.Student{}
	}
	return snapshot.Students, nil
}

// Save replaces the stored roster atomically.
func (s *FileStudentSnapshotStore) Save(ctx context.Context, students []models.Student) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(studentSnapshot{
		Version:  studentSnapshotVersion,
		SavedAt:  s.now().UTC(),
		Students: students,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode student snapshot: %w", err)
	}
	if _, err := s.storage.Save(studentSnapshotFile, payload); err != nil {
		return fmt.Errorf("write student snapshot: %w", err)
	}
	return nil
}
