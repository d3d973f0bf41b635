package store

import (
	"database/sql"
	"strconv"
)

// SetMetadata upserts a key-value pair in the app_metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO app_metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM app_metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// CohortInfo describes the deployment's cohort, stored as metadata rows and
// included in result exports.
type CohortInfo struct {
	CohortID   string
	Program    string
	Date       string
	NumLessons int
}

// SetCohortInfo stores all CohortInfo fields as metadata rows.
func (s *Store) SetCohortInfo(info CohortInfo) error {
	pairs := []struct{ k, v string }{
		{"cohort_id", info.CohortID},
		{"program", info.Program},
		{"date", info.Date},
		{"num_lessons", strconv.Itoa(info.NumLessons)},
	}
	for _, p := range pairs {
		if err := s.SetMetadata(p.k, p.v); err != nil {
			return err
		}
	}
	return nil
}

// GetCohortInfo reads all CohortInfo fields from metadata.
func (s *Store) GetCohortInfo() (CohortInfo, error) {
	var info CohortInfo
	var err error

	if info.CohortID, err = s.GetMetadata("cohort_id"); err != nil {
		return info, err
	}
	if info.Program, err = s.GetMetadata("program"); err != nil {
		return info, err
	}
	if info.Date, err = s.GetMetadata("date"); err != nil {
		return info, err
	}
	nl, err := s.GetMetadata("num_lessons")
	if err != nil {
		return info, err
	}
	if nl != "" {
		info.NumLessons, err = strconv.Atoi(nl)
		if err != nil {
			return info, err
		}
	}
	return info, nil
}

// GetImportedFileHash returns the recorded content hash for an imported
// lesson file, or empty string if the file was never imported.
func (s *Store) GetImportedFileHash(path string) (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT hash FROM imported_files WHERE path = ?`, path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

// SetImportedFileHash records the content hash of an imported lesson file.
func (s *Store) SetImportedFileHash(path, hash string) error {
	_, err := s.db.Exec(
		`INSERT INTO imported_files (path, hash) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET hash = ?`,
		path, hash, hash,
	)
	return err
}
