package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"sjsage522/estateworker/internal/models"
	"sjsage522/estateworker/logger"
	apperrors "sjsage522/estateworker/pkg/errors"

	"github.com/gofrs/flock"
)

const (
	propertiesFile = "properties.json"
	lockFile       = propertiesFile + ".lock"
	lockRetry      = 20 * time.Millisecond
)

// JSONFileSink keeps every record in one properties.json array plus a
// per-property data.json. Each read-modify-write of the index holds an OS
// file lock, so workers in several processes can share one directory.
type JSONFileSink struct {
	dir    string
	mu     sync.Mutex
	lock   *flock.Flock
	logger *logger.Logger
}

// NewJSONFileSink creates the output directory and an empty index if needed
func NewJSONFileSink(dir string, log *logger.Logger) (*JSONFileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.NewStorage("jsonfile", "failed to create output directory", err)
	}
	s := &JSONFileSink{
		dir:    dir,
		lock:   flock.New(filepath.Join(dir, lockFile)),
		logger: log.ForComponent("jsonfile"),
	}

	unlock, err := s.acquire(context.Background())
	if err != nil {
		return nil, err
	}
	defer unlock()

	index := filepath.Join(dir, propertiesFile)
	if _, err := os.Stat(index); errors.Is(err, os.ErrNotExist) {
		if err := writeFileAtomic(index, []byte("[]")); err != nil {
			return nil, apperrors.NewStorage("jsonfile", "failed to create "+index, err)
		}
	}
	return s, nil
}

// acquire takes the in-process mutex and then the file lock. flock.Flock
// treats a second Lock on the same instance as already held, so goroutines
// must be serialized before it.
func (s *JSONFileSink) acquire(ctx context.Context) (func(), error) {
	s.mu.Lock()
	locked, err := s.lock.TryLockContext(ctx, lockRetry)
	if err != nil || !locked {
		s.mu.Unlock()
		if err == nil {
			err = ctx.Err()
		}
		return nil, apperrors.NewStorage("jsonfile", "failed to lock index", err)
	}
	return func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to unlock index")
		}
		s.mu.Unlock()
	}, nil
}

func (s *JSONFileSink) load() ([]models.PropertyRecord, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, propertiesFile))
	if err != nil {
		return nil, apperrors.NewStorage("jsonfile", "failed to read index", err)
	}
	var records []models.PropertyRecord
	if len(strings.TrimSpace(string(data))) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, apperrors.NewStorage("jsonfile", "corrupt index", err)
	}
	return records, nil
}

func (s *JSONFileSink) Exists(ctx context.Context, reference string) (bool, error) {
	unlock, err := s.acquire(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	records, err := s.load()
	if err != nil {
		return false, err
	}
	for i := range records {
		if records[i].Reference() == reference {
			return true, nil
		}
	}
	return false, nil
}

func (s *JSONFileSink) Save(ctx context.Context, rec *models.PropertyRecord, policy DuplicatePolicy) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	unlock, err := s.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer unlock()

	records, err := s.load()
	if err != nil {
		return "", err
	}

	outcome := OutcomeInserted
	idx := -1
	for i := range records {
		if records[i].ExternalID == rec.ExternalID {
			idx = i
			break
		}
	}
	switch {
	case idx >= 0 && policy == PolicySkip:
		s.logger.Info().Str("reference", rec.Reference()).Msg("Skipped existing property")
		return OutcomeSkipped, nil
	case idx >= 0:
		records[idx] = *rec
		outcome = OutcomeUpdated
	default:
		records = append(records, *rec)
	}

	index, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", apperrors.NewStorage("jsonfile", "failed to encode index", err)
	}
	single, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", apperrors.NewStorage("jsonfile", "failed to encode property", err)
	}

	propertyDir := filepath.Join(s.dir, "property_"+safeName(rec.ExternalID))
	if err := os.MkdirAll(propertyDir, 0o755); err != nil {
		return "", apperrors.NewStorage("jsonfile", "failed to create property directory", err)
	}
	if err := writeFileAtomic(filepath.Join(propertyDir, "data.json"), single); err != nil {
		return "", apperrors.NewStorage("jsonfile", "failed to write property", err)
	}
	if err := writeFileAtomic(filepath.Join(s.dir, propertiesFile), index); err != nil {
		return "", apperrors.NewStorage("jsonfile", "failed to write index", err)
	}

	s.logger.Info().Str("reference", rec.Reference()).Str("outcome", string(outcome)).Msg("Saved property")
	return outcome, nil
}

func (s *JSONFileSink) Close() error {
	return s.lock.Close()
}

// writeFileAtomic replaces path through a rename so readers never see a
// partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func safeName(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '.':
			return '_'
		}
		return r
	}, id)
}
