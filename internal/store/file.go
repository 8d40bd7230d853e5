// internal/store/file.go
package store

import (
	"fmt"
	"os"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/webpilot/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// FileStore persists workflow definitions and execution records as JSON
// files under a base directory. It is the default backend.
type FileStore struct {
	dir    string
	logger *zap.Logger
}

// NewFileStore creates the base directory if needed.
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if dir == "" {
		dir = ".webpilot"
	}
	if err := os.MkdirAll(filepath.Join(dir, "records"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir, logger: logger.Named("file_store")}, nil
}

// LoadDefinition reads and decodes a workflow definition from any path.
func (s *FileStore) LoadDefinition(path string) (schemas.WorkflowDefinition, error) {
	var def schemas.WorkflowDefinition
	data, err := os.ReadFile(path)
	if err != nil {
		return def, fmt.Errorf("failed to read workflow file: %w", err)
	}
	if err := json.Unmarshal(data, &def); err != nil {
		return def, fmt.Errorf("failed to decode workflow %s: %w", path, err)
	}
	return def, nil
}

// SaveDefinition writes a workflow definition to the given path.
func (s *FileStore) SaveDefinition(path string, def schemas.WorkflowDefinition) error {
	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode workflow %q: %w", def.Name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write workflow file: %w", err)
	}
	return nil
}

// SaveRecord writes the replayable trace of one run under records/.
func (s *FileStore) SaveRecord(record schemas.ExecutionRecord) error {
	if record.RunID == "" {
		return fmt.Errorf("execution record has no run id")
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode execution record: %w", err)
	}
	path := s.recordPath(record.RunID)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write execution record: %w", err)
	}
	s.logger.Debug("Execution record saved.",
		zap.String("run_id", record.RunID),
		zap.String("path", path))
	return nil
}

// LoadRecord reads the trace of a previous run by its ID.
func (s *FileStore) LoadRecord(runID string) (schemas.ExecutionRecord, error) {
	var record schemas.ExecutionRecord
	data, err := os.ReadFile(s.recordPath(runID))
	if err != nil {
		return record, fmt.Errorf("failed to read execution record %s: %w", runID, err)
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return record, fmt.Errorf("failed to decode execution record %s: %w", runID, err)
	}
	return record, nil
}

func (s *FileStore) recordPath(runID string) string {
	return filepath.Join(s.dir, "records", runID+".json")
}
