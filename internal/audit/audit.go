package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Auditor archives documents as JSON files named by a random UUID.
type Auditor struct {
	AuditDir string
}

func NewAuditor(auditDir string) *Auditor {
	return &Auditor{
		AuditDir: auditDir,
	}
}

// SaveJSON writes data to <AuditDir>/<uuid>.json and returns the file name.
func (a *Auditor) SaveJSON(data any) (string, error) {
	if err := a.ensureAuditDir(); err != nil {
		return "", fmt.Errorf("failed to ensure audit directory: %w", err)
	}

	auditID := uuid.New()
	filename := fmt.Sprintf("%s.json", auditID.String())
	path := filepath.Join(a.AuditDir, filename)

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal data to JSON: %w", err)
	}

	if err := os.WriteFile(path, jsonData, 0o644); err != nil {
		return "", fmt.Errorf("failed to write audit file: %w", err)
	}

	return filename, nil
}

// ensureAuditDir creates the audit directory if it doesn't exist
func (a *Auditor) ensureAuditDir() error {
	if err := os.MkdirAll(a.AuditDir, 0o755); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}
	return nil
}

// Load reads back an archived document.
func (a *Auditor) Load(filename string, into any) error {
	data, err := os.ReadFile(filepath.Join(a.AuditDir, filepath.Base(filename)))
	if err != nil {
		return fmt.Errorf("failed to read audit file: %w", err)
	}
	return json.Unmarshal(data, into)
}
