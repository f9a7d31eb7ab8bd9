package localstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/fitforge/fitforge-backend/internal/keystore"
)

var ErrInvalidExport = errors.New("invalid export: expected exportedAt, appVersion and data")

// Export is the portable snapshot of a device namespace.
type Export struct {
	ExportedAt string                        `json:"exportedAt"`
	AppVersion string                        `json:"appVersion"`
	Data       map[string]*keystore.Envelope `json:"data"`
}

// ImportReport lists what ImportData wrote and what it refused.
type ImportReport struct {
	Imported []string          `json:"imported"`
	Rejected map[string]string `json:"rejected,omitempty"`
}

func (s *Store) ExportData(ctx context.Context) *Export {
	out := &Export{
		ExportedAt: s.kv.Now().UTC().Format(time.RFC3339),
		AppVersion: s.appVersion,
		Data:       make(map[string]*keystore.Envelope),
	}
	for _, key := range s.kv.Keys(ctx) {
		if env, ok := s.kv.Raw(ctx, key); ok {
			out.Data[key] = env
		}
	}
	return out
}

// ImportData writes every well-formed envelope of exp back verbatim,
// overwriting existing values. Malformed entries are skipped and reported.
func (s *Store) ImportData(ctx context.Context, exp *Export) (*ImportReport, error) {
	if exp == nil || exp.Data == nil || exp.ExportedAt == "" || exp.AppVersion == "" {
		return nil, ErrInvalidExport
	}

	keys := make([]string, 0, len(exp.Data))
	for k := range exp.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	report := &ImportReport{Imported: []string{}, Rejected: map[string]string{}}
	for _, key := range keys {
		env := exp.Data[key]
		if key == "" {
			report.Rejected[key] = "empty key"
			continue
		}
		if env == nil {
			report.Rejected[key] = keystore.ErrMissingData.Error()
			continue
		}
		if err := env.Validate(); err != nil {
			report.Rejected[key] = err.Error()
			continue
		}
		if !s.kv.PutRaw(ctx, key, env) {
			report.Rejected[key] = "write failed"
			continue
		}
		report.Imported = append(report.Imported, key)
	}

	if len(report.Rejected) > 0 {
		s.logger.Warn("import skipped malformed entries",
			zap.Int("imported", len(report.Imported)),
			zap.Int("rejected", len(report.Rejected)))
	}
	if len(report.Imported) == 0 && len(report.Rejected) > 0 {
		return report, fmt.Errorf("%w: no valid entries", ErrInvalidExport)
	}
	return report, nil
}
