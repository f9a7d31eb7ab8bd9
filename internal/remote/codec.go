package remote

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fitforge/fitforge-backend/internal/profiles/domain"
)

// Field names of the user document.
const (
	fieldEmail       = "email"
	fieldDisplayName = "displayName"
	fieldCreatedAt   = "createdAt"
	fieldUpdatedAt   = "updatedAt"
)

// toMap converts a JSON-encodable value into the generic form stored
// remotely.
func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("failed to convert %T: %w", v, err)
	}
	return out, nil
}

func encodeProfile(kind domain.Kind, v any) (map[string]any, error) {
	switch kind {
	case domain.KindUser:
		if _, ok := v.(domain.UserProfile); !ok {
			return nil, fmt.Errorf("%w: %s expects UserProfile, got %T", domain.ErrInvalidProfile, kind, v)
		}
	case domain.KindEquipment:
		if _, ok := v.(domain.EquipmentProfile); !ok {
			return nil, fmt.Errorf("%w: %s expects EquipmentProfile, got %T", domain.ErrInvalidProfile, kind, v)
		}
	case domain.KindNutrition:
		if _, ok := v.(domain.NutritionProfile); !ok {
			return nil, fmt.Errorf("%w: %s expects NutritionProfile, got %T", domain.ErrInvalidProfile, kind, v)
		}
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownKind, kind)
	}
	return toMap(v)
}

// encodeDocument leaves out zero timestamps so a merge keeps the stored ones.
func encodeDocument(doc *domain.RemoteUserDocument) (map[string]any, error) {
	out := map[string]any{
		fieldEmail:       doc.Email,
		fieldDisplayName: doc.DisplayName,
	}
	for kind, v := range map[domain.Kind]any{
		domain.KindUser:      doc.UserProfile,
		domain.KindEquipment: doc.EquipmentProfile,
		domain.KindNutrition: doc.NutritionProfile,
	} {
		m, err := encodeProfile(kind, v)
		if err != nil {
			return nil, err
		}
		out[string(kind)] = m
	}
	if !doc.CreatedAt.IsZero() {
		out[fieldCreatedAt] = doc.CreatedAt.UTC()
	}
	if !doc.UpdatedAt.IsZero() {
		out[fieldUpdatedAt] = doc.UpdatedAt.UTC()
	}
	return out, nil
}

func decodeDocument(m map[string]any) (*domain.RemoteUserDocument, error) {
	rest := make(map[string]any, len(m))
	for k, v := range m {
		if k == fieldCreatedAt || k == fieldUpdatedAt {
			continue
		}
		rest[k] = v
	}

	b, err := json.Marshal(rest)
	if err != nil {
		return nil, fmt.Errorf("failed to encode stored document: %w", err)
	}
	var doc domain.RemoteUserDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode stored document: %w", err)
	}

	if doc.CreatedAt, err = decodeTime(m[fieldCreatedAt]); err != nil {
		return nil, fmt.Errorf("createdAt: %w", err)
	}
	if doc.UpdatedAt, err = decodeTime(m[fieldUpdatedAt]); err != nil {
		return nil, fmt.Errorf("updatedAt: %w", err)
	}
	if doc.EquipmentProfile.HomeEquipment == nil {
		doc.EquipmentProfile.HomeEquipment = domain.TagSet{}
	}
	if doc.NutritionProfile.Allergies == nil {
		doc.NutritionProfile.Allergies = []string{}
	}
	if doc.NutritionProfile.Favorites == nil {
		doc.NutritionProfile.Favorites = []string{}
	}
	return &doc, nil
}

// decodeTime accepts native timestamps (firestore), RFC3339 strings (JSON
// backends) and epoch milliseconds.
func decodeTime(v any) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return t.UTC(), nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, err
		}
		return parsed.UTC(), nil
	case float64:
		return time.UnixMilli(int64(t)).UTC(), nil
	case int64:
		return time.UnixMilli(t).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
}
