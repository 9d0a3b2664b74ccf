package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

const maxScheduleItems = 14

var dateKeyRe = regexp.MustCompile(`^\d{1,2}-\d{1,2}$`)

var scheduleStatuses = map[string]bool{
	"none": true, "scheduled": true, "completed": true, "cancelled": true, "delayed": true,
}

// optional string-or-null fields of a schedule item
var scheduleOptional = []string{"zuluTime", "originalZuluTime", "timeText", "streamTitle", "vodUrl", "gameLogo"}

// ScheduleDetails locates the first problem in a rejected schedule.
type ScheduleDetails struct {
	OK     bool   `json:"ok"`
	Index  *int   `json:"index,omitempty"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}

// ScheduleError is returned by PutSchedule for a body that is valid JSON but not a
// valid schedule.
type ScheduleError struct {
	Details ScheduleDetails
}

func (e *ScheduleError) Error() string {
	return "schedule must be a valid array of schedule items: " + e.Details.Reason
}

func itemError(i int, field, reason string) *ScheduleError {
	return &ScheduleError{Details: ScheduleDetails{Index: &i, Field: field, Reason: reason}}
}

// ValidateSchedule checks a decoded JSON value against the schedule shape. Items may
// carry extra fields; they are stored untouched.
func ValidateSchedule(v any) *ScheduleError {
	items, ok := v.([]any)
	if !ok {
		return &ScheduleError{Details: ScheduleDetails{Reason: "Body is not an array."}}
	}
	if len(items) < 1 || len(items) > maxScheduleItems {
		return &ScheduleError{Details: ScheduleDetails{Reason: fmt.Sprintf("Array length must be between 1 and %d.", maxScheduleItems)}}
	}
	for i, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			return itemError(i, "", "Item is not an object.")
		}
		if s, ok := item["dateKey"].(string); !ok || !dateKeyRe.MatchString(s) {
			return itemError(i, "dateKey", "dateKey must look like M-D (e.g. 1-24).")
		}
		for _, f := range []string{"dayName", "dateText", "status"} {
			if _, ok := item[f].(string); !ok {
				return itemError(i, f, f+" must be a string.")
			}
		}
		if st := strings.ToLower(item["status"].(string)); !scheduleStatuses[st] {
			return itemError(i, "status", "Unsupported status: "+st)
		}
		for _, f := range scheduleOptional {
			switch item[f].(type) {
			case nil, string:
			default:
				return itemError(i, f, f+" must be a string or null.")
			}
		}
	}
	return nil
}

// Schedule returns the stored schedule array, or [] when none is stored or the stored
// value is not an array.
func (s *Store) Schedule(ctx context.Context) json.RawMessage {
	var items []json.RawMessage
	if !s.read(ctx, scheduleKey, &items) || items == nil {
		return json.RawMessage("[]")
	}
	b, err := json.Marshal(items)
	if err != nil {
		return json.RawMessage("[]")
	}
	return b
}

// PutSchedule validates body and replaces the stored schedule.
func (s *Store) PutSchedule(ctx context.Context, body []byte) error {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return ErrInvalidJSON
	}
	if verr := ValidateSchedule(v); verr != nil {
		return verr
	}
	if s.KV == nil {
		return ErrNotConfigured
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err != nil {
		return ErrInvalidJSON
	}
	if err := s.KV.Put(ctx, scheduleKey, compact.String(), 0); err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	return nil
}
