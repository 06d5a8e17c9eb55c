package entities

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Post types understood by the directory.
const (
	PostTypeCompany  = "company"
	PostTypeHeading  = "headings"
	PostTypeRevision = "revision"
)

// Record statuses.
const (
	StatusPublish   = "publish"
	StatusDraft     = "draft"
	StatusAutoDraft = "auto-draft"
	StatusInherit   = "inherit"
)

// Well-known custom field names.
const (
	FieldCompanyID   = "company_id"
	FieldCompanyName = "company_name"
	FieldHeadings    = "headings"
	FieldHeadingID   = "heading_id"
	FieldHeadingName = "heading_name"
	FieldLat         = "lat"
	FieldLong        = "long"
)

// Record is a content record held by the host record store.
// Fields carries its custom field values keyed by field name.
type Record struct {
	ID        int64                  `db:"id" json:"id"`
	PostType  string                 `db:"post_type" json:"post_type"`
	Title     string                 `db:"title" json:"title"`
	Status    string                 `db:"status" json:"status"`
	ParentID  int64                  `db:"parent_id" json:"parent_id,omitempty"`
	CreatedAt time.Time              `db:"created_at" json:"created_at"`
	UpdatedAt time.Time              `db:"updated_at" json:"updated_at"`
	Fields    map[string]interface{} `db:"-" json:"fields,omitempty"`
}

// String returns a string representation of the record
// Format: post_type:id
func (r *Record) String() string {
	return fmt.Sprintf("%s:%d", r.PostType, r.ID)
}

// Validate checks if the record is valid
func (r *Record) Validate() error {
	if r.PostType == "" {
		return fmt.Errorf("post type is required")
	}
	if r.PostType == PostTypeRevision && r.ParentID <= 0 {
		return fmt.Errorf("revision requires a parent record")
	}
	for name := range r.Fields {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("field name is required")
		}
	}
	return nil
}

// IsCompany reports whether the record is a Company.
func (r *Record) IsCompany() bool {
	return r.PostType == PostTypeCompany
}

// IsHeading reports whether the record is a Heading.
func (r *Record) IsHeading() bool {
	return r.PostType == PostTypeHeading
}

// IsRevision reports whether the record is a stored revision of another record.
func (r *Record) IsRevision() bool {
	return r.PostType == PostTypeRevision
}

// StringField returns the named field as a string, or "" when it is absent
// or empty. Numbers are rendered without trailing zeros.
func (r *Record) StringField(name string) string {
	v, ok := r.Fields[name]
	if !ok {
		return ""
	}
	return stringValue(v)
}

// FloatField returns the named field as a float.
func (r *Record) FloatField(name string) (float64, bool) {
	switch v := r.Fields[name].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// RecordIDsField returns the record IDs held by a relationship field.
// Elements may be plain IDs or objects carrying an "ID" key; invalid and
// duplicate entries are skipped while the stored order is kept.
func (r *Record) RecordIDsField(name string) []int64 {
	v, ok := r.Fields[name]
	if !ok || v == nil {
		return nil
	}

	var items []interface{}
	switch val := v.(type) {
	case []interface{}:
		items = val
	case []int64:
		for _, id := range val {
			items = append(items, id)
		}
	case []int:
		for _, id := range val {
			items = append(items, id)
		}
	default:
		items = []interface{}{val}
	}

	seen := make(map[int64]struct{}, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		id, ok := recordIDValue(item)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func recordIDValue(v interface{}) (int64, bool) {
	var id int64
	switch val := v.(type) {
	case float64:
		id = int64(val)
	case int:
		id = int64(val)
	case int64:
		id = val
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return 0, false
		}
		id = n
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0, false
		}
		id = n
	case map[string]interface{}:
		if inner, ok := val["ID"]; ok {
			return recordIDValue(inner)
		}
		if inner, ok := val["id"]; ok {
			return recordIDValue(inner)
		}
		return 0, false
	default:
		return 0, false
	}
	return id, id > 0
}

// FieldString renders a raw field value the way StringField does.
func FieldString(v interface{}) string {
	return stringValue(v)
}

func stringValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "1"
		}
		return ""
	default:
		return ""
	}
}

// Field is a single custom field value of a record.
type Field struct {
	RecordID  int64
	Name      string
	Value     interface{}
	UpdatedAt time.Time
}

// String returns a string representation of the field
// Format: record_id.name = value
func (f *Field) String() string {
	return fmt.Sprintf("%d.%s = %v", f.RecordID, f.Name, f.Value)
}

// Validate checks if the field is valid
func (f *Field) Validate() error {
	if f.RecordID <= 0 {
		return fmt.Errorf("record ID is required")
	}
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("field name is required")
	}
	return nil
}

// MarshalValue serializes the field value to JSON string for storage
func (f *Field) MarshalValue() (string, error) {
	data, err := json.Marshal(f.Value)
	if err != nil {
		return "", fmt.Errorf("failed to marshal field value: %w", err)
	}
	return string(data), nil
}

// UnmarshalValue deserializes the JSON string to field value
func (f *Field) UnmarshalValue(data string) error {
	if err := json.Unmarshal([]byte(data), &f.Value); err != nil {
		return fmt.Errorf("failed to unmarshal field value: %w", err)
	}
	return nil
}
