package entities

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rec     Record
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid company",
			rec:     Record{PostType: PostTypeCompany, Title: "Acme"},
			wantErr: false,
		},
		{
			name:    "missing post type",
			rec:     Record{Title: "Acme"},
			wantErr: true,
			errMsg:  "post type is required",
		},
		{
			name:    "revision without parent",
			rec:     Record{PostType: PostTypeRevision},
			wantErr: true,
			errMsg:  "revision requires a parent record",
		},
		{
			name:    "revision with parent",
			rec:     Record{PostType: PostTypeRevision, ParentID: 12},
			wantErr: false,
		},
		{
			name:    "blank field name",
			rec:     Record{PostType: PostTypeHeading, Fields: map[string]interface{}{" ": "x"}},
			wantErr: true,
			errMsg:  "field name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.errMsg, err.Error())
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRecord_Kinds(t *testing.T) {
	company := Record{ID: 12, PostType: PostTypeCompany}
	heading := Record{ID: 34, PostType: PostTypeHeading}
	revision := Record{ID: 35, PostType: PostTypeRevision, ParentID: 12}

	assert.True(t, company.IsCompany())
	assert.False(t, company.IsHeading())
	assert.True(t, heading.IsHeading())
	assert.True(t, revision.IsRevision())
	assert.False(t, revision.IsCompany())
	assert.Equal(t, "company:12", company.String())
	assert.Equal(t, "headings:34", heading.String())
}

func TestRecord_StringField(t *testing.T) {
	rec := Record{Fields: map[string]interface{}{
		"text":    "C-1",
		"empty":   "",
		"number":  float64(4021),
		"decimal": 12.5,
		"int":     7,
		"true":    true,
		"false":   false,
		"null":    nil,
		"list":    []interface{}{"a"},
		"jsonnum": json.Number("99"),
	}}

	tests := []struct {
		field string
		want  string
	}{
		{"text", "C-1"},
		{"empty", ""},
		{"number", "4021"},
		{"decimal", "12.5"},
		{"int", "7"},
		{"true", "1"},
		{"false", ""},
		{"null", ""},
		{"list", ""},
		{"jsonnum", "99"},
		{"missing", ""},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, rec.StringField(tt.field))
		})
	}
}

func TestRecord_FloatField(t *testing.T) {
	rec := Record{Fields: map[string]interface{}{
		FieldLat:  "41.8781",
		FieldLong: -87.6298,
		"bad":     "north",
	}}

	lat, ok := rec.FloatField(FieldLat)
	require.True(t, ok)
	assert.InDelta(t, 41.8781, lat, 1e-9)

	lng, ok := rec.FloatField(FieldLong)
	require.True(t, ok)
	assert.InDelta(t, -87.6298, lng, 1e-9)

	_, ok = rec.FloatField("bad")
	assert.False(t, ok)

	_, ok = rec.FloatField("missing")
	assert.False(t, ok)
}

func TestRecord_RecordIDsField(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  []int64
	}{
		{
			name:  "decoded JSON numbers",
			value: []interface{}{float64(34), float64(35)},
			want:  []int64{34, 35},
		},
		{
			name: "post objects",
			value: []interface{}{
				map[string]interface{}{"ID": float64(34), "post_title": "Pumps"},
				map[string]interface{}{"id": "35"},
			},
			want: []int64{34, 35},
		},
		{
			name:  "numeric strings",
			value: []interface{}{"34", " 36 "},
			want:  []int64{34, 36},
		},
		{
			name:  "invalid and duplicate entries are skipped",
			value: []interface{}{float64(34), "abc", float64(0), float64(-1), float64(34), nil, true},
			want:  []int64{34},
		},
		{
			name:  "single value",
			value: float64(40),
			want:  []int64{40},
		},
		{
			name:  "native int64 slice",
			value: []int64{3, 2, 1},
			want:  []int64{3, 2, 1},
		},
		{
			name:  "native int slice",
			value: []int{5},
			want:  []int64{5},
		},
		{
			name:  "nil value",
			value: nil,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Record{Fields: map[string]interface{}{FieldHeadings: tt.value}}
			got := rec.RecordIDsField(FieldHeadings)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestField_Validate(t *testing.T) {
	tests := []struct {
		name    string
		field   Field
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid field",
			field:   Field{RecordID: 1, Name: FieldCompanyID, Value: "C-1"},
			wantErr: false,
		},
		{
			name:    "nil value is allowed",
			field:   Field{RecordID: 1, Name: FieldCompanyID},
			wantErr: false,
		},
		{
			name:    "missing record ID",
			field:   Field{Name: FieldCompanyID, Value: "C-1"},
			wantErr: true,
			errMsg:  "record ID is required",
		},
		{
			name:    "missing name",
			field:   Field{RecordID: 1, Value: "C-1"},
			wantErr: true,
			errMsg:  "field name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.field.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Field.Validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && err.Error() != tt.errMsg {
				t.Errorf("Field.Validate() error = %v, want %v", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestField_MarshalRoundTrip(t *testing.T) {
	field := Field{RecordID: 12, Name: FieldHeadings, Value: []int64{34, 35}}

	data, err := field.MarshalValue()
	require.NoError(t, err)
	assert.Equal(t, "[34,35]", data)

	var decoded Field
	require.NoError(t, decoded.UnmarshalValue(data))
	assert.Equal(t, []interface{}{float64(34), float64(35)}, decoded.Value)

	assert.Error(t, decoded.UnmarshalValue("{broken"))
	assert.Equal(t, "12.headings = [34 35]", field.String())
}
