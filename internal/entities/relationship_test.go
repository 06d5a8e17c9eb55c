package entities

import (
	"strings"
	"testing"
)

func TestRelationship_String(t *testing.T) {
	tests := []struct {
		name string
		rel  Relationship
		want string
	}{
		{
			name: "with external IDs",
			rel: Relationship{
				CompanyPostID: 12,
				HeadingPostID: 34,
				CompanyID:     "C-1",
				HeadingID:     "H-9",
				Ranking:       5,
			},
			want: "company:12[C-1]~heading:34[H-9]@5",
		},
		{
			name: "empty external IDs",
			rel: Relationship{
				CompanyPostID: 1,
				HeadingPostID: 2,
			},
			want: "company:1[]~heading:2[]@0",
		},
		{
			name: "negative ranking",
			rel: Relationship{
				CompanyPostID: 7,
				HeadingPostID: 8,
				CompanyID:     "acme",
				HeadingID:     "pumps",
				Ranking:       -3,
			},
			want: "company:7[acme]~heading:8[pumps]@-3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rel.String(); got != tt.want {
				t.Errorf("Relationship.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRelationship_Pair(t *testing.T) {
	rel := Relationship{CompanyPostID: 12, HeadingPostID: 34, Ranking: 9}

	pair := rel.Pair()
	if pair.CompanyPostID != 12 || pair.HeadingPostID != 34 {
		t.Errorf("Relationship.Pair() = %+v, want {12 34}", pair)
	}
	if got := pair.String(); got != "12:34" {
		t.Errorf("Pair.String() = %v, want 12:34", got)
	}
}

func TestRelationship_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rel     Relationship
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid relationship",
			rel:     Relationship{CompanyPostID: 12, HeadingPostID: 34, CompanyID: "C-1", HeadingID: "H-9"},
			wantErr: false,
		},
		{
			name:    "zero record IDs are accepted",
			rel:     Relationship{},
			wantErr: false,
		},
		{
			name:    "company ID at the column limit",
			rel:     Relationship{CompanyID: strings.Repeat("a", MaxExternalIDLength)},
			wantErr: false,
		},
		{
			name:    "multibyte runes count as one character",
			rel:     Relationship{HeadingID: strings.Repeat("é", MaxExternalIDLength)},
			wantErr: false,
		},
		{
			name:    "company ID too long",
			rel:     Relationship{CompanyID: strings.Repeat("a", MaxExternalIDLength+1)},
			wantErr: true,
			errMsg:  "company ID exceeds 255 characters",
		},
		{
			name:    "heading ID too long",
			rel:     Relationship{HeadingID: strings.Repeat("b", MaxExternalIDLength+1)},
			wantErr: true,
			errMsg:  "heading ID exceeds 255 characters",
		},
		{
			name:    "ranking at the column limit",
			rel:     Relationship{Ranking: MaxRanking},
			wantErr: false,
		},
		{
			name:    "ranking beyond 32 bits",
			rel:     Relationship{Ranking: 3000000000},
			wantErr: true,
			errMsg:  "ranking 3000000000 is outside the 32-bit column range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rel.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Relationship.Validate() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && err.Error() != tt.errMsg {
				t.Errorf("Relationship.Validate() error = %v, want %v", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestTruncateExternalID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{name: "short", in: "C-1", want: 3},
		{name: "exact", in: strings.Repeat("x", MaxExternalIDLength), want: MaxExternalIDLength},
		{name: "long multibyte", in: strings.Repeat("é", MaxExternalIDLength+10), want: MaxExternalIDLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateExternalID(tt.in)
			if n := len([]rune(got)); n != tt.want {
				t.Errorf("TruncateExternalID() rune length = %d, want %d", n, tt.want)
			}
		})
	}
}

func TestClampRanking(t *testing.T) {
	tests := []struct {
		name string
		in   int64
		want int
	}{
		{name: "in range", in: 5, want: 5},
		{name: "negative in range", in: -3, want: -3},
		{name: "upper bound", in: 2147483647, want: MaxRanking},
		{name: "above 32 bits", in: 3000000000, want: 2147483647},
		{name: "below 32 bits", in: -3000000000, want: -2147483648},
		{name: "int64 max", in: 9223372036854775807, want: 2147483647},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampRanking(tt.in); got != tt.want {
				t.Errorf("ClampRanking(%d) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
