package entities

import (
	"fmt"
	"math"
	"time"
	"unicode/utf8"
)

// MaxExternalIDLength is the column width of company_id and heading_id.
const MaxExternalIDLength = 255

// Bounds of the 32-bit ranking column.
const (
	MinRanking = math.MinInt32
	MaxRanking = math.MaxInt32
)

// Relationship is one persisted Company↔Heading association.
// Example: company:12[C-1]~heading:34[H-9]@5
// This means: company record 12 (external ID "C-1") is listed under heading
// record 34 (external ID "H-9") with ranking 5.
type Relationship struct {
	ID            int64     `db:"id" json:"id"`
	CompanyPostID int64     `db:"company_post_id" json:"company_post_id"`
	HeadingPostID int64     `db:"heading_post_id" json:"heading_post_id"`
	CompanyID     string    `db:"company_id" json:"company_id"`
	HeadingID     string    `db:"heading_id" json:"heading_id"`
	Ranking       int       `db:"ranking" json:"ranking"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Pair identifies a relationship row by its unique key.
type Pair struct {
	CompanyPostID int64
	HeadingPostID int64
}

// Pair returns the unique key of the relationship.
func (r *Relationship) Pair() Pair {
	return Pair{CompanyPostID: r.CompanyPostID, HeadingPostID: r.HeadingPostID}
}

// String returns a string representation of the relationship
// Format: company:company_post_id[company_id]~heading:heading_post_id[heading_id]@ranking
func (r *Relationship) String() string {
	return fmt.Sprintf("company:%d[%s]~heading:%d[%s]@%d",
		r.CompanyPostID, r.CompanyID, r.HeadingPostID, r.HeadingID, r.Ranking)
}

// String returns the pair as company_post_id:heading_post_id.
func (p Pair) String() string {
	return fmt.Sprintf("%d:%d", p.CompanyPostID, p.HeadingPostID)
}

// Validate checks that the relationship fits the table definition.
// Record existence is not checked here; callers supply the record IDs.
func (r *Relationship) Validate() error {
	if utf8.RuneCountInString(r.CompanyID) > MaxExternalIDLength {
		return fmt.Errorf("company ID exceeds %d characters", MaxExternalIDLength)
	}
	if utf8.RuneCountInString(r.HeadingID) > MaxExternalIDLength {
		return fmt.Errorf("heading ID exceeds %d characters", MaxExternalIDLength)
	}
	if r.Ranking < MinRanking || r.Ranking > MaxRanking {
		return fmt.Errorf("ranking %d is outside the 32-bit column range", r.Ranking)
	}
	return nil
}

// TruncateExternalID shortens s to MaxExternalIDLength characters.
func TruncateExternalID(s string) string {
	if utf8.RuneCountInString(s) <= MaxExternalIDLength {
		return s
	}
	return string([]rune(s)[:MaxExternalIDLength])
}

// ClampRanking limits n to the range the ranking column can hold.
func ClampRanking(n int64) int {
	if n > MaxRanking {
		return MaxRanking
	}
	if n < MinRanking {
		return MinRanking
	}
	return int(n)
}
