// Package problem holds the persisted unit of the app: one solved problem.
package problem

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strconv"
	"strings"
	"time"
)

// SchemaVersion is the version of the stored history envelope.
const SchemaVersion = 1

var (
	ErrMissingID        = errors.New("record: id is empty")
	ErrInvalidTimestamp = errors.New("record: timestamp must be positive")
)

// Record is one solved problem. Values are immutable once created; history
// changes only by deleting whole records.
type Record struct {
	ID           string   `json:"id"`
	ImageURL     string   `json:"imageUrl"`
	ProblemText  string   `json:"problem"`
	SolutionText string   `json:"solution"`
	Steps        []string `json:"steps"`
	Timestamp    int64    `json:"timestamp"` // epoch ms
	Language     string   `json:"language,omitempty"`
}

// Validate reports whether the record can be trusted after deserialization.
func (r Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrMissingID
	}
	if r.Timestamp <= 0 {
		return ErrInvalidTimestamp
	}
	return nil
}

// Translated reports whether a translation other than English was applied.
func (r Record) Translated() bool {
	return r.Language != "" && r.Language != "en"
}

// CreatedAt returns the timestamp as a time.Time.
func (r Record) CreatedAt() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Clone returns a copy that shares no slices with r.
func (r Record) Clone() Record {
	out := r
	out.Steps = append([]string(nil), r.Steps...)
	return out
}

// NewID returns a time-based base36 id with a random base36 suffix.
func NewID(now time.Time) string {
	prefix := strconv.FormatInt(now.UnixMilli(), 36)
	n, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 52))
	if err != nil {
		// crypto/rand does not fail on supported platforms; fall back to the clock
		return prefix + strconv.FormatInt(now.UnixNano()&0xFFFFFFFFF, 36)
	}
	return prefix + n.Text(36)
}
