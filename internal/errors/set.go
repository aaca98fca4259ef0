package errors

import (
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
)

// ErrorRecord is a structured, serializable form of a probe failure.
type ErrorRecord struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// RecordOf converts err into an ErrorRecord.
func RecordOf(err error) ErrorRecord {
	return ErrorRecord{
		Kind:    GetErrorType(err).String(),
		Message: err.Error(),
	}
}

// Contains reports whether the record's kind or message mentions any marker.
func (r ErrorRecord) Contains(markers ...string) bool {
	msg := strings.ToLower(r.Message)
	for _, m := range markers {
		m = strings.ToLower(m)
		if r.Kind == m || strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// ErrorSet is an insertion-ordered set of error records. Two records are the
// same when both kind and message match. An ErrorSet has a single owner and is
// not safe for concurrent use.
type ErrorSet struct {
	filter  *bloom.BloomFilter
	exact   map[string]struct{}
	records []ErrorRecord
}

// NewErrorSet creates an empty set sized for the expected number of distinct errors.
func NewErrorSet(estimated int) *ErrorSet {
	if estimated < 16 {
		estimated = 16
	}
	return &ErrorSet{
		filter: bloom.NewWithEstimates(uint(estimated), 0.001),
		exact:  make(map[string]struct{}),
	}
}

// Add records err unless an identical record is already present.
func (s *ErrorSet) Add(err error) {
	if err == nil {
		return
	}
	s.AddRecord(RecordOf(err))
}

// AddRecord inserts r unless an identical record is already present. It
// reports whether r was new.
func (s *ErrorSet) AddRecord(r ErrorRecord) bool {
	key := r.Kind + "\x00" + r.Message
	// The filter never yields false negatives, so a miss skips the map lookup.
	if s.filter.TestString(key) {
		if _, ok := s.exact[key]; ok {
			return false
		}
	}
	s.filter.AddString(key)
	s.exact[key] = struct{}{}
	s.records = append(s.records, r)
	return true
}

// Len returns the number of distinct records.
func (s *ErrorSet) Len() int {
	return len(s.records)
}

// Records returns a copy of the records in insertion order. The result is
// never nil so it serializes as an empty array.
func (s *ErrorSet) Records() []ErrorRecord {
	out := make([]ErrorRecord, len(s.records))
	copy(out, s.records)
	return out
}
