package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// assignmentDelimiter bounds every id in the stored form. Because each id is
// wrapped on both sides, a lookup for ",1," never matches ",17," or ",21,".
const assignmentDelimiter = ","

// AssignmentSet is the unordered, duplicate-free set of user ids assigned to
// a task. The zero value is the empty set.
type AssignmentSet struct {
	ids []int64 // ascending, unique
}

// NewAssignmentSet builds a set from ids, dropping duplicates.
func NewAssignmentSet(ids ...int64) AssignmentSet {
	if len(ids) == 0 {
		return AssignmentSet{}
	}
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	return AssignmentSet{ids: slices.Compact(sorted)}
}

// DecodeAssignmentSet parses the stored form produced by Encode. An empty
// string (the stored null) decodes to the empty set and empty tokens are
// skipped. Tokens must be in the canonical form Encode writes, so decoding
// agrees with EncodedContains.
func DecodeAssignmentSet(encoded string) (AssignmentSet, error) {
	if strings.Trim(encoded, assignmentDelimiter) == "" {
		return AssignmentSet{}, nil
	}
	var ids []int64
	for _, tok := range strings.Split(encoded, assignmentDelimiter) {
		if tok == "" {
			continue
		}
		id, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return AssignmentSet{}, fmt.Errorf("decode assignment %q: %w", encoded, err)
		}
		if strconv.FormatInt(id, 10) != tok {
			return AssignmentSet{}, fmt.Errorf("decode assignment %q: non-canonical id %q", encoded, tok)
		}
		ids = append(ids, id)
	}
	return NewAssignmentSet(ids...), nil
}

// Encode returns the stored form, e.g. ",17,42," for {17, 42}. The empty set
// encodes to "" which storage layers persist as null.
func (s AssignmentSet) Encode() string {
	if len(s.ids) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(assignmentDelimiter)
	for _, id := range s.ids {
		b.WriteString(strconv.FormatInt(id, 10))
		b.WriteString(assignmentDelimiter)
	}
	return b.String()
}

// EncodeNullable is Encode with the empty set mapped to nil.
func (s AssignmentSet) EncodeNullable() *string {
	if s.IsEmpty() {
		return nil
	}
	v := s.Encode()
	return &v
}

// IDs returns a copy of the members in ascending order. The result is never
// nil so it serialises as [] rather than null.
func (s AssignmentSet) IDs() []int64 {
	out := make([]int64, len(s.ids))
	copy(out, s.ids)
	return out
}

func (s AssignmentSet) Len() int { return len(s.ids) }

func (s AssignmentSet) IsEmpty() bool { return len(s.ids) == 0 }

// Contains reports whether id is a member.
func (s AssignmentSet) Contains(id int64) bool {
	_, found := slices.BinarySearch(s.ids, id)
	return found
}

// Equal reports whether both sets hold the same members.
func (s AssignmentSet) Equal(other AssignmentSet) bool {
	return slices.Equal(s.ids, other.ids)
}

// MembershipToken is the delimiter-bounded needle that storage queries search
// for inside the encoded column.
func MembershipToken(id int64) string {
	return assignmentDelimiter + strconv.FormatInt(id, 10) + assignmentDelimiter
}

// EncodedContains tests membership directly on the stored form using the same
// substring rule as the storage queries. The encoded value is wrapped once
// more so a value stored without its outer delimiters still matches.
func EncodedContains(encoded string, id int64) bool {
	return strings.Contains(assignmentDelimiter+encoded+assignmentDelimiter, MembershipToken(id))
}

// ParseAssigneeIDs reads a comma separated list of ids as sent by clients.
// Tokens are trimmed, empty ones are dropped and duplicates are kept.
func ParseAssigneeIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, tok := range strings.Split(raw, assignmentDelimiter) {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		id, err := ParseAssigneeID(tok)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ParseAssigneeID parses a single client supplied assignee reference.
func ParseAssigneeID(tok string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(tok), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: malformed assignee reference %q", ErrValidation, tok)
	}
	return id, nil
}

// ParseAssigneeJSON decodes the client forms of an assignment: an array of
// numbers, an array of numeric strings, a comma separated string, a single
// number, or null. Null decodes to a nil slice.
func ParseAssigneeJSON(data []byte) ([]int64, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: assignedTo is not valid JSON", ErrValidation)
	}

	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return ParseAssigneeIDs(v)
	case float64:
		id, err := numericAssignee(v)
		if err != nil {
			return nil, err
		}
		return []int64{id}, nil
	case []any:
		ids := make([]int64, 0, len(v))
		for _, item := range v {
			switch tok := item.(type) {
			case float64:
				id, err := numericAssignee(tok)
				if err != nil {
					return nil, err
				}
				ids = append(ids, id)
			case string:
				more, err := ParseAssigneeIDs(tok)
				if err != nil {
					return nil, err
				}
				ids = append(ids, more...)
			default:
				return nil, fmt.Errorf("%w: malformed assignee reference %v", ErrValidation, item)
			}
		}
		return ids, nil
	default:
		return nil, fmt.Errorf("%w: assignedTo must be a list of user ids", ErrValidation)
	}
}

// float64(math.MaxInt64) rounds up to 2^63, so the bound is exclusive.
func numericAssignee(f float64) (int64, error) {
	if f <= 0 || f != math.Trunc(f) || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: malformed assignee reference %v", ErrValidation, f)
	}
	return int64(f), nil
}
