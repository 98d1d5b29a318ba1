package sweep

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Outcome classifies the oracle's answer for one candidate.
type Outcome int

const (
	OutcomeIncorrect Outcome = iota
	OutcomeCorrect
	OutcomeError
)

// Labels written to the persisted document. "INCORRECT INPUT" matches
// databases produced by earlier versions of the tool.
const (
	LabelCorrect   = "CORRECT"
	LabelIncorrect = "INCORRECT INPUT"
	LabelError     = "ERROR"
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCorrect:
		return LabelCorrect
	case OutcomeIncorrect:
		return LabelIncorrect
	case OutcomeError:
		return LabelError
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Short is the lower-case name used in metrics labels and CLI filters.
func (o Outcome) Short() string {
	switch o {
	case OutcomeCorrect:
		return "correct"
	case OutcomeIncorrect:
		return "incorrect"
	default:
		return "error"
	}
}

// ParseOutcome accepts the short names and the persisted labels.
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CORRECT":
		return OutcomeCorrect, nil
	case "INCORRECT", "INCORRECT INPUT":
		return OutcomeIncorrect, nil
	case "ERROR":
		return OutcomeError, nil
	}
	return 0, fmt.Errorf("unknown outcome %q", s)
}

// ResultRecord is the stored answer for one candidate.
type ResultRecord struct {
	Candidate string
	Outcome   Outcome
	Messages  []string
}

// NewErrorRecord builds an ERROR record whose only message is the failure.
func NewErrorRecord(candidate string, err error) ResultRecord {
	return ResultRecord{
		Candidate: candidate,
		Outcome:   OutcomeError,
		Messages:  []string{err.Error()},
	}
}

type wireRecord struct {
	Value   string   `json:"VALUE"`
	Message []string `json:"MESSAGE"`
}

// MarshalJSON writes the {"VALUE", "MESSAGE"} form. Messages are never null.
func (r ResultRecord) MarshalJSON() ([]byte, error) {
	msgs := r.Messages
	if msgs == nil {
		msgs = []string{}
	}
	return json.Marshal(wireRecord{Value: r.Outcome.String(), Message: msgs})
}

// UnmarshalJSON reads the {"VALUE", "MESSAGE"} form. An unrecognized VALUE
// is an error string written by an older version and decodes as ERROR.
// The Candidate field is filled in by the caller from the document key.
func (r *ResultRecord) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.Messages = w.Message
	if r.Messages == nil {
		r.Messages = []string{}
	}
	o, err := ParseOutcome(w.Value)
	if err != nil {
		r.Outcome = OutcomeError
		if len(r.Messages) == 0 {
			r.Messages = []string{w.Value}
		}
		return nil
	}
	r.Outcome = o
	return nil
}

// Records maps a candidate's exact string form to its result.
type Records map[string]ResultRecord

// Has reports whether the candidate has any stored result.
func (r Records) Has(candidate string) bool {
	_, ok := r[candidate]
	return ok
}

// Put stores rec under its candidate key.
func (r Records) Put(rec ResultRecord) {
	if rec.Messages == nil {
		rec.Messages = []string{}
	}
	r[rec.Candidate] = rec
}

// Clone returns a deep copy.
func (r Records) Clone() Records {
	out := make(Records, len(r))
	for k, v := range r {
		v.Messages = append([]string{}, v.Messages...)
		out[k] = v
	}
	return out
}

// SortedKeys returns the keys in canonical order: shorter first, then
// lexicographic.
func (r Records) SortedKeys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return canonicalLess(keys[i], keys[j])
	})
	return keys
}

// CountByOutcome tallies the records.
func (r Records) CountByOutcome() map[Outcome]int {
	counts := make(map[Outcome]int, 3)
	for _, rec := range r {
		counts[rec.Outcome]++
	}
	return counts
}

func canonicalLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// NormalizeMessage turns the oracle's non-breaking spaces into line breaks.
func NormalizeMessage(m string) string {
	return strings.ReplaceAll(m, "\u00a0", "\n")
}

// FormatRecord renders a record for the console:
//
//	Input: 1 | VALUE: CORRECT
//	Messages:
//	Hi
//	there
func FormatRecord(rec ResultRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Input: %s | VALUE: %s", rec.Candidate, rec.Outcome)
	if len(rec.Messages) > 0 {
		b.WriteString("\nMessages:\n")
		b.WriteString(strings.Join(rec.Messages, "\n"))
	}
	return b.String()
}
