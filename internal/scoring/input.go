package scoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Input is raw submitted form data keyed by field name. A field submitted once
// and a field submitted as a list are both stored as a slice.
type Input map[string][]string

// RawEntry is the raw input for one round, keyed by field name. Scalar
// submissions are stored under "score".
type RawEntry map[string]string

const (
	fieldScores       = "scores"
	fieldScore        = "score"
	fieldMinutes      = "minutes"
	fieldSeconds      = "seconds"
	fieldRounds       = "rounds"
	fieldRepsPerRound = "repsPerRound"
	fieldCapped       = "capped"
	fieldRepsAtCap    = "repsAtCap"
	fieldScale        = "scale"
	fieldNotes        = "notes"
)

func InputFromValues(values url.Values) Input {
	in := make(Input, len(values))
	for k, v := range values {
		in[k] = append([]string(nil), v...)
	}
	return in
}

// InputFromMap accepts a decoded JSON body. Scalar values and lists of scalars
// become string slices; anything nested is re-encoded as a single JSON string
// so it takes the same path as a JSON-encoded form field.
func InputFromMap(m map[string]any) (Input, error) {
	in := make(Input, len(m))
	for k, v := range m {
		if s, ok := scalarString(v); ok {
			in[k] = []string{s}
			continue
		}
		switch tv := v.(type) {
		case nil:
			continue
		case []string:
			in[k] = append([]string(nil), tv...)
			continue
		case []any:
			if values, ok := scalarList(tv); ok {
				in[k] = values
				continue
			}
		}
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil, invalidValue(k, "Could not read field")
		}
		in[k] = []string{string(encoded)}
	}
	return in, nil
}

func scalarList(values []any) ([]string, bool) {
	out := make([]string, 0, len(values))
	for _, v := range values {
		s, ok := scalarString(v)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func scalarString(v any) (string, bool) {
	switch tv := v.(type) {
	case string:
		return tv, true
	case json.Number:
		return tv.String(), true
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64), true
	case int:
		return strconv.Itoa(tv), true
	case int64:
		return strconv.FormatInt(tv, 10), true
	case bool:
		if tv {
			return "1", true
		}
		return "0", true
	}
	return "", false
}

func (in Input) Get(key string) string {
	if v := in[key]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}

func (in Input) Has(key string) bool {
	for _, v := range in[key] {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// SetDefault sets key to value unless a non-empty value was submitted.
func (in Input) SetDefault(key, value string) {
	if !in.Has(key) {
		in[key] = []string{value}
	}
}

// entries splits the input into per-round raw entries, in submission order.
// For rounds + reps, submitted rounds take precedence over a scores field,
// which forms may send alongside them as a computed total.
func (in Input) entries(scheme Scheme) ([]RawEntry, error) {
	if schemes[scheme].shape == shapeRoundsReps && in.Has(fieldRounds) {
		return zipEntries(in[fieldRounds], fieldRounds, in[fieldRepsPerRound], fieldRepsPerRound), nil
	}

	if in.Has(fieldScores) {
		scores := nonEmpty(in[fieldScores])
		if len(scores) == 1 && looksLikeJSON(scores[0]) {
			return parseJSONEntries(scores[0])
		}
		return scalarEntries(scores), nil
	}

	if in.Has(fieldMinutes) || in.Has(fieldSeconds) {
		return zipEntries(in[fieldMinutes], fieldMinutes, in[fieldSeconds], fieldSeconds), nil
	}

	if in.Has(fieldRounds) {
		return zipEntries(in[fieldRounds], fieldRounds, in[fieldRepsPerRound], fieldRepsPerRound), nil
	}

	if in.Has(fieldScore) {
		return scalarEntries(nonEmpty(in[fieldScore])), nil
	}

	return nil, nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func looksLikeJSON(s string) bool {
	return strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{")
}

func scalarEntries(values []string) []RawEntry {
	entries := make([]RawEntry, 0, len(values))
	for _, v := range values {
		entries = append(entries, RawEntry{fieldScore: v})
	}
	return entries
}

// zipEntries pairs two repeated fields by index. A second field submitted once
// applies to every round.
func zipEntries(first []string, firstKey string, second []string, secondKey string) []RawEntry {
	n := len(first)
	if len(second) > n {
		n = len(second)
	}
	entries := make([]RawEntry, 0, n)
	for i := 0; i < n; i++ {
		entry := RawEntry{}
		if i < len(first) {
			entry[firstKey] = strings.TrimSpace(first[i])
		}
		switch {
		case i < len(second):
			entry[secondKey] = strings.TrimSpace(second[i])
		case len(second) == 1:
			entry[secondKey] = strings.TrimSpace(second[0])
		}
		entries = append(entries, entry)
	}
	return entries
}

func parseJSONEntries(s string) ([]RawEntry, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()

	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, invalidValue(fieldScores, "Scores could not be read")
	}

	switch v := decoded.(type) {
	case []any:
		entries := make([]RawEntry, 0, len(v))
		for i, item := range v {
			entry, err := jsonEntry(item)
			if err != nil {
				return nil, withField(err, fmt.Sprintf("scores[%d]", i))
			}
			entries = append(entries, entry)
		}
		return entries, nil
	case map[string]any:
		keys, indexed := indexKeys(v)
		if !indexed {
			entry, err := jsonEntry(v)
			if err != nil {
				return nil, withField(err, fieldScores)
			}
			return []RawEntry{entry}, nil
		}
		entries := make([]RawEntry, 0, len(keys))
		for _, k := range keys {
			entry, err := jsonEntry(v[strconv.Itoa(k)])
			if err != nil {
				return nil, withField(err, fmt.Sprintf("scores[%d]", k))
			}
			entries = append(entries, entry)
		}
		return entries, nil
	default:
		entry, err := jsonEntry(v)
		if err != nil {
			return nil, withField(err, fieldScores)
		}
		return []RawEntry{entry}, nil
	}
}

// indexKeys returns the object's keys in ascending numeric order when every
// key is a non-negative integer.
func indexKeys(m map[string]any) ([]int, bool) {
	if len(m) == 0 {
		return nil, false
	}
	keys := make([]int, 0, len(m))
	for k := range m {
		n, err := strconv.Atoi(k)
		if err != nil || n < 0 || strconv.Itoa(n) != k {
			return nil, false
		}
		keys = append(keys, n)
	}
	sort.Ints(keys)
	return keys, true
}

func jsonEntry(v any) (RawEntry, error) {
	if s, ok := scalarString(v); ok {
		return RawEntry{fieldScore: s}, nil
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &ValidationError{Kind: InvalidValue, Message: "Each score must be a number or an object"}
	}
	entry := make(RawEntry, len(obj))
	for k, fv := range obj {
		s, ok := scalarString(fv)
		if !ok {
			return nil, &ValidationError{Kind: InvalidValue, Message: fmt.Sprintf("Field %q must be a number", k)}
		}
		entry[k] = s
	}
	return entry, nil
}
