package scoring

type ErrorKind int

const (
	MissingRounds ErrorKind = iota + 1
	InvalidValue
	SchemeMismatch
)

func (k ErrorKind) String() string {
	switch k {
	case MissingRounds:
		return "missing_rounds"
	case InvalidValue:
		return "invalid_value"
	case SchemeMismatch:
		return "scheme_mismatch"
	default:
		return "unknown"
	}
}

// ValidationError is a user-facing problem with submitted result input.
// Field names the offending form field so callers can attach the message to it.
type ValidationError struct {
	Kind    ErrorKind
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Is matches on Kind only, so errors.Is(err, ErrMissingRounds) works for any field.
func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	return ok && t.Kind == e.Kind
}

var (
	ErrMissingRounds  = &ValidationError{Kind: MissingRounds, Message: "wrong number of rounds"}
	ErrInvalidValue   = &ValidationError{Kind: InvalidValue, Message: "invalid value"}
	ErrSchemeMismatch = &ValidationError{Kind: SchemeMismatch, Message: "input does not match scheme"}
)

func invalidValue(field, msg string) *ValidationError {
	return &ValidationError{Kind: InvalidValue, Field: field, Message: msg}
}

func schemeMismatch(field, msg string) *ValidationError {
	return &ValidationError{Kind: SchemeMismatch, Field: field, Message: msg}
}

func withField(err error, field string) error {
	if ve, ok := err.(*ValidationError); ok && ve.Field == "" {
		return &ValidationError{Kind: ve.Kind, Field: field, Message: ve.Message}
	}
	return err
}
