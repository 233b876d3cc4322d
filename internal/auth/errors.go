package auth

type ErrorKind int

const (
	InvalidCredentials ErrorKind = iota + 1
	UserExists
	Unauthenticated
	SessionExpired
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidCredentials:
		return "invalid_credentials"
	case UserExists:
		return "user_exists"
	case Unauthenticated:
		return "unauthenticated"
	case SessionExpired:
		return "session_expired"
	default:
		return "unknown"
	}
}

// AuthError is a credential or session failure. Message is safe to show to users.
type AuthError struct {
	Kind    ErrorKind
	Message string
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Kind == e.Kind
}

// InvalidCredentials deliberately covers both unknown email and wrong password.
var (
	ErrInvalidCredentials = &AuthError{Kind: InvalidCredentials, Message: "Invalid email or password"}
	ErrUserExists         = &AuthError{Kind: UserExists, Message: "User already exists"}
	ErrUnauthenticated    = &AuthError{Kind: Unauthenticated, Message: "Unauthorized"}
	ErrSessionExpired     = &AuthError{Kind: SessionExpired, Message: "Session expired"}
)
