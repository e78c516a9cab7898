package common

import "errors"

// Kind classifies a domain error so handlers can map it to a transport
// status without inspecting message text.
type Kind byte

const (
	// KindNotFound covers absent entities and tenant mismatches; both are
	// reported identically so existence never leaks across tenants.
	KindNotFound Kind = iota
	// KindInvalidRequest covers malformed input and violated preconditions.
	KindInvalidRequest
	// KindConflict covers writes that collide with existing state.
	KindConflict
	// KindInactive covers deactivated credentials.
	KindInactive
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidRequest:
		return "invalid_request"
	case KindConflict:
		return "conflict"
	case KindInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// Error is a domain error with a classification Kind. All engine
// operations return either an *Error or a wrapped infrastructure error.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// NotFound builds a not-found error for the named resource
func NotFound(resource string) error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

// InvalidRequest builds an invalid-request error
func InvalidRequest(message string) error {
	return &Error{Kind: KindInvalidRequest, Message: message}
}

// Conflict builds a conflict error
func Conflict(message string) error {
	return &Error{Kind: KindConflict, Message: message}
}

// Inactive builds an inactive-credential error
func Inactive(message string) error {
	return &Error{Kind: KindInactive, Message: message}
}

// KindOf extracts the Kind from err, reporting whether err is a domain error
func KindOf(err error) (Kind, bool) {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind, true
	}
	return 0, false
}

// IsKind reports whether err is a domain error of the given kind
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
