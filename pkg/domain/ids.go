package domain

import (
	"github.com/google/uuid"

	dErrors "careon/pkg/domain-errors"
)

// Typed identifiers keep application and user ids from being swapped at call
// sites. Both wrap a UUID; the zero value is the nil UUID.
type (
	ApplicationID uuid.UUID
	UserID        uuid.UUID
)

// NewApplicationID returns a fresh random application id.
func NewApplicationID() ApplicationID { return ApplicationID(uuid.New()) }

// NewUserID is for tests and tooling; real user ids come from access tokens.
func NewUserID() UserID { return UserID(uuid.New()) }

func (i ApplicationID) String() string { return uuid.UUID(i).String() }
func (i ApplicationID) IsNil() bool    { return uuid.UUID(i) == uuid.Nil }

func (i UserID) String() string { return uuid.UUID(i).String() }
func (i UserID) IsNil() bool    { return uuid.UUID(i) == uuid.Nil }

// ParseApplicationID parses a non-nil UUID string.
func ParseApplicationID(s string) (ApplicationID, error) {
	u, err := parseUUID(s, "application id")
	return ApplicationID(u), err
}

// ParseUserID parses a non-nil UUID string.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user id")
	return UserID(u), err
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is required", what)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s", what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must not be nil", what)
	}
	return u, nil
}

func (i ApplicationID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *ApplicationID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid application id")
	}
	*i = ApplicationID(u)
	return nil
}

func (i UserID) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

func (i *UserID) UnmarshalText(b []byte) error {
	u, err := uuid.ParseBytes(b)
	if err != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid user id")
	}
	*i = UserID(u)
	return nil
}
