// Package domain holds the identifier and enum types shared across the
// record lifecycle engine. Typed UUIDs prevent cross-type assignment at
// compile time; Parse* helpers enforce the trust-boundary invariant that
// IDs are valid, non-nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "registrar/pkg/domain-errors"
)

// RecordID identifies one civil-registration record (a birth, death, or
// marriage event aggregate).
type RecordID uuid.UUID

// ActionID identifies one immutable entry in a record's action log.
type ActionID uuid.UUID

// UserID identifies the user performing or named by an action.
type UserID uuid.UUID

// OfficeID identifies the registration office a record or user belongs to.
type OfficeID uuid.UUID

func (id RecordID) String() string { return uuid.UUID(id).String() }
func (id ActionID) String() string { return uuid.UUID(id).String() }
func (id UserID) String() string   { return uuid.UUID(id).String() }
func (id OfficeID) String() string { return uuid.UUID(id).String() }

func (id RecordID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ActionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id UserID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id OfficeID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText/UnmarshalText keep the typed IDs as canonical UUID strings
// in JSON and text encodings.
func (id RecordID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id ActionID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }
func (id UserID) MarshalText() ([]byte, error)   { return []byte(id.String()), nil }
func (id OfficeID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

func (id *RecordID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*id = RecordID(parsed)
	return nil
}

func (id *ActionID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*id = ActionID(parsed)
	return nil
}

func (id *UserID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*id = UserID(parsed)
	return nil
}

func (id *OfficeID) UnmarshalText(text []byte) error {
	parsed, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*id = OfficeID(parsed)
	return nil
}

// NewRecordID mints a fresh record identifier.
func NewRecordID() RecordID { return RecordID(uuid.New()) }

// NewActionID mints a fresh action identifier.
func NewActionID() ActionID { return ActionID(uuid.New()) }

func parseUUID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "id must not be empty")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "id is not a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeBadRequest, "id must not be the nil UUID")
	}
	return parsed, nil
}

// ParseRecordID validates and converts a raw string into a RecordID.
func ParseRecordID(raw string) (RecordID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return RecordID{}, err
	}
	return RecordID(parsed), nil
}

// ParseActionID validates and converts a raw string into an ActionID.
func ParseActionID(raw string) (ActionID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return ActionID{}, err
	}
	return ActionID(parsed), nil
}

// ParseUserID validates and converts a raw string into a UserID.
func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return UserID{}, err
	}
	return UserID(parsed), nil
}

// ParseOfficeID validates and converts a raw string into an OfficeID.
func ParseOfficeID(raw string) (OfficeID, error) {
	parsed, err := parseUUID(raw)
	if err != nil {
		return OfficeID{}, err
	}
	return OfficeID(parsed), nil
}
