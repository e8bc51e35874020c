package routes

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registrar/internal/record/models"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
)

func TestLookup(t *testing.T) {
	t.Run("every action type has a route", func(t *testing.T) {
		types := []models.ActionType{
			models.ActionNotify, models.ActionDeclare, models.ActionValidate,
			models.ActionRegister, models.ActionConfirmRegistration,
			models.ActionCertify, models.ActionReject, models.ActionArchive,
			models.ActionReinstate, models.ActionCorrect,
			models.ActionApproveCorrection, models.ActionRejectCorrection,
			models.ActionEdit, models.ActionAssign, models.ActionUnassign,
			models.ActionMarkNotDuplicate,
		}
		for _, at := range types {
			route, err := Lookup(at)
			require.NoError(t, err, "route missing for %s", at)
			assert.Equal(t, at, route.Type)
		}
	})

	t.Run("unknown action type is rejected", func(t *testing.T) {
		_, err := Lookup(models.ActionType("FROB"))
		assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
	})
}

func TestCheckTransition(t *testing.T) {
	cases := []struct {
		name    string
		action  models.ActionType
		from    models.Status
		allowed bool
	}{
		{"validate from declared", models.ActionValidate, models.StatusDeclared, true},
		{"validate from registered", models.ActionValidate, models.StatusRegistered, false},
		{"register from validated", models.ActionRegister, models.StatusValidated, true},
		{"register from declared", models.ActionRegister, models.StatusDeclared, false},
		{"confirm from waiting", models.ActionConfirmRegistration, models.StatusWaitingValidation, true},
		{"confirm from registered", models.ActionConfirmRegistration, models.StatusRegistered, false},
		{"certify from registered", models.ActionCertify, models.StatusRegistered, true},
		{"certify twice", models.ActionCertify, models.StatusCertified, false},
		{"reinstate from archived", models.ActionReinstate, models.StatusArchived, true},
		{"reinstate from declared", models.ActionReinstate, models.StatusDeclared, false},
		{"reject from declared", models.ActionReject, models.StatusDeclared, true},
		{"reject from archived", models.ActionReject, models.StatusArchived, false},
		{"archive from rejected", models.ActionArchive, models.StatusRejected, true},
		{"archive twice", models.ActionArchive, models.StatusArchived, false},
		{"correct from certified", models.ActionCorrect, models.StatusCertified, true},
		{"correct from declared", models.ActionCorrect, models.StatusDeclared, false},
		{"edit from rejected", models.ActionEdit, models.StatusRejected, true},
		{"edit from registered", models.ActionEdit, models.StatusRegistered, false},
		{"assign from declared", models.ActionAssign, models.StatusDeclared, true},
		{"assign from archived", models.ActionAssign, models.StatusArchived, false},
		{"unassign from archived", models.ActionUnassign, models.StatusArchived, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			route, err := Lookup(tc.action)
			require.NoError(t, err)

			err = route.CheckTransition(tc.from)
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assert.True(t, dErrors.Is(err, dErrors.CodeInvalidTransition),
					"expected invalid transition, got %v", err)
			}
		})
	}
}

func TestCheckScopes(t *testing.T) {
	registerRoute, err := Lookup(models.ActionRegister)
	require.NoError(t, err)

	t.Run("caller with the scope passes", func(t *testing.T) {
		scopes := id.NewScopeSet(id.ScopeRecordRegister)
		assert.NoError(t, registerRoute.CheckScopes(scopes))
	})

	t.Run("caller without the scope is refused", func(t *testing.T) {
		scopes := id.NewScopeSet(id.ScopeRecordDeclare)
		err := registerRoute.CheckScopes(scopes)
		assert.True(t, dErrors.Is(err, dErrors.CodeUnauthorized))
	})

	t.Run("any matching scope from the set suffices", func(t *testing.T) {
		rejectRoute, err := Lookup(models.ActionReject)
		require.NoError(t, err)
		scopes := id.NewScopeSet(id.ScopeRecordValidate)
		assert.NoError(t, rejectRoute.CheckScopes(scopes))
	})
}

func TestCheckUnassign(t *testing.T) {
	caller := id.UserID(uuid.New())
	other := id.UserID(uuid.New())

	stateWith := func(holder *id.UserID) models.EventState {
		state := models.EventState{Event: id.EventBirth}
		if holder != nil {
			state.Assignment = &models.Assignment{AssignedTo: *holder}
		}
		return state
	}

	t.Run("no assignment is always permitted", func(t *testing.T) {
		assert.NoError(t, CheckUnassign(stateWith(nil), caller, id.NewScopeSet()))
	})

	t.Run("own assignment is always permitted", func(t *testing.T) {
		assert.NoError(t, CheckUnassign(stateWith(&caller), caller, id.NewScopeSet()))
	})

	t.Run("another user's assignment needs the event-scoped grant", func(t *testing.T) {
		err := CheckUnassign(stateWith(&other), caller, id.NewScopeSet(id.ScopeRecordAssign))
		assert.True(t, dErrors.Is(err, dErrors.CodeForbidden))

		grant := id.UnassignOthersScope(id.EventBirth)
		assert.NoError(t, CheckUnassign(stateWith(&other), caller, id.NewScopeSet(grant)))
	})

	t.Run("grant for a different event type does not carry over", func(t *testing.T) {
		grant := id.UnassignOthersScope(id.EventDeath)
		err := CheckUnassign(stateWith(&other), caller, id.NewScopeSet(grant))
		assert.True(t, dErrors.Is(err, dErrors.CodeForbidden))
	})
}

func TestValidatePayload(t *testing.T) {
	reviewer := id.UserID(uuid.New())
	candidate := id.RecordID(uuid.New())

	cases := []struct {
		name   string
		action models.Action
		valid  bool
	}{
		{"reject with comment and reason", models.Action{Type: models.ActionReject, Comment: "c", Reason: "r"}, true},
		{"reject without comment", models.Action{Type: models.ActionReject, Reason: "r"}, false},
		{"reject without reason", models.Action{Type: models.ActionReject, Comment: "c"}, false},
		{"archive with reason", models.Action{Type: models.ActionArchive, Reason: "duplicate"}, true},
		{"archive without reason", models.Action{Type: models.ActionArchive}, false},
		{"correct without reason", models.Action{Type: models.ActionCorrect}, false},
		{"declare with declaration", models.Action{Type: models.ActionDeclare,
			Declaration: models.Patch{"child.firstName": models.String("Asha")}}, true},
		{"declare without declaration", models.Action{Type: models.ActionDeclare}, false},
		{"notify without declaration", models.Action{Type: models.ActionNotify}, false},
		{"assign with assignee", models.Action{Type: models.ActionAssign, AssignedTo: &reviewer}, true},
		{"assign without assignee", models.Action{Type: models.ActionAssign}, false},
		{"not-duplicate with candidate", models.Action{Type: models.ActionMarkNotDuplicate, NotDuplicateOf: &candidate}, true},
		{"not-duplicate without candidate", models.Action{Type: models.ActionMarkNotDuplicate}, false},
		{"edit with a field", models.Action{Type: models.ActionEdit,
			Declaration: models.Patch{"child.firstName": models.String("A")}}, true},
		{"edit without fields", models.Action{Type: models.ActionEdit}, false},
		{"validate needs nothing extra", models.Action{Type: models.ActionValidate}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			route, err := Lookup(tc.action.Type)
			require.NoError(t, err)

			err = route.ValidatePayload(tc.action)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.True(t, dErrors.Is(err, dErrors.CodeValidation),
					"expected validation error, got %v", err)
			}
		})
	}
}
