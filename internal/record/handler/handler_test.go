package handler_test

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/audit/publisher"
	auditmemory "registrar/pkg/platform/audit/store/memory"
	"registrar/pkg/testutil"

	"registrar/internal/drafts"
	"registrar/internal/fhir"
	"registrar/internal/platform/jwt"
	"registrar/internal/record/handler"
	"registrar/internal/record/models"
	"registrar/internal/record/service"
	storememory "registrar/internal/record/store/memory"
	"registrar/internal/search"
	"registrar/internal/synchronizer"
)

const signingKey = "handler-test-signing-key"

type HandlerSuite struct {
	suite.Suite

	router chi.Router
	token  string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := storememory.NewInMemoryStore()
	audits := publisher.NewPublisher(auditmemory.NewInMemoryStore())
	sync := synchronizer.New(store, fhir.NewInMemoryClient(), logger,
		synchronizer.WithSearch(search.NewInMemoryClient()),
		synchronizer.WithAudit(audits),
	)
	svc := service.NewService(store, sync, logger,
		service.WithDrafts(drafts.NewInMemoryStore()),
	)

	h := handler.New(svc, logger, nil, jwt.NewValidator(signingKey), audits)
	s.router = chi.NewRouter()
	h.Register(s.router)

	var err error
	s.token, err = jwt.Sign(signingKey, id.UserID(uuid.New()), id.OfficeID(uuid.New()), []string{
		"record.declare", "record.validate", "record.register",
		"record.certify", "record.archive", "record.assign",
	}, time.Hour)
	s.Require().NoError(err)
}

func (s *HandlerSuite) request(method, path string, body any) *http.Request {
	req := testutil.NewJSONRequest(s.T(), method, path, body)
	req.Header.Set("Authorization", "Bearer "+s.token)
	return req
}

func (s *HandlerSuite) createRecord() models.EventState {
	s.T().Helper()
	rr := testutil.DoRequest(s.router, s.request(http.MethodPost, "/records", map[string]any{
		"type":  "DECLARE",
		"event": "birth",
		"declaration": map[string]any{
			"child.firstName": "Amina",
		},
	}))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	return *testutil.UnmarshalResponse[models.EventState](s.T(), rr)
}

func (s *HandlerSuite) TestCreateRecord() {
	state := s.createRecord()
	s.Equal(models.StatusDeclared, state.Status)
	s.NotEmpty(state.TrackingID)
}

func (s *HandlerSuite) TestCreateRejectsMalformedBody() {
	req := s.request(http.MethodPost, "/records", nil)
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	testutil.AssertErrorCode(s.T(), rr, string(dErrors.CodeBadRequest))
}

func (s *HandlerSuite) TestRequiresAuth() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/records", map[string]any{})
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
}

func (s *HandlerSuite) TestRejectsBadToken() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/records", map[string]any{})
	req.Header.Set("Authorization", "Bearer not-a-token")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
}

func (s *HandlerSuite) TestGetRecord() {
	created := s.createRecord()

	rr := testutil.DoRequest(s.router, s.request(http.MethodGet, "/records/"+created.RecordID.String(), nil))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	state := testutil.UnmarshalResponse[models.EventState](s.T(), rr)
	s.Equal(created.RecordID, state.RecordID)
}

func (s *HandlerSuite) TestGetUnknownRecord() {
	rr := testutil.DoRequest(s.router, s.request(http.MethodGet, "/records/"+uuid.NewString(), nil))
	testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
	testutil.AssertErrorCode(s.T(), rr, string(dErrors.CodeNotFound))
}

func (s *HandlerSuite) TestGetMalformedRecordID() {
	rr := testutil.DoRequest(s.router, s.request(http.MethodGet, "/records/not-a-uuid", nil))
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
}

func (s *HandlerSuite) TestSubmitAction() {
	created := s.createRecord()

	rr := testutil.DoRequest(s.router, s.request(http.MethodPost,
		"/records/"+created.RecordID.String()+"/actions", map[string]any{
			"type": "VALIDATE",
		}))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	state := testutil.UnmarshalResponse[models.EventState](s.T(), rr)
	s.Equal(models.StatusValidated, state.Status)
}

func (s *HandlerSuite) TestSubmitIllegalTransition() {
	created := s.createRecord()

	rr := testutil.DoRequest(s.router, s.request(http.MethodPost,
		"/records/"+created.RecordID.String()+"/actions", map[string]any{
			"type": "CERTIFY",
		}))
	testutil.AssertStatus(s.T(), rr, http.StatusConflict)
	testutil.AssertErrorCode(s.T(), rr, string(dErrors.CodeInvalidTransition))
}

func (s *HandlerSuite) TestScopeDeniedMapsToUnauthorized() {
	created := s.createRecord()

	limited, err := jwt.Sign(signingKey, id.UserID(uuid.New()), id.OfficeID(uuid.New()),
		[]string{"record.declare"}, time.Hour)
	s.Require().NoError(err)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost,
		"/records/"+created.RecordID.String()+"/actions", map[string]any{"type": "VALIDATE"})
	req.Header.Set("Authorization", "Bearer "+limited)
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)
	testutil.AssertErrorCode(s.T(), rr, string(dErrors.CodeUnauthorized))
}

func (s *HandlerSuite) TestAssignAndUnassign() {
	created := s.createRecord()

	rr := testutil.DoRequest(s.router, s.request(http.MethodPost,
		"/records/"+created.RecordID.String()+"/assign", nil))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	state := testutil.UnmarshalResponse[models.EventState](s.T(), rr)
	s.NotNil(state.Assignment)

	rr = testutil.DoRequest(s.router, s.request(http.MethodPost,
		"/records/"+created.RecordID.String()+"/unassign", nil))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	state = testutil.UnmarshalResponse[models.EventState](s.T(), rr)
	s.Nil(state.Assignment)
}

func (s *HandlerSuite) TestConfirmRegistration() {
	created := s.createRecord()
	for _, actionType := range []string{"VALIDATE", "REGISTER"} {
		rr := testutil.DoRequest(s.router, s.request(http.MethodPost,
			"/records/"+created.RecordID.String()+"/actions", map[string]any{"type": actionType}))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
	}

	rr := testutil.DoRequest(s.router, s.request(http.MethodPost,
		"/records/"+created.RecordID.String()+"/confirm", map[string]any{"comment": "verified"}))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	state := testutil.UnmarshalResponse[models.EventState](s.T(), rr)
	s.Equal(models.StatusRegistered, state.Status)
}

func (s *HandlerSuite) TestDuplicateVerdict() {
	created := s.createRecord()
	candidate := uuid.NewString()

	rr := testutil.DoRequest(s.router, s.request(http.MethodPost,
		"/records/"+created.RecordID.String()+"/duplicates/"+candidate+"/verdict",
		map[string]any{"confirmed": true}))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	state := testutil.UnmarshalResponse[models.EventState](s.T(), rr)
	s.Equal(models.StatusArchived, state.Status)
}

func (s *HandlerSuite) TestHistory() {
	created := s.createRecord()

	rr := testutil.DoRequest(s.router, s.request(http.MethodGet,
		"/records/"+created.RecordID.String()+"/history", nil))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	body := testutil.UnmarshalResponse[struct {
		Actions []models.Action `json:"actions"`
	}](s.T(), rr)
	s.Len(body.Actions, 1)
	s.Equal(models.ActionDeclare, body.Actions[0].Type)
}

func (s *HandlerSuite) TestAuditTrail() {
	created := s.createRecord()

	rr := testutil.DoRequest(s.router, s.request(http.MethodGet,
		"/records/"+created.RecordID.String()+"/audit", nil))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	body := testutil.UnmarshalResponse[struct {
		Events []map[string]any `json:"events"`
	}](s.T(), rr)
	s.NotEmpty(body.Events)
}

func (s *HandlerSuite) TestDraftRoundtrip() {
	created := s.createRecord()
	path := "/records/" + created.RecordID.String() + "/draft"

	rr := testutil.DoRequest(s.router, s.request(http.MethodPut, path, map[string]any{
		"declaration": map[string]any{"child.firstName": "Aminata"},
	}))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	state := testutil.UnmarshalResponse[models.EventState](s.T(), rr)
	s.True(state.DraftApplied)

	rr = testutil.DoRequest(s.router, s.request(http.MethodGet,
		"/records/"+created.RecordID.String()+"?draft=true", nil))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	state = testutil.UnmarshalResponse[models.EventState](s.T(), rr)
	s.True(state.DraftApplied)

	rr = testutil.DoRequest(s.router, s.request(http.MethodDelete, path, nil))
	testutil.AssertStatus(s.T(), rr, http.StatusNoContent)

	rr = testutil.DoRequest(s.router, s.request(http.MethodGet,
		"/records/"+created.RecordID.String()+"?draft=true", nil))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	state = testutil.UnmarshalResponse[models.EventState](s.T(), rr)
	s.False(state.DraftApplied)
}

func (s *HandlerSuite) TestReindex() {
	s.createRecord()
	s.createRecord()

	rr := testutil.DoRequest(s.router, s.request(http.MethodPost, "/admin/reindex", map[string]any{}))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	body := testutil.UnmarshalResponse[map[string]int](s.T(), rr)
	s.Equal(2, (*body)["reindexed"])
}

func (s *HandlerSuite) TestUnsupportedContentType() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/records", map[string]any{"type": "DECLARE"})
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "text/plain")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusUnsupportedMediaType)
}
