package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwrk-planet/qaroom/internal/domain"
	"github.com/cwrk-planet/qaroom/internal/identity"
	"github.com/cwrk-planet/qaroom/internal/roomsync"
	"github.com/cwrk-planet/qaroom/internal/service"
	"github.com/cwrk-planet/qaroom/internal/store/memory"
)

var secret = []byte("test-secret")

type testAPI struct {
	t      *testing.T
	router http.Handler
	signer *identity.Signer
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	st := memory.New()
	t.Cleanup(func() { _ = st.Close() })

	h := NewHandler(service.NewMutationService(st, nil), service.NewLifecycleGuard(st), roomsync.New(st))
	router := NewRouter(RouterDeps{
		Handler:  h,
		Verifier: identity.NewHMACVerifier(secret, "", "", time.Minute),
	})
	return &testAPI{t: t, router: router, signer: identity.NewHMACSigner(secret, "", "", time.Hour)}
}

func (a *testAPI) token(v domain.Viewer) string {
	tok, err := a.signer.Sign(v, time.Now())
	require.NoError(a.t, err)
	return tok
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRoomLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	mod := api.token(domain.Viewer{ID: "mod", Name: "Moderator"})
	ann := api.token(domain.Viewer{ID: "ann", Name: "Ann", Avatar: "https://img/ann.png"})

	rec := api.do("POST", "/rooms", mod, CreateRoomRequest{Title: "Go meetup"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	roomID := decodeBody[IDResponse](t, rec).ID

	rec = api.do("GET", "/rooms/"+roomID+"/join", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, roomID, decodeBody[IDResponse](t, rec).ID)

	rec = api.do("POST", "/rooms/"+roomID+"/questions", ann, SubmitQuestionRequest{Content: "Generics?"})
	require.Equal(t, http.StatusCreated, rec.Code)
	qid := decodeBody[IDResponse](t, rec).ID

	rec = api.do("POST", "/rooms/"+roomID+"/questions/"+qid+"/likes", ann, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	likeID := decodeBody[LikeResponse](t, rec).LikeID

	rec = api.do("POST", "/rooms/"+roomID+"/questions/"+qid+"/likes", ann, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do("GET", "/rooms/"+roomID, ann, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeBody[domain.RoomView](t, rec)
	require.Len(t, view.Questions, 1)
	assert.Equal(t, 1, view.Questions[0].LikedCount)
	assert.Equal(t, domain.LikeID(likeID), view.Questions[0].LikeID)
	assert.Equal(t, "Ann", view.Questions[0].Author.Name)

	// анониму likeId не виден
	view = decodeBody[domain.RoomView](t, api.do("GET", "/rooms/"+roomID, "", nil))
	assert.Empty(t, view.Questions[0].LikeID)

	assert.Equal(t, http.StatusNoContent, api.do("POST", "/rooms/"+roomID+"/questions/"+qid+"/answer", mod, nil).Code)
	assert.Equal(t, http.StatusNoContent, api.do("POST", "/rooms/"+roomID+"/questions/"+qid+"/highlight", mod, nil).Code)
	assert.Equal(t, http.StatusNoContent, api.do("DELETE", "/rooms/"+roomID+"/questions/"+qid+"/likes/"+likeID, ann, nil).Code)

	view = decodeBody[domain.RoomView](t, api.do("GET", "/rooms/"+roomID, ann, nil))
	assert.True(t, view.Questions[0].IsAnswered)
	assert.True(t, view.Questions[0].IsHighlighted)
	assert.Equal(t, 0, view.Questions[0].LikedCount)

	assert.Equal(t, http.StatusPreconditionRequired, api.do("DELETE", "/rooms/"+roomID+"/questions/"+qid, mod, nil).Code)
	assert.Equal(t, http.StatusNoContent, api.do("DELETE", "/rooms/"+roomID+"/questions/"+qid+"?confirm=true", mod, nil).Code)

	rec = api.do("GET", "/rooms/"+roomID+"/admin", mod, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[AdminStatusResponse](t, rec).Status)

	assert.Equal(t, http.StatusNoContent, api.do("POST", "/rooms/"+roomID+"/close", mod, nil).Code)

	rec = api.do("GET", "/rooms/"+roomID+"/admin", mod, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "closed", decodeBody[AdminStatusResponse](t, rec).Status)

	assert.Equal(t, http.StatusConflict, api.do("GET", "/rooms/"+roomID+"/join", "", nil).Code)

	view = decodeBody[domain.RoomView](t, api.do("GET", "/rooms/"+roomID, "", nil))
	assert.True(t, view.Closed)
	assert.Empty(t, view.Questions)
}

func TestBlankAndAnonymous(t *testing.T) {
	api := newTestAPI(t)
	ann := api.token(domain.Viewer{ID: "ann"})

	assert.Equal(t, http.StatusNoContent, api.do("POST", "/rooms", ann, CreateRoomRequest{Title: "  "}).Code)
	assert.Equal(t, http.StatusUnauthorized, api.do("POST", "/rooms", "", CreateRoomRequest{Title: "Demo"}).Code)
	assert.Equal(t, http.StatusNoContent, api.do("POST", "/rooms/r1/questions", ann, SubmitQuestionRequest{Content: " "}).Code)
	assert.Equal(t, http.StatusUnauthorized, api.do("POST", "/rooms/r1/questions", "", SubmitQuestionRequest{Content: "Q"}).Code)
	assert.Equal(t, http.StatusUnauthorized, api.do("POST", "/rooms/r1/questions/q1/likes", "", nil).Code)
}

func TestAuthRejectsBadTokens(t *testing.T) {
	api := newTestAPI(t)

	assert.Equal(t, http.StatusUnauthorized, api.do("GET", "/rooms/r1", "garbage", nil).Code)

	req := httptest.NewRequest("GET", "/rooms/r1", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNotFoundAndBadJSON(t *testing.T) {
	api := newTestAPI(t)

	assert.Equal(t, http.StatusNotFound, api.do("GET", "/rooms/missing", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do("GET", "/rooms/missing/join", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do("GET", "/rooms/missing/admin", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do("POST", "/rooms/missing/close", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do("POST", "/rooms/missing/questions/q1/answer", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do("GET", "/rooms/missing", "", nil).Code, "close must not create the room")

	req := httptest.NewRequest("POST", "/rooms", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do("GET", "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
