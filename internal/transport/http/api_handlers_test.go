package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeJWT(secret string, userID int64, name string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"user_id":  userID,
		"username": name,
		"exp":      time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func doJSON(t *testing.T, e *testEnv, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	e.ts.Config.Handler.ServeHTTP(resp, req)
	return resp
}

func login(t *testing.T, e *testEnv, username string) AuthResponse {
	t.Helper()
	resp := doJSON(t, e, http.MethodPost, "/api/login", "", LoginRequest{Username: username, Password: "secret1"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var auth AuthResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &auth))
	return auth
}

func TestRegisterAndLogin(t *testing.T) {
	e := startTestServer(t, nil)

	resp := doJSON(t, e, http.MethodPost, "/api/register", "", RegisterRequest{Username: "erin", Password: "secret1", Avatar: "lucy"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	resp = doJSON(t, e, http.MethodPost, "/api/register", "", RegisterRequest{Username: "erin", Password: "secret1"})
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = doJSON(t, e, http.MethodPost, "/api/register", "", RegisterRequest{Username: "frank", Password: "secret1", Avatar: "dragon"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	auth := login(t, e, "erin")
	assert.NotEmpty(t, auth.Token)
	assert.Equal(t, "erin", auth.Username)

	resp = doJSON(t, e, http.MethodPost, "/api/login", "", LoginRequest{Username: "erin", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestMeRequiresValidToken(t *testing.T) {
	e := startTestServer(t, nil)
	e.register(t, "carol")
	auth := login(t, e, "carol")

	resp := doJSON(t, e, http.MethodGet, "/api/me", auth.Token, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var me UserResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &me))
	assert.Equal(t, "carol", me.Username)
	assert.Equal(t, "adam", me.Avatar)
	assert.Equal(t, "SYSTEM", me.FlowType)

	resp = doJSON(t, e, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	forged, err := makeJWT("other-secret", me.ID, "carol", time.Minute)
	require.NoError(t, err)
	resp = doJSON(t, e, http.MethodGet, "/api/me", forged, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	expired, err := makeJWT(testSecret, me.ID, "carol", -time.Minute)
	require.NoError(t, err)
	resp = doJSON(t, e, http.MethodGet, "/api/me", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestUpdateFlowType(t *testing.T) {
	e := startTestServer(t, nil)
	e.register(t, "carol")
	auth := login(t, e, "carol")

	resp := doJSON(t, e, http.MethodPut, "/api/me/flow-type", auth.Token, FlowTypeRequest{FlowType: "NPC"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	u, err := e.store.GetUserByUsername(context.Background(), "carol")
	require.NoError(t, err)
	assert.Equal(t, "NPC", u.FlowType)

	resp = doJSON(t, e, http.MethodPut, "/api/me/flow-type", auth.Token, FlowTypeRequest{FlowType: "LOUD"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCreateAndListRooms(t *testing.T) {
	e := startTestServer(t, nil)

	resp := doJSON(t, e, http.MethodPost, "/api/rooms", "", CreateRoomRequest{Name: "Study Hall", Description: "quiet", Password: "pw"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var created RoomResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &created))
	assert.Equal(t, "Study Hall", created.Name)
	assert.True(t, created.HasPassword)

	resp = doJSON(t, e, http.MethodPost, "/api/rooms", "", map[string]string{"description": "no name"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = doJSON(t, e, http.MethodGet, "/api/rooms", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var list struct {
		Rooms []RoomResponse `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	require.Len(t, list.Rooms, 2)
	assert.Equal(t, "SkyOffice", list.Rooms[0].Name)
	assert.Equal(t, created.ID, list.Rooms[1].ID)
}
