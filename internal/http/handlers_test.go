package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/ride-share/internal/auth"
	"github.com/example/ride-share/internal/lifecycle"
	"github.com/example/ride-share/internal/models"
	"github.com/example/ride-share/internal/notify"
	"github.com/example/ride-share/internal/storage"
)

type noopSender struct{}

func (noopSender) Send(context.Context, notify.Destination, string, string, map[string]string) error {
	return nil
}

type fixture struct {
	srv      *Server
	store    *storage.MemoryStore
	verifier *auth.JWTVerifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := storage.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := &lifecycle.Service{
		Store:  st,
		Bridge: notify.NewBridge(noopSender{}, logger),
		Logger: logger,
	}
	verifier := auth.NewJWTVerifier("test-secret", time.Hour)
	authMW := &auth.Middleware{Verifier: verifier, Store: st, Logger: logger}
	srv := NewServer(engine, st, authMW, notify.NewWSRegistry(), logger)
	return &fixture{srv: srv, store: st, verifier: verifier}
}

func (f *fixture) registerUser(t *testing.T, id, phone string) string {
	t.Helper()
	u := &models.User{
		ID: id, AuthUID: "auth-" + id, Phone: phone,
		Name: "User " + id, Gender: "other", FCMToken: "tok-" + id,
	}
	if err := f.store.SaveUser(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return f.token(t, "auth-"+id, phone)
}

func (f *fixture) token(t *testing.T, uid, phone string) string {
	t.Helper()
	tok, err := f.verifier.Generate(uid, phone)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.srv.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
	return out
}

func (f *fixture) postRide(t *testing.T, token string, seats int) string {
	t.Helper()
	rr := f.do(t, "POST", "/api/rides", token, map[string]any{
		"from": "Downtown", "to": "Airport",
		"date": time.Now().AddDate(0, 0, 1).Format("2006-01-02"),
		"time": "09:00", "totalSeats": seats,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("post ride: %d %s", rr.Code, rr.Body.String())
	}
	ride := decode(t, rr)["ride"].(map[string]any)
	return ride["id"].(string)
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t)

	if rr := f.do(t, "GET", "/api/rides", "", nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("no token: got %d", rr.Code)
	}
	if rr := f.do(t, "GET", "/api/rides", "garbage", nil); rr.Code != http.StatusUnauthorized {
		t.Errorf("bad token: got %d", rr.Code)
	}
	// valid token but no registered account
	tok := f.token(t, "auth-ghost", "999")
	if rr := f.do(t, "GET", "/api/rides", tok, nil); rr.Code != http.StatusNotFound {
		t.Errorf("unregistered user: got %d", rr.Code)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, "auth-new", "+15551234")

	rr := f.do(t, "POST", "/api/auth/login", tok, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("login before register: got %d", rr.Code)
	}

	rr = f.do(t, "POST", "/api/auth/register", tok, map[string]any{"name": "Ana", "gender": "female", "fcmToken": "tok-1"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rr.Code, rr.Body.String())
	}
	user := decode(t, rr)["user"].(map[string]any)
	if user["phone"] != "+15551234" || user["name"] != "Ana" {
		t.Fatalf("unexpected user: %v", user)
	}

	// re-register is idempotent and refreshes the push token
	rr = f.do(t, "POST", "/api/auth/register", tok, map[string]any{"name": "Ana", "gender": "female", "fcmToken": "tok-2"})
	if rr.Code != http.StatusOK {
		t.Fatalf("re-register: %d %s", rr.Code, rr.Body.String())
	}

	rr = f.do(t, "POST", "/api/auth/login", tok, map[string]any{"fcmToken": "tok-3"})
	if rr.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rr.Code, rr.Body.String())
	}

	rr = f.do(t, "GET", "/api/auth/me", tok, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("me: %d %s", rr.Code, rr.Body.String())
	}
}

func TestRegisterRequiresPhoneClaim(t *testing.T) {
	f := newFixture(t)
	tok := f.token(t, "auth-nophone", "")

	rr := f.do(t, "POST", "/api/auth/register", tok, map[string]any{"name": "Ana", "gender": "female"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("register without phone claim: got %d", rr.Code)
	}
}

func TestPostAndListRides(t *testing.T) {
	f := newFixture(t)
	tok := f.registerUser(t, "poster", "111")

	rr := f.do(t, "POST", "/api/rides", tok, map[string]any{"from": "Downtown"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("incomplete ride: got %d", rr.Code)
	}
	rr = f.do(t, "POST", "/api/rides", tok, map[string]any{
		"from": "A", "to": "B", "date": "not-a-date", "time": "09:00", "totalSeats": 1,
	})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("bad date: got %d", rr.Code)
	}

	f.postRide(t, tok, 2)

	rr = f.do(t, "GET", "/api/rides", tok, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: %d", rr.Code)
	}
	rides := decode(t, rr)["rides"].([]any)
	if len(rides) != 1 {
		t.Fatalf("expected 1 ride, got %d", len(rides))
	}

	rr = f.do(t, "GET", "/api/rides/my-rides", tok, nil)
	if rr.Code != http.StatusOK || len(decode(t, rr)["rides"].([]any)) != 1 {
		t.Fatalf("my-rides: %d %s", rr.Code, rr.Body.String())
	}
}

func TestDashboardExcludesOwnRides(t *testing.T) {
	f := newFixture(t)
	posterTok := f.registerUser(t, "poster", "111")
	riderTok := f.registerUser(t, "rider", "222")
	f.postRide(t, posterTok, 1)

	rr := f.do(t, "GET", "/api/dashboard", posterTok, nil)
	if got := decode(t, rr)["rides"].([]any); len(got) != 0 {
		t.Fatalf("poster should not see own ride on dashboard: %v", got)
	}
	rr = f.do(t, "GET", "/api/dashboard", riderTok, nil)
	if got := decode(t, rr)["rides"].([]any); len(got) != 1 {
		t.Fatalf("rider should see the ride: %v", got)
	}
}

func TestInterestAndConfirmFlow(t *testing.T) {
	f := newFixture(t)
	posterTok := f.registerUser(t, "poster", "111")
	riderTok := f.registerUser(t, "rider", "222")
	rideID := f.postRide(t, posterTok, 2)

	// poster cannot express interest in their own ride
	if rr := f.do(t, "POST", "/api/rides/"+rideID+"/interest", posterTok, nil); rr.Code != http.StatusBadRequest {
		t.Errorf("self interest: got %d", rr.Code)
	}

	if rr := f.do(t, "POST", "/api/rides/"+rideID+"/interest", riderTok, nil); rr.Code != http.StatusOK {
		t.Fatalf("interest: %d %s", rr.Code, rr.Body.String())
	}
	if rr := f.do(t, "POST", "/api/rides/"+rideID+"/interest", riderTok, nil); rr.Code != http.StatusBadRequest {
		t.Errorf("duplicate interest: got %d", rr.Code)
	}

	// only the poster decides
	rr := f.do(t, "POST", "/api/rides/"+rideID+"/confirm", riderTok, map[string]any{"interestedUserId": "rider", "action": "confirm"})
	if rr.Code != http.StatusForbidden {
		t.Errorf("non-poster confirm: got %d", rr.Code)
	}

	rr = f.do(t, "POST", "/api/rides/"+rideID+"/confirm", posterTok, map[string]any{"interestedUserId": "rider", "action": "confirm"})
	if rr.Code != http.StatusOK {
		t.Fatalf("confirm: %d %s", rr.Code, rr.Body.String())
	}
	if seats := decode(t, rr)["availableSeats"].(float64); seats != 1 {
		t.Fatalf("expected 1 seat left, got %v", seats)
	}

	rr = f.do(t, "POST", "/api/rides/"+rideID+"/confirm", posterTok, map[string]any{"interestedUserId": "rider", "action": "confirm"})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("double confirm: got %d", rr.Code)
	}

	rr = f.do(t, "GET", "/api/dashboard/buddies", posterTok, nil)
	if rr.Code != http.StatusOK || len(decode(t, rr)["travelBuddies"].([]any)) != 1 {
		t.Fatalf("buddies after confirm: %d %s", rr.Code, rr.Body.String())
	}
}

func TestChatRequestReturnsPosterPhone(t *testing.T) {
	f := newFixture(t)
	posterTok := f.registerUser(t, "poster", "111")
	riderTok := f.registerUser(t, "rider", "222")
	rideID := f.postRide(t, posterTok, 1)

	rr := f.do(t, "POST", "/api/rides/"+rideID+"/chat-request", riderTok, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("chat request: %d %s", rr.Code, rr.Body.String())
	}
	if phone := decode(t, rr)["posterPhone"]; phone != "111" {
		t.Fatalf("expected poster phone, got %v", phone)
	}

	rr = f.do(t, "POST", "/api/rides/nope/chat-request", riderTok, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown ride: got %d", rr.Code)
	}
}

func TestDeleteRide(t *testing.T) {
	f := newFixture(t)
	posterTok := f.registerUser(t, "poster", "111")
	riderTok := f.registerUser(t, "rider", "222")
	rideID := f.postRide(t, posterTok, 1)

	if rr := f.do(t, "DELETE", "/api/rides/"+rideID, riderTok, nil); rr.Code != http.StatusForbidden {
		t.Errorf("non-poster delete: got %d", rr.Code)
	}
	if rr := f.do(t, "DELETE", "/api/rides/"+rideID, posterTok, nil); rr.Code != http.StatusOK {
		t.Fatalf("delete: %d", rr.Code)
	}
	if rr := f.do(t, "GET", "/api/rides", posterTok, nil); len(decode(t, rr)["rides"].([]any)) != 0 {
		t.Fatal("ride still listed after delete")
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, "GET", "/healthz", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("request id not echoed on response")
	}
}
