package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/ride-share/internal/auth"
	"github.com/example/ride-share/internal/lifecycle"
	"github.com/example/ride-share/internal/models"
	"github.com/example/ride-share/internal/notify"
	"github.com/example/ride-share/internal/storage"
)

type Server struct {
	Engine *lifecycle.Service
	Store  storage.Store
	Auth   *auth.Middleware
	WSReg  *notify.WSRegistry

	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(engine *lifecycle.Service, store storage.Store, authMW *auth.Middleware, wsReg *notify.WSRegistry, logger *slog.Logger) *Server {
	s := &Server{Engine: engine, Store: store, Auth: authMW, WSReg: wsReg, logger: logger, mux: mux.NewRouter()}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	authAPI := s.mux.PathPrefix("/api/auth").Subrouter()
	authAPI.HandleFunc("/register", s.handleRegister).Methods("POST")
	authAPI.HandleFunc("/login", s.handleLogin).Methods("POST")
	authAPI.HandleFunc("/me", s.handleMe).Methods("GET")

	rides := s.mux.PathPrefix("/api/rides").Subrouter()
	rides.Use(s.Auth.Require)
	rides.HandleFunc("", s.handlePostRide).Methods("POST")
	rides.HandleFunc("", s.handleListRides).Methods("GET")
	rides.HandleFunc("/today", s.handleTodayRides).Methods("GET")
	rides.HandleFunc("/my-rides", s.handleMyRides).Methods("GET")
	rides.HandleFunc("/{rideId}/interest", s.handleInterest).Methods("POST")
	rides.HandleFunc("/{rideId}/confirm", s.handleConfirm).Methods("POST")
	rides.HandleFunc("/{rideId}/chat-request", s.handleChatRequest).Methods("POST")
	rides.HandleFunc("/{rideId}", s.handleDeleteRide).Methods("DELETE")

	dashboard := s.mux.PathPrefix("/api/dashboard").Subrouter()
	dashboard.Use(s.Auth.Require)
	dashboard.HandleFunc("", s.handleDashboard).Methods("GET")
	dashboard.HandleFunc("/buddies", s.handleBuddies).Methods("GET")

	ws := s.mux.PathPrefix("/ws").Subrouter()
	ws.Use(s.Auth.Require)
	ws.HandleFunc("", s.handleWS).Methods("GET")

	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// kindStatus maps domain error kinds to HTTP statuses.
func kindStatus(kind models.Kind) int {
	switch kind {
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindForbidden:
		return http.StatusForbidden
	case models.KindAuth:
		return http.StatusUnauthorized
	case models.KindValidation, models.KindSelfInterest, models.KindDuplicateInterest,
		models.KindNoSeats, models.KindAlreadyConfirmed, models.KindRideInactive:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var de *models.Error
	if errors.As(err, &de) {
		writeJSON(w, kindStatus(de.Kind), map[string]string{"message": de.Message, "kind": string(de.Kind)})
		return
	}
	s.logger.Error("request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "server error"})
}

// emptyIfNil keeps listing responses as [] instead of null.
func emptyIfNil(rides []*models.Ride) []*models.Ride {
	if rides == nil {
		return []*models.Ride{}
	}
	return rides
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handlePostRide(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	var body struct {
		From             string   `json:"from"`
		To               string   `json:"to"`
		Date             string   `json:"date"`
		Time             string   `json:"time"`
		TotalSeats       int      `json:"totalSeats"`
		PreferredGenders []string `json:"preferredGenders"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	var date time.Time
	if body.Date != "" {
		var err error
		date, err = time.ParseInLocation("2006-01-02", body.Date, time.Local)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "date must be YYYY-MM-DD"})
			return
		}
	}
	ride, err := s.Engine.PostRide(r.Context(), user.ID, lifecycle.PostRideInput{
		From: body.From, To: body.To, Date: date, Time: body.Time,
		TotalSeats: body.TotalSeats, PreferredGenders: body.PreferredGenders,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "ride posted successfully", "ride": ride})
}

func listFilterFromQuery(r *http.Request) lifecycle.ListFilter {
	q := r.URL.Query()
	f := lifecycle.ListFilter{
		From:     q.Get("from"),
		To:       q.Get("to"),
		Gender:   q.Get("gender"),
		TimeFrom: q.Get("timeFrom"),
		TimeTo:   q.Get("timeTo"),
	}
	if d := q.Get("date"); d != "" {
		if t, err := time.ParseInLocation("2006-01-02", d, time.Local); err == nil {
			f.Date = &t
		}
	}
	return f
}

func (s *Server) handleListRides(w http.ResponseWriter, r *http.Request) {
	rides, err := s.Engine.ListRides(r.Context(), listFilterFromQuery(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rides": emptyIfNil(rides)})
}

func (s *Server) handleTodayRides(w http.ResponseWriter, r *http.Request) {
	rides, err := s.Engine.ListTodayRides(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rides": emptyIfNil(rides)})
}

func (s *Server) handleMyRides(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	rides, err := s.Engine.ListMyRides(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rides": emptyIfNil(rides)})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	rides, err := s.Engine.ListDashboardRides(r.Context(), user.ID, listFilterFromQuery(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rides": emptyIfNil(rides)})
}

func (s *Server) handleBuddies(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	buddies, err := s.Engine.ListTravelBuddies(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"travelBuddies": buddies})
}

func (s *Server) handleInterest(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	rideID := mux.Vars(r)["rideId"]
	if err := s.Engine.ExpressInterest(r.Context(), rideID, user.ID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "interest expressed, poster has been notified"})
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	rideID := mux.Vars(r)["rideId"]
	var body struct {
		InterestedUserID string `json:"interestedUserId"`
		Action           string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	ride, err := s.Engine.ConfirmOrReject(r.Context(), rideID, user.ID, body.InterestedUserID, body.Action)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if body.Action == lifecycle.ActionConfirm {
		writeJSON(w, http.StatusOK, map[string]any{"message": "user confirmed", "availableSeats": ride.AvailableSeats})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "user rejected"})
}

func (s *Server) handleChatRequest(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	rideID := mux.Vars(r)["rideId"]
	posterPhone, err := s.Engine.ChatRequest(r.Context(), rideID, user.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "chat request sent to poster", "posterPhone": posterPhone})
}

func (s *Server) handleDeleteRide(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	rideID := mux.Vars(r)["rideId"]
	if err := s.Engine.DeleteRide(r.Context(), rideID, user.ID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "ride deleted successfully"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.Auth.BearerIdentity(w, r)
	if !ok {
		return
	}
	var body struct {
		Name     string `json:"name"`
		Gender   string `json:"gender"`
		FCMToken string `json:"fcmToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	if body.Name == "" || body.Gender == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "name and gender are required"})
		return
	}

	existing, err := s.Store.GetUserByAuthUID(r.Context(), identity.UID)
	if err == nil {
		if body.FCMToken != "" {
			existing.FCMToken = body.FCMToken
			existing.UpdatedAt = time.Now()
			if err := s.Store.SaveUser(r.Context(), existing); err != nil {
				s.writeError(w, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "user already registered", "user": existing})
		return
	}
	if !errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, err)
		return
	}

	if identity.Phone == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "phone number not found in token"})
		return
	}
	now := time.Now()
	user := &models.User{
		ID:        uuid.NewString(),
		AuthUID:   identity.UID,
		Phone:     identity.Phone,
		Email:     identity.Email,
		Name:      body.Name,
		Gender:    body.Gender,
		FCMToken:  body.FCMToken,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Store.SaveUser(r.Context(), user); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "user registered successfully", "user": user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.Auth.BearerIdentity(w, r)
	if !ok {
		return
	}
	user, err := s.Store.GetUserByAuthUID(r.Context(), identity.UID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "user not found, please register first"})
		return
	}
	var body struct {
		FCMToken string `json:"fcmToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.FCMToken != "" {
		user.FCMToken = body.FCMToken
		user.UpdatedAt = time.Now()
		if err := s.Store.SaveUser(r.Context(), user); err != nil {
			s.writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "login successful", "user": user})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := s.Auth.BearerIdentity(w, r)
	if !ok {
		return
	}
	user, err := s.Store.GetUserByAuthUID(r.Context(), identity.UID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "user not found"})
		return
	}
	buddies, err := s.Engine.ListTravelBuddies(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "travelBuddies": buddies})
}

var upgrader = websocket.Upgrader{}

// handleWS attaches the authenticated user's socket to the notification
// registry so lifecycle events can be delivered in-app.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own error response
		s.logger.Warn("ws upgrade failed", "user_id", user.ID, "error", err)
		return
	}
	s.WSReg.Add(user.ID, conn)
	go func() {
		defer s.WSReg.Remove(user.ID)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
