package fakevendor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ClubHubLoginPath is the ClubHub JSON login endpoint.
const ClubHubLoginPath = "/api/login"

// ClubHub imitates the ClubHub mobile API login.
type ClubHub struct {
	Server *httptest.Server

	Email    string
	Password string
	// TokenTTL is the lifetime of issued access tokens.
	TokenTTL time.Duration
	// OmitToken answers a good login with 200 and no accessToken.
	OmitToken bool

	LoginPosts atomic.Int32

	mu         sync.Mutex
	statuses   []int
	lastHeader http.Header
}

// NewClubHub starts a fake with the account club@example.com/hub_pass.
func NewClubHub() *ClubHub {
	f := &ClubHub{
		Email:    "club@example.com",
		Password: "hub_pass",
		TokenTTL: time.Hour,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+ClubHubLoginPath, f.login)
	f.Server = httptest.NewServer(mux)
	return f
}

func (f *ClubHub) URL() string { return f.Server.URL }
func (f *ClubHub) Close()      { f.Server.Close() }

// QueueLoginStatus makes the next logins answer with the given statuses.
func (f *ClubHub) QueueLoginStatus(codes ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, codes...)
}

// LastHeader returns the headers of the latest login.
func (f *ClubHub) LastHeader() http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastHeader
}

// IssueToken signs an access token the way the fake's login does.
func (f *ClubHub) IssueToken(subject string, ttl time.Duration) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	})
	s, err := tok.SignedString([]byte("fake-clubhub-signing-key"))
	if err != nil {
		panic(err)
	}
	return s
}

func (f *ClubHub) login(w http.ResponseWriter, r *http.Request) {
	f.LoginPosts.Add(1)

	f.mu.Lock()
	f.lastHeader = r.Header.Clone()
	var status int
	if len(f.statuses) > 0 {
		status, f.statuses = f.statuses[0], f.statuses[1:]
	}
	f.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}

	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if body.Username != f.Email || body.Password != f.Password {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "invalid credentials"})
		return
	}

	resp := map[string]any{"userId": 4242}
	if !f.OmitToken {
		resp["accessToken"] = f.IssueToken(body.Username, f.TokenTTL)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
