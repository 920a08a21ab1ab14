// Package fakevendor runs in-process imitations of the ClubOS and ClubHub
// login flows for tests. Each fake counts the requests it receives so
// tests can assert how many logins and probes happened.
package fakevendor

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

// ClubOS paths served by the fake.
const (
	ClubOSLoginPage  = "/action/Login/view"
	ClubOSLoginPost  = "/action/Login"
	ClubOSDashboard  = "/action/Dashboard/view"
	ClubOSClubSelect = "/action/Club/select/view"
	ClubOSClubChoose = "/action/Club/choose"
)

// ClubOS imitates the ClubOS web login. Configure the exported knobs
// before the first request.
type ClubOS struct {
	Server *httptest.Server

	Username   string
	Password   string
	SourcePage string
	FP         string
	SessionID  string
	UserID     string

	DelegatedUserID string
	AccessToken     string
	ClubID          string
	LocationID      string

	// ClubSelection inserts the club selection interstitial after login.
	ClubSelection bool
	// OmitSessionCookie answers a good login with 200 and no JSESSIONID.
	OmitSessionCookie bool
	// LoginPageStatus overrides the login page status when non-zero.
	LoginPageStatus int
	// LoginDelay is slept inside every login POST.
	LoginDelay time.Duration

	LoginPageGets   atomic.Int32
	LoginPosts      atomic.Int32
	DashboardGets   atomic.Int32
	ClubSelectPosts atomic.Int32

	mu         sync.Mutex
	statuses   []int
	postTimes  []time.Time
	lastForm   url.Values
	lastHeader http.Header
	dead       map[string]bool
	servePage  bool
}

// NewClubOS starts a fake with the example account svc_user/svc_pass.
func NewClubOS() *ClubOS {
	f := &ClubOS{
		Username:   "svc_user",
		Password:   "svc_pass",
		SourcePage: "abc",
		FP:         "xyz",
		SessionID:  "sess123",
		UserID:     "999",
		ClubID:     "1156",
		LocationID: "3586",
		dead:       map[string]bool{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+ClubOSLoginPage, f.loginPage)
	mux.HandleFunc("POST "+ClubOSLoginPost, f.loginPost)
	mux.HandleFunc("GET "+ClubOSDashboard, f.dashboard)
	mux.HandleFunc("GET "+ClubOSClubSelect, f.clubSelectPage)
	mux.HandleFunc("POST "+ClubOSClubChoose, f.clubChoose)
	f.Server = httptest.NewServer(mux)
	return f
}

// URL is the base URL of the fake.
func (f *ClubOS) URL() string { return f.Server.URL }

// Close stops the server.
func (f *ClubOS) Close() { f.Server.Close() }

// QueueLoginStatus makes the next login POSTs answer with the given
// statuses before the normal flow resumes.
func (f *ClubOS) QueueLoginStatus(codes ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, codes...)
}

// Expire makes the vendor forget a session id; the dashboard then
// redirects it to the login page.
func (f *ClubOS) Expire(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dead[sessionID] = true
}

// ServeLoginAt200 makes the dashboard answer expired sessions with the
// login form at 200 instead of a redirect.
func (f *ClubOS) ServeLoginAt200() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.servePage = true
}

// PostTimes returns when each login POST arrived.
func (f *ClubOS) PostTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.postTimes...)
}

// LastForm returns the body of the latest login POST.
func (f *ClubOS) LastForm() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastForm
}

// LastHeader returns the headers of the latest login POST.
func (f *ClubOS) LastHeader() http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastHeader
}

func (f *ClubOS) loginHTML() string {
	return fmt.Sprintf(`<!DOCTYPE html><html><body>
<form action="%s" method="post">
  <input type="text" name="username">
  <input type="password" name="password">
  <input type="hidden" name="_sourcePage" value="%s">
  <input type="hidden" name="__fp" value="%s">
  <input type="submit" name="login" value="Submit">
</form></body></html>`, ClubOSLoginPost, f.SourcePage, f.FP)
}

func (f *ClubOS) loginPage(w http.ResponseWriter, _ *http.Request) {
	f.LoginPageGets.Add(1)
	if f.LoginPageStatus != 0 {
		w.WriteHeader(f.LoginPageStatus)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte(f.loginHTML()))
}

func (f *ClubOS) loginPost(w http.ResponseWriter, r *http.Request) {
	f.LoginPosts.Add(1)
	_ = r.ParseForm()

	f.mu.Lock()
	f.postTimes = append(f.postTimes, time.Now())
	f.lastForm = r.PostForm
	f.lastHeader = r.Header.Clone()
	var status int
	if len(f.statuses) > 0 {
		status, f.statuses = f.statuses[0], f.statuses[1:]
	}
	f.mu.Unlock()

	if f.LoginDelay > 0 {
		time.Sleep(f.LoginDelay)
	}
	if status != 0 {
		w.WriteHeader(status)
		return
	}

	if r.PostForm.Get("username") != f.Username || r.PostForm.Get("password") != f.Password {
		// ClubOS re-renders the login form at 200 on bad credentials.
		_, _ = w.Write([]byte(f.loginHTML()))
		return
	}

	if f.OmitSessionCookie {
		http.SetCookie(w, &http.Cookie{Name: "loggedInUserId", Value: f.UserID, Path: "/"})
		_, _ = w.Write([]byte(f.loginHTML()))
		return
	}

	http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: f.SessionID, Path: "/", HttpOnly: true})
	if f.ClubSelection {
		http.Redirect(w, r, ClubOSClubSelect, http.StatusFound)
		return
	}
	f.setIdentityCookies(w)
	http.Redirect(w, r, ClubOSDashboard, http.StatusFound)
}

func (f *ClubOS) setIdentityCookies(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: "loggedInUserId", Value: f.UserID, Path: "/action"})
	if f.DelegatedUserID != "" {
		http.SetCookie(w, &http.Cookie{Name: "delegatedUserId", Value: f.DelegatedUserID, Path: "/"})
	}
	if f.AccessToken != "" {
		http.SetCookie(w, &http.Cookie{Name: "apiV3AccessToken", Value: f.AccessToken, Path: "/"})
	}
}

func (f *ClubOS) clubSelectPage(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, `<html><body>
<form action="%s" method="post">
  <input type="hidden" name="_sourcePage" value="select-%s">
  <select name="clubLocationId">
    <option value="">Choose a club</option>
    <option value="%s">Home club</option>
    <option value="9999">Other club</option>
  </select>
</form></body></html>`, ClubOSClubChoose, f.SourcePage, f.LocationID)
}

func (f *ClubOS) clubChoose(w http.ResponseWriter, r *http.Request) {
	f.ClubSelectPosts.Add(1)
	_ = r.ParseForm()
	if r.PostForm.Get("clubLocationId") != f.LocationID || r.PostForm.Get("_sourcePage") != "select-"+f.SourcePage {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.setIdentityCookies(w)
	http.Redirect(w, r, ClubOSDashboard, http.StatusFound)
}

func (f *ClubOS) dashboard(w http.ResponseWriter, r *http.Request) {
	f.DashboardGets.Add(1)

	ck, err := r.Cookie("JSESSIONID")
	f.mu.Lock()
	alive := err == nil && ck.Value == f.SessionID && !f.dead[ck.Value]
	servePage := f.servePage
	f.mu.Unlock()

	if !alive {
		if servePage {
			_, _ = w.Write([]byte(f.loginHTML()))
			return
		}
		http.Redirect(w, r, ClubOSLoginPage, http.StatusFound)
		return
	}

	fmt.Fprintf(w, `<html><head><script>
window.clubConfig = { clubId: "%s", clubLocationId: %s };
</script></head><body><h1>Dashboard</h1></body></html>`, f.ClubID, f.LocationID)
}
