// Package backendtest provides an in-process fake of the ZeroInbox backend.
package backendtest

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
)

// SessionCookie is the cookie name the fake sets after a successful exchange
const SessionCookie = "zeroinbox_session"

// ExchangeCall is one recorded call to the exchange endpoint
type ExchangeCall struct {
	ServerAuthCode string `json:"serverAuthCode"`
	CodeVerifier   string `json:"codeVerifier,omitempty"`
	ClientID       string `json:"clientId,omitempty"`
	RedirectURI    string `json:"redirectUri,omitempty"`
}

// Reply is a canned response. ContentType defaults to application/json.
type Reply struct {
	Status      int
	Body        string
	ContentType string
}

// Server is a fake backend. Zero replies mean 200 responses with sane bodies.
type Server struct {
	*httptest.Server

	mu             sync.Mutex
	exchangeReply  *Reply
	unreadReply    *Reply
	unreadMessages int
	requireSession bool
	exchanges      []ExchangeCall
	unreadCalls    []string
}

func init() {
	gin.SetMode(gin.TestMode)
}

// New starts a fake backend; it is closed when the test ends
func New(t interface{ Cleanup(func()) }) *Server {
	s := &Server{}

	r := gin.New()
	r.POST("/auth/google/exchange", s.handleExchange)
	r.GET("/mail/unread", s.handleUnread)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// SetExchangeReply overrides the exchange response
func (s *Server) SetExchangeReply(r Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchangeReply = &r
}

// SetUnreadReply overrides the unread response
func (s *Server) SetUnreadReply(r Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unreadReply = &r
}

// SetUnreadMessages sets how many unread messages exist
func (s *Server) SetUnreadMessages(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unreadMessages = n
}

// RequireSession makes the unread endpoint answer 401 without the session cookie
func (s *Server) RequireSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requireSession = true
}

// Exchanges returns the recorded exchange calls
func (s *Server) Exchanges() []ExchangeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ExchangeCall, len(s.exchanges))
	copy(out, s.exchanges)
	return out
}

// UnreadCalls returns the raw query of every unread call
func (s *Server) UnreadCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.unreadCalls))
	copy(out, s.unreadCalls)
	return out
}

func (s *Server) handleExchange(c *gin.Context) {
	var call ExchangeCall
	if err := c.ShouldBindJSON(&call); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	s.mu.Lock()
	s.exchanges = append(s.exchanges, call)
	reply := s.exchangeReply
	s.mu.Unlock()

	if reply != nil {
		write(c, *reply)
		return
	}

	if call.ServerAuthCode == "" {
		c.String(http.StatusBadRequest, "missing serverAuthCode")
		return
	}
	c.SetCookie(SessionCookie, "session-"+call.ServerAuthCode, 3600, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleUnread(c *gin.Context) {
	s.mu.Lock()
	s.unreadCalls = append(s.unreadCalls, c.Request.URL.RawQuery)
	reply := s.unreadReply
	count := s.unreadMessages
	requireSession := s.requireSession
	s.mu.Unlock()

	if reply != nil {
		write(c, *reply)
		return
	}

	if requireSession {
		if _, err := c.Cookie(SessionCookie); err != nil {
			c.String(http.StatusUnauthorized, "not linked")
			return
		}
	}

	limit, err := strconv.Atoi(c.Query("max"))
	if err != nil || limit < 1 {
		c.String(http.StatusBadRequest, "invalid max")
		return
	}
	if count > limit {
		count = limit
	}

	messages := make([]gin.H, count)
	for i := range messages {
		messages[i] = gin.H{"id": strconv.Itoa(i + 1)}
	}
	c.JSON(http.StatusOK, messages)
}

func write(c *gin.Context, r Reply) {
	contentType := r.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	c.Data(status, contentType, []byte(r.Body))
}
