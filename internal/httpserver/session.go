package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"medusa-storefront/internal/session"
)

const sessionCtxKey = "storefront.session"

// sessionMiddleware resumes the visitor session from its cookie or starts a new one.
func sessionMiddleware(m *session.Manager, ttl time.Duration, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sess *session.Session
		if id, err := c.Cookie(session.CookieName); err == nil {
			sess, _ = m.Open(id)
		}
		if sess == nil {
			sess = m.New()
		}
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     session.CookieName,
			Value:    sess.ID(),
			Path:     "/",
			MaxAge:   int(ttl.Seconds()),
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
		c.Set(sessionCtxKey, sess)
		c.Next()
	}
}

func currentSession(c *gin.Context) *session.Session {
	return c.MustGet(sessionCtxKey).(*session.Session)
}
