package api

import (
	"net/http"
	"strings"

	"github.com/atriumhq/atrium/pkg/httputil"
	"github.com/atriumhq/atrium/pkg/middleware"
)

// handleExchange exchanges an externally issued identity token, presented
// as the Authorization bearer token, for a freshly minted session token.
func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	identityToken := bearerToken(r)

	result, err := s.exchange.Exchange(r.Context(), identityToken)
	if err != nil {
		s.countExchange("failure")
		middleware.WriteAuthError(w, err)
		return
	}

	s.countExchange("success")
	httputil.WriteSuccess(w, result)
}

// handleRefresh mints a new session token from the identity token plus the
// prior session token. This is the only path by which a client picks up
// roles granted after its current token was minted.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	identityToken := bearerToken(r)
	sessionToken := r.Header.Get(middleware.SessionTokenHeader)

	result, err := s.exchange.Refresh(r.Context(), identityToken, sessionToken)
	if err != nil {
		s.countRefresh("failure")
		middleware.WriteAuthError(w, err)
		return
	}

	s.countRefresh("success")
	httputil.WriteSuccess(w, result)
}

func (s *Server) countExchange(outcome string) {
	if s.metrics != nil {
		s.metrics.TokenExchangesTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Server) countRefresh(outcome string) {
	if s.metrics != nil {
		s.metrics.TokenRefreshesTotal.WithLabelValues(outcome).Inc()
	}
}

// bearerToken extracts the bearer token from the Authorization header
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
