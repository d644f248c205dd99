package gateway

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/feltstack/feltstack/pkg/auth"
	"github.com/feltstack/feltstack/pkg/security"
	"github.com/feltstack/feltstack/pkg/table"
	"github.com/feltstack/feltstack/pkg/wallet"
)

// NewState builds the shared dependency set handlers close over, with the
// rate limiters the router needs for login and registration throttling.
func NewState(authMgr *auth.Manager, tables *table.Registry, walletMgr *wallet.Manager, collusion *security.Detector) *AppState {
	return &AppState{
		Auth:       authMgr,
		Tables:     tables,
		Wallet:     walletMgr,
		Collusion:  collusion,
		LoginRL:    NewRateLimiter(LoginLimit),
		RegisterRL: NewRateLimiter(RegisterLimit),
	}
}

// NewRouter builds the gateway's HTTP router: public auth/table-listing and
// websocket routes, and a protected group requiring a bearer access token,
// mirroring the reference server's route split between public and
// auth_middleware-guarded endpoints.
func NewRouter(state *AppState) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(corsPermissive)

	r.Get("/health", handleHealth)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", handleRegister(state))
		r.Post("/login", handleLogin(state))
		r.Post("/refresh", handleRefresh(state))

		r.Group(func(r chi.Router) {
			r.Use(requireAuth(state.Auth))
			r.Post("/logout", handleLogout(state))
		})
	})

	r.Get("/api/tables", handleListTables(state))

	r.Route("/api/tables/{tableID}", func(r chi.Router) {
		r.Get("/", handleTableState(state))

		r.Group(func(r chi.Router) {
			r.Use(requireAuth(state.Auth))
			r.Post("/join", handleJoinTable(state))
			r.Post("/leave", handleLeaveTable(state))
			r.Post("/action", handleTakeAction(state))
			r.Post("/vote", handleVote(state))
		})
	})

	r.Get("/ws/{tableID}", handleWebSocket(state))

	return r
}
