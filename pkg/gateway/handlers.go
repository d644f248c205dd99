package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/procfs"

	"github.com/feltstack/feltstack/pkg/auth"
	"github.com/feltstack/feltstack/pkg/security"
	"github.com/feltstack/feltstack/pkg/table"
	"github.com/feltstack/feltstack/pkg/wallet"
)

// AppState is the shared dependency set every handler closes over, the way
// the reference server threads one AppState through its Axum router.
type AppState struct {
	Auth       *auth.Manager
	Tables     *table.Registry
	Wallet     *wallet.Manager
	Collusion  *security.Detector
	LoginRL    *RateLimiter
	RegisterRL *RateLimiter
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

type registerBody struct {
	Username    string  `json:"username"`
	Password    string  `json:"password"`
	DisplayName string  `json:"display_name"`
	Email       *string `json:"email,omitempty"`
}

func handleRegister(state *AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if res := state.RegisterRL.Check(ip); !res.Allowed {
			writeError(w, http.StatusTooManyRequests, "too many registration attempts, try again later")
			return
		}

		var body registerBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}

		user, err := state.Auth.Register(r.Context(), auth.RegisterRequest{
			Username:    body.Username,
			Password:    body.Password,
			DisplayName: body.DisplayName,
			Email:       body.Email,
		})
		if err != nil {
			state.RegisterRL.RecordFailure(ip)
			writeRegisterError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, user)
	}
}

func writeRegisterError(w http.ResponseWriter, err error) {
	var usernameTaken *auth.UsernameTakenError
	var emailTaken *auth.EmailTakenError
	var invalidUsername *auth.InvalidUsernameError
	var weakPassword *auth.WeakPasswordError
	switch {
	case errors.As(err, &usernameTaken), errors.As(err, &emailTaken):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &invalidUsername), errors.As(err, &weakPassword):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "registration failed")
	}
}

type loginBody struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	TOTPCode *string `json:"totp_code,omitempty"`
}

func handleLogin(state *AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body loginBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}

		if res := state.LoginRL.Check(body.Username); !res.Allowed {
			writeError(w, http.StatusTooManyRequests, "too many login attempts, try again later")
			return
		}

		fingerprint := r.Header.Get("User-Agent")
		user, tokens, err := state.Auth.Login(r.Context(), auth.LoginRequest{
			Username: body.Username,
			Password: body.Password,
			TOTPCode: body.TOTPCode,
		}, fingerprint)
		if err != nil {
			state.LoginRL.RecordFailure(body.Username)
			writeLoginError(w, err)
			return
		}
		state.LoginRL.Reset(body.Username)
		state.Collusion.RegisterUserIP(user.ID, r.RemoteAddr)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"user":   user,
			"tokens": tokens,
		})
	}
}

func writeLoginError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, auth.ErrInvalidPassword):
		writeError(w, http.StatusUnauthorized, "invalid username or password")
	case errors.Is(err, auth.ErrTwoFactorRequired):
		writeError(w, http.StatusUnauthorized, "two-factor code required")
	case errors.Is(err, auth.ErrInvalidTwoFactorCode):
		writeError(w, http.StatusUnauthorized, "invalid two-factor code")
	default:
		writeError(w, http.StatusInternalServerError, "login failed")
	}
}

type refreshBody struct {
	RefreshToken string `json:"refresh_token"`
}

func handleRefresh(state *AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body refreshBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		fingerprint := r.Header.Get("User-Agent")
		tokens, err := state.Auth.RefreshToken(r.Context(), body.RefreshToken, fingerprint)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid or expired refresh token")
			return
		}
		writeJSON(w, http.StatusOK, tokens)
	}
}

func handleLogout(state *AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body refreshBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		if err := state.Auth.Logout(r.Context(), body.RefreshToken); err != nil {
			writeError(w, http.StatusInternalServerError, "logout failed")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListTables(state *AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actors := state.Tables.List()
		views := make([]*table.StateView, 0, len(actors))
		for _, a := range actors {
			sv, err := a.GetState(r.Context())
			if err != nil {
				continue
			}
			views = append(views, sv)
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func handleTableState(state *AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := tableFromPath(state, r)
		if err != nil {
			writeError(w, http.StatusNotFound, "table not found")
			return
		}
		sv, err := a.GetState(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read table state")
			return
		}
		writeJSON(w, http.StatusOK, sv)
	}
}

type joinBody struct {
	BuyInAmount int64  `json:"buy_in_amount"`
	Passphrase  string `json:"passphrase,omitempty"`
}

func handleJoinTable(state *AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		a, err := tableFromPath(state, r)
		if err != nil {
			writeError(w, http.StatusNotFound, "table not found")
			return
		}
		var body joinBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		username := strconv.FormatInt(userID, 10)
		if err := a.Join(r.Context(), userID, username, body.BuyInAmount, body.Passphrase); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		state.Collusion.TrackJoin(r.Context(), a.ID(), userID)
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleLeaveTable(state *AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		a, err := tableFromPath(state, r)
		if err != nil {
			writeError(w, http.StatusNotFound, "table not found")
			return
		}
		if err := a.Leave(r.Context(), userID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		state.Collusion.TrackLeave(a.ID(), userID)
		w.WriteHeader(http.StatusNoContent)
	}
}

type actionBody struct {
	Action string `json:"action"`
	Amount int64  `json:"amount,omitempty"`
}

func handleTakeAction(state *AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		a, err := tableFromPath(state, r)
		if err != nil {
			writeError(w, http.StatusNotFound, "table not found")
			return
		}
		var body actionBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		if err := a.TakeAction(r.Context(), userID, table.Action(body.Action), body.Amount); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type voteBody struct {
	Vote         string `json:"vote"`
	TargetUserID int64  `json:"target_user_id,omitempty"`
}

func handleVote(state *AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userIDFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		a, err := tableFromPath(state, r)
		if err != nil {
			writeError(w, http.StatusNotFound, "table not found")
			return
		}
		var body voteBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
		var kind table.VoteKind
		switch body.Vote {
		case "kick":
			kind = table.VoteKick
		case "reset":
			kind = table.VoteReset
		default:
			writeError(w, http.StatusBadRequest, "vote must be \"kick\" or \"reset\"")
			return
		}
		if err := a.Vote(r.Context(), userID, kind, body.TargetUserID); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func tableFromPath(state *AppState, r *http.Request) (*table.Actor, error) {
	idStr := chi.URLParam(r, "tableID")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return nil, table.ErrTableNotFound
	}
	return state.Tables.Get(id)
}

// handleHealth reports liveness plus a resident-memory and open-fd snapshot
// pulled straight from /proc, so an operator can tell a wedged process from a
// merely busy one without shelling in.
func handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"status": "ok"}

	if proc, err := procfs.NewProc(os.Getpid()); err == nil {
		if stat, err := proc.Stat(); err == nil {
			resp["resident_memory_bytes"] = stat.ResidentMemory()
		}
		if fds, err := proc.FileDescriptorsLen(); err == nil {
			resp["open_fds"] = fds
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
