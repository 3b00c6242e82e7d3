package server

import (
	"net/http"
	"strings"

	"example.com/socialfeed/internal/apperr"
	"example.com/socialfeed/internal/blob"
	"example.com/socialfeed/internal/middleware"
	"example.com/socialfeed/internal/models"
	"github.com/gorilla/mux"
)

// --- Auth & account handlers ---

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type profileRequest struct {
	Name *string `json:"name" validate:"omitempty,max=50"`
	Bio  *string `json:"bio" validate:"omitempty,max=500"`
}

type authResponse struct {
	User  models.Account `json:"user"`
	Token string         `json:"token"`
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

// registerHandler creates an account and returns it with a token.
// Expects JSON body: {"name": "...", "email": "...", "password": "..."}
func (s *Server) registerHandler(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, "http/auth", err)
		return
	}
	acc, token, err := s.auth.Register(r.Context(), body.Name, body.Email, body.Password)
	if err != nil {
		writeError(w, "http/auth", err)
		return
	}
	writeData(w, http.StatusCreated, authResponse{User: acc, Token: token})
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, "http/auth", err)
		return
	}
	acc, token, err := s.auth.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		writeError(w, "http/auth", err)
		return
	}
	blob.ResolveAccount(s.blobs, &acc)
	writeData(w, http.StatusOK, authResponse{User: acc, Token: token})
}

func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	acc, err := s.dir.GetAccount(r.Context(), userID)
	if err != nil {
		writeError(w, "http/auth", err)
		return
	}
	writeData(w, http.StatusOK, acc)
}

// listUsersHandler lists accounts in registration order.
// Query parameters: ?q=substring of name or email
func (s *Server) listUsersHandler(w http.ResponseWriter, r *http.Request) {
	accs, err := s.dir.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, "http/users", err)
		return
	}
	writeList(w, accs)
}

func (s *Server) getUserHandler(w http.ResponseWriter, r *http.Request) {
	acc, err := s.dir.GetAccount(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, "http/users", err)
		return
	}
	writeData(w, http.StatusOK, acc)
}

// updateProfileHandler accepts JSON {"name","bio"} or a multipart form with
// the same fields and an optional "avatar" image.
func (s *Server) updateProfileHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)

	var body profileRequest
	var avatarRef string
	if isMultipart(r) {
		form, err := s.parseForm(w, r)
		if err != nil {
			writeError(w, "http/users", err)
			return
		}
		if v, ok := form.Value["name"]; ok {
			body.Name = &v[0]
		}
		if v, ok := form.Value["bio"]; ok {
			body.Bio = &v[0]
		}
		if err := validateStruct(body); err != nil {
			writeError(w, "http/users", err)
			return
		}
		if files := form.File["avatar"]; len(files) > 0 {
			avatarRef, err = blob.SaveImage(ctx, s.blobs, "avatars", userID, files[0], s.opts.MaxUploadBytes)
			if err != nil {
				writeError(w, "http/users", err)
				return
			}
		}
	} else if err := decodeJSON(r, &body); err != nil {
		writeError(w, "http/users", err)
		return
	}

	upd := models.ProfileUpdate{Name: body.Name, Bio: body.Bio}
	if avatarRef != "" {
		upd.AvatarRef = &avatarRef
	}
	acc, err := s.dir.UpdateProfile(ctx, userID, upd)
	if err != nil {
		_ = blob.Release(ctx, s.blobs, avatarRef)
		writeError(w, "http/users", err)
		return
	}
	writeData(w, http.StatusOK, acc)
}

// followHandler makes the caller follow {id} and returns the caller's following list.
func (s *Server) followHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	targetID := mux.Vars(r)["id"]

	acc, err := s.dir.Follow(r.Context(), userID, targetID)
	if err != nil {
		writeError(w, "http/follow", err)
		return
	}
	s.events.Emit(r.Context(), models.Activity{
		Type: models.ActivityAccountFollowed, ActorID: userID, TargetID: targetID,
	})
	writeData(w, http.StatusOK, acc.Following)
}

func (s *Server) unfollowHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	acc, err := s.dir.Unfollow(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, "http/follow", err)
		return
	}
	writeData(w, http.StatusOK, acc.Following)
}

const defaultNotificationLimit = 50

// notificationsHandler lists the caller's notifications, newest first.
// Query parameters: ?limit=50 (max 200)
func (s *Server) notificationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	limit, err := queryLimit(r, defaultNotificationLimit, 200)
	if err != nil {
		writeError(w, "http/notifications", err)
		return
	}
	list, err := s.store.GetNotifications(r.Context(), userID, limit)
	if err != nil {
		writeError(w, "http/notifications", err)
		return
	}
	writeList(w, list)
}

func trimmed(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

var errBadLimit = apperr.New(apperr.Validation, "limit must be a positive number")
