package server

import (
	"mime/multipart"
	"net/http"
	"strconv"

	"example.com/socialfeed/internal/apperr"
	"example.com/socialfeed/internal/blob"
	"example.com/socialfeed/internal/middleware"
	"example.com/socialfeed/internal/models"
	"github.com/gorilla/mux"
)

// --- Post, feed and engagement handlers ---

type postRequest struct {
	Text *string `json:"text" validate:"omitempty,max=5000"`
}

type commentRequest struct {
	Text string `json:"text" validate:"max=2000"`
}

func (s *Server) globalFeedHandler(w http.ResponseWriter, r *http.Request) {
	list, err := s.feed.BuildGlobalFeed(r.Context())
	if err != nil {
		writeError(w, "http/posts", err)
		return
	}
	writeList(w, list)
}

// feedHandler returns the caller's posts and those of everyone they follow.
func (s *Server) feedHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	list, err := s.feed.BuildFeed(r.Context(), userID)
	if err != nil {
		writeError(w, "http/feed", err)
		return
	}
	writeList(w, list)
}

func (s *Server) userPostsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := s.feed.BuildAuthorFeed(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, "http/posts", err)
		return
	}
	writeList(w, list)
}

func (s *Server) getPostHandler(w http.ResponseWriter, r *http.Request) {
	p, err := s.feed.GetPost(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, "http/posts", err)
		return
	}
	writeData(w, http.StatusOK, p)
}

// createPostHandler accepts JSON {"text"} or a multipart form with "text"
// and an optional "image".
func (s *Server) createPostHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, _ := middleware.UserIDFromContext(ctx)

	var body postRequest
	var imageRef string
	if isMultipart(r) {
		form, err := s.parseForm(w, r)
		if err != nil {
			writeError(w, "http/posts", err)
			return
		}
		if v, ok := form.Value["text"]; ok {
			body.Text = &v[0]
		}
		if err := validateStruct(body); err != nil {
			writeError(w, "http/posts", err)
			return
		}
		if files := form.File["image"]; len(files) > 0 {
			imageRef, err = blob.SaveImage(ctx, s.blobs, "posts", userID, files[0], s.opts.MaxUploadBytes)
			if err != nil {
				writeError(w, "http/posts", err)
				return
			}
		}
	} else if err := decodeJSON(r, &body); err != nil {
		writeError(w, "http/posts", err)
		return
	}

	p, err := s.posts.Create(ctx, userID, trimmed(body.Text), imageRef)
	if err != nil {
		writeError(w, "http/posts", err)
		return
	}
	s.events.Emit(ctx, models.Activity{Type: models.ActivityPostCreated, ActorID: userID, PostID: p.ID})

	if full, err := s.feed.GetPost(ctx, p.ID); err == nil {
		p = full
	}
	writeData(w, http.StatusCreated, p)
}

func (s *Server) updatePostHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	postID := mux.Vars(r)["id"]

	var body postRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, "http/posts", err)
		return
	}
	if _, err := s.posts.UpdateText(r.Context(), postID, userID, trimmed(body.Text)); err != nil {
		writeError(w, "http/posts", err)
		return
	}
	p, err := s.feed.GetPost(r.Context(), postID)
	if err != nil {
		writeError(w, "http/posts", err)
		return
	}
	writeData(w, http.StatusOK, p)
}

func (s *Server) deletePostHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	postID := mux.Vars(r)["id"]

	if err := s.posts.Delete(r.Context(), postID, userID); err != nil {
		writeError(w, "http/posts", err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"id": postID})
}

// likeHandler returns the post's like set after the change.
func (s *Server) likeHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	postID := mux.Vars(r)["id"]

	likes, err := s.engine.Like(r.Context(), postID, userID)
	if err != nil {
		writeError(w, "http/likes", err)
		return
	}
	s.events.Emit(r.Context(), models.Activity{Type: models.ActivityPostLiked, ActorID: userID, PostID: postID})
	writeData(w, http.StatusOK, likes)
}

func (s *Server) unlikeHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())

	likes, err := s.engine.Unlike(r.Context(), mux.Vars(r)["id"], userID)
	if err != nil {
		writeError(w, "http/likes", err)
		return
	}
	writeData(w, http.StatusOK, likes)
}

// addCommentHandler returns the post's comments, newest first.
// Expects JSON body: {"text": "..."}
func (s *Server) addCommentHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	postID := mux.Vars(r)["id"]

	var body commentRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, "http/comments", err)
		return
	}
	c, comments, err := s.engine.AddComment(r.Context(), postID, userID, body.Text)
	if err != nil {
		writeError(w, "http/comments", err)
		return
	}
	s.events.Emit(r.Context(), models.Activity{
		Type: models.ActivityPostCommented, ActorID: userID, PostID: postID, CommentID: c.ID,
	})
	writeData(w, http.StatusCreated, comments)
}

func (s *Server) deleteCommentHandler(w http.ResponseWriter, r *http.Request) {
	userID, _ := middleware.UserIDFromContext(r.Context())
	vars := mux.Vars(r)

	comments, err := s.engine.DeleteComment(r.Context(), vars["id"], vars["comment_id"], userID)
	if err != nil {
		writeError(w, "http/comments", err)
		return
	}
	writeData(w, http.StatusOK, comments)
}

// parseForm reads a multipart body no larger than the upload limit plus room
// for the text fields.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) (*multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		return nil, apperr.Wrap(apperr.Validation, "invalid multipart form", err)
	}
	return r.MultipartForm, nil
}

func queryLimit(r *http.Request, def, max int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errBadLimit
	}
	if n > max {
		n = max
	}
	return n, nil
}
