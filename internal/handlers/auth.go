package handlers

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mzaid0/Nestora/internal/logging"
	"github.com/mzaid0/Nestora/internal/services"
	"github.com/mzaid0/Nestora/types"
)

const (
	maxMultipartMemory = 8 << 20
	maxUpdateBodyBytes = services.MaxAvatarSize + 1<<20
	avatarField        = "avatar"
)

// formError is a malformed-form message returned to the client verbatim.
type formError string

func (e formError) Error() string { return string(e) }

const errAvatarTooLarge = formError("Avatar must be 5 MB or smaller")

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

// AuthHandler serves signup, signin, OAuth and profile endpoints.
type AuthHandler struct {
	auth    *services.AuthService
	cookies CookieConfig
	log     logging.Logger
}

func NewAuthHandler(auth *services.AuthService, cookies CookieConfig, log logging.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, cookies: cookies, log: log}
}

// AuthRouter registers auth routes on r. requireSession guards the routes
// that act on the signed-in user.
func AuthRouter(r chi.Router, h *AuthHandler, requireSession func(http.Handler) http.Handler) {
	r.Post("/signup", h.Signup)
	r.Post("/signin", h.Signin)
	r.Post("/google", h.Google)
	r.Post("/signout", h.Signout)

	r.Group(func(r chi.Router) {
		r.Use(requireSession)
		r.Put("/update/{id}", h.Update)
		r.Get("/me", h.Me)
	})
}

type SignupRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type SigninRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type GoogleRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}

type SigninResponse struct {
	Message string     `json:"message"`
	User    types.User `json:"user"`
}

type UpdateResponse struct {
	Message     string     `json:"message"`
	UpdatedUser types.User `json:"updatedUser"`
}

type MeResponse struct {
	User types.User `json:"user"`
}

// Signup creates an account. It does not sign the user in.
//
// @Summary  Create an account
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    request body SignupRequest true "New account"
// @Success  201 {object} MessageResponse
// @Failure  400 {object} MessageResponse
// @Failure  409 {object} MessageResponse
// @Failure  500 {object} MessageResponse
// @Router   /signup [post]
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	_, err := h.auth.Signup(r.Context(), services.SignupInput{
		Username:        req.Username,
		Email:           req.Email,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, MessageResponse{Message: "Signup successful"})
}

// Signin checks credentials and sets the session cookie.
//
// @Summary  Sign in with username and password
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    request body SigninRequest true "Credentials"
// @Success  200 {object} SigninResponse
// @Failure  400 {object} MessageResponse
// @Failure  401 {object} MessageResponse
// @Router   /signin [post]
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.auth.Signin(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	h.setSessionCookie(w, session.Token)
	writeJSON(w, http.StatusOK, SigninResponse{Message: "Signin successful", User: session.User})
}

// Google signs in the user behind a Google identity, creating the account
// on first use.
//
// @Summary  Sign in with Google
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    request body GoogleRequest true "Google profile"
// @Success  200 {object} SigninResponse
// @Failure  400 {object} MessageResponse
// @Failure  409 {object} MessageResponse
// @Router   /google [post]
func (h *AuthHandler) Google(w http.ResponseWriter, r *http.Request) {
	var req GoogleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	session, err := h.auth.OAuthSignin(r.Context(), services.OAuthProfile{
		Name:      req.Name,
		Email:     req.Email,
		AvatarURL: req.Avatar,
	})
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	h.setSessionCookie(w, session.Token)
	writeJSON(w, http.StatusOK, SigninResponse{Message: "Signin successful", User: session.User})
}

// Update changes the username, password or avatar of the signed-in user.
//
// @Summary  Update own profile
// @Tags     auth
// @Accept   multipart/form-data
// @Produce  json
// @Param    id       path     string true  "User ID"
// @Param    username formData string false "New username"
// @Param    password formData string false "New password"
// @Param    avatar   formData file   false "Avatar image, at most 5 MB"
// @Success  200 {object} UpdateResponse
// @Failure  400 {object} MessageResponse
// @Failure  401 {object} MessageResponse
// @Failure  403 {object} MessageResponse
// @Failure  404 {object} MessageResponse
// @Failure  409 {object} MessageResponse
// @Failure  502 {object} MessageResponse
// @Router   /update/{id} [put]
func (h *AuthHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}

	update, err := parseProfileForm(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	user, err := h.auth.UpdateProfile(r.Context(), identity.UserID, chi.URLParam(r, "id"), update)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, UpdateResponse{Message: "User updated successfully", UpdatedUser: user})
}

// Signout clears the session cookie.
//
// @Summary  Sign out
// @Tags     auth
// @Produce  json
// @Success  200 {object} MessageResponse
// @Router   /signout [post]
func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookies.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Signout successful"})
}

// Me returns the signed-in user.
//
// @Summary  Current user
// @Tags     auth
// @Produce  json
// @Success  200 {object} MeResponse
// @Failure  401 {object} MessageResponse
// @Router   /me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication failed")
		return
	}
	writeJSON(w, http.StatusOK, MeResponse{User: identity.User})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookies.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.cookies.TTL.Seconds()),
		Expires:  time.Now().Add(h.cookies.TTL),
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// parseProfileForm reads the optional username, password and avatar fields.
// Blank fields count as not supplied. URL-encoded bodies are accepted when no
// avatar is sent.
func parseProfileForm(w http.ResponseWriter, r *http.Request) (services.ProfileUpdate, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpdateBodyBytes)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return services.ProfileUpdate{}, errAvatarTooLarge
		}
		return services.ProfileUpdate{}, formError("Invalid form data")
	}

	var update services.ProfileUpdate
	if username := strings.TrimSpace(r.PostFormValue("username")); username != "" {
		update.Username = &username
	}
	if password := r.PostFormValue("password"); password != "" {
		update.Password = &password
	}

	if r.MultipartForm == nil {
		return update, nil
	}
	headers := r.MultipartForm.File[avatarField]
	if len(headers) == 0 {
		return update, nil
	}
	avatar, err := readAvatar(headers[0])
	if err != nil {
		return services.ProfileUpdate{}, err
	}
	update.Avatar = &avatar
	return update, nil
}

func readAvatar(header *multipart.FileHeader) (types.AvatarFile, error) {
	file, err := header.Open()
	if err != nil {
		return types.AvatarFile{}, formError("Failed to read upload")
	}
	data, err := readFileLimited(file, services.MaxAvatarSize)
	_ = file.Close()
	if err != nil {
		return types.AvatarFile{}, err
	}
	if len(data) == 0 {
		return types.AvatarFile{}, formError("Avatar file is empty")
	}

	return types.AvatarFile{
		Filename:    header.Filename,
		ContentType: http.DetectContentType(data),
		Size:        int64(len(data)),
		Content:     bytes.NewReader(data),
	}, nil
}
