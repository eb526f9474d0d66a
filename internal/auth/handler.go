package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/bookreview/internal/models"
	"github.com/ayush/bookreview/internal/session"
	"github.com/ayush/bookreview/internal/store"
	"github.com/ayush/bookreview/internal/web"
)

// UserStore defines the interface for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, username, hashedPw string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Handler holds the login, logout and register handlers.
type Handler struct {
	users    UserStore
	render   *web.Renderer
	validate *validator.Validate
}

func NewHandler(users UserStore, render *web.Renderer) *Handler {
	return &Handler{
		users:    users,
		render:   render,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// LoginPage forgets the current user and shows the login form.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	session.FromContext(r.Context()).Clear()
	h.render.Render(w, r, http.StatusOK, "login.html", nil)
}

// Login verifies the credentials and remembers the user in the session.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	sess.Clear()

	form := models.LoginForm{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	if form.Username == "" {
		h.render.Apology(w, r, "must provide username", http.StatusForbidden)
		return
	}
	if form.Password == "" {
		h.render.Apology(w, r, "must provide password", http.StatusForbidden)
		return
	}

	user, err := h.users.GetUserByUsername(r.Context(), form.Username)
	if errors.Is(err, store.ErrNotFound) {
		h.render.Apology(w, r, "invalid username and/or password", http.StatusForbidden)
		return
	}
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("login lookup failed")
		h.render.Apology(w, r, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(form.Password)); err != nil {
		h.render.Apology(w, r, "invalid username and/or password", http.StatusForbidden)
		return
	}

	sess.SetUserID(user.ID)
	h.redirect(w, r, "/")
}

// Logout destroys the session and sends the browser to the login form.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	session.FromContext(r.Context()).Clear()
	h.redirect(w, r, "/login")
}

// RegisterPage forgets the current user and shows the registration form.
func (h *Handler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	session.FromContext(r.Context()).Clear()
	h.render.Render(w, r, http.StatusOK, "register.html", nil)
}

// Register creates a user and logs them in.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	sess.Clear()

	form := models.RegisterForm{
		Username:     r.PostFormValue("username"),
		Password:     r.PostFormValue("password"),
		Confirmation: r.PostFormValue("confirmation"),
	}
	if err := h.validate.Struct(form); err != nil {
		h.render.Apology(w, r, registerMessage(err), http.StatusBadRequest)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(form.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("hash password")
		h.render.Apology(w, r, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	user, err := h.users.CreateUser(r.Context(), form.Username, string(hashed))
	if errors.Is(err, store.ErrUsernameTaken) {
		h.render.Apology(w, r, "username already exists", http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("create user failed")
		h.render.Apology(w, r, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	sess.SetUserID(user.ID)
	sess.AddFlash("Account created successfully! You were successfully logged in!")
	h.redirect(w, r, "/")
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, to string) {
	if err := session.FromContext(r.Context()).Save(r.Context(), w); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("session save failed")
		h.render.Apology(w, r, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

// registerMessage maps the first failed rule to the message shown to the
// user. validator reports fields in declaration order, which is the order
// the rules are checked in.
func registerMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid registration"
	}
	fe := verrs[0]
	switch fe.Field() + "." + fe.Tag() {
	case "Username.required":
		return "must provide username"
	case "Username.min":
		return "username must be at least 4 characters long"
	case "Password.required":
		return "must provide password"
	case "Password.min":
		return "password must be at least 8 characters long"
	case "Confirmation.eqfield":
		return "password must match"
	}
	return "invalid registration"
}
