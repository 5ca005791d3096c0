package httpapi

import (
	"net/http"

	"github.com/estatehub/marketplace/internal/app/domain/user"
	"github.com/estatehub/marketplace/internal/middleware"
)

type registerRequest struct {
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Password string    `json:"password"`
	Role     user.Role `json:"role"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	session, err := a.app.Users.Register(r.Context(), req.Email, req.Name, req.Password, req.Role)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	session, err := a.app.Users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (a *API) me(w http.ResponseWriter, r *http.Request) {
	claims, _ := middleware.ClaimsFrom(r.Context())
	u, err := a.app.Users.Get(r.Context(), claims.UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type profileRequest struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
}

func (a *API) updateMe(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	claims, _ := middleware.ClaimsFrom(r.Context())
	u, err := a.app.Users.UpdateProfile(r.Context(), claims.UserID, req.Name, req.Phone)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := a.app.Users.List(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
