package httpapi

import (
	"net/http"

	"github.com/estatehub/marketplace/internal/app/services/advisor"
	"github.com/estatehub/marketplace/internal/app/services/construction"
	"github.com/estatehub/marketplace/internal/middleware"
)

// calculate decodes an input, runs a pure calculator and writes the result.
func calculate[In, Out any](a *API, fn func(In) (Out, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in In
		if err := decodeJSON(r.Body, &in); err != nil {
			a.fail(w, r, err)
			return
		}
		out, err := fn(in)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (a *API) constructionRates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, construction.RateCard())
}

func (a *API) businessModel(w http.ResponseWriter, r *http.Request) {
	var req advisor.Request
	if err := decodeJSON(r.Body, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	model, err := a.app.Advisor.GenerateBusinessModel(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model)
}

func (a *API) recommendations(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items, err := a.app.Advisor.Recommend(r.Context(), middleware.ActorFrom(r.Context()).UserID, limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
