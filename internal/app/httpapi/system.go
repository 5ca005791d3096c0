package httpapi

import (
	"context"
	"net/http"
	"time"
)

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

func (a *API) systemStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.app.Status(r.Context()))
}

func (a *API) auditEntries(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.audit.listLimit(limit))
}

// runScraper runs every source once. The run outlives a client disconnect.
func (a *API) runScraper(w http.ResponseWriter, r *http.Request) {
	run, err := a.app.Scraper.Run(context.WithoutCancel(r.Context()))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (a *API) scraperRuns(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.app.Scraper.Runs())
}
