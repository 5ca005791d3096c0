// Package httpapi exposes the marketplace REST API and the live auction feed.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	app "github.com/estatehub/marketplace/internal/app"
	"github.com/estatehub/marketplace/internal/app/domain/user"
	"github.com/estatehub/marketplace/internal/app/metrics"
	"github.com/estatehub/marketplace/internal/app/services/construction"
	"github.com/estatehub/marketplace/internal/app/services/finance"
	"github.com/estatehub/marketplace/internal/middleware"
	"github.com/estatehub/marketplace/pkg/logger"
)

const (
	defaultAuditSize = 500
	limiterIdle      = 10 * time.Minute
)

// Options tunes the HTTP surface.
type Options struct {
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	AuditFile      string
	AuditSize      int
}

// API is the root http.Handler.
type API struct {
	app     *app.Application
	log     *logger.Logger
	audit   *auditLog
	sink    *fileAuditSink
	limiter *middleware.RateLimiter
	handler http.Handler
}

// New builds the router and middleware chain. A zero RateLimitRPS disables
// rate limiting.
func New(application *app.Application, opts Options, log *logger.Logger) (*API, error) {
	if log == nil {
		log = logger.NewDefault("http")
	}
	sink, err := newFileAuditSink(opts.AuditFile)
	if err != nil {
		return nil, err
	}
	size := opts.AuditSize
	if size <= 0 {
		size = defaultAuditSize
	}
	a := &API{
		app:   application,
		log:   log,
		audit: newAuditLog(size, sink),
		sink:  sink,
	}

	router := mux.NewRouter()
	router.Use(middleware.MetricsMiddleware)
	a.routes(router)

	var handler http.Handler = router
	handler = wrapWithAudit(handler, a.audit)
	if opts.RateLimitRPS > 0 {
		a.limiter = middleware.NewRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst, log.WithComponent("ratelimit"))
		handler = a.limiter.Handler(handler)
	}
	handler = middleware.LoggingMiddleware(log)(handler)
	handler = middleware.NewAuthMiddleware(application.Users, log.WithComponent("auth")).Handler(handler)
	handler = middleware.NewCORSMiddleware(opts.CORSOrigins).Handler(handler)
	a.handler = middleware.Tracing(handler)
	return a, nil
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.handler.ServeHTTP(w, r)
}

// RunMaintenance forgets idle rate-limit visitors until ctx is done.
func (a *API) RunMaintenance(ctx context.Context) {
	if a.limiter == nil {
		<-ctx.Done()
		return
	}
	a.limiter.RunCleanup(ctx, time.Minute, limiterIdle)
}

// Close releases the audit file.
func (a *API) Close() error {
	return a.sink.Close()
}

func (a *API) routes(r *mux.Router) {
	authed := middleware.RequireAuth
	admin := middleware.RequireRole(user.RoleAdmin)

	r.HandleFunc("/healthz", a.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/register", a.register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", a.login).Methods(http.MethodPost)
	api.Handle("/users/me", authed(http.HandlerFunc(a.me))).Methods(http.MethodGet)
	api.Handle("/users/me", authed(http.HandlerFunc(a.updateMe))).Methods(http.MethodPatch, http.MethodPut)
	api.Handle("/users", admin(http.HandlerFunc(a.listUsers))).Methods(http.MethodGet)

	api.HandleFunc("/properties", a.searchProperties).Methods(http.MethodGet)
	api.Handle("/properties", authed(http.HandlerFunc(a.createProperty))).Methods(http.MethodPost)
	api.HandleFunc("/properties/featured", a.featuredProperties).Methods(http.MethodGet)
	api.HandleFunc("/properties/{id}", a.getProperty).Methods(http.MethodGet)
	api.Handle("/properties/{id}", authed(http.HandlerFunc(a.updateProperty))).Methods(http.MethodPatch, http.MethodPut)
	api.Handle("/properties/{id}", authed(http.HandlerFunc(a.deleteProperty))).Methods(http.MethodDelete)
	api.HandleFunc("/properties/{id}/similar", a.similarProperties).Methods(http.MethodGet)

	api.Handle("/favorites", authed(http.HandlerFunc(a.listFavorites))).Methods(http.MethodGet)
	api.Handle("/favorites/{propertyID}", authed(http.HandlerFunc(a.addFavorite))).Methods(http.MethodPost, http.MethodPut)
	api.Handle("/favorites/{propertyID}", authed(http.HandlerFunc(a.removeFavorite))).Methods(http.MethodDelete)

	api.HandleFunc("/auctions", a.listAuctions).Methods(http.MethodGet)
	api.Handle("/auctions", authed(http.HandlerFunc(a.createAuction))).Methods(http.MethodPost)
	api.HandleFunc("/auctions/{id}", a.getAuction).Methods(http.MethodGet)
	api.HandleFunc("/auctions/{id}/bids", a.listBids).Methods(http.MethodGet)
	api.Handle("/auctions/{id}/bids", authed(http.HandlerFunc(a.placeBid))).Methods(http.MethodPost)
	api.Handle("/auctions/{id}/deposits", authed(http.HandlerFunc(a.listDeposits))).Methods(http.MethodGet)
	api.Handle("/auctions/{id}/deposits", authed(http.HandlerFunc(a.placeDeposit))).Methods(http.MethodPost)
	api.Handle("/auctions/{id}/cancel", authed(http.HandlerFunc(a.cancelAuction))).Methods(http.MethodPost)
	api.Handle("/auctions/{id}/pay", authed(http.HandlerFunc(a.completePayment))).Methods(http.MethodPost)
	api.HandleFunc("/auctions/{id}/ws", a.auctionFeed).Methods(http.MethodGet)

	api.HandleFunc("/finance/mortgage", calculate(a, finance.Mortgage)).Methods(http.MethodPost)
	api.HandleFunc("/finance/affordability", calculate(a, finance.Affordability)).Methods(http.MethodPost)
	api.HandleFunc("/finance/rental-yield", calculate(a, finance.RentalYield)).Methods(http.MethodPost)
	api.HandleFunc("/finance/investment", calculate(a, finance.Investment)).Methods(http.MethodPost)
	api.HandleFunc("/finance/rent-vs-buy", calculate(a, finance.RentVsBuy)).Methods(http.MethodPost)

	api.HandleFunc("/construction/estimate", calculate(a, construction.EstimateBuild)).Methods(http.MethodPost)
	api.HandleFunc("/construction/renovation", calculate(a, construction.EstimateRenovation)).Methods(http.MethodPost)
	api.HandleFunc("/construction/rates", a.constructionRates).Methods(http.MethodGet)

	api.HandleFunc("/advisor/business-model", a.businessModel).Methods(http.MethodPost)
	api.Handle("/advisor/recommendations", authed(http.HandlerFunc(a.recommendations))).Methods(http.MethodGet)

	api.Handle("/scraper/run", admin(http.HandlerFunc(a.runScraper))).Methods(http.MethodPost)
	api.Handle("/scraper/runs", admin(http.HandlerFunc(a.scraperRuns))).Methods(http.MethodGet)

	api.Handle("/system/status", admin(http.HandlerFunc(a.systemStatus))).Methods(http.MethodGet)
	api.Handle("/system/audit", admin(http.HandlerFunc(a.auditEntries))).Methods(http.MethodGet)
}

func traceID(r *http.Request) string {
	return middleware.TraceID(r.Context())
}
