package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/hdu-care/hdu-service/internal/auth"
	"github.com/hdu-care/hdu-service/internal/bed"
	"github.com/hdu-care/hdu-service/internal/criticalfactor"
	"github.com/hdu-care/hdu-service/internal/document"
	"github.com/hdu-care/hdu-service/internal/patient"
	"github.com/hdu-care/hdu-service/internal/users"
	"github.com/hdu-care/hdu-service/internal/vitals"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

// Handlers groups the domain handlers mounted under /api.
type Handlers struct {
	Users           *users.Handler
	Beds            *bed.Handler
	Patients        *patient.Handler
	CriticalFactors *criticalfactor.Handler
	Vitals          *vitals.Handler
	Documents       *document.Handler
}

// Metrics is implemented by telemetry.Metrics.
type Metrics interface {
	HTTPMetricsRecorder
	auth.MetricsRecorder
	auth.PermissionMetricsRecorder
}

// Options configures authentication and the outer middleware.
type Options struct {
	Verifier    *auth.Verifier
	Permissions auth.Permissions
	// Status re-checks that a token's account is still approved. Optional.
	Status auth.StatusChecker
	// Metrics is optional.
	Metrics Metrics

	// UploadDir is served at /uploads when set.
	UploadDir      string
	AllowedOrigins []string
	LoginLimit     RateLimiterConfig
}

// SetupRouter initializes all routes for the application
func SetupRouter(h Handlers, opts Options) http.Handler {
	var (
		httpMetrics HTTPMetricsRecorder
		authMetrics auth.MetricsRecorder
		permMetrics auth.PermissionMetricsRecorder
	)
	if opts.Metrics != nil {
		httpMetrics, authMetrics, permMetrics = opts.Metrics, opts.Metrics, opts.Metrics
	}

	authenticated := func(next http.Handler) http.Handler {
		return auth.MiddlewareWithMetrics(opts.Verifier, opts.Status, authMetrics)(next)
	}
	protect := func(permission string, fn http.HandlerFunc) http.Handler {
		return authenticated(
			auth.RequirePermissionWithMetrics(permission, opts.Permissions, permMetrics)(fn),
		)
	}

	r := mux.NewRouter()
	r.Use(RecoveryMiddleware, otelmux.Middleware("hdu-service"), RequestLogger(httpMetrics))

	// Public health endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"hdu-service"}`))
	}).Methods("GET")

	if opts.UploadDir != "" {
		r.PathPrefix("/uploads/").Handler(
			http.StripPrefix("/uploads/", http.FileServer(http.Dir(opts.UploadDir))),
		).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Auth routes. Register and login are public; login is rate limited.
	limiter := NewRateLimiter(opts.LoginLimit)
	a := api.PathPrefix("/auth").Subrouter()
	a.HandleFunc("/register", h.Users.Register).Methods("POST")
	a.Handle("/login", limiter.Middleware(http.HandlerFunc(h.Users.Login))).Methods("POST")
	a.Handle("/me", authenticated(http.HandlerFunc(h.Users.Me))).Methods("GET")
	a.Handle("/consultants", protect("consultants:view", h.Users.ListConsultants)).Methods("GET")
	a.Handle("/pending-users", protect("users:view_pending", h.Users.ListPendingUsers)).Methods("GET")
	a.Handle("/users/{id}/approve", protect("users:review", h.Users.ApproveUser)).Methods("PUT")
	a.Handle("/users/{id}/reject", protect("users:review", h.Users.RejectUser)).Methods("PUT")

	// Bed routes
	b := api.PathPrefix("/beds").Subrouter()
	b.Handle("", protect("beds:view", h.Beds.ListBeds)).Methods("GET")
	b.Handle("/", protect("beds:view", h.Beds.ListBeds)).Methods("GET")
	b.Handle("/status/{status}", protect("beds:view", h.Beds.ListByStatus)).Methods("GET")
	b.Handle("/{id:[0-9]+}", protect("beds:view", h.Beds.GetBed)).Methods("GET")
	b.Handle("/{id:[0-9]+}/assign", protect("beds:assign", h.Beds.Assign)).Methods("POST")
	b.Handle("/{id:[0-9]+}/deassign", protect("beds:deassign", h.Beds.Deassign)).Methods("POST")

	// Patient routes. Fixed paths are registered before /{id}.
	p := api.PathPrefix("/patients").Subrouter()
	p.Handle("", protect("patients:view", h.Patients.ListPatients)).Methods("GET")
	p.Handle("/", protect("patients:view", h.Patients.ListPatients)).Methods("GET")
	p.Handle("/analytics", protect("patients:analytics", h.Patients.Analytics)).Methods("GET")
	p.Handle("/{id}", protect("patients:view", h.Patients.GetPatient)).Methods("GET")
	p.Handle("/{id}", protect("patients:update", h.Patients.UpdatePatient)).Methods("PUT")
	p.Handle("/{id}/discharge", protect("patients:discharge", h.Patients.Discharge)).Methods("POST")
	p.Handle("/{id}/history", protect("patients:history", h.Patients.History)).Methods("GET")

	// Vitals, alerts and vital sign configuration
	cf := api.PathPrefix("/critical-factors").Subrouter()
	cf.Handle("", protect("vitals:record", h.CriticalFactors.Create)).Methods("POST")
	cf.Handle("/", protect("vitals:record", h.CriticalFactors.Create)).Methods("POST")
	cf.Handle("/critical-patients", protect("alerts:view", h.CriticalFactors.CriticalPatients)).Methods("GET")
	cf.Handle("/alerts/acknowledge", protect("alerts:acknowledge", h.CriticalFactors.Acknowledge)).Methods("POST")
	cf.Handle("/alerts/analytics", protect("alerts:analytics", h.CriticalFactors.AlertAnalytics)).Methods("GET")
	cf.Handle("/vital-signs-config", protect("vitals_config:view", h.Vitals.ListConfigs)).Methods("GET")
	cf.Handle("/vital-signs-config", protect("vitals_config:manage", h.Vitals.CreateConfig)).Methods("POST")
	cf.Handle("/vital-signs-config/{id}", protect("vitals_config:manage", h.Vitals.UpdateConfig)).Methods("PUT")
	cf.Handle("/vital-signs-config/{id}", protect("vitals_config:manage", h.Vitals.DeleteConfig)).Methods("DELETE")
	cf.Handle("/patient/{patientId}", protect("vitals:view", h.CriticalFactors.ListByPatient)).Methods("GET")
	cf.Handle("/{id}", protect("vitals:view", h.CriticalFactors.Get)).Methods("GET")
	cf.Handle("/{id}/amend", protect("vitals:amend", h.CriticalFactors.Amend)).Methods("PUT")

	// Document routes
	d := api.PathPrefix("/documents").Subrouter()
	d.Handle("/upload", protect("documents:upload", h.Documents.Upload)).Methods("POST")
	d.Handle("/patient/{patientId}", protect("documents:view", h.Documents.ListByPatient)).Methods("GET")
	d.Handle("/{id}", protect("documents:view", h.Documents.Get)).Methods("GET")
	d.Handle("/{id}/download", protect("documents:view", h.Documents.Download)).Methods("GET")
	d.Handle("/{id}", protect("documents:delete", h.Documents.Delete)).Methods("DELETE")

	return CORSMiddleware(opts.AllowedOrigins)(r)
}
