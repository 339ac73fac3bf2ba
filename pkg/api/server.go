package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// NewRouter wires every route to the handler
//
//	/api/admin/members            GET list, POST create
//	/api/admin/members/{id}       PUT update
//	/api/admin/skills             GET list, POST create
//	/api/admin/claims             GET list
//	/api/admin/claims/upload-validate  POST multipart file, returns a plan
//	/api/admin/claims/upload-execute   POST plan JSON, commits it
//	/api/admin/rules              GET list, POST create
//	/api/admin/rules/{id}         PUT update, DELETE
//	/api/members/{memberID}/claims           GET the member's claims
//	/api/members/{memberID}/claims/{claimID} PUT status and/or note
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/admin", func(r chi.Router) {
			r.Get("/members", h.ListMembers)
			r.Post("/members", h.CreateMember)
			r.Put("/members/{id}", h.UpdateMember)

			r.Get("/skills", h.ListSkills)
			r.Post("/skills", h.CreateSkill)

			r.Get("/claims", h.ListClaims)
			r.Post("/claims/upload-validate", h.UploadValidate)
			r.Post("/claims/upload-execute", h.UploadExecute)

			r.Get("/rules", h.ListRules)
			r.Post("/rules", h.CreateRule)
			r.Put("/rules/{id}", h.UpdateRule)
			r.Delete("/rules/{id}", h.DeleteRule)
		})

		r.Route("/members/{memberID}/claims", func(r chi.Router) {
			r.Get("/", h.ListMemberClaims)
			r.Put("/{claimID}", h.UpdateMemberClaim)
		})
	})

	return r
}

// NewServer returns an http.Server for the router
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// requestLogger logs one line per request through zap
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("Handled request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
