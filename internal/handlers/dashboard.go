package handlers

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"coursedash.app/cloud/internal/auth"
	"coursedash.app/cloud/internal/dashboard"
	"coursedash.app/cloud/internal/render"
)

type ItemsResponse struct {
	Items []*dashboard.Item `json:"items"`
}

func (s *Server) ListItems(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	items, err := s.dashboard.Items(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ItemsResponse{Items: items})
}

func (s *Server) GetItem(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	item, err := s.dashboard.Item(r.Context(), user, chi.URLParam(r, "enrollmentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (s *Server) DashboardPage(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	items, err := s.dashboard.Items(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.renderHTML(w, r, render.Dashboard(items, s.now()))
}

func (s *Server) EnrollmentPage(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())

	item, err := s.dashboard.Item(r.Context(), user, chi.URLParam(r, "enrollmentID"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.renderHTML(w, r, render.EnrollmentItem(item, s.now()))
}

func (s *Server) renderHTML(w http.ResponseWriter, r *http.Request, c templ.Component) {
	templ.Handler(c, templ.WithErrorHandler(func(r *http.Request, err error) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, r, err)
		})
	})).ServeHTTP(w, r)
}
