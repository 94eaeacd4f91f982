package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/apply-app/apply-api/internal/db"
	"github.com/apply-app/apply-api/internal/server/middleware"
)

// JobOfferListResponse wraps a page of job offers
type JobOfferListResponse struct {
	JobOffers []db.JobOffer `json:"jobOffers"`
	Count     int           `json:"count"`
}

// handleListJobOffers lists the caller's job offers, newest first.
// Query: active, public (booleans), recent (last 15 days), limit, offset.
func (s *Server) handleListJobOffers(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	filters, err := parseJobOfferFilters(r)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	filters.CreatedByUserID = &userID

	offers, err := s.store.ListJobOffers(r.Context(), filters)
	if err != nil {
		s.log.Error("failed to list job offers", "user_id", userID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "Failed to list job offers")
		return
	}

	s.jsonResponse(w, http.StatusOK, JobOfferListResponse{JobOffers: offers, Count: len(offers)})
}

// JobOfferResponse is one offer with its company inlined.
type JobOfferResponse struct {
	*db.JobOffer
	Company *db.Company `json:"company"`
}

// handleGetJobOffer returns one offer if the caller created it or it is public
func (s *Server) handleGetJobOffer(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid job offer ID")
		return
	}

	offer, err := s.store.GetJobOfferByID(r.Context(), id)
	if err != nil {
		s.log.Error("failed to get job offer", "id", id, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "Failed to get job offer")
		return
	}
	if offer == nil {
		s.errorResponse(w, http.StatusNotFound, "Job offer not found")
		return
	}
	if !offer.VisibleTo(userID) {
		err := &ErrForbidden{Resource: "job offer"}
		s.errorResponse(w, HTTPStatus(err), "Forbidden")
		return
	}

	company, err := s.store.GetCompanyByID(r.Context(), offer.CompanyID)
	if err != nil {
		s.log.Error("failed to get company", "id", offer.CompanyID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "Failed to get job offer")
		return
	}

	s.jsonResponse(w, http.StatusOK, JobOfferResponse{JobOffer: offer, Company: company})
}

func parseJobOfferFilters(r *http.Request) (db.JobOfferFilters, error) {
	q := r.URL.Query()
	var f db.JobOfferFilters

	bools := []struct {
		name string
		dst  **bool
	}{
		{"active", &f.IsActive},
		{"public", &f.IsPublic},
	}
	for _, b := range bools {
		raw := q.Get(b.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, &ErrValidation{Field: b.name, Message: "must be true or false"}
		}
		*b.dst = &v
	}

	if raw := q.Get("recent"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return f, &ErrValidation{Field: "recent", Message: "must be true or false"}
		}
		f.RecentOnly = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"limit", &f.Limit},
		{"offset", &f.Offset},
	}
	for _, n := range ints {
		raw := q.Get(n.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return f, &ErrValidation{Field: n.name, Message: "must be a non-negative integer"}
		}
		*n.dst = v
	}

	return f, nil
}
