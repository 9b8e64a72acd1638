package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"calbook/internal/models"
	"calbook/internal/service"
)

func (s *Server) handlePublicEventType(w http.ResponseWriter, r *http.Request) {
	view, err := s.types.PublicView(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePublicSlots(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}

	slots, err := s.bookings.AvailableSlots(r.Context(), r.PathValue("slug"), date)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "slots": slots})
}

// handlePublicDates serves either a calendar month (month+year params)
// or a rolling window of the next days.
func (s *Server) handlePublicDates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	slug := r.PathValue("slug")

	if q.Get("month") != "" || q.Get("year") != "" {
		month, err := strconv.Atoi(q.Get("month"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be a number")
			return
		}
		year, err := strconv.Atoi(q.Get("year"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "year must be a number")
			return
		}

		dates, err := s.bookings.AvailableDatesForMonth(r.Context(), slug, year, time.Month(month))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"dates": dates})
		return
	}

	days := 0
	if raw := q.Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "days must be a number")
			return
		}
		days = parsed
	}

	dates, err := s.bookings.AvailableDates(r.Context(), slug, days)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"dates": dates})
}

type reserveBody struct {
	EventType string `json:"event_type"`
	Date      string `json:"date"`
	Start     string `json:"start"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Timezone  string `json:"timezone,omitempty"`
	Answers   []struct {
		QuestionID int64  `json:"question_id"`
		Answer     string `json:"answer"`
	} `json:"answers,omitempty"`
}

func (s *Server) handlePublicReserve(w http.ResponseWriter, r *http.Request) {
	var body reserveBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req := service.ReserveRequest{
		EventTypeSlug: body.EventType,
		Date:          body.Date,
		Start:         body.Start,
		BookerName:    body.Name,
		BookerEmail:   body.Email,
		Timezone:      body.Timezone,
	}
	for _, a := range body.Answers {
		req.Answers = append(req.Answers, models.BookingAnswer{QuestionID: a.QuestionID, Answer: a.Answer})
	}

	booking, err := s.bookings.Reserve(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *Server) handlePublicBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := s.bookings.BookingByUID(r.Context(), r.PathValue("uid"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *Server) handlePublicCancel(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason,omitempty"`
	}
	// An empty body is a cancel without a reason.
	_ = json.NewDecoder(r.Body).Decode(&body)

	if err := s.bookings.CancelByUID(r.Context(), r.PathValue("uid"), body.Reason); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": models.StatusCancelled})
}

func (s *Server) handlePublicReschedule(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Date  string `json:"date"`
		Start string `json:"start"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	booking, err := s.bookings.RescheduleByUID(r.Context(), r.PathValue("uid"), body.Date, body.Start)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}
