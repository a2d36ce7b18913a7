package server

import (
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tartampluch/onefam/internal/auth"
	"github.com/tartampluch/onefam/internal/config"
	"github.com/tartampluch/onefam/internal/engine"
	"github.com/tartampluch/onefam/internal/store"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token   string `json:"token"`
	Message string `json:"message"`
}

type familyRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

type memberRequest struct {
	FirstName   string  `json:"first_name" validate:"required"`
	LastName    string  `json:"last_name"`
	Address     *string `json:"address"`
	PhotoBase64 *string `json:"photo_base64" validate:"omitempty,base64"`
	Birthday    *string `json:"birthday" validate:"omitempty,seeddate"`
	Anniversary *string `json:"anniversary" validate:"omitempty,seeddate"`
	Comments    *string `json:"comments"`
	ParentID    *string `json:"parent_id"`
}

type memberPatchRequest struct {
	FirstName   *string `json:"first_name" validate:"omitempty,min=1"`
	LastName    *string `json:"last_name"`
	Address     *string `json:"address"`
	PhotoBase64 *string `json:"photo_base64" validate:"omitempty,base64"`
	Birthday    *string `json:"birthday" validate:"omitempty,seeddate"`
	Anniversary *string `json:"anniversary" validate:"omitempty,seeddate"`
	Comments    *string `json:"comments"`
	ParentID    *string `json:"parent_id"`
}

type eventRequest struct {
	EventName string  `json:"event_name" validate:"required"`
	EventDate string  `json:"event_date" validate:"required,seeddate"`
	MemberID  *string `json:"member_id"`
	Recurring bool    `json:"recurring"`
}

type importRequest struct {
	URL      string `json:"url" validate:"required,http_url"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type importResponse struct {
	Message string          `json:"message"`
	Members []engine.Person `json:"members"`
}

type sendAlertsRequest struct {
	Email    string `json:"email" validate:"required,email"`
	FamilyID string `json:"family_id"`
}

// -----------------------------------------------------------------------------
// Auth & health
// -----------------------------------------------------------------------------

func (s *APIServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}

	token, err := s.auth.Login(req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, http.StatusUnauthorized, config.ErrBadCredentials)
		return
	}
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, Message: config.MsgLoginSuccess})
}

func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": config.MsgHealthOK})
}

// -----------------------------------------------------------------------------
// Families
// -----------------------------------------------------------------------------

func (s *APIServer) handleListFamilies(w http.ResponseWriter, r *http.Request) {
	families, err := s.store.ListFamilies(r.Context())
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, families)
}

func (s *APIServer) handleCreateFamily(w http.ResponseWriter, r *http.Request) {
	var req familyRequest
	if !s.decode(w, r, &req) {
		return
	}
	f, err := s.store.CreateFamily(r.Context(), req.Name)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *APIServer) handleDeleteFamily(w http.ResponseWriter, r *http.Request) {
	familyID := chi.URLParam(r, config.ParamFamilyID)
	if err := s.store.DeleteFamily(r.Context(), familyID); err != nil {
		writeStoreError(w, r, err, config.ErrGroupNotFound)
		return
	}
	s.feeds.Delete(familyID)
	writeJSON(w, http.StatusOK, messageBody{Message: config.MsgFamilyDeleted})
}

// -----------------------------------------------------------------------------
// Members
// -----------------------------------------------------------------------------

func (s *APIServer) handleListMembers(w http.ResponseWriter, r *http.Request) {
	people, err := s.store.ListPeople(r.Context(), chi.URLParam(r, config.ParamFamilyID))
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, people)
}

func (s *APIServer) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if !s.decode(w, r, &req) {
		return
	}

	p := engine.Person{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Address:     req.Address,
		PhotoBase64: req.PhotoBase64,
		Birthday:    req.Birthday,
		Anniversary: req.Anniversary,
		Comments:    req.Comments,
		ParentID:    req.ParentID,
	}
	created, err := s.store.CreatePerson(r.Context(), chi.URLParam(r, config.ParamFamilyID), p)
	if err != nil {
		writeStoreError(w, r, err, config.ErrGroupNotFound)
		return
	}
	writeJSON(w, http.StatusOK, created)
}

func (s *APIServer) handleUpdateMember(w http.ResponseWriter, r *http.Request) {
	var req memberPatchRequest
	if !s.decode(w, r, &req) {
		return
	}

	patch := store.PersonPatch{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Address:     req.Address,
		PhotoBase64: req.PhotoBase64,
		Birthday:    req.Birthday,
		Anniversary: req.Anniversary,
		Comments:    req.Comments,
		ParentID:    req.ParentID,
	}
	updated, err := s.store.UpdatePerson(r.Context(),
		chi.URLParam(r, config.ParamFamilyID), chi.URLParam(r, config.ParamMemberID), patch)
	if err != nil {
		writeStoreError(w, r, err, config.ErrMemberNotFound)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *APIServer) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeletePerson(r.Context(),
		chi.URLParam(r, config.ParamFamilyID), chi.URLParam(r, config.ParamMemberID))
	if err != nil {
		writeStoreError(w, r, err, config.ErrMemberNotFound)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: config.MsgMemberDeleted})
}

// handleImport accepts either a raw vCard body or a JSON pointer to a
// CardDAV/WebDAV resource.
func (s *APIServer) handleImport(w http.ResponseWriter, r *http.Request) {
	familyID := chi.URLParam(r, config.ParamFamilyID)

	var src engine.ImportSource
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get(config.HeaderContentType))
	switch mediaType {
	case config.MimeVCard, config.MimeVCardLegacy:
		src.Body = http.MaxBytesReader(w, r.Body, config.MaxImportBodySize)
	default:
		var req importRequest
		if !s.decode(w, r, &req) {
			return
		}
		src = engine.ImportSource{URL: req.URL, User: req.Username, Pass: req.Password}
	}

	people, err := s.importer.Import(r.Context(), familyID, src)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, config.ErrBodyTooLarge)
		case src.URL != "":
			writeError(w, http.StatusBadGateway, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	created, err := s.store.CreatePeople(r.Context(), familyID, people)
	if err != nil {
		writeStoreError(w, r, err, config.ErrGroupNotFound)
		return
	}
	writeJSON(w, http.StatusOK, importResponse{
		Message: fmt.Sprintf(config.MsgImportCompleted, len(created)),
		Members: created,
	})
}

// -----------------------------------------------------------------------------
// Custom events
// -----------------------------------------------------------------------------

func (s *APIServer) handleListEvents(w http.ResponseWriter, r *http.Request) {
	month, year, ok := monthYear(w, r)
	if !ok {
		return
	}

	events, err := s.store.ListEvents(r.Context(), chi.URLParam(r, config.ParamFamilyID))
	if err != nil {
		writeInternal(w, r, err)
		return
	}

	if month != 0 || year != 0 {
		filtered := make([]engine.CustomEvent, 0, len(events))
		for _, ev := range events {
			if engine.MatchesCycle(ev.EventDate, month, year) {
				filtered = append(filtered, ev)
			}
		}
		events = filtered
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *APIServer) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !s.decode(w, r, &req) {
		return
	}

	ev := engine.CustomEvent{
		EventName: req.EventName,
		EventDate: req.EventDate,
		MemberID:  req.MemberID,
		Recurring: req.Recurring,
	}
	created, err := s.store.CreateEvent(r.Context(), chi.URLParam(r, config.ParamFamilyID), ev)
	if err != nil {
		writeStoreError(w, r, err, config.ErrGroupNotFound)
		return
	}
	writeJSON(w, http.StatusOK, created)
}

func (s *APIServer) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteEvent(r.Context(),
		chi.URLParam(r, config.ParamFamilyID), chi.URLParam(r, config.ParamEventID))
	if err != nil {
		writeStoreError(w, r, err, config.ErrEventNotFound)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: config.MsgEventDeleted})
}

// -----------------------------------------------------------------------------
// Occurrences
// -----------------------------------------------------------------------------

func (s *APIServer) handleAlerts(w http.ResponseWriter, r *http.Request) {
	days, ok := queryInt(r, config.QueryDays, config.DefaultAlertWindow)
	if !ok || days < 0 || days > config.MaxAlertWindow {
		writeError(w, http.StatusBadRequest, config.ErrWindowOutOfRange)
		return
	}

	alerts, err := s.engine.Alerts(r.Context(), chi.URLParam(r, config.ParamFamilyID), days)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *APIServer) handleCalendar(w http.ResponseWriter, r *http.Request) {
	month, year, ok := monthYear(w, r)
	if !ok {
		return
	}

	entries, err := s.engine.Calendar(r.Context(), chi.URLParam(r, config.ParamFamilyID), month, year)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *APIServer) handleSendAlerts(w http.ResponseWriter, r *http.Request) {
	var req sendAlertsRequest
	if !s.decode(w, r, &req) {
		return
	}

	msg, err := s.engine.SendDigest(r.Context(), chi.URLParam(r, config.ParamFamilyID), req.Email)
	if err != nil {
		writeInternal(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: msg})
}
