package api

import (
	"net/http"
	"time"

	"rentcrm/internal/domain"
	"rentcrm/internal/export"
	"rentcrm/internal/lifecycle"
	"rentcrm/internal/models"

	"github.com/gorilla/mux"
)

type modifyRequest struct {
	Changes         []lifecycle.Selection `json:"changes"`
	ExpectedVersion *int64                `json:"expectedVersion"`
}

type cancelRequest struct {
	lifecycle.CancelRequest
	ExpectedVersion *int64 `json:"expectedVersion"`
}

type cancellationRequest struct {
	Booking      models.Booking `json:"booking"`
	MCO          string         `json:"mco"`
	RefundAmount string         `json:"refundAmount"`
}

type noteRequest struct {
	Text string `json:"text"`
}

type companyRequest struct {
	Name string `json:"name"`
}

func (s *HTTPServer) identity(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	id, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
	}
	return id, ok
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	sort := domain.ParseBookingSort(r.URL.Query().Get("sort"))
	bookings, err := s.svc.Bookings.ListBookings(r.Context(), sort)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.identity(w, r)
	if !ok {
		return
	}
	var draft models.Booking
	if !decodeJSON(w, r, &draft) {
		return
	}
	booking, err := s.svc.Bookings.CreateBooking(r.Context(), agent, &draft)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := s.svc.Bookings.GetBooking(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleModifyBooking(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req modifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	booking, err := s.svc.Bookings.ModifyBooking(r.Context(), agent, mux.Vars(r)["id"], req.Changes, req.ExpectedVersion)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	booking, err := s.svc.Bookings.CancelBooking(r.Context(), agent, mux.Vars(r)["id"], req.CancelRequest, req.ExpectedVersion)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleCreateCancellation(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req cancellationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cancelReq := lifecycle.CancelRequest{MCO: req.MCO, RefundAmount: req.RefundAmount}
	booking, err := s.svc.Bookings.CreateCancelledBooking(r.Context(), agent, &req.Booking, cancelReq)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (s *HTTPServer) handleAddNote(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req noteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	note, err := s.svc.Bookings.AddNote(r.Context(), agent, mux.Vars(r)["id"], req.Text)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

func (s *HTTPServer) handleEditNote(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.identity(w, r)
	if !ok {
		return
	}
	var req noteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	vars := mux.Vars(r)
	if err := s.svc.Bookings.EditNote(r.Context(), agent, vars["id"], vars["noteID"], req.Text); err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleRemoveNote(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.identity(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	if err := s.svc.Bookings.RemoveNote(r.Context(), agent, vars["id"], vars["noteID"]); err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.svc.Bookings.ExportBookings(r.Context())
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.FileName(s.now().UTC())+`"`)
	if err := export.WriteBookings(w, bookings); err != nil {
		s.logger.Error().Err(err).Msg("export failed")
	}
}

func (s *HTTPServer) handleListCompanies(w http.ResponseWriter, r *http.Request) {
	companies, err := s.svc.Companies.ListCompanies(r.Context())
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"companies": companies})
}

func (s *HTTPServer) handleRegisterCompany(w http.ResponseWriter, r *http.Request) {
	var req companyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	company, created, err := s.svc.Companies.RegisterCompany(r.Context(), req.Name)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	writeJSON(w, code, map[string]any{"company": company, "created": created})
}

func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.identity(w, r)
	if !ok {
		return
	}

	// leave room for the multipart envelope; the service enforces the exact cap
	r.Body = http.MaxBytesReader(w, r.Body, s.svc.Uploads.MaxBytes()+1<<20)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	upload, err := s.svc.Uploads.Upload(r.Context(), agent, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, upload)
}

func (s *HTTPServer) handleFile(w http.ResponseWriter, r *http.Request) {
	upload, rc, err := s.svc.Uploads.Open(r.Context(), mux.Vars(r)["key"])
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	defer rc.Close()

	content, err := readSeeker(rc)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}

	w.Header().Set("Content-Type", upload.ContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeContent(w, r, upload.OriginalName, upload.CreatedAt, content)
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	agent, err := s.svc.Auth.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, agent)
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := s.svc.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	s.setSessionCookie(w, res.Token, res.ExpiresAt)
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.identity(w, r)
	if !ok {
		return
	}
	if err := s.svc.Auth.Logout(r.Context(), agent); err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	s.setSessionCookie(w, "", time.Unix(0, 0))
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleMe(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.identity(w, r)
	if !ok {
		return
	}
	me, err := s.svc.Auth.Me(r.Context(), agent)
	if err != nil {
		writeDomainError(w, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, me)
}

func (s *HTTPServer) setSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	if s.cfg.Auth.CookieName == "" {
		return
	}
	cookie := &http.Cookie{
		Name:     s.cfg.Auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.cfg.Auth.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if token == "" {
		cookie.MaxAge = -1
	}
	http.SetCookie(w, cookie)
}
