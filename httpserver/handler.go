package httpserver

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xeipuuv/gojsonschema"

	"github.com/ruteri/travel-identity-client/documents"
	"github.com/ruteri/travel-identity-client/interfaces"
	"github.com/ruteri/travel-identity-client/session"
)

// maxBodySize is the maximum allowed request body size (1MB), and the
// largest document accepted for archiving.
const maxBodySize = 1024 * 1024

//go:embed templates/index.html
var indexTemplate string

//go:embed registration.schema.json
var registrationSchema []byte

// Handler serves the registration form and the JSON API over one wallet session.
type Handler struct {
	session *session.WalletSession
	store   interfaces.DocumentStore
	algo    documents.Algorithm
	log     *slog.Logger

	page   *template.Template
	schema *gojsonschema.Schema
}

// NewHandler creates a handler. store may be nil, in which case document
// uploads are rejected.
func NewHandler(s *session.WalletSession, store interfaces.DocumentStore, algo documents.Algorithm, log *slog.Logger) (*Handler, error) {
	page, err := template.New("index").Parse(indexTemplate)
	if err != nil {
		return nil, err
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(registrationSchema))
	if err != nil {
		return nil, err
	}

	return &Handler{
		session: s,
		store:   store,
		algo:    algo,
		log:     log,
		page:    page,
		schema:  schema,
	}, nil
}

type pageData struct {
	Connected bool
	Address   string
	Input     interfaces.RegistrationInput
	Fields    interfaces.ValidationErrors
	Notice    *session.Notice
	User      *interfaces.UserRecord
}

func (h *Handler) newPage() pageData {
	data := pageData{Connected: h.session.State() == session.Connected}
	if data.Connected {
		data.Address = h.session.Address().Hex()
	}
	return data
}

func (h *Handler) render(w http.ResponseWriter, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.page.Execute(w, data); err != nil {
		h.log.Error("Failed to render page", "err", err)
	}
}

// ensureConnected connects the session on first use, the way the page
// connects the wallet when it loads.
func (h *Handler) ensureConnected(ctx context.Context) error {
	if h.session.State() == session.Connected {
		return nil
	}
	return h.session.Connect(ctx)
}

// connectOrLost reports a missing wallet as is and any other connect
// failure as a lost connection.
func (h *Handler) connectOrLost(ctx context.Context) error {
	err := h.ensureConnected(ctx)
	if err == nil {
		return nil
	}
	h.log.Warn("Wallet not connected", "err", err)
	if errors.Is(err, session.ErrProviderUnavailable) {
		return err
	}
	return session.ErrConnectionLost
}

// HandleIndex renders the empty form.
//
// URL format: GET /
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	var notice *session.Notice
	if err := h.ensureConnected(r.Context()); err != nil {
		n := session.NoticeFor(session.OpConnect, err)
		notice = &n
	}

	data := h.newPage()
	data.Notice = notice
	h.render(w, data)
}

// HandleRegisterForm validates the submitted form and registers it.
// Field errors are rendered next to the inputs.
//
// URL format: POST /register
// Form fields: username, email, hashId
func (h *Handler) HandleRegisterForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form", http.StatusBadRequest)
		return
	}

	input := interfaces.RegistrationInput{
		Name:         r.PostFormValue("username"),
		Email:        r.PostFormValue("email"),
		DocumentHash: r.PostFormValue("hashId"),
	}

	_, err := h.register(r.Context(), input)
	notice := session.NoticeFor(session.OpRegister, err)

	data := h.newPage()
	data.Input = input
	data.Fields = session.FieldErrors(err)
	data.Notice = &notice
	h.render(w, data)
}

// HandleUserForm shows the record of the connected account.
//
// URL format: POST /user
func (h *Handler) HandleUserForm(w http.ResponseWriter, r *http.Request) {
	data := h.newPage()
	data.Input = interfaces.RegistrationInput{
		Name:         r.PostFormValue("username"),
		Email:        r.PostFormValue("email"),
		DocumentHash: r.PostFormValue("hashId"),
	}

	record, err := h.fetchOwn(r.Context())
	if err != nil {
		notice := session.NoticeFor(session.OpFetch, err)
		data.Notice = &notice
	} else {
		data.User = &record
	}
	h.render(w, data)
}

func (h *Handler) register(ctx context.Context, input interfaces.RegistrationInput) (*session.Registration, error) {
	if fields := input.Validate(); len(fields) > 0 {
		return nil, &session.ValidationError{Fields: fields}
	}
	if err := h.connectOrLost(ctx); err != nil {
		return nil, err
	}
	return h.session.Register(ctx, input)
}

func (h *Handler) fetchOwn(ctx context.Context) (interfaces.UserRecord, error) {
	if err := h.connectOrLost(ctx); err != nil {
		return interfaces.UserRecord{}, err
	}
	return h.session.FetchOwnUser(ctx)
}

type sessionResponse struct {
	State   string          `json:"state"`
	Address string          `json:"address,omitempty"`
	Notice  *session.Notice `json:"notice,omitempty"`
}

type registrationResponse struct {
	TxHash      string         `json:"txHash,omitempty"`
	BlockNumber uint64         `json:"blockNumber,omitempty"`
	Status      string         `json:"status,omitempty"`
	Notice      session.Notice `json:"notice"`
}

type errorResponse struct {
	Notice session.Notice    `json:"notice"`
	Fields map[string]string `json:"fields,omitempty"`
}

type documentResponse struct {
	DocumentHash string `json:"documentHash"`
	ContentID    string `json:"contentId"`
	Algorithm    string `json:"algorithm"`
}

func (h *Handler) sessionState() sessionResponse {
	resp := sessionResponse{State: h.session.State().String()}
	if h.session.State() == session.Connected {
		resp.Address = h.session.Address().Hex()
	}
	return resp
}

// HandleConnect connects (or re-binds) the wallet session.
//
// URL format: POST /api/connect
func (h *Handler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	err := h.session.Connect(r.Context())
	notice := session.NoticeFor(session.OpConnect, err)

	resp := h.sessionState()
	resp.Notice = &notice
	writeJSON(w, statusFor(err), resp)
}

// HandleSession reports the session state.
//
// URL format: GET /api/session
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessionState())
}

// HandleRegister registers a JSON encoded RegistrationInput.
//
// URL format: POST /api/register
// Request body: {"name": "...", "email": "...", "documentHash": "..."}
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	result, err := h.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		h.log.Debug("Malformed registration body", "err", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Notice: session.NoticeFor(session.OpRegister, &session.ValidationError{}),
		})
		return
	}
	if !result.Valid() {
		fields := make(map[string]string, len(result.Errors()))
		for _, e := range result.Errors() {
			fields[e.Field()] = e.Description()
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Notice: session.NoticeFor(session.OpRegister, &session.ValidationError{}),
			Fields: fields,
		})
		return
	}

	var input interfaces.RegistrationInput
	if err := json.Unmarshal(body, &input); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	reg, err := h.register(r.Context(), input)
	notice := session.NoticeFor(session.OpRegister, err)

	if fields := session.FieldErrors(err); fields != nil {
		writeJSON(w, statusFor(err), errorResponse{Notice: notice, Fields: fields})
		return
	}

	resp := registrationResponse{Notice: notice}
	if reg != nil {
		resp.TxHash = reg.TxHash.Hex()
		resp.BlockNumber = reg.BlockNumber
		resp.Status = reg.Outcome.String()
	}
	if err != nil && reg == nil {
		writeJSON(w, statusFor(err), errorResponse{Notice: notice})
		return
	}
	writeJSON(w, statusFor(err), resp)
}

// HandleUser returns the record stored for an address.
//
// URL format: GET /api/user/{address}
func (h *Handler) HandleUser(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	if err := h.ensureConnected(r.Context()); err != nil {
		h.log.Warn("Wallet not connected", "err", err)
		writeJSON(w, statusFor(session.ErrConnectionLost), errorResponse{
			Notice: session.NoticeFor(session.OpFetch, session.ErrConnectionLost),
		})
		return
	}

	record, err := h.session.FetchUser(r.Context(), address)
	h.writeUser(w, record, err)
}

// HandleOwnUser returns the record of the connected account.
//
// URL format: GET /api/user
func (h *Handler) HandleOwnUser(w http.ResponseWriter, r *http.Request) {
	record, err := h.fetchOwn(r.Context())
	h.writeUser(w, record, err)
}

func (h *Handler) writeUser(w http.ResponseWriter, record interfaces.UserRecord, err error) {
	if err != nil {
		writeJSON(w, statusFor(err), errorResponse{Notice: session.NoticeFor(session.OpFetch, err)})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// HandleDocument archives an uploaded document and returns the hash to
// register it with.
//
// URL format: POST /api/documents
// Request body: raw document bytes
func (h *Handler) HandleDocument(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		http.Error(w, "Document storage is not configured", http.StatusNotImplemented)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "Document too large or unreadable", http.StatusRequestEntityTooLarge)
		return
	}
	if len(data) == 0 {
		http.Error(w, "Empty document", http.StatusBadRequest)
		return
	}

	archived, err := documents.Archive(r.Context(), h.store, data, h.algo)
	if err != nil {
		h.log.Error("Failed to archive document", "err", err)
		http.Error(w, "Failed to archive document", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusCreated, documentResponse{
		DocumentHash: archived.DocumentHash,
		ContentID:    archived.ID.String(),
		Algorithm:    string(archived.Algorithm),
	})
}

// statusFor maps session errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, session.ErrValidationFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, session.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, session.ErrConnectionLost), errors.Is(err, session.ErrRequestInFlight):
		return http.StatusConflict
	case errors.Is(err, session.ErrTransactionTimeout):
		return http.StatusAccepted
	case errors.Is(err, session.ErrTransactionRejected):
		return http.StatusForbidden
	case errors.Is(err, session.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrInvalidAddress):
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("Failed to encode response", "err", err)
	}
}
