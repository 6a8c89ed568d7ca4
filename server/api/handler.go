package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/tracekit/protoargs/x/args"
	"github.com/tracekit/protoargs/x/argstore"
	"github.com/tracekit/protoargs/x/extract"
)

// Handler serves the decode/ingest/query endpoints backed by the
// extraction service and the shared arg store.
type Handler struct {
	svc   *extract.Service
	store *argstore.Store
	log   zerolog.Logger

	maxBodyBytes int64
}

// NewHandler creates the API handler.
func NewHandler(svc *extract.Service, store *argstore.Store, maxBodyBytes int64, log zerolog.Logger) *Handler {
	return &Handler{
		svc:          svc,
		store:        store,
		log:          log.With().Str("component", "api-handler").Logger(),
		maxBodyBytes: maxBodyBytes,
	}
}

// RegisterMux mounts all routes on the router.
func (h *Handler) RegisterMux(r *mux.Router) {
	r.HandleFunc("/v1/decode", h.handleDecode).Methods(http.MethodPost)
	r.HandleFunc("/v1/ingest", h.handleIngest).Methods(http.MethodPost)
	r.HandleFunc("/v1/args", h.handleQueryArgs).Methods(http.MethodGet)
	r.HandleFunc("/v1/args", h.handleResetArgs).Methods(http.MethodDelete)
}

type decodeRequest struct {
	// Type is the fully qualified message type name.
	Type string `json:"type"`

	// Payload is the base64-encoded message body.
	Payload string `json:"payload"`

	// AllowedTags optionally restricts top-level fields.
	AllowedTags []uint32 `json:"allowed_tags,omitempty"`

	// Store appends the rows to the shared store in addition to
	// returning them.
	Store bool `json:"store,omitempty"`
}

type decodeResponse struct {
	Type string         `json:"type"`
	Rows []argstore.Row `json:"rows"`
}

func (h *Handler) handleDecode(w http.ResponseWriter, r *http.Request) {
	var req decodeRequest
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_request", "malformed JSON body", err.Error())
		return
	}
	if req.Type == "" {
		WriteError(w, r, http.StatusBadRequest, "invalid_request", "type is required", nil)
		return
	}

	payload, err := base64.StdEncoding.DecodeString(req.Payload)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_request", "payload is not valid base64", err.Error())
		return
	}

	sink := argstore.New()
	if _, err := h.svc.DecodeMessage(payload, req.Type, req.AllowedTags, sink); err != nil {
		writeDecodeError(w, r, err)
		return
	}

	rows := sink.Rows()
	if req.Store {
		for _, row := range rows {
			appendRow(h.store, row)
		}
	}

	WriteJSON(w, http.StatusOK, decodeResponse{Type: req.Type, Rows: rows})
}

type ingestResponse struct {
	Type    string `json:"type"`
	Records int    `json:"records"`
	Rows    int    `json:"rows"`
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	typeName := r.URL.Query().Get("type")
	if typeName == "" {
		WriteError(w, r, http.StatusBadRequest, "invalid_request", "type query parameter is required", nil)
		return
	}

	before := h.store.Len()
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	records, err := h.svc.IngestStream(body, typeName, h.store)
	if err != nil {
		writeDecodeError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, ingestResponse{
		Type:    typeName,
		Records: records,
		Rows:    h.store.Len() - before,
	})
}

type queryResponse struct {
	Total int            `json:"total"`
	Rows  []argstore.Row `json:"rows"`
}

func (h *Handler) handleQueryArgs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var rows []argstore.Row
	if flatKey := q.Get("flat_key"); flatKey != "" {
		rows = h.store.ByFlatKey(flatKey)
	} else {
		rows = h.store.Rows()
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			WriteError(w, r, http.StatusBadRequest, "invalid_request", "limit must be a non-negative integer", nil)
			return
		}
		if limit < len(rows) {
			rows = rows[:limit]
		}
	}

	if rows == nil {
		rows = []argstore.Row{}
	}
	WriteJSON(w, http.StatusOK, queryResponse{Total: len(rows), Rows: rows})
}

func (h *Handler) handleResetArgs(w http.ResponseWriter, r *http.Request) {
	h.store.Reset()
	WriteJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// writeDecodeError maps decode failures onto HTTP statuses: unknown
// types are the client's mistake, everything else is a payload problem.
func writeDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, args.ErrSchemaNotFound):
		WriteError(w, r, http.StatusNotFound, "type_not_found", "message type not found in loaded schemas", err.Error())
	case strings.Contains(err.Error(), "http: request body too large"):
		WriteError(w, r, http.StatusRequestEntityTooLarge, "body_too_large", "request body exceeds limit", nil)
	default:
		WriteError(w, r, http.StatusUnprocessableEntity, "decode_failed", "payload could not be decoded", err.Error())
	}
}

// appendRow replays a row into the shared store through the Delegate
// surface so ordering rules stay in one place.
func appendRow(store *argstore.Store, row argstore.Row) {
	key := args.Key{FlatKey: row.FlatKey, Key: row.Key}
	switch row.Kind {
	case argstore.KindInt:
		store.AddInteger(key, row.Int)
	case argstore.KindUint:
		store.AddUnsignedInteger(key, row.Uint)
	case argstore.KindBool:
		store.AddBoolean(key, row.Bool)
	case argstore.KindFloat:
		store.AddDouble(key, row.Float)
	case argstore.KindString:
		store.AddString(key, row.Str)
	}
}
