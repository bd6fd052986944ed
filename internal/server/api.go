package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/plexlist/internal/formatter"
	"github.com/desertthunder/plexlist/internal/models"
	"github.com/desertthunder/plexlist/internal/services"
	"github.com/desertthunder/plexlist/internal/shared"
	"github.com/desertthunder/plexlist/internal/tasks"
)

const maxUploadSize = 32 << 20

// API serves the JSON endpoints of the import service.
type API struct {
	importer *tasks.Importer
	catalog  services.Catalog
	logger   *log.Logger
}

// NewAPI creates the API over an importer and the catalog it imports into.
func NewAPI(importer *tasks.Importer, catalog services.Catalog, logger *log.Logger) *API {
	return &API{importer: importer, catalog: catalog, logger: logger}
}

// Register adds the API routes, including the websocket progress stream, to r.
func (a *API) Register(r Router) {
	a.registerRoutes(r)
	r.Handler(NewProgressStream(a.importer.Tracker(), a.logger))
}

func (a *API) registerRoutes(r Router) {
	r.Handle(http.MethodGet, "/health", http.HandlerFunc(a.handleHealth))
	r.Handle(http.MethodGet, "/api/libraries", http.HandlerFunc(a.handleLibraries))
	r.Handle(http.MethodPost, "/api/preview", http.HandlerFunc(a.handlePreview))
	r.Handle(http.MethodPost, "/api/imports", http.HandlerFunc(a.handleImport))
	r.Handle(http.MethodGet, "/api/jobs/{id}", http.HandlerFunc(a.handleJob))
	r.Handle(http.MethodGet, "/api/reports/{token}", http.HandlerFunc(a.handleReport))
}

// NewHandler builds the complete router with logging and recovery middleware.
// Extra handlers, such as the web front end, are registered after the API.
func NewHandler(importer *tasks.Importer, catalog services.Catalog, logger *log.Logger, extra ...Handler) http.Handler {
	router := NewBasicRouter()
	router.Use(RecoverMiddleware(logger), LoggingMiddleware(logger))
	NewAPI(importer, catalog, logger).Register(router)
	for _, h := range extra {
		router.Handler(h)
	}
	return router
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JobResponse is a job snapshot with its completion percentage.
type JobResponse struct {
	models.SyncJob
	Percent int `json:"percent"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps sentinel errors to status codes and machine-readable codes.
func (a *API) writeError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, shared.ErrMalformedInput):
		status, code = http.StatusBadRequest, "malformed_input"
	case errors.Is(err, shared.ErrInvalidArgument), errors.Is(err, shared.ErrInvalidInput):
		status, code = http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, shared.ErrPlaylistBusy):
		status, code = http.StatusConflict, "playlist_busy"
	case errors.Is(err, shared.ErrJobNotFound), errors.Is(err, shared.ErrReportNotFound), errors.Is(err, shared.ErrLibraryNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, shared.ErrMissingCredentials):
		status, code = http.StatusBadGateway, "unauthorized"
	case errors.Is(err, shared.ErrAPIRequest), errors.Is(err, shared.ErrTimeout), errors.Is(err, shared.ErrServiceUnavailable):
		status, code = http.StatusBadGateway, "upstream"
	}
	if status == http.StatusInternalServerError {
		a.logger.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleLibraries(w http.ResponseWriter, r *http.Request) {
	if a.catalog == nil {
		a.writeError(w, fmt.Errorf("%w: no media server configured", shared.ErrServiceUnavailable))
		return
	}

	libraries, err := a.catalog.ListLibraries(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	if libraries == nil {
		libraries = []models.Library{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"libraries": libraries})
}

// csvInput is the table submitted with a form: an uploaded csv_file or pasted csv_text.
type csvInput struct {
	data     []byte
	text     string
	encoding string
}

func readCSVInput(r *http.Request) (csvInput, error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			return csvInput{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
		if err := r.ParseForm(); err != nil {
			return csvInput{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
		}
	}

	in := csvInput{text: r.FormValue("csv_text"), encoding: r.FormValue("encoding")}

	file, _, err := r.FormFile("csv_file")
	switch {
	case err == nil:
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return csvInput{}, fmt.Errorf("%w: failed to read upload: %v", shared.ErrInvalidInput, err)
		}
		in.data = data
	case !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart):
		return csvInput{}, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return in, nil
}

func (a *API) handlePreview(w http.ResponseWriter, r *http.Request) {
	in, err := readCSVInput(r)
	if err != nil {
		a.writeError(w, err)
		return
	}

	var preview *tasks.Preview
	if len(in.data) > 0 {
		preview, err = a.importer.Preview(in.data, in.encoding)
	} else {
		preview, err = a.importer.PreviewText(in.text)
	}
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (a *API) handleImport(w http.ResponseWriter, r *http.Request) {
	in, err := readCSVInput(r)
	if err != nil {
		a.writeError(w, err)
		return
	}

	req := tasks.SubmitRequest{
		Data:         in.data,
		Text:         in.text,
		Encoding:     in.encoding,
		PlaylistName: r.FormValue("playlist_name"),
		Library:      r.FormValue("library"),
	}

	if mode := r.FormValue("mode"); mode != "" {
		req.Mode, err = models.ParseSyncMode(mode)
		if err != nil {
			a.writeError(w, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err))
			return
		}
	} else if replace := r.FormValue("replace_playlist"); replace != "" {
		req.Mode = models.ModeAppend
		if on, _ := strconv.ParseBool(replace); on || strings.EqualFold(replace, "on") {
			req.Mode = models.ModeReplace
		}
	}

	if threshold := r.FormValue("threshold"); threshold != "" {
		req.Threshold, err = strconv.Atoi(threshold)
		if err != nil {
			a.writeError(w, fmt.Errorf("%w: threshold must be an integer", shared.ErrInvalidArgument))
			return
		}
	}

	id, err := a.importer.Submit(r.Context(), req)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"jobId": id})
}

func (a *API) handleJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.importer.Poll(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"state": "unknown"})
		return
	}
	writeJSON(w, http.StatusOK, JobResponse{SyncJob: job, Percent: job.Percent()})
}

// handleReport serves a report as a CSV attachment. A report can be downloaded once.
func (a *API) handleReport(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	entries, err := a.importer.DownloadReport(token)
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Report expired or not found.", Code: "not_found"})
		return
	}

	data, err := formatter.ReportToCSV(entries)
	if err != nil {
		a.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=import-report-%s.csv", token))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
