package endpoints

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lexpipe/lexpipe/internal/api"
	"github.com/lexpipe/lexpipe/internal/pipeline"
	"github.com/lexpipe/lexpipe/internal/repo"
	"github.com/lexpipe/lexpipe/internal/svcctx"
)

// UploadResponse is returned when a document is accepted for processing.
type UploadResponse struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Status   string `json:"status"`
}

// UploadDocumentEndpoint handles POST /api/documents with a multipart PDF upload.
type UploadDocumentEndpoint struct{}

var _ api.Endpoint = (*UploadDocumentEndpoint)(nil)

func (e *UploadDocumentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/documents", e.handler
}

func (e *UploadDocumentEndpoint) RequiresInit() bool { return true }

func (e *UploadDocumentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	const maxMemory = 32 << 20 // 32MB
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("file %s is not a PDF", header.Filename))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read upload: %v", err))
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "uploaded file is empty")
		return
	}

	svc := svcctx.ServicesFrom(r.Context())
	cfg := svc.Config
	id := uuid.New().String()
	key := id + ".pdf"

	// Persist the raw bytes first so the pipeline can always re-read them.
	if _, err := svc.Objects.Put(r.Context(), cfg.Storage.UploadsBucket, key, data, "application/pdf"); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to store upload: %v", err))
		return
	}

	doc := &repo.Document{
		ID:          id,
		Filename:    header.Filename,
		ContentType: "application/pdf",
		FileSize:    int64(len(data)),
		Bucket:      cfg.Storage.UploadsBucket,
		ObjectKey:   key,
	}
	if err := svc.Repo.CreateDocument(r.Context(), doc); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to record document: %v", err))
		return
	}

	if err := svc.Pool.Submit(id); err != nil {
		if errors.Is(err, pipeline.ErrQueueFull) {
			writeError(w, http.StatusServiceUnavailable, "pipeline queue full, try again later")
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to queue document: %v", err))
		return
	}

	writeJSON(w, http.StatusAccepted, UploadResponse{
		ID:       id,
		Filename: header.Filename,
		Status:   repo.StatusPending,
	})
}

func (e *UploadDocumentEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file.pdf>",
		Short: "Upload a contract PDF for extraction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp UploadResponse
			if err := client.PostFile(cmd.Context(), "/api/documents", "file", args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
