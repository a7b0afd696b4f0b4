package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/lexpipe/lexpipe/internal/api"
	"github.com/lexpipe/lexpipe/internal/repo"
	"github.com/lexpipe/lexpipe/internal/svcctx"
)

// ExtractionResponse is a stored extraction with its decoded result payload.
type ExtractionResponse struct {
	ID         string          `json:"id"`
	DocumentID string          `json:"document_id"`
	ModelUsed  string          `json:"model_used"`
	Confidence float64         `json:"confidence"`
	Result     json.RawMessage `json:"result"`
	CreatedAt  string          `json:"created_at"`
}

func toExtractionResponse(e *repo.Extraction) ExtractionResponse {
	return ExtractionResponse{
		ID:         e.ID,
		DocumentID: e.DocumentID,
		ModelUsed:  e.ModelUsed,
		Confidence: e.Confidence,
		Result:     json.RawMessage(e.Clauses),
		CreatedAt:  e.CreatedAt,
	}
}

// GetExtractionEndpoint handles GET /api/documents/{id}/extraction.
// Returns the newest extraction for the document.
type GetExtractionEndpoint struct{}

var _ api.Endpoint = (*GetExtractionEndpoint)(nil)

func (e *GetExtractionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/documents/{id}/extraction", e.handler
}

func (e *GetExtractionEndpoint) RequiresInit() bool { return true }

func (e *GetExtractionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	rep := svcctx.RepoFrom(r.Context())
	if _, err := rep.GetDocument(r.Context(), id); errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "document not found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	ext, err := rep.LatestExtraction(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no extraction available for document")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, toExtractionResponse(ext))
}

func (e *GetExtractionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "extraction <document-id>",
		Short: "Get the latest extraction for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ExtractionResponse
			if err := client.Get(cmd.Context(), "/api/documents/"+args[0]+"/extraction", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
