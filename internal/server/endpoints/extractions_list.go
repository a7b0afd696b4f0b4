package endpoints

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lexpipe/lexpipe/internal/api"
	"github.com/lexpipe/lexpipe/internal/svcctx"
)

// ListExtractionsResponse is a page of extraction results.
type ListExtractionsResponse struct {
	Extractions []ExtractionResponse `json:"extractions"`
	Total       int                  `json:"total"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

// ListExtractionsEndpoint handles GET /api/extractions.
type ListExtractionsEndpoint struct{}

var _ api.Endpoint = (*ListExtractionsEndpoint)(nil)

func (e *ListExtractionsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/extractions", e.handler
}

func (e *ListExtractionsEndpoint) RequiresInit() bool { return true }

func (e *ListExtractionsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	limit := 20
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "offset must be non-negative")
			return
		}
		offset = n
	}

	rows, total, err := svcctx.RepoFrom(r.Context()).ListExtractions(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := ListExtractionsResponse{
		Extractions: make([]ExtractionResponse, 0, len(rows)),
		Total:       total,
		Limit:       limit,
		Offset:      offset,
	}
	for _, row := range rows {
		resp.Extractions = append(resp.Extractions, toExtractionResponse(row))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *ListExtractionsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List extraction results",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListExtractionsResponse
			path := fmt.Sprintf("/api/extractions?limit=%d&offset=%d", limit, offset)
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum results to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Results to skip")
	return cmd
}
