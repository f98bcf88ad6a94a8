package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"
)

// Pinger reports backend health for the readiness endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HTTPServer struct {
	service    *Service
	corsOrigin string
	pinger     Pinger
}

func NewHTTPServer(service *Service, corsOrigin string, pinger Pinger) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, pinger: pinger}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.corsOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	if strings.HasPrefix(r.URL.Path, "/api/repos") {
		s.handleRepos(w, r)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{
		"snapshots": map[string]any{"status": "ok"},
	}

	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.pinger.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["snapshots"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
	})
}

// handleRepos routes everything under /api/repos. Branch names may contain
// slashes, so branch-scoped reads take the branch as a query parameter
// instead of a path segment.
func (s *HTTPServer) handleRepos(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/repos")
	rest = strings.Trim(rest, "/")
	var segments []string
	if rest != "" {
		segments = strings.Split(rest, "/")
	}

	switch len(segments) {
	case 0:
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, map[string]any{"repositories": s.service.ListRepositories()})
		case http.MethodPost:
			var input InitializeRepositoryInput
			if !decodeJSON(w, r, &input) {
				return
			}
			repo, err := s.service.InitializeRepository(r.Context(), input)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, repo)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
		}
		return
	case 1:
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
			return
		}
		repo, err := s.service.GetRepository(segments[0])
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, repo)
		return
	case 2:
		s.handleRepoCollection(w, r, segments[0], segments[1])
		return
	case 4:
		if segments[1] == "merge-requests" {
			s.handleMergeRequestAction(w, r, segments[0], segments[2], segments[3])
			return
		}
	case 6:
		if segments[1] == "merge-requests" && segments[3] == "conflicts" && segments[5] == "resolve" {
			s.handleResolveConflict(w, r, segments[0], segments[2], segments[4])
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
}

func (s *HTTPServer) handleRepoCollection(w http.ResponseWriter, r *http.Request, repoID, collection string) {
	switch collection {
	case "branches":
		switch r.Method {
		case http.MethodPost:
			var input CreateBranchInput
			if !decodeJSON(w, r, &input) {
				return
			}
			branch, err := s.service.CreateBranch(r.Context(), repoID, input)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, branch)
		case http.MethodDelete:
			name := r.URL.Query().Get("name")
			if name == "" {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name query parameter is required", nil)
				return
			}
			if err := s.service.DeleteBranch(r.Context(), repoID, name, r.URL.Query().Get("deletedBy")); err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"deleted": name})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
		}
	case "commits":
		switch r.Method {
		case http.MethodGet:
			branch := r.URL.Query().Get("branch")
			if branch == "" {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "branch query parameter is required", nil)
				return
			}
			commits, err := s.service.BranchCommits(repoID, branch)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"branch": branch, "commits": commits})
		case http.MethodPost:
			var input CreateCommitInput
			if !decodeJSON(w, r, &input) {
				return
			}
			commit, err := s.service.CreateCommit(r.Context(), repoID, input)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, commit)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
		}
	case "compare":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
			return
		}
		source := r.URL.Query().Get("source")
		target := r.URL.Query().Get("target")
		if source == "" || target == "" {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "source and target query parameters are required", nil)
			return
		}
		comparison, err := s.service.CompareBranches(repoID, source, target)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, comparison)
	case "merge-requests":
		switch r.Method {
		case http.MethodGet:
			repo, err := s.service.GetRepository(repoID)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"mergeRequests": repo.MergeRequests})
		case http.MethodPost:
			var input CreateMergeRequestInput
			if !decodeJSON(w, r, &input) {
				return
			}
			request, err := s.service.CreateMergeRequest(r.Context(), repoID, input)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, request)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
		}
	case "tags":
		switch r.Method {
		case http.MethodGet:
			repo, err := s.service.GetRepository(repoID)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"tags": repo.Tags})
		case http.MethodPost:
			var input CreateTagInput
			if !decodeJSON(w, r, &input) {
				return
			}
			tag, err := s.service.CreateTag(r.Context(), repoID, input)
			if err != nil {
				writeServiceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, tag)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
		}
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	}
}

func (s *HTTPServer) handleMergeRequestAction(w http.ResponseWriter, r *http.Request, repoID, requestID, action string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
		return
	}

	switch action {
	case "approve":
		var input struct {
			ApprovedBy string `json:"approvedBy"`
		}
		if !decodeJSON(w, r, &input) {
			return
		}
		request, err := s.service.ApproveMergeRequest(r.Context(), repoID, requestID, input.ApprovedBy)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, request)
	case "close":
		var input struct {
			ClosedBy string `json:"closedBy"`
		}
		if !decodeJSON(w, r, &input) {
			return
		}
		request, err := s.service.CloseMergeRequest(r.Context(), repoID, requestID, input.ClosedBy)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, request)
	case "merge":
		var input MergeInput
		if !decodeJSON(w, r, &input) {
			return
		}
		request, err := s.service.Merge(r.Context(), repoID, requestID, input)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, request)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	}
}

func (s *HTTPServer) handleResolveConflict(w http.ResponseWriter, r *http.Request, repoID, requestID, conflictID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
		return
	}
	var input ResolveConflictInput
	if !decodeJSON(w, r, &input) {
		return
	}
	request, err := s.service.ResolveConflict(r.Context(), repoID, requestID, conflictID, input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body", nil)
		return false
	}
	return true
}

func writeServiceError(w http.ResponseWriter, err error) {
	var domain *DomainError
	if errors.As(err, &domain) {
		writeError(w, domain.Status, domain.Code, domain.Message, domain.Details)
		return
	}
	log.Printf("internal error: %v", err)
	writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
