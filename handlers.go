package main

import (
	"log"
	"net/http"
	"strconv"
	"strings"
)

// GET /discover?page_token=...&page_size=...
// Returns one ranked page of compatible candidates for the caller.
func discoverHandler(svc *MatchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		pageSize := 0
		if raw := r.URL.Query().Get("page_size"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_page_size")
				return
			}
			pageSize = n
		}

		ctx, cancel := svc.withDeadline(r.Context())
		defer cancel()

		page, err := svc.Discover(ctx, userID, r.URL.Query().Get("page_token"), pageSize)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		results := make([]map[string]interface{}, 0, len(page.Results))
		for _, rc := range page.Results {
			results = append(results, map[string]interface{}{
				"profile": rc.Profile,
				"score":   rc.Score,
			})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"results":    results,
			"next_token": page.NextToken,
			"partial":    page.Partial,
		})
	}
}

// matchView is the listing entry: the record plus the hydrated peer profile
// when it still exists.
func matchView(rec *MatchRecord, userID int, peers map[int]*Profile) map[string]interface{} {
	peerID := rec.Other(userID)
	return map[string]interface{}{
		"match":   rec,
		"peer_id": peerID,
		"peer":    peers[peerID],
	}
}

// GET /matches
// Lists the caller's mutual matches, newest activity first.
func matchesHandler(svc *MatchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		records, err := svc.ListMutual(r.Context(), userID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		peers := loadPeerProfiles(r.Context(), GetDataLoadersFromContext(r.Context()), userID, records)
		views := make([]map[string]interface{}, 0, len(records))
		for _, rec := range records {
			views = append(views, matchView(rec, userID, peers))
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"matches": views})
	}
}

// GET /matches/requests
// Lists pending requests where the caller is the addressee.
func matchRequestsHandler(svc *MatchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(int)

		records, err := svc.ListIncoming(r.Context(), userID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		peers := loadPeerProfiles(r.Context(), GetDataLoadersFromContext(r.Context()), userID, records)
		views := make([]map[string]interface{}, 0, len(records))
		for _, rec := range records {
			views = append(views, matchView(rec, userID, peers))
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"requests": views})
	}
}

// A dispatcher router function for all /matches/... requests.
//
// GET  /matches                → mutual matches
// GET  /matches/requests       → incoming pending requests
// GET  /matches/{id}           → the record between the caller and {id}
// POST /matches/{id}/send      → send a request (auto-accept on crossing)
// POST /matches/{id}/accept    → pending → mutual
// POST /matches/{id}/decline   → pending → declined
// POST /matches/{id}/block     → any state → blocked
func matchesActionsRouter(svc *MatchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.Trim(r.URL.Path, "/")
		parts := strings.Split(path, "/")
		if len(parts) < 1 || parts[0] != "matches" {
			http.NotFound(w, r)
			return
		}

		if r.Method == http.MethodGet {
			switch {
			case len(parts) == 1:
				matchesHandler(svc).ServeHTTP(w, r)
			case len(parts) == 2 && parts[1] == "requests":
				matchRequestsHandler(svc).ServeHTTP(w, r)
			case len(parts) == 2:
				getMatchHandler(svc).ServeHTTP(w, r)
			default:
				http.NotFound(w, r)
			}
			return
		}

		// POST /matches/{id}/(send|accept|decline|block)
		if r.Method == http.MethodPost && len(parts) == 3 {
			switch parts[2] {
			case "send":
				matchActionHandler(svc, actionSend).ServeHTTP(w, r)
			case "accept":
				matchActionHandler(svc, actionAccept).ServeHTTP(w, r)
			case "decline":
				matchActionHandler(svc, actionDecline).ServeHTTP(w, r)
			case "block":
				matchActionHandler(svc, actionBlock).ServeHTTP(w, r)
			default:
				http.NotFound(w, r)
			}
			return
		}

		writeError(w, http.StatusMethodNotAllowed, "invalid_method")
	}
}

type matchAction string

const (
	actionSend    matchAction = "send"
	actionAccept  matchAction = "accept"
	actionDecline matchAction = "decline"
	actionBlock   matchAction = "block"
)

func peerIDFromPath(r *http.Request) (int, bool) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 {
		return 0, false
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func matchActionHandler(svc *MatchService, action matchAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(userIDKey).(int)
		peerID, ok := peerIDFromPath(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_user_id")
			return
		}

		var rec *MatchRecord
		var err error
		switch action {
		case actionSend:
			rec, err = svc.Send(r.Context(), userID, peerID)
		case actionAccept:
			rec, err = svc.Respond(r.Context(), userID, peerID, true)
		case actionDecline:
			rec, err = svc.Respond(r.Context(), userID, peerID, false)
		case actionBlock:
			rec, err = svc.Block(r.Context(), userID, peerID)
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"match": rec})
	}
}

// GET /matches/{id}
func getMatchHandler(svc *MatchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Context().Value(userIDKey).(int)
		peerID, ok := peerIDFromPath(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_user_id")
			return
		}

		rec, err := svc.GetMatch(r.Context(), userID, peerID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"match": rec})
	}
}

// POST /me/ping
// Records a liveness signal; last-active feeds the ranking activity boost.
func pingHandler(svc *MatchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "invalid_method")
			return
		}
		userID := r.Context().Value(userIDKey).(int)
		if err := svc.Ping(r.Context(), userID); err != nil {
			log.Println("Failed to record ping:", err)
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
