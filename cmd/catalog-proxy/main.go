package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/catalog-client/pkg/cache"
	"github.com/Sternrassler/catalog-client/pkg/client"
	"github.com/Sternrassler/catalog-client/pkg/logging"
	"github.com/Sternrassler/catalog-client/pkg/metrics"
	"github.com/Sternrassler/catalog-client/pkg/pagination"
)

func main() {
	logging.Setup(logging.ConfigFromEnv())

	// Configuration from environment
	upstreamURL := getEnv("UPSTREAM_URL", "http://localhost:4567")
	redisURL := getEnv("REDIS_URL", "")
	port := getEnv("PORT", "8080")
	userAgent := getEnv("USER_AGENT", "catalog-client/0.1.0")

	initialPages, err := strconv.Atoi(getEnv("INITIAL_PAGES", "1"))
	if err != nil {
		log.Fatal().Err(err).Msg("INITIAL_PAGES must be a number")
	}

	catalogClient, err := client.New(client.DefaultConfig(upstreamURL, userAgent))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create catalog client")
	}

	fetcher, err := client.NewListingFetcher(catalogClient, client.SourceMangasEndpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create listing fetcher")
	}

	cfg := pagination.DefaultConfig()
	cfg.InitialPages = initialPages

	// Redis is optional: without it there are no warm starts
	if redisURL != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: redisURL,
		})
		defer redisClient.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisClient.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.Fatal().Err(err).Str("redis", redisURL).Msg("Failed to connect to Redis")
		}
		log.Info().Str("redis", redisURL).Msg("Connected to Redis")
		cfg.Snapshots = cache.NewManager(redisClient)
	}

	engine, err := pagination.New(fetcher, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create pagination engine")
	}

	addr := ":" + port
	log.Info().
		Str("addr", addr).
		Str("upstream", upstreamURL).
		Str("user_agent", userAgent).
		Msg("Starting catalog proxy server")

	if err := http.ListenAndServe(addr, newServer(engine)); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func newServer(engine *pagination.Engine) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/listings", listingsHandler(engine))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

// listingQuery builds the listing query from the request parameters.
func listingQuery(r *http.Request) cache.Query {
	vars := make(map[string]any)
	for _, key := range []string{"source", "type", "query"} {
		if value := r.URL.Query().Get(key); value != "" {
			vars[key] = value
		}
	}
	return cache.Query{
		Operation: client.SourceMangasEndpoint.Operation.Name,
		Variables: vars,
	}
}

type pageJSON struct {
	Page        int      `json:"page"`
	ItemIDs     []string `json:"item_ids,omitempty"`
	HasNextPage bool     `json:"has_next_page"`
	Loading     bool     `json:"loading,omitempty"`
	Validating  bool     `json:"validating,omitempty"`
	Error       string   `json:"error,omitempty"`
}

type viewJSON struct {
	Signature        string     `json:"signature"`
	Size             int        `json:"size"`
	IsLoading        bool       `json:"is_loading"`
	IsLoadingInitial bool       `json:"is_loading_initial"`
	IsLoadingMore    bool       `json:"is_loading_more"`
	IsValidating     bool       `json:"is_validating"`
	Error            string     `json:"error,omitempty"`
	Pages            []pageJSON `json:"pages"`
}

func toJSON(v pagination.View) viewJSON {
	out := viewJSON{
		Signature:        v.Signature.String(),
		Size:             v.Size,
		IsLoading:        v.IsLoading,
		IsLoadingInitial: v.IsLoadingInitial,
		IsLoadingMore:    v.IsLoadingMore,
		IsValidating:     v.IsValidating,
		Pages:            make([]pageJSON, 0, len(v.Pages)),
	}
	if v.Err != nil {
		out.Error = v.Err.Error()
	}
	for _, entry := range v.Pages {
		p := pageJSON{Page: entry.Page, Loading: entry.Loading, Validating: entry.Validating}
		if entry.Result != nil {
			p.ItemIDs = entry.Result.ItemIDs
			p.HasNextPage = entry.Result.HasNextPage
		}
		if entry.Err != nil {
			p.Error = entry.Err.Error()
		}
		out.Pages = append(out.Pages, p)
	}
	return out
}

// listingsHandler serves GET (request a page and return the view) and
// DELETE (reset the listing).
func listingsHandler(engine *pagination.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := listingQuery(r)

		switch r.Method {
		case http.MethodGet:
			page := 1
			if raw := r.URL.Query().Get("page"); raw != "" {
				n, err := strconv.Atoi(raw)
				if err != nil {
					http.Error(w, "page must be a number", http.StatusBadRequest)
					return
				}
				page = n
			}

			ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
			defer cancel()

			if _, err := engine.RequestPage(ctx, q, page); err != nil {
				writeError(w, err)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(toJSON(engine.View(q))); err != nil {
				log.Warn().Err(err).Msg("Failed to write response")
			}

		case http.MethodDelete:
			if err := engine.Reset(r.Context(), q); err != nil {
				http.Error(w, fmt.Sprintf("reset failed: %v", err), http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)

		default:
			w.Header().Set("Allow", "GET, DELETE")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, pagination.ErrInvalidPage):
		status = http.StatusBadRequest
	case client.IsCancellation(err):
		status = http.StatusGatewayTimeout
	}
	http.Error(w, fmt.Sprintf("catalog request failed: %v", err), status)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
