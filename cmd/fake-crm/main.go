// ABOUTME: Fake CRM backend for local development and E2E testing.
// ABOUTME: Usage: fake-crm [-addr localhost:9101] [-config seed.toml]

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

// seedConfig is the TOML seed file format. Example:
//
//	api_keys = ["dev-key"]
//
//	[[records.accounts]]
//	name = "Acme"
//	stage = "won"
type seedConfig struct {
	APIKeys []string                    `toml:"api_keys"`
	Records map[string][]map[string]any `toml:"records"`
}

// backend holds the fake CRM's mutable state.
type backend struct {
	mu       sync.Mutex
	apiKeys  map[string]bool
	sessions map[string]bool
	records  map[string][]map[string]any
}

func newBackend(seed seedConfig) *backend {
	b := &backend{
		apiKeys:  make(map[string]bool),
		sessions: make(map[string]bool),
		records:  make(map[string][]map[string]any),
	}
	for _, key := range seed.APIKeys {
		b.apiKeys[key] = true
	}
	for object, recs := range seed.Records {
		for _, rec := range recs {
			if rec["id"] == nil {
				rec["id"] = uuid.New().String()
			}
			b.records[object] = append(b.records[object], rec)
		}
	}
	return b
}

func main() {
	addr := flag.String("addr", "localhost:9101", "HTTP listen address")
	configPath := flag.String("config", "", "TOML seed file (optional)")
	flag.Parse()

	seed := seedConfig{APIKeys: []string{"dev-key"}}
	if *configPath != "" {
		if _, err := toml.DecodeFile(*configPath, &seed); err != nil {
			log.Fatalf("loading seed file: %v", err)
		}
	}

	b := newBackend(seed)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", b.handleLogin)
	mux.HandleFunc("GET /records/{object}", b.handleListRecords)
	mux.HandleFunc("POST /records/{object}", b.handleCreateRecord)
	mux.HandleFunc("GET /search", b.handleSearch)
	mux.HandleFunc("GET /objects/{object}/describe", b.handleDescribe)

	fmt.Printf("fake-crm listening on %s\n", *addr)
	log.Fatal(http.ListenAndServe(*addr, mux))
}

func (b *backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		APIKey string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.apiKeys[body.APIKey] {
		writeJSONStatus(w, http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
		return
	}

	token := uuid.New().String()
	b.sessions[token] = true
	writeJSONStatus(w, http.StatusOK, map[string]string{"session_token": token})
}

// authorize checks the session header; returns false after writing the
// error response.
func (b *backend) authorize(w http.ResponseWriter, r *http.Request) bool {
	b.mu.Lock()
	ok := b.sessions[r.Header.Get("X-Session-Token")]
	b.mu.Unlock()
	if !ok {
		writeJSONStatus(w, http.StatusUnauthorized, map[string]string{"error": "invalid session"})
	}
	return ok
}

func (b *backend) handleListRecords(w http.ResponseWriter, r *http.Request) {
	if !b.authorize(w, r) {
		return
	}
	object := r.PathValue("object")

	b.mu.Lock()
	recs := b.records[object]
	b.mu.Unlock()

	if recs == nil {
		recs = []map[string]any{}
	}
	writeJSONStatus(w, http.StatusOK, map[string]any{"records": recs, "total": len(recs)})
}

func (b *backend) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	if !b.authorize(w, r) {
		return
	}
	object := r.PathValue("object")

	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeJSONStatus(w, http.StatusBadRequest, map[string]string{"error": "invalid record body"})
		return
	}
	fields["id"] = uuid.New().String()

	b.mu.Lock()
	b.records[object] = append(b.records[object], fields)
	b.mu.Unlock()

	writeJSONStatus(w, http.StatusCreated, fields)
}

func (b *backend) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !b.authorize(w, r) {
		return
	}
	query := strings.ToLower(r.URL.Query().Get("q"))

	b.mu.Lock()
	var results []map[string]any
	for object, recs := range b.records {
		for _, rec := range recs {
			if recordMatches(rec, query) {
				match := map[string]any{"object": object}
				for k, v := range rec {
					match[k] = v
				}
				results = append(results, match)
			}
		}
	}
	b.mu.Unlock()

	if results == nil {
		results = []map[string]any{}
	}
	writeJSONStatus(w, http.StatusOK, map[string]any{"results": results, "total": len(results)})
}

// recordMatches reports whether any string field contains the query.
func recordMatches(rec map[string]any, query string) bool {
	if query == "" {
		return false
	}
	for _, v := range rec {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), query) {
			return true
		}
	}
	return false
}

func (b *backend) handleDescribe(w http.ResponseWriter, r *http.Request) {
	if !b.authorize(w, r) {
		return
	}
	object := r.PathValue("object")

	b.mu.Lock()
	recs := b.records[object]
	b.mu.Unlock()

	if len(recs) == 0 {
		writeJSONStatus(w, http.StatusNotFound, map[string]string{"error": "unknown object: " + object})
		return
	}

	// Derive a field list from the first seeded record
	fields := make([]map[string]string, 0, len(recs[0]))
	for name := range recs[0] {
		fields = append(fields, map[string]string{"name": name, "type": "string"})
	}
	writeJSONStatus(w, http.StatusOK, map[string]any{"object": object, "fields": fields})
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
