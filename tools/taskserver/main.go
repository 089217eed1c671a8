// Command taskserver is a development producer. It publishes Base64 sign
// tasks, serves the document they point at and accepts the uploads a
// consumer sends back.
package main

import (
	"crypto/x509/pkix"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vocdoni/gofirma/biosign/internal/crypto/certs"
	"github.com/vocdoni/gofirma/biosign/internal/metrics"
)

func main() {
	var (
		port   int
		domain string
		rps    int
	)
	flag.IntVar(&port, "port", 8080, "Port to listen on")
	flag.StringVar(&domain, "domain", "localhost:8080", "Domain used in task URLs")
	flag.IntVar(&rps, "rps", 5, "Requests per second allowed per client IP")
	flag.Parse()

	baseURL := domain
	if !strings.HasPrefix(baseURL, "http") {
		baseURL = "http://" + baseURL
	}

	_, cert, err := certs.NewSelfSigned(pkix.Name{CommonName: "biosign taskserver", Organization: []string{"Vocdoni"}}, 365*24*time.Hour)
	if err != nil {
		log.Fatalf("Failed to generate recipient identity: %v", err)
	}

	srv := newServer(baseURL, certs.EncodeBase64(cert))
	if err := srv.addDemoTasks(); err != nil {
		log.Fatalf("Failed to build demo tasks: %v", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(newIPRateLimiter(rps, rps*2).Middleware)
	r.Handle("/metrics", metrics.Handler())
	r.Mount("/", srv.routes())

	addr := fmt.Sprintf("0.0.0.0:%d", port)
	log.Printf("biosign taskserver listening on %s (base URL: %s)", addr, baseURL)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
