package main

import (
	"encoding/json"
	"html/template"
	"io"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/smallstep/pkcs7"

	"github.com/vocdoni/gofirma/biosign/internal/codec"
	"github.com/vocdoni/gofirma/biosign/internal/metrics"
	"github.com/vocdoni/gofirma/biosign/internal/model"
	"github.com/vocdoni/gofirma/biosign/internal/net"
)

const maxUploadSize = 64 << 20

// demoDocument is the smallest PDF most viewers accept.
var demoDocument = []byte("%PDF-1.4\n1 0 obj<</Type/Catalog/Pages 2 0 R>>endobj\n" +
	"2 0 obj<</Type/Pages/Kids[3 0 R]/Count 1>>endobj\n" +
	"3 0 obj<</Type/Page/Parent 2 0 R/MediaBox[0 0 595 842]>>endobj\n" +
	"trailer<</Root 1 0 R>>\n%%EOF\n")

type received struct {
	ReceiptID  string
	ReceivedAt string
	Size       int
	Signed     bool
	Manifest   *model.UploadManifest
}

type taskState struct {
	ID      string
	Title   string
	Task    *model.SignTask
	Uploads []received
}

type server struct {
	baseURL       string
	recipientCert string // Base64, embedded in encrypted tasks

	mu    sync.Mutex
	tasks map[string]*taskState
}

func newServer(baseURL, recipientCert string) *server {
	return &server{
		baseURL:       baseURL,
		recipientCert: recipientCert,
		tasks:         make(map[string]*taskState),
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", s.handleIndex)
	r.Get("/task/{id}", s.handleTask)
	r.Get("/doc/{id}", s.handleDocument)
	r.Post("/upload/{id}", s.handleUpload)
	return r
}

func (s *server) addDemoTasks() error {
	if _, err := s.addTask("Contracte de lloguer", []model.SignerInfo{
		{Name: "Astrid", Surname1: "Idoate", Surname2: "Gil", ID: "12345678Z"},
	}, false); err != nil {
		return err
	}
	_, err := s.addTask("Acord de col·laboració", []model.SignerInfo{
		{Name: "Astrid", Surname1: "Idoate", Surname2: "Gil", ID: "12345678Z"},
		{Name: "Pau", Surname1: "Escrich", ID: "47824166J"},
	}, true)
	return err
}

// addTask publishes a task for the given signers. encrypt embeds the
// server's certificate so biometric data is enveloped for it.
func (s *server) addTask(title string, signers []model.SignerInfo, encrypt bool) (string, error) {
	id := uuid.NewString()
	p := model.SignTaskParams{
		RetrieveURL:      s.baseURL + "/doc/" + id,
		SaveURL:          s.baseURL + "/upload/" + id,
		SaveURLPostParam: net.DefaultDocumentField,
		CompletionParams: map[string]string{model.ParamSignReason: title},
	}
	if encrypt {
		p.Cert = s.recipientCert
	}
	for i, signer := range signers {
		p.BioSigns = append(p.BioSigns, model.BioSign{
			Signer:        signer,
			HTML:          "<html><body><p>" + template.HTMLEscapeString(title) + "</p></body></html>",
			SignatureArea: model.Rect{X: 60 + 250*i, Y: 60, Width: 200, Height: 80},
			SecondaryArea: model.Rect{X: 60 + 250*i, Y: 150, Width: 200, Height: 30},
		})
	}
	task, err := model.NewSignTask(p)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.tasks[id] = &taskState{ID: id, Title: title, Task: task}
	s.mu.Unlock()
	log.Printf("DEBUG: Published task %s (%s, %d signers)", id, title, len(signers))
	return id, nil
}

func (s *server) lookup(r *http.Request) (*taskState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[chi.URLParam(r, "id")]
	return t, ok
}

func (s *server) handleTask(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookup(r)
	if !ok {
		http.Error(w, "Task not found", http.StatusNotFound)
		return
	}
	encoded, err := codec.EncodeBase64(t.Task)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=us-ascii")
	io.WriteString(w, encoded)
}

func (s *server) handleDocument(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.lookup(r); !ok {
		http.Error(w, "Task not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Write(demoDocument)
}

func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookup(r)
	if !ok {
		metrics.RecordUpload("unknown_task")
		http.Error(w, "Task not found", http.StatusNotFound)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		metrics.RecordUpload("bad_request")
		http.Error(w, "Invalid multipart body", http.StatusBadRequest)
		return
	}
	field := t.Task.SaveURLPostParam()
	if field == "" {
		field = net.DefaultDocumentField
	}
	doc, err := formFile(r, field)
	if err != nil || len(doc) == 0 {
		metrics.RecordUpload("bad_request")
		http.Error(w, "Missing document field "+field, http.StatusBadRequest)
		return
	}

	rec := received{
		ReceiptID:  uuid.NewString(),
		ReceivedAt: time.Now().Format(time.RFC3339),
		Size:       len(doc),
	}
	if sig, err := formFile(r, net.FieldSignature); err == nil {
		p7, err := pkcs7.Parse(sig)
		if err == nil {
			p7.Content = doc
			err = p7.Verify()
		}
		if err != nil {
			log.Printf("ERROR: Signature verification failed for %s: %v", t.ID, err)
			metrics.RecordUpload("rejected")
			http.Error(w, "Verification failed", http.StatusBadRequest)
			return
		}
		rec.Signed = true
	}
	if raw, err := formFile(r, net.FieldManifest); err == nil {
		var m model.UploadManifest
		if err := json.Unmarshal(raw, &m); err != nil {
			metrics.RecordUpload("bad_request")
			http.Error(w, "Invalid manifest", http.StatusBadRequest)
			return
		}
		rec.Manifest = &m
	}

	s.mu.Lock()
	t.Uploads = append(t.Uploads, rec)
	s.mu.Unlock()
	metrics.RecordUpload("ok")
	log.Printf("DEBUG: Upload %s accepted for task %s (%d bytes, signed=%t)", rec.ReceiptID, t.ID, rec.Size, rec.Signed)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(model.SubmitReceipt{
		Status:     "ok",
		ReceiptID:  rec.ReceiptID,
		ReceivedAt: rec.ReceivedAt,
	})
}

func formFile(r *http.Request, name string) ([]byte, error) {
	f, _, err := r.FormFile(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>biosign taskserver</title></head>
<body>
<h1>Published sign tasks</h1>
{{range .Tasks}}
<section>
  <h2>{{.Title}}</h2>
  <p>Task: <code>{{$.BaseURL}}/task/{{.ID}}</code></p>
  <p>Signers: {{.Signers}} | Uploads received: {{.Uploads}}</p>
  <pre>{{.Summary}}</pre>
</section>
{{end}}
</body>
</html>`))

// indexEntry is a copy of a task's state taken under the server lock.
type indexEntry struct {
	ID      string
	Title   string
	Signers int
	Uploads int
	Summary string
}

func (s *server) snapshot() []indexEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]indexEntry, 0, len(s.tasks))
	for _, t := range s.tasks {
		entries = append(entries, indexEntry{
			ID:      t.ID,
			Title:   t.Title,
			Signers: len(t.Task.BioSigns()),
			Uploads: len(t.Uploads),
			Summary: t.Task.String(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Title < entries[j].Title })
	return entries
}

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, struct {
		Tasks   []indexEntry
		BaseURL string
	}{s.snapshot(), s.baseURL}); err != nil {
		log.Printf("ERROR: Failed to render index: %v", err)
	}
}
