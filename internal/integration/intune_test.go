package integration

import (
	"encoding/json"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/oshokin/intuneforge/internal/graph"
	"github.com/oshokin/intuneforge/internal/intunewin"
)

const (
	fakeAppID            = "app-1"
	fakeContentVersionID = "1"
	fakeFileID           = "file-1"
	fakeToken            = "secret"

	statePending       = "azureStorageUriRequestPending"
	stateCommitPending = "commitFilePending"
)

// fakeIntune emulates the Graph endpoints used by a deployment together
// with the storage account the payload is uploaded to.
type fakeIntune struct {
	server *httptest.Server

	mu sync.Mutex
	// rejectCommit makes the commit validation fail.
	rejectCommit bool
	// app is the body of the app creation request.
	app map[string]any
	// file is the body of the content file creation request.
	file map[string]any
	// uploadState is the current state of the content file.
	uploadState string
	// blocks holds uploaded but not yet committed blocks.
	blocks map[string][]byte
	// blob is the committed payload.
	blob []byte
	// inner is the decrypted payload after a successful commit.
	inner []byte
	// committedVersion is set by the final app update.
	committedVersion string
	// assignments are the bodies of the assignment requests.
	assignments []map[string]any
	// unauthorized counts Graph requests without the expected bearer token.
	unauthorized int
	// storageAuth counts storage requests that carried an Authorization header.
	storageAuth int
}

func newFakeIntune(t *testing.T) *fakeIntune {
	t.Helper()

	f := &fakeIntune{blocks: make(map[string][]byte)}

	const (
		apps  = "/beta/deviceAppManagement/mobileApps"
		app   = apps + "/{app}"
		files = app + "/microsoft.graph.win32LobApp/contentVersions/{cv}/files"
	)

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+apps, f.authorized(f.createApp))
	mux.HandleFunc("PATCH "+app, f.authorized(f.updateApp))
	mux.HandleFunc("POST "+app+"/assignments", f.authorized(f.createAssignment))
	mux.HandleFunc("POST "+app+"/microsoft.graph.win32LobApp/contentVersions", f.authorized(f.createContentVersion))
	mux.HandleFunc("POST "+files, f.authorized(f.createFile))
	mux.HandleFunc("GET "+files+"/{file}", f.authorized(f.getFile))
	mux.HandleFunc("POST "+files+"/{file}/commit", f.authorized(f.commitFile))
	mux.HandleFunc("GET /v1.0/groups", f.authorized(f.listGroups))
	mux.HandleFunc("PUT /blob/payload", f.putBlob)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)

	return f
}

func (f *fakeIntune) URL() string {
	return f.server.URL
}

// authorized checks the bearer token and serializes access to the fake state.
func (f *fakeIntune) authorized(next func(w http.ResponseWriter, r *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		if r.Header.Get("Authorization") != "Bearer "+fakeToken {
			f.unauthorized++

			http.Error(w, `{"error":{"code":"InvalidAuthenticationToken"}}`, http.StatusUnauthorized)

			return
		}

		next(w, r)
	}
}

func (f *fakeIntune) createApp(w http.ResponseWriter, r *http.Request) {
	if err := decodeBody(r, &f.app); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": fakeAppID})
}

func (f *fakeIntune) createContentVersion(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("app") != fakeAppID {
		http.NotFound(w, r)

		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": fakeContentVersionID})
}

func (f *fakeIntune) createFile(w http.ResponseWriter, r *http.Request) {
	if err := decodeBody(r, &f.file); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	f.uploadState = statePending

	writeJSON(w, http.StatusCreated, map[string]any{"id": fakeFileID, "uploadState": f.uploadState})
}

func (f *fakeIntune) getFile(w http.ResponseWriter, r *http.Request) {
	if r.PathValue("file") != fakeFileID {
		http.NotFound(w, r)

		return
	}

	// Every pending state resolves on the poll after it was observed.
	body := map[string]any{"id": fakeFileID, "uploadState": f.uploadState}

	switch f.uploadState {
	case statePending:
		f.uploadState = graph.UploadStateStorageURIRequestSuccess
	case stateCommitPending:
		if f.rejectCommit {
			f.uploadState = graph.UploadStateCommitFileFailed
		} else {
			f.uploadState = graph.UploadStateCommitFileSuccess
		}
	case graph.UploadStateStorageURIRequestSuccess:
		body["azureStorageUri"] = f.server.URL + "/blob/payload?sv=2024-01-01&sig=abc"
	case graph.UploadStateCommitFileSuccess:
		body["isCommitted"] = true
	}

	writeJSON(w, http.StatusOK, body)
}

func (f *fakeIntune) commitFile(w http.ResponseWriter, r *http.Request) {
	var request struct {
		FileEncryptionInfo graph.FileEncryptionInfo `json:"fileEncryptionInfo"`
	}

	if err := decodeBody(r, &request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	sent := request.FileEncryptionInfo
	info := intunewin.EncryptionInfo{
		EncryptionKey:        sent.EncryptionKey,
		MacKey:               sent.MacKey,
		InitializationVector: sent.InitializationVector,
		Mac:                  sent.Mac,
		ProfileIdentifier:    sent.ProfileIdentifier,
		FileDigest:           sent.FileDigest,
		FileDigestAlgorithm:  sent.FileDigestAlgorithm,
	}

	inner, err := intunewin.Decrypt(f.blob, &info)
	if err != nil {
		f.rejectCommit = true
	} else {
		f.inner = inner
	}

	f.uploadState = stateCommitPending

	w.WriteHeader(http.StatusOK)
}

func (f *fakeIntune) updateApp(w http.ResponseWriter, r *http.Request) {
	var request struct {
		CommittedContentVersion string `json:"committedContentVersion"`
	}

	if err := decodeBody(r, &request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	f.committedVersion = request.CommittedContentVersion

	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeIntune) createAssignment(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeBody(r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	f.assignments = append(f.assignments, body)

	writeJSON(w, http.StatusCreated, body)
}

func (f *fakeIntune) listGroups(w http.ResponseWriter, r *http.Request) {
	groups := []map[string]string{
		{"id": "g-1", "displayName": "Pilot Ring"},
	}

	if r.URL.Query().Get("$filter") == "" {
		groups = append(groups, map[string]string{"id": "g-2", "displayName": "Finance"})
	}

	writeJSON(w, http.StatusOK, map[string]any{"value": groups})
}

func (f *fakeIntune) putBlob(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get("Authorization") != "" {
		f.storageAuth++
	}

	if r.Header.Get("x-ms-blob-type") != "BlockBlob" {
		http.Error(w, "missing blob type", http.StatusBadRequest)

		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)

		return
	}

	query := r.URL.Query()

	switch query.Get("comp") {
	case "block":
		f.blocks[query.Get("blockid")] = body
	case "blocklist":
		var list struct {
			Latest []string `xml:"Latest"`
		}

		if err = xml.Unmarshal(body, &list); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)

			return
		}

		f.blob = nil

		for _, id := range list.Latest {
			block, ok := f.blocks[id]
			if !ok {
				http.Error(w, "unknown block "+id, http.StatusBadRequest)

				return
			}

			f.blob = append(f.blob, block...)
		}
	default:
		http.Error(w, "unsupported comp", http.StatusBadRequest)

		return
	}

	w.WriteHeader(http.StatusCreated)
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
