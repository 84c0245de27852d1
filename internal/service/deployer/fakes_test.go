package deployer

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/intuneforge/internal/domain/win32app"
	"github.com/oshokin/intuneforge/internal/graph"
	"github.com/oshokin/intuneforge/internal/intunewin"
	"github.com/oshokin/intuneforge/internal/remote"
)

const testStorageURI = "https://account.blob.core.windows.net/c/blob?sig=abc"

var errTransport = errors.New("connection reset by peer")

// fakeAPI is an in-memory GraphAPI. Every call succeeds unless a hook says otherwise.
type fakeAPI struct {
	mu sync.Mutex

	calls       []string
	app         *graph.Win32LobApp
	file        graph.NewContentFile
	commitInfo  graph.FileEncryptionInfo
	assignments []*graph.MobileAppAssignment

	// storagePolls is how many polls return no storage URI before one appears.
	storagePolls int
	// storageState overrides the upload state reported while waiting for the URI.
	storageState string
	// commitStates are returned in order while waiting for the commit; the last one repeats.
	commitStates []string
	// finalizeErrs are returned in order by SetCommittedContentVersion; nil afterwards.
	finalizeErrs []error
	// assignErrs maps an assignment index to its failure.
	assignErrs map[int]error

	committed   bool
	polls       int
	finalizes   int
	assignCalls int
}

func (f *fakeAPI) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) CreateWin32App(_ context.Context, app *graph.Win32LobApp) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("CreateWin32App")
	f.app = app

	return "app-1", nil
}

func (f *fakeAPI) CreateContentVersion(_ context.Context, appID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("CreateContentVersion")

	if appID != "app-1" {
		return "", errors.New("unexpected app id")
	}

	return "cv-1", nil
}

func (f *fakeAPI) CreateContentFile(_ context.Context, _, contentVersionID string, file graph.NewContentFile) (*graph.ContentFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("CreateContentFile")
	f.file = file

	if contentVersionID != "cv-1" {
		return nil, errors.New("unexpected content version id")
	}

	return &graph.ContentFile{ID: "file-1"}, nil
}

func (f *fakeAPI) GetContentFile(_ context.Context, _, _, fileID string) (*graph.ContentFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("GetContentFile")
	f.polls++

	if fileID != "file-1" {
		return nil, errors.New("unexpected file id")
	}

	if !f.committed {
		if f.storageState != "" {
			return &graph.ContentFile{ID: fileID, UploadState: f.storageState, Raw: []byte(`{"uploadState":"` + f.storageState + `"}`)}, nil
		}

		if f.polls <= f.storagePolls {
			return &graph.ContentFile{ID: fileID, UploadState: "azureStorageUriRequestPending"}, nil
		}

		return &graph.ContentFile{ID: fileID, AzureStorageURI: testStorageURI, UploadState: graph.UploadStateStorageURIRequestSuccess}, nil
	}

	state := graph.UploadStateCommitFileSuccess
	if len(f.commitStates) > 0 {
		state = f.commitStates[0]
		if len(f.commitStates) > 1 {
			f.commitStates = f.commitStates[1:]
		}
	}

	return &graph.ContentFile{ID: fileID, UploadState: state, Raw: []byte(`{"uploadState":"` + state + `"}`)}, nil
}

func (f *fakeAPI) CommitContentFile(_ context.Context, _, _, _ string, info graph.FileEncryptionInfo) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("CommitContentFile")
	f.commitInfo = info
	f.committed = true
	f.polls = 0

	return nil
}

func (f *fakeAPI) SetCommittedContentVersion(_ context.Context, _, contentVersionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("SetCommittedContentVersion")
	f.finalizes++

	if contentVersionID != "cv-1" {
		return errors.New("unexpected content version id")
	}

	if len(f.finalizeErrs) == 0 {
		return nil
	}

	err := f.finalizeErrs[0]
	f.finalizeErrs = f.finalizeErrs[1:]

	return err
}

func (f *fakeAPI) CreateAssignment(_ context.Context, _ string, assignment *graph.MobileAppAssignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.record("CreateAssignment")

	index := f.assignCalls
	f.assignCalls++

	if err := f.assignErrs[index]; err != nil {
		return err
	}

	f.assignments = append(f.assignments, assignment)

	return nil
}

// fakeUploader records the upload and reports progress in two steps.
type fakeUploader struct {
	mu         sync.Mutex
	calls      int
	storageURI string
	payload    []byte
	err        error
}

func (u *fakeUploader) Upload(_ context.Context, storageURI string, payload []byte, progress func(int)) ([]string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.calls++
	u.storageURI = storageURI
	u.payload = payload

	if u.err != nil {
		return nil, u.err
	}

	progress(50)
	progress(100)

	return []string{"MDAwMDAw"}, nil
}

type progressEvent struct {
	stage   Stage
	percent int
}

type progressRecorder struct {
	mu     sync.Mutex
	events []progressEvent
}

func (r *progressRecorder) observe(stage Stage, percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, progressEvent{stage, percent})
}

func (r *progressRecorder) stages() []Stage {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stages []Stage

	for _, e := range r.events {
		if len(stages) == 0 || stages[len(stages)-1] != e.stage || e.stage == StageAssigning {
			stages = append(stages, e.stage)
		}
	}

	return stages
}

func serverError(code int, body string) error {
	return &remote.RequestError{Op: graph.OpSetCommittedVersion, StatusCode: code, Body: body}
}

func newInputs(t *testing.T, assignments ...win32app.Assignment) *Inputs {
	t.Helper()

	pkg := win32app.NewPackageConfig("agent")
	pkg.DisplayName = "Contoso Agent"
	pkg.Publisher = "Contoso"
	pkg.SetupFileName = "setup.exe"
	pkg.InstallCommandLine = "setup.exe /S"
	pkg.UninstallCommandLine = "setup.exe /uninstall"
	pkg.DetectionRules = win32app.DetectionRules{
		win32app.FileRule{Path: `C:\Program Files\Contoso`, FileOrFolderName: "agent.exe", DetectionType: win32app.FileExists},
	}
	pkg.Assignments = assignments

	result, err := intunewin.Build(context.Background(), &intunewin.PackageInfo{
		Name:      pkg.DisplayName,
		SetupFile: pkg.SetupFileName,
		Source:    bytes.NewReader([]byte("installer")),
	})
	require.NoError(t, err)

	return &Inputs{
		Package:  pkg,
		Metadata: result.Metadata,
		Payload:  result.Payload,
	}
}
