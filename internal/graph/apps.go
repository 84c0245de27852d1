package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/oshokin/intuneforge/internal/intunewin"
	"github.com/oshokin/intuneforge/internal/remote"
)

// Operation names carried by *remote.RequestError.
const (
	OpCreateApp            = "create app"
	OpCreateContentVersion = "create content version"
	OpCreateContentFile    = "create content file"
	OpGetContentFile       = "get content file"
	OpCommitContentFile    = "commit content file"
	OpSetCommittedVersion  = "set committed content version"
	OpCreateAssignment     = "create assignment"
	OpListGroups           = "list groups"
)

// Upload states reported on a content file.
const (
	UploadStateStorageURIRequestSuccess = "azureStorageUriRequestSuccess"
	UploadStateStorageURIRequestFailed  = "azureStorageUriRequestFailed"
	UploadStateCommitFileSuccess        = "commitFileSuccess"
	UploadStateCommitFileFailed         = "commitFileFailed"
)

var errMissingID = errors.New("response has no id")

// MobileApp is the part of a created app the deployer needs.
type MobileApp struct {
	ID string `json:"id"`
}

// ContentVersion is a container for the uploaded files of an app.
type ContentVersion struct {
	ID string `json:"id"`
}

// ContentFile is an upload slot within a content version.
type ContentFile struct {
	ID              string `json:"id"`
	AzureStorageURI string `json:"azureStorageUri"`
	IsCommitted     bool   `json:"isCommitted"`
	UploadState     string `json:"uploadState"`

	// Raw is the full response, kept for diagnostics.
	Raw json.RawMessage `json:"-"`
}

// NewContentFile describes a file about to be uploaded.
type NewContentFile struct {
	Name          string
	Size          int64
	SizeEncrypted int64
}

type contentFileRequest struct {
	ODataType     string `json:"@odata.type"`
	Name          string `json:"name"`
	Size          int64  `json:"size"`
	SizeEncrypted int64  `json:"sizeEncrypted"`
	IsDependency  bool   `json:"isDependency"`
}

// FileEncryptionInfo is the body of the commit call.
type FileEncryptionInfo struct {
	EncryptionKey        string `json:"encryptionKey"`
	MacKey               string `json:"macKey"`
	InitializationVector string `json:"initializationVector"`
	Mac                  string `json:"mac"`
	ProfileIdentifier    string `json:"profileIdentifier"`
	FileDigest           string `json:"fileDigest"`
	FileDigestAlgorithm  string `json:"fileDigestAlgorithm"`
}

// NewFileEncryptionInfo copies the encryption fields of a container descriptor.
func NewFileEncryptionInfo(info *intunewin.EncryptionInfo) FileEncryptionInfo {
	return FileEncryptionInfo{
		EncryptionKey:        info.EncryptionKey,
		MacKey:               info.MacKey,
		InitializationVector: info.InitializationVector,
		Mac:                  info.Mac,
		ProfileIdentifier:    info.ProfileIdentifier,
		FileDigest:           info.FileDigest,
		FileDigestAlgorithm:  info.FileDigestAlgorithm,
	}
}

// String keeps key material out of logs.
func (FileEncryptionInfo) String() string {
	return "FileEncryptionInfo{redacted}"
}

type commitRequest struct {
	FileEncryptionInfo FileEncryptionInfo `json:"fileEncryptionInfo"`
}

type committedVersionRequest struct {
	ODataType               string `json:"@odata.type"`
	CommittedContentVersion string `json:"committedContentVersion"`
}

// CreateWin32App registers a new app and returns its identifier.
func (c *Client) CreateWin32App(ctx context.Context, app *Win32LobApp) (string, error) {
	var created MobileApp

	if err := c.do(ctx, OpCreateApp, http.MethodPost, c.rootURL+mobileAppsPath, app, &created); err != nil {
		return "", err
	}

	if created.ID == "" {
		return "", fmt.Errorf("%s: %w", OpCreateApp, errMissingID)
	}

	return created.ID, nil
}

// CreateContentVersion opens a new content version for appID.
func (c *Client) CreateContentVersion(ctx context.Context, appID string) (string, error) {
	var created ContentVersion

	err := c.do(ctx, OpCreateContentVersion, http.MethodPost, c.contentVersionsURL(appID), struct{}{}, &created)
	if err != nil {
		return "", err
	}

	if created.ID == "" {
		return "", fmt.Errorf("%s: %w", OpCreateContentVersion, errMissingID)
	}

	return created.ID, nil
}

// CreateContentFile announces an upload and returns the new file slot.
func (c *Client) CreateContentFile(
	ctx context.Context,
	appID, contentVersionID string,
	file NewContentFile,
) (*ContentFile, error) {
	body := contentFileRequest{
		ODataType:     odataMobileAppContentFile,
		Name:          file.Name,
		Size:          file.Size,
		SizeEncrypted: file.SizeEncrypted,
		IsDependency:  false,
	}

	var created ContentFile

	err := c.do(ctx, OpCreateContentFile, http.MethodPost, c.filesURL(appID, contentVersionID), body, &created)
	if err != nil {
		return nil, err
	}

	if created.ID == "" {
		return nil, fmt.Errorf("%s: %w", OpCreateContentFile, errMissingID)
	}

	return &created, nil
}

// GetContentFile reads the current state of a file slot.
func (c *Client) GetContentFile(ctx context.Context, appID, contentVersionID, fileID string) (*ContentFile, error) {
	res, err := c.send(ctx, OpGetContentFile, http.MethodGet, c.fileURL(appID, contentVersionID, fileID), nil)
	if err != nil {
		return nil, err
	}

	defer remote.Drain(res)

	raw, err := io.ReadAll(io.LimitReader(res.Body, remote.MaxJSONBodySize))
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", OpGetContentFile, err)
	}

	var file ContentFile
	if err = json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", OpGetContentFile, err)
	}

	file.Raw = raw

	return &file, nil
}

// CommitContentFile asks the service to validate the uploaded payload.
func (c *Client) CommitContentFile(
	ctx context.Context,
	appID, contentVersionID, fileID string,
	info FileEncryptionInfo,
) error {
	url := c.fileURL(appID, contentVersionID, fileID) + "/commit"

	return c.do(ctx, OpCommitContentFile, http.MethodPost, url, commitRequest{FileEncryptionInfo: info}, nil)
}

// SetCommittedContentVersion points the app at a committed content version.
func (c *Client) SetCommittedContentVersion(ctx context.Context, appID, contentVersionID string) error {
	body := committedVersionRequest{
		ODataType:               odataWin32LobApp,
		CommittedContentVersion: contentVersionID,
	}

	return c.do(ctx, OpSetCommittedVersion, http.MethodPatch, c.appURL(appID), body, nil)
}

// CreateAssignment assigns the app to an audience.
func (c *Client) CreateAssignment(ctx context.Context, appID string, assignment *MobileAppAssignment) error {
	return c.do(ctx, OpCreateAssignment, http.MethodPost, c.appURL(appID)+"/assignments", assignment, nil)
}
