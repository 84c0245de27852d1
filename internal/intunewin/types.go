package intunewin

import (
	"errors"
	"io"
)

const (
	// ProfileVersion1 is the only encryption profile understood by the service.
	ProfileVersion1 = "ProfileVersion1"
	// DigestAlgorithmSHA256 labels the FileDigest algorithm.
	DigestAlgorithmSHA256 = "SHA256"
	// ContainerExtension is appended to the setup file name of a container.
	ContainerExtension = ".intunewin"

	contentsDir       = "IntuneWinPackage/Contents/"
	descriptorPath    = "IntuneWinPackage/Metadata/Detection.xml"
	payloadExtension  = ".bin"
	payloadHeaderSize = macSize + ivSize
)

var (
	// ErrSourceRead is returned when the installer cannot be read.
	ErrSourceRead = errors.New("read package source")
	// ErrCrypto is returned when key generation or encryption fails.
	ErrCrypto = errors.New("cryptographic failure")
	// ErrMalformed is returned when a container or payload does not follow the layout.
	ErrMalformed = errors.New("malformed container")
	// ErrMACMismatch is returned when the payload MAC does not verify.
	ErrMACMismatch = errors.New("payload MAC mismatch")
	// ErrDigestMismatch is returned when the decrypted content does not match FileDigest.
	ErrDigestMismatch = errors.New("file digest mismatch")

	errInvalidInfo = errors.New("invalid package info")
)

// PackageInfo is the input of Build.
type PackageInfo struct {
	// Name is the display name recorded in the descriptor.
	Name string
	// Version is the semantic version of the packaged app.
	Version string
	// Publisher is the vendor of the packaged app.
	Publisher string
	// SetupFile is the installer file name inside the inner archive.
	SetupFile string
	// Source yields the raw installer bytes.
	Source io.Reader
}

// Metadata describes an encrypted payload. It is embedded in the container
// as Detection.xml and sent as-is to the commit call.
type Metadata struct {
	Name                   string         `xml:"Name"`
	UnencryptedContentSize int64          `xml:"UnencryptedContentSize"`
	FileName               string         `xml:"FileName"`
	SetupFile              string         `xml:"SetupFile"`
	EncryptionInfo         EncryptionInfo `xml:"EncryptionInfo"`
}

// EncryptionInfo holds the base64 encoded encryption material and integrity values.
type EncryptionInfo struct {
	EncryptionKey        string `xml:"EncryptionKey"`
	MacKey               string `xml:"MacKey"`
	InitializationVector string `xml:"InitializationVector"`
	Mac                  string `xml:"Mac"`
	ProfileIdentifier    string `xml:"ProfileIdentifier"`
	FileDigest           string `xml:"FileDigest"`
	FileDigestAlgorithm  string `xml:"FileDigestAlgorithm"`
}

// String keeps key material out of logs and error messages.
func (EncryptionInfo) String() string {
	return "EncryptionInfo{redacted}"
}

// GoString keeps key material out of %#v output.
func (e EncryptionInfo) GoString() string {
	return e.String()
}

// Result is the output of Build.
type Result struct {
	// Container is the outer .intunewin archive, meant for download and archival.
	Container []byte
	// Payload is mac || iv || ciphertext, the body uploaded to storage.
	Payload []byte
	// Metadata describes Payload.
	Metadata *Metadata
}

// ContainerName returns the download name of the container, e.g. setup.exe.intunewin.
func (r *Result) ContainerName() string {
	return r.Metadata.SetupFile + ContainerExtension
}

// EncryptedSize is the exact byte length of Payload.
func (r *Result) EncryptedSize() int64 {
	return int64(len(r.Payload))
}

// Package is an opened container.
type Package struct {
	// Metadata is the parsed descriptor.
	Metadata *Metadata
	// Payload is the encrypted content file.
	Payload []byte
}
