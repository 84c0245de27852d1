package intunewin

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecrypt_Tampering(t *testing.T) {
	t.Parallel()

	result, err := Build(context.Background(), newInfo([]byte("tamper me")))
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(payload []byte, info *EncryptionInfo) []byte
		wantErr error
	}{
		{
			name: "flipped ciphertext bit",
			mutate: func(payload []byte, _ *EncryptionInfo) []byte {
				payload[len(payload)-1] ^= 0x01

				return payload
			},
			wantErr: ErrMACMismatch,
		},
		{
			name: "flipped IV bit",
			mutate: func(payload []byte, _ *EncryptionInfo) []byte {
				payload[macSize] ^= 0x01

				return payload
			},
			wantErr: ErrMACMismatch,
		},
		{
			name: "descriptor MAC differs",
			mutate: func(payload []byte, info *EncryptionInfo) []byte {
				info.Mac = encode(make([]byte, macSize))

				return payload
			},
			wantErr: ErrMACMismatch,
		},
		{
			name: "descriptor digest differs",
			mutate: func(payload []byte, info *EncryptionInfo) []byte {
				info.FileDigest = digest([]byte("something else"))

				return payload
			},
			wantErr: ErrDigestMismatch,
		},
		{
			name: "truncated payload",
			mutate: func(payload []byte, _ *EncryptionInfo) []byte {
				return payload[:payloadHeaderSize]
			},
			wantErr: ErrMalformed,
		},
		{
			name: "key is not base64",
			mutate: func(payload []byte, info *EncryptionInfo) []byte {
				info.EncryptionKey = "%%%"

				return payload
			},
			wantErr: ErrMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			payload := append([]byte(nil), result.Payload...)
			info := result.Metadata.EncryptionInfo

			_, err := Decrypt(tt.mutate(payload, &info), &info)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOpen_Malformed(t *testing.T) {
	t.Parallel()

	_, err := Open([]byte("not a zip"))
	require.ErrorIs(t, err, ErrMalformed)

	inner, err := writeArchive(fixedClock(), archiveEntry{name: "setup.exe", data: []byte("x")})
	require.NoError(t, err)

	_, err = Open(inner)
	require.ErrorIs(t, err, ErrMalformed)

	detection, err := MarshalDescriptor(&Metadata{FileName: "missing.bin"})
	require.NoError(t, err)

	container, err := writeArchive(fixedClock(), archiveEntry{name: descriptorPath, data: detection})
	require.NoError(t, err)

	_, err = Open(container)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDescriptor(t *testing.T) {
	t.Parallel()

	m := &Metadata{
		Name:                   `Tom & Jerry <"beta">`,
		UnencryptedContentSize: 42,
		FileName:               "0b3c.bin",
		SetupFile:              "setup.msi",
		EncryptionInfo: EncryptionInfo{
			EncryptionKey:        "a2V5",
			MacKey:               "bWFj",
			InitializationVector: "aXY=",
			Mac:                  "bWFjdmFs",
			ProfileIdentifier:    ProfileVersion1,
			FileDigest:           "ZGlnZXN0",
			FileDigestAlgorithm:  DigestAlgorithmSHA256,
		},
	}

	doc, err := MarshalDescriptor(m)
	require.NoError(t, err)

	text := string(doc)
	require.True(t, strings.HasPrefix(text, `<?xml version="1.0" encoding="UTF-8"?>`))
	require.Contains(t, text, `<ApplicationInfo xmlns:xsd="http://www.w3.org/2001/XMLSchema" `+
		`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" ToolVersion="1.8.5.0">`)
	require.Contains(t, text, "<Name>Tom &amp; Jerry &lt;&#34;beta&#34;&gt;</Name>")
	require.Contains(t, text, "<UnencryptedContentSize>42</UnencryptedContentSize>")
	require.Contains(t, text, "<ProfileIdentifier>ProfileVersion1</ProfileIdentifier>")

	parsed, err := ParseDescriptor(doc)
	require.NoError(t, err)
	require.Equal(t, m, parsed)
}

func TestPKCS7(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, 1, 15, 16, 17, 32} {
		data := make([]byte, size)

		padded := pkcs7Pad(data, ivSize)
		require.Zero(t, len(padded)%ivSize)
		require.Greater(t, len(padded), size)

		unpadded, err := pkcs7Unpad(padded, ivSize)
		require.NoError(t, err)
		require.Equal(t, data, unpadded)
	}

	_, err := pkcs7Unpad([]byte{1, 2, 3, 0}, ivSize)
	require.ErrorIs(t, err, ErrMalformed)

	_, err = pkcs7Unpad([]byte{1, 2, 2, 3}, ivSize)
	require.ErrorIs(t, err, ErrMalformed)
}
