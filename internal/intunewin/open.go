package intunewin

import (
	"bytes"
	"crypto/hmac"
	"fmt"
)

// Open parses a container produced by Build.
func Open(container []byte) (*Package, error) {
	files, err := readArchive(container)
	if err != nil {
		return nil, err
	}

	detection, ok := files[descriptorPath]
	if !ok {
		return nil, fmt.Errorf("%w: %s not found", ErrMalformed, descriptorPath)
	}

	metadata, err := ParseDescriptor(detection)
	if err != nil {
		return nil, err
	}

	payload, ok := files[contentsDir+metadata.FileName]
	if !ok {
		return nil, fmt.Errorf("%w: payload %s not found", ErrMalformed, metadata.FileName)
	}

	return &Package{
		Metadata: metadata,
		Payload:  payload,
	}, nil
}

// Decrypt verifies payload against info and returns the inner archive.
func Decrypt(payload []byte, info *EncryptionInfo) ([]byte, error) {
	if len(payload) < payloadHeaderSize+ivSize {
		return nil, fmt.Errorf("%w: payload is %d bytes", ErrMalformed, len(payload))
	}

	key, err := decode("EncryptionKey", info.EncryptionKey)
	if err != nil {
		return nil, err
	}

	macKey, err := decode("MacKey", info.MacKey)
	if err != nil {
		return nil, err
	}

	expectedMAC, err := decode("Mac", info.Mac)
	if err != nil {
		return nil, err
	}

	mac := payload[:macSize]
	iv := payload[macSize:payloadHeaderSize]
	ciphertext := payload[payloadHeaderSize:]

	computed := computeMAC(macKey, payload[macSize:])
	if !hmac.Equal(computed, mac) || !hmac.Equal(computed, expectedMAC) {
		return nil, ErrMACMismatch
	}

	if info.InitializationVector != "" {
		declared, err := decode("InitializationVector", info.InitializationVector)
		if err != nil {
			return nil, err
		}

		if !bytes.Equal(declared, iv) {
			return nil, fmt.Errorf("%w: initialization vector differs from descriptor", ErrMalformed)
		}
	}

	inner, err := decryptCBC(ciphertext, key, iv)
	if err != nil {
		return nil, err
	}

	if digest(inner) != info.FileDigest {
		return nil, ErrDigestMismatch
	}

	return inner, nil
}

// ReadSetupFile extracts the single installer entry of a decrypted inner archive.
func ReadSetupFile(inner []byte) (string, []byte, error) {
	files, err := readArchive(inner)
	if err != nil {
		return "", nil, err
	}

	if len(files) != 1 {
		return "", nil, fmt.Errorf("%w: inner archive holds %d files", ErrMalformed, len(files))
	}

	for name, data := range files {
		return name, data, nil
	}

	return "", nil, nil
}
