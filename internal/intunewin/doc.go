// Package intunewin builds and opens .intunewin containers.
//
// Build turns an installer into the encrypted layout the Intune service
// validates:
//
//	inner.zip  = zip{ <setup file> }                (deflate, best compression)
//	ciphertext = AES-256-CBC(inner.zip, key, iv)     (PKCS#7 padding)
//	mac        = HMAC-SHA256(macKey, iv || ciphertext)
//	payload    = mac || iv || ciphertext
//
//	container  = zip{
//	    IntuneWinPackage/Contents/<uuid>.bin          payload
//	    IntuneWinPackage/Metadata/Detection.xml      descriptor
//	}
//
// The descriptor carries the keys, the MAC and the SHA-256 digest of
// inner.zip. Open and Decrypt reverse the process and check every integrity
// field on the way.
package intunewin
