package broker

import "context"

// Key-store registration triple on the system bus. As with the session
// name, the established Microsoft name is imitated so the platform's
// token plumbing finds the key store without changes.
const (
	KeyBusName    = "com.microsoft.identity.DeviceBroker1"
	KeyObjectPath = "/com/microsoft/identity/devicebroker1"
	KeyInterface  = "com.microsoft.identity.DeviceBroker1"
)

// Wire-level method names of the key-store contract.
const (
	OpSign                              = "sign"
	OpGenerateKeyPair                   = "generateKeyPair"
	OpLoadKeyPair                       = "loadKeyPair"
	OpPersistKey                        = "persistKey"
	OpGenerateDerivedKey                = "generateDerivedKey"
	OpDeleteKey                         = "deleteKey"
	OpDecrypt                           = "decrypt"
	OpGeneratePKCS10CertSigningRequest  = "generatePKCS10CertSigningRequest"
	OpAsymmetricKeyExists               = "asymmetricKeyExists"
	OpAsymmetricKeyWithThumbprintExists = "asymmetricKeyWithThumbprintExists"
	OpGetAsymmetricKeyThumbprint        = "getAsymmetricKeyThumbprint"
	OpGenerateAsymmetricKey             = "generateAsymmetricKey"
	OpGetAsymmetricKeyCreationDate      = "getAsymmetricKeyCreationDate"
	OpClearAsymmetricKey                = "clearAsymmetricKey"
	OpGetRequestConfirmation            = "getRequestConfirmation"
	OpMintSignedAccessToken             = "mintSignedAccessToken"
	OpMintSignedHTTPRequest             = "mintSignedHttpRequest"
	OpMakeHTTPRequestWithClientTLS      = "makeHttpRequestWithClientTls"
)

// keyMethodNames lists every key-store operation in catalog order.
var keyMethodNames = []string{
	OpSign,
	OpGenerateKeyPair,
	OpLoadKeyPair,
	OpPersistKey,
	OpGenerateDerivedKey,
	OpDeleteKey,
	OpDecrypt,
	OpGeneratePKCS10CertSigningRequest,
	OpAsymmetricKeyExists,
	OpAsymmetricKeyWithThumbprintExists,
	OpGetAsymmetricKeyThumbprint,
	OpGenerateAsymmetricKey,
	OpGetAsymmetricKeyCreationDate,
	OpClearAsymmetricKey,
	OpGetRequestConfirmation,
	OpMintSignedAccessToken,
	OpMintSignedHTTPRequest,
	OpMakeHTTPRequestWithClientTLS,
}

// KeyOperations is the fixed catalog of the key-store contract:
// (session_id, request_json) -> (result).
var KeyOperations = buildCatalog(keyMethodNames, ShapeKeySession)

// KeyBroker is the key-store capability set behind the device broker: key
// material lifecycle, signing and decryption, and the signed-token and
// client-TLS operations built on those keys. It is served on the system
// bus for implementations that own hardware- or file-backed keys; the
// session service does not forward to it. Requests carry SessionID
// instead of the protocol envelope.
type KeyBroker interface {
	Sign(ctx context.Context, req *Request) (string, error)
	GenerateKeyPair(ctx context.Context, req *Request) (string, error)
	LoadKeyPair(ctx context.Context, req *Request) (string, error)
	PersistKey(ctx context.Context, req *Request) (string, error)
	GenerateDerivedKey(ctx context.Context, req *Request) (string, error)
	DeleteKey(ctx context.Context, req *Request) (string, error)
	Decrypt(ctx context.Context, req *Request) (string, error)
	GeneratePKCS10CertSigningRequest(ctx context.Context, req *Request) (string, error)
	AsymmetricKeyExists(ctx context.Context, req *Request) (string, error)
	AsymmetricKeyWithThumbprintExists(ctx context.Context, req *Request) (string, error)
	GetAsymmetricKeyThumbprint(ctx context.Context, req *Request) (string, error)
	GenerateAsymmetricKey(ctx context.Context, req *Request) (string, error)
	GetAsymmetricKeyCreationDate(ctx context.Context, req *Request) (string, error)
	ClearAsymmetricKey(ctx context.Context, req *Request) (string, error)
	GetRequestConfirmation(ctx context.Context, req *Request) (string, error)
	MintSignedAccessToken(ctx context.Context, req *Request) (string, error)
	MintSignedHTTPRequest(ctx context.Context, req *Request) (string, error)
	MakeHTTPRequestWithClientTLS(ctx context.Context, req *Request) (string, error)
}

// KeyInvoker returns the contract method of impl matching the wire method
// name, or false when the name is outside the catalog.
func KeyInvoker(impl KeyBroker, method string) (InvokeFunc, bool) {
	switch method {
	case OpSign:
		return impl.Sign, true
	case OpGenerateKeyPair:
		return impl.GenerateKeyPair, true
	case OpLoadKeyPair:
		return impl.LoadKeyPair, true
	case OpPersistKey:
		return impl.PersistKey, true
	case OpGenerateDerivedKey:
		return impl.GenerateDerivedKey, true
	case OpDeleteKey:
		return impl.DeleteKey, true
	case OpDecrypt:
		return impl.Decrypt, true
	case OpGeneratePKCS10CertSigningRequest:
		return impl.GeneratePKCS10CertSigningRequest, true
	case OpAsymmetricKeyExists:
		return impl.AsymmetricKeyExists, true
	case OpAsymmetricKeyWithThumbprintExists:
		return impl.AsymmetricKeyWithThumbprintExists, true
	case OpGetAsymmetricKeyThumbprint:
		return impl.GetAsymmetricKeyThumbprint, true
	case OpGenerateAsymmetricKey:
		return impl.GenerateAsymmetricKey, true
	case OpGetAsymmetricKeyCreationDate:
		return impl.GetAsymmetricKeyCreationDate, true
	case OpClearAsymmetricKey:
		return impl.ClearAsymmetricKey, true
	case OpGetRequestConfirmation:
		return impl.GetRequestConfirmation, true
	case OpMintSignedAccessToken:
		return impl.MintSignedAccessToken, true
	case OpMintSignedHTTPRequest:
		return impl.MintSignedHTTPRequest, true
	case OpMakeHTTPRequestWithClientTLS:
		return impl.MakeHTTPRequestWithClientTLS, true
	}
	return nil, false
}
