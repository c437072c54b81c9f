package broker

import "context"

// Wire-level method names, shared by both capability sets.
const (
	OpAcquireTokenInteractively = "acquireTokenInteractively"
	OpAcquireTokenSilently      = "acquireTokenSilently"
	OpGetAccounts               = "getAccounts"
	OpRemoveAccount             = "removeAccount"
	OpAcquirePrtSsoCookie       = "acquirePrtSsoCookie"
	OpGenerateSignedHTTPRequest = "generateSignedHttpRequest"
	OpCancelInteractiveFlow     = "cancelInteractiveFlow"
	OpGetLinuxBrokerVersion     = "getLinuxBrokerVersion"
)

// Shape identifies the wire argument layout of an operation.
type Shape int

const (
	// ShapeEnvelope operations carry (protocol_version, correlation_id,
	// request_json).
	ShapeEnvelope Shape = iota
	// ShapeEnvelopeUID operations carry the envelope plus the uid the
	// caller acts for as a trailing argument.
	ShapeEnvelopeUID
	// ShapeKeySession operations carry (session_id, request_json).
	ShapeKeySession
)

// Operation describes one wire method of a contract.
type Operation struct {
	// Method is the bus-level member name.
	Method string
	// Shape is the wire argument layout the transport binds for Method.
	Shape Shape
}

// CarriesUID reports whether the wire signature carries the authenticated
// caller uid as a trailing argument.
func (o Operation) CarriesUID() bool {
	return o.Shape == ShapeEnvelopeUID
}

// methodNames lists every operation in catalog order.
var methodNames = []string{
	OpAcquireTokenInteractively,
	OpAcquireTokenSilently,
	OpGetAccounts,
	OpRemoveAccount,
	OpAcquirePrtSsoCookie,
	OpGenerateSignedHTTPRequest,
	OpCancelInteractiveFlow,
	OpGetLinuxBrokerVersion,
}

// SessionOperations is the fixed catalog of the session-scoped contract:
// (protocol_version, correlation_id, request_json) -> (result).
var SessionOperations = buildCatalog(methodNames, ShapeEnvelope)

// DeviceOperations is the fixed catalog of the device-scoped contract:
// (protocol_version, correlation_id, request_json, uid) -> (result).
var DeviceOperations = buildCatalog(methodNames, ShapeEnvelopeUID)

func buildCatalog(names []string, shape Shape) []Operation {
	ops := make([]Operation, 0, len(names))
	for _, m := range names {
		ops = append(ops, Operation{Method: m, Shape: shape})
	}
	return ops
}

// InvokeFunc is a bound contract method ready for dispatch.
type InvokeFunc func(ctx context.Context, req *Request) (string, error)

// SessionInvoker returns the contract method of impl matching the wire
// method name, or false when the name is outside the catalog.
func SessionInvoker(impl SessionBroker, method string) (InvokeFunc, bool) {
	switch method {
	case OpAcquireTokenInteractively:
		return impl.AcquireTokenInteractively, true
	case OpAcquireTokenSilently:
		return impl.AcquireTokenSilently, true
	case OpGetAccounts:
		return impl.GetAccounts, true
	case OpRemoveAccount:
		return impl.RemoveAccount, true
	case OpAcquirePrtSsoCookie:
		return impl.AcquirePrtSsoCookie, true
	case OpGenerateSignedHTTPRequest:
		return impl.GenerateSignedHTTPRequest, true
	case OpCancelInteractiveFlow:
		return impl.CancelInteractiveFlow, true
	case OpGetLinuxBrokerVersion:
		return impl.GetLinuxBrokerVersion, true
	}
	return nil, false
}

// DeviceInvoker returns the contract method of impl matching the wire
// method name, or false when the name is outside the catalog.
func DeviceInvoker(impl DeviceBroker, method string) (InvokeFunc, bool) {
	switch method {
	case OpAcquireTokenInteractively:
		return impl.AcquireTokenInteractively, true
	case OpAcquireTokenSilently:
		return impl.AcquireTokenSilently, true
	case OpGetAccounts:
		return impl.GetAccounts, true
	case OpRemoveAccount:
		return impl.RemoveAccount, true
	case OpAcquirePrtSsoCookie:
		return impl.AcquirePrtSsoCookie, true
	case OpGenerateSignedHTTPRequest:
		return impl.GenerateSignedHTTPRequest, true
	case OpCancelInteractiveFlow:
		return impl.CancelInteractiveFlow, true
	case OpGetLinuxBrokerVersion:
		return impl.GetLinuxBrokerVersion, true
	}
	return nil, false
}
