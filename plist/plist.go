// Package plist builds and inspects the property-list request/response
// dictionaries exchanged with the lockdown service. It is the Message
// Codec component of the lockdown protocol: typed builders for every
// request verb, plus a uniform result inspector.
package plist

import (
	"bytes"

	"github.com/pkg/errors"
	"howett.net/plist"
)

// Request is an outbound lockdown request dictionary.
type Request map[string]interface{}

// Response is an inbound lockdown response dictionary.
type Response map[string]interface{}

// Outcome is the uniform result of CheckResult.
type Outcome int

// Outcomes a response can resolve to.
const (
	// Malformed means the response could not be trusted: either its Result
	// field is missing or neither "Success" nor "Failure", or its echoed
	// Request verb does not match what was sent.
	Malformed Outcome = iota
	Success
	Failure
)

func withLabel(req Request, label string) Request {
	if label != "" {
		req["Label"] = label
	}
	return req
}

// NewQueryType builds a QueryType request.
func NewQueryType(label string) Request {
	return withLabel(Request{"Request": "QueryType"}, label)
}

// NewGetValue builds a GetValue request. domain and key are both optional;
// an empty domain/key omits the corresponding field, which the device
// interprets as "all domains"/"all keys".
func NewGetValue(label, domain, key string) Request {
	req := withLabel(Request{"Request": "GetValue"}, label)
	if domain != "" {
		req["Domain"] = domain
	}
	if key != "" {
		req["Key"] = key
	}
	return req
}

// NewSetValue builds a SetValue request.
func NewSetValue(label, domain, key string, value interface{}) Request {
	req := withLabel(Request{"Request": "SetValue", "Value": value}, label)
	if domain != "" {
		req["Domain"] = domain
	}
	if key != "" {
		req["Key"] = key
	}
	return req
}

// NewRemoveValue builds a RemoveValue request.
func NewRemoveValue(label, domain, key string) Request {
	req := withLabel(Request{"Request": "RemoveValue"}, label)
	if domain != "" {
		req["Domain"] = domain
	}
	if key != "" {
		req["Key"] = key
	}
	return req
}

// NewStartSession builds a StartSession request.
func NewStartSession(label, hostID string) Request {
	return withLabel(Request{"Request": "StartSession", "HostID": hostID}, label)
}

// NewStopSession builds a StopSession request.
func NewStopSession(label, sessionID string) Request {
	return withLabel(Request{"Request": "StopSession", "SessionID": sessionID}, label)
}

// PairRecord is the wire shape of a pair record, as embedded in
// Pair/ValidatePair/Unpair requests.
type PairRecord struct {
	DeviceCertificate string
	HostCertificate   string
	RootCertificate   string
	HostID            string
}

// NewPairRequest builds a Pair, ValidatePair, or Unpair request.
func NewPairRequest(label, verb string, rec PairRecord) Request {
	return withLabel(Request{
		"Request": verb,
		"PairRecord": map[string]interface{}{
			"DeviceCertificate": rec.DeviceCertificate,
			"HostCertificate":   rec.HostCertificate,
			"RootCertificate":   rec.RootCertificate,
			"HostID":            rec.HostID,
		},
	}, label)
}

// NewStartService builds a StartService request.
func NewStartService(label, service string) Request {
	return withLabel(Request{"Request": "StartService", "Service": service}, label)
}

// NewActivate builds an Activate request.
func NewActivate(label string, record map[string]interface{}) Request {
	return withLabel(Request{"Request": "Activate", "ActivationRecord": record}, label)
}

// NewDeactivate builds a Deactivate request.
func NewDeactivate(label string) Request {
	return withLabel(Request{"Request": "Deactivate"}, label)
}

// NewEnterRecovery builds an EnterRecovery request.
func NewEnterRecovery(label string) Request {
	return withLabel(Request{"Request": "EnterRecovery"}, label)
}

// NewGoodbye builds a Goodbye request.
func NewGoodbye(label string) Request {
	return withLabel(Request{"Request": "Goodbye"}, label)
}

// CheckResult inspects resp against expectedVerb, per spec: a mismatched
// echoed verb is always Malformed, regardless of any other field; absent
// that, Result:"Success" maps to Success, Result:"Failure" to Failure,
// and anything else (missing/garbled Result) to Malformed.
func CheckResult(resp Response, expectedVerb string) Outcome {
	if echoed, _ := resp["Request"].(string); echoed != expectedVerb {
		return Malformed
	}
	switch result, _ := resp["Result"].(string); result {
	case "Success":
		return Success
	case "Failure":
		return Failure
	default:
		return Malformed
	}
}

// Error returns the response's Error field, or "" if absent.
func Error(resp Response) string {
	s, _ := resp["Error"].(string)
	return s
}

// Encode serializes req as an XML property list.
func Encode(req Request) ([]byte, error) {
	var buf bytes.Buffer
	enc := plist.NewEncoderForFormat(&buf, plist.XMLFormat)
	if err := enc.Encode(map[string]interface{}(req)); err != nil {
		return nil, errors.WithMessage(err, "encode plist")
	}
	return buf.Bytes(), nil
}

// Decode parses an XML (or binary) property list into a Response.
func Decode(data []byte) (Response, error) {
	if len(data) == 0 {
		return nil, errors.New("empty plist")
	}
	var resp map[string]interface{}
	if _, err := plist.Unmarshal(data, &resp); err != nil {
		return nil, errors.WithMessage(err, "decode plist")
	}
	return Response(resp), nil
}
