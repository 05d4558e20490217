package plist_test

import (
	"testing"

	"github.com/go-phorce/lockdown/plist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_LabelInjection(t *testing.T) {
	withLabel := plist.NewQueryType("myprogram")
	assert.Equal(t, "myprogram", withLabel["Label"])

	withoutLabel := plist.NewQueryType("")
	_, has := withoutLabel["Label"]
	assert.False(t, has, "empty label must not appear in the request")
}

func Test_GetValue_OptionalFields(t *testing.T) {
	req := plist.NewGetValue("", "", "")
	_, hasDomain := req["Domain"]
	_, hasKey := req["Key"]
	assert.False(t, hasDomain)
	assert.False(t, hasKey)
	assert.Equal(t, "GetValue", req["Request"])

	req = plist.NewGetValue("", "com.apple.mobile", "DeviceName")
	assert.Equal(t, "com.apple.mobile", req["Domain"])
	assert.Equal(t, "DeviceName", req["Key"])
}

func Test_CheckResult(t *testing.T) {
	cases := []struct {
		name     string
		resp     plist.Response
		verb     string
		expected plist.Outcome
	}{
		{"success", plist.Response{"Request": "StartSession", "Result": "Success"}, "StartSession", plist.Success},
		{"failure", plist.Response{"Request": "Pair", "Result": "Failure", "Error": "PasswordProtected"}, "Pair", plist.Failure},
		{"mismatched verb wins over Success", plist.Response{"Request": "Goodbye", "Result": "Success"}, "StartSession", plist.Malformed},
		{"missing result", plist.Response{"Request": "GetValue"}, "GetValue", plist.Malformed},
		{"garbled result", plist.Response{"Request": "GetValue", "Result": 42}, "GetValue", plist.Malformed},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.expected, plist.CheckResult(c.resp, c.verb))
		})
	}
}

func Test_EncodeDecode_RoundTrip(t *testing.T) {
	req := plist.NewSetValue("test", "com.apple.mobile", "DeviceName", "my-iphone")
	data, err := plist.Encode(req)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<key>Request</key>")

	resp, err := plist.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "SetValue", resp["Request"])
	assert.Equal(t, "my-iphone", resp["Value"])
}

func Test_Decode_Empty(t *testing.T) {
	_, err := plist.Decode(nil)
	assert.Error(t, err)
}

func Test_PairRequest_Shape(t *testing.T) {
	rec := plist.PairRecord{
		DeviceCertificate: "device-pem",
		HostCertificate:   "host-pem",
		RootCertificate:   "root-pem",
		HostID:            "host-id-1",
	}
	req := plist.NewPairRequest("lbl", "Pair", rec)
	assert.Equal(t, "Pair", req["Request"])
	pr, ok := req["PairRecord"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "device-pem", pr["DeviceCertificate"])
	assert.Equal(t, "host-id-1", pr["HostID"])
}
