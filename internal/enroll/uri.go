// Package enroll handles account enrollment: parsing otpauth URIs carried by
// QR codes, generating those QR codes for the issuing side, and scanning a
// camera frame stream until a valid enrollment payload appears.
package enroll

import (
	"net/url"
	"regexp"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/civistrom/civid/internal/totp"
)

const (
	// uriPrefix is the only accepted scheme+authority for enrollment payloads.
	uriPrefix = "otpauth://totp/"

	// trustMarker must appear in the issuer parameter (case-insensitive).
	trustMarker = "CIVISTROM"
)

// idPattern matches a CIV ID embedded in the URI label: digit groups with a
// trailing check digit.
var idPattern = regexp.MustCompile(`CIV-\d{4}-\d{4}-\d`)

// Candidate is a parsed enrollment payload awaiting user confirmation.
// It is never persisted directly.
type Candidate struct {
	ID     string
	Secret string
	Issuer string
	Label  string
}

// ParseURI parses an enrollment URI and returns nil on any missing or
// malformed field. It is a total function: no input raises.
//
// Accepted form:
//
//	otpauth://totp/<label>?secret=<base32>&issuer=<issuer>
//
// where issuer contains the trust marker and the percent-decoded label
// contains a CIV ID. The secret is upper-cased and must decode as Base32 to
// at least one byte.
func ParseURI(uri string) *Candidate {
	if !strings.HasPrefix(uri, uriPrefix) {
		return nil
	}
	rest := uri[len(uriPrefix):]

	q := strings.Index(rest, "?")
	if q < 0 {
		return nil
	}
	label, err := url.PathUnescape(rest[:q])
	if err != nil {
		return nil
	}
	params, err := url.ParseQuery(rest[q+1:])
	if err != nil {
		return nil
	}

	issuer := params.Get("issuer")
	if !strings.Contains(strings.ToUpper(issuer), trustMarker) {
		return nil
	}

	id := idPattern.FindString(label)
	if id == "" {
		return nil
	}

	secret := strings.ToUpper(params.Get("secret"))
	raw, err := totp.Base32Decode(secret)
	if err != nil || len(raw) == 0 {
		return nil
	}

	return &Candidate{ID: id, Secret: secret, Issuer: issuer, Label: label}
}

// BuildURI renders the enrollment URI for a CIV ID and secret, the inverse
// of ParseURI. Used by the issuing tool and in round-trip tests.
func BuildURI(id, secret, issuer string) string {
	if issuer == "" {
		issuer = trustMarker
	}
	params := url.Values{}
	params.Set("secret", strings.ToUpper(secret))
	params.Set("issuer", issuer)
	label := url.PathEscape(issuer + ":" + id)
	return uriPrefix + label + "?" + params.Encode()
}

// QRPNG renders an enrollment URI as a QR code PNG of the given pixel size.
func QRPNG(uri string, size int) ([]byte, error) {
	return qrcode.Encode(uri, qrcode.Medium, size)
}
