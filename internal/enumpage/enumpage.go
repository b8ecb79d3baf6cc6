package enumpage

import (
	"encoding/json"
	"mime"
	"net/http"
	"net/url"

	"github.com/dreamware/apiproxy/internal/intid"
	"github.com/dreamware/apiproxy/internal/proxymode"
	"github.com/dreamware/apiproxy/internal/routespec"
	"github.com/dreamware/apiproxy/internal/serverscfg"
)

// MaxBufferedBody bounds how much of an enumerate response the
// dispatcher will hold in memory before giving up on rewriting it and
// streaming the raw bytes through instead.
const MaxBufferedBody = 4 << 20 // 4 MiB

// Rewrite inspects an upstream response for an enumerate request and,
// if it is a well-formed ObjectReferencesPage, stitches it into the
// fleet-wide pagination chain described in the enumerate rewriter
// design. Any other shape is passed through byte-for-byte unchanged
// (rewritten reports false in that case).
func Rewrite(
	body []byte,
	contentType string,
	status int,
	reqURL string,
	configVersion string,
	forwardURL routespec.ServerURL,
	cfg *serverscfg.ServersConfig,
	mode *proxymode.Mode,
) (out []byte, rewritten bool) {
	if status != http.StatusOK {
		return body, false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil || mt != "application/json" {
		return body, false
	}

	var page map[string]json.RawMessage
	if err := json.Unmarshal(body, &page); err != nil {
		return body, false
	}

	typ, ok := decodeString(page["type"])
	if !ok || typ != "ObjectReferencesPage" {
		return body, false
	}
	uri, ok := decodeString(page["uri"])
	if !ok {
		return body, false
	}
	var next string
	hasNext := false
	if raw, present := page["next"]; present {
		next, ok = decodeString(raw)
		if !ok {
			// next is present but not a string (e.g. JSON null): the
			// page shape is invalid, pass the body through unchanged.
			return body, false
		}
		hasNext = true
	}

	v := configVersion
	if q := versionParam(reqURL); q != "" {
		v = q
	}

	page["uri"] = encodeString(uri + "?v=" + v)

	if v == configVersion && configVersion == cfg.Version() {
		switch {
		case hasNext && next != "":
			page["next"] = encodeString(next + "?v=" + v)
		default:
			if succ, ok := cfg.Successor(forwardURL); ok {
				minID, _ := cfg.MinID(succ)
				idDec := intid.U2Dec(intid.I2U(minID))
				page["next"] = encodeString(mode.BuildEnumeratePath(idDec, v))
			} else {
				delete(page, "next")
			}
		}
	} else {
		page["items"] = json.RawMessage(`[]`)
		page["next"] = encodeString(mode.InvalidPath)
	}

	out, err = json.Marshal(page)
	if err != nil {
		return body, false
	}
	return out, true
}

func versionParam(reqURL string) string {
	u, err := url.Parse(reqURL)
	if err != nil {
		return ""
	}
	return u.Query().Get("v")
}

func decodeString(raw json.RawMessage) (string, bool) {
	if raw == nil || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func encodeString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return json.RawMessage(b)
}
