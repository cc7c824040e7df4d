package apihttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

var errRangeNotSatisfiable = errors.New("range not satisfiable")

// encodeRFC5987 percent-encodes s for use in an extended header parameter
// value (RFC 5987). Only attr-char bytes pass through unescaped.
func encodeRFC5987(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			b.WriteByte(c)
		case strings.IndexByte("!#$&+-.^_`|~", c) >= 0:
			b.WriteByte(c)
		default:
			b.WriteString(fmt.Sprintf("%%%02X", c))
		}
	}
	return b.String()
}

// parseByteRange resolves a Range request header against a resource of the
// given size. Only the first range of a multi-range header is honored.
// Any malformed or unsatisfiable header yields errRangeNotSatisfiable so
// callers can answer with a single 416 path.
func parseByteRange(value string, size int64) (start, end int64, err error) {
	const prefix = "bytes="
	if !strings.HasPrefix(value, prefix) {
		return 0, 0, errRangeNotSatisfiable
	}
	spec := strings.TrimPrefix(value, prefix)
	if idx := strings.IndexByte(spec, ','); idx >= 0 {
		spec = spec[:idx]
	}
	spec = strings.TrimSpace(spec)

	dash := strings.IndexByte(spec, '-')
	if dash < 0 {
		return 0, 0, errRangeNotSatisfiable
	}
	startRaw := strings.TrimSpace(spec[:dash])
	endRaw := strings.TrimSpace(spec[dash+1:])

	if startRaw == "" {
		// Suffix range: last N bytes.
		n, perr := strconv.ParseInt(endRaw, 10, 64)
		if perr != nil || n <= 0 {
			return 0, 0, errRangeNotSatisfiable
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, nil
	}

	start, err = strconv.ParseInt(startRaw, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, errRangeNotSatisfiable
	}
	if start >= size {
		return 0, 0, errRangeNotSatisfiable
	}
	if endRaw == "" {
		return start, size - 1, nil
	}
	end, err = strconv.ParseInt(endRaw, 10, 64)
	if err != nil || end < start {
		return 0, 0, errRangeNotSatisfiable
	}
	if end >= size {
		end = size - 1
	}
	return start, end, nil
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

// publicBaseURL reconstructs the externally visible base URL of the request,
// honoring X-Forwarded-Proto when the service sits behind a proxy.
func publicBaseURL(r *http.Request) string {
	proto := r.Header.Get("X-Forwarded-Proto")
	if proto == "" {
		if r.TLS != nil {
			proto = "https"
		} else {
			proto = "http"
		}
	}
	return proto + "://" + r.Host
}

// stringList accepts either a JSON string or a JSON array of strings.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = stringList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = stringList(many)
	return nil
}

// flexBool accepts a JSON bool or the strings "true"/"false".
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = flexBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*b = flexBool(strings.EqualFold(strings.TrimSpace(s), "true"))
	return nil
}

func parseCommaSeparated(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseOptionalInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
