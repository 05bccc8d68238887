package obd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrNoData is returned when the adapter reports an error token instead
	// of a value (NO DATA, SEARCHING, ERROR, STOPPED, UNABLE TO CONNECT).
	ErrNoData = errors.New("obd: no data")
	// ErrBadResponse is returned for responses that cannot be decoded.
	ErrBadResponse = errors.New("obd: malformed response")
)

// errorTokens are matched against the cleaned response; any hit decodes to
// "no value" rather than a numeric default.
var errorTokens = []string{
	"NODATA",
	"SEARCHING",
	"UNABLETOCONNECT",
	"STOPPED",
	"ERROR",
	"?",
}

// cleanResponse strips whitespace, control characters and the prompt from a
// raw adapter response and uppercases the remainder.
func cleanResponse(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r == ' ' || r == '\r' || r == '\n' || r == '\t' || r == '>' || r == 0:
			// skip
		default:
			b.WriteRune(r)
		}
	}
	return strings.ToUpper(b.String())
}

// DecodeResponse decodes a raw adapter response for the given command into a
// physical value. The echoed mode+PID prefix is located anywhere in the
// cleaned response (adapters may prepend headers or echo the request); the
// hex pairs after it are interpreted by the command's formula. Error tokens
// and non-finite results decode to ErrNoData / ErrBadResponse.
func DecodeResponse(cmd Command, raw string) (float64, error) {
	cleaned := cleanResponse(raw)
	if cleaned == "" {
		return 0, fmt.Errorf("%w: empty response", ErrBadResponse)
	}

	for _, tok := range errorTokens {
		if strings.Contains(cleaned, tok) {
			return 0, ErrNoData
		}
	}

	// A positive response echoes the PID behind mode+0x40: "010C" -> "410C".
	prefix := responsePrefix(cmd.Request)
	idx := strings.Index(cleaned, prefix)
	if idx < 0 {
		return 0, fmt.Errorf("%w: missing %s prefix in %q", ErrBadResponse, prefix, cleaned)
	}

	payload := cleaned[idx+len(prefix):]
	if len(payload) < cmd.Bytes*2 {
		return 0, fmt.Errorf("%w: want %d data bytes, got %q", ErrBadResponse, cmd.Bytes, payload)
	}

	data, err := hex.DecodeString(payload[:cmd.Bytes*2])
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	value := cmd.Decode(data)
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("%w: non-finite value", ErrBadResponse)
	}
	return value, nil
}

// responsePrefix returns the expected echo prefix for a request: the mode
// byte plus 0x40 followed by the PID, e.g. "010C" -> "410C".
func responsePrefix(request string) string {
	if len(request) < 4 {
		return request
	}
	mode, err := strconv.ParseUint(request[:2], 16, 8)
	if err != nil {
		return request
	}
	return fmt.Sprintf("%02X%s", byte(mode)+0x40, strings.ToUpper(request[2:]))
}
