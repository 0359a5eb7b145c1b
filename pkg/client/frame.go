package client

import (
	"encoding/json"
	"strings"
)

// incoming is one parsed response/update line: action, specifier, and the
// raw "[value,{qualifier}]" (or error) payload. Mirrors the server's own
// frame grammar (§4.6) since both ends speak the same line format.
type incoming struct {
	action    string
	specifier string
	data      string
}

func parseIncoming(line string) incoming {
	line = strings.TrimRight(line, "\r\n")
	action, rest, ok := cut(line, ' ')
	if !ok {
		return incoming{action: action}
	}
	rest = strings.TrimLeft(rest, " \t")
	specifier, data, ok := cut(rest, ' ')
	if !ok {
		return incoming{action: action, specifier: specifier}
	}
	return incoming{action: action, specifier: specifier, data: strings.TrimLeft(data, " \t")}
}

func cut(s string, sep byte) (before, after string, found bool) {
	i := strings.IndexByte(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}

// parseValueQualifier splits a "[value,{qualifier}]" payload into its value
// and qualifier fields, applying the same omission rules the server emitter
// uses: "t" absent means no timestamp was carried, "e" absent means no sigma.
func parseValueQualifier(data string) (value json.RawMessage, sigma float64, hasSigma bool, timestamp float64, err error) {
	var pair []json.RawMessage
	if err := json.Unmarshal([]byte(data), &pair); err != nil || len(pair) != 2 {
		return nil, 0, false, 0, &qualifierError{data}
	}
	value = pair[0]
	var qual struct {
		T *float64 `json:"t"`
		E *float64 `json:"e"`
	}
	if err := json.Unmarshal(pair[1], &qual); err != nil {
		return value, 0, false, 0, &qualifierError{data}
	}
	if qual.T != nil {
		timestamp = *qual.T
	}
	if qual.E != nil {
		sigma = *qual.E
		hasSigma = true
	}
	return value, sigma, hasSigma, timestamp, nil
}

// formatValueQualifier re-renders a parsed (value, sigma, ts) triple back
// into "[value,{qualifier}]" so a synthetic incoming built for a waiter
// channel round-trips through parseValueQualifier the same way a live wire
// frame would.
func formatValueQualifier(value json.RawMessage, sigma float64, hasSigma bool, ts float64) string {
	qual := "{"
	wrote := false
	if ts != 0 {
		qual += `"t":` + formatFloat(ts)
		wrote = true
	}
	if hasSigma {
		if wrote {
			qual += ","
		}
		qual += `"e":` + formatFloat(sigma)
	}
	qual += "}"
	v := string(value)
	if v == "" {
		v = "null"
	}
	return "[" + v + "," + qual + "]"
}

func formatFloat(f float64) string {
	b, err := json.Marshal(f)
	if err != nil {
		return "0"
	}
	return string(b)
}

type qualifierError struct{ raw string }

func (e *qualifierError) Error() string { return "client: malformed value/qualifier payload " + e.raw }

// errorReason extracts {"reason":"..."} from an error frame's payload.
func errorReason(data string) string {
	var pair []json.RawMessage
	if err := json.Unmarshal([]byte(data), &pair); err != nil || len(pair) != 2 {
		return data
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(pair[1], &body); err != nil {
		return data
	}
	return body.Reason
}
