// Package session implements the server-side wire protocol: per-connection
// line parsing, request dispatch to the node directory, and the active-
// session fan-out hub that turns parameter cache updates into "update"
// frames.
package session

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/SampleEnvironment/secop-go/pkg/secoperr"
)

// banner is the fixed *IDN? response (§4.6).
const banner = "ISSE&SINE2020,SECoP,V2019-09-16,v1.0"

// helpCommands is the advertised command list for "help".
const helpCommands = "*IDN? describe activate deactivate read change do ping help"

// frame is one parsed request line: up to three whitespace-separated
// fields, the third being raw JSON that may itself contain whitespace.
type frame struct {
	action    string
	specifier string
	data      []byte
}

// parseFrame splits a line per §4.6. \r has already been stripped by the
// caller's line reader. The action token is matched case-insensitively by
// the dispatcher, not here.
func parseFrame(line string) frame {
	line = strings.TrimRight(line, "\r\n")
	action, rest, hasRest := cut(line, ' ')
	if !hasRest {
		return frame{action: action}
	}
	rest = strings.TrimLeft(rest, " \t")
	specifier, data, hasData := cut(rest, ' ')
	if !hasData {
		return frame{action: action, specifier: specifier}
	}
	data = strings.TrimLeft(data, " \t")
	return frame{action: action, specifier: specifier, data: []byte(data)}
}

func cut(s string, sep byte) (before, after string, found bool) {
	i := strings.IndexByte(s, sep)
	if i < 0 {
		return s, "", false
	}
	return s[:i], s[i+1:], true
}

// moduleAccessible splits a "<module>:<accessible>" specifier.
func moduleAccessible(specifier string) (module, acc string, ok bool) {
	module, acc, found := cut(specifier, ':')
	return module, acc, found && module != "" && acc != ""
}

// qualifier builds the {"t":…,"e":…} object per §4.6: e is omitted when no
// sigma is available; t is omitted only when ts is the zero value (no clock
// reading at all, as opposed to a substituted wall-clock reading).
func qualifier(ts float64, sigma float64, hasSigma bool) json.RawMessage {
	var buf bytes.Buffer
	buf.WriteByte('{')
	wrote := false
	if ts != 0 {
		buf.WriteString(`"t":`)
		buf.Write(formatFloat(ts))
		wrote = true
	}
	if hasSigma {
		if wrote {
			buf.WriteByte(',')
		}
		buf.WriteString(`"e":`)
		buf.Write(formatFloat(sigma))
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

func formatFloat(f float64) json.RawMessage {
	b, err := json.Marshal(f)
	if err != nil {
		return json.RawMessage("0")
	}
	return b
}

// valueQualifierPair renders "[value,{qualifier}]" as used by reply/
// changed/done/update frames.
func valueQualifierPair(value json.RawMessage, ts, sigma float64, hasSigma bool) []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	if len(value) == 0 {
		buf.WriteString("null")
	} else {
		buf.Write(value)
	}
	buf.WriteByte(',')
	buf.Write(qualifier(ts, sigma, hasSigma))
	buf.WriteByte(']')
	return buf.Bytes()
}

// FormatUpdate renders a complete "update <specifier> [value,{qualifier}]"
// line, for callers outside this package that need to push a poll-driven
// cache update onto a Hub (pkg/secop's scheduler OnUpdate wiring).
func FormatUpdate(specifier string, value json.RawMessage, ts, sigma float64, hasSigma bool) []byte {
	payload := valueQualifierPair(value, ts, sigma, hasSigma)
	return []byte("update " + specifier + " " + string(payload))
}

// errorFrame renders "error <specifier> [<echoed-request>, {"reason":…}]".
func errorFrame(echoedRequest string, err error) []byte {
	kind := secoperr.KindOf(err)
	var buf bytes.Buffer
	buf.WriteString("error ")
	buf.WriteString(kind.String())
	buf.WriteString(" [")
	echoed, _ := json.Marshal(echoedRequest)
	buf.Write(echoed)
	buf.WriteString(`,{"reason":`)
	reason, _ := json.Marshal(err.Error())
	buf.Write(reason)
	buf.WriteString("}]")
	return buf.Bytes()
}
