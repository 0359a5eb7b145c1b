package node

import (
	"bytes"
	"encoding/json"

	"github.com/SampleEnvironment/secop-go/pkg/accessible"
	"github.com/SampleEnvironment/secop-go/pkg/property"
)

// Describe builds the descriptive JSON for a node:
//
//	{ "equipment_id": <id>,
//	  "modules": { <module>: { "accessibles": { <acc>: {<properties…>} },
//	                            <module-properties…> } },
//	  <node-properties…> }
//
// Declaration order is preserved throughout: modules in the order they
// were added, accessibles within a module likewise, and properties in the
// order add_property was called. Each accessible's "datainfo" entry is the
// canonical type descriptor of its parameter's cached variant, or its
// command's {"type":"command","argument":…,"result":…} descriptor.
func (n *Node) Describe() json.RawMessage {
	var buf bytes.Buffer
	buf.WriteByte('{')
	writeKV(&buf, "equipment_id", jsonString(n.ID))
	buf.WriteByte(',')

	buf.WriteString(`"modules":{`)
	modules := n.Modules()
	for i, m := range modules {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKV(&buf, m.Name, moduleJSON(m))
	}
	buf.WriteByte('}')

	writePropertiesInto(&buf, n.Properties, nil)
	buf.WriteByte('}')
	return json.RawMessage(buf.Bytes())
}

func moduleJSON(m *accessible.Module) json.RawMessage {
	var buf bytes.Buffer
	buf.WriteByte('{')
	buf.WriteString(`"accessibles":{`)
	accs := m.Accessibles()
	for i, a := range accs {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKV(&buf, a.AccessibleName(), accessibleJSON(a))
	}
	buf.WriteByte('}')
	writePropertiesInto(&buf, m.Properties, nil)
	buf.WriteByte('}')
	return buf.Bytes()
}

func accessibleJSON(a accessible.Accessible) json.RawMessage {
	var buf bytes.Buffer
	buf.WriteByte('{')
	writeKV(&buf, "datainfo", datainfoJSON(a))
	writePropertiesInto(&buf, a.PropertyList(), []string{"datainfo"})
	buf.WriteByte('}')
	return buf.Bytes()
}

func datainfoJSON(a accessible.Accessible) json.RawMessage {
	info := a.DataInfo()
	if info == nil {
		return json.RawMessage("null")
	}
	return info.ExportType()
}

// writePropertiesInto appends ,"key":value for every property in list
// whose key is not in skip, preceded by a comma since callers have always
// already written at least one field before calling this.
func writePropertiesInto(buf *bytes.Buffer, list *property.List, skip []string) {
	if list == nil {
		return
	}
	for _, key := range list.Keys() {
		if contains(skip, key) {
			continue
		}
		buf.WriteByte(',')
		writeKV(buf, key, list.Get(key).ExportValue())
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func writeKV(buf *bytes.Buffer, key string, value json.RawMessage) {
	buf.Write(jsonString(key))
	buf.WriteByte(':')
	if len(value) == 0 {
		buf.WriteString("null")
		return
	}
	buf.Write(value)
}

func jsonString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
