package project

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Collector walks the rest of a project document and returns its plugin
// references in document order.
type Collector interface {
	Collect(dec *xml.Decoder) ([]PluginReference, error)
}

// Schema5Collector reads plugin devices of Ableton Live 9 and later documents.
// Each device is a PluginDesc holding one VstPluginInfo, Vst3PluginInfo or
// AuPluginInfo element whose properties are child elements with a Value
// attribute.
type Schema5Collector struct{}

var pluginInfoFormats = map[string]string{
	"VstPluginInfo":  FormatVST2,
	"Vst3PluginInfo": FormatVST3,
	"AuPluginInfo":   FormatAU,
}

// Collect implements Collector.
func (Schema5Collector) Collect(dec *xml.Decoder) ([]PluginReference, error) {
	var (
		plugins []PluginReference
		stack   []string
		current *PluginReference
		// depth of the open plugin info element
		infoDepth int
		uid       []string
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := t.Name.Local
			parent := ""
			if len(stack) > 0 {
				parent = stack[len(stack)-1]
			}
			stack = append(stack, name)
			depth := len(stack)

			if current == nil {
				if format, ok := pluginInfoFormats[name]; ok && parent == "PluginDesc" {
					current = &PluginReference{Format: format}
					infoDepth = depth
					uid = uid[:0]
				}
				continue
			}

			value, hasValue := attr(t, "Value")
			switch {
			case depth == infoDepth+1 && hasValue:
				setProperty(current, name, value)
			case depth == infoDepth+2 && parent == "Uid" && strings.HasPrefix(name, "Fields.") && hasValue:
				uid = append(uid, value)
			}

		case xml.EndElement:
			if current != nil && len(stack) == infoDepth {
				if current.Format == FormatVST3 && current.UID == "" {
					current.UID = vst3UID(uid)
				}
				plugins = append(plugins, *current)
				current = nil
			}
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if current != nil {
		return nil, fmt.Errorf("unterminated %s plugin element", current.Format)
	}
	return plugins, nil
}

func setProperty(ref *PluginReference, name, value string) {
	switch ref.Format {
	case FormatVST2:
		switch name {
		case "PlugName":
			ref.Name = value
		case "FileName":
			ref.FileName = value
		case "UniqueId":
			ref.UID = value
		}
	case FormatVST3, FormatAU:
		if name == "Name" {
			ref.Name = value
		}
	}
}

// vst3UID renders the four signed 32-bit Uid fields as a 32 digit hex class ID.
func vst3UID(fields []string) string {
	if len(fields) != 4 {
		return ""
	}
	var b strings.Builder
	for _, f := range fields {
		n, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return ""
		}
		fmt.Fprintf(&b, "%08X", uint32(n))
	}
	return b.String()
}

func attr(el xml.StartElement, name string) (string, bool) {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}
