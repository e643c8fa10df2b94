// Package codec converts FileInfo records and plugin configuration to and
// from the JSON text that crosses the plugin boundary.
//
// Decoding is tolerant: payloads come from the trusted side of the
// boundary, and a malformed one degrades to an empty record, list or config
// instead of failing the operation.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/c4pt0r/agfs/agfs-wasm-sdk/pkg/filesystem"
)

// ModTimePlaceholder is the timestamp every encoded record carries.
const ModTimePlaceholder = "0001-01-01T00:00:00Z"

type wireMeta struct {
	Name    string          `json:"Name"`
	Type    string          `json:"Type"`
	Content json.RawMessage `json:"Content"`
}

type wireFileInfo struct {
	Name    string    `json:"Name"`
	Size    uint64    `json:"Size"`
	Mode    uint32    `json:"Mode"`
	ModTime string    `json:"ModTime"`
	IsDir   bool      `json:"IsDir"`
	Meta    *wireMeta `json:"Meta,omitempty"`
}

func toWire(info filesystem.FileInfo) wireFileInfo {
	return wireFileInfo{
		Name:    info.Name,
		Size:    info.Size,
		Mode:    info.Mode,
		ModTime: ModTimePlaceholder,
		IsDir:   info.IsDir,
	}
}

// EncodeFileInfo renders a single record. Meta.Content is embedded as parsed
// JSON; content that does not parse is replaced by an empty object.
func EncodeFileInfo(info filesystem.FileInfo) string {
	w := toWire(info)
	if info.Meta != nil {
		w.Meta = &wireMeta{
			Name:    info.Meta.Name,
			Type:    info.Meta.Type,
			Content: metaContent(info.Meta.Content),
		}
	}
	return marshal(w, "{}")
}

// EncodeFileInfoList renders a JSON array of records. Meta is not part of
// the list form.
func EncodeFileInfoList(list []filesystem.FileInfo) string {
	ws := make([]wireFileInfo, 0, len(list))
	for _, info := range list {
		ws = append(ws, toWire(info))
	}
	return marshal(ws, "[]")
}

func metaContent(content string) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(content)); err != nil {
		return json.RawMessage("{}")
	}
	return json.RawMessage(buf.Bytes())
}

func marshal(v any, fallback string) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fallback
	}
	return string(data)
}

// DecodeFileInfo parses a single record. Anything other than a JSON object
// yields the zero FileInfo; missing or mistyped fields keep their zero value.
func DecodeFileInfo(text string) filesystem.FileInfo {
	fields, ok := object([]byte(text))
	if !ok {
		return filesystem.FileInfo{}
	}
	return fromFields(fields)
}

// DecodeFileInfoList parses an array of records. Anything other than a JSON
// array yields an empty list; elements that are not objects are skipped.
func DecodeFileInfoList(text string) []filesystem.FileInfo {
	list := []filesystem.FileInfo{}
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(text), &elems); err != nil {
		return list
	}
	for _, elem := range elems {
		fields, ok := object(elem)
		if !ok {
			continue
		}
		list = append(list, fromFields(fields))
	}
	return list
}

func object(data []byte) (map[string]json.RawMessage, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, false
	}
	return fields, true
}

func fromFields(fields map[string]json.RawMessage) filesystem.FileInfo {
	var info filesystem.FileInfo
	field(fields, "Name", &info.Name)
	field(fields, "Size", &info.Size)
	field(fields, "Mode", &info.Mode)
	field(fields, "IsDir", &info.IsDir)

	if raw, ok := fields["Meta"]; ok {
		if meta, ok := object(raw); ok {
			m := &filesystem.MetaData{}
			field(meta, "Name", &m.Name)
			field(meta, "Type", &m.Type)
			if content, ok := meta["Content"]; ok {
				m.Content = string(metaContent(string(content)))
			}
			info.Meta = m
		}
	}
	return info
}

// field decodes one member into dst, leaving dst untouched on any error.
func field[T any](fields map[string]json.RawMessage, key string, dst *T) {
	raw, ok := fields[key]
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return
	}
	*dst = v
}

// DecodeConfig parses a flat JSON object into a Config. Strings are kept
// verbatim, numbers are rendered in plain decimal and booleans as "true" or
// "false". Other values are dropped. Input that is not a single JSON object
// yields an empty Config.
func DecodeConfig(text string) filesystem.Config {
	cfg := filesystem.Config{}

	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil || raw == nil {
		return cfg
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return cfg
	}

	for k, v := range raw {
		switch val := v.(type) {
		case string:
			cfg[k] = val
		case bool:
			cfg[k] = strconv.FormatBool(val)
		case json.Number:
			cfg[k] = formatNumber(val)
		}
	}
	return cfg
}

func formatNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
		return strconv.FormatUint(u, 10)
	}
	if f, err := n.Float64(); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return n.String()
}

// EncodeConfig renders a configuration map as the JSON object handed to a
// plugin. Values of any JSON-compatible type are accepted; the plugin side
// coerces them with DecodeConfig.
func EncodeConfig(cfg map[string]any) (string, error) {
	if cfg == nil {
		return "{}", nil
	}
	data, err := json.Marshal(normalizeYAML(cfg))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// normalizeYAML converts map[any]any nodes, which YAML decoders may produce
// for nested mappings, into map[string]any so they can be marshaled.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeYAML(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[toString(k)] = normalizeYAML(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeYAML(item)
		}
		return out
	default:
		return v
	}
}

func toString(k any) string {
	if s, ok := k.(string); ok {
		return s
	}
	data, err := json.Marshal(k)
	if err != nil {
		return ""
	}
	return strings.Trim(string(data), `"`)
}
