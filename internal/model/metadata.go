package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type MetadataKind string

const (
	KindText  MetadataKind = "text"
	KindImage MetadataKind = "image"
	KindGame  MetadataKind = "game"
	KindFile  MetadataKind = "file"
)

// MetadataVariant is the closed set of message metadata shapes. UnknownMetadata
// carries anything a newer client sends so it survives a round trip untouched.
type MetadataVariant interface {
	Kind() MetadataKind
	isMetadata()
}

type TextMetadata struct{}

type ImageMetadata struct {
	URL        string
	ObjectName string
}

type GameMetadata struct {
	URL        string
	ObjectName string
}

type FileMetadata struct {
	Name string
	Type string
}

type UnknownMetadata struct {
	Type string
	Raw  json.RawMessage
}

func (TextMetadata) Kind() MetadataKind      { return KindText }
func (ImageMetadata) Kind() MetadataKind     { return KindImage }
func (GameMetadata) Kind() MetadataKind      { return KindGame }
func (FileMetadata) Kind() MetadataKind      { return KindFile }
func (u UnknownMetadata) Kind() MetadataKind { return MetadataKind(u.Type) }

func (TextMetadata) isMetadata()    {}
func (ImageMetadata) isMetadata()   {}
func (GameMetadata) isMetadata()    {}
func (FileMetadata) isMetadata()    {}
func (UnknownMetadata) isMetadata() {}

// Metadata wraps a variant so it can be stored in one text column and exchanged
// as the `{type, imageUrl, gameUrl, fileName, fileType}` JSON object. The zero
// value is text metadata.
type Metadata struct {
	Variant MetadataVariant
}

var ErrInlinePayload = errors.New("metadata must reference payloads by url, not inline data")

func NewMetadata(v MetadataVariant) Metadata { return Metadata{Variant: v} }

func (m Metadata) Get() MetadataVariant {
	if m.Variant == nil {
		return TextMetadata{}
	}
	return m.Variant
}

func (m Metadata) Kind() MetadataKind { return m.Get().Kind() }

// Validate rejects metadata that embeds a payload instead of pointing at the blob store.
func (m Metadata) Validate() error {
	switch v := m.Get().(type) {
	case ImageMetadata:
		if isDataURI(v.URL) {
			return ErrInlinePayload
		}
	case GameMetadata:
		if isDataURI(v.URL) {
			return ErrInlinePayload
		}
	}
	return nil
}

func isDataURI(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(strings.ToLower(s)), "data:")
}

type metadataWire struct {
	Type       string `json:"type"`
	ImageURL   string `json:"imageUrl,omitempty"`
	GameURL    string `json:"gameUrl,omitempty"`
	ObjectName string `json:"objectName,omitempty"`
	FileName   string `json:"fileName,omitempty"`
	FileType   string `json:"fileType,omitempty"`
	HasImage   bool   `json:"hasImage,omitempty"`
	HasGame    bool   `json:"hasGame,omitempty"`
}

func (m Metadata) MarshalJSON() ([]byte, error) {
	var w metadataWire
	switch v := m.Get().(type) {
	case TextMetadata:
		w.Type = string(KindText)
	case ImageMetadata:
		w = metadataWire{Type: string(KindImage), ImageURL: v.URL, ObjectName: v.ObjectName, HasImage: v.URL != ""}
	case GameMetadata:
		w = metadataWire{Type: string(KindGame), GameURL: v.URL, ObjectName: v.ObjectName, HasGame: v.URL != ""}
	case FileMetadata:
		w = metadataWire{Type: string(KindFile), FileName: v.Name, FileType: v.Type}
	case UnknownMetadata:
		if len(v.Raw) > 0 {
			return v.Raw, nil
		}
		w.Type = v.Type
	default:
		return nil, fmt.Errorf("unsupported metadata variant %T", v)
	}
	return json.Marshal(w)
}

func (m *Metadata) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		m.Variant = TextMetadata{}
		return nil
	}

	var w metadataWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode metadata failed: %w", err)
	}

	switch MetadataKind(w.Type) {
	case "", KindText:
		m.Variant = TextMetadata{}
	case KindImage:
		m.Variant = ImageMetadata{URL: w.ImageURL, ObjectName: w.ObjectName}
	case KindGame:
		m.Variant = GameMetadata{URL: w.GameURL, ObjectName: w.ObjectName}
	case KindFile:
		m.Variant = FileMetadata{Name: w.FileName, Type: w.FileType}
	default:
		raw := make(json.RawMessage, len(data))
		copy(raw, data)
		m.Variant = UnknownMetadata{Type: w.Type, Raw: raw}
	}
	return nil
}

func (m Metadata) Value() (driver.Value, error) {
	payload, err := m.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(payload), nil
}

func (m *Metadata) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		m.Variant = TextMetadata{}
		return nil
	case []byte:
		return m.UnmarshalJSON(v)
	case string:
		return m.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("scan metadata: unsupported source type %T", src)
	}
}
