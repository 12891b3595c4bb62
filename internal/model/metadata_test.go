package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadata_DefaultsToText(t *testing.T) {
	var m Metadata
	assert.Equal(t, KindText, m.Kind())

	require.NoError(t, json.Unmarshal([]byte(`{}`), &m))
	assert.Equal(t, TextMetadata{}, m.Get())

	require.NoError(t, json.Unmarshal([]byte(`null`), &m))
	assert.Equal(t, KindText, m.Kind())
}

func TestMetadata_KnownVariants(t *testing.T) {
	cases := []struct {
		raw  string
		want MetadataVariant
	}{
		{`{"type":"image","imageUrl":"http://minio:9000/b/image_1.png"}`, ImageMetadata{URL: "http://minio:9000/b/image_1.png"}},
		{`{"type":"game","gameUrl":"http://minio:9000/b/game_1.json","objectName":"game_1.json"}`, GameMetadata{URL: "http://minio:9000/b/game_1.json", ObjectName: "game_1.json"}},
		{`{"type":"file","fileName":"a.pdf","fileType":"application/pdf"}`, FileMetadata{Name: "a.pdf", Type: "application/pdf"}},
	}
	for _, tc := range cases {
		var m Metadata
		require.NoError(t, json.Unmarshal([]byte(tc.raw), &m))
		assert.Equal(t, tc.want, m.Get())
	}
}

func TestMetadata_MarshalSetsHasFlags(t *testing.T) {
	out, err := json.Marshal(NewMetadata(ImageMetadata{URL: "http://x/y.png", ObjectName: "y.png"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"image","imageUrl":"http://x/y.png","objectName":"y.png","hasImage":true}`, string(out))

	out, err = json.Marshal(NewMetadata(GameMetadata{URL: "http://x/g.json"}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"game","gameUrl":"http://x/g.json","hasGame":true}`, string(out))
}

func TestMetadata_UnknownSurvivesRoundTrip(t *testing.T) {
	raw := `{"type":"audio","audioUrl":"http://x/a.mp3","duration":12}`

	var m Metadata
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	unknown, ok := m.Get().(UnknownMetadata)
	require.True(t, ok)
	assert.Equal(t, "audio", unknown.Type)

	out, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestMetadata_ValidateRejectsInlinePayload(t *testing.T) {
	assert.ErrorIs(t, NewMetadata(ImageMetadata{URL: "data:image/png;base64,AAAA"}).Validate(), ErrInlinePayload)
	assert.ErrorIs(t, NewMetadata(GameMetadata{URL: "DATA:application/json;base64,e30="}).Validate(), ErrInlinePayload)
	assert.NoError(t, NewMetadata(ImageMetadata{URL: "https://cdn/x.png"}).Validate())
	assert.NoError(t, Metadata{}.Validate())
}

func TestMetadata_ScanValue(t *testing.T) {
	v, err := NewMetadata(FileMetadata{Name: "notes.txt", Type: "text/plain"}).Value()
	require.NoError(t, err)

	var m Metadata
	require.NoError(t, m.Scan(v))
	assert.Equal(t, FileMetadata{Name: "notes.txt", Type: "text/plain"}, m.Get())

	require.NoError(t, m.Scan([]byte(`{"type":"text"}`)))
	assert.Equal(t, KindText, m.Kind())

	require.NoError(t, m.Scan(nil))
	assert.Equal(t, KindText, m.Kind())

	assert.Error(t, m.Scan(42))
}
