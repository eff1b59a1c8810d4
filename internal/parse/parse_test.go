package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Format
		wantErr bool
	}{
		{
			name:  "valid JSON object",
			input: `{"version": 1}`,
			want:  FormatJSON,
		},
		{
			name:    "invalid JSON returns error",
			input:   `{not valid json}`,
			wantErr: true,
		},
		{
			name:  "YAML mapping",
			input: "version: 1\nhotels: {}\n",
			want:  FormatYAML,
		},
		{
			name:    "plain text is rejected",
			input:   "Just some plain text",
			wantErr: true,
		},
		{
			name:    "whitespace only is rejected",
			input:   "   \n\n  ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatOf(t *testing.T) {
	f, err := FormatOf("backup.YML", nil)
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	f, err = FormatOf("backup.json", nil)
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = FormatOf("backup.txt", []byte(`{"a": 1}`))
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)
}

func TestFile_YAMLBecomesJSON(t *testing.T) {
	yamlDoc := `version: 1
activeHotelId: h1
hotels:
  h1:
    id: h1
    name: Seaside
    buildings: []
`
	out, err := File("hotel.yaml", []byte(yamlDoc))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"version": 1,
		"activeHotelId": "h1",
		"hotels": {"h1": {"id": "h1", "name": "Seaside", "buildings": []}}
	}`, string(out))
}

func TestFile_JSONPassesThrough(t *testing.T) {
	in := []byte(`{"version":1}`)
	out, err := File("hotel.json", in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestToJSON_UnsupportedFormat(t *testing.T) {
	_, err := ToJSON([]byte("x"), Format("md"))
	assert.Error(t, err)
}
