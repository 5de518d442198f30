package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Files []struct {
		Filename string `json:"filename"`
	} `json:"files"`
}

func TestDecodeStructured(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantErr  bool
		wantFile string
	}{
		{
			name:     "plain object",
			response: `{"files":[{"filename":"a.go"}]}`,
			wantFile: "a.go",
		},
		{
			name:     "fenced json",
			response: "Here you go:\n```json\n{\"files\":[{\"filename\":\"b.go\"}]}\n```",
			wantFile: "b.go",
		},
		{
			name:     "bare fence",
			response: "```\n{\"files\":[{\"filename\":\"c.go\"}]}\n```",
			wantFile: "c.go",
		},
		{
			name:     "prose around object",
			response: "The analysis follows. {\"files\":[{\"filename\":\"d.go\"}]} Hope that helps!",
			wantFile: "d.go",
		},
		{
			name:     "truncated object repaired",
			response: `{"files":[{"filename":"e.go"`,
			wantFile: "e.go",
		},
		{
			name:     "trailing comma repaired",
			response: `{"files":[{"filename":"f.go",}]}`,
			wantFile: "f.go",
		},
		{
			name:     "no json at all",
			response: "I could not analyze this diff.",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got payload
			err := DecodeStructured(tt.response, &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, got.Files, 1)
			assert.Equal(t, tt.wantFile, got.Files[0].Filename)
		})
	}
}

func TestExtractJSONEmptyResponse(t *testing.T) {
	assert.Equal(t, "", ExtractJSON(""))
	assert.Equal(t, "", ExtractJSON("no braces here"))
}
