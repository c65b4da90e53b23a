package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterSensitiveValue(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "anthropic api key",
			input: "spawn env ANTHROPIC key sk-ant-REDACTED",
			want:  "spawn env ANTHROPIC key " + RedactedValue,
		},
		{
			name:  "github token",
			input: "remote set to ghp_abcdefghij1234567890abcd",
			want:  "remote set to " + RedactedValue,
		},
		{
			name:  "password assignment",
			input: `password="hunter2hunter2"`,
			want:  RedactedValue,
		},
		{
			name:  "plain task prompt untouched",
			input: "summarize the release notes for v2",
			want:  "summarize the release notes for v2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterSensitiveValue(tt.input))
		})
	}
}

func TestContainsSensitiveData(t *testing.T) {
	assert.True(t, ContainsSensitiveData("bearer abcdefghijklmnopqrstuvwxyz"))
	assert.False(t, ContainsSensitiveData("task finished in 42s"))
}

func TestIsSensitiveFieldName(t *testing.T) {
	assert.True(t, IsSensitiveFieldName("api_key"))
	assert.True(t, IsSensitiveFieldName("ANTHROPIC_API_KEY"))
	assert.True(t, IsSensitiveFieldName("user_password"))
	assert.False(t, IsSensitiveFieldName("task_id"))
	assert.False(t, IsSensitiveFieldName("working_directory"))
}

func TestSafeValue(t *testing.T) {
	assert.Equal(t, RedactedValue, SafeValue("api_key", "sk-ant-api03-xyz"))
	assert.Equal(t, "fix the tests", SafeValue("prompt", "fix the tests"))
}

func TestFilteringWriterRedactsOutput(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFilteringWriter(&buf)

	payload := "event payload token=abcdefghijklmnopqrstuvwxyz0123456789"
	n, err := fw.Write([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Contains(t, buf.String(), RedactedValue)
	assert.NotContains(t, buf.String(), "abcdefghijklmnopqrstuvwxyz0123456789")
}

func TestSensitiveDataHookFlagsMessages(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Hook(NewSensitiveDataHook())

	logger.Info().Msg("agent key sk-ant-REDACTED")
	assert.Contains(t, buf.String(), `"contains_filtered_data":true`)

	buf.Reset()
	logger.Info().Msg("task finished")
	assert.False(t, strings.Contains(buf.String(), "contains_filtered_data"))
}
