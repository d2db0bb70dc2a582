package interpolation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapLookup(values map[string]string) LookupFunc {
	return func(name string) (string, bool) {
		v, ok := values[name]
		return v, ok
	}
}

func TestExpand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		input       string
		values      map[string]string
		expected    string
		expectError bool
	}{
		{name: "empty string", input: "", expected: ""},
		{name: "no references", input: "hello world", expected: "hello world"},
		{
			name:     "single reference",
			input:    "${hostname}",
			values:   map[string]string{"hostname": "web1"},
			expected: "web1",
		},
		{
			name:     "reference in middle",
			input:    "Managed host ${hostname}!",
			values:   map[string]string{"hostname": "web1"},
			expected: "Managed host web1!",
		},
		{
			name:     "default used when missing",
			input:    "${ipaddress:0.0.0.0}:${port}",
			values:   map[string]string{"port": "80"},
			expected: "0.0.0.0:80",
		},
		{
			name:     "value wins over default",
			input:    "${port:80}",
			values:   map[string]string{"port": "8080"},
			expected: "8080",
		},
		{
			name:     "empty default",
			input:    "x${suffix:}y",
			expected: "xy",
		},
		{
			name:     "empty value is still a value",
			input:    "x${suffix:default}y",
			values:   map[string]string{"suffix": ""},
			expected: "xy",
		},
		{
			name:        "undefined without default",
			input:       "${missing}",
			expected:    "${missing}",
			expectError: true,
		},
		{
			name:        "mixed defined and undefined",
			input:       "${a}/${b}/${c}",
			values:      map[string]string{"b": "2"},
			expected:    "${a}/2/${c}",
			expectError: true,
		},
		{name: "single dollar is literal", input: "$HOME", expected: "$HOME"},
		{name: "digit start is literal", input: "${1abc}", expected: "${1abc}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result, err := Expand(tt.input, mapLookup(tt.values))
			if tt.expectError {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrUndefined)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestExpand_ReportsEveryMissingName(t *testing.T) {
	t.Parallel()
	_, err := Expand("${a}${b}", mapLookup(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "variable not defined: a")
	assert.Contains(t, err.Error(), "variable not defined: b")
}

func TestReferences(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"hostname", "port"}, References("${hostname}:${port:80}"))
	assert.Nil(t, References("plain"))
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("CATALOGD_TEST_HOME", "/srv/catalogd")

	result, err := ExpandEnvVars("${CATALOGD_TEST_HOME}/site.toml")
	require.NoError(t, err)
	assert.Equal(t, "/srv/catalogd/site.toml", result)

	result, err = ExpandEnvVars("${CATALOGD_TEST_UNSET:/etc/catalogd}/site.toml")
	require.NoError(t, err)
	assert.Equal(t, "/etc/catalogd/site.toml", result)

	_, err = ExpandEnvVars("${CATALOGD_TEST_UNSET}")
	assert.ErrorIs(t, err, ErrUndefined)
}
