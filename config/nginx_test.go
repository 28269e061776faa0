package config

import (
	"testing"

	"github.com/BaSui01/webserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- ParseNginx 测试 ---

func TestParseNginx_Statements(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		tokens [][]string
	}{
		{"single token", "file;", [][]string{{"file"}}},
		{"multiple tokens", "listen 80 default_server;", [][]string{{"listen", "80", "default_server"}}},
		{"multiple statements", "file list; baz qux;", [][]string{{"file", "list"}, {"baz", "qux"}}},
		{"leading comment", "# this is a comment\nfile list;", [][]string{{"file", "list"}}},
		{"empty comment", "#\nfile list;", [][]string{{"file", "list"}}},
		{"trailing comment", "file list; # done", [][]string{{"file", "list"}}},
		{"double quoted", `file "list";`, [][]string{{"file", `"list"`}}},
		{"single quoted", `file 'list';`, [][]string{{"file", `'list'`}}},
		{"quoted spaces", `file "list baz";`, [][]string{{"file", `"list baz"`}}},
		{"quoted specials", `file "list;{}";`, [][]string{{"file", `"list;{}"`}}},
		{"escaped quote", `file "a\"b";`, [][]string{{"file", `"a\"b"`}}},
		{"extra whitespace", "file    list\t;", [][]string{{"file", "list"}}},
		{"empty input", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block, err := ParseNginx([]byte(tt.input))
			require.NoError(t, err)
			require.Len(t, block.Statements, len(tt.tokens))
			for i, want := range tt.tokens {
				assert.Equal(t, want, block.Statements[i].Tokens)
			}
		})
	}
}

func TestParseNginx_Blocks(t *testing.T) {
	block, err := ParseNginx([]byte("server {\n  # comment\n  listen 80;\n  location / { root /data; }\n}"))
	require.NoError(t, err)

	server := block.Find("server")
	require.NotNil(t, server)
	require.NotNil(t, server.Block)
	require.Len(t, server.Block.Statements, 2)

	loc := server.Block.Find("location")
	require.NotNil(t, loc)
	assert.Equal(t, 4, loc.Line)
	require.Len(t, loc.Block.Statements, 1)
	assert.Equal(t, []string{"root", "/data"}, loc.Block.Statements[0].Tokens)

	assert.Nil(t, block.Find("missing"))
}

func TestParseNginx_EmptyBlock(t *testing.T) {
	block, err := ParseNginx([]byte("server {}"))
	require.NoError(t, err)
	require.Len(t, block.Statements, 1)
	assert.Empty(t, block.Statements[0].Block.Statements)
}

func TestParseNginx_Errors(t *testing.T) {
	inputs := map[string]string{
		"missing semicolon":  "file list",
		"unclosed block":     "server { listen 80;",
		"unbalanced brace":   "listen 80; }",
		"stray semicolon":    ";",
		"block without name": "{ listen 80; }",
		"unterminated quote": `file "list;`,
		"trailing backslash": `file "list\`,
		"quote then text":    `file "a"b;`,
		"missing ; before }": "server { listen 80 }",
	}
	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := ParseNginx([]byte(input))
			assert.Error(t, err)
		})
	}
}

// --- FromNginx 测试 ---

func parseInto(t *testing.T, text string) (*Config, error) {
	t.Helper()
	block, err := ParseNginx([]byte(text))
	require.NoError(t, err)
	cfg := DefaultConfig()
	return cfg, FromNginx(block, cfg)
}

func TestFromNginx(t *testing.T) {
	cfg, err := parseInto(t, `
server {
    listen 8080;
    metrics_port 9100;
    workers 8;
    read_buffer_size 4096;
    unknown_directive ignored;
    location /echo {
        handler echo;
    }
    location /sleep {
        name slow;
        handler sleep;
        sleep_ms 250;
    }
}`)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 9100, cfg.Server.MetricsPort)
	assert.Equal(t, 8, cfg.Server.Workers)
	assert.Equal(t, 4096, cfg.Server.ReadBufferSize)

	require.Len(t, cfg.Locations, 2)
	assert.Equal(t, types.HandlerSpec{Name: "/echo", Path: "/echo", Type: "echo", Options: map[string]string{}}, cfg.Locations[0])
	assert.Equal(t, "slow", cfg.Locations[1].Name)
	assert.Equal(t, "250", cfg.Locations[1].Option("sleep_ms"))
}

func TestFromNginx_Errors(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr string
	}{
		{"no server", "listen 80;", "no top-level server block"},
		{"two servers", "server { listen 1; } server { listen 2; }", "multiple top-level server blocks"},
		{"no listen", "server { location / { handler echo; } }", "no listen directive"},
		{"listen arity", "server { listen 80 81; }", "exactly one port"},
		{"listen not int", "server { listen http; }", "invalid listen value"},
		{"relative path", "server { listen 80; location echo { handler echo; } }", "must start with '/'"},
		{"missing type", "server { listen 80; location /echo { root x; } }", "handler type must be specified"},
		{"handler arity", "server { listen 80; location /echo { handler a b; } }", "exactly one value"},
		{"no body", "server { listen 80; location /echo; }", "missing body"},
		{"duplicate", "server { listen 80; location /a { handler echo; } location /a { handler echo; } }", "duplicate handler path: /a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseInto(t, tt.text)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.NotEmpty(t, types.GetErrorCode(err))
		})
	}
}

func TestFromNginx_DuplicateCode(t *testing.T) {
	_, err := parseInto(t, "server { listen 80; location /a { handler echo; } location /a { handler echo; } }")
	assert.True(t, types.IsCode(err, types.ErrDuplicatePath))
}
