package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/BaSui01/webserver/types"
)

// =============================================================================
// 📄 nginx 风格配置格式
// =============================================================================
//
//	server {
//	    listen 8080;
//	    location /static {
//	        handler static;
//	        root ./www;
//	    }
//	}
// =============================================================================

// NginxStatement 一条语句：若干 token，可选子块
type NginxStatement struct {
	Tokens []string
	Block  *NginxBlock
	Line   int
}

// NginxBlock 语句序列
type NginxBlock struct {
	Statements []*NginxStatement
}

// Find 返回第一个指令名为 directive 的语句
func (b *NginxBlock) Find(directive string) *NginxStatement {
	for _, s := range b.Statements {
		if len(s.Tokens) > 0 && s.Tokens[0] == directive {
			return s
		}
	}
	return nil
}

// ParseNginx 将 nginx 风格文本解析为语句树。
// 支持 # 注释、单/双引号字符串（token 保留引号）、嵌套块。
func ParseNginx(data []byte) (*NginxBlock, error) {
	l := &lexer{text: string(data), limit: len(data), line: 1}
	return l.parse()
}

type lexer struct {
	index int
	limit int
	line  int
	text  string
}

func (l *lexer) parse() (*NginxBlock, error) {
	root := &NginxBlock{}
	stack := []*NginxBlock{root}
	var tokens []string
	startLine := 0

	for l.index < l.limit {
		b := l.text[l.index]
		switch {
		case b == '\n':
			l.line++
			l.index++
		case b == ' ' || b == '\t' || b == '\r':
			l.index++
		case b == '#':
			l.nextUntil('\n')
		case b == ';':
			if len(tokens) == 0 {
				return nil, l.errorf("unexpected ';'")
			}
			top := stack[len(stack)-1]
			top.Statements = append(top.Statements, &NginxStatement{Tokens: tokens, Line: startLine})
			tokens = nil
			l.index++
		case b == '{':
			if len(tokens) == 0 {
				return nil, l.errorf("block without directive")
			}
			child := &NginxBlock{}
			top := stack[len(stack)-1]
			top.Statements = append(top.Statements, &NginxStatement{Tokens: tokens, Block: child, Line: startLine})
			stack = append(stack, child)
			tokens = nil
			l.index++
		case b == '}':
			if len(tokens) != 0 {
				return nil, l.errorf("missing ';' before '}'")
			}
			if len(stack) == 1 {
				return nil, l.errorf("unbalanced '}'")
			}
			stack = stack[:len(stack)-1]
			l.index++
		default:
			if len(tokens) == 0 {
				startLine = l.line
			}
			tok, err := l.nextToken()
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
		}
	}

	if len(tokens) != 0 {
		return nil, l.errorf("unexpected end of input, missing ';'")
	}
	if len(stack) != 1 {
		return nil, l.errorf("unexpected end of input, missing '}'")
	}
	return root, nil
}

// nextToken 读取一个裸 token 或引号字符串
func (l *lexer) nextToken() (string, error) {
	start := l.index
	if q := l.text[l.index]; q == '"' || q == '\'' {
		for l.index++; ; l.index++ {
			if l.index >= l.limit {
				return "", l.errorf("unterminated quoted string")
			}
			c := l.text[l.index]
			if c == '\\' {
				l.index++
				continue
			}
			if c == '\n' {
				l.line++
			}
			if c == q {
				l.index++
				break
			}
		}
		if l.index < l.limit && !isDelimiter(l.text[l.index]) {
			return "", l.errorf("quoted string must be followed by a delimiter")
		}
		return l.text[start:l.index], nil
	}
	for l.index < l.limit && !isDelimiter(l.text[l.index]) && l.text[l.index] != '#' {
		l.index++
	}
	return l.text[start:l.index], nil
}

func (l *lexer) nextUntil(b byte) {
	if i := strings.IndexByte(l.text[l.index:], b); i == -1 {
		l.index = l.limit
	} else {
		l.index += i
	}
}

func (l *lexer) errorf(format string, args ...any) error {
	return fmt.Errorf("nginx config line %d: %s", l.line, fmt.Sprintf(format, args...))
}

func isDelimiter(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', ';', '{', '}':
		return true
	}
	return false
}

// unquote 去掉成对的引号
func unquote(tok string) string {
	if len(tok) >= 2 {
		if q := tok[0]; (q == '"' || q == '\'') && tok[len(tok)-1] == q {
			return tok[1 : len(tok)-1]
		}
	}
	return tok
}

// =============================================================================
// 🔄 语句树 → Config
// =============================================================================

// FromNginx 将顶层唯一的 server 块映射到 cfg。
//
// 识别的指令：listen（必需）、metrics_port、workers、read_buffer_size、
// location <path> { handler <type>; <key> <value>; ... }。其他指令被忽略。
func FromNginx(root *NginxBlock, cfg *Config) error {
	var server *NginxBlock
	for _, s := range root.Statements {
		if len(s.Tokens) > 0 && s.Tokens[0] == "server" && s.Block != nil {
			if server != nil {
				return configError("multiple top-level server blocks are not supported")
			}
			server = s.Block
		}
	}
	if server == nil {
		return configError("no top-level server block found")
	}

	portSet := false
	seen := make(map[string]struct{})
	var locations []types.HandlerSpec

	for _, s := range server.Statements {
		if len(s.Tokens) == 0 {
			continue
		}
		switch s.Tokens[0] {
		case "listen":
			port, err := singleInt(s, "listen directive expects exactly one port value")
			if err != nil {
				return err
			}
			cfg.Server.Port = port
			portSet = true

		case "metrics_port":
			port, err := singleInt(s, "metrics_port expects exactly one port value")
			if err != nil {
				return err
			}
			cfg.Server.MetricsPort = port

		case "workers":
			n, err := singleInt(s, "workers expects exactly one value")
			if err != nil {
				return err
			}
			cfg.Server.Workers = n

		case "read_buffer_size":
			n, err := singleInt(s, "read_buffer_size expects exactly one value")
			if err != nil {
				return err
			}
			cfg.Server.ReadBufferSize = n

		case "location":
			spec, err := locationSpec(s)
			if err != nil {
				return err
			}
			if _, dup := seen[spec.Path]; dup {
				return types.NewError(types.ErrDuplicatePath, "duplicate handler path: "+spec.Path)
			}
			seen[spec.Path] = struct{}{}
			locations = append(locations, spec)
		}
	}

	if !portSet {
		return configError("no listen directive found")
	}

	cfg.Locations = locations
	return nil
}

func locationSpec(s *NginxStatement) (types.HandlerSpec, error) {
	if len(s.Tokens) != 2 {
		return types.HandlerSpec{}, configError("location directive expects exactly one path")
	}
	if s.Block == nil {
		return types.HandlerSpec{}, configError("location block missing body")
	}

	path := unquote(s.Tokens[1])
	spec := types.HandlerSpec{Name: path, Path: path, Options: map[string]string{}}

	for _, child := range s.Block.Statements {
		if len(child.Tokens) == 0 {
			continue
		}
		key := child.Tokens[0]
		if key == "handler" {
			if len(child.Tokens) != 2 {
				return types.HandlerSpec{}, configError("handler type expects exactly one value")
			}
			spec.Type = unquote(child.Tokens[1])
			continue
		}
		if key == "name" && len(child.Tokens) == 2 {
			spec.Name = unquote(child.Tokens[1])
			continue
		}
		if len(child.Tokens) >= 2 {
			spec.Options[key] = unquote(child.Tokens[1])
		}
	}

	if spec.Path == "" || spec.Path[0] != '/' {
		return types.HandlerSpec{}, configError("handler path must start with '/'")
	}
	if spec.Type == "" {
		return types.HandlerSpec{}, configError("handler type must be specified")
	}
	return spec, nil
}

func singleInt(s *NginxStatement, msg string) (int, error) {
	if len(s.Tokens) != 2 {
		return 0, configError(msg)
	}
	n, err := strconv.Atoi(unquote(s.Tokens[1]))
	if err != nil {
		return 0, configError(fmt.Sprintf("line %d: invalid %s value %q", s.Line, s.Tokens[0], s.Tokens[1])).WithCause(err)
	}
	return n, nil
}

func configError(msg string) *types.Error {
	return types.NewError(types.ErrInvalidConfig, msg)
}
