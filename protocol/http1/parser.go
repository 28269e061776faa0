package http1

import (
	"strconv"

	"go.uber.org/zap"
)

// Result 单次 Parse 调用的结果
type Result uint8

const (
	// ResultInProgress 需要更多字节
	ResultInProgress Result = iota
	// ResultProperRequest 完整且合法的请求
	ResultProperRequest
	// ResultBadRequest 请求格式错误
	ResultBadRequest
)

// String implements fmt.Stringer.
func (s Result) String() string {
	switch s {
	case ResultInProgress:
		return "in_progress"
	case ResultProperRequest:
		return "proper_request"
	case ResultBadRequest:
		return "bad_request"
	default:
		return "unknown"
	}
}

type parserState uint8

const (
	stateStart parserState = iota + 1
	stateMethod
	stateURI
	stateH
	stateT1
	stateT2
	stateP
	stateSlash
	stateVersion
	stateRequestLineCR
	stateHeaderStart
	stateHeaderName
	stateHeaderColon
	stateHeaderValue
	stateHeaderLineCR
	stateEndCR
	stateBody
	stateDone
)

var stateNames = map[parserState]string{
	stateStart:         "start",
	stateMethod:        "method",
	stateURI:           "uri",
	stateH:             "http_h",
	stateT1:            "http_t1",
	stateT2:            "http_t2",
	stateP:             "http_p",
	stateSlash:         "http_slash",
	stateVersion:       "version",
	stateRequestLineCR: "request_line_cr",
	stateHeaderStart:   "header_start",
	stateHeaderName:    "header_name",
	stateHeaderColon:   "header_colon",
	stateHeaderValue:   "header_value",
	stateHeaderLineCR:  "header_line_cr",
	stateEndCR:         "end_cr",
	stateBody:          "body",
	stateDone:          "done",
}

func (s parserState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

const (
	supportedVersion = "1.1"
	contentLength    = "Content-Length"

	// body 预分配上限，避免超大 Content-Length 一次性占用内存
	maxBodyPrealloc = 64 << 10
)

// Parser 增量式 HTTP/1.1 请求解析器。
//
// 状态在多次 Parse 调用之间保留，因此可以按任意字节边界喂入数据。
// 一个 Parser 只解析一个请求，得到终态后需要 Reset 才能继续使用。
// Parser 不是并发安全的，每个连接持有自己的实例。
type Parser struct {
	state     parserState
	token     []byte
	name      string
	remaining int64
	failedAt  parserState

	logger *zap.Logger
}

// NewParser 创建解析器，logger 为 nil 时不输出日志
func NewParser(logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{
		state:  stateStart,
		token:  make([]byte, 0, 64),
		logger: logger.With(zap.String("component", "http1_parser")),
	}
}

// Reset 清空内部状态；不修改 Request（从初始状态开始解析时会自动清空它）
func (p *Parser) Reset() {
	p.state = stateStart
	p.token = p.token[:0]
	p.name = ""
	p.remaining = 0
	p.failedAt = 0
}

// ErrorState 返回最近一次拒绝请求时所处的状态名，未失败时为空
func (p *Parser) ErrorState() string {
	if p.failedAt == 0 {
		return ""
	}
	return p.failedAt.String()
}

// Parse 消费 chunk 并推进状态机。
func (p *Parser) Parse(req *Request, chunk []byte) Result {
	if len(chunk) == 0 {
		return ResultInProgress
	}

	switch p.state {
	case stateStart:
		req.Reset()
	case stateDone:
		p.logger.Debug("parse called after terminal verdict without reset")
		p.failedAt = stateDone
		return ResultBadRequest
	}

	n, status := p.consume(req, chunk)
	req.Raw = append(req.Raw, chunk[:n]...)
	return status
}

// consume 返回已消费字节数与本次结果
func (p *Parser) consume(req *Request, chunk []byte) (int, Result) {
	i := 0
	for i < len(chunk) {
		if p.state == stateBody {
			n := int64(len(chunk) - i)
			if n > p.remaining {
				n = p.remaining
			}
			req.Body = append(req.Body, chunk[i:i+int(n)]...)
			i += int(n)
			p.remaining -= n
			if p.remaining == 0 {
				p.state = stateDone
				return i, ResultProperRequest
			}
			continue
		}

		c := chunk[i]
		i++

		switch p.state {
		case stateStart:
			if !isUpper(c) {
				return i, p.fail("method must start with an uppercase letter")
			}
			p.token = append(p.token[:0], c)
			p.state = stateMethod

		case stateMethod:
			switch {
			case isUpper(c):
				p.token = append(p.token, c)
			case c == ' ':
				req.Method = string(p.token)
				p.token = p.token[:0]
				p.state = stateURI
			default:
				return i, p.fail("invalid method byte")
			}

		case stateURI:
			switch {
			case c == ' ':
				req.URI = string(p.token)
				p.token = p.token[:0]
				p.state = stateH
			case isURIByte(c):
				p.token = append(p.token, c)
			default:
				return i, p.fail("invalid uri byte")
			}

		case stateH:
			if c != 'H' {
				return i, p.fail("expected 'H'")
			}
			p.state = stateT1

		case stateT1:
			if c != 'T' {
				return i, p.fail("expected 'T'")
			}
			p.state = stateT2

		case stateT2:
			if c != 'T' {
				return i, p.fail("expected 'T'")
			}
			p.state = stateP

		case stateP:
			if c != 'P' {
				return i, p.fail("expected 'P'")
			}
			p.state = stateSlash

		case stateSlash:
			if c != '/' {
				return i, p.fail("expected '/'")
			}
			p.state = stateVersion

		case stateVersion:
			switch {
			case c == '1' || c == '.':
				p.token = append(p.token, c)
			case c == '\r':
				if string(p.token) != supportedVersion {
					return i, p.fail("unsupported http version")
				}
				req.Version = supportedVersion
				p.token = p.token[:0]
				p.state = stateRequestLineCR
			default:
				return i, p.fail("invalid version byte")
			}

		case stateRequestLineCR:
			if c != '\n' {
				return i, p.fail("expected LF after request line")
			}
			p.state = stateHeaderStart

		case stateHeaderStart:
			if c == '\r' {
				p.state = stateEndCR
				continue
			}
			// 该字节属于头部名称，转入 header_name 重新处理
			p.state = stateHeaderName
			i--

		case stateHeaderName:
			switch c {
			case ':':
				if len(p.token) == 0 {
					return i, p.fail("empty header name")
				}
				p.name = string(p.token)
				p.token = p.token[:0]
				p.state = stateHeaderColon
			case '\r', '\n':
				return i, p.fail("line break in header name")
			default:
				p.token = append(p.token, c)
			}

		case stateHeaderColon:
			if c != ' ' {
				return i, p.fail("expected single space after colon")
			}
			p.state = stateHeaderValue

		case stateHeaderValue:
			if c == '\r' {
				p.state = stateHeaderLineCR
				continue
			}
			p.token = append(p.token, c)

		case stateHeaderLineCR:
			if c != '\n' {
				return i, p.fail("expected LF after header line")
			}
			req.Headers = append(req.Headers, Header{Name: p.name, Value: string(p.token)})
			p.name = ""
			p.token = p.token[:0]
			p.state = stateHeaderStart

		case stateEndCR:
			if c != '\n' {
				return i, p.fail("expected LF after headers")
			}
			length, ok := p.bodyLength(req)
			if !ok {
				return i, p.fail("malformed Content-Length")
			}
			if length == 0 {
				p.state = stateDone
				return i, ResultProperRequest
			}
			p.remaining = length
			if cap(req.Body) == 0 {
				req.Body = make([]byte, 0, min(length, maxBodyPrealloc))
			}
			p.state = stateBody

		default:
			p.logger.Error("parser reached unknown state", zap.Stringer("state", p.state))
			return i, p.fail("unknown parser state")
		}
	}

	return i, ResultInProgress
}

// bodyLength 解析 Content-Length；缺失或空值视为没有 body
func (p *Parser) bodyLength(req *Request) (int64, bool) {
	v, ok := req.HeaderValue(contentLength)
	if !ok || v == "" {
		return 0, true
	}
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (p *Parser) fail(reason string) Result {
	p.failedAt = p.state
	p.logger.Debug("rejecting request",
		zap.String("state", p.state.String()),
		zap.String("reason", reason),
	)
	p.state = stateDone
	return ResultBadRequest
}

func isUpper(c byte) bool {
	return c >= 'A' && c <= 'Z'
}

func isURIByte(c byte) bool {
	return c > 0x20
}
