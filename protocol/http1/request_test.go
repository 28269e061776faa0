package http1

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequest_HeaderValueFirstMatch(t *testing.T) {
	req := &Request{Headers: []Header{
		{Name: "Accept", Value: "a"},
		{Name: "ACCEPT", Value: "b"},
	}}

	v, ok := req.HeaderValue("accept")
	assert.True(t, ok)
	assert.Equal(t, "a", v)

	_, ok = req.HeaderValue("Host")
	assert.False(t, ok)
	assert.Equal(t, "", req.Header("Host"))
}

func TestRequest_Path(t *testing.T) {
	assert.Equal(t, "/a/b", (&Request{URI: "/a/b?x=1"}).Path())
	assert.Equal(t, "/a/b", (&Request{URI: "/a/b"}).Path())
}

func TestRequest_Reset(t *testing.T) {
	req := &Request{
		Method:  "GET",
		URI:     "/",
		Version: "1.1",
		Headers: []Header{{Name: "A", Value: "b"}},
		Body:    []byte("body"),
		Raw:     []byte("raw"),
	}
	req.Reset()

	assert.Empty(t, req.Method)
	assert.Empty(t, req.URI)
	assert.Empty(t, req.Version)
	assert.Empty(t, req.Headers)
	assert.Empty(t, req.Body)
	assert.Empty(t, req.Raw)
}
