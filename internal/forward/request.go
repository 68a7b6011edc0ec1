package forward

import "net/http"

// QueryParam is one query-string key/value pair, kept in the order the
// caller supplied it.
type QueryParam struct {
	Key   string
	Value string
}

// Request is the input to Engine.Forward: everything about the incoming
// call that needs to reach the chosen backend.
type Request struct {
	Method string
	Path   string
	Query  []QueryParam
	Header http.Header
	Body   []byte
}

// Response is the output of Engine.Forward: the status, headers, and body
// to write back to the original caller.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func plainTextResponse(status int, body string) Response {
	return Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}},
		Body:       []byte(body),
	}
}
