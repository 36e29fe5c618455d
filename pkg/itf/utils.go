package itf

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
)

// Request is a pending call against a TestEnvironment's router.
type Request struct {
	env     *TestEnvironment
	method  string
	path    string
	body    io.Reader
	headers http.Header
}

func (te *TestEnvironment) Request(method, path string) *Request {
	return &Request{env: te, method: method, path: path, headers: http.Header{}}
}

func (r *Request) Header(key, value string) *Request {
	r.headers.Set(key, value)
	return r
}

// JSON encodes v as the request body.
func (r *Request) JSON(tb testing.TB, v any) *Request {
	tb.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		tb.Fatal(err)
	}
	r.body = bytes.NewReader(data)
	r.headers.Set("Content-Type", "application/json")
	return r
}

// Raw sends data with the given content type.
func (r *Request) Raw(data []byte, contentType string) *Request {
	r.body = bytes.NewReader(data)
	r.headers.Set("Content-Type", contentType)
	return r
}

// File sends a multipart form with one file part plus plain fields.
func (r *Request) File(tb testing.TB, field, filename string, data []byte, fields map[string]string) *Request {
	tb.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		tb.Fatal(err)
	}
	if _, err := part.Write(data); err != nil {
		tb.Fatal(err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			tb.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		tb.Fatal(err)
	}
	r.body = buf
	r.headers.Set("Content-Type", mw.FormDataContentType())
	return r
}

// Do serves the request in-process and returns the recorded response.
func (r *Request) Do(tb testing.TB) *Response {
	tb.Helper()
	req := httptest.NewRequest(r.method, r.path, r.body)
	for k, vs := range r.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	r.env.Handler().ServeHTTP(rec, req)
	return &Response{ResponseRecorder: rec}
}

type Response struct {
	*httptest.ResponseRecorder
}

// Decode unmarshals the response body into a T.
func Decode[T any](tb testing.TB, resp *Response) T {
	tb.Helper()
	var out T
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		tb.Fatalf("decode response %q: %v", resp.Body.String(), err)
	}
	return out
}
