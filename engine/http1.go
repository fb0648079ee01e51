// HTTP/1.1 request parsing and response writing: request line + header
// parsing off a bufio.Reader, with body decoding automatically keyed by
// Content-Type. Targets a single wire format (HTTP/1.1 only, no HTTP/2 or
// HTTP/3), so a buffered reader is enough without a dedicated byte-range
// scanner.
package engine

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// HTTPRequest is the parsed form of an HTTP/1.1 request line + headers +
// body.
type HTTPRequest struct {
	Method  string
	Path    string
	Query   url.Values
	Proto   string // "HTTP/1.1", "HTTP/1.0"
	Headers map[string][]string

	Params map[string]string // path parameters bound by the router

	Body       []byte
	Form       url.Values
	JSONBody   any
	MultipartForm *multipart.Form

	Cookies map[string]string

	KeepAlive       bool
	IsUpgrade       bool
	WebSocketKey    string

	RemoteAddr string
	UserAgent  string
}

func (r *HTTPRequest) Header(name string) string {
	if vs, ok := r.Headers[canonicalHeader(name)]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func canonicalHeader(name string) string {
	return strings.ToLower(name)
}

// maxRequestLine / maxHeaderBytes bound a pathological client with a
// generous but finite cap.
const (
	maxRequestLine = 8 * 1024
	maxHeaderBytes = 64 * 1024
)

// ParseHTTPRequest reads one HTTP/1.1 request off r. bodyLimit is the
// configured server.request.bodySize; 0 means unlimited.
func ParseHTTPRequest(r *bufio.Reader, bodyLimit int64) (*HTTPRequest, error) {
	line, err := readLine(r, maxRequestLine)
	if err != nil {
		return nil, NewError(KindProtocolParse, "http1.requestLine", err)
	}
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return nil, NewError(KindProtocolParse, "http1.requestLine", fmt.Errorf("malformed request line: %q", line))
	}
	req := &HTTPRequest{Method: parts[0], Proto: parts[2], Headers: make(map[string][]string), Cookies: make(map[string]string)}

	rawTarget := parts[1]
	if idx := strings.IndexByte(rawTarget, '?'); idx != -1 {
		req.Path = rawTarget[:idx]
		req.Query, _ = url.ParseQuery(rawTarget[idx+1:])
	} else {
		req.Path = rawTarget
		req.Query = url.Values{}
	}
	if decoded, err := url.PathUnescape(req.Path); err == nil {
		req.Path = decoded
	}
	if len(req.Path) > 1 {
		req.Path = strings.TrimSuffix(req.Path, "/")
		if req.Path == "" {
			req.Path = "/"
		}
	}

	headerBytes := 0
	for {
		hline, err := readLine(r, maxHeaderBytes)
		if err != nil {
			return nil, NewError(KindProtocolParse, "http1.headers", err)
		}
		if hline == "" {
			break
		}
		headerBytes += len(hline)
		if headerBytes > maxHeaderBytes {
			return nil, NewError(KindProtocolParse, "http1.headers", errors.New("headers too large"))
		}
		idx := strings.IndexByte(hline, ':')
		if idx == -1 {
			return nil, NewError(KindProtocolParse, "http1.headers", fmt.Errorf("malformed header: %q", hline))
		}
		name := canonicalHeader(strings.TrimSpace(hline[:idx]))
		value := strings.TrimSpace(hline[idx+1:])
		req.Headers[name] = append(req.Headers[name], value)
	}

	req.UserAgent = req.Header("user-agent")
	parseCookies(req)

	// Keep-alive: HTTP/1.1 defaults to keep-alive unless Connection: close.
	conn := strings.ToLower(req.Header("connection"))
	req.KeepAlive = req.Proto == "HTTP/1.1" && conn != "close"
	if req.Proto == "HTTP/1.0" && conn == "keep-alive" {
		req.KeepAlive = true
	}

	// WebSocket upgrade detection.
	upgrade := strings.ToLower(req.Header("upgrade"))
	if upgrade == "websocket" && strings.Contains(conn, "upgrade") {
		key := req.Header("sec-websocket-key")
		if key != "" {
			req.IsUpgrade = true
			req.WebSocketKey = key
		}
	}

	if err := readBody(r, req, bodyLimit); err != nil {
		return nil, err
	}
	decodeBody(req)

	return req, nil
}

func readLine(r *bufio.Reader, limit int) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	if len(line) > limit {
		return "", errors.New("line too long")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func parseCookies(req *HTTPRequest) {
	header := req.Header("cookie")
	if header == "" {
		return
	}
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		if v, err := url.QueryUnescape(kv[1]); err == nil {
			req.Cookies[kv[0]] = v
		} else {
			req.Cookies[kv[0]] = kv[1]
		}
	}
}

// readBody implements : body handling follows Content-Length
// or Transfer-Encoding: chunked.
func readBody(r *bufio.Reader, req *HTTPRequest, bodyLimit int64) error {
	te := strings.ToLower(req.Header("transfer-encoding"))
	if te == "chunked" {
		return readChunkedBody(r, req, bodyLimit)
	}
	clHeader := req.Header("content-length")
	if clHeader == "" {
		return nil
	}
	length, err := strconv.ParseInt(clHeader, 10, 64)
	if err != nil || length < 0 {
		return NewError(KindProtocolParse, "http1.contentLength", fmt.Errorf("bad Content-Length: %q", clHeader))
	}
	if bodyLimit > 0 && length > bodyLimit {
		return NewError(KindProtocolParse, "http1.body", fmt.Errorf("body of %d bytes exceeds limit %d", length, bodyLimit))
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return NewError(KindProtocolParse, "http1.body", err)
	}
	req.Body = body
	return nil
}

func readChunkedBody(r *bufio.Reader, req *HTTPRequest, bodyLimit int64) error {
	var buf bytes.Buffer
	for {
		sizeLine, err := readLine(r, 64)
		if err != nil {
			return NewError(KindProtocolParse, "http1.chunked", err)
		}
		sizeLine = strings.TrimSpace(strings.SplitN(sizeLine, ";", 2)[0])
		size, err := strconv.ParseInt(sizeLine, 16, 64)
		if err != nil || size < 0 {
			return NewError(KindProtocolParse, "http1.chunked", fmt.Errorf("bad chunk size: %q", sizeLine))
		}
		if size == 0 {
			// trailer headers, terminated by an empty line
			for {
				trailer, err := readLine(r, maxHeaderBytes)
				if err != nil {
					return NewError(KindProtocolParse, "http1.chunked", err)
				}
				if trailer == "" {
					break
				}
			}
			break
		}
		if bodyLimit > 0 && int64(buf.Len())+size > bodyLimit {
			return NewError(KindProtocolParse, "http1.chunked", fmt.Errorf("chunked body exceeds limit %d", bodyLimit))
		}
		chunk := make([]byte, size)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return NewError(KindProtocolParse, "http1.chunked", err)
		}
		buf.Write(chunk)
		if _, err := readLine(r, 2); err != nil { // trailing CRLF after chunk data
			return NewError(KindProtocolParse, "http1.chunked", err)
		}
	}
	req.Body = buf.Bytes()
	return nil
}

// decodeBody implements : "Content-Type drives automatic body
// decoding: application/json, application/xml, application/x-www-form-
// urlencoded, multipart/form-data." XML decoding is left to handler code
// (handlers receive req.Body and can unmarshal with encoding/xml
// themselves); the other three are decoded eagerly since routing and auth
// (Form scheme) need them.
func decodeBody(req *HTTPRequest) {
	contentType := req.Header("content-type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return
	}
	switch mediaType {
	case "application/json":
		_ = json.Unmarshal(req.Body, &req.JSONBody)
	case "application/x-www-form-urlencoded":
		if form, err := url.ParseQuery(string(req.Body)); err == nil {
			req.Form = form
		}
	case "multipart/form-data":
		boundary, ok := params["boundary"]
		if !ok {
			return
		}
		mr := multipart.NewReader(bytes.NewReader(req.Body), boundary)
		if form, err := mr.ReadForm(32 << 20); err == nil {
			req.MultipartForm = form
			req.Form = url.Values(form.Value)
		}
	}
}

// Cookie mirrors net/http.Cookie's shape closely enough for handler code
// to feel familiar, but is engine's own type since engine does not import
// net/http (Pode is not built atop net/http; it implements its own
// listener .
type Cookie struct {
	Name     string
	Value    string
	Path     string
	Domain   string
	MaxAge   int
	HTTPOnly bool
	Secure   bool
	SameSite string
}

func (c *Cookie) String() string {
	var b strings.Builder
	b.WriteString(url.QueryEscape(c.Name))
	b.WriteByte('=')
	b.WriteString(url.QueryEscape(c.Value))
	if c.Path != "" {
		b.WriteString("; Path=" + c.Path)
	} else {
		b.WriteString("; Path=/")
	}
	if c.Domain != "" {
		b.WriteString("; Domain=" + c.Domain)
	}
	if c.MaxAge != 0 {
		b.WriteString("; Max-Age=" + strconv.Itoa(c.MaxAge))
	}
	if c.HTTPOnly {
		b.WriteString("; HttpOnly")
	}
	if c.Secure {
		b.WriteString("; Secure")
	}
	if c.SameSite != "" {
		b.WriteString("; SameSite=" + c.SameSite)
	}
	return b.String()
}

// ResponseWriter accumulates a response before it is written to the
// socket in one pass.
type ResponseWriter struct {
	Status  int
	Headers map[string][]string
	Body    []byte
	written bool
}

func NewResponseWriter() *ResponseWriter {
	return &ResponseWriter{Status: 200, Headers: make(map[string][]string)}
}

func (w *ResponseWriter) SetHeader(name, value string) {
	w.Headers[name] = []string{value}
}
func (w *ResponseWriter) AddHeader(name, value string) {
	w.Headers[name] = append(w.Headers[name], value)
}
func (w *ResponseWriter) Header(name string) string {
	if vs, ok := w.Headers[name]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}
func (w *ResponseWriter) WriteJSON(status int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.Status = status
	w.SetHeader("Content-Type", "application/json")
	w.Body = body
	return nil
}
func (w *ResponseWriter) WriteText(status int, body string) {
	w.Status = status
	w.SetHeader("Content-Type", "text/plain; charset=utf-8")
	w.Body = []byte(body)
}

// writeHTTPResponse serializes the response as an HTTP/1.1 status line + headers +
// body onto the connection, appending any pending cookies.
func (rc *RequestContext) writeHTTPResponse() error {
	w := rc.Response
	var headerBuf bytes.Buffer
	fmt.Fprintf(&headerBuf, "HTTP/1.1 %d %s\r\n", w.Status, statusText(w.Status))

	names := make([]string, 0, len(w.Headers))
	for name := range w.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	hasContentLength := false
	for _, name := range names {
		if strings.EqualFold(name, "content-length") {
			hasContentLength = true
		}
		for _, v := range w.Headers[name] {
			fmt.Fprintf(&headerBuf, "%s: %s\r\n", name, v)
		}
	}
	if !hasContentLength {
		fmt.Fprintf(&headerBuf, "Content-Length: %d\r\n", len(w.Body))
	}
	for _, cookie := range rc.pendingCookies {
		fmt.Fprintf(&headerBuf, "Set-Cookie: %s\r\n", cookie.String())
	}
	if rc.HTTP != nil && rc.HTTP.KeepAlive {
		headerBuf.WriteString("Connection: keep-alive\r\n")
	} else {
		headerBuf.WriteString("Connection: close\r\n")
	}
	headerBuf.WriteString("\r\n")

	if _, err := rc.Socket.Write(headerBuf.Bytes()); err != nil {
		return err
	}
	if len(w.Body) > 0 {
		if _, err := rc.Socket.Write(w.Body); err != nil {
			return err
		}
	}
	w.written = true
	return nil
}

var statusTexts = map[int]string{
	200: "OK", 201: "Created", 204: "No Content",
	301: "Moved Permanently", 302: "Found", 304: "Not Modified",
	400: "Bad Request", 401: "Unauthorized", 403: "Forbidden", 404: "Not Found",
	405: "Method Not Allowed", 409: "Conflict", 413: "Payload Too Large",
	500: "Internal Server Error", 501: "Not Implemented", 503: "Service Unavailable",
	101: "Switching Protocols",
}

func statusText(code int) string {
	if t, ok := statusTexts[code]; ok {
		return t
	}
	return "Status"
}
