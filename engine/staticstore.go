// Static content: a pluggable backend for routes that serve bytes from
// somewhere other than a handler function, plus the built-in filesystem
// and S3 implementations.
package engine

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// StaticStore resolves a logical path to file content. FileSystemStore
// backs local directories; S3Store backs an S3 bucket for deployments
// that keep static content out of the instance's own disk.
type StaticStore interface {
	Open(ctx context.Context, name string) (content io.ReadCloser, size int64, modTime time.Time, err error)
}

var ErrStaticNotFound = fmt.Errorf("static content not found")

// FileSystemStore serves files rooted at Dir, the way gorox's webapp
// layer serves a public/ directory.
type FileSystemStore struct {
	Dir string
}

func NewFileSystemStore(dir string) *FileSystemStore { return &FileSystemStore{Dir: dir} }

func (s *FileSystemStore) Open(_ context.Context, name string) (io.ReadCloser, int64, time.Time, error) {
	clean := path.Clean("/" + name) // collapse ".." before joining, refuse escape from Dir
	full := filepath.Join(s.Dir, filepath.FromSlash(clean))
	if !strings.HasPrefix(full, filepath.Clean(s.Dir)+string(filepath.Separator)) && full != filepath.Clean(s.Dir) {
		return nil, 0, time.Time{}, ErrStaticNotFound
	}
	info, err := os.Stat(full)
	if err != nil {
		return nil, 0, time.Time{}, ErrStaticNotFound
	}
	if info.IsDir() {
		full = filepath.Join(full, "index.html")
		info, err = os.Stat(full)
		if err != nil {
			return nil, 0, time.Time{}, ErrStaticNotFound
		}
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, 0, time.Time{}, ErrStaticNotFound
	}
	return f, info.Size(), info.ModTime(), nil
}

// S3Store serves static content out of an S3 (or S3-compatible) bucket,
// for deployments that keep instances stateless.
type S3Store struct {
	Client *s3.Client
	Bucket string
	Prefix string
}

func NewS3Store(client *s3.Client, bucket, prefix string) *S3Store {
	return &S3Store{Client: client, Bucket: bucket, Prefix: prefix}
}

func (s *S3Store) Open(ctx context.Context, name string) (io.ReadCloser, int64, time.Time, error) {
	key := strings.TrimPrefix(path.Join(s.Prefix, name), "/")
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, 0, time.Time{}, ErrStaticNotFound
	}
	size := int64(0)
	if out.ContentLength != nil {
		size = *out.ContentLength
	}
	modTime := time.Now()
	if out.LastModified != nil {
		modTime = *out.LastModified
	}
	return out.Body, size, modTime, nil
}

// serveStatic resolves route.Static against the request path and writes
// the result directly onto rc.Response, including a Cache-Control header
// when web.static.cache is enabled with a positive maxAge.
func serveStatic(rc *RequestContext, route *Route) error {
	if rc.HTTP == nil {
		return NewError(KindProtocolParse, "static.serve", fmt.Errorf("static routes only serve HTTP requests"))
	}
	name := rc.HTTP.Path
	if route.Static.StripRoute {
		name = strings.TrimPrefix(name, strings.TrimSuffix(route.Pattern, "*"))
	}
	name = strings.TrimPrefix(name, "/")

	content, size, modTime, err := route.Static.Store.Open(rc.Context(), name)
	if err != nil {
		rc.Response = NewResponseWriter()
		rc.Response.WriteText(404, "404 Not Found")
		return nil
	}
	defer content.Close()

	body, err := io.ReadAll(content)
	if err != nil {
		return NewError(KindProtocolParse, "static.serve", err)
	}

	rc.Response = NewResponseWriter()
	rc.Response.Status = 200
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		rc.Response.SetHeader("Content-Type", ct)
	} else {
		rc.Response.SetHeader("Content-Type", "application/octet-stream")
	}
	rc.Response.SetHeader("Last-Modified", modTime.UTC().Format(http1TimeFormat))
	if maxAge := rc.Server.Config.Web.Static.Cache.MaxAge; rc.Server.Config.Web.Static.Cache.Enable && maxAge > 0 {
		rc.Response.SetHeader("Cache-Control", "public, max-age="+strconv.Itoa(maxAge))
	}
	_ = size
	rc.Response.Body = body
	return nil
}

const http1TimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"
