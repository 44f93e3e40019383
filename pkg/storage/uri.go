package storage

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ObjectURI addresses an object (or a prefix when ObjectName is empty) in a bucket.
type ObjectURI struct {
	BucketName string
	Prefix     string
	ObjectName string
}

// ParseURI parses s3://bucket/prefix/object. A trailing slash marks the
// whole path as a prefix.
func ParseURI(uri string) (*ObjectURI, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid URI %q: %w", uri, err)
	}
	if u.Scheme != "s3" {
		return nil, fmt.Errorf("unsupported URI scheme %q in %q", u.Scheme, uri)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid S3 URI %q: missing bucket name", uri)
	}

	prefix := strings.TrimPrefix(u.Path, "/")

	var objectName string
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		parts := strings.Split(prefix, "/")
		objectName = parts[len(parts)-1]
		prefix = strings.Join(parts[:len(parts)-1], "/")
	}

	return &ObjectURI{
		BucketName: u.Host,
		Prefix:     strings.TrimSuffix(prefix, "/"),
		ObjectName: objectName,
	}, nil
}

// Key is the full object key.
func (u ObjectURI) Key() string {
	return strings.TrimPrefix(path.Join(u.Prefix, u.ObjectName), "/")
}

// Child treats u as a directory and addresses name inside it.
func (u ObjectURI) Child(name string) ObjectURI {
	return ObjectURI{
		BucketName: u.BucketName,
		Prefix:     u.Key(),
		ObjectName: name,
	}
}

func (u ObjectURI) String() string {
	return fmt.Sprintf("s3://%s/%s", u.BucketName, u.Key())
}
