package api

import (
	"bytes"
	"io"

	"rentcrm/internal/domain"
)

// readSeeker adapts rc for http.ServeContent, buffering it when the
// storage backend does not support seeking.
func readSeeker(rc io.Reader) (io.ReadSeeker, error) {
	if rs, ok := rc.(io.ReadSeeker); ok {
		return rs, nil
	}
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, domain.Externalf("read stored file", err)
	}
	return bytes.NewReader(data), nil
}

