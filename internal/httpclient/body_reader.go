package httpclient

import (
	"bytes"
	"io"
	"net/http"
)

// bodySource replays the same request body for redirects and retries inside net/http.
type bodySource struct {
	data []byte
}

func newBodySource(data []byte) bodySource {
	return bodySource{data: data}
}

func (s bodySource) NewReader() (io.ReadCloser, error) {
	if len(s.data) == 0 {
		return http.NoBody, nil
	}
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

func (s bodySource) ContentLength() int64 {
	return int64(len(s.data))
}

// readBody reads at most limit bytes and drains the rest so the connection can be reused.
func readBody(r io.Reader, limit int64) ([]byte, bool, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(data)) <= limit {
		return data, false, nil
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, false, err
	}
	return data[:limit], true, nil
}
