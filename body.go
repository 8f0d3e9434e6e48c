package httpcachestore

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
)

// newBodyReadCloser adapts an in-memory byte slice to an io.ReadCloser
// suitable for http.Response.Body. Bodies in this store are always
// complete blobs (spec §1 non-goal: no streaming body pipe); GetPath
// remains the escape hatch for callers that want to stream from disk
// themselves instead of loading the whole blob.
func newBodyReadCloser(body []byte) io.ReadCloser {
	return io.NopCloser(bytes.NewReader(body))
}

// readAndResetBody drains resp.Body into memory and rewires resp.Body to a
// fresh reader over the same bytes, so Write can both hash the body and
// leave resp usable afterward.
func readAndResetBody(resp *http.Response) ([]byte, error) {
	if resp.Body == nil {
		return nil, nil
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	resp.Body = newBodyReadCloser(body)
	return body, nil
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
