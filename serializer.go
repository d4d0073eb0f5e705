package replaycache

import (
	"bufio"
	"bytes"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/replay-cache/replay-cache/policy"
)

// entryToBytes serializes a policy entry to its HTTP/1.1 wire form for
// storage.
func entryToBytes(e *policy.Entry) ([]byte, error) {
	res := &http.Response{
		Status:        strconv.Itoa(e.StatusCode) + " " + e.ReasonPhrase,
		StatusCode:    e.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        e.Header,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
	}
	buf := &bytes.Buffer{}
	if err := res.Write(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// bytesToEntry deserializes a stored response into a policy entry, using
// the recorded exchange timestamps.
func bytesToEntry(b []byte, requestTime, responseTime time.Time) (*policy.Entry, error) {
	res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(b)), nil)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	return &policy.Entry{
		RequestTime:  requestTime,
		ResponseTime: responseTime,
		StatusCode:   res.StatusCode,
		ReasonPhrase: reasonPhrase(res),
		Header:       res.Header,
		Body:         body,
	}, nil
}

// reasonPhrase extracts the reason phrase from a response status line,
// falling back to the standard text for the status code.
func reasonPhrase(res *http.Response) string {
	prefix := strconv.Itoa(res.StatusCode) + " "
	if strings.HasPrefix(res.Status, prefix) {
		return strings.TrimPrefix(res.Status, prefix)
	}
	return http.StatusText(res.StatusCode)
}
