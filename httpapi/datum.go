package httpapi

import (
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/opencompleter/completer/datum"
)

// requestToDatum reads r's method, headers and body into a
// KindHTTPRequest Datum. Per the header-join rule, a header that repeats
// is flattened to a single value: its values are sorted and joined with
// ";" rather than dropped or arbitrarily picking the first occurrence.
func requestToDatum(r *http.Request) (datum.Datum, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return datum.Datum{}, err
	}

	headers := make(datum.Headers, len(r.Header))
	for name, values := range r.Header {
		sorted := append([]string(nil), values...)
		sort.Strings(sorted)
		headers[name] = strings.Join(sorted, ";")
	}

	return datum.NewHTTPRequest(datum.HTTPMethod(r.Method), headers, body), nil
}

// writeErrorDatum writes message as a plain-text response with the given
// status code. The receiver uses it for unknown stages and for /complete
// or /fail bodies that cannot be read.
func writeErrorDatum(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(message))
}
