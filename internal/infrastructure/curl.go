package infrastructure

import (
	"net/http"
	"sort"
	"strings"
)

// shellQuote quotes s for display in a POSIX shell command line.
// Used for logging only; nothing here is executed.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n\r'\"$`\\!*?[](){}|;<>&~#%") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// curlCommand renders req as an equivalent curl invocation so a failing
// request can be reproduced by hand
func curlCommand(req *http.Request) string {
	args := []string{"curl", "-sS", "-o", "/dev/null"}

	keys := make([]string, 0, len(req.Header))
	for key := range req.Header {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		for _, value := range req.Header[key] {
			args = append(args, "-H", key+": "+value)
		}
	}
	args = append(args, req.URL.String())

	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = shellQuote(arg)
	}
	return strings.Join(quoted, " ")
}
