package quote

import (
	"fmt"
	"strconv"
	"strings"
)

type Status int

const (
	StatusWaiting Status = iota
	StatusPaymentStart
	StatusPaymentPullSuccess
	StatusUploadStart
	StatusUploadEnd

	StatusPaymentPullFailed
	StatusPaymentPushFailed
	StatusUploadDownloadFailed
	StatusUploadUploadFailed
	StatusUploadActualFileLenExceedsQuote
	StatusUploadInternalError
)

var statusNames = map[Status]string{
	StatusWaiting:                         "WAITING",
	StatusPaymentStart:                    "PAYMENT_START",
	StatusPaymentPullSuccess:              "PAYMENT_PULL_SUCCESS",
	StatusUploadStart:                     "UPLOAD_START",
	StatusUploadEnd:                       "UPLOAD_END",
	StatusPaymentPullFailed:               "PAYMENT_PULL_FAILED",
	StatusPaymentPushFailed:               "PAYMENT_PUSH_FAILED",
	StatusUploadDownloadFailed:            "UPLOAD_DOWNLOAD_FAILED",
	StatusUploadUploadFailed:              "UPLOAD_UPLOAD_FAILED",
	StatusUploadActualFileLenExceedsQuote: "UPLOAD_ACTUAL_FILE_LEN_EXCEEDS_QUOTE",
	StatusUploadInternalError:             "UPLOAD_INTERNAL_ERROR",
}

// transitions lists every allowed edge. Anything absent is terminal.
var transitions = map[Status][]Status{
	StatusWaiting: {StatusPaymentStart},
	StatusPaymentStart: {
		StatusPaymentPullSuccess,
		StatusPaymentPullFailed,
	},
	StatusPaymentPullSuccess: {
		StatusUploadStart,
		StatusPaymentPushFailed,
	},
	StatusUploadStart: {
		StatusUploadEnd,
		StatusUploadDownloadFailed,
		StatusUploadUploadFailed,
		StatusUploadActualFileLenExceedsQuote,
		StatusUploadInternalError,
	},
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS(%d)", int(s))
}

func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// Failed reports whether s is one of the failure sinks.
func (s Status) Failed() bool {
	return s.Terminal() && s != StatusUploadEnd
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseStatus accepts either a status name or its integer code.
func ParseStatus(s string) (Status, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if st := Status(n); st.Valid() {
			return st, nil
		}
		return 0, fmt.Errorf("unknown status %d", n)
	}
	for st, name := range statusNames {
		if strings.EqualFold(name, s) {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", s)
}
