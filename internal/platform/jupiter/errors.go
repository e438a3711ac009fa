package jupiter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mvolkov/sol-limit-bot/internal/domain"
)

// statusError is a non-2xx response from the Jupiter API, with the error
// message extracted from the body when present. The swapper uses the status
// code to classify failures as transient or terminal.
type statusError struct {
	Status  int
	Message string
}

func newStatusError(status int, body []byte) *statusError {
	msg := string(body)
	var e apiError
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		msg = e.Error
	}
	return &statusError{Status: status, Message: msg}
}

func (e *statusError) Error() string {
	return fmt.Sprintf("jupiter API HTTP %d: %s", e.Status, e.Message)
}

// rejected reports whether the status indicates the aggregator refused the
// request itself (bad route, amount, or account) rather than failing to
// serve it. Rate limiting is transient, not a rejection.
func (e *statusError) rejected() bool {
	return e.Status >= 400 && e.Status < 500 && e.Status != http.StatusTooManyRequests
}

// asSwapError converts an aggregator error into the executor's taxonomy:
// rejections become terminal, everything else stays a plain transient error.
func asSwapError(err error) error {
	var se *statusError
	if errors.As(err, &se) && se.rejected() {
		return &domain.SwapRejectedError{Reason: se.Message}
	}
	return err
}
