package billing

import "errors"

// ErrUserNotFound 表示找不到发起结账的用户。
var ErrUserNotFound = errors.New("user not found")

// WebhookError 表示 webhook 请求未通过校验或无法处理，HTTP 层统一回 400。
type WebhookError struct {
	Message string
	Err     error
}

func (e *WebhookError) Error() string {
	if e.Err != nil && e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "webhook error"
}

func (e *WebhookError) Unwrap() error {
	return e.Err
}

func webhookError(message string, err error) *WebhookError {
	return &WebhookError{Message: message, Err: err}
}
