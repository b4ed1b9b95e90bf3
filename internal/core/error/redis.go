package errx

import (
	"net/http"
)

// WrapRedis wraps a Redis error with a consistent kind, status code and message.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Err:     err,
		Kind:    KindStorage,
		Status:  http.StatusBadGateway,
		Message: RedisErrorMessage,
	}
}
