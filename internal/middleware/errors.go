package myMiddleware

import "errors"

var (
	errMissingToken = errors.New("missing authentication token")
	errInvalidToken = errors.New("invalid token")
)
