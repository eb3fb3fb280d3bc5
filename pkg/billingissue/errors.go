package billingissue

import "errors"

var (
	ErrIssueNotFound        = errors.New("billing issue not found")
	ErrIssueAlreadyResolved = errors.New("billing issue already resolved")
)
