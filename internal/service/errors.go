package service

import (
	"errors"
	"fmt"

	"github.com/shenikar/municipal_incidents/internal/models"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

// ForbiddenError - пользователь известен, но его роль не совпадает с требуемой
type ForbiddenError struct {
	Required models.Role
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("requires role %s", e.Required)
}

func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}

// InvalidArgumentError - входные данные не прошли проверку
type InvalidArgumentError struct {
	Reason string
}

func (e *InvalidArgumentError) Error() string {
	return "invalid argument: " + e.Reason
}

func (e *InvalidArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

func invalidArgument(format string, args ...any) error {
	return &InvalidArgumentError{Reason: fmt.Sprintf(format, args...)}
}
