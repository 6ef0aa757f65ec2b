package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/onegreenvn/assign-services-backend/internal/database/repository"
)

var (
	// ErrNotFound is returned when a target, assignee or assignment does not exist
	ErrNotFound = errors.New("not found")
	// ErrNotAssigned is returned when unassigning a target with no active assignment
	ErrNotAssigned = errors.New("target is not assigned")
	// ErrPermissionDenied is returned when the actor may not perform the operation
	ErrPermissionDenied = errors.New("permission denied")
	// ErrConcurrentModification is returned when a write lost a race it could not recover from
	ErrConcurrentModification = repository.ErrConcurrentModification
	// ErrDeliveryFailure marks a notification that could not be delivered
	ErrDeliveryFailure = errors.New("notification delivery failed")

	ErrInvalidStatus      = errors.New("invalid assignment status")
	ErrTooManyAssigns     = errors.New("assignee has too many assigned topics")
	ErrAssigneeNotAllowed = errors.New("assignee is not allowed to be assigned")
	ErrAssignDisabled     = errors.New("assignment is disabled")
	ErrInvalidTarget      = errors.New("invalid assignment target")
	ErrNoAssignee         = errors.New("username or group_name is required")
	ErrUnknownEvent       = errors.New("unknown lifecycle event")
	ErrInvalidFrequency   = errors.New("invalid reminder frequency")
	ErrInvalidSnooze      = errors.New("invalid reminder snooze")
)

func isRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// notFound maps gorm's ErrRecordNotFound to ErrNotFound
func notFound(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	if isRecordNotFound(err) {
		return fmt.Errorf("%s: %w", msg, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
