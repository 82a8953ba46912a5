package service

import "errors"

var (
	ErrDeviceNotFound  = errors.New("device not found")
	ErrDeviceLocked    = errors.New("device is locked")
	ErrDeviceIDTaken   = errors.New("device id already registered")
	ErrAlreadyFlying   = errors.New("device is already in flight")
	ErrNoActiveSession = errors.New("no active flight session")
	ErrNotOwner        = errors.New("device does not belong to user")

	ErrZoneNotFound    = errors.New("no-fly zone not found")
	ErrInvalidGeometry = errors.New("invalid zone geometry")

	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account is locked")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
)
