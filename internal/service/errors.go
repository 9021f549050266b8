package service

import "errors"

// Ошибки бизнес-логики. Все они ожидаемые и возвращаются вызывающему
var (
	ErrInvalidRange       = errors.New("end time must be after start time")
	ErrNotFound           = errors.New("not found")
	ErrSlotUnavailable    = errors.New("time slot not available")
	ErrNotAuthorized      = errors.New("not authorized")
	ErrAlreadyCancelled   = errors.New("appointment already cancelled")
	ErrNotAProfessor      = errors.New("professor not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)
