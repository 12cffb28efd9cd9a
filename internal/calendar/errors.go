package calendar

import (
	"errors"
	"fmt"
	"strconv"
)

// Классы ошибок ядра. Каждая ошибка пакета оборачивает ровно один из них.
var (
	ErrValidation    = errors.New("invalid request")
	ErrPermission    = errors.New("not allowed")
	ErrQuotaExceeded = errors.New("daily limit reached")
	ErrConflict      = errors.New("slot already taken")
	ErrTransport     = errors.New("store unavailable")
)

// Validationf: ErrValidation с контекстом.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// QuotaError: числа, из-за которых бронь отклонена.
type QuotaError struct {
	Cap       float64
	Booked    float64
	Requested float64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: booking %s h on top of %s h would exceed the limit of %s h per day",
		ErrQuotaExceeded,
		formatHours(e.Requested),
		formatHours(e.Booked),
		formatHours(e.Cap),
	)
}

func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }

// BlockedError: нажатие на заблокированный слот. Для участника это отказ
// в доступе, для админа только уведомление.
type BlockedError struct {
	Reason        string
	Informational bool
}

func (e *BlockedError) Error() string {
	return "slot is blocked: " + e.Reason
}

func (e *BlockedError) Is(target error) bool {
	return target == ErrPermission && !e.Informational
}

// ErrorKind группирует ошибки для транспортов.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindValidation
	KindPermission
	KindQuota
	KindConflict
	KindTransport
	KindNotice
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindPermission:
		return "permission"
	case KindQuota:
		return "quota_exceeded"
	case KindConflict:
		return "conflict"
	case KindTransport:
		return "transport"
	case KindNotice:
		return "notice"
	default:
		return "internal"
	}
}

// Kind определяет класс ошибки.
func Kind(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var blocked *BlockedError
	if errors.As(err, &blocked) && blocked.Informational {
		return KindNotice
	}
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrPermission):
		return KindPermission
	case errors.Is(err, ErrQuotaExceeded):
		return KindQuota
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrTransport):
		return KindTransport
	default:
		return KindInternal
	}
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}
