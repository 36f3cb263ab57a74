package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound — запрошенная сущность (комната, пользователь, подписка, план) отсутствует.
	ErrNotFound = errors.New("not found")
	// ErrForbidden — у действующего субъекта нет прав на операцию.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation — некорректные входные данные, побочных эффектов не было.
	ErrValidation = errors.New("validation failed")
	// ErrConflict — конкурентная запись или нарушение уникальности.
	ErrConflict = errors.New("conflict")
	// ErrLimitReached — исчерпана квота тарифа.
	ErrLimitReached = errors.New("limit reached")
	// ErrPaymentNotSuccessful — платёж не подтверждён платёжным шлюзом.
	ErrPaymentNotSuccessful = errors.New("payment not successful")
	// ErrTrialUnavailable — пробный период доступен только до первой подписки.
	// Оборачивает ErrConflict, но повторной активацией не исправляется.
	ErrTrialUnavailable = fmt.Errorf("%w: trial is only available before the first subscription", ErrConflict)
)
