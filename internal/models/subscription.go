// Package models содержит доменные структуры, описывающие подписку,
// а также вспомогательные типы для работы с данными из внешних источников (например, JSON-запросы).
package models

import (
	"fmt"
	"time"
)

// PaymentStatus — статус оплаты подписки.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentSuccessful PaymentStatus = "successful"
	PaymentFailed     PaymentStatus = "failed"
)

// SubscriptionStatus — статус жизненного цикла подписки.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

// Usage — счётчики использования квот тарифа.
type Usage struct {
	ListingsUsed        int `json:"listingsUsed"`
	FeaturedListingUsed int `json:"featuredListingUsed"`
}

// Subscription — запись журнала подписок пользователя.
// В каждый момент у пользователя не более одной записи со статусом active.
type Subscription struct {
	ID                 string             `json:"id"`
	UserUID            string             `json:"user_id"`
	UserEmail          string             `json:"user_email"`
	PlanID             string             `json:"plan_id"`
	PlanName           string             `json:"plan_name"`
	Interval           Interval           `json:"interval"`
	Amount             int64              `json:"amount"`
	Usage              Usage              `json:"usage"`
	PaymentStatus      PaymentStatus      `json:"payment_status"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	PaymentType        string             `json:"payment_type,omitempty"`
	TxRef              string             `json:"tx_ref,omitempty"`
	ProviderTxID       int64              `json:"provider_transaction_id,omitempty"`
	HasLifeTimeAccess  bool               `json:"has_lifetime_access"`
	StartDate          time.Time          `json:"start_date"`
	EndDate            time.Time          `json:"end_date"`
	CreatedAt          time.Time          `json:"created_at"`
}

// ActiveAt сообщает, даёт ли подписка права в момент now.
func (s *Subscription) ActiveAt(now time.Time) bool {
	return s.SubscriptionStatus == SubscriptionActive &&
		s.PaymentStatus == PaymentSuccessful &&
		!s.EndDate.Before(now)
}

// ActionType — вид квотируемого действия.
type ActionType string

const (
	ActionNormal   ActionType = "normal"
	ActionFeatured ActionType = "featured"
)

// ParseAction проверяет вид действия.
func ParseAction(s string) (ActionType, error) {
	switch ActionType(s) {
	case ActionNormal, ActionFeatured:
		return ActionType(s), nil
	default:
		return "", fmt.Errorf("%w: unknown action type %q", ErrValidation, s)
	}
}

// Activation описывает подтверждённый платёж, которым активируется новая подписка.
type Activation struct {
	UserUID      string
	UserEmail    string
	Plan         *Plan
	Amount       int64
	PaymentType  string
	TxRef        string
	ProviderTxID int64
	StartDate    time.Time
	EndDate      time.Time
	Lifetime     bool
	// TrialOnly: активация проходит, только если у пользователя ещё не было подписок.
	TrialOnly    bool
}

// DummyInitiate — запрос на оформление подписки.
type DummyInitiate struct {
	PlanID   string `json:"planId" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Fullname string `json:"fullname" validate:"required"`
}

// DummyPlanRef — запрос, ссылающийся только на тариф.
type DummyPlanRef struct {
	PlanID string `json:"planId" validate:"required"`
}

// DummyCharge — списание квоты после успешной записи объявления.
type DummyCharge struct {
	UserID         string `json:"userId" validate:"required"`
	SubscriptionID string `json:"subscriptionId" validate:"required"`
}

// DummyRelease — возврат квоты после удаления объявления.
type DummyRelease struct {
	UserID string `json:"userId" validate:"required"`
}
