// Package models содержит доменную модель пользователя системы
// и денормализованный снимок его текущего тарифа.
package models

import "time"

// Роли пользователей маркетплейса.
const (
	RoleAdmin         = "admin"
	RoleRealtor       = "realtor"
	RoleAgency        = "agency"
	RolePropertyOwner = "property owner"
	RoleClient        = "client"
	RoleGuest         = "guest"
	// RoleService — внутренний сервис объявлений, ведущий учёт квот.
	RoleService       = "service"
)

// User представляет зарегистрированного пользователя системы.
type User struct {
	UID      string `json:"id"`
	Email    string `json:"email"`
	Fullname string `json:"fullname"`
	Role     string `json:"role"`
	PlanSnapshot
}

// PlanSnapshot — кешированная копия текущего права пользователя.
// Всегда выводится из активной подписки, отдельным источником истины не является.
type PlanSnapshot struct {
	Plan            string     `json:"plan"`
	PlanPaidType    Interval   `json:"plan_paid_type"`
	PlanActivatedAt *time.Time `json:"plan_activated_at,omitempty"`
	PlanExpiresAt   *time.Time `json:"plan_expires_at,omitempty"`
}

// DefaultSnapshot возвращает снимок тарифа по умолчанию.
func DefaultSnapshot(defaultPlan string) PlanSnapshot {
	return PlanSnapshot{Plan: defaultPlan, PlanPaidType: IntervalMonthly}
}

// SnapshotOf строит снимок по активной подписке.
func SnapshotOf(sub *Subscription) PlanSnapshot {
	start, end := sub.StartDate, sub.EndDate
	return PlanSnapshot{
		Plan:            sub.PlanName,
		PlanPaidType:    sub.Interval,
		PlanActivatedAt: &start,
		PlanExpiresAt:   &end,
	}
}
