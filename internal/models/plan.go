package models

import "time"

// Interval — период оплаты тарифа.
type Interval string

const (
	IntervalMonthly Interval = "monthly"
	IntervalYearly  Interval = "yearly"
)

// PlanFeatures — квоты и возможности тарифа.
type PlanFeatures struct {
	MaxListings             int  `json:"maxListings"`
	FeaturedListings        int  `json:"featuredListings"`
	CanJoinAgency           bool `json:"canJoinAgency"`
	CanCreateAgency         bool `json:"canCreateAgency"`
	HasMapIntegration       bool `json:"hasMapIntegration"`
	CanHandleInspectionFees bool `json:"canHandleInspectionFees"`
	DirectInquiries         bool `json:"directInquiries"`
}

// Plan — справочная запись каталога тарифов.
type Plan struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	Interval          Interval     `json:"interval"`
	Amount            int64        `json:"amount"`
	ProviderPlanID    int64        `json:"provider_plan_id"`
	ProviderPlanToken string       `json:"-"`
	Features          PlanFeatures `json:"features"`
	CreatedAt         time.Time    `json:"created_at"`
}

// DummyPlan используется для создания тарифа из JSON-запроса.
type DummyPlan struct {
	Name     string       `json:"name" validate:"required,oneof=Starter Professional Agency"`
	Interval Interval     `json:"interval" validate:"required,oneof=monthly yearly"`
	Amount   int64        `json:"amount" validate:"gte=0"`
	Features PlanFeatures `json:"features"`
}
