package paymentprovider

// Customer — плательщик.
type Customer struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Customizations — оформление страницы оплаты.
type Customizations struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Logo        string `json:"logo,omitempty"`
}

// Meta — метаданные платежа, возвращаемые шлюзом в проверке и вебхуке.
type Meta struct {
	Type      string `json:"type,omitempty"`
	PlanID    string `json:"planId,omitempty"`
	UserEmail string `json:"userEmail,omitempty"`
}

// PaymentLinkRequest — запрос на создание ссылки оплаты.
type PaymentLinkRequest struct {
	TxRef          string         `json:"tx_ref"`
	Amount         int64          `json:"amount"`
	Currency       string         `json:"currency"`
	PaymentOptions string         `json:"payment_options,omitempty"`
	RedirectURL    string         `json:"redirect_url"`
	PaymentPlan    int64          `json:"payment_plan,omitempty"`
	Customer       Customer       `json:"customer"`
	Customizations Customizations `json:"customizations"`
	Meta           Meta           `json:"meta"`
}

// Transaction — транзакция в ответе проверки и в данных вебхука.
type Transaction struct {
	ID          int64    `json:"id"`
	TxRef       string   `json:"tx_ref"`
	Status      string   `json:"status"`
	Amount      float64  `json:"amount"`
	Currency    string   `json:"currency"`
	PaymentType string   `json:"payment_type"`
	Customer    Customer `json:"customer"`
	Meta        *Meta    `json:"meta,omitempty"`
}

// PaymentPlan — платёжный план шлюза для регулярных списаний.
type PaymentPlan struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Amount   int64  `json:"amount"`
	Interval string `json:"interval"`
	Token    string `json:"plan_token"`
}

// WebhookEvent — тело вебхука шлюза.
type WebhookEvent struct {
	Event    string      `json:"event"`
	Data     Transaction `json:"data"`
	MetaData *Meta       `json:"meta_data,omitempty"`
}

// EffectiveMeta возвращает метаданные события: сначала meta_data, затем data.meta.
func (e *WebhookEvent) EffectiveMeta() Meta {
	if e.MetaData != nil {
		return *e.MetaData
	}
	if e.Data.Meta != nil {
		return *e.Data.Meta
	}
	return Meta{}
}

type envelope[T any] struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type linkData struct {
	Link string `json:"link"`
}
