package models

// BudgetPeriod defines the time window for a budget policy.
type BudgetPeriod string

const (
	BudgetDaily   BudgetPeriod = "daily"
	BudgetMonthly BudgetPeriod = "monthly"
)

// BudgetPolicy caps upstream tokens spent per period. Zero MaxTokens disables it.
type BudgetPolicy struct {
	MaxTokens int64        `json:"max_tokens" yaml:"max_tokens" env:"MAX_TOKENS"`
	Period    BudgetPeriod `json:"period" yaml:"period" env:"PERIOD"`
}

// BudgetStatus shows current usage against a policy.
type BudgetStatus struct {
	Policy    BudgetPolicy `json:"policy"`
	Used      int64        `json:"used"`
	Remaining int64        `json:"remaining"`
}
