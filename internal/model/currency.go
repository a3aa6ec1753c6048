package model

// Currency is an ISO 4217 currency accounts can be denominated in.
type Currency struct {
	Code   string
	Name   string
	Symbol string
}

// DefaultCurrencies are seeded by the initial migration.
var DefaultCurrencies = []Currency{
	{Code: "USD", Name: "US Dollar", Symbol: "$"},
	{Code: "EUR", Name: "Euro", Symbol: "€"},
	{Code: "GBP", Name: "British Pound", Symbol: "£"},
	{Code: "JPY", Name: "Japanese Yen", Symbol: "¥"},
	{Code: "CAD", Name: "Canadian Dollar", Symbol: "$"},
}
