// Package reconcile keeps account opening balances consistent with their
// transaction history.
//
// The invariant it maintains is
//
//	Balance == InitialBalance + sum(signed transaction amounts)
//
// where the sign of each transaction comes from its type (see
// model.TransactionType.Sign). Accounts created before opening balances were
// tracked carry an InitialBalance of zero; for those the reconciler solves the
// invariant for InitialBalance using the stored Balance. Accounts that already
// have a non-zero InitialBalance are left alone unless the caller supplies an
// explicit override.
package reconcile
