// Package registry provides the ordered listener set behind a fetchstore
// subscription.
//
// This package is internal to fetchstore. A [Registry] hands out an ID per
// registration so the unsubscribe closure returned to a caller removes
// exactly that registration. Delivery is left to the owner: it takes a
// [Registry.Snapshot], and re-checks [Registry.Contains] before each call so
// that listeners removed mid-delivery (or a registry closed by an abort) are
// skipped.
package registry
