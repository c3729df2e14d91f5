package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tillpoint/tillpoint-backend/api/middleware"
	pkgerrors "github.com/tillpoint/tillpoint-backend/pkg/errors"
)

// requestIdentity resolves the store and cashier the token authenticated.
func requestIdentity(r *http.Request) (storeID, cashierID uuid.UUID, err error) {
	rawStore := middleware.StoreIDFromContext(r.Context())
	if rawStore == "" {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "store context missing")
	}
	storeID, err = uuid.Parse(rawStore)
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid store id")
	}

	rawCashier := middleware.CashierIDFromContext(r.Context())
	if rawCashier == "" {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "cashier context missing")
	}
	cashierID, err = uuid.Parse(rawCashier)
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cashier id")
	}
	return storeID, cashierID, nil
}
