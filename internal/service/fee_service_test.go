package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-portal-api/internal/dto"
	"github.com/noah-isme/school-portal-api/internal/models"
	appErrors "github.com/noah-isme/school-portal-api/pkg/errors"
)

func TestFeePayCreatesMonthWithClassAmount(t *testing.T) {
	store := &fakeRosterStore{students: []models.Student{{
		ID:    "S1",
		Grade: "10A",
		FeeHistory: models.FeeLedger{
			{Month: "2024-09", Amount: 200, Paid: 200, Status: models.FeePaid},
		},
	}}}
	svc := NewFeeService(store, nil, nil, nil, FeeServiceConfig{DefaultMonthly: 150, ClassMonthly: map[string]float64{"10A": 200}})
	ctx := context.Background()

	ledger, err := svc.Pay(ctx, nil, "S1", "2024-08", dto.PayFeeRequest{Amount: 50})
	require.NoError(t, err)
	require.Len(t, ledger.Records, 2)
	assert.Equal(t, "2024-08", ledger.Records[0].Month)
	assert.Equal(t, 200.0, ledger.Records[0].Amount)
	assert.Equal(t, models.FeePartial, ledger.Records[0].Status)
	assert.NotNil(t, ledger.Records[0].PaidAt)
	assert.Equal(t, 400.0, ledger.TotalDue)
	assert.Equal(t, 250.0, ledger.TotalPaid)
	assert.Equal(t, 150.0, ledger.Outstanding)

	ledger, err = svc.Pay(ctx, nil, "S1", "2024-08", dto.PayFeeRequest{Amount: 150})
	require.NoError(t, err)
	assert.Equal(t, models.FeePaid, ledger.Records[0].Status)
	assert.Zero(t, ledger.Outstanding)

	_, err = svc.Pay(ctx, nil, "S1", "2024-08", dto.PayFeeRequest{Amount: 10})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestFeePayValidation(t *testing.T) {
	store := &fakeRosterStore{students: []models.Student{{ID: "S1", Grade: "9B"}}}
	svc := NewFeeService(store, nil, nil, nil, FeeServiceConfig{})
	ctx := context.Background()

	_, err := svc.Pay(ctx, nil, "S1", "2024-13", dto.PayFeeRequest{Amount: 10})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Pay(ctx, nil, "S1", "2024-01", dto.PayFeeRequest{Amount: 0})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Pay(ctx, nil, "S1", "2024-01", dto.PayFeeRequest{Amount: 10})
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Zero(t, store.saveCalls)
}

func TestFeeLedgerNotFound(t *testing.T) {
	svc := NewFeeService(&fakeRosterStore{}, nil, nil, nil, FeeServiceConfig{})
	_, err := svc.Ledger(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
