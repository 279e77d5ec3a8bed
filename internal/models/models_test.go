package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeOf(t *testing.T) {
	cases := []struct {
		statements, transactions int
		want                     MatchType
		err                      error
	}{
		{1, 1, MatchOneToOne, nil},
		{3, 1, MatchManyToOne, nil},
		{1, 3, MatchOneToMany, nil},
		{2, 2, "", ErrUnsupportedMatchShape},
		{0, 1, "", ErrEmptySelection},
		{1, 0, "", ErrEmptySelection},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%dx%d", tc.statements, tc.transactions), func(t *testing.T) {
			got, err := ShapeOf(tc.statements, tc.transactions)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSignedAmount(t *testing.T) {
	amt := decimal.RequireFromString("12.34")

	assert.True(t, StatementItem{Amount: amt, Direction: DirectionCredit}.SignedAmount().Equal(amt))
	assert.True(t, StatementItem{Amount: amt, Direction: DirectionDebit}.SignedAmount().Equal(amt.Neg()))
	assert.True(t, LedgerTransaction{Amount: amt, Direction: DirectionInflow}.SignedAmount().Equal(amt))
	assert.True(t, LedgerTransaction{Amount: amt, Direction: DirectionOutflow}.SignedAmount().Equal(amt.Neg()))
}

func TestFilterKeyAndTags(t *testing.T) {
	tenant := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	account := uuid.MustParse("00000000-0000-0000-0000-0000000000aa")

	all := Filter{TenantID: tenant}
	assert.Equal(t, "tenant:"+tenant.String()+":account:*:from:-:to:-", all.Key())

	scoped := Filter{
		TenantID:  tenant,
		AccountID: &account,
		From:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		To:        time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, "tenant:"+tenant.String()+":account:"+account.String()+":from:2025-03-01:to:2025-03-31", scoped.Key())
	assert.Equal(t, []string{AccountTag(tenant, &account)}, scoped.Tags())

	tags := PoolTags(tenant, account, account)
	assert.Equal(t, []string{AccountTag(tenant, nil), AccountTag(tenant, &account)}, tags)
}

func TestImbalanceErrorMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("confirm: %w", &ImbalanceError{Difference: decimal.RequireFromString("-5")})

	assert.ErrorIs(t, err, ErrImbalancedSelection)
	assert.Contains(t, err.Error(), "difference -5.00")

	var imb *ImbalanceError
	require.True(t, errors.As(err, &imb))
	assert.True(t, imb.Difference.Equal(decimal.NewFromInt(-5)))
}

func TestStoreErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := &StoreError{Op: "apply link", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.False(t, IsDomainError(err))
	assert.True(t, IsDomainError(fmt.Errorf("x: %w", ErrNotFound)))
}
