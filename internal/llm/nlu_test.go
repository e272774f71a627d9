package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensebot/internal/core"
)

func TestPatternNLU(t *testing.T) {
	ctx := context.Background()

	in, err := PatternNLU{}.Interpret(ctx, "coffee $4.50 this morning")
	require.NoError(t, err)
	assert.Equal(t, core.IntentRecordExpense, in.Kind)
	require.NotNil(t, in.Expense.Amount)
	assert.Equal(t, "4.5", in.Expense.Amount.String())
	assert.Equal(t, "$", in.Expense.Currency)

	in, err = PatternNLU{}.Interpret(ctx, "how much did I spend?")
	require.NoError(t, err)
	assert.Equal(t, core.IntentUnknown, in.Kind)
}

func TestIntentPayloadFallsBackToPatternAmount(t *testing.T) {
	p := intentPayload{Intent: "record_expense", Expense: &expensePayload{}}
	in := p.toIntent("lunch €12 at the canteen")
	assert.Equal(t, core.IntentRecordExpense, in.Kind)
	require.NotNil(t, in.Expense.Amount)
	assert.Equal(t, "12", in.Expense.Amount.String())
	assert.Equal(t, "€", in.Expense.Currency)
}
