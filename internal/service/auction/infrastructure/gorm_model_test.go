package infrastructure

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"
)

func TestMoneyColumnsUseDecimal20x4(t *testing.T) {
	tests := []struct {
		model  interface{}
		fields []string
	}{
		{&BidModel{}, []string{"Amount", "MaxAutoAmount"}},
		{&FinalizationModel{}, []string{"WinningAmount"}},
	}
	for _, tt := range tests {
		s, err := schema.Parse(tt.model, &sync.Map{}, schema.NamingStrategy{})
		require.NoError(t, err)
		for _, name := range tt.fields {
			field := s.LookUpField(name)
			require.NotNil(t, field, "%s.%s", s.Name, name)
			assert.Equal(t, "decimal(20,4)", field.TagSettings["TYPE"], "%s.%s", s.Name, name)
		}
	}
}
