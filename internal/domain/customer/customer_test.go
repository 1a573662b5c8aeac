package customer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vzdolci/storefront/internal/domain"
)

func TestNewNormalizes(t *testing.T) {
	info, err := New("  Maria Silva ", " Maria@Example.COM ", "(11) 98765-4321", "529.982.247-25")
	require.NoError(t, err)

	assert.Equal(t, "Maria Silva", info.Name)
	assert.Equal(t, "maria@example.com", info.Email)
	assert.Equal(t, "11987654321", info.Phone)
	assert.Equal(t, "52998224725", info.CPF)
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		in      [4]string
		field   string
		message string
	}{
		{"short name", [4]string{"Jo", "a@b.com", "1187654321", "52998224725"}, "name", "Nome do cliente é obrigatório"},
		{"bad email", [4]string{"Maria", "not-an-email", "1187654321", "52998224725"}, "email", "Email inválido"},
		{"short phone", [4]string{"Maria", "a@b.com", "123456789", "52998224725"}, "phone", "Telefone inválido"},
		{"long phone", [4]string{"Maria", "a@b.com", "551187654321", "52998224725"}, "phone", "Telefone inválido"},
		{"bad cpf", [4]string{"Maria", "a@b.com", "1187654321", "52998224726"}, "cpf", "CPF inválido"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.in[0], tt.in[1], tt.in[2], tt.in[3])
			require.Error(t, err)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, tt.message, verr.Message)
		})
	}
}

func TestValidCPF(t *testing.T) {
	assert.True(t, ValidCPF("52998224725"))
	assert.True(t, ValidCPF("529.982.247-25"))

	assert.False(t, ValidCPF("52998224724"), "wrong second check digit")
	assert.False(t, ValidCPF("52998224735"), "wrong first check digit")
	assert.False(t, ValidCPF("11111111111"), "repeated digit sequence")
	assert.False(t, ValidCPF("5299822472"), "too short")
	assert.False(t, ValidCPF(""))
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("maria@example.com"))
	assert.True(t, ValidEmail("  maria+tag@sub.example.com.br "))
	assert.False(t, ValidEmail("maria@example"))
	assert.False(t, ValidEmail("@example.com"))
	assert.False(t, ValidEmail(""))
}

func TestMaskCPF(t *testing.T) {
	assert.Equal(t, "529.***.***-**", MaskCPF("529.982.247-25"))
	assert.Equal(t, "529.***.***-**", MaskCPF("52998224725"))
	assert.Equal(t, "529", MaskCPF("529"))
	assert.Equal(t, "", MaskCPF("abc"))

	// Only the first three digits survive masking.
	assert.NotContains(t, MaskCPF("52998224725"), "725")
}
