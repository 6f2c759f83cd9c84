package validation

import (
	"testing"

	"feedline/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name       string
		in         signup
		wantFields []string
	}{
		{"valid", signup{"a@b.com", "secret1", "A"}, nil},
		{"bad email", signup{"not-an-email", "secret1", "A"}, []string{"email"}},
		{"short password", signup{"a@b.com", "12345", "A"}, []string{"password"}},
		{"everything missing", signup{}, []string{"email", "password", "name"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.in)
			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}

			var appErr *models.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, models.KindValidation, appErr.Kind)

			var got []string
			for _, f := range appErr.Fields {
				got = append(got, f.Field)
				assert.NotEmpty(t, f.Message)
			}
			assert.Equal(t, tt.wantFields, got)
		})
	}
}

func TestStruct_InvalidTarget(t *testing.T) {
	err := Struct(42)
	require.Error(t, err)
	assert.False(t, models.IsKind(err, models.KindValidation))
}

func TestTrim(t *testing.T) {
	a, b := "  x ", "\ty\n"
	Trim(&a, &b, nil)
	assert.Equal(t, "x", a)
	assert.Equal(t, "y", b)
}
