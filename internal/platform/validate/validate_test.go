package validate_test

import (
	"errors"
	"testing"

	"github.com/p-n-ai/pai-learn/internal/platform/apperr"
	"github.com/p-n-ai/pai-learn/internal/platform/validate"
)

type signup struct {
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Score           int    `json:"score" validate:"gte=0,lte=100"`
}

func TestStruct(t *testing.T) {
	tests := []struct {
		name       string
		input      signup
		wantFields map[string]string
	}{
		{
			name:  "valid",
			input: signup{Email: "a@b.co", Password: "secret123", PasswordConfirm: "secret123", Score: 70},
		},
		{
			name:  "password mismatch",
			input: signup{Email: "a@b.co", Password: "secret123", PasswordConfirm: "secret124"},
			wantFields: map[string]string{
				"password_confirm": "passwords do not match",
			},
		},
		{
			name:  "missing and out of range",
			input: signup{Password: "short", PasswordConfirm: "short", Score: 101},
			wantFields: map[string]string{
				"email":    "this field is required",
				"password": "must be at least 8",
				"score":    "must be less than or equal to 100",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.input)
			if tt.wantFields == nil {
				if err != nil {
					t.Fatalf("Struct() error = %v, want nil", err)
				}
				return
			}

			var ae *apperr.Error
			if !errors.As(err, &ae) {
				t.Fatalf("Struct() error = %v, want *apperr.Error", err)
			}
			if ae.Kind != apperr.Validation {
				t.Errorf("Kind = %v, want validation_error", ae.Kind)
			}
			if len(ae.Fields) != len(tt.wantFields) {
				t.Errorf("Fields = %v, want %v", ae.Fields, tt.wantFields)
			}
			for field, msg := range tt.wantFields {
				if ae.Fields[field] != msg {
					t.Errorf("Fields[%q] = %q, want %q", field, ae.Fields[field], msg)
				}
			}
		})
	}
}
