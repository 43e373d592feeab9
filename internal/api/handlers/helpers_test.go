package handlers

import (
	"load-tracking-service/internal/domain"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConflictMessageNamesStatus(t *testing.T) {
	tests := []struct {
		op     domain.Operation
		status domain.Status
		want   string
	}{
		{domain.OpConfirm, domain.StatusConfirmed, "Load already confirmed or canceled (status: Confirmed)"},
		{domain.OpConfirm, domain.StatusCanceled, "Load already confirmed or canceled (status: Canceled)"},
		{domain.OpCancel, domain.StatusCompleted, "Load already confirmed or canceled (status: Completed)"},
		{domain.OpComplete, domain.StatusCreated, "Load not confirmed or already completed (status: Created)"},
		{domain.OpUpdateLocation, domain.StatusCompleted, "Load not confirmed (status: Completed)"},
	}

	for _, tt := range tests {
		t.Run(string(tt.op)+"/"+string(tt.status), func(t *testing.T) {
			got := conflictMessage(&domain.ConflictError{Op: tt.op, Status: tt.status})
			assert.Equal(t, tt.want, got)
		})
	}
}
