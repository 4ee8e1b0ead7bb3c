package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClaims_HasAnyRole(t *testing.T) {
	tests := []struct {
		name     string
		roles    []string
		want     []string
		expected bool
	}{
		{"matching role", []string{"dispatcher", "viewer"}, []string{"planner", "dispatcher"}, true},
		{"no matching role", []string{"viewer"}, []string{"planner"}, false},
		{"no roles", nil, []string{"planner"}, false},
		{"nothing required", []string{"viewer"}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Claims{Roles: tt.roles}
			assert.Equal(t, tt.expected, c.HasAnyRole(tt.want...))
		})
	}
}
