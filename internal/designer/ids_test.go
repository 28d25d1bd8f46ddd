package designer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDAllocator_StartsAfterOne(t *testing.T) {
	a := NewIDAllocator()
	assert.Equal(t, "2", a.Next())
	assert.Equal(t, "3", a.Next())
}

func TestIDAllocator_ObserveAdvances(t *testing.T) {
	a := NewIDAllocator()
	a.Observe("500000")
	assert.Equal(t, "500001", a.Next())
}

func TestIDAllocator_ObserveIgnores(t *testing.T) {
	tests := []struct {
		name string
		id   string
	}{
		{"ceiling", "999999"},
		{"above ceiling", "1700000000"},
		{"not a number", "a3f9"},
		{"negative", "-4"},
		{"fraction", "12.5"},
		{"below counter", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewIDAllocator()
			a.Observe(tt.id)
			assert.Equal(t, 1, a.Current())
		})
	}
}

func TestIDAllocator_Reset(t *testing.T) {
	a := NewIDAllocator()
	a.Observe("40")
	a.Reset()
	assert.Equal(t, "2", a.Next())
}
