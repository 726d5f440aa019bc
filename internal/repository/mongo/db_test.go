package mongo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestIsIndexUnavailable(t *testing.T) {
	missingHint := mongo.CommandError{Code: 2, Message: "hint provided does not correspond to an existing index"}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"missing hinted index", missingHint, true},
		{"wrapped", fmt.Errorf("find planContents: %w", missingHint), true},
		{"bad value unrelated to hints", mongo.CommandError{Code: 2, Message: "unknown operator: $foo"}, false},
		{"other code mentioning hint", mongo.CommandError{Code: 11000, Message: "hint"}, false},
		{"not a server error", errors.New("hint provided does not correspond to an existing index"), false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isIndexUnavailable(tt.err))
		})
	}
}
