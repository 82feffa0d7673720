package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "trustline/pkg/domain-errors"
)

func TestParseUUID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseUserID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseSessionID("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects nil UUID", func(t *testing.T) {
		_, err := ParseUserID(uuid.Nil.String())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		valid := uuid.New()
		id, err := ParseUserID(valid.String())
		require.NoError(t, err)
		assert.Equal(t, UserID(valid), id)
		assert.Equal(t, valid.String(), id.String())
	})
}

func TestParseID_HostileInput(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE users;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Null byte injection", "550e8400\x00-e29b-41d4-a716-446655440000", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, errUser := ParseUserID(tt.input)
			_, errSession := ParseSessionID(tt.input)
			if tt.wantErr {
				require.Error(t, errUser)
				require.Error(t, errSession)
				assert.True(t, dErrors.HasCode(errUser, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, errUser)
				require.NoError(t, errSession)
			}
		})
	}
}

func TestNewSessionID(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()
	assert.False(t, a.IsNil())
	assert.NotEqual(t, a, b)
	assert.True(t, SessionID{}.IsNil())
}

func FuzzParseSessionID(f *testing.F) {
	f.Add("")
	f.Add("550e8400-e29b-41d4-a716-446655440000")
	f.Add("00000000-0000-0000-0000-000000000000")
	f.Add("not-a-uuid")

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseSessionID(input)
		if err != nil {
			return
		}
		if id.IsNil() {
			t.Error("nil session ID accepted")
		}
		roundTrip, err := ParseSessionID(id.String())
		if err != nil || roundTrip != id {
			t.Errorf("round-trip failed for %q", input)
		}
	})
}

func TestIDsMarshalAsText(t *testing.T) {
	sid := NewSessionID()
	raw, err := json.Marshal(struct {
		ID SessionID `json:"id"`
	}{sid})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"`+sid.String()+`"}`, string(raw))

	var back struct {
		ID SessionID `json:"id"`
	}
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, sid, back.ID)
}
