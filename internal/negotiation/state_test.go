package negotiation

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealdesk/internal/model"
)

func TestTransition(t *testing.T) {
	const (
		draft    = model.NegotiationDraft
		pending  = model.NegotiationPendingApproval
		approved = model.NegotiationApproved
		archived = model.NegotiationArchived
	)
	tests := []struct {
		name     string
		from     model.NegotiationState
		ev       Event
		highRisk bool
		want     model.NegotiationState
		wantErr  bool
	}{
		{"update from approved", approved, EventUpdate, false, draft, false},
		{"generate low risk", draft, EventGenerate, false, draft, false},
		{"generate high risk", draft, EventGenerate, true, pending, false},
		{"regenerate after approval", approved, EventGenerate, false, draft, false},
		{"approve pending", pending, EventApprove, false, approved, false},
		{"approve draft", draft, EventApprove, false, draft, true},
		{"approve approved", approved, EventApprove, false, approved, true},
		{"reject pending", pending, EventReject, false, draft, false},
		{"reject draft", draft, EventReject, false, draft, false},
		{"reject approved", approved, EventReject, false, approved, true},
		{"archive pending", pending, EventArchive, false, archived, false},
		{"archive archived", archived, EventArchive, false, archived, true},
		{"generate archived", archived, EventGenerate, false, archived, true},
		{"update archived", archived, EventUpdate, false, archived, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Transition(tt.from, tt.ev, tt.highRisk)
			assert.Equal(t, tt.want, got)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, eris.Is(err, ErrInvalidTransition))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCheckRevision(t *testing.T) {
	assert.NoError(t, CheckRevision(3, 3))
	err := CheckRevision(3, 2)
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrStaleRevision))
}
