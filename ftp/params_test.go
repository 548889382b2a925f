package ftp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		arg     string
		want    Representation
		wantErr bool
	}{
		{"A", Representation{Type: TypeASCII, Form: FormNonPrint}, false},
		{"a t", Representation{Type: TypeASCII, Form: FormTelnet}, false},
		{"A C", Representation{Type: TypeASCII, Form: FormASA}, false},
		{"E", Representation{Type: TypeEBCDIC, Form: FormNonPrint}, false},
		{"E T", Representation{Type: TypeEBCDIC, Form: FormTelnet}, false},
		{"I", Representation{Type: TypeImage}, false},
		{"L 8", Representation{Type: TypeLocal, ByteSize: 8}, false},
		{"L", Representation{}, true},
		{"L 0", Representation{}, true},
		{"L -8", Representation{}, true},
		{"A X", Representation{}, true},
		{"A N N", Representation{}, true},
		{"I N", Representation{}, true},
		{"Z", Representation{}, true},
		{"", Representation{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := ParseType(tt.arg)
			if tt.wantErr {
				assert.ErrorIs(t, err, errBadParameter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TYPE A T followed by TYPE A leaves the form at non-print, not telnet
func TestSession_TypeResetsForm(t *testing.T) {
	session, out := newTestSession(t)
	session.isAuthenticated = true

	require.NoError(t, session.dispatch(ParseCommand("TYPE A T")))
	assert.Equal(t, FormTelnet, session.representation.Form)

	require.NoError(t, session.dispatch(ParseCommand("TYPE A")))
	assert.Equal(t, Representation{Type: TypeASCII, Form: FormNonPrint}, session.representation)

	require.NoError(t, session.dispatch(ParseCommand("TYPE E C")))
	require.NoError(t, session.dispatch(ParseCommand("TYPE E")))
	assert.Equal(t, Representation{Type: TypeEBCDIC, Form: FormNonPrint}, session.representation)

	require.NoError(t, session.dispatch(ParseCommand("TYPE L 0")))
	assert.Equal(t, TypeEBCDIC, session.representation.Type, "rejected TYPE leaves the state alone")

	assert.Equal(t, []string{
		"200 Type set to A T.",
		"200 Type set to A N.",
		"200 Type set to E C.",
		"200 Type set to E N.",
		"501 Syntax error in parameters or arguments.",
	}, out.lines())
}

func TestParseMode(t *testing.T) {
	for arg, want := range map[string]TransferMode{"S": ModeStream, "b": ModeBlock, "C": ModeCompressed} {
		got, err := ParseMode(arg)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("X")
	assert.ErrorIs(t, err, errBadParameter)
}

func TestParseStructure(t *testing.T) {
	for arg, want := range map[string]DataStructure{"F": StructureFile, "r": StructureRecord, "P": StructurePage} {
		got, err := ParseStructure(arg)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseStructure("Q")
	assert.ErrorIs(t, err, errBadParameter)
}

func TestParseRestartOffset(t *testing.T) {
	offset, err := ParseRestartOffset("100")
	require.NoError(t, err)
	assert.Equal(t, int64(100), offset)

	offset, err = ParseRestartOffset("0")
	require.NoError(t, err)
	assert.Zero(t, offset)

	for _, arg := range []string{"-1", "abc", "1.5", ""} {
		_, err := ParseRestartOffset(arg)
		assert.ErrorIs(t, err, errBadParameter, arg)
	}
}
