package irc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModeParserParse(t *testing.T) {
	p := NewModeParser(DefaultChanModes, DefaultPrefix)

	tests := []struct {
		name      string
		modes     string
		params    []string
		want      []ModeChange
		ignored   []byte
		leftovers []string
	}{
		{
			name:   "mixed prefix modes",
			modes:  "+qvhao",
			params: []string{"Uowner", "Uvoice", "Uhalfop", "Uadmin", "Uop"},
			want: []ModeChange{
				{Adding: true, Mode: 'q', Param: "Uowner", HasParam: true, Privilege: Owner},
				{Adding: true, Mode: 'v', Param: "Uvoice", HasParam: true, Privilege: Voice},
				{Adding: true, Mode: 'h', Param: "Uhalfop", HasParam: true, Privilege: HalfOp},
				{Adding: true, Mode: 'a', Param: "Uadmin", HasParam: true, Privilege: Admin},
				{Adding: true, Mode: 'o', Param: "Uop", HasParam: true, Privilege: Op},
			},
		},
		{
			name:   "add and remove",
			modes:  "-o+o-qa+v",
			params: []string{"Uvoice", "Uop", "Uvoice", "Uvoice", "Uvoice"},
			want: []ModeChange{
				{Adding: false, Mode: 'o', Param: "Uvoice", HasParam: true, Privilege: Op},
				{Adding: true, Mode: 'o', Param: "Uop", HasParam: true, Privilege: Op},
				{Adding: false, Mode: 'q', Param: "Uvoice", HasParam: true, Privilege: Owner},
				{Adding: false, Mode: 'a', Param: "Uvoice", HasParam: true, Privilege: Admin},
				{Adding: true, Mode: 'v', Param: "Uvoice", HasParam: true, Privilege: Voice},
			},
		},
		{
			name:   "type D mode between prefix modes",
			modes:  "+amov",
			params: []string{"Uadmin", "Uop", "Uvoice"},
			want: []ModeChange{
				{Adding: true, Mode: 'a', Param: "Uadmin", HasParam: true, Privilege: Admin},
				{Adding: true, Mode: 'm'},
				{Adding: true, Mode: 'o', Param: "Uop", HasParam: true, Privilege: Op},
				{Adding: true, Mode: 'v', Param: "Uvoice", HasParam: true, Privilege: Voice},
			},
		},
		{
			name:   "type A mode takes a param",
			modes:  "+abov",
			params: []string{"Uadmin2", "x!y@z", "Uop2", "Uvoice2"},
			want: []ModeChange{
				{Adding: true, Mode: 'a', Param: "Uadmin2", HasParam: true, Privilege: Admin},
				{Adding: true, Mode: 'b', Param: "x!y@z", HasParam: true},
				{Adding: true, Mode: 'o', Param: "Uop2", HasParam: true, Privilege: Op},
				{Adding: true, Mode: 'v', Param: "Uvoice2", HasParam: true, Privilege: Voice},
			},
		},
		{
			name:   "type C mode takes a param only when set",
			modes:  "+l-l",
			params: []string{"10"},
			want: []ModeChange{
				{Adding: true, Mode: 'l', Param: "10", HasParam: true},
				{Adding: false, Mode: 'l'},
			},
		},
		{
			name:      "unknown modes are ignored",
			modes:     "+X",
			params:    []string{"extra"},
			ignored:   []byte{'X'},
			leftovers: []string{"extra"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.modes, tt.params)
			require.NoError(t, err)
			require.Equal(t, tt.want, got.Changes)
			require.Equal(t, tt.ignored, got.Ignored)
			require.Equal(t, tt.leftovers, got.Leftover)
		})
	}
}

func TestModeParserMissingParam(t *testing.T) {
	p := NewModeParser(DefaultChanModes, DefaultPrefix)

	_, err := p.Parse("+ov", []string{"Foo"})
	require.ErrorIs(t, err, ErrModeMissingParam)
}

func TestModeChangesPrivileges(t *testing.T) {
	p := NewModeParser(DefaultChanModes, DefaultPrefix)

	got, err := p.Parse("+mo-k", []string{"Foo", "secret"})
	require.NoError(t, err)
	require.Len(t, got.Changes, 3)

	privs := got.Privileges()
	require.Len(t, privs, 1)
	require.Equal(t, "Foo", privs[0].Param)
}

func TestSplitNamesPrefix(t *testing.T) {
	name, priv := SplitNamesPrefix("@+Foo", "")
	require.Equal(t, "Foo", name)
	require.Equal(t, Op|Voice, priv)

	name, priv = SplitNamesPrefix("Bar", "@+")
	require.Equal(t, "Bar", name)
	require.Equal(t, Privilege(0), priv)

	name, priv = SplitNamesPrefix("~Baz", "@+")
	require.Equal(t, "~Baz", name)
	require.Equal(t, Privilege(0), priv)

	require.Equal(t, "op|voice", (Op | Voice).String())
	require.Equal(t, "none", Privilege(0).String())
}
