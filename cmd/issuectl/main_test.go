package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootRegistersSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, path := range [][]string{{"migrate"}, {"user", "add"}, {"user", "list"}, {"token"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		require.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestRequiredFlagsAreEnforcedBeforeOpeningTheStore(t *testing.T) {
	cases := []struct {
		name string
		args []string
		flag string
	}{
		{name: "user add", args: []string{"user", "add", "--email", "erin@city.example"}, flag: "name"},
		{name: "token", args: []string{"token"}, flag: "user"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			root := newRootCmd()
			root.SetArgs(tc.args)
			root.SetOut(&bytes.Buffer{})
			root.SetErr(&bytes.Buffer{})

			err := root.Execute()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.flag)
		})
	}
}
